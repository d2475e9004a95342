package rcu

import (
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// slot is the cell's single storage location plus its write-exclusivity
// flag. The installed pointer only changes through install, exchange or
// compareAndInstall; a live node is never edited in place.
//
// The two words are independent: the flag gates TryLock and nothing
// else, so no transition needs to observe both at once.
type slot[T any] struct {
	ptr    atomic.Pointer[node[T]]
	locked atomic.Bool

	once  sync.Once
	h     *heap[T]
	hook  func(T)
	stats Stats
}

func (s *slot[T]) heap() *heap[T] {
	s.once.Do(func() { s.h = newHeap(s.hook, &s.stats) })
	return s.h
}

// read returns the installed node with one extra count taken for the
// caller, or nil when the slot is empty.
func (s *slot[T]) read() *node[T] {
	for {
		n := s.ptr.Load()
		if n == nil {
			return nil
		}
		if n.tryAcquire() {
			// n may have been reclaimed and recycled between the load and
			// the increment; only trust it if it is still the installed one.
			if s.ptr.Load() == n {
				return n
			}
			n.release()
		}
		s.stats.readRetries.Add(1)
	}
}

// install publishes n (nil empties the slot) and returns the detached
// node. The slot's count on the detached node passes to the caller.
func (s *slot[T]) install(n *node[T]) *node[T] {
	for {
		old := s.ptr.Load()
		if s.ptr.CompareAndSwap(old, n) {
			return old
		}
		s.stats.casRetries.Add(1)
	}
}

// exchange is install for a caller that holds the write flag.
func (s *slot[T]) exchange(n *node[T]) *node[T] {
	return s.ptr.Swap(n)
}

// compareAndInstall publishes n only if old is still installed. The caller
// must hold a count on old so it cannot be recycled under the comparison.
func (s *slot[T]) compareAndInstall(old, n *node[T]) bool {
	return s.ptr.CompareAndSwap(old, n)
}

func (s *slot[T]) tryLock() bool {
	return s.locked.CompareAndSwap(false, true)
}

func (s *slot[T]) unlock() {
	if !s.locked.CompareAndSwap(true, false) {
		panic(errors.AssertionFailedf("rcu: unlock of a cell that is not locked"))
	}
}

// unwrap copies the value out of a detached node and drops the count the
// caller inherited from the slot.
func unwrap[T any](n *node[T]) (v T, ok bool) {
	if n == nil {
		return v, false
	}
	v = n.value
	n.release()
	return v, true
}
