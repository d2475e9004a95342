package rcu

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"rcucell/infra/memory"
)

// node pairs a value with its strong count. The value is never written
// while the count is above zero.
type node[T any] struct {
	value T
	refs  atomic.Int64

	// published is set once the node has been handed to a slot; only
	// published nodes go through the release hook.
	published atomic.Bool

	// gen changes every time the node is handed out by the pool, so a Weak
	// taken on one incarnation never upgrades to a later one.
	gen atomic.Uint64

	heap *heap[T]
}

// tryAcquire takes a count on n unless n is already dead. A reader may hold
// a stale pointer to a node that was reclaimed (and maybe recycled), so the
// increment must never resurrect a zero count.
func (n *node[T]) tryAcquire() bool {
	for {
		c := n.refs.Load()
		if c <= 0 {
			return false
		}
		if n.refs.CompareAndSwap(c, c+1) {
			return true
		}
	}
}

// acquire adds a count to a node the caller already holds.
func (n *node[T]) acquire() {
	if n.refs.Add(1) <= 1 {
		panic(errors.AssertionFailedf("rcu: acquire on a reclaimed node"))
	}
}

// release drops one count and reclaims n when it was the last.
func (n *node[T]) release() {
	c := n.refs.Add(-1)
	switch {
	case c == 0:
		n.heap.reclaim(n)
	case c < 0:
		panic(errors.AssertionFailedf("rcu: strong count underflow (%d)", c))
	}
}

// discard drops the caller's count on a node that never became visible.
func (n *node[T]) discard() {
	n.published.Store(false)
	n.release()
}

// heap allocates and reclaims the nodes of one cell.
type heap[T any] struct {
	pool  *memory.Pool[node[T]]
	hook  func(T)
	stats *Stats
}

func newHeap[T any](hook func(T), stats *Stats) *heap[T] {
	h := &heap[T]{hook: hook, stats: stats}
	h.pool = memory.NewPool(
		func() *node[T] { return &node[T]{heap: h} },
		func(n *node[T]) {
			var zero T
			n.value = zero
			n.published.Store(false)
		},
	)
	return h
}

// allocate returns a published node holding v with a count of one.
func (h *heap[T]) allocate(v T) *node[T] {
	n := h.pool.Get()
	n.value = v
	n.published.Store(true)
	n.gen.Add(1)
	n.refs.Store(1)
	h.stats.allocated.Add(1)
	return n
}

func (h *heap[T]) reclaim(n *node[T]) {
	if n.published.Load() {
		if h.hook != nil {
			h.hook(n.value)
		}
		h.stats.reclaimed.Add(1)
	} else {
		h.stats.discarded.Add(1)
	}
	h.pool.Put(n)
}
