package rcu

import "github.com/cockroachdb/errors"

// ReadGuard is a counted, read-only reference to one published value.
//
// The value stays valid until Release, no matter what happens to the cell
// it came from. A ReadGuard belongs to a single goroutine; Clone it to hand
// the value to another one.
type ReadGuard[T any] struct {
	n *node[T]
}

// Value returns the guarded value. It panics after Release.
func (g *ReadGuard[T]) Value() T {
	return g.live().value
}

// Clone returns an independent guard on the same value.
func (g *ReadGuard[T]) Clone() *ReadGuard[T] {
	n := g.live()
	n.acquire()
	return &ReadGuard[T]{n: n}
}

// Release drops the guard's reference. Releasing a nil or already
// released guard is a no-op.
func (g *ReadGuard[T]) Release() {
	if g == nil || g.n == nil {
		return
	}
	n := g.n
	g.n = nil
	n.release()
}

// Same reports whether g and o reference the same published node.
func (g *ReadGuard[T]) Same(o *ReadGuard[T]) bool {
	return g.node() == o.node()
}

// node is nil for a nil guard and panics for a released one.
func (g *ReadGuard[T]) node() *node[T] {
	if g == nil {
		return nil
	}
	return g.live()
}

func (g *ReadGuard[T]) live() *node[T] {
	if g.n == nil {
		panic(errors.AssertionFailedf("rcu: use of a released ReadGuard"))
	}
	return g.n
}

// WriteGuard is the exclusive update handle returned by Cell.TryLock.
// It must not be copied; Unlock gives the exclusivity back.
type WriteGuard[T any] struct {
	noCopy noCopy

	cell     *Cell[T]
	unlocked bool
}

// Read returns a guard on the currently installed value, or nil.
func (w *WriteGuard[T]) Read() *ReadGuard[T] {
	return w.owner().Read()
}

// Update installs v and returns the value it replaced.
func (w *WriteGuard[T]) Update(v T) (prev T, ok bool) {
	s := &w.owner().s
	return unwrap(s.exchange(s.heap().allocate(v)))
}

// Clear empties the cell and returns the value it held.
func (w *WriteGuard[T]) Clear() (prev T, ok bool) {
	return unwrap(w.owner().s.exchange(nil))
}

// Unlock releases the write flag so the next TryLock can succeed.
func (w *WriteGuard[T]) Unlock() {
	c := w.owner()
	w.unlocked = true
	c.s.unlock()
}

func (w *WriteGuard[T]) owner() *Cell[T] {
	if w.unlocked {
		panic(errors.AssertionFailedf("rcu: use of an unlocked WriteGuard"))
	}
	return w.cell
}

// noCopy lets go vet's copylocks check flag copied guards.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
