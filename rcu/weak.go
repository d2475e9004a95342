package rcu

import "sync/atomic"

// Weak is a non-owning reference to one published value. It does not keep
// the value alive: once every ReadGuard and cell holding the value lets
// go, Upgrade returns nil. The zero Weak references nothing.
type Weak[T any] struct {
	n   *node[T]
	gen uint64
}

// Downgrade returns a Weak reference to the guarded value.
func (g *ReadGuard[T]) Downgrade() Weak[T] {
	n := g.live()
	return Weak[T]{n: n, gen: n.gen.Load()}
}

// Downgrade returns a Weak reference to the installed value, or the zero
// Weak when the cell is empty.
func (c *Cell[T]) Downgrade() Weak[T] {
	n := c.s.read()
	if n == nil {
		return Weak[T]{}
	}
	w := Weak[T]{n: n, gen: n.gen.Load()}
	n.release()
	return w
}

// Upgrade returns a guard on the referenced value, or nil if it has been
// reclaimed.
func (w Weak[T]) Upgrade() *ReadGuard[T] {
	if w.n == nil || !w.n.tryAcquire() {
		return nil
	}
	// the count may belong to a later incarnation of a recycled node
	if w.n.gen.Load() != w.gen {
		w.n.release()
		return nil
	}
	return &ReadGuard[T]{n: w.n}
}

// IsZero reports whether w references nothing.
func (w Weak[T]) IsZero() bool {
	return w.n == nil
}

// Refers reports whether w references the value g guards.
func (w Weak[T]) Refers(g *ReadGuard[T]) bool {
	n := g.node()
	if n == nil {
		return w.n == nil
	}
	return w.n == n && w.gen == n.gen.Load()
}

// WeakCell holds at most one Weak reference and swaps it atomically. It
// never keeps a value alive; readers upgrade to get a guard.
//
// The zero WeakCell is empty and ready to use. A WeakCell must not be
// copied after first use.
type WeakCell[T any] struct {
	ptr atomic.Pointer[Weak[T]]
}

// NewWeakCell returns a cell holding w.
func NewWeakCell[T any](w Weak[T]) *WeakCell[T] {
	c := &WeakCell[T]{}
	c.Write(w)
	return c
}

// Write installs w and returns the reference it replaced. A zero w empties
// the cell.
func (c *WeakCell[T]) Write(w Weak[T]) Weak[T] {
	var next *Weak[T]
	if !w.IsZero() {
		next = &w
	}
	return deref(c.ptr.Swap(next))
}

// WriteGuarded installs a Weak reference to the value g guards.
func (c *WeakCell[T]) WriteGuarded(g *ReadGuard[T]) Weak[T] {
	return c.Write(g.Downgrade())
}

// Take empties the cell and returns the reference it held.
func (c *WeakCell[T]) Take() Weak[T] {
	return deref(c.ptr.Swap(nil))
}

// Read returns the installed reference without upgrading it.
func (c *WeakCell[T]) Read() Weak[T] {
	return deref(c.ptr.Load())
}

// Upgrade returns a guard on the referenced value, or nil when the cell is
// empty or the value has been reclaimed.
func (c *WeakCell[T]) Upgrade() *ReadGuard[T] {
	return c.Read().Upgrade()
}

// Holds reports whether the cell references the value g guards.
func (c *WeakCell[T]) Holds(g *ReadGuard[T]) bool {
	return c.Read().Refers(g)
}

// HoldsWeak reports whether the cell holds a reference equal to w.
func (c *WeakCell[T]) HoldsWeak(w Weak[T]) bool {
	return c.Read() == w
}

// SameWeak reports whether a and b reference the same published value.
func SameWeak[T any](a, b *WeakCell[T]) bool {
	return a.Read() == b.Read()
}

func deref[T any](w *Weak[T]) Weak[T] {
	if w == nil {
		return Weak[T]{}
	}
	return *w
}
