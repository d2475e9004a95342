package rcu

// Cell is a lock-free container for at most one value of type T.
//
// The zero Cell is empty and ready to use. A Cell must not be copied after
// first use.
type Cell[T any] struct {
	s slot[T]
}

// Option configures a Cell at construction.
type Option[T any] func(*Cell[T])

// WithReleaseHook registers fn to run exactly once for every published
// value, on the goroutine that drops its last reference. fn must not call
// back into the cell's write paths.
func WithReleaseHook[T any](fn func(T)) Option[T] {
	return func(c *Cell[T]) {
		c.s.hook = fn
	}
}

// New returns an empty cell.
func New[T any](opts ...Option[T]) *Cell[T] {
	c := &Cell[T]{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWith returns a cell holding v.
func NewWith[T any](v T, opts ...Option[T]) *Cell[T] {
	c := New(opts...)
	c.s.ptr.Store(c.s.heap().allocate(v))
	return c
}

// Read returns a guard on the installed value, or nil if the cell is
// empty. It never blocks.
func (c *Cell[T]) Read() *ReadGuard[T] {
	n := c.s.read()
	if n == nil {
		return nil
	}
	return &ReadGuard[T]{n: n}
}

// Load is Read for callers that only need a copy of the value.
func (c *Cell[T]) Load() (v T, ok bool) {
	n := c.s.read()
	if n == nil {
		return v, false
	}
	v = n.value
	n.release()
	return v, true
}

// Write installs v and returns the value it replaced. Readers still
// holding the replaced value keep it until they release their guards.
func (c *Cell[T]) Write(v T) (prev T, ok bool) {
	return unwrap(c.s.install(c.s.heap().allocate(v)))
}

// Take empties the cell and returns the value it held.
func (c *Cell[T]) Take() (prev T, ok bool) {
	return unwrap(c.s.install(nil))
}

// Swap installs v and returns a guard on the replaced value instead of a
// copy, or nil if the cell was empty.
func (c *Cell[T]) Swap(v T) *ReadGuard[T] {
	return guard(c.s.install(c.s.heap().allocate(v)))
}

// Detach empties the cell and returns a guard on the value it held.
func (c *Cell[T]) Detach() *ReadGuard[T] {
	return guard(c.s.install(nil))
}

// Install publishes the value g references into c, sharing the node with
// every other holder, and returns the value it replaced. g stays valid.
//
// A node keeps the release hook and Stats of the cell that allocated it:
// when c drops the last reference to an installed node, the hook and
// counters of g's cell run, not c's.
func (c *Cell[T]) Install(g *ReadGuard[T]) (prev T, ok bool) {
	n := g.live()
	n.acquire()
	return unwrap(c.s.install(n))
}

// Update replaces the value with the result of fn applied to the current
// one. fn returns the new value and whether the cell should hold it;
// returning false empties the cell. fn may run more than once when writers
// race, so it must not have side effects. Update returns the value that
// was replaced.
//
// Update does not take the write flag: it neither waits for nor excludes
// a WriteGuard holder. Callers that need fn to run exactly once against a
// stable value use TryLock and WriteGuard.Update instead.
func (c *Cell[T]) Update(fn func(old T, ok bool) (T, bool)) (prev T, ok bool) {
	for {
		cur := c.s.read()
		var old T
		if cur != nil {
			old = cur.value
		}
		v, keep := fn(old, cur != nil)

		var n *node[T]
		if keep {
			n = c.s.heap().allocate(v)
		}
		if c.s.compareAndInstall(cur, n) {
			if cur == nil {
				return old, false
			}
			// one count from read, one inherited from the slot
			cur.release()
			cur.release()
			return old, true
		}
		c.s.stats.casRetries.Add(1)
		if n != nil {
			n.discard()
		}
		if cur != nil {
			cur.release()
		}
	}
}

// CompareAndSwap installs v only if the value current references is still
// installed; a nil current expects an empty cell. current stays valid
// either way.
func (c *Cell[T]) CompareAndSwap(current *ReadGuard[T], v T) bool {
	return c.compareAndSwap(current, c.s.heap().allocate(v))
}

// CompareAndTake empties the cell only if current is still installed.
func (c *Cell[T]) CompareAndTake(current *ReadGuard[T]) bool {
	return c.compareAndSwap(current, nil)
}

func (c *Cell[T]) compareAndSwap(current *ReadGuard[T], n *node[T]) bool {
	old := current.node()
	if c.s.compareAndInstall(old, n) {
		if old != nil {
			old.release()
		}
		return true
	}
	if n != nil {
		n.discard()
	}
	return false
}

// TryLock returns the cell's exclusive WriteGuard, or nil immediately if
// another goroutine holds it.
func (c *Cell[T]) TryLock() *WriteGuard[T] {
	if !c.s.tryLock() {
		return nil
	}
	return &WriteGuard[T]{cell: c}
}

// IsSome reports whether a value was installed at the instant of the call.
func (c *Cell[T]) IsSome() bool {
	return c.s.ptr.Load() != nil
}

// IsNone reports whether the cell was empty at the instant of the call.
func (c *Cell[T]) IsNone() bool {
	return c.s.ptr.Load() == nil
}

// Holds reports whether g references the installed value. A nil g matches
// an empty cell.
func (c *Cell[T]) Holds(g *ReadGuard[T]) bool {
	return c.s.ptr.Load() == g.node()
}

// SameNode reports whether a and b currently share one published node.
func SameNode[T any](a, b *Cell[T]) bool {
	return a.s.ptr.Load() == b.s.ptr.Load()
}

// Stats returns the cell's slow-path counters.
func (c *Cell[T]) Stats() StatsSnapshot {
	return c.s.stats.snapshot()
}

// Close drops the cell's reference to its value. Outstanding guards keep
// theirs; the cell itself is left empty and usable.
func (c *Cell[T]) Close() {
	if n := c.s.install(nil); n != nil {
		n.release()
	}
}

func guard[T any](n *node[T]) *ReadGuard[T] {
	if n == nil {
		return nil
	}
	return &ReadGuard[T]{n: n}
}
