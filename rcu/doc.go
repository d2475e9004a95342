// Package rcu implements a single-slot read-copy-update cell.
//
// A Cell holds at most one value. Any number of goroutines may Read the
// installed value concurrently; readers never wait on each other or on
// writers. Writers replace the value by publishing a brand new node, so a
// reader that already holds a ReadGuard keeps seeing the version it
// obtained even after the cell is overwritten, emptied or closed.
//
// # Lifetime
//
// Every published value lives in a node carrying an atomic strong count.
// The cell owns one count while the node is installed and every live
// ReadGuard owns one more. The goroutine that drops the count from one to
// zero reclaims the node: the release hook (see WithReleaseHook) runs
// exactly once for it and the node goes back to the cell's pool.
//
// Guards must be released explicitly:
//
//	g := cell.Read()
//	if g != nil {
//		defer g.Release()
//		use(g.Value())
//	}
//
// # Ordering
//
// All slot transitions go through sync/atomic, whose operations are
// sequentially consistent. A Read that starts after a Write returned
// observes that value or a later one; a Read racing a Write observes
// either the old or the new value in full.
//
// # Exclusive updates
//
// TryLock hands out at most one WriteGuard at a time. It never blocks:
// a nil result means another goroutine holds the guard and the caller
// owns the retry policy. Holding a WriteGuard never delays Read, and it
// does not gate Write, Take or Update either; only a second TryLock
// fails.
//
// # Weak references
//
// A Weak, taken with Cell.Downgrade or ReadGuard.Downgrade, names a value
// without holding a count on it. WeakCell stores one Weak behind an atomic
// pointer; Upgrade yields a ReadGuard while the value is still alive and
// nil afterwards.
package rcu
