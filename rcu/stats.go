package rcu

import "sync/atomic"

// Stats counts slow-path events of one cell. The read fast path touches
// none of these counters.
type Stats struct {
	allocated   atomic.Uint64
	reclaimed   atomic.Uint64
	discarded   atomic.Uint64
	readRetries atomic.Uint64
	casRetries  atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	// Allocated is the number of nodes created for Write, Swap, Update,
	// CompareAndSwap and WriteGuard.Update.
	Allocated uint64
	// Reclaimed is the number of published nodes whose count reached zero.
	Reclaimed uint64
	// Discarded is the number of nodes dropped without ever being visible
	// (a lost CompareAndSwap or an Update retry).
	Discarded uint64
	// ReadRetries counts Read attempts restarted because a writer replaced
	// the observed node.
	ReadRetries uint64
	// CASRetries counts install attempts lost to a concurrent writer.
	CASRetries uint64
}

// Live returns the number of nodes still referenced by the cell or by a
// guard.
func (s StatsSnapshot) Live() uint64 {
	return s.Allocated - s.Reclaimed - s.Discarded
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Allocated:   s.allocated.Load(),
		Reclaimed:   s.reclaimed.Load(),
		Discarded:   s.discarded.Load(),
		ReadRetries: s.readRetries.Load(),
		CASRetries:  s.casRetries.Load(),
	}
}
