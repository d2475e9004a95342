package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing document versions.
// Version 0 means "nothing published yet".
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose next version is start+1.
// On a fresh data dir start is 0; after Restore it is the stored version.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

// Next reserves and returns the next version.
func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last reserved version.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// Advance moves the sequencer forward to at least v. It never moves it back,
// so a late restore cannot hand out a version twice.
func (s *Sequencer) Advance(v uint64) {
	for {
		cur := s.last.Load()
		if v <= cur || s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}
