package memory

import "sync"

// Pool is a typed free list for objects whose lifetime is tracked
// explicitly by their owner (reference counts, retire lists).
//
// Put hands an object back for reuse; the caller promises nothing it
// tracks still reads from it. The optional reset runs before the object
// re-enters the free list so stale payloads are not retained.
type Pool[T any] struct {
	p     *sync.Pool
	reset func(*T)
}

// NewPool builds a pool around ctor. reset may be nil.
func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
		reset: reset,
	}
}

// Get returns a recycled object or a freshly constructed one.
func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

// Put recycles v. A nil v is ignored.
func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}
