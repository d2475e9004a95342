package service

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"rcucell/domain/document"
	"rcucell/infra/codec"
	"rcucell/infra/sequence"
	"rcucell/infra/store"
	"rcucell/rcu"
)

var (
	ErrEmpty    = errors.New("service: no document published")
	ErrBusy     = errors.New("service: another writer holds the document")
	ErrTooLarge = errors.New("service: document too large")
)

const (
	minLockBackoff = 50 * time.Microsecond
	maxLockBackoff = 5 * time.Millisecond
)

// DocumentService publishes, patches and clears the current document.
type DocumentService struct {
	cell    *rcu.Cell[*document.Document]
	store   *store.Store
	seq     *sequence.Sequencer
	ser     codec.Serializer
	maxSize int

	retired atomic.Uint64
	now     func() time.Time
}

// Stats describes the published document and the cell behind it.
type Stats struct {
	Version uint64
	Retired uint64
	Cell    rcu.StatsSnapshot
}

// NewDocumentService wires all dependencies.
// maxSize <= 0 disables the size check.
func NewDocumentService(
	st *store.Store,
	seq *sequence.Sequencer,
	ser codec.Serializer,
	maxSize int,
) *DocumentService {
	s := &DocumentService{
		store:   st,
		seq:     seq,
		ser:     ser,
		maxSize: maxSize,
		now:     time.Now,
	}
	s.cell = rcu.New(rcu.WithReleaseHook(func(*document.Document) {
		s.retired.Add(1)
	}))
	return s
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Publish makes body the current document under a new version.
func (s *DocumentService) Publish(
	ctx context.Context,
	body *structpb.Struct,
) (*document.Document, error) {
	if err := s.checkSize(body); err != nil {
		return nil, err
	}

	g, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer g.Unlock()

	return s.publishLocked(g, body)
}

// Patch derives the next document from the current body. fn receives a
// private copy (nil when nothing is published) and may modify it.
// Patch does not wait: it fails with ErrBusy while any other writer runs.
func (s *DocumentService) Patch(
	ctx context.Context,
	fn func(body *structpb.Struct) (*structpb.Struct, error),
) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := s.cell.TryLock()
	if g == nil {
		return nil, ErrBusy
	}
	defer g.Unlock()

	var body *structpb.Struct
	if cur := g.Read(); cur != nil {
		body = proto.Clone(cur.Value().Body).(*structpb.Struct)
		cur.Release()
	}

	next, err := fn(body)
	if err != nil {
		return nil, errors.Wrap(err, "service: patch")
	}
	if err := s.checkSize(next); err != nil {
		return nil, err
	}
	return s.publishLocked(g, next)
}

// Clear withdraws the current document and returns it.
func (s *DocumentService) Clear(ctx context.Context) (*document.Document, error) {
	g, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer g.Unlock()

	cur := g.Read()
	if cur == nil {
		return nil, ErrEmpty
	}
	defer cur.Release()

	version := s.seq.Next()
	if err := s.store.Clear(version); err != nil {
		return nil, errors.Wrap(err, "service: persist clear")
	}
	g.Clear()

	log.Printf("[service] cleared version=%d (tombstone %d)", cur.Value().Version, version)
	return cur.Value(), nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Current returns a guard on the published document. The caller must
// Release it; the document stays valid until then even if it is replaced.
func (s *DocumentService) Current() (*rcu.ReadGuard[*document.Document], error) {
	g := s.cell.Read()
	if g == nil {
		return nil, ErrEmpty
	}
	return g, nil
}

func (s *DocumentService) Stats() Stats {
	st := Stats{
		Retired: s.retired.Load(),
		Cell:    s.cell.Stats(),
	}
	if doc, ok := s.cell.Load(); ok {
		st.Version = doc.Version
	}
	return st
}

// Close drops the service's reference to the current document.
func (s *DocumentService) Close() {
	s.cell.Close()
}

//
// ──────────────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────────────
//

// lock spins on TryLock with capped exponential backoff until the guard is
// free or ctx is done.
func (s *DocumentService) lock(ctx context.Context) (*rcu.WriteGuard[*document.Document], error) {
	backoff := minLockBackoff
	for {
		if g := s.cell.TryLock(); g != nil {
			return g, nil
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, errors.Mark(
				errors.Wrap(ctx.Err(), "service: waiting for write guard"),
				ErrBusy,
			)
		case <-t.C:
		}
		backoff = min(backoff*2, maxLockBackoff)
	}
}

func (s *DocumentService) publishLocked(
	g *rcu.WriteGuard[*document.Document],
	body *structpb.Struct,
) (*document.Document, error) {
	doc := document.New(s.seq.Next(), body, s.now())

	payload, err := s.ser.Encode(doc)
	if err != nil {
		return nil, err
	}
	if err := s.store.Publish(doc.Version, payload); err != nil {
		return nil, errors.Wrap(err, "service: persist publish")
	}
	g.Update(doc)

	log.Printf(
		"[service] published version=%d id=%s size=%s",
		doc.Version, doc.ID, units.BytesSize(float64(doc.Size())),
	)
	return doc, nil
}

func (s *DocumentService) checkSize(body *structpb.Struct) error {
	if s.maxSize <= 0 {
		return nil
	}
	if size := proto.Size(body); size > s.maxSize {
		return errors.Wrapf(
			ErrTooLarge, "%s exceeds %s",
			units.BytesSize(float64(size)), units.BytesSize(float64(s.maxSize)),
		)
	}
	return nil
}
