package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"rcucell/infra/codec"
	"rcucell/infra/sequence"
	"rcucell/infra/store"
)

func newService(t *testing.T, dir string, maxSize int) (*DocumentService, *store.Store) {
	t.Helper()
	st, err := store.Open(dir)
	require.NoError(t, err)
	svc := NewDocumentService(st, sequence.New(0), codec.ProtoSerializer{}, maxSize)
	t.Cleanup(func() {
		svc.Close()
		_ = st.Close()
	})
	return svc, st
}

func body(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestCurrentOnEmpty(t *testing.T) {
	svc, _ := newService(t, t.TempDir(), 0)
	_, err := svc.Current()
	require.ErrorIs(t, err, ErrEmpty)

	_, err = svc.Clear(context.Background())
	require.ErrorIs(t, err, ErrEmpty)
}

func TestPublishInstallsAndPersists(t *testing.T) {
	svc, st := newService(t, t.TempDir(), 0)
	ctx := context.Background()

	d1, err := svc.Publish(ctx, body(t, map[string]any{"name": "a"}))
	require.NoError(t, err)
	require.Equal(t, uint64(1), d1.Version)

	g, err := svc.Current()
	require.NoError(t, err)
	require.Equal(t, d1.ID, g.Value().ID)

	d2, err := svc.Publish(ctx, body(t, map[string]any{"name": "b"}))
	require.NoError(t, err)
	require.Equal(t, uint64(2), d2.Version)

	// the old guard still sees its version
	require.Equal(t, "a", g.Value().Field("name").GetStringValue())
	g.Release()

	version, payload, err := st.Latest()
	require.NoError(t, err)
	require.Equal(t, uint64(2), version)
	stored, err := codec.ProtoSerializer{}.Decode(payload)
	require.NoError(t, err)
	require.Equal(t, d2.ID, stored.ID)

	st2 := svc.Stats()
	require.Equal(t, uint64(2), st2.Version)
	require.Equal(t, uint64(1), st2.Retired)
}

func TestPublishRejectsOversize(t *testing.T) {
	svc, _ := newService(t, t.TempDir(), 16)
	_, err := svc.Publish(context.Background(), body(t, map[string]any{
		"text": "far more than sixteen bytes of content",
	}))
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = svc.Current()
	require.ErrorIs(t, err, ErrEmpty)
}

func TestClearWritesTombstone(t *testing.T) {
	svc, st := newService(t, t.TempDir(), 0)
	ctx := context.Background()

	d, err := svc.Publish(ctx, body(t, map[string]any{"k": 1}))
	require.NoError(t, err)

	cleared, err := svc.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, d.ID, cleared.ID)

	_, err = svc.Current()
	require.ErrorIs(t, err, ErrEmpty)

	_, _, err = st.Latest()
	require.ErrorIs(t, err, store.ErrNotFound)

	rec, err := st.Get(2)
	require.NoError(t, err)
	require.Equal(t, store.KindClear, rec.Kind)
}

func TestPatchBuildsOnCurrent(t *testing.T) {
	svc, _ := newService(t, t.TempDir(), 0)
	ctx := context.Background()

	_, err := svc.Patch(ctx, func(b *structpb.Struct) (*structpb.Struct, error) {
		require.Nil(t, b)
		return body(t, map[string]any{"n": 1}), nil
	})
	require.NoError(t, err)

	orig, err := svc.Current()
	require.NoError(t, err)
	defer orig.Release()

	d, err := svc.Patch(ctx, func(b *structpb.Struct) (*structpb.Struct, error) {
		b.Fields["n"] = structpb.NewNumberValue(b.Fields["n"].GetNumberValue() + 1)
		return b, nil
	})
	require.NoError(t, err)
	require.Equal(t, float64(2), d.Field("n").GetNumberValue())
	require.Equal(t, float64(1), orig.Value().Field("n").GetNumberValue(), "patch works on a copy")

	boom := errors.New("boom")
	_, err = svc.Patch(ctx, func(*structpb.Struct) (*structpb.Struct, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
}

func TestPatchIsBusyWhileLocked(t *testing.T) {
	svc, _ := newService(t, t.TempDir(), 0)

	g := svc.cell.TryLock()
	require.NotNil(t, g)

	_, err := svc.Patch(context.Background(), func(b *structpb.Struct) (*structpb.Struct, error) {
		return b, nil
	})
	require.ErrorIs(t, err, ErrBusy)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = svc.Publish(ctx, body(t, map[string]any{"k": "v"}))
	require.True(t, errors.Is(err, ErrBusy))
	require.True(t, errors.Is(err, context.DeadlineExceeded))

	g.Unlock()
	_, err = svc.Publish(context.Background(), body(t, map[string]any{"k": "v"}))
	require.NoError(t, err)
}

func TestConcurrentPublishKeepsStoreAndCellInStep(t *testing.T) {
	svc, st := newService(t, t.TempDir(), 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := svc.Publish(ctx, body(t, map[string]any{"j": j}))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	g, err := svc.Current()
	require.NoError(t, err)
	defer g.Release()

	version, _, err := st.Latest()
	require.NoError(t, err)
	require.Equal(t, uint64(80), version)
	require.Equal(t, version, g.Value().Version)
}

func TestRestoreResumesVersions(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := store.Open(dir)
	require.NoError(t, err)
	svc := NewDocumentService(st, sequence.New(0), codec.JSONSerializer{}, 0)
	_, err = svc.Publish(ctx, body(t, map[string]any{"k": "first"}))
	require.NoError(t, err)
	d2, err := svc.Publish(ctx, body(t, map[string]any{"k": "second"}))
	require.NoError(t, err)
	svc.Close()
	require.NoError(t, st.Close())

	st, err = store.Open(dir)
	require.NoError(t, err)
	defer st.Close()
	seq := sequence.New(0)
	svc = NewDocumentService(st, seq, codec.JSONSerializer{}, 0)
	defer svc.Close()

	require.NoError(t, svc.Restore())
	require.Equal(t, uint64(2), seq.Current())

	g, err := svc.Current()
	require.NoError(t, err)
	require.Equal(t, d2.ID, g.Value().ID)
	require.Equal(t, "second", g.Value().Field("k").GetStringValue())
	g.Release()

	d3, err := svc.Publish(ctx, body(t, map[string]any{"k": "third"}))
	require.NoError(t, err)
	require.Equal(t, uint64(3), d3.Version)
}

func TestRestoreAfterClearKeepsSequence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := store.Open(dir)
	require.NoError(t, err)
	svc := NewDocumentService(st, sequence.New(0), codec.ProtoSerializer{}, 0)
	_, err = svc.Publish(ctx, body(t, map[string]any{"k": 1}))
	require.NoError(t, err)
	_, err = svc.Clear(ctx)
	require.NoError(t, err)
	svc.Close()
	require.NoError(t, st.Close())

	st, err = store.Open(dir)
	require.NoError(t, err)
	defer st.Close()
	seq := sequence.New(0)
	svc = NewDocumentService(st, seq, codec.ProtoSerializer{}, 0)
	defer svc.Close()

	require.NoError(t, svc.Restore())
	require.Equal(t, uint64(2), seq.Current())
	_, err = svc.Current()
	require.ErrorIs(t, err, ErrEmpty)
}

func TestPruneJobRemovesAckedRecords(t *testing.T) {
	svc, st := newService(t, t.TempDir(), 0)
	_, err := svc.Publish(context.Background(), body(t, map[string]any{"k": 1}))
	require.NoError(t, err)
	require.NoError(t, st.UpdateState(1, store.StateAcked, 0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunPruneJob(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool {
		_, err := st.Get(1)
		return errors.Is(err, store.ErrNotFound)
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRestoreAfterPruneNeverReusesVersions(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	st, err := store.Open(dir)
	require.NoError(t, err)
	seq := sequence.New(0)
	svc := NewDocumentService(st, seq, codec.ProtoSerializer{}, 0)
	for i := 0; i < 3; i++ {
		_, err = svc.Publish(ctx, body(t, map[string]any{"i": i}))
		require.NoError(t, err)
	}
	_, err = svc.Clear(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(4), seq.Current())

	for v := uint64(1); v <= 4; v++ {
		require.NoError(t, st.UpdateState(v, store.StateAcked, 0))
	}
	n, err := st.PruneAcked(seq.Current())
	require.NoError(t, err)
	require.Equal(t, 4, n)
	svc.Close()
	require.NoError(t, st.Close())

	st, err = store.Open(dir)
	require.NoError(t, err)
	defer st.Close()
	seq = sequence.New(0)
	svc = NewDocumentService(st, seq, codec.ProtoSerializer{}, 0)
	defer svc.Close()

	require.NoError(t, svc.Restore())
	require.Equal(t, uint64(4), seq.Current())

	d, err := svc.Publish(ctx, body(t, map[string]any{"i": "after restart"}))
	require.NoError(t, err)
	require.Greater(t, d.Version, uint64(4))
}
