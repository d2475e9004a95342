package sequence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequencerIsMonotonic(t *testing.T) {
	s := New(0)
	require.Equal(t, uint64(1), s.Next())
	require.Equal(t, uint64(2), s.Next())
	require.Equal(t, uint64(2), s.Current())
}

func TestAdvanceNeverMovesBack(t *testing.T) {
	s := New(10)
	s.Advance(5)
	require.Equal(t, uint64(10), s.Current())
	s.Advance(20)
	require.Equal(t, uint64(21), s.Next())
}

func TestConcurrentNextIsUnique(t *testing.T) {
	s := New(0)
	const workers, per = 8, 1000

	var mu sync.Mutex
	seen := make(map[uint64]struct{}, workers*per)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint64, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, s.Next())
			}
			mu.Lock()
			for _, v := range local {
				seen[v] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*per)
}
