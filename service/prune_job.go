package service

import (
	"context"
	"log"
	"time"
)

// RunPruneJob periodically deletes outbox records the broadcaster has
// acknowledged. It returns when ctx is done.
func (s *DocumentService) RunPruneJob(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := s.store.PruneAcked(s.seq.Current())
			if err != nil {
				log.Printf("[service] prune failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[service] pruned %d acked outbox records", n)
			}
		}
	}
}
