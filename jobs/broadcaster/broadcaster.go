package broadcaster

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"rcucell/infra/store"
)

// MaxRetries is how many failed sends a record gets before it is left in
// FAILED for good.
const MaxRetries = 5

// Broadcaster drains the store's outbox to a Publisher, oldest version
// first.
type Broadcaster struct {
	store    *store.Store
	pub      Publisher
	interval time.Duration
}

func New(
	s *store.Store,
	pub Publisher,
	interval time.Duration,
) *Broadcaster {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Broadcaster{
		store:    s,
		pub:      pub,
		interval: interval,
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run recovers records an earlier run left in flight, then drains the
// outbox every interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) error {
	log.Println("[broadcaster] started")

	if n, err := b.RecoverSent(); err != nil {
		log.Printf("[broadcaster] recover failed: %v", err)
	} else if n > 0 {
		log.Printf("[broadcaster] recovered %d in-flight records", n)
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[broadcaster] stopped")
			return nil

		case <-ticker.C:
			if _, err := b.DrainOnce(ctx); err != nil {
				log.Printf("[broadcaster] drain failed: %v", err)
			}
		}
	}
}

// ------------------------------------------------
// RECOVERY
// ------------------------------------------------

// RecoverSent moves records stuck in SENT back to FAILED so the next drain
// resends them. A process that dies between marking a record SENT and
// recording the outcome leaves it there. The attempt is not counted, since
// nothing says it reached the publisher; the record may be delivered twice.
func (b *Broadcaster) RecoverSent() (int, error) {
	n := 0
	err := b.store.ScanByState(store.StateSent, func(version uint64, rec store.Record) error {
		n++
		return b.store.UpdateState(version, store.StateFailed, rec.Retries)
	})
	return n, errors.Wrap(err, "broadcaster: recover sent")
}

// ------------------------------------------------
// DRAIN
// ------------------------------------------------

// DrainOnce retries FAILED records that still have attempts left, then
// sends every NEW one. It returns how many records were acknowledged.
func (b *Broadcaster) DrainOnce(ctx context.Context) (int, error) {
	acked := 0
	send := func(version uint64, rec store.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.State == store.StateFailed && rec.Retries >= MaxRetries {
			return nil
		}
		ok, err := b.deliver(ctx, version, rec)
		if ok {
			acked++
		}
		return err
	}

	if err := b.store.ScanByState(store.StateFailed, send); err != nil {
		return acked, errors.Wrap(err, "broadcaster: scan failed")
	}
	if err := b.store.ScanByState(store.StateNew, send); err != nil {
		return acked, errors.Wrap(err, "broadcaster: scan new")
	}
	return acked, nil
}

func (b *Broadcaster) deliver(
	ctx context.Context,
	version uint64,
	rec store.Record,
) (bool, error) {
	if err := b.store.UpdateState(version, store.StateSent, rec.Retries); err != nil {
		return false, err
	}

	var value []byte
	if rec.Kind == store.KindPublish {
		value = rec.Payload
	}
	key := []byte(strconv.FormatUint(version, 10))

	if err := b.pub.Publish(ctx, key, value); err != nil {
		log.Printf(
			"[broadcaster] %s version=%d attempt=%d failed: %v",
			rec.Kind, version, rec.Retries+1, err,
		)
		// retried on the next tick
		return false, b.store.UpdateState(version, store.StateFailed, rec.Retries+1)
	}

	return true, b.store.UpdateState(version, store.StateAcked, rec.Retries)
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.pub.Close()
}
