package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// ErrNotFound is returned when the requested key does not exist.
var ErrNotFound = errors.New("store: not found")

var (
	latestKey    = []byte("doc/latest")
	lastKey      = []byte("meta/last_version")
	outboxPrefix = []byte("outbox/")
	outboxUpper  = []byte("outbox/~")
)

// Store persists the latest published document and the outbox of cell
// changes waiting to be broadcast.
type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "store: open %s", dir)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// -------------------- Latest --------------------

// Publish makes payload the latest document and queues a publish record
// under version, atomically.
func (s *Store) Publish(version uint64, payload []byte) error {
	latest := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(latest[:8], version)
	copy(latest[8:], payload)

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(latestKey, latest, nil); err != nil {
		return errors.Wrap(err, "store: stage latest")
	}
	rec := Record{State: StateNew, Kind: KindPublish, Payload: payload}
	if err := b.Set(keyFor(version), encodeRecord(rec), nil); err != nil {
		return errors.Wrap(err, "store: stage outbox")
	}
	if err := stageLastVersion(b, version); err != nil {
		return err
	}
	return errors.Wrapf(b.Commit(pebble.Sync), "store: commit publish %d", version)
}

// Clear drops the latest document and queues a clear record under
// version, atomically.
func (s *Store) Clear(version uint64) error {
	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Delete(latestKey, nil); err != nil {
		return errors.Wrap(err, "store: stage delete")
	}
	rec := Record{State: StateNew, Kind: KindClear}
	if err := b.Set(keyFor(version), encodeRecord(rec), nil); err != nil {
		return errors.Wrap(err, "store: stage outbox")
	}
	if err := stageLastVersion(b, version); err != nil {
		return err
	}
	return errors.Wrapf(b.Commit(pebble.Sync), "store: commit clear %d", version)
}

// Latest returns the last published document, or ErrNotFound after a
// Clear or on an empty store.
func (s *Store) Latest() (version uint64, payload []byte, err error) {
	val, closer, err := s.db.Get(latestKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, errors.Wrap(err, "store: get latest")
	}
	defer closer.Close()

	if len(val) < 8 {
		return 0, nil, errors.Newf("store: latest value too short (%d bytes)", len(val))
	}
	return binary.BigEndian.Uint64(val[:8]), append([]byte(nil), val[8:]...), nil
}

// LastVersion returns the highest version ever handed to Publish or
// Clear, or 0 when there is none. The mark survives PruneAcked; the outbox
// is only consulted for stores written before the mark existed.
func (s *Store) LastVersion() (uint64, error) {
	var mark uint64
	val, closer, err := s.db.Get(lastKey)
	switch {
	case err == nil:
		if len(val) == 8 {
			mark = binary.BigEndian.Uint64(val)
		}
		closer.Close()
	case !errors.Is(err, pebble.ErrNotFound):
		return 0, errors.Wrap(err, "store: get last version")
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: outboxPrefix,
		UpperBound: outboxUpper,
	})
	if err != nil {
		return 0, errors.Wrap(err, "store: iterate outbox")
	}
	defer iter.Close()

	if !iter.Last() {
		return mark, errors.Wrap(iter.Error(), "store: last outbox record")
	}
	newest, err := parseKey(iter.Key())
	if err != nil {
		return 0, err
	}
	return max(mark, newest), nil
}

// stageLastVersion records version as the high-water mark. Callers hand
// versions to the store in increasing order.
func stageLastVersion(b *pebble.Batch, version uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], version)
	return errors.Wrap(b.Set(lastKey, buf[:], nil), "store: stage last version")
}

// -------------------- Outbox --------------------

// Get returns the outbox record stored under version.
func (s *Store) Get(version uint64) (Record, error) {
	val, closer, err := s.db.Get(keyFor(version))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "store: get %d", version)
	}
	defer closer.Close()

	return decodeRecord(val)
}

// UpdateState moves a record to state after a send, ack or failure.
func (s *Store) UpdateState(version uint64, state State, retries uint32) error {
	rec, err := s.Get(version)
	if err != nil {
		return err
	}
	rec.State = state
	rec.Retries = retries
	rec.LastAttempt = time.Now().UnixNano()
	return errors.Wrapf(
		s.db.Set(keyFor(version), encodeRecord(rec), pebble.Sync),
		"store: update %d", version,
	)
}

// Delete removes one record.
func (s *Store) Delete(version uint64) error {
	return errors.Wrapf(s.db.Delete(keyFor(version), pebble.Sync), "store: delete %d", version)
}

// ScanByState calls fn, in version order, for every record in state.
// This is used by the broadcaster.
func (s *Store) ScanByState(
	state State,
	fn func(version uint64, rec Record) error,
) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: outboxPrefix,
		UpperBound: outboxUpper,
	})
	if err != nil {
		return errors.Wrap(err, "store: iterate outbox")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}
		if rec.State != state {
			continue
		}

		version, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(version, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

// PruneAcked deletes acknowledged records up to and including version and
// reports how many were removed.
func (s *Store) PruneAcked(upTo uint64) (int, error) {
	var victims [][]byte
	err := s.ScanByState(StateAcked, func(version uint64, _ Record) error {
		if version <= upTo {
			victims = append(victims, keyFor(version))
		}
		return nil
	})
	if err != nil || len(victims) == 0 {
		return 0, err
	}

	b := s.db.NewBatch()
	defer b.Close()
	for _, k := range victims {
		if err := b.Delete(k, nil); err != nil {
			return 0, errors.Wrap(err, "store: stage prune")
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, errors.Wrap(err, "store: commit prune")
	}
	return len(victims), nil
}

// -------------------- Helpers --------------------

func keyFor(version uint64) []byte {
	return []byte(fmt.Sprintf("outbox/%020d", version))
}

func parseKey(b []byte) (uint64, error) {
	var version uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, outboxPrefix)), "%d", &version)
	return version, errors.Wrapf(err, "store: parse key %q", b)
}
