package service

import (
	"log"

	"github.com/cockroachdb/errors"

	"rcucell/infra/store"
)

/*
Restore reloads the last published document from the store.

IMPORTANT:
- This MUST run before accepting traffic
- The outbox is NOT replayed here; the broadcaster picks up where it left off
*/
func (s *DocumentService) Restore() error {
	last, err := s.store.LastVersion()
	if err != nil {
		return errors.Wrap(err, "service: restore last version")
	}
	s.seq.Advance(last)

	version, payload, err := s.store.Latest()
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("[service] restore: nothing published (last seq = %d)", last)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "service: restore latest")
	}

	doc, err := s.ser.Decode(payload)
	if err != nil {
		return errors.Wrapf(err, "service: restore version %d with %s", version, s.ser.Name())
	}
	if doc.Version != version {
		return errors.Newf("service: stored version %d holds document version %d", version, doc.Version)
	}

	// Resume sequencing AFTER restore
	s.seq.Advance(version)
	s.cell.Write(doc)

	log.Printf("[service] restored version=%d (last seq = %d)", version, s.seq.Current())
	return nil
}
