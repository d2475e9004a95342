package store

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cockroachdb/errors"
)

// -------------------- State --------------------

// State is where an outbox record is in its delivery lifecycle.
type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Kind says what happened to the cell.
type Kind uint8

const (
	KindPublish Kind = iota + 1
	KindClear
)

func (k Kind) String() string {
	switch k {
	case KindPublish:
		return "publish"
	case KindClear:
		return "clear"
	default:
		return "unknown"
	}
}

// -------------------- Record --------------------

// Record is one outbox entry. Payload is the encoded document for a
// publish and empty for a clear.
type Record struct {
	State       State
	Kind        Kind
	Retries     uint32
	LastAttempt int64
	Payload     []byte
}

const recordHeaderSize = 1 + 1 + 4 + 8 + 4

var errCorruptRecord = errors.New("store: corrupt outbox record")

// binary encoding: [state:1][kind:1][retries:4][lastAttempt:8][crc:4][payload]
func encodeRecord(r Record) []byte {
	buf := make([]byte, recordHeaderSize+len(r.Payload))
	buf[0] = byte(r.State)
	buf[1] = byte(r.Kind)
	binary.BigEndian.PutUint32(buf[2:6], r.Retries)
	binary.BigEndian.PutUint64(buf[6:14], uint64(r.LastAttempt))
	binary.BigEndian.PutUint32(buf[14:18], crc32.ChecksumIEEE(r.Payload))
	copy(buf[recordHeaderSize:], r.Payload)
	return buf
}

// decodeRecord copies the payload; pebble owns b only until the next
// iterator step.
func decodeRecord(b []byte) (Record, error) {
	if len(b) < recordHeaderSize {
		return Record{}, errors.Wrapf(errCorruptRecord, "length %d", len(b))
	}
	payload := append([]byte(nil), b[recordHeaderSize:]...)
	if crc32.ChecksumIEEE(payload) != binary.BigEndian.Uint32(b[14:18]) {
		return Record{}, errors.Wrap(errCorruptRecord, "checksum mismatch")
	}
	return Record{
		State:       State(b[0]),
		Kind:        Kind(b[1]),
		Retries:     binary.BigEndian.Uint32(b[2:6]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[6:14])),
		Payload:     payload,
	}, nil
}
