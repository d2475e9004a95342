package document

import (
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Document is one published version of the cell's content.
//
// A Document is immutable once published: readers hold it through an
// rcu.ReadGuard and may keep it after newer versions replace it. Build a
// new Document instead of editing one.
type Document struct {
	ID          uuid.UUID
	Version     uint64
	Body        *structpb.Struct
	PublishedAt time.Time
}

// New builds a Document around a private copy of body.
func New(version uint64, body *structpb.Struct, now time.Time) *Document {
	if body == nil {
		body = &structpb.Struct{}
	}
	return &Document{
		ID:          uuid.New(),
		Version:     version,
		Body:        proto.Clone(body).(*structpb.Struct),
		PublishedAt: now.UTC(),
	}
}

// Size is the encoded size of the body in bytes.
func (d *Document) Size() int {
	return proto.Size(d.Body)
}

// Field returns a top-level body field, or nil.
func (d *Document) Field(name string) *structpb.Value {
	return d.Body.GetFields()[name]
}
