package codec

import (
	"math"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"rcucell/domain/document"
)

// Serializer turns documents into bytes for the store and the outbox.
type Serializer interface {
	Name() string
	Encode(*document.Document) ([]byte, error)
	Decode([]byte) (*document.Document, error)
}

var (
	ErrNotDocument     = errors.New("codec: payload is not a document")
	ErrUnknownFormat   = errors.New("codec: unknown format")
	ErrVersionTooLarge = errors.New("codec: version exceeds 2^53")
)

const maxExactVersion = 1 << 53

// ByName returns the serializer registered under name ("proto" or "json").
func ByName(name string) (Serializer, error) {
	switch strings.ToLower(name) {
	case "", "proto", "protobuf":
		return ProtoSerializer{}, nil
	case "json":
		return JSONSerializer{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", name)
	}
}

// ToStruct is the wire shape shared by every encoding and by the gRPC API:
//
//	{"id": "...", "version": 7, "published_at": "RFC3339", "body": {...}}
func ToStruct(d *document.Document) (*structpb.Struct, error) {
	if d.Version > maxExactVersion {
		return nil, errors.Wrapf(ErrVersionTooLarge, "version %d", d.Version)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":           structpb.NewStringValue(d.ID.String()),
		"version":      structpb.NewNumberValue(float64(d.Version)),
		"published_at": structpb.NewStringValue(d.PublishedAt.Format(time.RFC3339Nano)),
		"body":         structpb.NewStructValue(d.Body),
	}}, nil
}

// FromStruct is the inverse of ToStruct.
func FromStruct(s *structpb.Struct) (*document.Document, error) {
	f := s.GetFields()

	id, err := uuid.Parse(f["id"].GetStringValue())
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "codec: id"), ErrNotDocument)
	}

	ver, ok := f["version"].GetKind().(*structpb.Value_NumberValue)
	if !ok || ver.NumberValue < 0 || ver.NumberValue > maxExactVersion || ver.NumberValue != math.Trunc(ver.NumberValue) {
		return nil, errors.Wrap(ErrNotDocument, "codec: version")
	}

	at, err := time.Parse(time.RFC3339Nano, f["published_at"].GetStringValue())
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "codec: published_at"), ErrNotDocument)
	}

	body := f["body"].GetStructValue()
	if body == nil {
		return nil, errors.Wrap(ErrNotDocument, "codec: body")
	}

	return &document.Document{
		ID:          id,
		Version:     uint64(ver.NumberValue),
		Body:        body,
		PublishedAt: at,
	}, nil
}

// ---------- Protobuf ----------

type ProtoSerializer struct{}

func (ProtoSerializer) Name() string { return "proto" }

func (ProtoSerializer) Encode(d *document.Document) ([]byte, error) {
	s, err := ToStruct(d)
	if err != nil {
		return nil, err
	}
	b, err := proto.Marshal(s)
	return b, errors.Wrap(err, "codec: proto marshal")
}

func (ProtoSerializer) Decode(b []byte) (*document.Document, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "codec: proto unmarshal"), ErrNotDocument)
	}
	return FromStruct(&s)
}

// ---------- JSON ----------

type JSONSerializer struct{}

func (JSONSerializer) Name() string { return "json" }

func (JSONSerializer) Encode(d *document.Document) ([]byte, error) {
	s, err := ToStruct(d)
	if err != nil {
		return nil, err
	}
	b, err := protojson.Marshal(s)
	return b, errors.Wrap(err, "codec: json marshal")
}

func (JSONSerializer) Decode(b []byte) (*document.Document, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(b, &s); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "codec: json unmarshal"), ErrNotDocument)
	}
	return FromStruct(&s)
}

// ParseBody parses a JSON object into a document body.
func ParseBody(data []byte) (*structpb.Struct, error) {
	var s structpb.Struct
	if err := protojson.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "codec: parse body")
	}
	return &s, nil
}
