package codec

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"rcucell/domain/document"
)

func sampleDocument(t *testing.T) *document.Document {
	t.Helper()
	body, err := structpb.NewStruct(map[string]any{
		"name":    "edge",
		"weights": []any{1.0, 2.5},
		"nested":  map[string]any{"on": true},
	})
	require.NoError(t, err)
	return document.New(42, body, time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC))
}

func TestSerializersPreserveDocuments(t *testing.T) {
	d := sampleDocument(t)
	for _, name := range []string{"proto", "json"} {
		t.Run(name, func(t *testing.T) {
			s, err := ByName(name)
			require.NoError(t, err)
			require.Equal(t, name, s.Name())

			b, err := s.Encode(d)
			require.NoError(t, err)
			got, err := s.Decode(b)
			require.NoError(t, err)

			require.Equal(t, d.ID, got.ID)
			require.Equal(t, d.Version, got.Version)
			require.True(t, d.PublishedAt.Equal(got.PublishedAt))
			require.True(t, proto.Equal(d.Body, got.Body))
		})
	}
}

func TestByNameRejectsUnknown(t *testing.T) {
	_, err := ByName("yaml")
	require.True(t, errors.Is(err, ErrUnknownFormat))
}

func TestDecodeRejectsForeignPayloads(t *testing.T) {
	_, err := JSONSerializer{}.Decode([]byte(`{"id":"nope"}`))
	require.True(t, errors.Is(err, ErrNotDocument))

	_, err = ProtoSerializer{}.Decode([]byte{0xff, 0xff})
	require.True(t, errors.Is(err, ErrNotDocument))

	s, err := ToStruct(sampleDocument(t))
	require.NoError(t, err)
	delete(s.Fields, "body")
	_, err = FromStruct(s)
	require.True(t, errors.Is(err, ErrNotDocument))
}

func TestToStructRejectsInexactVersions(t *testing.T) {
	d := sampleDocument(t)
	d.Version = 1<<53 + 1
	_, err := ToStruct(d)
	require.True(t, errors.Is(err, ErrVersionTooLarge))
}

func TestParseBody(t *testing.T) {
	body, err := ParseBody([]byte(`{"limit": 10, "tags": ["a"]}`))
	require.NoError(t, err)
	require.Equal(t, 10.0, body.Fields["limit"].GetNumberValue())

	_, err = ParseBody([]byte(`[1,2]`))
	require.Error(t, err)
}
