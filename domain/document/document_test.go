package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestNewCopiesBody(t *testing.T) {
	body, err := structpb.NewStruct(map[string]any{"feature": true})
	require.NoError(t, err)

	d := New(3, body, time.Unix(100, 0))
	body.Fields["feature"] = structpb.NewBoolValue(false)

	require.True(t, d.Field("feature").GetBoolValue())
	require.Equal(t, uint64(3), d.Version)
	require.Equal(t, time.UTC, d.PublishedAt.Location())
	require.Positive(t, d.Size())
}

func TestNewWithoutBody(t *testing.T) {
	d := New(1, nil, time.Now())
	require.NotNil(t, d.Body)
	require.Nil(t, d.Field("missing"))
	require.Zero(t, d.Size())
}
