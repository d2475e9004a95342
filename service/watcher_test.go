package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func currentField(svc *DocumentService, name string) string {
	g, err := svc.Current()
	if err != nil {
		return ""
	}
	defer g.Release()
	return g.Value().Field(name).GetStringValue()
}

func TestWatcherPublishesFileChanges(t *testing.T) {
	svc, _ := newService(t, t.TempDir(), 0)
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"state":"initial"}`), 0o644))

	w := NewWatcher(svc, path, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		return currentField(svc, "state") == "initial"
	}, 2*time.Second, 10*time.Millisecond)

	// a broken edit is logged and skipped
	require.NoError(t, os.WriteFile(path, []byte(`{"state":`), 0o644))
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, "initial", currentField(svc, "state"))

	// editors often write a temp file and rename it over the original
	tmp := filepath.Join(dir, "doc.json.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`{"state":"renamed"}`), 0o644))
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool {
		return currentField(svc, "state") == "renamed"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
