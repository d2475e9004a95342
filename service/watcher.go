package service

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"rcucell/infra/codec"
)

// Watcher publishes the contents of a JSON file every time it changes.
type Watcher struct {
	svc      *DocumentService
	path     string
	debounce time.Duration

	last []byte
}

func NewWatcher(svc *DocumentService, path string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{
		svc:      svc,
		path:     filepath.Clean(path),
		debounce: debounce,
	}
}

// Run reads the file once, then republishes it on every change until ctx
// is done. The parent directory is watched so editors that replace the
// file by rename keep triggering reloads.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "watcher: init")
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return errors.Wrapf(err, "watcher: watch %s", w.path)
	}

	w.reload(ctx)
	log.Printf("[watcher] watching %s", w.path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			// flush the burst before rereading, so we don't read half-written files
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("[watcher] %v", err)
		}
	}
}

// reload logs failures instead of returning them: a bad edit must not stop
// the watcher.
func (w *Watcher) reload(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		log.Printf("[watcher] read %s: %v", w.path, err)
		return
	}
	if bytes.Equal(data, w.last) {
		return
	}

	body, err := codec.ParseBody(data)
	if err != nil {
		log.Printf("[watcher] %s: %v", w.path, err)
		return
	}
	doc, err := w.svc.Publish(ctx, body)
	if err != nil {
		log.Printf("[watcher] publish %s: %v", w.path, err)
		return
	}

	w.last = data
	log.Printf("[watcher] %s -> version=%d", w.path, doc.Version)
}
