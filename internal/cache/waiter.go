package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// pollInterval is the fallback re-check period when no filesystem event
// arrives, e.g. when the platform watcher is unavailable.
const pollInterval = 25 * time.Millisecond

// waitFor blocks until the entry at path becomes readable and returns its
// payload, or fails with ErrTimeout once timeout elapses. The directory is
// watched with fsnotify so the entry is picked up as soon as it is renamed
// into place.
func waitFor(ctx context.Context, logger *log.Logger, path string, timeout time.Duration) (json.RawMessage, error) {
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Debug("fsnotify unavailable, polling", "error", err)
	} else {
		defer watcher.Close() //nolint:errcheck
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			logger.Debug("error adding dir to fsnotify watcher", "error", err)
		} else {
			events, errs = watcher.Events, watcher.Errors
		}
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		entry, err := readEntry(path)
		switch {
		case err == nil:
			return entry.Data, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrTimeout
		case <-ticker.C:
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Name != path || !(event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) {
				continue
			}
			logger.Debug("fsnotify event", "file", event.Name, "event", event.Op)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Debug("fsnotify error", "path", path, "error", err)
		}
	}
}
