package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/events"
	"github.com/cjeanneret/CamGo/internal/web"
)

// eventSink consumes bus events on the relay goroutine: photos are written
// to outDir and every event is forwarded to the web status stream.
type eventSink struct {
	outDir      string
	broadcaster *web.StatusBroadcaster
	saved       atomic.Int64
}

func (s *eventSink) handle(ev events.Event) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(ev)
	}
	switch ev.Type {
	case events.TypePhoto:
		if s.outDir == "" {
			return
		}
		path, err := savePhoto(s.outDir, ev)
		if err != nil {
			debug.Error(fmt.Errorf("save photo %s: %w", ev.CaptureID, err))
			return
		}
		s.saved.Add(1)
		debug.Info("Photo saved: %s", path)
	case events.TypeError:
		debug.Live("Error event (%s): %v", ev.Kind(), ev.Err)
	}
}

// Saved returns how many photos were written.
func (s *eventSink) Saved() int64 { return s.saved.Load() }

// savePhoto writes a photo event as <time>-<capture id>.jpg under dir.
func savePhoto(dir string, ev events.Event) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	id := ev.CaptureID
	if len(id) > 8 {
		id = id[:8]
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.jpg", ts.Format("20060102-150405.000"), id))
	if err := os.WriteFile(path, ev.Photo, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
