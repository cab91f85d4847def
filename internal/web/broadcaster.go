package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/CamGo/internal/camerr"
	"github.com/cjeanneret/CamGo/internal/events"
)

// StatusEvent represents a single status message for SSE. Log lines carry
// only Level and Msg; bus events also carry Type and the event fields.
type StatusEvent struct {
	Time      string `json:"t"`
	Level     string `json:"l,omitempty"`
	Msg       string `json:"msg"`
	Type      string `json:"type,omitempty"`
	CaptureID string `json:"capture_id,omitempty"`
	Kind      string `json:"kind,omitempty"`
	State     string `json:"state,omitempty"`
	Bytes     int    `json:"bytes,omitempty"`
}

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Broadcast sends a log message to all subscribed clients.
// Messages are sent as JSON: {"t":"...","l":"info","msg":"..."}
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{
		Time:  time.Now().Format(time.RFC3339),
		Level: level,
		Msg:   msg,
	})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastEvent forwards a bus event. Photo bytes are not sent, only
// their size.
func (b *StatusBroadcaster) BroadcastEvent(ev events.Event) {
	b.send(eventMessage(ev))
}

func eventMessage(ev events.Event) StatusEvent {
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	se := StatusEvent{
		Time:      ts.Format(time.RFC3339),
		Level:     "info",
		Type:      string(ev.Type),
		CaptureID: ev.CaptureID,
	}
	switch ev.Type {
	case events.TypePhoto:
		se.Bytes = len(ev.Photo)
		se.Msg = "Photo captured"
	case events.TypeState:
		se.State = ev.State
		se.Msg = "Session " + ev.State
	case events.TypeError:
		se.Level = "error"
		se.Kind = camerr.KindOf(ev.Err).String()
		if ev.Err != nil {
			se.Msg = ev.Err.Error()
		}
	}
	return se
}

// send delivers evt to every client. Slow clients may miss messages
// (non-blocking, buffered).
func (b *StatusBroadcaster) send(evt StatusEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to SSE clients.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps StatusBroadcaster as io.Writer for use with log.SetOutput.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.BroadcastMsg(msg)
	}
	return len(p), nil
}
