// Package coordinator turns UI intents (taps, pinches, toggles, shutter
// presses) into store writes and session calls.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/cjeanneret/CamGo/internal/camerr"
	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/events"
	"github.com/cjeanneret/CamGo/internal/logic/burst"
	"github.com/cjeanneret/CamGo/internal/logic/geometry"
	"github.com/cjeanneret/CamGo/internal/logic/params"
	"github.com/cjeanneret/CamGo/internal/logic/session"
	"github.com/cjeanneret/CamGo/internal/logic/settings"
)

// zoomSnap is the relative distance within which a pinch sticks to a
// zoom step.
const zoomSnap = 0.03

// Coordinator wires one session and its store to the UI.
type Coordinator struct {
	store   *settings.Store
	session *session.Session
	seq     *burst.Sequence

	mu         sync.Mutex
	view       geometry.Size
	pinchStart float64
	pinching   bool
}

// New creates a coordinator.
func New(store *settings.Store, s *session.Session) *Coordinator {
	return &Coordinator{
		store:   store,
		session: s,
		seq:     burst.NewSequence(s),
	}
}

// Status is a snapshot for the UI.
type Status struct {
	State    string              `json:"state"`
	Device   string              `json:"device,omitempty"`
	Preview  bool                `json:"preview"`
	Params   params.ParameterSet `json:"params"`
	Scenes   []string            `json:"scenes"`
	HasFlash bool                `json:"has_flash"`
}

// Status reports the session state and current parameters.
func (c *Coordinator) Status() Status {
	st := Status{
		State:   c.session.State().String(),
		Preview: c.session.Preview().Running(),
		Params:  c.store.Current(),
		Scenes:  params.Scenes(),
	}
	if info, ok := c.session.Device(); ok {
		st.Device = info.Name
	}
	if caps, ok := c.session.Capabilities(); ok {
		st.HasFlash = caps.HasFlash
	}
	return st
}

// SetViewport records the size of the view the preview is drawn in.
func (c *Coordinator) SetViewport(view geometry.Size) {
	c.mu.Lock()
	c.view = view
	c.mu.Unlock()
}

func (c *Coordinator) viewport() geometry.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// TapToFocus moves the focus point to the tapped view point and keeps the
// current focus mode. Without a viewport the coordinates are taken as
// already normalized.
func (c *Coordinator) TapToFocus(x, y float64) (params.Point, error) {
	view := c.viewport()
	var pt params.Point
	if view.Valid() {
		r := c.store.Current().Preset.Resolution()
		frame := geometry.Size{Width: float64(r.Width), Height: float64(r.Height)}
		pt = geometry.ViewToDevice(view, frame, x, y)
	} else {
		pt = params.Point{X: x, Y: y}
	}
	debug.Live("Tap to focus at (%.3f, %.3f)", pt.X, pt.Y)

	return pt, c.store.Set(params.FieldFocusPoint, pt)
}

// BeginPinch records the zoom the gesture starts from.
func (c *Coordinator) BeginPinch() {
	z := c.store.Current().Zoom
	c.mu.Lock()
	c.pinchStart = z
	c.pinching = true
	c.mu.Unlock()
}

// Pinch applies a gesture scale relative to the zoom at BeginPinch.
func (c *Coordinator) Pinch(scale float64) (float64, error) {
	c.mu.Lock()
	start, ok := c.pinchStart, c.pinching
	c.mu.Unlock()
	if !ok {
		start = c.store.Current().Zoom
	}
	z := geometry.PinchZoom(start, scale, params.MinZoom, params.MaxZoom)
	z = geometry.SnapZoom(z, params.ZoomSteps, zoomSnap)
	return z, c.store.Set(params.FieldZoom, z)
}

// EndPinch finishes the gesture.
func (c *Coordinator) EndPinch() {
	c.mu.Lock()
	c.pinching = false
	c.mu.Unlock()
}

// SetField writes a field from its textual name and value. Text that does
// not parse is a VALIDATION error, like an out-of-range value.
func (c *Coordinator) SetField(name, value string) error {
	f, err := params.ParseField(name)
	if err != nil {
		return camerr.New(camerr.KindValidation, "set", err)
	}
	v, err := params.ParseValue(f, value)
	if err != nil {
		return &camerr.Error{Kind: camerr.KindValidation, Op: "set", Axis: f.String(), Err: err}
	}
	return c.store.Set(f, v)
}

// ApplyScene applies a named scene; unknown names reset to defaults.
func (c *Coordinator) ApplyScene(name string) bool {
	return c.store.ApplyPreset(name)
}

// Reset restores the default parameters.
func (c *Coordinator) Reset() { c.store.Reset() }

// CycleFlash moves to the next flash mode and returns it.
func (c *Coordinator) CycleFlash() (params.FlashMode, error) {
	next := c.store.Current().FlashMode.Next()
	return next, c.store.Set(params.FieldFlashMode, next)
}

// ViewAppeared starts the session.
func (c *Coordinator) ViewAppeared() error { return c.session.Start() }

// ViewDisappeared stops the session.
func (c *Coordinator) ViewDisappeared() error { return c.session.Stop() }

// Shutter captures one photo and waits for its result.
func (c *Coordinator) Shutter(ctx context.Context) (session.Result, error) {
	return c.session.CapturePhoto().Wait(ctx)
}

// Burst runs a burst sequence.
func (c *Coordinator) Burst(ctx context.Context, p burst.Params) ([]session.Result, error) {
	return c.seq.RunBurst(ctx, p)
}

// Timer runs a self-timer capture.
func (c *Coordinator) Timer(ctx context.Context, delay time.Duration) (session.Result, error) {
	return c.seq.RunTimer(ctx, delay)
}

// Relay forwards bus events to sink until ctx is done or the bus closes.
// sink runs on the relay goroutine, one event at a time.
func Relay(ctx context.Context, bus *events.Bus, sink func(events.Event)) {
	ch, unsub := bus.Subscribe()
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			sink(ev)
		}
	}
}
