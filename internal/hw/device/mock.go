package device

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/logic/params"
)

// MockDriver serves MockDevices by position. Used for development on a
// machine without a camera, and by tests.
type MockDriver struct {
	mu       sync.Mutex
	devices  map[params.Position]*MockDevice
	discover []params.Position
}

// NewMockDriver creates a driver serving the given devices.
func NewMockDriver(devs ...*MockDevice) *MockDriver {
	d := &MockDriver{devices: make(map[params.Position]*MockDevice)}
	for _, dev := range devs {
		d.devices[dev.info.Position] = dev
	}
	return d
}

// Discover opens the device registered for pos.
func (d *MockDriver) Discover(ctx context.Context, pos params.Position) (Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.discover = append(d.discover, pos)
	dev, ok := d.devices[pos]
	d.mu.Unlock()
	if !ok {
		debug.Trace("MockDriver: no device at %s", pos)
		return nil, fmt.Errorf("%w %s", ErrNotFound, pos)
	}
	dev.open()
	debug.Trace("MockDriver: opened %s", dev.info.ID)
	return dev, nil
}

// Discoveries returns the positions passed to Discover, in order.
func (d *MockDriver) Discoveries() []params.Position {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]params.Position(nil), d.discover...)
}

// OpenDevices counts devices currently open.
func (d *MockDriver) OpenDevices() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, dev := range d.devices {
		if dev.IsOpen() {
			n++
		}
	}
	return n
}

// MockCall records a device method invocation.
type MockCall struct {
	Method string
	Value  any
}

// MockDevice is a scriptable in-memory capture device.
type MockDevice struct {
	info Info
	caps Capabilities

	// FrameInterval paces ReadFrame. Zero means 33ms.
	FrameInterval time.Duration

	mu         sync.Mutex
	failures   map[string]error
	lockErr    error
	captureErr error
	gate       chan struct{}
	locked     bool
	opened     bool
	running    bool
	opens      int
	closes     int
	values     map[string]any
	calls      []MockCall
	captures   int
	frame      []byte
}

// NewMockDevice creates a device at pos advertising every mode, zoom 1-10x
// and a flash.
func NewMockDevice(id string, pos params.Position) *MockDevice {
	return &MockDevice{
		info: Info{ID: id, Name: "Mock " + pos.String() + " camera", Position: pos},
		caps: Capabilities{
			FocusModes:           []params.Mode{params.ContinuousAuto, params.Locked, params.Custom},
			ExposureModes:        []params.Mode{params.ContinuousAuto, params.Locked, params.Custom},
			WhiteBalanceModes:    []params.Mode{params.ContinuousAuto, params.Locked, params.Custom},
			StabilizationModes:   []params.StabilizationMode{params.StabilizationOff, params.StabilizationStandard, params.StabilizationCinematic, params.StabilizationAuto},
			FocusPointOfInterest: true,
			MinZoom:              params.MinZoom,
			MaxZoom:              params.MaxZoom,
			HasFlash:             pos == params.Back,
		},
		failures: make(map[string]error),
		values:   make(map[string]any),
	}
}

// WithCapabilities replaces the advertised capabilities.
func (m *MockDevice) WithCapabilities(c Capabilities) *MockDevice {
	m.mu.Lock()
	m.caps = c
	m.mu.Unlock()
	return m
}

// FailAxis makes the setter for axis return err.
func (m *MockDevice) FailAxis(axis string, err error) {
	m.mu.Lock()
	m.failures[axis] = err
	m.mu.Unlock()
}

// FailLock makes Lock return err.
func (m *MockDevice) FailLock(err error) {
	m.mu.Lock()
	m.lockErr = err
	m.mu.Unlock()
}

// FailCapture makes CapturePhoto return err.
func (m *MockDevice) FailCapture(err error) {
	m.mu.Lock()
	m.captureErr = err
	m.mu.Unlock()
}

// HoldCaptures makes CapturePhoto block until the returned release
// function is called.
func (m *MockDevice) HoldCaptures() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Value returns the last value written to axis.
func (m *MockDevice) Value(axis string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[axis]
	return v, ok
}

// SetValue seeds the current value of an axis.
func (m *MockDevice) SetValue(axis string, v any) {
	m.mu.Lock()
	m.values[axis] = v
	m.mu.Unlock()
}

// Calls returns recorded calls.
func (m *MockDevice) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount counts recorded calls to method.
func (m *MockDevice) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// IsOpen reports whether the device is open.
func (m *MockDevice) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

// IsRunning reports whether the device is streaming.
func (m *MockDevice) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// IsLocked reports whether the configuration lock is held.
func (m *MockDevice) IsLocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locked
}

// Captures counts CapturePhoto calls that reached the hardware.
func (m *MockDevice) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

func (m *MockDevice) open() {
	m.mu.Lock()
	m.opened = true
	m.opens++
	m.mu.Unlock()
}

func (m *MockDevice) Info() Info { return m.info }

func (m *MockDevice) Capabilities() Capabilities {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.caps
}

func (m *MockDevice) Lock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: "Lock"})
	if m.lockErr != nil {
		return m.lockErr
	}
	if m.locked {
		return ErrLocked
	}
	m.locked = true
	return nil
}

func (m *MockDevice) Unlock() {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "Unlock"})
	m.locked = false
	m.mu.Unlock()
}

func (m *MockDevice) SetPreset(p params.Preset) error {
	return m.set(AxisPreset, p, false)
}

func (m *MockDevice) SetFocusMode(mode params.Mode) error {
	return m.set(AxisFocus, mode, true)
}

func (m *MockDevice) SetFocusPoint(pt params.Point) error {
	return m.set(AxisFocusPoint, pt, true)
}

func (m *MockDevice) SetExposureMode(mode params.Mode) error {
	return m.set(AxisExposure, mode, true)
}

func (m *MockDevice) SetExposureBias(ev float64) error {
	return m.set(AxisExposureBias, ev, true)
}

func (m *MockDevice) SetISO(iso float64) error {
	return m.set(AxisISO, iso, true)
}

func (m *MockDevice) SetWhiteBalanceMode(mode params.Mode) error {
	return m.set(AxisWhiteBalance, mode, true)
}

func (m *MockDevice) SetZoom(z float64) error {
	m.mu.Lock()
	lo, hi := m.caps.MinZoom, m.caps.MaxZoom
	m.mu.Unlock()
	if z < lo || z > hi {
		return fmt.Errorf("zoom %g outside device range [%g, %g]", z, lo, hi)
	}
	return m.set(AxisZoom, z, true)
}

func (m *MockDevice) SetStabilization(mode params.StabilizationMode) error {
	return m.set(AxisStabilization, mode, true)
}

func (m *MockDevice) set(axis string, v any, needLock bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: "Set:" + axis, Value: v})
	if !m.opened {
		return ErrClosed
	}
	if needLock && !m.locked {
		return ErrNotLocked
	}
	if err := m.failures[axis]; err != nil {
		return err
	}
	m.values[axis] = v
	debug.Prop(m.info.ID, axis, v)
	return nil
}

func (m *MockDevice) StartRunning() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: "StartRunning"})
	if !m.opened {
		return ErrClosed
	}
	m.running = true
	return nil
}

func (m *MockDevice) StopRunning() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: "StopRunning"})
	m.running = false
	return nil
}

func (m *MockDevice) ReadFrame(ctx context.Context) ([]byte, error) {
	interval := m.FrameInterval
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	t := time.NewTimer(interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil, ErrNotRunning
	}
	if m.frame == nil {
		m.frame = syntheticJPEG(64, 48, 128)
	}
	return m.frame, nil
}

func (m *MockDevice) CapturePhoto(ctx context.Context, flash params.FlashMode) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: "CapturePhoto", Value: flash})
	m.captures++
	gate := m.gate
	open := m.opened
	m.mu.Unlock()

	if !open {
		return nil, ErrClosed
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	return syntheticJPEG(320, 240, 200), nil
}

func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: "Close"})
	if !m.opened {
		return nil
	}
	m.opened = false
	m.running = false
	m.locked = false
	m.closes++
	return nil
}

// syntheticJPEG encodes a flat gray frame.
func syntheticJPEG(w, h int, gray uint8) []byte {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = gray
	}
	img.Set(0, 0, color.Gray{Y: 255 - gray})
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80})
	return buf.Bytes()
}
