// Package session owns the capture device and keeps it in sync with the
// settings store. Device work runs on a private worker goroutine; results,
// errors and state changes are reported through a Publisher.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/CamGo/internal/camerr"
	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/events"
	"github.com/cjeanneret/CamGo/internal/hw/device"
	"github.com/cjeanneret/CamGo/internal/logic/params"
	"github.com/cjeanneret/CamGo/internal/logic/settings"
)

var errOutputReleased = errors.New("photo output released")

// frameRetry is the pause after a transient frame read error.
const frameRetry = 100 * time.Millisecond

// Publisher receives session events. *events.Bus implements it.
type Publisher interface {
	Publish(ev events.Event)
}

// Option configures a Session.
type Option func(*Session)

// WithPreviewBuffer sets how many frames a preview subscriber may lag
// behind before the oldest are dropped.
func WithPreviewBuffer(n int) Option {
	return func(s *Session) { s.previewBuffer = n }
}

// Session binds one capture device to a preview and a photo output.
type Session struct {
	driver device.Driver
	store  *settings.Store
	pub    Publisher

	ctx    context.Context
	cancel context.CancelFunc
	jobs   *worker

	storeCancel func()
	listenDone  chan struct{}

	pending atomic.Bool   // a reconfiguration job is queued
	applied atomic.Uint64 // store version of the last reconfiguration

	// reconfigMu keeps reconfiguration from interleaving with itself.
	reconfigMu   sync.Mutex
	reconfigured bool // guarded by reconfigMu

	mu      sync.Mutex
	state   State
	input   device.Device
	output  *photoOutput
	closing bool

	disposed atomic.Bool
	inflight sync.WaitGroup

	previewBuffer int
	preview       *Preview
	pumpStop      func() // worker goroutine only
}

// New creates a session and queues the initial device setup and
// reconfiguration. It returns immediately.
func New(driver device.Driver, store *settings.Store, pub Publisher, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		driver:        driver,
		store:         store,
		pub:           pub,
		ctx:           ctx,
		cancel:        cancel,
		listenDone:    make(chan struct{}),
		previewBuffer: 2,
	}
	for _, o := range opts {
		o(s)
	}
	s.preview = newPreview(s.previewBuffer)
	s.jobs = newWorker()

	ch, storeCancel := store.Subscribe()
	s.storeCancel = storeCancel
	go s.listen(ch)

	s.requestReconfigure()
	return s
}

func (s *Session) listen(ch <-chan struct{}) {
	defer close(s.listenDone)
	for range ch {
		s.requestReconfigure()
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Device returns the bound device's identity, if any.
func (s *Session) Device() (device.Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input == nil {
		return device.Info{}, false
	}
	return s.input.Info(), true
}

// Capabilities returns what the bound device advertises.
func (s *Session) Capabilities() (device.Capabilities, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input == nil {
		return device.Capabilities{}, false
	}
	return s.input.Capabilities(), true
}

// Preview returns the live preview handle.
func (s *Session) Preview() *Preview { return s.preview }

// Start begins streaming frames. It returns at once; starting a running
// session does nothing. Starting before a device was found publishes a
// LIFECYCLE error.
func (s *Session) Start() error {
	if !s.submit(s.start) {
		return camerr.New(camerr.KindLifecycle, "start", errors.New("session disposed"))
	}
	return nil
}

// Stop halts streaming. It returns at once and is idempotent.
func (s *Session) Stop() error {
	if !s.submit(s.stop) {
		return camerr.New(camerr.KindLifecycle, "stop", errors.New("session disposed"))
	}
	return nil
}

// Flush waits until every job queued before the call has run, including a
// reconfiguration for the latest store change.
func (s *Session) Flush(ctx context.Context) error {
	if s.applied.Load() < s.store.Version() {
		s.requestReconfigure()
	}
	done := make(chan struct{})
	if !s.submit(func() { close(done) }) {
		return camerr.New(camerr.KindLifecycle, "flush", errors.New("session disposed"))
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CapturePhoto requests one still with the current flash mode. The
// returned handle receives exactly one Result, which is also published as
// a photo or error event. Without a bound photo output, or when not
// running, the request fails with CAPTURE_UNAVAILABLE and the device is
// not touched.
func (s *Session) CapturePhoto() *Capture {
	c := newCapture(uuid.NewString())

	s.mu.Lock()
	closing, state, out := s.closing, s.state, s.output
	s.mu.Unlock()

	if closing {
		c.finish(Result{Err: camerr.New(camerr.KindLifecycle, "capture", errors.New("session disposed"))}, nil)
		return c
	}
	if out == nil || state != Running {
		err := camerr.Newf(camerr.KindCaptureUnavailable, "capture", "session %s", state)
		debug.Live("Capture %s rejected: %v", c.id, err)
		s.complete(c, Result{Err: err})
		return c
	}

	flash := s.store.Current().FlashMode
	debug.Live("Capture %s submitted (flash %s)", c.id, flash)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		data, err := out.capture(context.Background(), flash)
		switch {
		case errors.Is(err, errOutputReleased):
			s.complete(c, Result{Err: camerr.New(camerr.KindCaptureUnavailable, "capture", err)})
		case err != nil:
			s.complete(c, Result{Err: camerr.New(camerr.KindSystem, "capture", err)})
		default:
			debug.Shot(c.id, len(data))
			s.complete(c, Result{Photo: data})
		}
	}()
	return c
}

// complete publishes the outcome before releasing c's waiters.
func (s *Session) complete(c *Capture, r Result) {
	c.finish(r, func(r Result) {
		if r.Err != nil {
			s.emit(events.Event{Type: events.TypeError, CaptureID: r.ID, Err: r.Err})
			return
		}
		s.emit(events.Event{Type: events.TypePhoto, CaptureID: r.ID, Photo: r.Photo})
	})
}

// Close releases the device and moves the session to Disposed. It waits
// for a capture already in the hardware; later calls on the session fail
// with LIFECYCLE and no more events are published.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return camerr.New(camerr.KindLifecycle, "close", errors.New("session disposed"))
	}
	s.closing = true
	s.mu.Unlock()

	s.storeCancel()
	<-s.listenDone
	s.cancel()

	s.jobs.submit(s.dispose)
	s.jobs.stop()
	s.inflight.Wait()
	return nil
}

func (s *Session) submit(job func()) bool {
	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()
	if closing {
		return false
	}
	return s.jobs.submit(job)
}

func (s *Session) requestReconfigure() {
	if !s.pending.CompareAndSwap(false, true) {
		return
	}
	ok := s.submit(func() {
		s.pending.Store(false)
		s.reconfigure()
	})
	if !ok {
		s.pending.Store(false)
	}
}

func (s *Session) emit(ev events.Event) {
	if s.pub == nil || s.disposed.Load() {
		return
	}
	s.pub.Publish(ev)
}

func (s *Session) report(err error) {
	debug.Error(err)
	s.emit(events.Event{Type: events.TypeError, Err: err})
}

func (s *Session) setState(to State) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	if from == to {
		return
	}
	debug.State(from.String(), to.String())
	s.emit(events.Event{Type: events.TypeState, State: to.String()})
}

func (s *Session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// setup performs Uninitialized -> Configured.
func (s *Session) setup(pos params.Position) bool {
	debug.Section("Session setup")
	dev, err := s.driver.Discover(s.ctx, pos)
	if err != nil {
		if s.ctx.Err() == nil {
			s.report(camerr.New(camerr.KindDeviceUnavailable, "setup", err))
		}
		return false
	}
	info := dev.Info()
	debug.Info("Device selected: %s (%s, %s)", info.Name, info.ID, info.Position)

	s.mu.Lock()
	s.input = dev
	s.output = newPhotoOutput(dev)
	s.mu.Unlock()
	s.setState(Configured)
	return true
}

func (s *Session) start() {
	s.mu.Lock()
	state, dev := s.state, s.input
	s.mu.Unlock()

	switch state {
	case Running, Disposed:
		return
	case Uninitialized:
		s.report(camerr.New(camerr.KindLifecycle, "start", errors.New("no device configured")))
		return
	}
	if err := dev.StartRunning(); err != nil {
		s.report(camerr.New(camerr.KindSystem, "start", err))
		return
	}
	s.startPump(dev)
	s.preview.setRunning(true)
	s.setState(Running)
	debug.Live("Session started on %s", dev.Info().ID)
}

func (s *Session) stop() {
	s.mu.Lock()
	state, dev := s.state, s.input
	s.mu.Unlock()

	if state != Running {
		return
	}
	s.stopPump()
	if err := dev.StopRunning(); err != nil {
		s.report(camerr.New(camerr.KindSystem, "stop", err))
	}
	s.preview.setRunning(false)
	s.setState(Stopped)
	debug.Live("Session stopped")
}

func (s *Session) startPump(dev device.Device) {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.pumpStop = func() {
		cancel()
		<-done
	}
	go func() {
		defer close(done)
		for {
			frame, err := dev.ReadFrame(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, device.ErrNotRunning) || errors.Is(err, device.ErrClosed) {
					return
				}
				debug.Verbose("Preview: frame read failed: %v", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(frameRetry):
				}
				continue
			}
			s.preview.publish(frame)
		}
	}()
}

func (s *Session) stopPump() {
	if s.pumpStop != nil {
		s.pumpStop()
		s.pumpStop = nil
	}
}

func (s *Session) dispose() {
	s.mu.Lock()
	state, dev, out := s.state, s.input, s.output
	s.mu.Unlock()

	if out != nil {
		out.retire()
		out.drain()
	}
	s.stopPump()
	if dev != nil {
		if state == Running {
			if err := dev.StopRunning(); err != nil {
				debug.Error(err)
			}
		}
		if err := dev.Close(); err != nil {
			debug.Error(err)
		}
	}

	s.mu.Lock()
	s.input = nil
	s.output = nil
	s.mu.Unlock()

	s.preview.close()
	s.setState(Disposed)
	s.disposed.Store(true)
	debug.Info("Session disposed")
}
