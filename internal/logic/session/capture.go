package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cjeanneret/CamGo/internal/hw/device"
	"github.com/cjeanneret/CamGo/internal/logic/params"
)

// Result is the terminal outcome of one capture request: either Photo or
// Err is set, never both.
type Result struct {
	ID    string
	Photo []byte
	Err   error
}

// OK reports whether the capture produced a photo.
func (r Result) OK() bool { return r.Err == nil }

// Capture is the single-shot handle returned for each capture request.
type Capture struct {
	id   string
	done chan struct{}
	once sync.Once
	res  Result
}

func newCapture(id string) *Capture {
	return &Capture{id: id, done: make(chan struct{})}
}

// ID identifies the request. Photo and error events carry the same id.
func (c *Capture) ID() string { return c.id }

// Done is closed when the result is available.
func (c *Capture) Done() <-chan struct{} { return c.done }

// Result returns the terminal outcome. Only valid after Done is closed.
func (c *Capture) Result() Result {
	<-c.done
	return c.res
}

// Wait blocks until the capture finishes or ctx is done. Giving up on the
// wait does not cancel the capture.
func (c *Capture) Wait(ctx context.Context) (Result, error) {
	select {
	case <-c.done:
		return c.res, nil
	case <-ctx.Done():
		return Result{ID: c.id}, ctx.Err()
	}
}

// finish stores the outcome; only the first call has effect. announce, if
// set, sees the outcome before waiters are released.
func (c *Capture) finish(r Result, announce func(Result)) {
	c.once.Do(func() {
		r.ID = c.id
		c.res = r
		if announce != nil {
			announce(r)
		}
		close(c.done)
	})
}

// photoOutput serializes still captures on one device. Once retired it
// refuses new work, including captures already waiting for the hardware;
// drain waits for a capture already in it.
type photoOutput struct {
	mu      sync.Mutex // held while a capture is in the hardware
	dev     device.Device
	retired atomic.Bool
}

func newPhotoOutput(dev device.Device) *photoOutput {
	return &photoOutput{dev: dev}
}

func (o *photoOutput) capture(ctx context.Context, flash params.FlashMode) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.retired.Load() {
		return nil, errOutputReleased
	}
	return o.dev.CapturePhoto(ctx, flash)
}

// retire refuses further captures. It does not block.
func (o *photoOutput) retire() {
	o.retired.Store(true)
}

// drain waits for a capture in the hardware to return, then drops the
// device. Call after retire.
func (o *photoOutput) drain() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dev = nil
}
