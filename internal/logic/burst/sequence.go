// Package burst runs multi-shot capture sequences (burst and self-timer)
// on top of a session.
package burst

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/logic/session"
)

// MaxCount is the largest burst allowed.
const MaxCount = 10

// TimerOptions are the self-timer delays offered by the UI. RunTimer
// accepts any positive delay.
var TimerOptions = []time.Duration{3 * time.Second, 5 * time.Second, 10 * time.Second}

// Shooter issues one capture request. *session.Session implements it.
type Shooter interface {
	CapturePhoto() *session.Capture
}

// Sequence contains high-level logic for multi-shot captures.
type Sequence struct {
	shooter Shooter
	tick    time.Duration // countdown log granularity
}

func NewSequence(s Shooter) *Sequence {
	return &Sequence{shooter: s, tick: time.Second}
}

// Params defines a burst.
type Params struct {
	Count    int           // number of shots, 1..MaxCount
	Interval time.Duration // delay between shot requests
}

// Validate checks the burst bounds.
func (p Params) Validate() error {
	if p.Count < 1 || p.Count > MaxCount {
		return fmt.Errorf("burst count %d out of range [1, %d]", p.Count, MaxCount)
	}
	if p.Interval < 0 {
		return fmt.Errorf("burst interval must not be negative, got %v", p.Interval)
	}
	return nil
}

// RunBurst issues p.Count captures spaced by p.Interval and returns every
// terminal result, in issue order. Cancelling ctx stops issuing new
// captures; those already issued are still awaited and returned along with
// ctx's error.
func (s *Sequence) RunBurst(ctx context.Context, p Params) ([]session.Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	debug.Section("Burst")
	debug.Live("Burst: %d shots every %v", p.Count, p.Interval)

	var (
		issued []*session.Capture
		runErr error
	)
	for i := 0; i < p.Count; i++ {
		if i > 0 && p.Interval > 0 {
			t := time.NewTimer(p.Interval)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		c := s.shooter.CapturePhoto()
		debug.Verbose("Burst: shot %d/%d requested (%s)", i+1, p.Count, c.ID())
		issued = append(issued, c)
	}

	results := make([]session.Result, 0, len(issued))
	failed := 0
	for _, c := range issued {
		r := c.Result()
		if r.Err != nil {
			failed++
		}
		results = append(results, r)
	}
	debug.Live("Burst: %d shots, %d failed", len(results), failed)
	return results, runErr
}

// RunTimer waits delay, then captures one photo and waits for its result.
// Cancelling ctx during the countdown aborts without capturing.
func (s *Sequence) RunTimer(ctx context.Context, delay time.Duration) (session.Result, error) {
	if delay <= 0 {
		return session.Result{}, fmt.Errorf("timer delay must be positive, got %v", delay)
	}
	debug.Live("Timer: %v", delay)

	deadline := time.NewTimer(delay)
	defer deadline.Stop()
	tick := time.NewTicker(s.tick)
	defer tick.Stop()
	remaining := delay
	for {
		select {
		case <-ctx.Done():
			debug.Live("Timer: cancelled")
			return session.Result{}, ctx.Err()
		case <-tick.C:
			remaining -= s.tick
			if remaining > 0 {
				debug.Verbose("Timer: %v", remaining)
			}
			continue
		case <-deadline.C:
		}
		break
	}

	c := s.shooter.CapturePhoto()
	select {
	case <-c.Done():
		return c.Result(), nil
	case <-ctx.Done():
		// the capture is already in the pipeline; its result still reaches the event stream
		return session.Result{ID: c.ID()}, ctx.Err()
	}
}
