package burst

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cjeanneret/CamGo/internal/camerr"
	"github.com/cjeanneret/CamGo/internal/hw/device"
	"github.com/cjeanneret/CamGo/internal/logic/params"
	"github.com/cjeanneret/CamGo/internal/logic/session"
	"github.com/cjeanneret/CamGo/internal/logic/settings"
)

func newTestSession(t *testing.T, start bool) (*session.Session, *device.MockDevice) {
	t.Helper()
	dev := device.NewMockDevice("cam-back", params.Back)
	s := session.New(device.NewMockDriver(dev), settings.NewStore(params.Default(), nil), nil)
	t.Cleanup(func() { _ = s.Close() })
	if start {
		_ = s.Start()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return s, dev
}

func TestParams_Validate(t *testing.T) {
	cases := []struct {
		p     Params
		valid bool
	}{
		{Params{Count: 1}, true},
		{Params{Count: MaxCount, Interval: time.Second}, true},
		{Params{Count: 0}, false},
		{Params{Count: MaxCount + 1}, false},
		{Params{Count: 3, Interval: -time.Second}, false},
	}
	for _, tc := range cases {
		if err := tc.p.Validate(); (err == nil) != tc.valid {
			t.Errorf("Validate(%+v) = %v, want valid=%v", tc.p, err, tc.valid)
		}
	}
}

func TestRunBurst(t *testing.T) {
	s, dev := newTestSession(t, true)
	seq := NewSequence(s)

	results, err := seq.RunBurst(context.Background(), Params{Count: 3, Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("RunBurst: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	seen := map[string]bool{}
	for i, r := range results {
		if !r.OK() || len(r.Photo) == 0 {
			t.Errorf("shot %d failed: %v", i, r.Err)
		}
		seen[r.ID] = true
	}
	if len(seen) != 3 {
		t.Errorf("capture ids not distinct: %v", seen)
	}
	if dev.Captures() != 3 {
		t.Errorf("hardware captures = %d, want 3", dev.Captures())
	}
}

func TestRunBurst_StoppedSessionReportsEveryShot(t *testing.T) {
	s, dev := newTestSession(t, false)
	seq := NewSequence(s)

	results, err := seq.RunBurst(context.Background(), Params{Count: 2})
	if err != nil {
		t.Fatalf("RunBurst: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, r := range results {
		if !errors.Is(r.Err, camerr.ErrCaptureUnavailable) {
			t.Errorf("err = %v, want CAPTURE_UNAVAILABLE", r.Err)
		}
	}
	if dev.Captures() != 0 {
		t.Error("no hardware capture expected")
	}
}

func TestRunBurst_Cancelled(t *testing.T) {
	s, _ := newTestSession(t, true)
	seq := NewSequence(s)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()
	results, err := seq.RunBurst(ctx, Params{Count: MaxCount, Interval: 100 * time.Millisecond})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(results) == 0 || len(results) >= MaxCount {
		t.Errorf("results = %d, want the shots issued before cancel", len(results))
	}
	for _, r := range results {
		if !r.OK() {
			t.Errorf("issued shot should still complete: %v", r.Err)
		}
	}
}

func TestRunBurst_InvalidParams(t *testing.T) {
	s, dev := newTestSession(t, true)
	if _, err := NewSequence(s).RunBurst(context.Background(), Params{Count: 11}); err == nil {
		t.Fatal("expected error for count 11")
	}
	if dev.Captures() != 0 {
		t.Error("invalid burst must not capture")
	}
}

func TestRunTimer(t *testing.T) {
	s, dev := newTestSession(t, true)
	seq := NewSequence(s)
	seq.tick = 5 * time.Millisecond

	start := time.Now()
	r, err := seq.RunTimer(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("RunTimer: %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("timer fired early")
	}
	if !r.OK() || dev.Captures() != 1 {
		t.Errorf("result = %v, captures = %d", r.Err, dev.Captures())
	}
}

func TestRunTimer_CancelledDuringCountdown(t *testing.T) {
	s, dev := newTestSession(t, true)
	seq := NewSequence(s)
	seq.tick = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := seq.RunTimer(ctx, time.Second); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if dev.Captures() != 0 {
		t.Error("cancelled timer must not capture")
	}
}

func TestRunTimer_InvalidDelay(t *testing.T) {
	s, _ := newTestSession(t, true)
	if _, err := NewSequence(s).RunTimer(context.Background(), 0); err == nil {
		t.Error("expected error for zero delay")
	}
}

func TestTimerOptions(t *testing.T) {
	want := []time.Duration{3 * time.Second, 5 * time.Second, 10 * time.Second}
	if len(TimerOptions) != len(want) {
		t.Fatalf("TimerOptions = %v", TimerOptions)
	}
	for i := range want {
		if TimerOptions[i] != want[i] {
			t.Errorf("TimerOptions[%d] = %v, want %v", i, TimerOptions[i], want[i])
		}
	}
}
