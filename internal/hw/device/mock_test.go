package device

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cjeanneret/CamGo/internal/logic/params"
)

func TestMockDriver_Discover(t *testing.T) {
	back := NewMockDevice("b", params.Back)
	d := NewMockDriver(back)

	dev, err := d.Discover(context.Background(), params.Back)
	if err != nil {
		t.Fatalf("Discover(back): %v", err)
	}
	if dev.Info().ID != "b" || !back.IsOpen() {
		t.Errorf("got %+v, open=%v", dev.Info(), back.IsOpen())
	}

	if _, err := d.Discover(context.Background(), params.Front); !errors.Is(err, ErrNotFound) {
		t.Errorf("Discover(front) = %v, want ErrNotFound", err)
	}
	if got := d.Discoveries(); len(got) != 2 || got[1] != params.Front {
		t.Errorf("discoveries = %v", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Discover(ctx, params.Back); !errors.Is(err, context.Canceled) {
		t.Errorf("Discover with cancelled ctx = %v", err)
	}
}

func TestMockDevice_SettersNeedLock(t *testing.T) {
	m := NewMockDevice("b", params.Back)
	m.open()

	if err := m.SetISO(200); !errors.Is(err, ErrNotLocked) {
		t.Fatalf("SetISO without lock = %v, want ErrNotLocked", err)
	}
	if err := m.SetPreset(params.PresetHigh); err != nil {
		t.Fatalf("SetPreset needs no lock: %v", err)
	}

	if err := m.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := m.Lock(); !errors.Is(err, ErrLocked) {
		t.Errorf("second Lock = %v, want ErrLocked", err)
	}
	if err := m.SetISO(200); err != nil {
		t.Fatalf("SetISO: %v", err)
	}
	m.Unlock()

	if v, _ := m.Value(AxisISO); v != 200.0 {
		t.Errorf("iso = %v, want 200", v)
	}
	if m.IsLocked() {
		t.Error("still locked after Unlock")
	}
}

func TestMockDevice_FailAxisAndZoomRange(t *testing.T) {
	m := NewMockDevice("b", params.Back)
	m.open()
	_ = m.Lock()
	defer m.Unlock()

	boom := errors.New("boom")
	m.FailAxis(AxisExposureBias, boom)
	if err := m.SetExposureBias(1); !errors.Is(err, boom) {
		t.Errorf("SetExposureBias = %v, want injected error", err)
	}
	if _, ok := m.Value(AxisExposureBias); ok {
		t.Error("failed write should not be stored")
	}
	if err := m.SetZoom(11); err == nil {
		t.Error("zoom beyond device range should fail")
	}
}

func TestMockDevice_FramesAndCapture(t *testing.T) {
	m := NewMockDevice("b", params.Back)
	m.FrameInterval = time.Millisecond
	m.open()

	if _, err := m.ReadFrame(context.Background()); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("ReadFrame while stopped = %v", err)
	}
	_ = m.StartRunning()
	frame, err := m.ReadFrame(context.Background())
	if err != nil || !bytes.HasPrefix(frame, []byte{0xFF, 0xD8}) {
		t.Fatalf("ReadFrame = %v, %v", len(frame), err)
	}

	release := m.HoldCaptures()
	done := make(chan []byte, 1)
	go func() {
		b, _ := m.CapturePhoto(context.Background(), params.FlashOff)
		done <- b
	}()
	select {
	case <-done:
		t.Fatal("capture returned before release")
	case <-time.After(10 * time.Millisecond):
	}
	release()
	release() // idempotent
	if b := <-done; len(b) == 0 {
		t.Error("empty photo")
	}
	if m.Captures() != 1 {
		t.Errorf("captures = %d, want 1", m.Captures())
	}
}

func TestMockDevice_Close(t *testing.T) {
	m := NewMockDevice("b", params.Back)
	d := NewMockDriver(m)
	if _, err := d.Discover(context.Background(), params.Back); err != nil {
		t.Fatal(err)
	}
	_ = m.StartRunning()
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if m.IsOpen() || m.IsRunning() || d.OpenDevices() != 0 {
		t.Error("device should be closed and stopped")
	}
	if err := m.StartRunning(); !errors.Is(err, ErrClosed) {
		t.Errorf("StartRunning after Close = %v, want ErrClosed", err)
	}
}

func TestCapabilities(t *testing.T) {
	c := Capabilities{
		FocusModes: []params.Mode{params.ContinuousAuto},
		MinZoom:    1,
		MaxZoom:    1,
	}
	if !c.SupportsFocus(params.ContinuousAuto) || c.SupportsFocus(params.Locked) {
		t.Error("focus support mismatch")
	}
	if c.SupportsExposure(params.ContinuousAuto) {
		t.Error("no exposure modes advertised")
	}
	if c.SupportsZoom() {
		t.Error("fixed zoom range should not support zoom")
	}
}
