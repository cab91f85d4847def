package flash

import (
	"errors"
	"testing"
	"time"

	"github.com/cjeanneret/CamGo/internal/hw/gpio"
	"github.com/cjeanneret/CamGo/internal/logic/params"
)

// recordingDriver records GPIO calls for verification.
type recordingDriver struct {
	calls []gpioCall
	ready gpio.Level
}

type gpioCall struct {
	op    string
	pin   int
	level gpio.Level
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	d.calls = append(d.calls, gpioCall{op: "setup", pin: pin})
	return nil
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	d.calls = append(d.calls, gpioCall{op: "write", pin: pin, level: level})
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) {
	d.calls = append(d.calls, gpioCall{op: "read", pin: pin})
	return d.ready, nil
}

func (d *recordingDriver) Close() error { return nil }

func (d *recordingDriver) writeCalls() []gpioCall {
	var result []gpioCall
	for _, c := range d.calls {
		if c.op == "write" {
			result = append(result, c)
		}
	}
	return result
}

func testConfig(ready int) Config {
	return Config{TriggerPin: 17, ReadyPin: ready, Pulse: time.Microsecond, Settle: time.Microsecond}
}

func TestNew_TriggerParkedHigh(t *testing.T) {
	drv := &recordingDriver{}
	New(drv, testConfig(NoReadyPin))

	writes := drv.writeCalls()
	if len(writes) != 1 || writes[0].pin != 17 || writes[0].level != gpio.High {
		t.Errorf("init writes = %v, want trigger HIGH", writes)
	}
}

func TestFire_Sequence(t *testing.T) {
	drv := &recordingDriver{}
	f := New(drv, testConfig(NoReadyPin))
	drv.calls = nil // reset after init

	if err := f.Fire(); err != nil {
		t.Fatalf("Fire: %v", err)
	}

	expected := []struct {
		level gpio.Level
		desc  string
	}{
		{gpio.Low, "trigger LOW (fire)"},
		{gpio.High, "trigger HIGH (release)"},
	}
	writes := drv.writeCalls()
	if len(writes) != len(expected) {
		t.Fatalf("expected %d writes, got %d: %v", len(expected), len(writes), writes)
	}
	for i, exp := range expected {
		if writes[i].pin != 17 || writes[i].level != exp.level {
			t.Errorf("step %d (%s): pin=%d level=%v", i, exp.desc, writes[i].pin, writes[i].level)
		}
	}
}

func TestFire_NotCharged(t *testing.T) {
	drv := &recordingDriver{ready: gpio.Low}
	f := New(drv, testConfig(27))
	drv.calls = nil

	if err := f.Fire(); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Fire = %v, want ErrNotReady", err)
	}
	if w := drv.writeCalls(); len(w) != 0 {
		t.Errorf("trigger written while not charged: %v", w)
	}
}

func TestFire_Charged(t *testing.T) {
	drv := &recordingDriver{ready: gpio.High}
	f := New(drv, testConfig(27))
	if ok, _ := f.Ready(); !ok {
		t.Fatal("expected ready")
	}
	if err := f.Fire(); err != nil {
		t.Fatalf("Fire: %v", err)
	}
}

func TestShouldFire(t *testing.T) {
	cases := []struct {
		mode      params.FlashMode
		luminance float64
		want      bool
	}{
		{params.FlashOn, 250, true},
		{params.FlashOff, 5, false},
		{params.FlashAuto, 40, true},
		{params.FlashAuto, 120, false},
		{params.FlashAuto, 60, false},
	}
	for _, tc := range cases {
		if got := ShouldFire(tc.mode, tc.luminance, 60); got != tc.want {
			t.Errorf("ShouldFire(%s, %v) = %v, want %v", tc.mode, tc.luminance, got, tc.want)
		}
	}
}

func TestImplementsStrobe(t *testing.T) {
	var _ Strobe = New(&recordingDriver{}, testConfig(NoReadyPin))
	var _ Strobe = Nop{}
}
