// Package flash drives an external strobe for still captures.
package flash

import (
	"errors"
	"sync"
	"time"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/gpio"
	"github.com/cjeanneret/CamGo/internal/logic/params"
)

// ErrNotReady means the strobe capacitor has not finished charging.
var ErrNotReady = errors.New("flash: not ready")

// NoReadyPin disables the ready line check.
const NoReadyPin = -1

// Strobe fires the flash once.
type Strobe interface {
	Fire() error
}

// Nop is a Strobe for devices without a flash.
type Nop struct{}

func (Nop) Fire() error { return nil }

// Config describes the wiring of a GPIOFlash.
type Config struct {
	TriggerPin int
	ReadyPin   int           // NoReadyPin if not wired
	Pulse      time.Duration // trigger hold time
	Settle     time.Duration // wait after the pulse before the exposure
}

// GPIOFlash is a strobe fired through the hot-shoe sync connector:
// - GND: connected to Raspberry Pi ground
// - TRIGGER: X-sync contact (fire by setting to LOW)
// - READY: optional open-collector charge indicator, pulled up (HIGH when charged)
//
// Fire sequence:
// 1. Check READY if wired
// 2. TRIGGER to LOW
// 3. Hold for the pulse width
// 4. TRIGGER back to HIGH
// 5. Wait for the light to settle
type GPIOFlash struct {
	mu   sync.Mutex
	gpio gpio.Driver
	cfg  Config
}

// New creates a GPIO strobe and parks the trigger line HIGH (inactive).
func New(g gpio.Driver, cfg Config) *GPIOFlash {
	_ = g.SetupPin(cfg.TriggerPin, gpio.Output)
	_ = g.WritePin(cfg.TriggerPin, gpio.High)
	if cfg.ReadyPin != NoReadyPin {
		_ = g.SetupPin(cfg.ReadyPin, gpio.InputPullUp)
	}
	return &GPIOFlash{gpio: g, cfg: cfg}
}

// Ready reports whether the strobe can fire.
func (f *GPIOFlash) Ready() (bool, error) {
	if f.cfg.ReadyPin == NoReadyPin {
		return true, nil
	}
	level, err := f.gpio.ReadPin(f.cfg.ReadyPin)
	if err != nil {
		return false, err
	}
	return level == gpio.High, nil
}

// Fire pulses the trigger line. Concurrent calls are serialized.
func (f *GPIOFlash) Fire() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ready, err := f.Ready()
	if err != nil {
		return err
	}
	if !ready {
		debug.Live("Flash: not charged, skipping")
		return ErrNotReady
	}

	debug.Verbose("Flash: firing (pin %d -> LOW for %v)", f.cfg.TriggerPin, f.cfg.Pulse)
	if err := gpio.Pulse(f.gpio, f.cfg.TriggerPin, gpio.Low, f.cfg.Pulse); err != nil {
		return err
	}
	time.Sleep(f.cfg.Settle)
	return nil
}

// ShouldFire decides whether a still needs the strobe. In auto mode the
// flash fires when the scene's mean luminance (0-255) is below threshold.
func ShouldFire(mode params.FlashMode, luminance, threshold float64) bool {
	switch mode {
	case params.FlashOn:
		return true
	case params.FlashAuto:
		return luminance < threshold
	default:
		return false
	}
}
