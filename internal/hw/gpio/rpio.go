package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPiDriver drives BCM pins through go-rpio's /dev/gpiomem mapping.
// A pin is configured on first use when SetupPin was not called: a write
// makes it an output, a read a floating input.
type RPiDriver struct {
	mu    sync.Mutex
	lines map[int]rpiLine
}

type rpiLine struct {
	pin  rpio.Pin
	mode PinMode
}

// NewRPiRealDriver maps the GPIO registers. It fails off a Raspberry Pi or
// without access to /dev/gpiomem.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w (are you running on a Raspberry Pi?)", err)
	}
	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{lines: make(map[int]rpiLine)}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.line(pin, mode)
	return err
}

// line returns pin configured for mode, reconfiguring it if needed.
// Callers hold r.mu.
func (r *RPiDriver) line(pin int, mode PinMode) (rpio.Pin, error) {
	if l, ok := r.lines[pin]; ok && l.mode == mode {
		return l.pin, nil
	}
	debug.GPIO("SetupPin", pin, mode)

	p := rpio.Pin(pin)
	switch mode {
	case Input:
		p.Input()
		p.PullOff()
	case InputPullUp:
		p.Input()
		p.PullUp()
	case Output:
		p.Output()
	default:
		return p, fmt.Errorf("gpio %d: unknown pin mode %d", pin, mode)
	}
	r.lines[pin] = rpiLine{pin: p, mode: mode}
	return p, nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.lines[pin]; ok && l.mode != Output {
		return fmt.Errorf("gpio %d: write to %s pin", pin, l.mode)
	}
	p, err := r.line(pin, Output)
	if err != nil {
		return err
	}
	if level == High {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

// ReadPin samples pin. An output reads back the level it drives.
func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	mode := Input
	if l, ok := r.lines[pin]; ok {
		mode = l.mode
	}
	p, err := r.line(pin, mode)
	if err != nil {
		return Low, err
	}
	level := Level(p.Read() == rpio.High)
	debug.GPIO("ReadPin", pin, level)
	return level, nil
}

// Close returns every pin it touched to a floating input and unmaps the
// registers. An output left LOW would hold the strobe trigger active.
func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")
	r.mu.Lock()
	defer r.mu.Unlock()

	for pin, l := range r.lines {
		debug.Verbose("Releasing pin %d (%s)", pin, l.mode)
		l.pin.Input()
		l.pin.PullOff()
	}
	clear(r.lines)
	return rpio.Close()
}
