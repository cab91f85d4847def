package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/CamGo/internal/config"
	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/events"
	"github.com/cjeanneret/CamGo/internal/hw/device"
	"github.com/cjeanneret/CamGo/internal/hw/device/gocvcam"
	"github.com/cjeanneret/CamGo/internal/hw/flash"
	"github.com/cjeanneret/CamGo/internal/hw/gpio"
	"github.com/cjeanneret/CamGo/internal/logic/burst"
	"github.com/cjeanneret/CamGo/internal/logic/coordinator"
	"github.com/cjeanneret/CamGo/internal/logic/params"
	"github.com/cjeanneret/CamGo/internal/logic/session"
	"github.com/cjeanneret/CamGo/internal/logic/settings"
	"github.com/cjeanneret/CamGo/internal/web"
)

const (
	// burstInterval spaces the shots of a command-line burst.
	burstInterval = 200 * time.Millisecond
	// warmup bounds the wait for the first preview frame before shooting,
	// so auto flash has a luminance reading.
	warmup = 2 * time.Second
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "camgo.yaml"), "path to config file")
	shots := flag.Int("shots", 0, "without -web: number of photos to take in one burst (1-10); 0 = one photo")
	outDir := flag.String("out", "", "override the directory photos are written to")
	scene := flag.String("scene", "", "override the initial scene (auto, portrait, night, ...)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (zero values mean "use config default")
	if err := validateCLIOverrides(*shots, *scene); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides{Scene: *scene, OutputDir: *outDir})

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	var broadcaster *web.StatusBroadcaster
	if webPort.port() > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	}

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	debug.Step(2, "Initializing flash")
	strobe := newStrobeFromConfig(gpioDriver, cfg)
	debug.PrintStruct("Flash config", cfg.Flash)

	debug.Step(3, "Initializing capture driver")
	driver, err := newDriverFromConfig(cfg, strobe)
	if err != nil {
		log.Fatalf("init capture driver failed: %v", err)
	}
	debug.Value("Camera driver", cfg.Camera.Driver)
	debug.PrintStruct("Camera config", cfg.Camera)

	debug.Step(4, "Starting session")
	initial, err := cfg.InitialParameters()
	if err != nil {
		log.Fatalf("initial parameters: %v", err)
	}
	debug.PrintStruct("Initial parameters", initial)

	bus := events.NewBus()
	store := settings.NewStore(initial, bus)
	sess := session.New(driver, store, bus, session.WithPreviewBuffer(cfg.Camera.PreviewBuffer))
	coord := coordinator.New(store, sess)

	sink := &eventSink{outDir: cfg.Defaults.OutputDir, broadcaster: broadcaster}
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		// Runs until the bus closes so every photo is written.
		coordinator.Relay(context.Background(), bus, sink.handle)
	}()

	if port := webPort.port(); port > 0 {
		srv := web.NewServer(ctx, fmt.Sprintf(":%d", port), broadcaster, coord, sess.Preview())
		err = srv.Run(ctx)
	} else {
		err = runHeadless(ctx, coord, sess, *shots)
	}

	debug.Section("Shutdown")
	if cerr := sess.Close(); cerr != nil {
		log.Printf("closing session failed: %v", cerr)
	}
	bus.Close()
	<-relayDone
	debug.Info("Photos saved: %d", sink.Saved())

	if err != nil {
		log.Fatalf("camgo: %v", err)
	}
}

// runHeadless starts the session, takes shots photos (at least one) and
// returns the first capture failure.
func runHeadless(ctx context.Context, c *coordinator.Coordinator, s *session.Session, shots int) error {
	if err := c.ViewAppeared(); err != nil {
		return err
	}
	if err := s.Flush(ctx); err != nil {
		return err
	}
	if st := s.State(); st != session.Running {
		return fmt.Errorf("session did not start (state %s)", st)
	}
	waitFirstFrame(ctx, s.Preview(), warmup)

	if shots <= 1 {
		debug.Section("Single shot")
		res, err := c.Shutter(ctx)
		if err != nil {
			return err
		}
		return res.Err
	}

	debug.Section("Burst")
	results, err := c.Burst(ctx, burst.Params{Count: shots, Interval: burstInterval})
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	debug.Section("Burst Summary")
	debug.Info("%d/%d photos captured", len(results)-len(errs), shots)
	if err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// waitFirstFrame blocks until the preview delivers a frame, ctx is done or
// timeout elapses.
func waitFirstFrame(ctx context.Context, p *session.Preview, timeout time.Duration) {
	frames, unsub := p.Subscribe()
	defer unsub()
	select {
	case <-frames:
	case <-ctx.Done():
	case <-time.After(timeout):
		debug.Live("No preview frame after %v, shooting anyway", timeout)
	}
}

// overrides holds CLI values that replace config settings.
type overrides struct {
	Scene     string
	OutputDir string
}

// validateCLIOverrides checks CLI values. Zero values are ignored (they
// mean "use config default").
func validateCLIOverrides(shots int, scene string) error {
	if shots < 0 || shots > burst.MaxCount {
		return fmt.Errorf("shots must be between 1 and %d, got %d", burst.MaxCount, shots)
	}
	if scene != "" {
		if _, ok := params.Lookup(scene); !ok {
			return fmt.Errorf("unknown scene %q (known: %v)", scene, params.Scenes())
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-empty values are applied.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.Scene != "" {
		cfg.Parameters.Scene = o.Scene
	}
	if o.OutputDir != "" {
		cfg.Defaults.OutputDir = o.OutputDir
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }

// newStrobeFromConfig returns the flash strobe, or nil when flash is disabled.
func newStrobeFromConfig(g gpio.Driver, cfg *config.Config) flash.Strobe {
	if !cfg.Flash.Enabled {
		return nil
	}
	ready := cfg.Flash.ReadyPin
	if ready == 0 {
		ready = flash.NoReadyPin
	}
	return flash.New(g, flash.Config{
		TriggerPin: cfg.Flash.TriggerPin,
		ReadyPin:   ready,
		Pulse:      cfg.FlashPulse(),
		Settle:     cfg.FlashSettle(),
	})
}

// newDriverFromConfig selects a capture-device driver based on configuration.
func newDriverFromConfig(cfg *config.Config, strobe flash.Strobe) (device.Driver, error) {
	switch cfg.Camera.Driver {
	case config.DriverMock:
		var devs []*device.MockDevice
		for _, pos := range []params.Position{params.Back, params.Front} {
			idx, ok := cfg.Indexes()[pos]
			if !ok {
				continue
			}
			d := device.NewMockDevice(fmt.Sprintf("mock%d", idx), pos)
			d.FrameInterval = cfg.FrameInterval()
			devs = append(devs, d)
		}
		return device.NewMockDriver(devs...), nil
	case config.DriverGoCV:
		return gocvcam.NewDriver(gocvcam.Config{
			Indexes:        cfg.Indexes(),
			MinZoom:        cfg.Camera.MinZoom,
			MaxZoom:        cfg.Camera.MaxZoom,
			JPEGQuality:    cfg.Camera.JPEGQuality,
			FlashThreshold: cfg.Flash.Threshold,
			Strobe:         strobe,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported camera driver: %s", cfg.Camera.Driver)
	}
}
