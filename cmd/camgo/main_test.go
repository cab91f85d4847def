package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/CamGo/internal/config"
	"github.com/cjeanneret/CamGo/internal/events"
	"github.com/cjeanneret/CamGo/internal/hw/device"
	"github.com/cjeanneret/CamGo/internal/hw/flash"
	"github.com/cjeanneret/CamGo/internal/hw/gpio"
	"github.com/cjeanneret/CamGo/internal/logic/coordinator"
	"github.com/cjeanneret/CamGo/internal/logic/params"
	"github.com/cjeanneret/CamGo/internal/logic/session"
	"github.com/cjeanneret/CamGo/internal/logic/settings"
	"github.com/cjeanneret/CamGo/internal/web"
)

// ---------- validateCLIOverrides ----------

func TestValidateCLIOverrides_Valid(t *testing.T) {
	cases := []struct {
		name  string
		shots int
		scene string
	}{
		{"defaults", 0, ""},
		{"one shot", 1, ""},
		{"max shots", 10, ""},
		{"scene", 3, "night"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.shots, tc.scene); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateCLIOverrides_Invalid(t *testing.T) {
	cases := []struct {
		name  string
		shots int
		scene string
	}{
		{"negative shots", -1, ""},
		{"too many shots", 11, ""},
		{"unknown scene", 0, "disco"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.shots, tc.scene); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	for _, input := range []string{"0", "65536", "-1", "abc", "8080.5"} {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- applyOverrides ----------

func newTestConfig() *config.Config {
	return &config.Config{
		Camera: config.CameraConfig{
			Driver:          config.DriverMock,
			FrameIntervalMs: 5,
			MinZoom:         1,
			MaxZoom:         10,
			JPEGQuality:     90,
			PreviewBuffer:   2,
		},
		Flash:      config.FlashConfig{PulseMs: 1, SettleMs: 1, Threshold: 60},
		Parameters: config.ParametersConfig{Scene: "auto"},
		Defaults:   config.DefaultsConfig{MockGPIO: true, OutputDir: "photos"},
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, overrides{Scene: "night", OutputDir: "/tmp/out"})
	if cfg.Parameters.Scene != "night" || cfg.Defaults.OutputDir != "/tmp/out" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Parameters, cfg.Defaults)
	}
}

func TestApplyOverrides_ZeroLeavesUnchanged(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, overrides{})
	if cfg.Parameters.Scene != "auto" || cfg.Defaults.OutputDir != "photos" {
		t.Errorf("zero overrides changed config: %+v %+v", cfg.Parameters, cfg.Defaults)
	}
}

// ---------- hardware selection ----------

func TestNewStrobeFromConfig(t *testing.T) {
	cfg := newTestConfig()
	g := gpio.NewMockDriver()
	if s := newStrobeFromConfig(g, cfg); s != nil {
		t.Errorf("disabled flash should give no strobe, got %T", s)
	}

	cfg.Flash.Enabled = true
	cfg.Flash.TriggerPin = 17
	cfg.Flash.ReadyPin = 27
	s := newStrobeFromConfig(g, cfg)
	if s == nil {
		t.Fatal("expected a strobe")
	}
	if err := s.Fire(); err != nil {
		t.Errorf("mock strobe should be charged: %v", err)
	}
	if level, _ := g.ReadPin(17); level != gpio.High {
		t.Error("trigger should rest HIGH after firing")
	}
	if _, ok := s.(*flash.GPIOFlash); !ok {
		t.Errorf("strobe type = %T", s)
	}
}

func TestNewDriverFromConfig_Mock(t *testing.T) {
	cfg := newTestConfig()
	front := 1
	cfg.Camera.FrontIndex = &front

	d, err := newDriverFromConfig(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, pos := range []params.Position{params.Back, params.Front} {
		dev, err := d.Discover(context.Background(), pos)
		if err != nil {
			t.Fatalf("Discover(%s): %v", pos, err)
		}
		if dev.Info().Position != pos {
			t.Errorf("position = %s, want %s", dev.Info().Position, pos)
		}
		dev.Close()
	}
}

func TestNewDriverFromConfig_Unsupported(t *testing.T) {
	cfg := newTestConfig()
	cfg.Camera.Driver = "v4l2"
	if _, err := newDriverFromConfig(cfg, nil); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

// ---------- event sink ----------

func TestEventSink_SavesPhotosAndForwards(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	b := web.NewStatusBroadcaster()
	ch, unsub := b.Subscribe()
	defer unsub()
	sink := &eventSink{outDir: dir, broadcaster: b}

	photo := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	sink.handle(events.Event{Type: events.TypePhoto, Time: time.Now(), CaptureID: "0123456789abcdef", Photo: photo})
	sink.handle(events.Event{Type: events.TypeState, State: "running"})

	if sink.Saved() != 1 {
		t.Fatalf("saved = %d, want 1", sink.Saved())
	}
	files, _ := filepath.Glob(filepath.Join(dir, "*-01234567.jpg"))
	if len(files) != 1 {
		t.Fatalf("files = %v", files)
	}
	if data, _ := os.ReadFile(files[0]); !bytes.Equal(data, photo) {
		t.Errorf("file content = %x", data)
	}
	if len(ch) != 2 {
		t.Errorf("forwarded %d events, want 2", len(ch))
	}
}

func TestEventSink_NoOutputDir(t *testing.T) {
	sink := &eventSink{}
	sink.handle(events.Event{Type: events.TypePhoto, Photo: []byte{1}})
	if sink.Saved() != 0 {
		t.Error("nothing should be saved without an output dir")
	}
}

// ---------- headless run ----------

type headless struct {
	sess  *session.Session
	coord *coordinator.Coordinator
	bus   *events.Bus
	sink  *eventSink
	done  chan struct{}
}

func newHeadless(t *testing.T) *headless {
	t.Helper()
	cfg := newTestConfig()
	cfg.Defaults.OutputDir = t.TempDir()
	d, err := newDriverFromConfig(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	h := &headless{bus: events.NewBus(), sink: &eventSink{outDir: cfg.Defaults.OutputDir}, done: make(chan struct{})}
	store := settings.NewStore(params.Default(), h.bus)
	h.sess = session.New(d, store, h.bus)
	h.coord = coordinator.New(store, h.sess)
	go func() {
		defer close(h.done)
		coordinator.Relay(context.Background(), h.bus, h.sink.handle)
	}()
	return h
}

func (h *headless) shutdown() {
	h.sess.Close()
	h.bus.Close()
	<-h.done
}

func TestRunHeadless_SingleShot(t *testing.T) {
	h := newHeadless(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := runHeadless(ctx, h.coord, h.sess, 0); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
	h.shutdown()
	if h.sink.Saved() != 1 {
		t.Errorf("saved = %d, want 1", h.sink.Saved())
	}
}

func TestRunHeadless_Burst(t *testing.T) {
	h := newHeadless(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := runHeadless(ctx, h.coord, h.sess, 3); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
	h.shutdown()
	if h.sink.Saved() != 3 {
		t.Errorf("saved = %d, want 3", h.sink.Saved())
	}
}

func TestRunHeadless_NoDevice(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	store := settings.NewStore(params.Default(), bus)
	sess := session.New(device.NewMockDriver(), store, bus)
	defer sess.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := runHeadless(ctx, coordinator.New(store, sess), sess, 1)
	if err == nil || !strings.Contains(err.Error(), "did not start") {
		t.Errorf("err = %v, want session did not start", err)
	}
}
