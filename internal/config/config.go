package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/CamGo/internal/logic/params"
)

// MaxConfigFileBytes bounds the size of a config file read by Load.
const MaxConfigFileBytes = 64 << 10

// Camera drivers.
const (
	DriverMock = "mock"
	DriverGoCV = "gocv"
)

// CameraConfig selects and tunes the capture-device driver.
type CameraConfig struct {
	Driver          string  `yaml:"driver" env:"CAMGO_CAMERA_DRIVER"` // "mock" or "gocv"
	BackIndex       int     `yaml:"back_index"`                       // OpenCV index of the back-facing device
	FrontIndex      *int    `yaml:"front_index"`                      // optional: no front device when absent
	FrameIntervalMs int     `yaml:"frame_interval_ms"`                // preview frame period of the mock driver
	MinZoom         float64 `yaml:"min_zoom"`                         // device zoom range
	MaxZoom         float64 `yaml:"max_zoom"`
	JPEGQuality     int     `yaml:"jpeg_quality"`   // stills quality (1-100)
	PreviewBuffer   int     `yaml:"preview_buffer"` // frames a preview subscriber may lag behind
}

// FlashConfig describes the GPIO strobe.
type FlashConfig struct {
	Enabled    bool    `yaml:"enabled" env:"CAMGO_FLASH_ENABLED"`
	TriggerPin int     `yaml:"trigger_pin"` // BCM pin, active LOW
	ReadyPin   int     `yaml:"ready_pin"`   // BCM pin, HIGH when charged. 0 = not wired.
	PulseMs    int     `yaml:"pulse_ms"`    // trigger pulse width (ms)
	SettleMs   int     `yaml:"settle_ms"`   // delay after the pulse before the frame is read (ms)
	Threshold  float64 `yaml:"threshold"`   // mean luminance (0-255) under which auto flash fires
}

// ParametersConfig is the initial ParameterSet: an optional scene applied
// over the defaults, then individual fields in their text form.
type ParametersConfig struct {
	Scene  string            `yaml:"scene" env:"CAMGO_SCENE"`
	Values map[string]string `yaml:",inline"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int    `yaml:"debug_level" env:"CAMGO_DEBUG_LEVEL"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool   `yaml:"mock_gpio" env:"CAMGO_MOCK_GPIO"`     // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	OutputDir  string `yaml:"output_dir" env:"CAMGO_OUTPUT_DIR"`   // photos are written here; empty = not saved
}

// Config aggregates all application configuration.
type Config struct {
	Camera     CameraConfig     `yaml:"camera"`
	Flash      FlashConfig      `yaml:"flash"`
	Parameters ParametersConfig `yaml:"parameters"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
}

// ValidateConfigPath checks that path names a .yaml file directly inside a
// directory called "configs", with no ".." components.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file, applies CAMGO_* environment overrides and returns
// the configuration. Unset variables leave the file's values in place.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseEnv overlays environment variables onto target's env-tagged fields.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// normalize fills defaults and validates ranges.
func (c *Config) normalize() error {
	switch c.Camera.Driver {
	case "":
		return errors.New("camera.driver is required")
	case DriverMock, DriverGoCV:
	default:
		return fmt.Errorf("unsupported camera.driver: %s", c.Camera.Driver)
	}
	if c.Camera.BackIndex < 0 {
		return fmt.Errorf("camera.back_index must be >= 0, got %d", c.Camera.BackIndex)
	}
	if c.Camera.FrontIndex != nil && *c.Camera.FrontIndex < 0 {
		return fmt.Errorf("camera.front_index must be >= 0, got %d", *c.Camera.FrontIndex)
	}
	if c.Camera.FrameIntervalMs <= 0 {
		c.Camera.FrameIntervalMs = 33 // ~30 fps
	}
	if c.Camera.MinZoom == 0 {
		c.Camera.MinZoom = params.MinZoom
	}
	if c.Camera.MaxZoom == 0 {
		c.Camera.MaxZoom = params.MaxZoom
	}
	if c.Camera.MinZoom < 1 || c.Camera.MaxZoom < c.Camera.MinZoom {
		return fmt.Errorf("camera zoom range [%g, %g] is invalid", c.Camera.MinZoom, c.Camera.MaxZoom)
	}
	if c.Camera.JPEGQuality == 0 {
		c.Camera.JPEGQuality = 90
	}
	if c.Camera.JPEGQuality < 1 || c.Camera.JPEGQuality > 100 {
		return fmt.Errorf("camera.jpeg_quality must be between 1 and 100, got %d", c.Camera.JPEGQuality)
	}
	if c.Camera.PreviewBuffer <= 0 {
		c.Camera.PreviewBuffer = 2
	}

	if c.Flash.Enabled {
		if c.Flash.TriggerPin <= 0 {
			return errors.New("flash.trigger_pin is required when flash is enabled")
		}
		if c.Flash.ReadyPin == c.Flash.TriggerPin {
			return fmt.Errorf("flash.ready_pin and flash.trigger_pin are both %d", c.Flash.TriggerPin)
		}
	}
	if c.Flash.PulseMs <= 0 {
		c.Flash.PulseMs = 20 // 20ms trigger pulse
	}
	if c.Flash.SettleMs <= 0 {
		c.Flash.SettleMs = 100 // 100ms for the strobe to peak
	}
	if c.Flash.Threshold < 0 || c.Flash.Threshold > 255 {
		return fmt.Errorf("flash.threshold must be between 0 and 255, got %.2f", c.Flash.Threshold)
	}
	if c.Flash.Threshold == 0 {
		c.Flash.Threshold = 60
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}

	if _, err := c.InitialParameters(); err != nil {
		return err
	}
	return nil
}

// InitialParameters builds the ParameterSet the store starts from.
func (c *Config) InitialParameters() (params.ParameterSet, error) {
	p := params.Default()
	if c.Parameters.Scene != "" {
		var ok bool
		if p, ok = params.Apply(c.Parameters.Scene, p); !ok {
			return p, fmt.Errorf("parameters.scene: unknown scene %q", c.Parameters.Scene)
		}
	}
	for name := range c.Parameters.Values {
		if _, err := params.ParseField(name); err != nil {
			return p, fmt.Errorf("parameters: %w", err)
		}
	}
	// Field order keeps the result independent of map iteration.
	for _, f := range params.Fields() {
		s, ok := c.Parameters.Values[f.String()]
		if !ok {
			continue
		}
		v, err := params.ParseValue(f, s)
		if err != nil {
			return p, fmt.Errorf("parameters.%s: %w", f, err)
		}
		if p, err = p.With(f, v); err != nil {
			return p, fmt.Errorf("parameters.%s: %w", f, err)
		}
	}
	return p, nil
}

// FrameInterval returns the mock driver's preview frame period.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Camera.FrameIntervalMs) * time.Millisecond
}

// FlashPulse returns the strobe trigger pulse width.
func (c *Config) FlashPulse() time.Duration {
	return time.Duration(c.Flash.PulseMs) * time.Millisecond
}

// FlashSettle returns the delay between the strobe pulse and the exposure.
func (c *Config) FlashSettle() time.Duration {
	return time.Duration(c.Flash.SettleMs) * time.Millisecond
}

// Indexes maps each configured facing to its OpenCV device index.
func (c *Config) Indexes() map[params.Position]int {
	m := map[params.Position]int{params.Back: c.Camera.BackIndex}
	if c.Camera.FrontIndex != nil {
		m[params.Front] = *c.Camera.FrontIndex
	}
	return m
}
