// Package gocvcam implements device.Driver on top of OpenCV video capture
// devices (V4L2 on Linux, AVFoundation on macOS).
package gocvcam

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/hw/device"
	"github.com/cjeanneret/CamGo/internal/hw/flash"
	"github.com/cjeanneret/CamGo/internal/logic/params"
)

// V4L2 exposes auto exposure as a menu that OpenCV maps onto these values.
const (
	autoExposureOn  = 0.75
	autoExposureOff = 0.25
)

// brightnessPerEV is the brightness offset applied per EV of bias.
const brightnessPerEV = 16

// Config selects devices and tunes the driver.
type Config struct {
	// Indexes maps a facing to an OpenCV device index.
	Indexes map[params.Position]int
	MinZoom float64
	MaxZoom float64
	// JPEGQuality is used for stills; previews use a lower fixed quality.
	JPEGQuality int
	// FlashThreshold is the mean luminance (0-255) under which auto flash fires.
	FlashThreshold float64
	// Strobe fires for stills. Nil means no flash.
	Strobe flash.Strobe
}

const previewQuality = 70

// Driver opens OpenCV capture devices.
type Driver struct {
	cfg Config
}

// NewDriver creates a driver.
func NewDriver(cfg Config) *Driver {
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 90
	}
	return &Driver{cfg: cfg}
}

// Discover opens the capture device configured for pos.
func (d *Driver) Discover(ctx context.Context, pos params.Position) (device.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, ok := d.cfg.Indexes[pos]
	if !ok {
		return nil, fmt.Errorf("%w %s: no index configured", device.ErrNotFound, pos)
	}

	debug.Trace("gocvcam: opening device %d for %s", idx, pos)
	vc, err := gocv.OpenVideoCapture(idx)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", device.ErrNotFound, pos, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w %s: device %d not opened", device.ErrNotFound, pos, idx)
	}

	c := &Camera{
		info: device.Info{
			ID:       fmt.Sprintf("video%d", idx),
			Name:     fmt.Sprintf("OpenCV camera %d", idx),
			Position: pos,
		},
		cfg:            d.cfg,
		vc:             vc,
		baseBrightness: vc.Get(gocv.VideoCaptureBrightness),
	}
	c.luma.Store(math.Float64bits(255))
	debug.Info("gocvcam: %s opened (%vx%v)", c.info.ID,
		vc.Get(gocv.VideoCaptureFrameWidth), vc.Get(gocv.VideoCaptureFrameHeight))
	return c, nil
}

// Camera is one opened OpenCV capture device.
type Camera struct {
	info device.Info
	cfg  Config

	vcMu sync.Mutex
	vc   *gocv.VideoCapture

	cfgLock        sync.Mutex
	locked         atomic.Bool
	running        atomic.Bool
	luma           atomic.Uint64 // float64 bits of the last preview mean luminance
	baseBrightness float64
}

func (c *Camera) Info() device.Info { return c.info }

func (c *Camera) Capabilities() device.Capabilities {
	return device.Capabilities{
		FocusModes:         []params.Mode{params.ContinuousAuto, params.Locked},
		ExposureModes:      []params.Mode{params.ContinuousAuto, params.Locked, params.Custom},
		WhiteBalanceModes:  []params.Mode{params.ContinuousAuto, params.Locked},
		StabilizationModes: []params.StabilizationMode{params.StabilizationOff},
		MinZoom:            c.cfg.MinZoom,
		MaxZoom:            c.cfg.MaxZoom,
		HasFlash:           c.cfg.Strobe != nil,
	}
}

func (c *Camera) Lock() error {
	if !c.cfgLock.TryLock() {
		return device.ErrLocked
	}
	c.locked.Store(true)
	return nil
}

func (c *Camera) Unlock() {
	if c.locked.CompareAndSwap(true, false) {
		c.cfgLock.Unlock()
	}
}

// set writes one capture property. needLock enforces the configuration lock.
func (c *Camera) set(prop gocv.VideoCaptureProperties, name string, v float64, needLock bool) error {
	if needLock && !c.locked.Load() {
		return device.ErrNotLocked
	}
	c.vcMu.Lock()
	defer c.vcMu.Unlock()
	if c.vc == nil {
		return device.ErrClosed
	}
	c.vc.Set(prop, v)
	debug.Prop(c.info.ID, name, v)
	return nil
}

func (c *Camera) SetPreset(p params.Preset) error {
	r := p.Resolution()
	if err := c.set(gocv.VideoCaptureFrameWidth, "width", float64(r.Width), false); err != nil {
		return err
	}
	return c.set(gocv.VideoCaptureFrameHeight, "height", float64(r.Height), false)
}

func (c *Camera) SetFocusMode(m params.Mode) error {
	switch m {
	case params.ContinuousAuto:
		return c.set(gocv.VideoCaptureAutoFocus, "autofocus", 1, true)
	case params.Locked:
		return c.set(gocv.VideoCaptureAutoFocus, "autofocus", 0, true)
	default:
		return fmt.Errorf("%w: focus mode %s", device.ErrUnsupported, m)
	}
}

func (c *Camera) SetFocusPoint(params.Point) error {
	return fmt.Errorf("%w: focus point of interest", device.ErrUnsupported)
}

func (c *Camera) SetExposureMode(m params.Mode) error {
	v := autoExposureOff
	if m == params.ContinuousAuto {
		v = autoExposureOn
	}
	return c.set(gocv.VideoCaptureAutoExposure, "auto_exposure", v, true)
}

func (c *Camera) SetExposureBias(ev float64) error {
	return c.set(gocv.VideoCaptureBrightness, "brightness", c.baseBrightness+ev*brightnessPerEV, true)
}

func (c *Camera) SetISO(iso float64) error {
	return c.set(gocv.VideoCaptureISOSpeed, "iso", iso, true)
}

func (c *Camera) SetWhiteBalanceMode(m params.Mode) error {
	switch m {
	case params.ContinuousAuto:
		return c.set(gocv.VideoCaptureAutoWB, "auto_wb", 1, true)
	case params.Locked:
		return c.set(gocv.VideoCaptureAutoWB, "auto_wb", 0, true)
	default:
		return fmt.Errorf("%w: white balance mode %s", device.ErrUnsupported, m)
	}
}

func (c *Camera) SetZoom(z float64) error {
	if z < c.cfg.MinZoom || z > c.cfg.MaxZoom {
		return fmt.Errorf("zoom %g outside device range [%g, %g]", z, c.cfg.MinZoom, c.cfg.MaxZoom)
	}
	return c.set(gocv.VideoCaptureZoom, "zoom", z, true)
}

func (c *Camera) SetStabilization(m params.StabilizationMode) error {
	if m != params.StabilizationOff {
		return fmt.Errorf("%w: stabilization %s", device.ErrUnsupported, m)
	}
	return nil
}

func (c *Camera) StartRunning() error {
	c.vcMu.Lock()
	defer c.vcMu.Unlock()
	if c.vc == nil {
		return device.ErrClosed
	}
	c.running.Store(true)
	return nil
}

func (c *Camera) StopRunning() error {
	c.running.Store(false)
	return nil
}

func (c *Camera) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.running.Load() {
		return nil, device.ErrNotRunning
	}
	return c.grab(previewQuality, true)
}

func (c *Camera) CapturePhoto(ctx context.Context, mode params.FlashMode) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.running.Load() {
		return nil, device.ErrNotRunning
	}
	luma := math.Float64frombits(c.luma.Load())
	if c.cfg.Strobe != nil && flash.ShouldFire(mode, luma, c.cfg.FlashThreshold) {
		debug.Verbose("gocvcam: firing flash (mode %s, luminance %.0f)", mode, luma)
		if err := c.cfg.Strobe.Fire(); err != nil {
			return nil, fmt.Errorf("flash: %w", err)
		}
	}
	return c.grab(c.cfg.JPEGQuality, false)
}

// grab reads one frame and encodes it as JPEG.
func (c *Camera) grab(quality int, meter bool) ([]byte, error) {
	c.vcMu.Lock()
	defer c.vcMu.Unlock()
	if c.vc == nil {
		return nil, device.ErrClosed
	}

	img := gocv.NewMat()
	defer img.Close()
	if ok := c.vc.Read(&img); !ok || img.Empty() {
		return nil, fmt.Errorf("failed to read frame from %s", c.info.ID)
	}

	if meter {
		gray := gocv.NewMat()
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
		c.luma.Store(math.Float64bits(gray.Mean().Val1))
		gray.Close()
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()
	return bytes.Clone(buf.GetBytes()), nil
}

func (c *Camera) Close() error {
	c.running.Store(false)
	c.vcMu.Lock()
	defer c.vcMu.Unlock()
	if c.vc == nil {
		return nil
	}
	err := c.vc.Close()
	c.vc = nil
	debug.Trace("gocvcam: %s closed", c.info.ID)
	return err
}
