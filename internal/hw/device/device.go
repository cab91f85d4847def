// Package device abstracts the physical capture device. The session talks
// to this interface only, so a real OpenCV camera or a mock for development
// and tests can be plugged in.
package device

import (
	"context"
	"errors"
	"slices"

	"github.com/cjeanneret/CamGo/internal/logic/params"
)

var (
	// ErrNotFound means no physical device matches the requested position.
	ErrNotFound = errors.New("device: no device for position")
	// ErrLocked means another holder owns the configuration lock.
	ErrLocked = errors.New("device: configuration lock busy")
	// ErrNotLocked means a property was written without holding the lock.
	ErrNotLocked = errors.New("device: configuration lock not held")
	// ErrUnsupported means the device cannot perform the operation.
	ErrUnsupported = errors.New("device: operation not supported")
	// ErrNotRunning means frames were requested from a stopped device.
	ErrNotRunning = errors.New("device: not running")
	// ErrClosed means the device was released.
	ErrClosed = errors.New("device: closed")
)

// Axis names used in logs and per-axis errors.
const (
	AxisPosition      = "position"
	AxisPreset        = "preset"
	AxisFocus         = "focus"
	AxisFocusPoint    = "focus_point"
	AxisExposure      = "exposure"
	AxisExposureBias  = "exposure_bias"
	AxisISO           = "iso"
	AxisWhiteBalance  = "white_balance"
	AxisZoom          = "zoom"
	AxisStabilization = "stabilization"
)

// Info identifies a physical device.
type Info struct {
	ID       string
	Name     string
	Position params.Position
}

// Capabilities lists what a device advertises. A zoom range with
// MaxZoom <= MinZoom means the device has no zoom control.
type Capabilities struct {
	FocusModes           []params.Mode
	ExposureModes        []params.Mode
	WhiteBalanceModes    []params.Mode
	StabilizationModes   []params.StabilizationMode
	FocusPointOfInterest bool
	MinZoom              float64
	MaxZoom              float64
	HasFlash             bool
}

func (c Capabilities) SupportsFocus(m params.Mode) bool    { return slices.Contains(c.FocusModes, m) }
func (c Capabilities) SupportsExposure(m params.Mode) bool { return slices.Contains(c.ExposureModes, m) }
func (c Capabilities) SupportsWhiteBalance(m params.Mode) bool {
	return slices.Contains(c.WhiteBalanceModes, m)
}
func (c Capabilities) SupportsStabilization(m params.StabilizationMode) bool {
	return slices.Contains(c.StabilizationModes, m)
}
func (c Capabilities) SupportsZoom() bool { return c.MaxZoom > c.MinZoom }

// Driver finds physical devices.
type Driver interface {
	// Discover opens the device facing pos. It returns ErrNotFound when
	// there is none. Discovery may block.
	Discover(ctx context.Context, pos params.Position) (Device, error)
}

// Device is one opened capture device.
//
// The Set* property writers (except SetPreset, which targets the session
// profile) must be called between Lock and Unlock. Implementations must be
// safe for concurrent use: frames, captures and configuration may come from
// different goroutines.
type Device interface {
	Info() Info
	Capabilities() Capabilities

	// Lock acquires the configuration lock; ErrLocked on contention.
	Lock() error
	Unlock()

	SetPreset(p params.Preset) error
	SetFocusMode(m params.Mode) error
	SetFocusPoint(pt params.Point) error
	SetExposureMode(m params.Mode) error
	SetExposureBias(ev float64) error
	SetISO(iso float64) error
	SetWhiteBalanceMode(m params.Mode) error
	SetZoom(z float64) error
	SetStabilization(m params.StabilizationMode) error

	// StartRunning and StopRunning may block.
	StartRunning() error
	StopRunning() error

	// ReadFrame returns the next encoded preview frame.
	ReadFrame(ctx context.Context) ([]byte, error)
	// CapturePhoto takes one still and returns the encoded image bytes.
	CapturePhoto(ctx context.Context, flash params.FlashMode) ([]byte, error)

	Close() error
}
