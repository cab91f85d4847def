// Package params describes how a capture device should be configured:
// the ParameterSet, its numeric bounds and the named scene presets.
package params

import (
	"fmt"
	"math"
)

// Exposure and zoom bounds.
const (
	MinEV  = -2.0
	MaxEV  = 2.0
	EVStep = 1.0 / 3.0

	MinISO            = 100.0
	MaxISO            = 3200.0
	RecommendedMaxISO = 1600.0
	AutoISOTarget     = 400.0

	MinZoom = 1.0
	MaxZoom = 10.0
)

var (
	ISOSteps  = []float64{100, 200, 400, 800, 1600, 3200}
	ZoomSteps = []float64{1.0, 1.5, 2.0, 2.5, 3.0, 4.0, 5.0, 6.0, 8.0, 10.0}
)

// Point is a normalized 2D point; (0,0) is top-left and (1,1) bottom-right
// of the sensor frame.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// ParameterSet is the full bundle of capture parameters.
// Treat it as a value: change it through With, never in place.
type ParameterSet struct {
	Position      Position          `json:"position"`
	Preset        Preset            `json:"preset"`
	FlashMode     FlashMode         `json:"flash_mode"`
	ExposureMode  ExposureMode      `json:"exposure_mode"`
	ExposureBias  float64           `json:"exposure_bias"`
	ISO           float64           `json:"iso"`
	FocusMode     FocusMode         `json:"focus_mode"`
	FocusPoint    *Point            `json:"focus_point,omitempty"`
	WhiteBalance  WhiteBalanceMode  `json:"white_balance_mode"`
	Stabilization StabilizationMode `json:"stabilization_mode"`
	Zoom          float64           `json:"zoom_factor"`
}

// Default returns the documented defaults: back camera, photo preset,
// auto flash, continuous auto exposure/focus/white balance, zoom 1.0.
func Default() ParameterSet {
	return ParameterSet{
		Position:      Back,
		Preset:        PresetPhoto,
		FlashMode:     FlashAuto,
		ExposureMode:  ContinuousAuto,
		ExposureBias:  0,
		ISO:           AutoISOTarget,
		FocusMode:     ContinuousAuto,
		WhiteBalance:  ContinuousAuto,
		Stabilization: StabilizationAuto,
		Zoom:          MinZoom,
	}
}

// Clone returns a copy that shares no memory with p.
func (p ParameterSet) Clone() ParameterSet {
	if p.FocusPoint != nil {
		fp := *p.FocusPoint
		p.FocusPoint = &fp
	}
	return p
}

// Equal reports whether both sets hold the same values.
func (p ParameterSet) Equal(o ParameterSet) bool {
	fp, ofp := p.FocusPoint, o.FocusPoint
	p.FocusPoint, o.FocusPoint = nil, nil
	if p != o {
		return false
	}
	if fp == nil || ofp == nil {
		return fp == ofp
	}
	return *fp == *ofp
}

// RangeError reports a value outside its declared bound.
type RangeError struct {
	Field Field
	Value float64
	Min   float64
	Max   float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s = %g out of range [%g, %g]", e.Field, e.Value, e.Min, e.Max)
}

// Validate checks every numeric bound and returns the first violation.
func (p ParameterSet) Validate() error {
	if err := checkRange(FieldISO, p.ISO, MinISO, MaxISO); err != nil {
		return err
	}
	if err := checkRange(FieldZoom, p.Zoom, MinZoom, MaxZoom); err != nil {
		return err
	}
	if err := checkRange(FieldExposureBias, p.ExposureBias, MinEV, MaxEV); err != nil {
		return err
	}
	if p.FocusPoint != nil {
		if err := checkPoint(*p.FocusPoint); err != nil {
			return err
		}
	}
	return nil
}

// Valid is Validate() == nil.
func (p ParameterSet) Valid() bool {
	return p.Validate() == nil
}

func checkRange(f Field, v, lo, hi float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < lo || v > hi {
		return &RangeError{Field: f, Value: v, Min: lo, Max: hi}
	}
	return nil
}

func checkPoint(pt Point) error {
	if err := checkRange(FieldFocusPoint, pt.X, 0, 1); err != nil {
		return err
	}
	return checkRange(FieldFocusPoint, pt.Y, 0, 1)
}
