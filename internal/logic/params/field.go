package params

import (
	"fmt"
	"strconv"
	"strings"
)

// Field names one member of a ParameterSet.
type Field int

const (
	FieldPosition Field = iota
	FieldPreset
	FieldFlashMode
	FieldExposureMode
	FieldExposureBias
	FieldISO
	FieldFocusMode
	FieldFocusPoint
	FieldWhiteBalance
	FieldStabilization
	FieldZoom
)

var fieldNames = []string{
	"position",
	"preset",
	"flash_mode",
	"exposure_mode",
	"exposure_bias",
	"iso",
	"focus_mode",
	"focus_point",
	"white_balance_mode",
	"stabilization_mode",
	"zoom_factor",
}

func (f Field) String() string { return enumString(fieldNames, int(f)) }

// ParseField maps a field's wire name to its Field.
func ParseField(s string) (Field, error) {
	v, err := enumParse(fieldNames, s, "field")
	return Field(v), err
}

// Fields lists every field in declaration order.
func Fields() []Field {
	out := make([]Field, len(fieldNames))
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// With returns a copy of p with field f set to v. The value must have the
// field's Go type (float64 for numeric fields, *Point or Point or nil for the
// focus point). Bounded fields are range checked; p itself is never changed.
func (p ParameterSet) With(f Field, v any) (ParameterSet, error) {
	out := p.Clone()
	switch f {
	case FieldPosition:
		x, ok := v.(Position)
		if !ok || !inEnum(int(x), len(positionNames)) {
			return p, typeError(f, v)
		}
		out.Position = x
	case FieldPreset:
		x, ok := v.(Preset)
		if !ok || !inEnum(int(x), len(presetNames)) {
			return p, typeError(f, v)
		}
		out.Preset = x
	case FieldFlashMode:
		x, ok := v.(FlashMode)
		if !ok || !inEnum(int(x), len(flashNames)) {
			return p, typeError(f, v)
		}
		out.FlashMode = x
	case FieldExposureMode, FieldFocusMode, FieldWhiteBalance:
		x, ok := v.(Mode)
		if !ok || !inEnum(int(x), len(modeNames)) {
			return p, typeError(f, v)
		}
		switch f {
		case FieldExposureMode:
			out.ExposureMode = x
		case FieldFocusMode:
			out.FocusMode = x
		default:
			out.WhiteBalance = x
		}
	case FieldStabilization:
		x, ok := v.(StabilizationMode)
		if !ok || !inEnum(int(x), len(stabilizationNames)) {
			return p, typeError(f, v)
		}
		out.Stabilization = x
	case FieldExposureBias:
		x, ok := v.(float64)
		if !ok {
			return p, typeError(f, v)
		}
		if err := checkRange(f, x, MinEV, MaxEV); err != nil {
			return p, err
		}
		out.ExposureBias = x
	case FieldISO:
		x, ok := v.(float64)
		if !ok {
			return p, typeError(f, v)
		}
		if err := checkRange(f, x, MinISO, MaxISO); err != nil {
			return p, err
		}
		out.ISO = x
	case FieldZoom:
		x, ok := v.(float64)
		if !ok {
			return p, typeError(f, v)
		}
		if err := checkRange(f, x, MinZoom, MaxZoom); err != nil {
			return p, err
		}
		out.Zoom = x
	case FieldFocusPoint:
		switch x := v.(type) {
		case nil:
			out.FocusPoint = nil
		case *Point:
			if x == nil {
				out.FocusPoint = nil
				break
			}
			if err := checkPoint(*x); err != nil {
				return p, err
			}
			pt := *x
			out.FocusPoint = &pt
		case Point:
			if err := checkPoint(x); err != nil {
				return p, err
			}
			out.FocusPoint = &x
		default:
			return p, typeError(f, v)
		}
	default:
		return p, fmt.Errorf("unknown field %d", int(f))
	}
	return out, nil
}

// ParseValue converts the textual form of a value into the Go type With
// expects for f. An empty string clears the focus point; a focus point is
// written "x,y".
func ParseValue(f Field, s string) (any, error) {
	s = strings.TrimSpace(s)
	switch f {
	case FieldPosition:
		var x Position
		if err := x.UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		return x, nil
	case FieldPreset:
		var x Preset
		if err := x.UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		return x, nil
	case FieldFlashMode:
		var x FlashMode
		if err := x.UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		return x, nil
	case FieldExposureMode, FieldFocusMode, FieldWhiteBalance:
		var x Mode
		if err := x.UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		return x, nil
	case FieldStabilization:
		var x StabilizationMode
		if err := x.UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		return x, nil
	case FieldExposureBias, FieldISO, FieldZoom:
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		return x, nil
	case FieldFocusPoint:
		if s == "" {
			return nil, nil
		}
		xs, ys, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("focus_point: want \"x,y\", got %q", s)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
		if err != nil {
			return nil, fmt.Errorf("focus_point x: %w", err)
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
		if err != nil {
			return nil, fmt.Errorf("focus_point y: %w", err)
		}
		return Point{X: x, Y: y}, nil
	}
	return nil, fmt.Errorf("unknown field %d", int(f))
}

func typeError(f Field, v any) error {
	return fmt.Errorf("%s: invalid value %v (%T)", f, v, v)
}

func inEnum(v, n int) bool { return v >= 0 && v < n }
