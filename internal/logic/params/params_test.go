package params

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestDefault(t *testing.T) {
	p := Default()
	if p.Position != Back {
		t.Errorf("position = %v, want back", p.Position)
	}
	if p.ExposureMode != ContinuousAuto || p.FocusMode != ContinuousAuto || p.WhiteBalance != ContinuousAuto {
		t.Errorf("modes = %v/%v/%v, want continuous-auto", p.ExposureMode, p.FocusMode, p.WhiteBalance)
	}
	if p.Zoom != 1.0 {
		t.Errorf("zoom = %v, want 1.0", p.Zoom)
	}
	if p.FlashMode != FlashAuto {
		t.Errorf("flash = %v, want auto", p.FlashMode)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestValidate_Bounds(t *testing.T) {
	cases := []struct {
		name  string
		mod   func(*ParameterSet)
		field Field
	}{
		{"iso_low", func(p *ParameterSet) { p.ISO = 99 }, FieldISO},
		{"iso_high", func(p *ParameterSet) { p.ISO = 3201 }, FieldISO},
		{"iso_nan", func(p *ParameterSet) { p.ISO = math.NaN() }, FieldISO},
		{"zoom_low", func(p *ParameterSet) { p.Zoom = 0.5 }, FieldZoom},
		{"zoom_high", func(p *ParameterSet) { p.Zoom = 10.5 }, FieldZoom},
		{"zoom_inf", func(p *ParameterSet) { p.Zoom = math.Inf(1) }, FieldZoom},
		{"ev_low", func(p *ParameterSet) { p.ExposureBias = -2.1 }, FieldExposureBias},
		{"ev_high", func(p *ParameterSet) { p.ExposureBias = 2.1 }, FieldExposureBias},
		{"point_x", func(p *ParameterSet) { p.FocusPoint = &Point{X: 1.2, Y: 0.5} }, FieldFocusPoint},
		{"point_y", func(p *ParameterSet) { p.FocusPoint = &Point{X: 0.5, Y: -0.1} }, FieldFocusPoint},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Default()
			tc.mod(&p)
			err := p.Validate()
			var re *RangeError
			if !errors.As(err, &re) {
				t.Fatalf("expected *RangeError, got %v", err)
			}
			if re.Field != tc.field {
				t.Errorf("field = %v, want %v", re.Field, tc.field)
			}
			if p.Valid() {
				t.Error("Valid() = true for out-of-range set")
			}
		})
	}
}

func TestValidate_Boundaries(t *testing.T) {
	p := Default()
	p.ISO = MinISO
	p.Zoom = MaxZoom
	p.ExposureBias = MinEV
	p.FocusPoint = &Point{X: 0, Y: 1}
	if err := p.Validate(); err != nil {
		t.Errorf("inclusive bounds should validate, got %v", err)
	}
}

func TestWith_LeavesOriginalUntouched(t *testing.T) {
	p := Default()
	q, err := p.With(FieldISO, 800.0)
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	if q.ISO != 800 {
		t.Errorf("q.ISO = %v, want 800", q.ISO)
	}
	if p.ISO != AutoISOTarget {
		t.Errorf("p.ISO changed to %v", p.ISO)
	}
}

func TestWith_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		field Field
		value any
	}{
		{"iso_range", FieldISO, 50.0},
		{"iso_type", FieldISO, "800"},
		{"zoom_range", FieldZoom, 11.0},
		{"bias_range", FieldExposureBias, 3.0},
		{"position_type", FieldPosition, 1},
		{"position_range", FieldPosition, Position(7)},
		{"mode_type", FieldFocusMode, FlashOn},
		{"point_range", FieldFocusPoint, Point{X: 2, Y: 0}},
		{"point_type", FieldFocusPoint, "0.5,0.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Default()
			q, err := p.With(tc.field, tc.value)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !q.Equal(p) {
				t.Error("rejected write must return the original set")
			}
		})
	}
}

func TestWith_FocusPoint(t *testing.T) {
	p := Default()
	q, err := p.With(FieldFocusPoint, Point{X: 0.25, Y: 0.75})
	if err != nil {
		t.Fatalf("With: %v", err)
	}
	if q.FocusPoint == nil || *q.FocusPoint != (Point{0.25, 0.75}) {
		t.Fatalf("focus point = %v", q.FocusPoint)
	}
	r, err := q.With(FieldFocusPoint, nil)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if r.FocusPoint != nil {
		t.Error("focus point should be cleared")
	}
	if q.FocusPoint == nil {
		t.Error("clearing r must not touch q")
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		field Field
		in    string
		want  any
	}{
		{FieldPosition, "front", Front},
		{FieldPreset, "hd1920x1080", Preset1920x1080},
		{FieldFlashMode, "off", FlashOff},
		{FieldExposureMode, "custom", Custom},
		{FieldStabilization, "cinematic", StabilizationCinematic},
		{FieldISO, "1600", 1600.0},
		{FieldZoom, " 2.5 ", 2.5},
		{FieldFocusPoint, "0.5, 0.25", Point{0.5, 0.25}},
		{FieldFocusPoint, "", nil},
	}
	for _, tc := range cases {
		t.Run(tc.field.String()+"_"+tc.in, func(t *testing.T) {
			got, err := ParseValue(tc.field, tc.in)
			if err != nil {
				t.Fatalf("ParseValue: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tc.want, tc.want)
			}
		})
	}
}

func TestParseValue_Invalid(t *testing.T) {
	cases := []struct {
		field Field
		in    string
	}{
		{FieldPosition, "side"},
		{FieldISO, "fast"},
		{FieldFocusPoint, "0.5"},
		{FieldFocusPoint, "a,b"},
	}
	for _, tc := range cases {
		if _, err := ParseValue(tc.field, tc.in); err == nil {
			t.Errorf("ParseValue(%v, %q): expected error", tc.field, tc.in)
		}
	}
}

func TestParseField_RoundTrip(t *testing.T) {
	for _, f := range Fields() {
		got, err := ParseField(f.String())
		if err != nil || got != f {
			t.Errorf("ParseField(%q) = %v, %v", f.String(), got, err)
		}
	}
	if _, err := ParseField("shutter"); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestParameterSet_JSON(t *testing.T) {
	p := Default()
	p.FocusPoint = &Point{X: 0.5, Y: 0.5}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["position"] != "back" || m["exposure_mode"] != "continuous-auto" || m["stabilization_mode"] != "auto" {
		t.Errorf("unexpected text forms: %v", m)
	}
}

func TestPresetResolution(t *testing.T) {
	if r := Preset1280x720.Resolution(); r.Width != 1280 || r.Height != 720 {
		t.Errorf("720p resolution = %+v", r)
	}
	if r := Preset(99).Resolution(); r != PresetPhoto.Resolution() {
		t.Errorf("unknown preset should fall back to photo, got %+v", r)
	}
}

func TestFlashMode_Next(t *testing.T) {
	if FlashAuto.Next() != FlashOn || FlashOn.Next() != FlashOff || FlashOff.Next() != FlashAuto {
		t.Error("flash cycle should be auto -> on -> off -> auto")
	}
}
