package geometry

import (
	"math"
	"testing"

	"github.com/cjeanneret/CamGo/internal/logic/params"
)

func TestPinchZoom(t *testing.T) {
	cases := []struct {
		name         string
		start, scale float64
		want         float64
	}{
		{"spread", 2, 1.5, 3},
		{"clamped_high", 8, 2, params.MaxZoom},
		{"clamped_low", 2, 0.25, params.MinZoom},
		{"zero_scale", 2, 0, 2},
		{"nan_scale", 12, math.NaN(), params.MaxZoom},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PinchZoom(tc.start, tc.scale, params.MinZoom, params.MaxZoom)
			if !near(got, tc.want) {
				t.Errorf("PinchZoom(%v, %v) = %v, want %v", tc.start, tc.scale, got, tc.want)
			}
		})
	}
}

func TestSnapZoom(t *testing.T) {
	steps := []float64{1, 2, 5, 10}
	cases := []struct {
		z, want float64
	}{
		{1.97, 2},
		{2.3, 2.3},
		{4.8, 5},
		{1.0, 1},
		{7, 7},
	}
	for _, tc := range cases {
		if got := SnapZoom(tc.z, steps, 0.05); !near(got, tc.want) {
			t.Errorf("SnapZoom(%v) = %v, want %v", tc.z, got, tc.want)
		}
	}
}
