package geometry

import "math"

// PinchZoom applies a pinch gesture scale to the zoom factor the gesture
// started from.
// Formula: zoom = clamp(start × scale, min, max)
// A non-positive or non-finite scale leaves the zoom unchanged.
func PinchZoom(start, scale, min, max float64) float64 {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return clamp(start, min, max)
	}
	return clamp(start*scale, min, max)
}

// SnapZoom returns the step nearest to z, if it lies within tolerance
// (relative, e.g. 0.05 for 5%); otherwise z itself. Used to make the
// preset zoom buttons (1x, 2x, ...) sticky during a pinch.
func SnapZoom(z float64, steps []float64, tolerance float64) float64 {
	best, bestDist := z, math.Inf(1)
	for _, s := range steps {
		d := math.Abs(z - s)
		if d < bestDist && d <= s*tolerance {
			best, bestDist = s, d
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
