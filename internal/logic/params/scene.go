package params

import "sort"

// Scene is a named transformation that sets a coordinated subset of fields.
// Fields a scene does not mention are left untouched.
type Scene func(ParameterSet) ParameterSet

// Exposure values for the scene presets.
const (
	NightISO    = 1600.0
	NightEV     = 1.0
	PortraitISO = 100.0

	daylightISO = 100.0
	daylightEV  = 0.0
	cloudyISO   = 200.0
	cloudyEV    = 0.3
	sunsetISO   = 400.0
	sunsetEV    = 0.7
	actionISO   = 400.0
)

var scenes = map[string]Scene{
	"auto": func(p ParameterSet) ParameterSet {
		p.ExposureMode = ContinuousAuto
		p.FocusMode = ContinuousAuto
		p.WhiteBalance = ContinuousAuto
		return p
	},
	"portrait": func(p ParameterSet) ParameterSet {
		p.ExposureMode = ContinuousAuto
		p.FocusMode = ContinuousAuto
		p.ISO = PortraitISO
		return p
	},
	"night": func(p ParameterSet) ParameterSet {
		p.ExposureMode = Custom
		p.ISO = NightISO
		p.ExposureBias = NightEV
		return p
	},
	"landscape": func(p ParameterSet) ParameterSet {
		p.ExposureMode = Custom
		p.FocusMode = ContinuousAuto
		p.ISO = daylightISO
		p.ExposureBias = daylightEV
		return p
	},
	"cloudy": func(p ParameterSet) ParameterSet {
		p.ExposureMode = Custom
		p.ISO = cloudyISO
		p.ExposureBias = cloudyEV
		return p
	},
	"sunset": func(p ParameterSet) ParameterSet {
		p.ExposureMode = Custom
		p.ISO = sunsetISO
		p.ExposureBias = sunsetEV
		return p
	},
	"action": func(p ParameterSet) ParameterSet {
		p.ExposureMode = ContinuousAuto
		p.ISO = actionISO
		p.Stabilization = StabilizationStandard
		return p
	},
}

// Lookup returns the scene registered under name.
func Lookup(name string) (Scene, bool) {
	s, ok := scenes[name]
	return s, ok
}

// Apply runs the named scene on p. An unknown name yields Default():
// falling back to a full reset is intended, not an error.
func Apply(name string, p ParameterSet) (ParameterSet, bool) {
	s, ok := scenes[name]
	if !ok {
		return Default(), false
	}
	return s(p.Clone()), true
}

// Scenes lists the registered scene names in sorted order.
func Scenes() []string {
	names := make([]string, 0, len(scenes))
	for n := range scenes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
