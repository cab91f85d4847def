package params

import "fmt"

// Position selects the physical camera facing.
type Position int

const (
	Back Position = iota
	Front
)

var positionNames = []string{"back", "front"}

func (p Position) String() string { return enumString(positionNames, int(p)) }

func (p Position) MarshalText() ([]byte, error) { return enumMarshal(positionNames, int(p), "position") }

func (p *Position) UnmarshalText(b []byte) error {
	v, err := enumParse(positionNames, string(b), "position")
	*p = Position(v)
	return err
}

// Preset is the quality/resolution tier of the capture session.
type Preset int

const (
	PresetPhoto Preset = iota
	PresetHigh
	PresetMedium
	PresetLow
	Preset640x480
	Preset1280x720
	Preset1920x1080
	Preset3840x2160
)

var presetNames = []string{"photo", "high", "medium", "low", "vga640x480", "hd1280x720", "hd1920x1080", "hd4k3840x2160"}

// Resolution is a nominal frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

var presetResolutions = []Resolution{
	{4032, 3024}, // photo: full sensor, 4:3
	{1920, 1080},
	{1280, 720},
	{640, 480},
	{640, 480},
	{1280, 720},
	{1920, 1080},
	{3840, 2160},
}

// Resolution returns the nominal frame size for the preset.
func (p Preset) Resolution() Resolution {
	if int(p) < 0 || int(p) >= len(presetResolutions) {
		return presetResolutions[PresetPhoto]
	}
	return presetResolutions[p]
}

func (p Preset) String() string { return enumString(presetNames, int(p)) }

func (p Preset) MarshalText() ([]byte, error) { return enumMarshal(presetNames, int(p), "preset") }

func (p *Preset) UnmarshalText(b []byte) error {
	v, err := enumParse(presetNames, string(b), "preset")
	*p = Preset(v)
	return err
}

// FlashMode controls the strobe for still captures.
type FlashMode int

const (
	FlashAuto FlashMode = iota
	FlashOn
	FlashOff
)

var flashNames = []string{"auto", "on", "off"}

func (f FlashMode) String() string { return enumString(flashNames, int(f)) }

func (f FlashMode) MarshalText() ([]byte, error) { return enumMarshal(flashNames, int(f), "flash mode") }

func (f *FlashMode) UnmarshalText(b []byte) error {
	v, err := enumParse(flashNames, string(b), "flash mode")
	*f = FlashMode(v)
	return err
}

// Next cycles auto -> on -> off -> auto.
func (f FlashMode) Next() FlashMode {
	return FlashMode((int(f) + 1) % len(flashNames))
}

// Mode is shared by the exposure, focus and white balance axes.
type Mode int

const (
	ContinuousAuto Mode = iota
	Locked
	Custom
)

var modeNames = []string{"continuous-auto", "locked", "custom"}

func (m Mode) String() string { return enumString(modeNames, int(m)) }

func (m Mode) MarshalText() ([]byte, error) { return enumMarshal(modeNames, int(m), "mode") }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := enumParse(modeNames, string(b), "mode")
	*m = Mode(v)
	return err
}

type (
	ExposureMode     = Mode
	FocusMode        = Mode
	WhiteBalanceMode = Mode
)

// StabilizationMode is the video stabilization setting.
type StabilizationMode int

const (
	StabilizationOff StabilizationMode = iota
	StabilizationStandard
	StabilizationCinematic
	StabilizationAuto
)

var stabilizationNames = []string{"off", "standard", "cinematic", "auto"}

func (s StabilizationMode) String() string { return enumString(stabilizationNames, int(s)) }

func (s StabilizationMode) MarshalText() ([]byte, error) {
	return enumMarshal(stabilizationNames, int(s), "stabilization mode")
}

func (s *StabilizationMode) UnmarshalText(b []byte) error {
	v, err := enumParse(stabilizationNames, string(b), "stabilization mode")
	*s = StabilizationMode(v)
	return err
}

func enumString(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return fmt.Sprintf("unknown(%d)", v)
	}
	return names[v]
}

func enumMarshal(names []string, v int, kind string) ([]byte, error) {
	if v < 0 || v >= len(names) {
		return nil, fmt.Errorf("invalid %s %d", kind, v)
	}
	return []byte(names[v]), nil
}

func enumParse(names []string, s, kind string) (int, error) {
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}
