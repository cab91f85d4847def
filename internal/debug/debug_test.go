package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevels_FilterOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(LevelLive)
	defer Init(LevelOff)

	Info("info %d", 1)
	Live("live %d", 2)
	Verbose("verbose %d", 3)
	Trace("trace %d", 4)

	got := buf.String()
	for _, want := range []string{"[INFO] info 1", "[LIVE] live 2"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"verbose 3", "trace 4"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("output should not contain %q at level %d", unwanted, LevelLive)
		}
	}
}

func TestOff_NoOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Init(LevelOff)

	Info("hidden")
	Error(nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output at level 0, got %q", buf.String())
	}
	if Fmt("x=%d", 1) != "" {
		t.Error("Fmt should return empty string when disabled")
	}
}

func TestSetOutput_AfterInit(t *testing.T) {
	var first, second bytes.Buffer
	SetOutput(&first)
	Init(LevelTrace)
	defer Init(LevelOff)

	SetOutput(&second)
	Prop("cam0", "zoom", 2.0)

	if first.Len() != 0 {
		t.Errorf("old writer should not receive output, got %q", first.String())
	}
	if !strings.Contains(second.String(), "[PROP] cam0 zoom=2") {
		t.Errorf("new writer missing prop line: %q", second.String())
	}
}

func TestIsEnabled(t *testing.T) {
	Init(LevelVerbose)
	defer Init(LevelOff)
	if !IsEnabled(LevelInfo) || !IsEnabled(LevelVerbose) {
		t.Error("levels up to verbose should be enabled")
	}
	if IsEnabled(LevelTrace) {
		t.Error("trace should be disabled at verbose")
	}
}
