package session

import (
	"github.com/cjeanneret/CamGo/internal/camerr"
	"github.com/cjeanneret/CamGo/internal/debug"
	"github.com/cjeanneret/CamGo/internal/events"
	"github.com/cjeanneret/CamGo/internal/hw/device"
	"github.com/cjeanneret/CamGo/internal/logic/params"
)

// reconfigure pushes the store's current parameters onto the device.
// Every axis is attempted on its own: a failing axis publishes one SYSTEM
// error and the remaining axes are still applied. Modes the device does not
// advertise are skipped without error.
func (s *Session) reconfigure() {
	s.reconfigMu.Lock()
	defer s.reconfigMu.Unlock()

	if s.isClosing() {
		return
	}
	p, version := s.store.Snapshot()
	if s.reconfigured && version == s.applied.Load() {
		debug.Trace("Reconfigure: parameters unchanged since last pass")
		return
	}
	s.reconfigured = true
	s.applied.Store(version)

	debug.Section("Reconfigure")
	if err := p.Validate(); err != nil {
		s.report(camerr.New(camerr.KindValidation, "reconfigure", err))
		return
	}

	if s.State() == Uninitialized {
		if !s.setup(p.Position) {
			return
		}
	}

	s.mu.Lock()
	dev := s.input
	s.mu.Unlock()

	if dev.Info().Position != p.Position {
		dev = s.switchDevice(dev, p.Position)
	}

	if err := dev.SetPreset(p.Preset); err != nil {
		s.axisFailed(device.AxisPreset, p.Preset, err)
	} else {
		debug.Axis(device.AxisPreset, p.Preset, "applied")
	}

	s.applyAxes(dev, p)
}

// switchDevice binds a device at pos in place of cur. The replacement is
// opened before cur is released, so a failure leaves cur bound and
// streaming. A capture already in cur's hardware is waited for before cur
// stops. It returns the device now bound.
func (s *Session) switchDevice(cur device.Device, pos params.Position) device.Device {
	from := cur.Info().Position
	debug.Live("Switching device %s -> %s", from, pos)

	next, err := s.driver.Discover(s.ctx, pos)
	if err != nil {
		if s.ctx.Err() == nil {
			s.report(&camerr.Error{Kind: camerr.KindDeviceUnavailable, Op: "reconfigure", Axis: device.AxisPosition, Err: err})
		}
		debug.Axis(device.AxisPosition, pos, "unavailable, keeping "+from.String())
		return cur
	}

	// The old output is retired with the swap, so captures still queued on
	// it fail with CAPTURE_UNAVAILABLE instead of reaching a stopped device.
	s.mu.Lock()
	oldOut := s.output
	oldOut.retire()
	s.input = next
	s.output = newPhotoOutput(next)
	s.mu.Unlock()
	oldOut.drain()

	running := s.State() == Running
	if running {
		s.stopPump()
		if err := cur.StopRunning(); err != nil {
			debug.Error(err)
		}
	}
	if err := cur.Close(); err != nil {
		debug.Error(err)
	}

	if running {
		if err := next.StartRunning(); err != nil {
			s.axisFailed(device.AxisPosition, pos, err)
			s.preview.setRunning(false)
			s.setState(Stopped)
		} else {
			s.startPump(next)
		}
	}
	info := next.Info()
	debug.Info("Device selected: %s (%s, %s)", info.Name, info.ID, info.Position)
	return next
}

// applyAxes writes focus, exposure, white balance, zoom and stabilization
// under the device configuration lock.
func (s *Session) applyAxes(dev device.Device, p params.ParameterSet) {
	if err := dev.Lock(); err != nil {
		s.report(camerr.Axis("reconfigure", "lock", err))
		return
	}
	defer dev.Unlock()

	caps := dev.Capabilities()

	// The point is independent of the mode: a device without custom focus
	// still refocuses on it in its auto modes.
	if p.FocusPoint != nil && caps.FocusPointOfInterest {
		s.apply(device.AxisFocusPoint, *p.FocusPoint, dev.SetFocusPoint(*p.FocusPoint))
	}
	if caps.SupportsFocus(p.FocusMode) {
		s.apply(device.AxisFocus, p.FocusMode, dev.SetFocusMode(p.FocusMode))
	} else {
		debug.Axis(device.AxisFocus, p.FocusMode, "unsupported, skipped")
	}

	if caps.SupportsExposure(p.ExposureMode) {
		s.apply(device.AxisExposure, p.ExposureMode, dev.SetExposureMode(p.ExposureMode))
		s.apply(device.AxisExposureBias, p.ExposureBias, dev.SetExposureBias(p.ExposureBias))
		if p.ExposureMode == params.Custom {
			s.apply(device.AxisISO, p.ISO, dev.SetISO(p.ISO))
		}
	} else {
		debug.Axis(device.AxisExposure, p.ExposureMode, "unsupported, skipped")
	}

	if caps.SupportsWhiteBalance(p.WhiteBalance) {
		s.apply(device.AxisWhiteBalance, p.WhiteBalance, dev.SetWhiteBalanceMode(p.WhiteBalance))
	} else {
		debug.Axis(device.AxisWhiteBalance, p.WhiteBalance, "unsupported, skipped")
	}

	if caps.SupportsZoom() {
		s.apply(device.AxisZoom, p.Zoom, dev.SetZoom(p.Zoom))
	} else {
		debug.Axis(device.AxisZoom, p.Zoom, "unsupported, skipped")
	}

	if caps.SupportsStabilization(p.Stabilization) {
		s.apply(device.AxisStabilization, p.Stabilization, dev.SetStabilization(p.Stabilization))
	} else {
		debug.Axis(device.AxisStabilization, p.Stabilization, "unsupported, skipped")
	}
}

func (s *Session) apply(axis string, value any, err error) {
	if err != nil {
		s.axisFailed(axis, value, err)
		return
	}
	debug.Axis(axis, value, "applied")
}

func (s *Session) axisFailed(axis string, value any, err error) {
	debug.Axis(axis, value, "failed: "+err.Error())
	s.emit(events.Event{Type: events.TypeError, Err: camerr.Axis("reconfigure", axis, err)})
}
