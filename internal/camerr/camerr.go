// Package camerr tags capture failures with the kind of problem that caused
// them, independently of which layer produced them.
package camerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors that carry no kind.
	KindUnknown Kind = iota
	// KindDeviceUnavailable: no physical device matches the requested position.
	KindDeviceUnavailable
	// KindValidation: a parameter violates its declared bound.
	KindValidation
	// KindSystem: a driver or hardware call failed.
	KindSystem
	// KindCaptureUnavailable: capture requested without a photo output or while not running.
	KindCaptureUnavailable
	// KindLifecycle: operation invoked after disposal or before configuration completed.
	KindLifecycle
)

func (k Kind) String() string {
	switch k {
	case KindDeviceUnavailable:
		return "DEVICE_UNAVAILABLE"
	case KindValidation:
		return "VALIDATION"
	case KindSystem:
		return "SYSTEM"
	case KindCaptureUnavailable:
		return "CAPTURE_UNAVAILABLE"
	case KindLifecycle:
		return "LIFECYCLE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets events carry the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrDeviceUnavailable  = &Error{Kind: KindDeviceUnavailable}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrSystem             = &Error{Kind: KindSystem}
	ErrCaptureUnavailable = &Error{Kind: KindCaptureUnavailable}
	ErrLifecycle          = &Error{Kind: KindLifecycle}
)

// Error is a tagged failure.
type Error struct {
	Kind Kind
	// Op is the operation that failed ("set", "reconfigure", "capture", ...).
	Op string
	// Axis names the parameter for per-axis failures (e.g. "iso"), if any.
	Axis string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Axis != "" {
		msg += " [" + e.Axis + "]"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Axis == "" && t.Err == nil
}

// New builds a tagged error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a tagged error from a format string.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Axis builds a SYSTEM error for one parameter axis.
func Axis(op, axis string, err error) *Error {
	return &Error{Kind: KindSystem, Op: op, Axis: axis, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
