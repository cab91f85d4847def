package session

// State is the lifecycle state of a Session.
type State int

const (
	Uninitialized State = iota
	Configured
	Running
	Stopped
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Disposed:
		return "disposed"
	default:
		return "unknown"
	}
}
