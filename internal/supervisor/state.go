package supervisor

import "sync/atomic"

// State is the lifecycle state of the supervisor process.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateShuttingDown
	StateExited
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateExited:
		return "exited"
	default:
		return "unknown"
	}
}

type stateFlag struct {
	v atomic.Int32
}

func (f *stateFlag) Load() State {
	return State(f.v.Load())
}

func (f *stateFlag) Store(s State) {
	f.v.Store(int32(s))
}

func (f *stateFlag) CompareAndSwap(old, new State) bool {
	return f.v.CompareAndSwap(int32(old), int32(new))
}
