package capture

import "fmt"

type State int

const (
	StateAwaitingStart State = iota
	StateHeaderRead
	StateRecording
	StateDraining
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "awaiting start"
	case StateHeaderRead:
		return "header read"
	case StateRecording:
		return "recording"
	case StateDraining:
		return "draining"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("unknown state %d", int(s))
	}
}

// Sessions only move forward, one state at a time.
func (s State) canTransitionTo(next State) bool {
	return next == s+1
}
