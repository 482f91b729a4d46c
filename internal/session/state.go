package session

import (
	"sync/atomic"

	"github.com/alanbriolat/resumable-download/generic"
)

type State string

const (
	StateIdle        State = "idle"
	StateDownloading State = "downloading"
	StatePaused      State = "paused"
	StateCompleted   State = "completed"
	StateCancelled   State = "cancelled"
	StateError       State = "error"
)

var activeStates = generic.NewSet(
	StateDownloading,
	StatePaused,
)

var terminalStates = generic.NewSet(
	StateCompleted,
	StateCancelled,
	StateError,
)

// IsActive returns true if a worker is running a transfer in this state.
func (s State) IsActive() bool {
	return activeStates.Contains(s)
}

// IsTerminal returns true if the transfer has ended; only a new Start leaves a terminal state.
func (s State) IsTerminal() bool {
	return terminalStates.Contains(s)
}

func (s State) String() string {
	return string(s)
}

// atomicState allows reading the state without taking any lock; writers still serialise through Session.ctl.
type atomicState struct {
	v atomic.Value
}

func (a *atomicState) Load() State {
	if s, ok := a.v.Load().(State); ok {
		return s
	}
	return StateIdle
}

func (a *atomicState) Store(s State) {
	a.v.Store(s)
}
