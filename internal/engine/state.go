package engine

import (
	"fmt"
	"sync/atomic"
)

// State is the lifecycle state of a job.
type State int32

// Job states.
const (
	StateIdle State = iota
	StateRunning
	StateCancelling
	StateCompleted
	StateCancelled
	StateFailed
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateRunning:    "running",
	StateCancelling: "cancelling",
	StateCompleted:  "completed",
	StateCancelled:  "cancelled",
	StateFailed:     "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}

	return stateNames[s]
}

// IsTerminal reports whether s is a final state.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateRunning
	case StateRunning:
		return to == StateCancelling || to == StateCompleted || to == StateFailed || to == StateCancelled
	case StateCancelling:
		return to == StateCancelled
	default:
		return false
	}
}

// stateCell holds a State and only moves it along allowed transitions.
type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) load() State { return State(c.v.Load()) }

// transition moves from -> to. It fails when the current state is not from
// or the move is not allowed, which makes races between the worker and a
// canceller observable.
func (c *stateCell) transition(from, to State) error {
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("disallowed transition %s -> %s", from, to)
	}

	if !c.v.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("invalid transition to %s: expected %s, got %s", to, from, c.load())
	}

	return nil
}
