package model

import "fmt"

type State string

const (
	StateIdle                  = State("idle")
	StateClarifying            = State("clarifying")
	StateAwaitingClarification = State("awaiting_clarification")
	StateBuilding              = State("building")
	StateIteratingQA           = State("iterating_qa")
	StateRefining              = State("refining")
	StateCancelled             = State("cancelled")
	StateFailed                = State("failed")
)

type Event string

const (
	EventClarify     = Event("clarify")
	EventClarifyDone = Event("clarify_done")
	EventBuild       = Event("build")
	EventRefine      = Event("refine")
	EventCritique    = Event("critique")
	EventExtraFix    = Event("extra_fix")
	EventComplete    = Event("complete")
	EventCancel      = Event("cancel")
	EventFail        = Event("fail")
	EventReset       = Event("reset")
)

// IsActive reports whether a pipeline owns the session in this state.
func (s State) IsActive() bool {
	switch s {
	case StateClarifying, StateBuilding, StateIteratingQA, StateRefining:
		return true
	default:
		return false
	}
}

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventClarify:  StateClarifying,
		EventBuild:    StateBuilding,
		EventRefine:   StateRefining,
		EventExtraFix: StateIteratingQA,
	},
	StateClarifying: {
		EventClarifyDone: StateAwaitingClarification,
	},
	StateAwaitingClarification: {
		EventBuild: StateBuilding,
	},
	StateBuilding: {
		EventCritique: StateIteratingQA,
	},
	StateRefining: {
		EventCritique: StateIteratingQA,
	},
	StateIteratingQA: {
		EventCritique: StateIteratingQA,
		EventComplete: StateIdle,
	},
}

func init() {
	// Cancelled and failed sessions accept the same entries as an idle one.
	transitions[StateCancelled] = transitions[StateIdle]
	transitions[StateFailed] = transitions[StateIdle]
}

// Transition is the only place session phases change.
func Transition(from State, event Event) (State, error) {
	switch event {
	case EventReset:
		return StateIdle, nil
	case EventCancel:
		if from.IsActive() {
			return StateCancelled, nil
		}
	case EventFail:
		if from.IsActive() {
			return StateFailed, nil
		}
	default:
		if to, ok := transitions[from][event]; ok {
			return to, nil
		}
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
}
