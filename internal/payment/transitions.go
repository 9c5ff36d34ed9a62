// Package payment defines the payment state machine that gates job posting.
//
// Valid state graph:
//
//	IDLE ──► CONNECTING ──► AWAITING_SIGNATURE ──► PENDING_CONFIRMATION ──► CONFIRMED
//	  ▲          │                 │      │                   │                 │
//	  └──────────┴─────────────────┘      └──► FAILED ◄───────┘                 │
//	  ▲                                          │                              │
//	  └──────────────────────────────────────────┴──────────────────────────────┘ (reset)
//
// FAILED may also start a new attempt directly (FAILED ──► CONNECTING).
package payment

import "fmt"

// State is the current phase of a payment attempt.
type State string

const (
	StateIdle                State = "idle"
	StateConnecting          State = "connecting"
	StateAwaitingSignature   State = "awaiting_signature"
	StatePendingConfirmation State = "pending_confirmation"
	StateConfirmed           State = "confirmed"
	StateFailed              State = "failed"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[State][]State{
	StateIdle:                {StateConnecting},
	StateConnecting:          {StateAwaitingSignature, StateIdle},
	StateAwaitingSignature:   {StatePendingConfirmation, StateFailed, StateIdle},
	StatePendingConfirmation: {StateConfirmed, StateFailed},
	StateConfirmed:           {StateIdle},
	StateFailed:              {StateIdle, StateConnecting},
}

// ParseState converts a raw string to a State, returning an error for
// unknown values.
func ParseState(s string) (State, error) {
	st := State(s)
	switch st {
	case StateIdle, StateConnecting, StateAwaitingSignature,
		StatePendingConfirmation, StateConfirmed, StateFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown payment state %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by the
// state machine.
func IsTransitionAllowed(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanStart reports whether a new attempt may begin from s.
func CanStart(s State) bool { return s == StateIdle || s == StateFailed }

// InFlight reports whether an attempt is between start and a terminal state.
func InFlight(s State) bool {
	return s == StateConnecting || s == StateAwaitingSignature || s == StatePendingConfirmation
}
