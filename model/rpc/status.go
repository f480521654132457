package rpc

// Status captures the lifecycle state of a request. Transitions are monotonic
// along the state machine below; in particular, no request ever returns to
// StatusCreated, and a terminal request is never resubmitted.
//
//	Created → Submitted → (Provisional ⇄ Submitted)* → Resolved | Rejected
type Status int

const (
	// StatusCreated is the initial state; the request has not been sent yet.
	StatusCreated Status = iota
	// StatusSubmitted means the request has been handed to its protocol for
	// transmission.
	StatusSubmitted
	// StatusProvisional means the protocol signaled a recoverable failure and
	// the request is waiting for its retry interval to elapse.
	StatusProvisional
	// StatusResolved is the terminal success state.
	StatusResolved
	// StatusRejected is the terminal failure state.
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusSubmitted:
		return "submitted"
	case StatusProvisional:
		return "provisional"
	case StatusResolved:
		return "resolved"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal checks whether the status is one of the two terminal states.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// CanTransitionTo checks whether the state machine permits moving from the
// receiver state to the given next state.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusCreated:
		return next == StatusSubmitted
	case StatusSubmitted:
		return next == StatusProvisional || next.Terminal()
	case StatusProvisional:
		return next == StatusSubmitted || next.Terminal()
	default:
		// terminal states admit no further transitions
		return false
	}
}
