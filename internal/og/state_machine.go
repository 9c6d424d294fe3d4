package og

import (
	"errors"

	"main/internal/model"
)

var (
	ErrDuplicateOrder    = errors.New("order already tracked")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrOrderBusy         = errors.New("order has an in-flight request")
)

// State tracks the async submission lifecycle of a candidate order.
type State uint16

const (
	StateUnknown State = iota
	StateSubmitting
	StateSubmitted
	StateCancelling
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateCancelling:
		return "cancelling"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// InFlight reports whether the order has an unresolved exchange call.
// In-flight orders must not be replaced or escalated; the lifecycle
// manager skips them until the next tick.
func (s State) InFlight() bool {
	return s == StateSubmitting || s == StateCancelling
}

// Terminal reports whether the order has left the live set.
func (s State) Terminal() bool {
	return s == StateCancelled
}

// Tracked is the machine's view of one async order.
type Tracked struct {
	Order *model.CandidateOrder
	State State
}

func validTransition(from, to State) bool {
	switch from {
	case StateSubmitting:
		// Rejection takes the direct Submitting -> Cancelled edge.
		return to == StateSubmitted || to == StateCancelled
	case StateSubmitted:
		return to == StateCancelling
	case StateCancelling:
		// A failed cancel rolls back to Submitted and is retried.
		return to == StateCancelled || to == StateSubmitted
	default:
		return false
	}
}
