// Package og runs the non-blocking order submission variant: place and
// cancel return immediately, outcomes resolve later on a completion
// channel drained by the dispatch loop. The map of tracked orders is
// owned by the dispatch goroutine; exchange goroutines only write to
// the completion channel, so transitions stay deterministic and
// testable.
package og

import (
	"context"

	"main/internal/gateway"
)

// CompletionKind submit, cancel
type CompletionKind uint8

const (
	_completion_kind_beg CompletionKind = iota
	CompletionSubmit
	CompletionCancel
	_completion_kind_end
)

// Completion is a resolved exchange call, routed back into the
// dispatch loop.
type Completion struct {
	LocalID   string
	Kind      CompletionKind
	Placement gateway.PlacementResult // submit outcome
	Cancel    gateway.CancelResult    // cancel outcome
	CancelErr error
}

// Machine tracks async orders and their in-flight requests.
type Machine struct {
	orders      map[string]*Tracked
	completions chan Completion
}

// NewMachine creates a machine with the given completion buffer.
func NewMachine(buffer int) *Machine {
	if buffer <= 0 {
		buffer = 1
	}
	return &Machine{
		orders:      make(map[string]*Tracked),
		completions: make(chan Completion, buffer),
	}
}

// Completions is the channel the dispatch loop drains each tick.
func (m *Machine) Completions() <-chan Completion {
	return m.completions
}

// Tracked returns the current view of an order.
func (m *Machine) Tracked(localID string) (*Tracked, bool) {
	t, ok := m.orders[localID]
	return t, ok
}

// Busy reports whether the order is mid-submit or mid-cancel.
func (m *Machine) Busy(localID string) bool {
	t, ok := m.orders[localID]
	return ok && t.State.InFlight()
}

// Submit registers the order as Submitting and fires the exchange call
// without blocking. The outcome arrives on Completions.
func (m *Machine) Submit(ctx context.Context, g gateway.Gateway, t *Tracked) error {
	if t == nil || t.Order == nil || t.Order.LocalID == "" {
		return ErrUnknownOrder
	}
	if _, ok := m.orders[t.Order.LocalID]; ok {
		return ErrDuplicateOrder
	}
	t.State = StateSubmitting
	m.orders[t.Order.LocalID] = t

	order := *t.Order
	go func() {
		res := g.PlaceOrder(ctx, &order)
		m.completions <- Completion{
			LocalID:   order.LocalID,
			Kind:      CompletionSubmit,
			Placement: res,
		}
	}()
	return nil
}

// Cancel moves a Submitted order to Cancelling and fires the exchange
// call without blocking. Orders that are in flight cannot be canceled
// this tick.
func (m *Machine) Cancel(ctx context.Context, g gateway.Gateway, localID string) error {
	t, ok := m.orders[localID]
	if !ok {
		return ErrUnknownOrder
	}
	if t.State.InFlight() {
		return ErrOrderBusy
	}
	if !validTransition(t.State, StateCancelling) {
		return ErrInvalidTransition
	}
	t.State = StateCancelling

	instrument, exchangeOrderID := t.Order.ExchangeSymbol, t.Order.ExchangeOrderID
	go func() {
		res, err := g.CancelOrder(ctx, instrument, exchangeOrderID)
		m.completions <- Completion{
			LocalID:   localID,
			Kind:      CompletionCancel,
			Cancel:    res,
			CancelErr: err,
		}
	}()
	return nil
}

// Apply folds a completion into the tracked state and returns the
// updated order.
func (m *Machine) Apply(c Completion) (*Tracked, error) {
	t, ok := m.orders[c.LocalID]
	if !ok {
		return nil, ErrUnknownOrder
	}

	var next State
	switch c.Kind {
	case CompletionSubmit:
		if c.Placement.Status == gateway.PlacementAccepted {
			next = StateSubmitted
		} else {
			next = StateCancelled
		}
	case CompletionCancel:
		if c.CancelErr != nil {
			// Keep tracking: the order is still live on the exchange.
			next = StateSubmitted
		} else {
			next = StateCancelled
		}
	default:
		return t, ErrInvalidTransition
	}

	if !validTransition(t.State, next) {
		return t, ErrInvalidTransition
	}
	t.State = next
	if next == StateSubmitted && c.Kind == CompletionSubmit {
		t.Order.ExchangeOrderID = c.Placement.ExchangeOrderID
	}
	return t, nil
}

// Remove drops a terminal order from the machine.
func (m *Machine) Remove(localID string) {
	delete(m.orders, localID)
}

// Len returns the number of tracked orders.
func (m *Machine) Len() int {
	return len(m.orders)
}
