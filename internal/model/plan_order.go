package model

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// PlanOrder is a durable hedge request: a signed notional amount to
// execute in one instrument. ID is assigned by the store on first
// persistence; 0 means not yet persisted.
//
// Invariant: 0 <= LeftQuantity <= |SignedQuantity|. The order leaves
// the live set exactly when LeftQuantity reaches zero.
//
// PlanOrders are mutated only by the dispatch goroutine.
type PlanOrder struct {
	ID             uint64
	Instrument     string
	SignedQuantity decimal.Decimal // notional, sign = direction
	ReferencePrice decimal.Decimal // price basis for notional <-> size conversion
	LeftQuantity   decimal.Decimal // unsigned remaining notional
	StartTime      time.Time
	UpdateTime     time.Time
}

// NewPlanOrder builds an unpersisted plan order with the full quantity
// still left to execute.
func NewPlanOrder(instrument string, signedQuantity, referencePrice decimal.Decimal, now time.Time) *PlanOrder {
	return &PlanOrder{
		Instrument:     instrument,
		SignedQuantity: signedQuantity,
		ReferencePrice: referencePrice,
		LeftQuantity:   signedQuantity.Abs(),
		StartTime:      now,
		UpdateTime:     now,
	}
}

// Side derives the execution side from the quantity sign.
func (p *PlanOrder) Side() enum.Side {
	if p.SignedQuantity.IsNegative() {
		return enum.SideSell
	}
	return enum.SideBuy
}

// Done reports whether nothing is left to execute.
func (p *PlanOrder) Done() bool {
	return !p.LeftQuantity.IsPositive()
}

// Reduce subtracts executed notional from LeftQuantity, clamping at
// zero, and bumps UpdateTime.
func (p *PlanOrder) Reduce(notional decimal.Decimal, now time.Time) {
	left := p.LeftQuantity.Sub(notional)
	if left.IsNegative() {
		left = decimal.Zero
	}
	p.LeftQuantity = left
	p.UpdateTime = now
}

// LeftSize converts the remaining notional into base-asset size at the
// plan's reference price. Returns zero when the reference price is not
// positive.
func (p *PlanOrder) LeftSize() decimal.Decimal {
	if !p.ReferencePrice.IsPositive() {
		return decimal.Zero
	}
	return p.LeftQuantity.Div(p.ReferencePrice)
}
