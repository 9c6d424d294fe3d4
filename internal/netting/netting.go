// Package netting offsets opposing plan orders for the same instrument
// internally, reducing what must be executed on the open market.
package netting

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/model"
)

// Recorder receives the audit trail of a netting pass: one zero-price
// shrink event per offset order plus the refreshed remaining quantity.
type Recorder interface {
	StoreShrink(planOrderID uint64, amount decimal.Decimal, at time.Time) error
	UpdatePlanOrderLeft(id uint64, left decimal.Decimal, at time.Time) error
}

// Run offsets every pair of opposing plan orders sharing an instrument.
// The caller passes only plan orders with no live candidate order, so
// netting never races an in-flight exchange order. Returns the total
// notional offset.
//
// Netting only ever shrinks LeftQuantity; the sum of signed executed
// amounts is unaffected.
func Run(plans []*model.PlanOrder, rec Recorder, now time.Time) decimal.Decimal {
	total := decimal.Zero
	byInstrument := make(map[string][]*model.PlanOrder, len(plans))
	for _, plan := range plans {
		byInstrument[plan.Instrument] = append(byInstrument[plan.Instrument], plan)
	}

	for _, group := range byInstrument {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.Done() || b.Done() {
					continue
				}
				if a.SignedQuantity.Sign() == b.SignedQuantity.Sign() {
					continue
				}

				offset := decimal.Min(a.LeftQuantity, b.LeftQuantity)
				if !offset.IsPositive() {
					continue
				}
				a.Reduce(offset, now)
				b.Reduce(offset, now)
				record(rec, a, offset, now)
				record(rec, b, offset, now)
				total = total.Add(offset)
			}
		}
	}
	return total
}

func record(rec Recorder, plan *model.PlanOrder, offset decimal.Decimal, now time.Time) {
	if err := rec.StoreShrink(plan.ID, offset, now); err != nil {
		logs.Errorf("store shrink event for plan %d, err: %+v", plan.ID, err)
	}
	if err := rec.UpdatePlanOrderLeft(plan.ID, plan.LeftQuantity, now); err != nil {
		logs.Errorf("update plan %d left quantity, err: %+v", plan.ID, err)
	}
}
