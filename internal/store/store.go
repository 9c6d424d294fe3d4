// Package store persists plan orders, submitted orders and execution
// results so the engine can recover after a crash without
// double-executing.
package store

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

// Store is the durable log consumed by the engine. Implementations
// must be safe for concurrent use: admission writes happen on strategy
// goroutines while the dispatch loop writes execution progress.
type Store interface {
	// StorePlanOrder persists a new plan order and assigns its ID.
	StorePlanOrder(plan *model.PlanOrder) error
	UpdatePlanOrderLeft(id uint64, left decimal.Decimal, at time.Time) error

	// StoreCandidateOrder records a placement attempt keyed by the
	// candidate's local ID.
	StoreCandidateOrder(order *model.CandidateOrder) error
	// CommitCandidateOrder binds the exchange-assigned order ID to a
	// previously stored candidate.
	CommitCandidateOrder(exchangeOrderID, localID string) error
	StoreOrderResult(exchangeOrderID string, leftSize decimal.Decimal, status enum.OrderStatus) error

	// StoreShrink records a zero-price netting execution event.
	StoreShrink(planOrderID uint64, amount decimal.Decimal, at time.Time) error

	// QueryUnfinishedPlanOrders returns every plan order with
	// remaining quantity, used once at startup for recovery.
	QueryUnfinishedPlanOrders() ([]*model.PlanOrder, error)
}
