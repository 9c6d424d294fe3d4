package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"main/internal/model/enum"
)

// CandidateOrder is one concrete, account-specific order derived from a
// plan order. At most one candidate per plan order is live at a time
// under the synchronous dispatch model; PlanOrderID is the foreign key
// back to the owning plan order.
type CandidateOrder struct {
	LocalID         string
	PlanOrderID     uint64
	Account         string
	Instrument      string
	ExchangeSymbol  string
	Side            enum.Side
	Kind            enum.OrderKind
	Size            decimal.Decimal // base-asset size
	QuotePrice      decimal.Decimal
	Notional        decimal.Decimal
	NormalizedPrice decimal.Decimal // cross-account comparable price
	ExchangeOrderID string          // set once the exchange accepts
	CreatedTime     time.Time
}

// NewLocalID returns a fresh candidate-order local identifier.
func NewLocalID() string {
	return uuid.NewString()
}

// Placed reports whether the exchange has accepted this order.
func (c *CandidateOrder) Placed() bool {
	return c.ExchangeOrderID != ""
}
