// Package gateway defines the narrow per-account exchange surface the
// engine consumes. Concrete exchange adapters live outside this
// module; they are wired in through the factory registry at startup.
package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
)

// Gateway is the per-account action interface. Implementations own all
// protocol, authentication and reconnect concerns.
type Gateway interface {
	Name() string
	IsAlive() bool

	// DepthPrice returns the best price on the given book side that
	// covers at least minDepth base-asset size.
	DepthPrice(instrument string, side enum.Side, minDepth decimal.Decimal) (decimal.Decimal, error)
	FundingRate(instrument string) (decimal.Decimal, error)
	MarkRatio() (decimal.Decimal, error)
	MakerRate() decimal.Decimal
	TakerRate() decimal.Decimal

	PlaceOrder(ctx context.Context, order *model.CandidateOrder) PlacementResult
	// CancelOrder reports the base-asset size filled since the last
	// check along with the order's final status.
	CancelOrder(ctx context.Context, instrument, exchangeOrderID string) (CancelResult, error)
}

// PlacementStatus accepted, soft rejected, hard rejected
type PlacementStatus uint8

const (
	_placement_status_beg PlacementStatus = iota
	PlacementAccepted
	// PlacementSoftRejected marks the exchange's "effectively filled /
	// no-op" answer: the engine records a synthetic completed order and
	// never retries.
	PlacementSoftRejected
	PlacementHardRejected
	_placement_status_end
)

func (s PlacementStatus) IsAvailable() bool {
	return s > _placement_status_beg && s < _placement_status_end
}

// PlacementResult is the tagged outcome of a place-order attempt.
type PlacementResult struct {
	Status          PlacementStatus
	ExchangeOrderID string
	Err             error
}

// Accepted builds a successful placement result.
func Accepted(exchangeOrderID string) PlacementResult {
	return PlacementResult{Status: PlacementAccepted, ExchangeOrderID: exchangeOrderID}
}

// SoftRejected builds the effectively-filled no-op result.
func SoftRejected() PlacementResult {
	return PlacementResult{Status: PlacementSoftRejected}
}

// HardRejected builds a failed placement result.
func HardRejected(err error) PlacementResult {
	return PlacementResult{Status: PlacementHardRejected, Err: err}
}

// CancelResult reports the outcome of a cancel request.
type CancelResult struct {
	FilledSize decimal.Decimal // filled since last check, base asset
	Status     enum.OrderStatus
}
