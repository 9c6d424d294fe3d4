package gateway

import (
	"context"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"
)

// SimFactoryKey is the registry key of the simulated gateway.
const SimFactoryKey = "sim"

func init() {
	_ = Register(SimFactoryKey, func(account string, params map[string]string) (Gateway, error) {
		return NewSim(account), nil
	})
}

// SimQuote is the scripted market state for one instrument.
type SimQuote struct {
	Bid         decimal.Decimal
	Ask         decimal.Decimal
	FundingRate decimal.Decimal
}

// Sim is an in-memory gateway used by the paper-trading tool and the
// engine tests. Quotes, placement outcomes and cancel fills are
// scripted by the caller.
type Sim struct {
	mu sync.Mutex

	name      string
	alive     bool
	quotes    map[string]SimQuote
	markRatio decimal.Decimal
	makerRate decimal.Decimal
	takerRate decimal.Decimal

	nextResults []PlacementResult // consumed in order; empty = accept
	cancelFills map[string]decimal.Decimal

	seq    int
	placed []model.CandidateOrder
	open   map[string]model.CandidateOrder
}

// NewSim creates an alive sim gateway with neutral funding, fees and
// mark ratio.
func NewSim(name string) *Sim {
	return &Sim{
		name:        name,
		alive:       true,
		quotes:      make(map[string]SimQuote),
		markRatio:   decimal.NewFromInt(1),
		cancelFills: make(map[string]decimal.Decimal),
		open:        make(map[string]model.CandidateOrder),
	}
}

func (s *Sim) Name() string { return s.name }

func (s *Sim) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// SetAlive toggles the liveness flag.
func (s *Sim) SetAlive(alive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = alive
}

// SetQuote scripts the market state for an instrument.
func (s *Sim) SetQuote(instrument string, quote SimQuote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[instrument] = quote
}

// SetMarkRatio scripts the mark-to-quote-currency ratio.
func (s *Sim) SetMarkRatio(ratio decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markRatio = ratio
}

// SetRates scripts the maker and taker fee rates.
func (s *Sim) SetRates(maker, taker decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.makerRate = maker
	s.takerRate = taker
}

// ScriptPlacement appends results consumed by subsequent PlaceOrder
// calls. When the script is exhausted, orders are accepted.
func (s *Sim) ScriptPlacement(results ...PlacementResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextResults = append(s.nextResults, results...)
}

// ScriptCancelFill sets the filled size reported by the next cancel of
// the given exchange order.
func (s *Sim) ScriptCancelFill(exchangeOrderID string, filled decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelFills[exchangeOrderID] = filled
}

func (s *Sim) DepthPrice(instrument string, side enum.Side, minDepth decimal.Decimal) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.quotes[instrument]
	if !ok {
		return decimal.Zero, exception.ErrGatewayQuoteUnavailable
	}
	switch side {
	case enum.SideBuy:
		return quote.Bid, nil
	case enum.SideSell:
		return quote.Ask, nil
	default:
		return decimal.Zero, exception.ErrGatewayQuoteUnavailable
	}
}

func (s *Sim) FundingRate(instrument string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	quote, ok := s.quotes[instrument]
	if !ok {
		return decimal.Zero, exception.ErrGatewayQuoteUnavailable
	}
	return quote.FundingRate, nil
}

func (s *Sim) MarkRatio() (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markRatio, nil
}

func (s *Sim) MakerRate() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.makerRate
}

func (s *Sim) TakerRate() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takerRate
}

func (s *Sim) PlaceOrder(ctx context.Context, order *model.CandidateOrder) PlacementResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.alive {
		return HardRejected(exception.ErrGatewayNotAlive)
	}

	if len(s.nextResults) > 0 {
		res := s.nextResults[0]
		s.nextResults = s.nextResults[1:]
		if res.Status == PlacementAccepted && res.ExchangeOrderID == "" {
			res.ExchangeOrderID = s.nextID()
		}
		s.record(order, res)
		return res
	}

	res := Accepted(s.nextID())
	s.record(order, res)
	return res
}

func (s *Sim) CancelOrder(ctx context.Context, instrument, exchangeOrderID string) (CancelResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.open[exchangeOrderID]; !ok {
		return CancelResult{}, exception.ErrGatewayCancelFailed
	}
	delete(s.open, exchangeOrderID)

	filled := s.cancelFills[exchangeOrderID]
	delete(s.cancelFills, exchangeOrderID)
	return CancelResult{FilledSize: filled, Status: enum.OrderStatusCanceled}, nil
}

// Placed returns every order this gateway has seen, in order.
func (s *Sim) Placed() []model.CandidateOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CandidateOrder, len(s.placed))
	copy(out, s.placed)
	return out
}

// MarkFilled removes an open order and returns it, simulating a full
// fill observed from the exchange.
func (s *Sim) MarkFilled(exchangeOrderID string) (model.CandidateOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ord, ok := s.open[exchangeOrderID]
	if !ok {
		return model.CandidateOrder{}, false
	}
	delete(s.open, exchangeOrderID)
	return ord, true
}

// Open returns the currently resting orders keyed by exchange order
// ID.
func (s *Sim) Open() map[string]model.CandidateOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.CandidateOrder, len(s.open))
	for id, ord := range s.open {
		out[id] = ord
	}
	return out
}

func (s *Sim) nextID() string {
	s.seq++
	return s.name + "-" + strconv.Itoa(s.seq)
}

func (s *Sim) record(order *model.CandidateOrder, res PlacementResult) {
	recorded := *order
	recorded.ExchangeOrderID = res.ExchangeOrderID
	s.placed = append(s.placed, recorded)
	if res.Status == PlacementAccepted {
		s.open[res.ExchangeOrderID] = recorded
	}
}
