// Package router proposes concrete exchange orders for a plan order,
// ranked so the cheapest execution is attempted first.
package router

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/gateway"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/pricing"
	"main/internal/registry"
)

var one = decimal.NewFromInt(1)

// Config tunes candidate construction.
type Config struct {
	// DepthSize is the base-asset depth used for price queries.
	DepthSize decimal.Decimal
	// DepthSafetyRatio shrinks the depth a market order may consume.
	DepthSafetyRatio decimal.Decimal
	// ImproveTick offsets limit quotes one tick toward the queue front.
	ImproveTick bool
}

// Router ranks candidate orders across accounts by normalized price.
type Router struct {
	cfg      Config
	reg      *registry.Registry
	gateways map[string]gateway.Gateway
}

// New creates a router over the given accounts.
func New(cfg Config, reg *registry.Registry, gateways map[string]gateway.Gateway) *Router {
	return &Router{cfg: cfg, reg: reg, gateways: gateways}
}

// Route builds every placeable candidate for the plan order and
// returns them best first: ascending normalized price for buys,
// descending for sells. Accounts that are dead, unquotable or unable
// to represent the order size are skipped.
func (r *Router) Route(plan *model.PlanOrder, kind enum.OrderKind) []model.CandidateOrder {
	side := plan.Side()
	routes := r.reg.AccountsFor(plan.Instrument, side)

	candidates := make([]model.CandidateOrder, 0, len(routes))
	for _, route := range routes {
		g, ok := r.gateways[route.Account]
		if !ok || !g.IsAlive() {
			continue
		}
		candidate, ok := r.candidate(plan, kind, side, route, g)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if side == enum.SideSell {
			return candidates[i].NormalizedPrice.GreaterThan(candidates[j].NormalizedPrice)
		}
		return candidates[i].NormalizedPrice.LessThan(candidates[j].NormalizedPrice)
	})
	return candidates
}

func (r *Router) candidate(plan *model.PlanOrder, kind enum.OrderKind, side enum.Side, route registry.Route, g gateway.Gateway) (model.CandidateOrder, bool) {
	// Execution crosses the book, so the comparable price is the best
	// opposite-side price: ask for a buy, bid for a sell.
	crossPrice, err := g.DepthPrice(route.ExchangeSymbol, side.Opposite(), r.cfg.DepthSize)
	if err != nil || !crossPrice.IsPositive() {
		logs.Debugf("skip account %s for %s: depth price, err: %+v", route.Account, plan.Instrument, err)
		return model.CandidateOrder{}, false
	}
	fundingRate, err := g.FundingRate(route.ExchangeSymbol)
	if err != nil {
		logs.Debugf("skip account %s for %s: funding rate, err: %+v", route.Account, plan.Instrument, err)
		return model.CandidateOrder{}, false
	}
	markRatio, err := g.MarkRatio()
	if err != nil || !markRatio.IsPositive() {
		logs.Debugf("skip account %s for %s: mark ratio, err: %+v", route.Account, plan.Instrument, err)
		return model.CandidateOrder{}, false
	}

	feeRate := g.TakerRate()
	if kind == enum.OrderKindLimit {
		feeRate = g.MakerRate()
	}
	normalized := pricing.Normalize(crossPrice, markRatio, fundingRate, feeRate, side, route.PricePrecision)

	var quote decimal.Decimal
	switch kind {
	case enum.OrderKindLimit:
		// A resting order queues on its own side of the book.
		same, err := g.DepthPrice(route.ExchangeSymbol, side, r.cfg.DepthSize)
		if err != nil || !same.IsPositive() {
			logs.Debugf("skip account %s for %s: same-side price, err: %+v", route.Account, plan.Instrument, err)
			return model.CandidateOrder{}, false
		}
		quote = same
		if r.cfg.ImproveTick {
			improved := pricing.Improve(same, side, route.PricePrecision)
			if !crossesSpread(improved, crossPrice, side) {
				quote = improved
			}
		}
	case enum.OrderKindMarket:
		quote = crossPrice
	default:
		return model.CandidateOrder{}, false
	}

	size := pricing.BaseSize(plan.LeftQuantity, quote, route.SizePrecision)
	if kind == enum.OrderKindMarket {
		maxSize := r.cfg.DepthSize.Mul(one.Sub(r.cfg.DepthSafetyRatio)).RoundDown(route.SizePrecision)
		if maxSize.IsPositive() && size.GreaterThan(maxSize) {
			size = maxSize
		}
	}
	if !size.IsPositive() {
		// The account's precision cannot represent this order.
		return model.CandidateOrder{}, false
	}

	return model.CandidateOrder{
		LocalID:         model.NewLocalID(),
		PlanOrderID:     plan.ID,
		Account:         route.Account,
		Instrument:      plan.Instrument,
		ExchangeSymbol:  route.ExchangeSymbol,
		Side:            side,
		Kind:            kind,
		Size:            size,
		QuotePrice:      quote,
		Notional:        size.Mul(quote),
		NormalizedPrice: normalized,
		CreatedTime:     time.Now(),
	}, true
}

func crossesSpread(quote, crossPrice decimal.Decimal, side enum.Side) bool {
	if side == enum.SideBuy {
		return quote.GreaterThanOrEqual(crossPrice)
	}
	return quote.LessThanOrEqual(crossPrice)
}
