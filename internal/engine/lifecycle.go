package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/gateway"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/pricing"
)

// escalateExpired force-cancels resting limit orders older than the
// expiry window and diverts their remainder to market execution. This
// bounds how long a passive order waits for a fill before converting
// to guaranteed execution.
func (e *Engine) escalateExpired(ctx context.Context) {
	if e.cfg.OrderExpired <= 0 {
		return
	}
	now := time.Now()
	for _, plan := range e.plans {
		if plan.Done() {
			continue
		}
		if _, escalated := e.marketPath[plan.ID]; escalated {
			continue
		}
		if now.Sub(plan.StartTime) < e.cfg.OrderExpired {
			continue
		}

		if lv, ok := e.live[plan.Instrument]; ok && lv.plan.ID == plan.ID {
			if lv.order.Kind == enum.OrderKindMarket {
				continue
			}
			if e.busyAsync(lv) {
				continue
			}
			if !e.cancelLive(ctx, lv) {
				continue
			}
		}
		e.marketPath[plan.ID] = struct{}{}
		e.met.IncEscalation()
		e.rep.Report(obs.LevelInfo, "engine.escalate", "plan %d expired after %s, remainder %s goes to market",
			plan.ID, e.cfg.OrderExpired, plan.LeftQuantity)
	}
}

// executeMarket places immediate orders for every escalated plan order
// without a live candidate.
func (e *Engine) executeMarket(ctx context.Context) {
	for id := range e.marketPath {
		plan, ok := e.plans[id]
		if !ok {
			delete(e.marketPath, id)
			continue
		}
		if plan.Done() {
			continue
		}
		if _, ok := e.live[plan.Instrument]; ok {
			continue
		}
		candidates := e.router.Route(plan, enum.OrderKindMarket)
		e.attempt(ctx, plan, candidates)
	}
}

// refreshResting re-runs the router for each resting limit order and
// cancels the ones whose price is no longer competitive, re-quoting
// immediately with the refreshed remaining quantity.
func (e *Engine) refreshResting(ctx context.Context) {
	for _, lv := range e.live {
		if lv.order.Kind != enum.OrderKindLimit || !lv.order.Placed() {
			continue
		}
		if e.busyAsync(lv) {
			continue
		}
		if _, escalated := e.marketPath[lv.plan.ID]; escalated {
			continue
		}

		stale := lv.rejected
		if !stale {
			candidates := e.router.Route(lv.plan, enum.OrderKindLimit)
			if len(candidates) > 0 {
				spread := pricing.RelativeSpread(candidates[0].NormalizedPrice, lv.order.NormalizedPrice)
				stale = spread.GreaterThan(e.cfg.SpreadTolerance)
			}
		}
		if !stale {
			continue
		}

		e.met.IncStaleCancel()
		plan := lv.plan
		if !e.cancelLive(ctx, lv) {
			continue
		}
		if plan.Done() {
			continue
		}
		candidates := e.router.Route(plan, enum.OrderKindLimit)
		e.attempt(ctx, plan, candidates)
	}
}

// admitResting places a new resting limit order for every live plan
// order without a live or in-flight candidate on its instrument.
func (e *Engine) admitResting(ctx context.Context) {
	for _, plan := range e.plans {
		if plan.Done() {
			continue
		}
		if _, escalated := e.marketPath[plan.ID]; escalated {
			continue
		}
		if _, ok := e.live[plan.Instrument]; ok {
			continue
		}
		candidates := e.router.Route(plan, enum.OrderKindLimit)
		e.attempt(ctx, plan, candidates)
	}
}

// attempt tries ranked candidates in order until one is accepted.
// Later accounts may reject for reasons outside the engine's
// visibility (balance, risk limits), so a hard rejection just advances
// to the next candidate. Returns whether a candidate was accepted or
// resolved.
func (e *Engine) attempt(ctx context.Context, plan *model.PlanOrder, candidates []model.CandidateOrder) bool {
	for i := range candidates {
		candidate := candidates[i]
		g, ok := e.gateways[candidate.Account]
		if !ok {
			continue
		}
		e.met.IncCandidateTried()
		if err := e.st.StoreCandidateOrder(&candidate); err != nil {
			logs.Errorf("store candidate %s, err: %+v", candidate.LocalID, err)
			e.met.IncCandidateSkipped()
			continue
		}

		if e.async {
			if e.submitAsync(ctx, g, plan, candidate) {
				return true
			}
			continue
		}

		res := g.PlaceOrder(ctx, &candidate)
		switch res.Status {
		case gateway.PlacementAccepted:
			candidate.ExchangeOrderID = res.ExchangeOrderID
			if err := e.st.CommitCandidateOrder(res.ExchangeOrderID, candidate.LocalID); err != nil {
				logs.Errorf("commit candidate %s, err: %+v", candidate.LocalID, err)
			}
			e.live[plan.Instrument] = &liveOrder{order: &candidate, plan: plan}
			e.met.IncCandidatePlaced()
			return true
		case gateway.PlacementSoftRejected:
			// Effectively filled: record a synthetic completed order
			// and never retry.
			e.resolveSoftRejection(plan, &candidate, res)
			return true
		default:
			e.met.IncCandidateSkipped()
			logs.Warnf("account %s rejected plan %d: %+v", candidate.Account, plan.ID, res.Err)
		}
	}

	e.met.IncExhausted()
	e.rep.Report(obs.LevelSerious, "engine.exhausted",
		"no candidate accepted for plan %d (%s %s left), retrying next tick",
		plan.ID, plan.Instrument, plan.LeftQuantity)
	return false
}

func (e *Engine) resolveSoftRejection(plan *model.PlanOrder, candidate *model.CandidateOrder, res gateway.PlacementResult) {
	now := time.Now()
	e.met.IncSoftRejection()
	plan.Reduce(candidate.Notional, now)
	e.clampDust(plan)
	e.storeLeft(plan, now)
	e.storeResult(res.ExchangeOrderID, plan, enum.OrderStatusFilled)
}

// cancelLive cancels a resting order and folds the reported fill back
// into the plan order. On failure the order stays tracked and is
// retried next tick rather than assumed canceled, so exposure is never
// silently lost. In async mode the cancel resolves on a later tick.
func (e *Engine) cancelLive(ctx context.Context, lv *liveOrder) bool {
	if e.async {
		return e.cancelAsync(ctx, lv)
	}

	g, ok := e.gateways[lv.order.Account]
	if !ok {
		e.dropLive(lv)
		return true
	}
	res, err := g.CancelOrder(ctx, lv.order.ExchangeSymbol, lv.order.ExchangeOrderID)
	if err != nil {
		e.met.IncCancelFailure()
		e.rep.Report(obs.LevelWarning, "engine.cancel_failed",
			"cancel %s on %s failed, keep tracking, err: %+v", lv.order.ExchangeOrderID, lv.order.Account, err)
		return false
	}

	e.settleCancel(lv, res)
	return true
}

// settleCancel applies cancel accounting: the fill reported since the
// last check converts back to notional at the plan's reference price.
func (e *Engine) settleCancel(lv *liveOrder, res gateway.CancelResult) {
	now := time.Now()
	if res.FilledSize.IsPositive() {
		lv.plan.Reduce(res.FilledSize.Mul(lv.plan.ReferencePrice), now)
	}
	e.clampDust(lv.plan)
	e.storeLeft(lv.plan, now)
	e.storeResult(lv.order.ExchangeOrderID, lv.plan, res.Status)
	e.dropLive(lv)
}

func (e *Engine) clampDust(plan *model.PlanOrder) {
	if plan.Done() {
		return
	}
	if e.cfg.DustNotional.IsPositive() && plan.LeftQuantity.LessThan(e.cfg.DustNotional) {
		plan.LeftQuantity = decimal.Zero
		return
	}
	if e.cfg.DustSize.IsPositive() && plan.LeftSize().LessThan(e.cfg.DustSize) {
		plan.LeftQuantity = decimal.Zero
	}
}

func (e *Engine) storeLeft(plan *model.PlanOrder, now time.Time) {
	if err := e.st.UpdatePlanOrderLeft(plan.ID, plan.LeftQuantity, now); err != nil {
		logs.Errorf("update plan %d left quantity, err: %+v", plan.ID, err)
	}
}

func (e *Engine) storeResult(exchangeOrderID string, plan *model.PlanOrder, status enum.OrderStatus) {
	if !status.IsAvailable() {
		status = enum.OrderStatusCanceled
	}
	if err := e.st.StoreOrderResult(exchangeOrderID, plan.LeftSize(), status); err != nil {
		logs.Errorf("store order result %s, err: %+v", exchangeOrderID, err)
	}
}
