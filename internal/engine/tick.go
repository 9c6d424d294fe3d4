package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/model"
	"main/internal/netting"
	"main/internal/obs"
)

// Tick advances the dispatch loop by one cycle. Steps run in a fixed
// order so netting always precedes admission and staleness
// cancellation always precedes re-admission; the plan-order and
// live-order maps therefore need no locking. Run calls Tick on the
// configured interval; tests and the paper tool drive it directly.
func (e *Engine) Tick(ctx context.Context) {
	start := time.Now()

	select {
	case cfg := <-e.cfgUpdates:
		e.cfg = cfg
	default:
	}

	e.drainSubmits()
	notes := e.notifies.Drain()

	if e.async {
		e.step("completions", func() { e.applyCompletions() })
	}
	e.step("discard", func() { e.applyDiscards(ctx, notes) })
	e.step("progress", func() { e.applyProgress(notes) })
	e.step("escalate", func() { e.escalateExpired(ctx) })
	e.step("netting", func() { e.runNetting() })
	e.step("market", func() { e.executeMarket(ctx) })
	e.step("staleness", func() { e.refreshResting(ctx) })
	e.step("admit", func() { e.admitResting(ctx) })
	e.step("prune", func() { e.prune() })

	e.met.ObserveTick(time.Since(start))
	e.liveCount.Store(int64(len(e.plans) + len(e.live)))
}

// step isolates one tick phase: a panic is reported and the loop keeps
// running on the next scheduled tick.
func (e *Engine) step(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.rep.Report(obs.LevelSerious, "engine.tick", "step %s panicked: %v", name, r)
		}
	}()
	fn()
}

func (e *Engine) drainSubmits() {
	for {
		select {
		case plan := <-e.submits:
			if _, ok := e.plans[plan.ID]; ok {
				continue
			}
			e.plans[plan.ID] = plan
			e.met.IncPlanAdmitted()
		default:
			return
		}
	}
}

// applyDiscards handles external cancellation requests: the live order
// is canceled and the plan order is closed out in the store before it
// leaves the live set, so recovery never re-admits a discarded hedge.
func (e *Engine) applyDiscards(ctx context.Context, notes []model.Notification) {
	for _, n := range notes {
		if n.Kind != model.NotificationDiscard {
			continue
		}
		plan, ok := e.plans[n.PlanOrderID]
		if !ok {
			continue
		}
		if lv, ok := e.live[plan.Instrument]; ok && lv.plan.ID == plan.ID {
			if !e.cancelLive(ctx, lv) {
				// Cancel failed; keep everything tracked and retry the
				// discard next tick.
				_ = e.Notify(n)
				continue
			}
		}
		now := time.Now()
		plan.LeftQuantity = decimal.Zero
		plan.UpdateTime = now
		e.storeLeft(plan, now)
		delete(e.plans, plan.ID)
		delete(e.marketPath, plan.ID)
	}
}

// applyProgress folds fill, cancel and rejection reports into
// plan-order accounting.
func (e *Engine) applyProgress(notes []model.Notification) {
	now := time.Now()
	for _, n := range notes {
		if n.Kind == model.NotificationReject {
			if lv := e.liveByExchangeID(n.ExchangeOrderID); lv != nil {
				lv.rejected = true
			}
			continue
		}
		if n.Kind != model.NotificationFill && n.Kind != model.NotificationCancel {
			continue
		}
		lv := e.liveByExchangeID(n.ExchangeOrderID)
		if lv == nil {
			continue
		}

		if n.FilledSize.IsPositive() {
			lv.plan.Reduce(n.FilledSize.Mul(lv.plan.ReferencePrice), now)
			e.clampDust(lv.plan)
			e.storeLeft(lv.plan, now)
		}
		if n.Kind == model.NotificationCancel || n.Status.Terminal() {
			e.storeResult(lv.order.ExchangeOrderID, lv.plan, n.Status)
			e.dropLive(lv)
		}
	}
}

func (e *Engine) runNetting() {
	eligible := make([]*model.PlanOrder, 0, len(e.plans))
	for _, plan := range e.plans {
		if plan.Done() || e.hasLive(plan) {
			continue
		}
		eligible = append(eligible, plan)
	}
	if len(eligible) < 2 {
		return
	}

	offset := netting.Run(eligible, e.st, time.Now())
	if offset.IsPositive() {
		e.met.IncShrink()
		e.rep.Report(obs.LevelInfo, "engine.netting", "offset %s notional internally", offset)
	}
}

func (e *Engine) prune() {
	for id, plan := range e.plans {
		if !plan.Done() {
			continue
		}
		if e.hasLive(plan) {
			continue
		}
		delete(e.plans, id)
		delete(e.marketPath, id)
	}
}

func (e *Engine) hasLive(plan *model.PlanOrder) bool {
	lv, ok := e.live[plan.Instrument]
	return ok && lv.plan.ID == plan.ID
}

func (e *Engine) liveByExchangeID(exchangeOrderID string) *liveOrder {
	if exchangeOrderID == "" {
		return nil
	}
	for _, lv := range e.live {
		if lv.order.ExchangeOrderID == exchangeOrderID {
			return lv
		}
	}
	return nil
}

func (e *Engine) dropLive(lv *liveOrder) {
	if current, ok := e.live[lv.order.Instrument]; ok && current == lv {
		delete(e.live, lv.order.Instrument)
	}
	if e.async {
		e.machine.Remove(lv.order.LocalID)
	}
}
