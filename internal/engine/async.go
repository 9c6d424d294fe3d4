package engine

import (
	"context"

	"github.com/yanun0323/logs"

	"main/internal/gateway"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/og"
)

// submitAsync fires a non-blocking placement. The candidate is live
// (and its instrument occupied) from this moment; the outcome resolves
// on a later tick via the completion channel.
func (e *Engine) submitAsync(ctx context.Context, g gateway.Gateway, plan *model.PlanOrder, candidate model.CandidateOrder) bool {
	t := &og.Tracked{Order: &candidate}
	if err := e.machine.Submit(ctx, g, t); err != nil {
		logs.Errorf("async submit %s, err: %+v", candidate.LocalID, err)
		return false
	}
	e.live[plan.Instrument] = &liveOrder{order: t.Order, plan: plan}
	return true
}

// cancelAsync fires a non-blocking cancel. Returns false because the
// order is still live until the cancel completion arrives; callers
// re-check on the next tick.
func (e *Engine) cancelAsync(ctx context.Context, lv *liveOrder) bool {
	g, ok := e.gateways[lv.order.Account]
	if !ok {
		e.dropLive(lv)
		return true
	}
	if err := e.machine.Cancel(ctx, g, lv.order.LocalID); err != nil {
		if err != og.ErrOrderBusy {
			logs.Warnf("async cancel %s, err: %+v", lv.order.LocalID, err)
		}
	}
	return false
}

func (e *Engine) busyAsync(lv *liveOrder) bool {
	return e.async && e.machine.Busy(lv.order.LocalID)
}

// applyCompletions drains resolved async submissions and cancels,
// folding them into engine state on the dispatch goroutine.
func (e *Engine) applyCompletions() {
	for {
		select {
		case c := <-e.machine.Completions():
			e.applyCompletion(c)
		default:
			return
		}
	}
}

func (e *Engine) applyCompletion(c og.Completion) {
	if _, err := e.machine.Apply(c); err != nil {
		logs.Warnf("apply completion %s, err: %+v", c.LocalID, err)
		return
	}
	lv := e.liveByLocalID(c.LocalID)
	if lv == nil {
		e.machine.Remove(c.LocalID)
		return
	}

	switch c.Kind {
	case og.CompletionSubmit:
		switch c.Placement.Status {
		case gateway.PlacementAccepted:
			if err := e.st.CommitCandidateOrder(c.Placement.ExchangeOrderID, c.LocalID); err != nil {
				logs.Errorf("commit candidate %s, err: %+v", c.LocalID, err)
			}
			e.met.IncCandidatePlaced()
		case gateway.PlacementSoftRejected:
			e.resolveSoftRejection(lv.plan, lv.order, c.Placement)
			e.dropLive(lv)
		default:
			e.met.IncCandidateSkipped()
			e.rep.Report(obs.LevelWarning, "engine.async_rejected",
				"account %s rejected plan %d, re-routing next tick: %+v", lv.order.Account, lv.plan.ID, c.Placement.Err)
			e.dropLive(lv)
		}
	case og.CompletionCancel:
		if c.CancelErr != nil {
			e.met.IncCancelFailure()
			e.rep.Report(obs.LevelWarning, "engine.cancel_failed",
				"async cancel %s failed, keep tracking, err: %+v", lv.order.ExchangeOrderID, c.CancelErr)
			return
		}
		e.settleCancel(lv, c.Cancel)
	}
}

func (e *Engine) liveByLocalID(localID string) *liveOrder {
	for _, lv := range e.live {
		if lv.order.LocalID == localID {
			return lv
		}
	}
	return nil
}
