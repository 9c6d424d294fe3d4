// Package engine turns durable hedge requests into concrete exchange
// orders: it admits plan orders, nets opposing ones, routes the rest to
// the best-priced account and manages the resting-order lifecycle. All
// mutable state is owned by the dispatch goroutine; producers only
// enqueue.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/gateway"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/og"
	"main/internal/router"
	"main/internal/store"
	"main/pkg/exception"
)

const (
	defaultTickInterval  = 500 * time.Millisecond
	defaultQueueCapacity = 1024
)

// Config tunes admission, lifecycle and scheduling.
type Config struct {
	// MinQuantity drops sub-minimum hedge requests silently.
	MinQuantity decimal.Decimal
	// MaxQuantity splits larger requests into consecutive plan orders.
	// Zero disables splitting.
	MaxQuantity decimal.Decimal
	// TickInterval is the dispatch period.
	TickInterval time.Duration
	// OrderExpired bounds how long a resting limit order may wait
	// before escalating to market execution. Zero disables escalation.
	OrderExpired time.Duration
	// SpreadTolerance is the relative normalized-price move that makes
	// a resting order stale.
	SpreadTolerance decimal.Decimal
	// DustNotional / DustSize clamp negligible remainders to zero.
	DustNotional decimal.Decimal
	DustSize     decimal.Decimal
	// QueueCapacity bounds the submit and notification queues.
	QueueCapacity int
	// Async switches placement to the non-blocking submission variant.
	Async bool
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = defaultTickInterval
	}
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = defaultQueueCapacity
	}
	return c
}

// admissionLimits is the slice of the config that producer goroutines
// read. Published through an atomic pointer so MakeOrder never touches
// the dispatch-owned Config.
type admissionLimits struct {
	min decimal.Decimal
	max decimal.Decimal
}

// liveOrder is one resting (or in-flight) candidate order and its
// owning plan order.
type liveOrder struct {
	order    *model.CandidateOrder
	plan     *model.PlanOrder
	rejected bool // known-rejected sentinel; canceled on the next pass
}

// Engine is the order execution core.
type Engine struct {
	cfg      Config // owned by the dispatch goroutine after New
	queueCap int    // fixed at construction
	async    bool   // fixed at construction
	limits   atomic.Pointer[admissionLimits]
	router   *router.Router
	gateways map[string]gateway.Gateway
	st       store.Store
	rep      obs.Reporter
	met      *obs.Metrics

	submits  chan *model.PlanOrder
	notifies *bus.Queue

	// owned by the dispatch goroutine
	plans      map[uint64]*model.PlanOrder
	live       map[string]*liveOrder // keyed by instrument
	marketPath map[uint64]struct{}   // plan IDs escalated to market execution
	machine    *og.Machine

	cfgUpdates chan Config

	liveCount atomic.Int64
	running   atomic.Bool
}

// New builds an engine over the given accounts, router and store.
func New(cfg Config, rtr *router.Router, gateways map[string]gateway.Gateway, st store.Store, rep obs.Reporter, met *obs.Metrics) *Engine {
	cfg = cfg.withDefaults()
	if rep == nil {
		rep = obs.NopReporter{}
	}
	e := &Engine{
		cfg:        cfg,
		queueCap:   cfg.QueueCapacity,
		async:      cfg.Async,
		router:     rtr,
		gateways:   gateways,
		st:         st,
		rep:        rep,
		met:        met,
		submits:    make(chan *model.PlanOrder, cfg.QueueCapacity),
		notifies:   bus.NewQueue(cfg.QueueCapacity),
		plans:      make(map[uint64]*model.PlanOrder),
		live:       make(map[string]*liveOrder),
		marketPath: make(map[uint64]struct{}),
		machine:    og.NewMachine(cfg.QueueCapacity),
		cfgUpdates: make(chan Config, 1),
	}
	e.limits.Store(&admissionLimits{min: cfg.MinQuantity, max: cfg.MaxQuantity})
	return e
}

// UpdateConfig applies new dispatch limits and timings on the next
// tick. Queue capacities and the async mode are fixed at construction
// and keep their original values. Safe for concurrent use.
func (e *Engine) UpdateConfig(cfg Config) {
	cfg = cfg.withDefaults()
	cfg.QueueCapacity = e.queueCap
	cfg.Async = e.async
	e.limits.Store(&admissionLimits{min: cfg.MinQuantity, max: cfg.MaxQuantity})
	select {
	case e.cfgUpdates <- cfg:
	default:
		// replace the pending update
		select {
		case <-e.cfgUpdates:
		default:
		}
		e.cfgUpdates <- cfg
	}
}

// MakeOrder admits a hedge request: signed notional quantity plus the
// reference price used to convert notional to base-asset size.
// Sub-minimum requests are dropped silently; requests above the
// maximum are split into consecutive plan orders. Safe for concurrent
// use.
func (e *Engine) MakeOrder(instrument string, signedQuantity, referencePrice decimal.Decimal) error {
	if instrument == "" || signedQuantity.IsZero() {
		return exception.ErrOrderInvalidQuantity
	}
	if !referencePrice.IsPositive() {
		return exception.ErrOrderInvalidPrice
	}
	limits := e.limits.Load()
	if limits.min.IsPositive() && signedQuantity.Abs().LessThan(limits.min) {
		// Routine: strategies generate sub-minimum hedges constantly.
		e.met.IncPlanDropped()
		logs.Debugf("drop sub-minimum hedge: %s %s", instrument, signedQuantity)
		return nil
	}

	now := time.Now()
	sign := decimal.NewFromInt(int64(signedQuantity.Sign()))
	remaining := signedQuantity.Abs()
	for remaining.IsPositive() {
		part := remaining
		if limits.max.IsPositive() && part.GreaterThan(limits.max) {
			part = limits.max
		}
		remaining = remaining.Sub(part)

		plan := model.NewPlanOrder(instrument, part.Mul(sign), referencePrice, now)
		if err := e.st.StorePlanOrder(plan); err != nil {
			return err
		}
		if err := e.enqueue(plan); err != nil {
			return err
		}
	}
	return nil
}

// MakeOrderPlan admits an already-constructed plan order without
// splitting, persisting it first when it has no ID yet. Used for
// recovery and pre-planned orders.
func (e *Engine) MakeOrderPlan(plan *model.PlanOrder) error {
	if plan == nil || plan.Instrument == "" {
		return exception.ErrOrderUnknownPlan
	}
	if plan.ID == 0 {
		if err := e.st.StorePlanOrder(plan); err != nil {
			return err
		}
	}
	return e.enqueue(plan)
}

// MakeOrderDirect places a single immediate order, bypassing the
// plan-order machinery. Returns whether the exchange accepted it. Runs
// on the caller's goroutine and touches no engine state.
func (e *Engine) MakeOrderDirect(ctx context.Context, order *model.CandidateOrder) bool {
	if order == nil || !order.Side.IsAvailable() {
		return false
	}
	g, ok := e.gateways[order.Account]
	if !ok || !g.IsAlive() {
		return false
	}
	if order.LocalID == "" {
		order.LocalID = model.NewLocalID()
	}
	if err := e.st.StoreCandidateOrder(order); err != nil {
		logs.Errorf("store direct order %s, err: %+v", order.LocalID, err)
		return false
	}

	res := g.PlaceOrder(ctx, order)
	switch res.Status {
	case gateway.PlacementAccepted:
		order.ExchangeOrderID = res.ExchangeOrderID
		if err := e.st.CommitCandidateOrder(res.ExchangeOrderID, order.LocalID); err != nil {
			logs.Errorf("commit direct order %s, err: %+v", order.LocalID, err)
		}
		return true
	case gateway.PlacementSoftRejected:
		e.met.IncSoftRejection()
		if err := e.st.StoreOrderResult(res.ExchangeOrderID, decimal.Zero, enum.OrderStatusFilled); err != nil {
			logs.Errorf("store direct order result %s, err: %+v", order.LocalID, err)
		}
		return true
	default:
		return false
	}
}

// Notify routes a fill, cancel or discard event into the dispatch
// loop. Safe for concurrent use; never blocks.
func (e *Engine) Notify(n model.Notification) error {
	if !n.Kind.IsAvailable() {
		return exception.ErrOrderInvalidNotification
	}
	if err := e.notifies.TryPublish(n); err != nil {
		e.met.IncQueueDrop()
		return err
	}
	return nil
}

// NotBusy reports whether the engine holds no live plan orders or
// candidate orders and no queued work.
func (e *Engine) NotBusy() bool {
	return e.liveCount.Load() == 0 && len(e.submits) == 0 && e.notifies.Len() == 0
}

// Recover re-admits every unfinished plan order from the store,
// exactly once per plan-order ID. Run calls this before the first
// tick.
func (e *Engine) Recover() error {
	plans, err := e.st.QueryUnfinishedPlanOrders()
	if err != nil {
		return err
	}
	admitted := 0
	for _, plan := range plans {
		if _, ok := e.plans[plan.ID]; ok {
			continue
		}
		e.plans[plan.ID] = plan
		admitted++
	}
	if admitted > 0 {
		e.rep.Report(obs.LevelInfo, "engine.recovered", "re-admitted %d unfinished plan orders", admitted)
	}
	e.liveCount.Store(int64(len(e.plans) + len(e.live)))
	return nil
}

// Run recovers unfinished plan orders and drives the dispatch loop
// until the context is done. Only one Run is active at a time.
func (e *Engine) Run(ctx context.Context) error {
	if e.running.Swap(true) {
		return nil
	}
	defer e.running.Store(false)

	if err := e.Recover(); err != nil {
		return err
	}

	interval := e.cfg.TickInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.Tick(ctx)
			if e.cfg.TickInterval != interval {
				interval = e.cfg.TickInterval
				ticker.Reset(interval)
			}
		}
	}
}

func (e *Engine) enqueue(plan *model.PlanOrder) error {
	select {
	case e.submits <- plan:
		return nil
	default:
		e.met.IncQueueDrop()
		return exception.ErrOrderQueueFull
	}
}
