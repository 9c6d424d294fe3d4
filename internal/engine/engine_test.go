package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/gateway"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/registry"
	"main/internal/router"
	"main/internal/store"
	"main/pkg/exception"
)

const instrument = "BTC-USDT-PERP"

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func baseConfig() Config {
	return Config{
		MinQuantity:     d("10"),
		MaxQuantity:     d("400"),
		SpreadTolerance: d("0.001"),
		DustNotional:    d("1"),
	}
}

type fixture struct {
	eng *Engine
	st  *store.Memory
	met *obs.Metrics
	sim map[string]*gateway.Sim
}

// newFixture wires an engine over in-memory sims quoted at 100.0/100.2
// with neutral funding and fees.
func newFixture(t *testing.T, cfg Config, accounts ...string) *fixture {
	t.Helper()
	if len(accounts) == 0 {
		accounts = []string{"alpha"}
	}

	sims := make(map[string]*gateway.Sim, len(accounts))
	gateways := make(map[string]gateway.Gateway, len(accounts))
	reg := registry.NewRegistry()
	for i, name := range accounts {
		sim := gateway.NewSim(name)
		sim.SetQuote(instrument, gateway.SimQuote{Bid: d("100.0"), Ask: d("100.2")})
		sims[name] = sim
		gateways[name] = sim
		err := reg.Add(instrument, registry.Route{
			Account:        name,
			Permitted:      enum.PermissionBoth,
			PricePrecision: 1,
			SizePrecision:  4,
			Priority:       i,
		})
		require.NoError(t, err)
	}

	st := store.NewMemory()
	met := obs.NewMetrics()
	rtr := router.New(router.Config{DepthSize: d("10")}, reg, gateways)
	return &fixture{
		eng: New(cfg, rtr, gateways, st, obs.NopReporter{}, met),
		st:  st,
		met: met,
		sim: sims,
	}
}

func (f *fixture) alpha() *gateway.Sim { return f.sim["alpha"] }

func TestMakeOrderValidation(t *testing.T) {
	f := newFixture(t, baseConfig())

	assert.Error(t, f.eng.MakeOrder("", d("100"), d("100")))
	assert.Error(t, f.eng.MakeOrder(instrument, decimal.Zero, d("100")))
	assert.Error(t, f.eng.MakeOrder(instrument, d("100"), decimal.Zero))
	assert.Error(t, f.eng.MakeOrder(instrument, d("100"), d("-1")))
}

func TestMakeOrderDropsBelowMinimum(t *testing.T) {
	f := newFixture(t, baseConfig())

	// below the floor is a silent no-op, not an error
	require.NoError(t, f.eng.MakeOrder(instrument, d("5"), d("100")))

	assert.Equal(t, 0, f.st.PlanCount())
	assert.Equal(t, uint64(1), f.met.Snapshot().PlansDropped)
	f.eng.Tick(context.Background())
	assert.Empty(t, f.alpha().Placed())
}

func TestMakeOrderSplitsAboveMaximum(t *testing.T) {
	f := newFixture(t, baseConfig())

	require.NoError(t, f.eng.MakeOrder(instrument, d("-1000"), d("100")))

	plans, err := f.st.QueryUnfinishedPlanOrders()
	require.NoError(t, err)
	require.Len(t, plans, 3)

	total := decimal.Zero
	for _, plan := range plans {
		assert.True(t, plan.SignedQuantity.IsNegative(), "split must keep the sign")
		assert.True(t, plan.LeftQuantity.LessThanOrEqual(d("400")))
		total = total.Add(plan.SignedQuantity)
	}
	assert.Equal(t, "-1000", total.String())
}

func TestUpdateConfigAdjustsAdmission(t *testing.T) {
	f := newFixture(t, baseConfig())

	cfg := baseConfig()
	cfg.MinQuantity = d("50")
	f.eng.UpdateConfig(cfg)

	require.NoError(t, f.eng.MakeOrder(instrument, d("20"), d("100")))
	assert.Equal(t, 0, f.st.PlanCount())
	require.NoError(t, f.eng.MakeOrder(instrument, d("60"), d("100")))
	assert.Equal(t, 1, f.st.PlanCount())
}

func TestConcurrentAdmissionDuringReload(t *testing.T) {
	f := newFixture(t, baseConfig())
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = f.eng.MakeOrder(instrument, d("5"), d("100"))
		}
	}()

	cfg := baseConfig()
	cfg.MinQuantity = d("20")
	for i := 0; i < 200; i++ {
		f.eng.UpdateConfig(cfg)
		f.eng.Tick(ctx)
	}
	<-done

	// every request sat below both floors
	assert.Equal(t, 0, f.st.PlanCount())
}

func TestTickPlacesRestingLimitOrder(t *testing.T) {
	f := newFixture(t, baseConfig())
	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))

	f.eng.Tick(context.Background())

	open := f.alpha().Open()
	require.Len(t, open, 1)
	for _, ord := range open {
		assert.Equal(t, enum.OrderKindLimit, ord.Kind)
		assert.Equal(t, enum.SideBuy, ord.Side)
		assert.Equal(t, "100", ord.QuotePrice.String())
		assert.Equal(t, "4", ord.Size.String())
	}
	assert.False(t, f.eng.NotBusy())
}

func TestFillCompletesPlan(t *testing.T) {
	f := newFixture(t, baseConfig())
	ctx := context.Background()
	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(ctx)

	for id, ord := range f.alpha().Open() {
		_, ok := f.alpha().MarkFilled(id)
		require.True(t, ok)
		require.NoError(t, f.eng.Notify(model.Notification{
			Kind:            model.NotificationFill,
			Instrument:      instrument,
			ExchangeOrderID: id,
			FilledSize:      ord.Size,
			Status:          enum.OrderStatusFilled,
		}))
	}
	f.eng.Tick(ctx)

	assert.True(t, f.eng.NotBusy())
	results := f.st.Results()
	require.Len(t, results, 1)
	assert.Equal(t, enum.OrderStatusFilled, results[0].Status)
	assert.True(t, results[0].LeftSize.IsZero(), "left %s", results[0].LeftSize)
}

func TestPartialFillKeepsOrderLive(t *testing.T) {
	f := newFixture(t, baseConfig())
	ctx := context.Background()
	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(ctx)

	for id := range f.alpha().Open() {
		require.NoError(t, f.eng.Notify(model.Notification{
			Kind:            model.NotificationFill,
			Instrument:      instrument,
			ExchangeOrderID: id,
			FilledSize:      d("1"), // 100 notional of 400
			Status:          enum.OrderStatusPartialFilled,
		}))
	}
	f.eng.Tick(ctx)

	assert.False(t, f.eng.NotBusy())
	assert.Len(t, f.alpha().Open(), 1)
	plans, err := f.st.QueryUnfinishedPlanOrders()
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "300", plans[0].LeftQuantity.String())
}

func TestOneLiveOrderPerInstrument(t *testing.T) {
	f := newFixture(t, baseConfig())
	ctx := context.Background()
	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	require.NoError(t, f.eng.MakeOrder(instrument, d("300"), d("100")))

	f.eng.Tick(ctx)
	require.Len(t, f.alpha().Open(), 1)
	f.eng.Tick(ctx)
	require.Len(t, f.alpha().Open(), 1)

	// completing the first admits the second
	for id, ord := range f.alpha().Open() {
		f.alpha().MarkFilled(id)
		require.NoError(t, f.eng.Notify(model.Notification{
			Kind:            model.NotificationFill,
			Instrument:      instrument,
			ExchangeOrderID: id,
			FilledSize:      ord.Size,
			Status:          enum.OrderStatusFilled,
		}))
	}
	f.eng.Tick(ctx)

	placed := f.alpha().Placed()
	require.Len(t, placed, 2)
	sizes := []string{placed[0].Size.String(), placed[1].Size.String()}
	assert.ElementsMatch(t, []string{"4", "3"}, sizes)
	require.Len(t, f.alpha().Open(), 1)
}

func TestNettingOffsetsOpposingPlans(t *testing.T) {
	f := newFixture(t, baseConfig())
	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	require.NoError(t, f.eng.MakeOrder(instrument, d("-400"), d("100")))

	f.eng.Tick(context.Background())

	// fully offset internally: nothing ever reaches an exchange
	assert.Empty(t, f.alpha().Placed())
	assert.True(t, f.eng.NotBusy())
	assert.Len(t, f.st.Shrinks(), 2)
	assert.Equal(t, uint64(1), f.met.Snapshot().Shrinks)
}

func TestNettingPartialRemainderExecutes(t *testing.T) {
	f := newFixture(t, baseConfig())
	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	require.NoError(t, f.eng.MakeOrder(instrument, d("-250"), d("100")))

	f.eng.Tick(context.Background())

	open := f.alpha().Open()
	require.Len(t, open, 1)
	for _, ord := range open {
		assert.Equal(t, enum.SideBuy, ord.Side)
		assert.Equal(t, "1.5", ord.Size.String()) // 150 left at 100
	}
}

func TestExpiryEscalatesToMarket(t *testing.T) {
	cfg := baseConfig()
	cfg.OrderExpired = 10 * time.Millisecond
	f := newFixture(t, cfg)
	ctx := context.Background()

	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(ctx)
	require.Len(t, f.alpha().Open(), 1)

	time.Sleep(20 * time.Millisecond)
	f.eng.Tick(ctx)

	placed := f.alpha().Placed()
	require.Len(t, placed, 2)
	assert.Equal(t, enum.OrderKindMarket, placed[1].Kind)
	assert.Equal(t, "100.2", placed[1].QuotePrice.String()) // crosses to the ask
	assert.Equal(t, uint64(1), f.met.Snapshot().Escalations)

	// escalation is one-way: the remainder never re-rests as a limit
	time.Sleep(20 * time.Millisecond)
	f.eng.Tick(ctx)
	for _, ord := range f.alpha().Placed()[1:] {
		assert.Equal(t, enum.OrderKindMarket, ord.Kind)
	}
}

func TestStaleOrderRequotes(t *testing.T) {
	f := newFixture(t, baseConfig())
	ctx := context.Background()
	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(ctx)

	// market moves well past the tolerance
	f.alpha().SetQuote(instrument, gateway.SimQuote{Bid: d("101.0"), Ask: d("101.2")})
	f.eng.Tick(ctx)

	placed := f.alpha().Placed()
	require.Len(t, placed, 2)
	assert.Equal(t, "101", placed[1].QuotePrice.String())
	assert.Len(t, f.alpha().Open(), 1)
	assert.Equal(t, uint64(1), f.met.Snapshot().StaleCancels)
}

func TestFreshOrderIsLeftAlone(t *testing.T) {
	f := newFixture(t, baseConfig())
	ctx := context.Background()
	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(ctx)
	f.eng.Tick(ctx)
	f.eng.Tick(ctx)

	assert.Len(t, f.alpha().Placed(), 1)
	assert.Equal(t, uint64(0), f.met.Snapshot().StaleCancels)
}

func TestSoftRejectionResolvesPlan(t *testing.T) {
	f := newFixture(t, baseConfig())
	f.alpha().ScriptPlacement(gateway.SoftRejected())

	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(context.Background())

	assert.True(t, f.eng.NotBusy())
	assert.Empty(t, f.alpha().Open())
	results := f.st.Results()
	require.Len(t, results, 1)
	assert.Equal(t, enum.OrderStatusFilled, results[0].Status)
	assert.Equal(t, uint64(1), f.met.Snapshot().SoftRejections)
}

func TestHardRejectionFallsThroughToNextAccount(t *testing.T) {
	f := newFixture(t, baseConfig(), "alpha", "beta")
	// make alpha strictly cheaper so it is tried first, then fail it
	f.alpha().SetQuote(instrument, gateway.SimQuote{Bid: d("100.0"), Ask: d("100.2")})
	f.sim["beta"].SetQuote(instrument, gateway.SimQuote{Bid: d("100.5"), Ask: d("100.7")})
	f.alpha().ScriptPlacement(gateway.HardRejected(assert.AnError))

	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(context.Background())

	assert.Empty(t, f.alpha().Open())
	require.Len(t, f.sim["beta"].Open(), 1)
	snap := f.met.Snapshot()
	assert.Equal(t, uint64(2), snap.CandidatesTried)
	assert.Equal(t, uint64(1), snap.CandidatesSkipped)
	assert.Equal(t, uint64(1), snap.CandidatesPlaced)
}

func TestExhaustedPlanRetriesNextTick(t *testing.T) {
	f := newFixture(t, baseConfig())
	f.alpha().ScriptPlacement(gateway.HardRejected(assert.AnError))
	ctx := context.Background()

	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(ctx)

	assert.Empty(t, f.alpha().Open())
	assert.False(t, f.eng.NotBusy())
	assert.Equal(t, uint64(1), f.met.Snapshot().Exhausted)

	// the script is exhausted, so the retry lands
	f.eng.Tick(ctx)
	assert.Len(t, f.alpha().Open(), 1)
}

func TestDiscardCancelsAndForgets(t *testing.T) {
	f := newFixture(t, baseConfig())
	ctx := context.Background()
	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(ctx)
	require.Len(t, f.alpha().Open(), 1)

	plans, err := f.st.QueryUnfinishedPlanOrders()
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.NoError(t, f.eng.Notify(model.Notification{
		Kind:        model.NotificationDiscard,
		PlanOrderID: plans[0].ID,
	}))
	f.eng.Tick(ctx)

	assert.Empty(t, f.alpha().Open())
	assert.True(t, f.eng.NotBusy())
}

func TestDiscardSurvivesRestart(t *testing.T) {
	f := newFixture(t, baseConfig())
	ctx := context.Background()
	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(ctx)

	plans, err := f.st.QueryUnfinishedPlanOrders()
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.NoError(t, f.eng.Notify(model.Notification{
		Kind:        model.NotificationDiscard,
		PlanOrderID: plans[0].ID,
	}))
	f.eng.Tick(ctx)
	require.True(t, f.eng.NotBusy())

	// a discarded plan must be closed out in the store too, so a
	// restart over the same data never re-executes the hedge
	plans, err = f.st.QueryUnfinishedPlanOrders()
	require.NoError(t, err)
	assert.Empty(t, plans)

	f2 := newFixture(t, baseConfig())
	f2.eng.st = f.st
	require.NoError(t, f2.eng.Recover())
	f2.eng.Tick(ctx)

	assert.True(t, f2.eng.NotBusy())
	assert.Empty(t, f2.alpha().Placed())
}

func TestRejectedOrderIsReplaced(t *testing.T) {
	f := newFixture(t, baseConfig())
	ctx := context.Background()
	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(ctx)

	placed := f.alpha().Placed()
	require.Len(t, placed, 1)
	require.NoError(t, f.eng.Notify(model.Notification{
		Kind:            model.NotificationReject,
		ExchangeOrderID: placed[0].ExchangeOrderID,
	}))
	f.eng.Tick(ctx)

	placed = f.alpha().Placed()
	require.Len(t, placed, 2, "rejected order is canceled and replaced")
	assert.NotEqual(t, placed[0].ExchangeOrderID, placed[1].ExchangeOrderID)
	assert.Len(t, f.alpha().Open(), 1)
	assert.Equal(t, uint64(1), f.met.Snapshot().StaleCancels)
}

func TestRecoverReadmitsUnfinishedPlans(t *testing.T) {
	st := store.NewMemory()
	now := time.Now()
	plan := model.NewPlanOrder(instrument, d("100"), d("100"), now)
	plan.Reduce(d("70"), now) // 30 left after a previous run
	require.NoError(t, st.StorePlanOrder(plan))

	done := model.NewPlanOrder(instrument, d("200"), d("100"), now)
	done.Reduce(d("200"), now)
	require.NoError(t, st.StorePlanOrder(done))

	f := newFixture(t, baseConfig())
	f.eng.st = st
	require.NoError(t, f.eng.Recover())
	require.NoError(t, f.eng.Recover()) // idempotent

	f.eng.Tick(context.Background())

	open := f.alpha().Open()
	require.Len(t, open, 1)
	for _, ord := range open {
		assert.Equal(t, "0.3", ord.Size.String()) // 30 left at 100
	}
}

func TestCancelFailureKeepsTracking(t *testing.T) {
	cfg := baseConfig()
	cfg.OrderExpired = 10 * time.Millisecond
	f := newFixture(t, cfg)
	ctx := context.Background()

	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(ctx)

	// fill the order behind the engine's back so the cancel fails
	for id := range f.alpha().Open() {
		f.alpha().MarkFilled(id)
	}
	time.Sleep(20 * time.Millisecond)
	f.eng.Tick(ctx)

	// the order is still considered live; exposure is not forgotten
	assert.False(t, f.eng.NotBusy())
	assert.Equal(t, uint64(1), f.met.Snapshot().CancelFailures)
	assert.Equal(t, uint64(0), f.met.Snapshot().Escalations)
}

func TestAsyncLifecycle(t *testing.T) {
	cfg := baseConfig()
	cfg.Async = true
	f := newFixture(t, cfg)
	ctx := context.Background()

	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(ctx)

	// placement resolves on a goroutine; wait for the resting order
	require.Eventually(t, func() bool {
		return len(f.alpha().Open()) == 1
	}, time.Second, time.Millisecond)

	// fold the completion in, then fill
	f.eng.Tick(ctx)
	assert.Equal(t, uint64(1), f.met.Snapshot().CandidatesPlaced)

	for id, ord := range f.alpha().Open() {
		f.alpha().MarkFilled(id)
		require.NoError(t, f.eng.Notify(model.Notification{
			Kind:            model.NotificationFill,
			Instrument:      instrument,
			ExchangeOrderID: id,
			FilledSize:      ord.Size,
			Status:          enum.OrderStatusFilled,
		}))
	}
	f.eng.Tick(ctx)
	assert.True(t, f.eng.NotBusy())
}

func TestAsyncHardRejectionRetries(t *testing.T) {
	cfg := baseConfig()
	cfg.Async = true
	f := newFixture(t, cfg)
	f.alpha().ScriptPlacement(gateway.HardRejected(assert.AnError))
	ctx := context.Background()

	require.NoError(t, f.eng.MakeOrder(instrument, d("400"), d("100")))
	f.eng.Tick(ctx)

	// rejection resolves asynchronously, then the next tick re-routes
	require.Eventually(t, func() bool {
		f.eng.Tick(ctx)
		return len(f.alpha().Open()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), f.met.Snapshot().CandidatesSkipped)
}

func TestMakeOrderDirect(t *testing.T) {
	f := newFixture(t, baseConfig())
	ctx := context.Background()

	ok := f.eng.MakeOrderDirect(ctx, &model.CandidateOrder{
		Account:        "alpha",
		Instrument:     instrument,
		ExchangeSymbol: instrument,
		Side:           enum.SideBuy,
		Kind:           enum.OrderKindLimit,
		Size:           d("1"),
		QuotePrice:     d("100"),
		Notional:       d("100"),
		CreatedTime:    time.Now(),
	})
	require.True(t, ok)
	assert.Len(t, f.alpha().Open(), 1)

	{ // unknown account
		ok := f.eng.MakeOrderDirect(ctx, &model.CandidateOrder{
			Account: "ghost",
			Side:    enum.SideBuy,
		})
		assert.False(t, ok)
	}
}

func TestNotifyRejectsInvalidKind(t *testing.T) {
	f := newFixture(t, baseConfig())
	assert.ErrorIs(t, f.eng.Notify(model.Notification{}), exception.ErrOrderInvalidNotification)
}
