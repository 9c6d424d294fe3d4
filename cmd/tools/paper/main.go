// Paper drives the execution engine against simulated exchange
// accounts: a random-walk quote feed, probabilistic fills, and hedge
// requests of alternating direction. Useful for eyeballing routing,
// netting and escalation behavior without a database or a venue.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/engine"
	"main/internal/gateway"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/registry"
	"main/internal/router"
	"main/internal/store"
)

const instrument = "BTC-USDT-PERP"

func main() {
	ticks := flag.Int("ticks", 200, "Number of dispatch ticks to run")
	orderEvery := flag.Int("order-every", 5, "Submit one hedge every N ticks (0=disable)")
	maxOrders := flag.Int("max-orders", 0, "Maximum hedges to submit (0=unlimited)")
	quantity := flag.String("quantity", "5000", "Hedge notional per request")
	startPrice := flag.String("price", "50000", "Starting mid price")
	volatility := flag.Float64("volatility", 0.0005, "Per-tick relative mid move")
	fillRate := flag.Float64("fill-rate", 0.3, "Per-tick fill probability for a resting order")
	expiry := flag.Duration("expiry", 2*time.Second, "Resting-order expiry before market escalation (0=disable)")
	async := flag.Bool("async", false, "Use the async submission path")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	notional, err := decimal.NewFromString(*quantity)
	if err != nil {
		log.Fatalf("bad quantity: %v", err)
	}
	mid, err := decimal.NewFromString(*startPrice)
	if err != nil {
		log.Fatalf("bad price: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))

	alpha := gateway.NewSim("alpha")
	alpha.SetRates(decimal.NewFromFloat(0.0002), decimal.NewFromFloat(0.0005))
	beta := gateway.NewSim("beta")
	beta.SetRates(decimal.NewFromFloat(0.0004), decimal.NewFromFloat(0.0007))
	sims := []*gateway.Sim{alpha, beta}
	gateways := map[string]gateway.Gateway{"alpha": alpha, "beta": beta}

	reg := registry.NewRegistry()
	for i, name := range []string{"alpha", "beta"} {
		err := reg.Add(instrument, registry.Route{
			Account:        name,
			Permitted:      enum.PermissionBoth,
			PricePrecision: 1,
			SizePrecision:  4,
			Priority:       i,
		})
		if err != nil {
			log.Fatalf("register route: %v", err)
		}
	}

	st := store.NewMemory()
	metrics := obs.NewMetrics()
	rtr := router.New(router.Config{
		DepthSize:        decimal.NewFromInt(10),
		DepthSafetyRatio: decimal.NewFromFloat(0.2),
		ImproveTick:      true,
	}, reg, gateways)
	eng := engine.New(engine.Config{
		MinQuantity:     decimal.NewFromInt(100),
		MaxQuantity:     notional.Mul(decimal.NewFromInt(2)),
		OrderExpired:    *expiry,
		SpreadTolerance: decimal.NewFromFloat(0.001),
		DustNotional:    decimal.NewFromInt(1),
		DustSize:        decimal.NewFromFloat(0.0001),
		Async:           *async,
	}, rtr, gateways, st, obs.LogReporter{}, metrics)

	ctx := context.Background()
	spread := decimal.NewFromFloat(0.0002)
	submitted := 0
	fills := 0

	for i := 0; i < *ticks; i++ {
		mid = drift(mid, *volatility, rng)
		half := mid.Mul(spread)
		quote := gateway.SimQuote{Bid: mid.Sub(half), Ask: mid.Add(half)}
		for _, sim := range sims {
			sim.SetQuote(instrument, quote)
		}

		if *orderEvery > 0 && i%*orderEvery == 0 &&
			(*maxOrders == 0 || submitted < *maxOrders) {
			signed := notional
			if submitted%3 == 2 {
				// occasional opposite hedge to exercise netting
				signed = notional.Neg()
			}
			if err := eng.MakeOrder(instrument, signed, mid); err != nil {
				log.Fatalf("make order: %v", err)
			}
			submitted++
		}

		fills += settleFills(eng, sims, *fillRate, rng)
		eng.Tick(ctx)

		if *expiry > 0 {
			// keep the wall clock moving so expiry can trigger
			time.Sleep(time.Millisecond)
		}
	}

	// drain: let outstanding orders fill and the loop settle
	for i := 0; i < 50 && !eng.NotBusy(); i++ {
		fills += settleFills(eng, sims, 1.0, rng)
		eng.Tick(ctx)
	}

	snapshot := metrics.Snapshot()
	log.Printf("paper completed: submitted=%d fills=%d plans=%d shrinks=%d results=%d",
		submitted, fills, st.PlanCount(), len(st.Shrinks()), len(st.Results()))
	log.Printf("metrics: %+v", snapshot)
	if !eng.NotBusy() {
		log.Printf("warning: engine still busy after drain")
	}
}

// drift applies one random-walk step to the mid price.
func drift(mid decimal.Decimal, volatility float64, rng *rand.Rand) decimal.Decimal {
	step := (rng.Float64()*2 - 1) * volatility
	return mid.Mul(decimal.NewFromFloat(1 + step))
}

// settleFills fully fills each resting order with the given
// probability and notifies the engine.
func settleFills(eng *engine.Engine, sims []*gateway.Sim, rate float64, rng *rand.Rand) int {
	n := 0
	for _, sim := range sims {
		for id, ord := range sim.Open() {
			if rng.Float64() > rate {
				continue
			}
			if _, ok := sim.MarkFilled(id); !ok {
				continue
			}
			err := eng.Notify(model.Notification{
				Kind:            model.NotificationFill,
				Instrument:      ord.Instrument,
				ExchangeOrderID: id,
				FilledSize:      ord.Size,
				Status:          enum.OrderStatusFilled,
			})
			if err != nil {
				log.Printf("notify fill failed: %v", err)
				continue
			}
			n++
		}
	}
	return n
}
