package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"pairs-core/internal/balance"
	"pairs-core/internal/events"
	"pairs-core/internal/order"
	"pairs-core/internal/signal"
	"pairs-core/internal/state"
	"pairs-core/internal/trader"
	"pairs-core/pkg/config"
)

// dry_run_demo walks one pair through entry and exit against the simulated
// gateway. It does not touch the exchange or the database.
//
// Usage:
//   go run ./scripts/dry_run_demo
//
// It will:
//   1) open a short spread when ADAUSDT trades rich against DOGEUSDT,
//   2) hold while the spread stays wide,
//   3) close once the spread reverts and the bracket is hit,
//   4) print the net simulated positions, which should be flat.

type staticSignals struct{ set signal.Set }

func (s staticSignals) Load(ctx context.Context) (signal.Set, error) { return s.set, nil }

type scriptedQuotes struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (q *scriptedQuotes) set(prices map[string]float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prices = prices
}

func (q *scriptedQuotes) LastPrice(ctx context.Context, symbol string) (float64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no quote for %s", symbol)
	}
	return p, nil
}

func main() {
	log.Println("=== DRY-RUN pair demo starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config error: %v", err)
	}
	initialBalance := cfg.DryRunInitialBalance
	if initialBalance <= 0 {
		initialBalance = 10000
	}

	ctx := context.Background()
	bus := events.NewBus()
	closed, stop := bus.Subscribe(events.EventPositionClosed, 4)
	defer stop()

	gateway := order.NewDryRunGateway(0, 0)
	executor := order.NewExecutor(gateway, nil, bus, nil)
	store := state.NewStore(nil)
	quotes := &scriptedQuotes{}

	signals := staticSignals{set: signal.Set{
		Pairs: []signal.Pair{{
			Y: "ADAUSDT", X: "DOGEUSDT",
			HedgeRatio: 1, MeanSpread: 0, StdSpread: 0.01,
		}},
		PublishedAt: time.Now(),
	}}

	params := trader.ParamsFromConfig(cfg.Trading)
	eng := trader.New(params, signals, quotes, balance.NewDryRunManager(initialBalance), executor, store, trader.WithBus(bus))

	steps := []struct {
		name   string
		prices map[string]float64
	}{
		{"spread rich, expect short_spread entry", map[string]float64{"ADAUSDT": 1.03, "DOGEUSDT": 1.00}},
		{"spread still wide, expect hold", map[string]float64{"ADAUSDT": 1.031, "DOGEUSDT": 1.00}},
		{"spread reverted, expect exit", map[string]float64{"ADAUSDT": 0.97, "DOGEUSDT": 1.00}},
	}
	for i, step := range steps {
		log.Printf("[STEP %d] %s %v", i+1, step.name, step.prices)
		quotes.set(step.prices)
		res := eng.RunCycle(ctx)
		log.Printf("  outcome=%s err=%v open=%v", res.Outcome, res.Err, store.Keys())
	}

	select {
	case payload := <-closed:
		log.Printf("closed trade: %+v", payload)
	default:
		log.Printf("no trade closed; check take_profit/stop_loss against the demo prices")
	}

	log.Printf("simulated orders: %d", gateway.Orders())
	for sym, qty := range gateway.Positions() {
		log.Printf("  net %s: %.0f", sym, qty)
	}
	log.Println("=== DRY-RUN pair demo done ===")
}
