// Package trader turns published pair signals and live prices into pair
// entries and exits.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pairs-core/internal/engine"
	"pairs-core/internal/events"
	"pairs-core/internal/monitor"
	"pairs-core/internal/order"
	"pairs-core/internal/signal"
	"pairs-core/internal/state"
	"pairs-core/pkg/config"
	"pairs-core/pkg/db"
)

// QuoteSource returns the latest traded price of a symbol.
type QuoteSource interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// BalanceSource returns the balance available for sizing.
type BalanceSource interface {
	Available(ctx context.Context) (float64, error)
}

// OrderSubmitter sends the legs of one pair. order.Executor satisfies it.
type OrderSubmitter interface {
	SubmitPair(ctx context.Context, pair string, intent order.Intent, legs ...order.Leg) ([]order.LegResult, error)
}

// TradeJournal records closed pair trades.
type TradeJournal interface {
	CreatePairTrade(ctx context.Context, t db.PairTrade) error
}

// Params are the trading rules.
type Params struct {
	EntryThreshold float64
	RiskFraction   float64
	MinOrderValue  float64
	TakerFee       float64
	TakeProfit     float64
	StopLoss       float64
}

// ParamsFromConfig copies the trading section of the config.
func ParamsFromConfig(t config.Trading) Params {
	return Params{
		EntryThreshold: t.EntryThreshold,
		RiskFraction:   t.RiskFraction,
		MinOrderValue:  t.MinOrderValue,
		TakerFee:       t.TakerFee,
		TakeProfit:     t.TakeProfit,
		StopLoss:       t.StopLoss,
	}
}

// Engine runs trading cycles. It owns its position store; nothing else may
// mutate it.
type Engine struct {
	params  Params
	signals signal.Source
	quotes  QuoteSource
	balance BalanceSource
	orders  OrderSubmitter
	store   *state.Store

	trades  TradeJournal
	bus     *events.Bus
	metrics *monitor.SystemMetrics
	now     func() time.Time
	newID   func() string
}

// Option configures optional collaborators.
type Option func(*Engine)

func WithTradeJournal(j TradeJournal) Option      { return func(e *Engine) { e.trades = j } }
func WithBus(b *events.Bus) Option                { return func(e *Engine) { e.bus = b } }
func WithMetrics(m *monitor.SystemMetrics) Option { return func(e *Engine) { e.metrics = m } }
func withClock(now func() time.Time) Option       { return func(e *Engine) { e.now = now } }

// New wires an engine.
func New(p Params, signals signal.Source, quotes QuoteSource, balance BalanceSource, orders OrderSubmitter, store *state.Store, opts ...Option) *Engine {
	e := &Engine{
		params:  p,
		signals: signals,
		quotes:  quotes,
		balance: balance,
		orders:  orders,
		store:   store,
		now:     time.Now,
		newID:   newTradeID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunCycle evaluates exits for every open position, then entries for every
// published pair that is not open. A data error abandons the rest of the cycle.
// Leg failures are collected and reported as a recoverable result once the
// cycle has finished.
func (e *Engine) RunCycle(ctx context.Context) engine.Result {
	if e.metrics != nil {
		timer := monitor.NewTimer(e.metrics.CycleLatency)
		defer timer.Stop()
		e.metrics.IncrementCycles()
	}

	set, err := e.signals.Load(ctx)
	if err != nil {
		return e.abort(fmt.Errorf("load signals: %w", err))
	}

	var legErrs []error
	if err := e.evaluateExits(ctx, &legErrs); err != nil {
		return e.abort(err)
	}
	if err := e.evaluateEntries(ctx, set, &legErrs); err != nil {
		return e.abort(err)
	}

	if e.metrics != nil {
		e.metrics.SetOpenPositions(e.store.Len())
	}
	if len(legErrs) > 0 {
		return engine.Retry(errors.Join(legErrs...))
	}
	return engine.Ok()
}

func (e *Engine) abort(err error) engine.Result {
	if e.metrics != nil {
		e.metrics.SetOpenPositions(e.store.Len())
	}
	return engine.Retry(err)
}

// prices fetches both legs' last prices.
func (e *Engine) prices(ctx context.Context, y, x string) (float64, float64, error) {
	py, err := e.price(ctx, y)
	if err != nil {
		return 0, 0, err
	}
	px, err := e.price(ctx, x)
	if err != nil {
		return 0, 0, err
	}
	return py, px, nil
}

func (e *Engine) price(ctx context.Context, symbol string) (float64, error) {
	p, err := e.quotes.LastPrice(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("price %s: %w", symbol, err)
	}
	if !(p > 0) {
		return 0, fmt.Errorf("price %s: non-positive quote %v", symbol, p)
	}
	return p, nil
}

func logLegFailure(pair string, intent order.Intent, err error) {
	log.Printf("❌ %s %s incomplete, state unchanged: %v", pair, intent, err)
}
