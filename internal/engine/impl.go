package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pairs-core/internal/monitor"
	"pairs-core/internal/signal"
	"pairs-core/pkg/db"
)

var ErrNotFound = errors.New("not found")

// Impl implements Service over the shared database and the signal artifact.
type Impl struct {
	signals signal.Source
	db      *db.Database
	metrics *monitor.SystemMetrics
	meta    SystemStatus
}

// Config holds the dependencies of Impl.
type Config struct {
	Signals signal.Source
	DB      *db.Database
	Metrics *monitor.SystemMetrics
	Meta    SystemStatus
}

// NewImpl creates a new engine implementation.
func NewImpl(cfg Config) *Impl {
	return &Impl{signals: cfg.Signals, db: cfg.DB, metrics: cfg.Metrics, meta: cfg.Meta}
}

func (e *Impl) GetSignals(ctx context.Context) (*SignalSet, error) {
	if e.signals == nil {
		return nil, fmt.Errorf("signal source not available")
	}
	set, err := e.signals.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := &SignalSet{Pairs: make([]Pair, 0, len(set.Pairs))}
	if !set.PublishedAt.IsZero() {
		at := set.PublishedAt
		out.PublishedAt = &at
	}
	for _, p := range set.Pairs {
		out.Pairs = append(out.Pairs, Pair(p))
	}
	return out, nil
}

func (e *Impl) GetPositions(ctx context.Context) ([]Position, error) {
	if e.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	rows, err := e.db.ListPairPositions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Position, 0, len(rows))
	for _, p := range rows {
		out = append(out, Position(p))
	}
	return out, nil
}

func (e *Impl) GetTrades(ctx context.Context, limit int) ([]Trade, error) {
	if e.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	rows, err := e.db.ListPairTrades(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Trade, 0, len(rows))
	for _, t := range rows {
		out = append(out, Trade(t))
	}
	return out, nil
}

func (e *Impl) GetTradeSummary(ctx context.Context, limit int) (*TradeSummary, error) {
	trades, err := e.GetTrades(ctx, limit)
	if err != nil {
		return nil, err
	}
	sum := &TradeSummary{Trades: len(trades)}
	for _, t := range trades {
		sum.NetProfit += t.NetProfit
		sum.Fees += t.Fees
		if t.NetProfit >= 0 {
			sum.Wins++
		} else {
			sum.Losses++
		}
	}
	return sum, nil
}

func (e *Impl) GetScreenRuns(ctx context.Context, limit int) ([]ScreenRun, error) {
	if e.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	rows, err := e.db.ListScreenRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ScreenRun, 0, len(rows))
	for _, r := range rows {
		out = append(out, ScreenRun{
			ID:            r.ID,
			StartedAt:     r.StartedAt,
			Symbols:       r.Symbols,
			PairsTested:   r.PairsTested,
			PairsAccepted: r.PairsAccepted,
			PairsExcluded: r.PairsExcluded,
			DurationMs:    r.Duration.Milliseconds(),
		})
	}
	return out, nil
}

func (e *Impl) GetOrderLeg(ctx context.Context, id string) (*OrderLeg, error) {
	if e.db == nil {
		return nil, fmt.Errorf("database not available")
	}
	l, err := e.db.GetOrderLeg(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	leg := OrderLeg(*l)
	return &leg, nil
}

func (e *Impl) GetMetrics(ctx context.Context) any {
	if e.metrics == nil {
		return nil
	}
	return e.metrics.GetSnapshot()
}

func (e *Impl) GetSystemStatus(ctx context.Context) *SystemStatus {
	status := e.meta
	status.ServerTime = time.Now()
	return &status
}
