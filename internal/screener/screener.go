// Package screener tests every pair of the instrument universe for
// cointegration and publishes the pairs that qualify.
package screener

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"pairs-core/internal/data"
	"pairs-core/internal/engine"
	"pairs-core/internal/events"
	"pairs-core/internal/monitor"
	"pairs-core/internal/signal"
	"pairs-core/pkg/db"
	"pairs-core/pkg/stats"
)

// SignificanceLevel is the p-value a pair must stay strictly below.
const SignificanceLevel = 0.10

var (
	// ErrNotCointegrated marks a pair whose p-value is not below SignificanceLevel.
	ErrNotCointegrated = errors.New("not cointegrated")
	// ErrDegenerateSpread marks an accepted pair whose spread has zero or non-finite dispersion.
	ErrDegenerateSpread = errors.New("degenerate spread")
)

// WindowLoader returns the most recent window of closes for a symbol.
type WindowLoader interface {
	Window(ctx context.Context, symbol string, size int) (data.PriceSeries, error)
}

// RunJournal records cycle summaries.
type RunJournal interface {
	CreateScreenRun(ctx context.Context, r db.ScreenRun) (int64, error)
}

// Summary counts what one cycle did.
type Summary struct {
	StartedAt     time.Time
	Symbols       int
	Loaded        int
	PairsTested   int
	PairsAccepted int
	PairsExcluded int
	Duration      time.Duration
}

// Engine runs screening cycles.
type Engine struct {
	Symbols []string
	Window  int

	data      WindowLoader
	publisher signal.Publisher
	journal   RunJournal
	bus       *events.Bus
	metrics   *monitor.SystemMetrics
	now       func() time.Time
}

// Option configures optional collaborators.
type Option func(*Engine)

func WithJournal(j RunJournal) Option             { return func(e *Engine) { e.journal = j } }
func WithBus(b *events.Bus) Option                { return func(e *Engine) { e.bus = b } }
func WithMetrics(m *monitor.SystemMetrics) Option { return func(e *Engine) { e.metrics = m } }
func withClock(now func() time.Time) Option       { return func(e *Engine) { e.now = now } }

// New creates an engine over the given universe.
func New(symbols []string, window int, loader WindowLoader, publisher signal.Publisher, opts ...Option) *Engine {
	e := &Engine{
		Symbols:   uniqueSorted(symbols),
		Window:    window,
		data:      loader,
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunCycle screens and publishes once. It is the Cycle handed to the supervisor.
func (e *Engine) RunCycle(ctx context.Context) engine.Result {
	set, sum, err := e.Screen(ctx)
	if err != nil {
		return engine.Retry(err)
	}
	if err := e.publisher.Publish(ctx, set); err != nil {
		return engine.Retry(fmt.Errorf("publish signal set: %w", err))
	}
	e.bus.Publish(events.EventSignalsPublished, set)
	if e.metrics != nil {
		e.metrics.RecordScreen(sum.PairsAccepted, sum.Duration)
	}
	if e.journal != nil {
		_, err := e.journal.CreateScreenRun(ctx, db.ScreenRun{
			StartedAt:     sum.StartedAt,
			Symbols:       sum.Symbols,
			PairsTested:   sum.PairsTested,
			PairsAccepted: sum.PairsAccepted,
			PairsExcluded: sum.PairsExcluded,
			Duration:      sum.Duration,
		})
		if err != nil {
			log.Printf("⚠️ screen journal write failed: %v", err)
		}
	}

	if sum.PairsAccepted == 0 {
		log.Printf("📊 no cointegrated pairs found at 10%% level or better (%d symbols, %d pairs tested, %d excluded, %s)",
			sum.Loaded, sum.PairsTested, sum.PairsExcluded, sum.Duration)
	} else {
		log.Printf("📊 cointegrated pairs found: %d (%d symbols, %d pairs tested, %d excluded, %s)",
			sum.PairsAccepted, sum.Loaded, sum.PairsTested, sum.PairsExcluded, sum.Duration)
	}
	return engine.Ok()
}

// Screen loads fresh windows and tests every unordered pair. A storage error
// aborts the cycle; a short or malformed window only drops that symbol, and a
// numeric failure only drops that pair.
func (e *Engine) Screen(ctx context.Context) (signal.Set, Summary, error) {
	sum := Summary{StartedAt: e.now(), Symbols: len(e.Symbols)}

	logs := make(map[string][]float64, len(e.Symbols))
	var loaded []string
	for _, sym := range e.Symbols {
		series, err := e.data.Window(ctx, sym, e.Window)
		if err != nil {
			if data.IsDataError(err) {
				log.Printf("⚠️ screen: skipping %s: %v", sym, err)
				continue
			}
			return signal.Set{}, sum, err
		}
		logs[sym] = series.LogCloses()
		loaded = append(loaded, sym)
	}
	sum.Loaded = len(loaded)

	pairs := []signal.Pair{}
	for i := 0; i < len(loaded); i++ {
		for j := i + 1; j < len(loaded); j++ {
			y, x := loaded[i], loaded[j]
			sum.PairsTested++

			pair, res, err := Evaluate(y, x, logs[y], logs[x])
			switch {
			case errors.Is(err, ErrNotCointegrated):
				continue
			case err != nil:
				sum.PairsExcluded++
				log.Printf("⚠️ screen: excluding %s/%s: %v", y, x, err)
				continue
			}
			log.Printf("✅ cointegrated pair: y=%s x=%s significance=%s p=%.4f stat=%.3f hedge_ratio=%.4f mean_spread=%.4f std_spread=%.4f",
				y, x, res.Tier(), res.PValue, res.Stat, pair.HedgeRatio, pair.MeanSpread, pair.StdSpread)
			pairs = append(pairs, pair)
		}
	}

	sum.PairsAccepted = len(pairs)
	sum.Duration = e.now().Sub(sum.StartedAt)
	return signal.Set{Pairs: pairs, PublishedAt: sum.StartedAt}, sum, nil
}

// Evaluate tests y against x, both log prices over the same window. The caller
// assigns roles; y must sort before x.
func Evaluate(ySym, xSym string, y, x []float64) (signal.Pair, stats.CointResult, error) {
	if ySym >= xSym {
		return signal.Pair{}, stats.CointResult{}, fmt.Errorf("role order: %s must sort before %s", ySym, xSym)
	}
	res, err := stats.Coint(y, x)
	if err != nil {
		return signal.Pair{}, res, err
	}
	if math.IsNaN(res.PValue) || res.PValue >= SignificanceLevel {
		return signal.Pair{}, res, ErrNotCointegrated
	}

	beta, err := stats.HedgeRatio(y, x)
	if err != nil {
		return signal.Pair{}, res, err
	}
	_, mean, std := stats.SpreadStats(y, x, beta)
	pair := signal.Pair{Y: ySym, X: xSym, HedgeRatio: beta, MeanSpread: mean, StdSpread: std}
	if err := pair.Validate(); err != nil {
		return signal.Pair{}, res, fmt.Errorf("%w: %v", ErrDegenerateSpread, err)
	}
	return pair, res, nil
}

func uniqueSorted(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
