package market

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"pairs-core/pkg/db"
)

// Trade is one public execution.
type Trade struct {
	Symbol string
	Price  float64
	Qty    float64
	Time   time.Time
}

// BarAggregator folds trades into fixed-width OHLC bars aligned to the width.
// Once a bucket has been emitted, later trades for it or any earlier bucket are
// dropped so a straggler can never rewrite a stored bar.
type BarAggregator struct {
	Width time.Duration

	mu      sync.Mutex
	open    map[string]*db.Bar
	closeAt map[string]time.Time // trade time behind the open bar's Close
	done    map[string]time.Time // start of the last emitted bucket
}

// NewBarAggregator creates an aggregator producing bars of the given width.
func NewBarAggregator(width time.Duration) *BarAggregator {
	return &BarAggregator{
		Width:   width,
		open:    make(map[string]*db.Bar),
		closeAt: make(map[string]time.Time),
		done:    make(map[string]time.Time),
	}
}

// Add folds a trade in and returns the bar it completed, if any. Trades older
// than the open bar, or inside an already emitted bucket, are dropped.
func (a *BarAggregator) Add(t Trade) (db.Bar, bool) {
	start := t.Time.Truncate(a.Width)

	a.mu.Lock()
	defer a.mu.Unlock()

	if last, ok := a.done[t.Symbol]; ok && !start.After(last) {
		return db.Bar{}, false
	}

	cur, ok := a.open[t.Symbol]
	if !ok {
		a.open[t.Symbol] = newBar(t, start)
		a.closeAt[t.Symbol] = t.Time
		return db.Bar{}, false
	}
	switch {
	case start.Equal(cur.Time):
		cur.High = max(cur.High, t.Price)
		cur.Low = min(cur.Low, t.Price)
		if !t.Time.Before(a.closeAt[t.Symbol]) {
			cur.Close = t.Price
			a.closeAt[t.Symbol] = t.Time
		}
		cur.Volume += t.Qty
		return db.Bar{}, false
	case start.After(cur.Time):
		done := *cur
		a.done[t.Symbol] = done.Time
		a.open[t.Symbol] = newBar(t, start)
		a.closeAt[t.Symbol] = t.Time
		return done, true
	default:
		return db.Bar{}, false
	}
}

// Flush returns and forgets every open bar whose window closed at or before now.
func (a *BarAggregator) Flush(now time.Time) []db.Bar {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []db.Bar
	for sym, b := range a.open {
		if !b.Time.Add(a.Width).After(now) {
			out = append(out, *b)
			a.done[sym] = b.Time
			delete(a.open, sym)
			delete(a.closeAt, sym)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func newBar(t Trade, start time.Time) *db.Bar {
	return &db.Bar{
		Symbol: t.Symbol, Time: start,
		Open: t.Price, High: t.Price, Low: t.Price, Close: t.Price, Volume: t.Qty,
	}
}

// BarWriter persists completed bars.
type BarWriter interface {
	InsertBars(ctx context.Context, bars []db.Bar) error
}

// Recorder streams public trades and writes completed bars.
type Recorder struct {
	Stream  *StreamClient
	Store   BarWriter
	Agg     *BarAggregator
	Symbols []string

	bars chan db.Bar
}

// NewRecorder wires a recorder for the universe.
func NewRecorder(stream *StreamClient, store BarWriter, width time.Duration, symbols []string) *Recorder {
	return &Recorder{
		Stream:  stream,
		Store:   store,
		Agg:     NewBarAggregator(width),
		Symbols: symbols,
		bars:    make(chan db.Bar, 1024),
	}
}

// Run records until ctx is done.
func (r *Recorder) Run(ctx context.Context) {
	topics := make([]string, 0, len(r.Symbols))
	for _, s := range r.Symbols {
		topics = append(topics, "publicTrade."+s)
	}
	go r.Stream.Run(ctx, topics, r.handle)

	ticker := time.NewTicker(r.Agg.Width)
	defer ticker.Stop()
	var pending []db.Bar
	for {
		select {
		case <-ctx.Done():
			pending = append(pending, r.Agg.Flush(time.Now().Add(r.Agg.Width))...)
			r.write(context.Background(), pending)
			return
		case b := <-r.bars:
			pending = append(pending, b)
		case now := <-ticker.C:
			// Bars of symbols that stopped trading close on the clock.
			pending = append(pending, r.Agg.Flush(now)...)
			r.write(ctx, pending)
			pending = pending[:0]
		}
	}
}

func (r *Recorder) write(ctx context.Context, bars []db.Bar) {
	if len(bars) == 0 {
		return
	}
	if err := r.Store.InsertBars(ctx, bars); err != nil {
		log.Printf("❌ recorder: insert %d bars: %v", len(bars), err)
		return
	}
	log.Printf("💾 recorder: stored %d bars", len(bars))
}

func (r *Recorder) handle(msg []byte) {
	trades, err := parseTradeMessage(msg)
	if err != nil {
		log.Printf("recorder parse error: %v", err)
		return
	}
	for _, t := range trades {
		if bar, done := r.Agg.Add(t); done {
			select {
			case r.bars <- bar:
			default:
				log.Printf("⚠️ recorder: bar queue full, dropping %s@%s", bar.Symbol, bar.Time.Format(time.RFC3339))
			}
		}
	}
}

type tradeMessage struct {
	Topic string `json:"topic"`
	Data  []struct {
		T    int64  `json:"T"`
		Sym  string `json:"s"`
		Side string `json:"S"` // declared so "S" does not fold onto "s"
		V    string `json:"v"`
		P    string `json:"p"`
	} `json:"data"`
}

func parseTradeMessage(msg []byte) ([]Trade, error) {
	var m tradeMessage
	if err := sonnet.Unmarshal(msg, &m); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(m.Topic, "publicTrade.") {
		return nil, nil
	}
	out := make([]Trade, 0, len(m.Data))
	for _, d := range m.Data {
		price, err := parseFloat(d.P)
		if err != nil {
			return nil, fmt.Errorf("trade price %q: %w", d.P, err)
		}
		qty, err := parseFloat(d.V)
		if err != nil {
			return nil, fmt.Errorf("trade qty %q: %w", d.V, err)
		}
		out = append(out, Trade{Symbol: d.Sym, Price: price, Qty: qty, Time: time.UnixMilli(d.T)})
	}
	return out, nil
}
