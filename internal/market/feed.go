package market

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"pairs-core/internal/events"
	"pairs-core/pkg/cache"
)

// PriceFetcher returns the latest traded price of a symbol.
type PriceFetcher interface {
	LastPrice(ctx context.Context, symbol string) (float64, error)
}

// Feed keeps last prices from the Bybit tickers stream and falls back to REST
// when a symbol has no fresh streamed price.
type Feed struct {
	Stream   *StreamClient
	Fallback PriceFetcher
	Bus      *events.Bus
	Symbols  []string
	MaxAge   time.Duration

	quotes *cache.QuoteCache
	now    func() time.Time
}

// NewFeed creates a feed; call Start to begin streaming.
func NewFeed(stream *StreamClient, fallback PriceFetcher, bus *events.Bus, symbols []string) *Feed {
	return &Feed{
		Stream:   stream,
		Fallback: fallback,
		Bus:      bus,
		Symbols:  symbols,
		MaxAge:   5 * time.Second,
		quotes:   cache.NewQuoteCache(),
		now:      time.Now,
	}
}

// Start streams tickers for all symbols in the background.
func (f *Feed) Start(ctx context.Context) {
	if f.Stream == nil {
		log.Println("market feed: no stream configured; using REST only")
		return
	}
	topics := make([]string, 0, len(f.Symbols))
	for _, s := range f.Symbols {
		topics = append(topics, "tickers."+s)
	}
	go f.Stream.Run(ctx, topics, f.handle)
	go f.pruneLoop(ctx)
}

func (f *Feed) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(f.MaxAge)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := f.Prune(); n > 0 {
				log.Printf("market feed: dropped %d stale quotes, %d cached", n, f.quotes.Len())
			}
		}
	}
}

// Prune drops quotes older than MaxAge; LastPrice would ignore them anyway.
func (f *Feed) Prune() int {
	return f.quotes.Prune(f.now().Add(-f.MaxAge))
}

// LastPrice returns a streamed price received within MaxAge, else asks the fallback.
func (f *Feed) LastPrice(ctx context.Context, symbol string) (float64, error) {
	if q, ok := f.quotes.Get(symbol); ok && f.now().Sub(q.Received) <= f.MaxAge {
		return q.Price, nil
	}
	if f.Fallback == nil {
		return 0, fmt.Errorf("no fresh quote for %s", symbol)
	}
	return f.Fallback.LastPrice(ctx, symbol)
}

type tickerMessage struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	Ts    int64  `json:"ts"`
	Data  struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"data"`
}

func (f *Feed) handle(msg []byte) {
	tick, ok, err := parseTickerMessage(msg)
	if err != nil {
		log.Printf("market feed parse error: %v", err)
		return
	}
	if !ok {
		return
	}
	f.Update(tick)
}

// Update stores a tick and republishes it on the bus. A tick stamped before the
// cached quote is dropped from the cache; ticks without a venue time count as now.
func (f *Feed) Update(tick events.PriceTick) {
	now := f.now()
	at := tick.Time
	if at.IsZero() {
		at = now
	}
	f.quotes.Set(tick.Symbol, cache.Quote{Price: tick.Price, At: at, Received: now})
	f.Bus.Publish(events.EventPriceTick, tick)
}

// parseTickerMessage extracts the last price. Deltas without lastPrice report ok=false.
func parseTickerMessage(msg []byte) (events.PriceTick, bool, error) {
	var m tickerMessage
	if err := sonnet.Unmarshal(msg, &m); err != nil {
		return events.PriceTick{}, false, err
	}
	if !strings.HasPrefix(m.Topic, "tickers.") || m.Data.LastPrice == "" {
		return events.PriceTick{}, false, nil
	}
	price, err := parseFloat(m.Data.LastPrice)
	if err != nil {
		return events.PriceTick{}, false, fmt.Errorf("lastPrice %q: %w", m.Data.LastPrice, err)
	}
	symbol := m.Data.Symbol
	if symbol == "" {
		symbol = strings.TrimPrefix(m.Topic, "tickers.")
	}
	return events.PriceTick{Symbol: symbol, Price: price, Time: time.UnixMilli(m.Ts)}, true, nil
}
