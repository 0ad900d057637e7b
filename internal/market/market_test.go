package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"pairs-core/internal/events"
)

type stubFetcher struct {
	price float64
	err   error
	calls int
}

func (s *stubFetcher) LastPrice(ctx context.Context, symbol string) (float64, error) {
	s.calls++
	return s.price, s.err
}

func TestParseTickerMessage(t *testing.T) {
	tests := []struct {
		name  string
		msg   string
		ok    bool
		price float64
	}{
		{"snapshot", `{"topic":"tickers.WIFUSDT","type":"snapshot","ts":1700000000000,"data":{"symbol":"WIFUSDT","lastPrice":"2.345"}}`, true, 2.345},
		{"delta without price", `{"topic":"tickers.WIFUSDT","type":"delta","ts":1700000000000,"data":{"symbol":"WIFUSDT","bid1Price":"2.3"}}`, false, 0},
		{"other topic", `{"topic":"publicTrade.WIFUSDT","data":{}}`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tick, ok, err := parseTickerMessage([]byte(tt.msg))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if ok != tt.ok || tick.Price != tt.price {
				t.Fatalf("tick=%+v ok=%v, expected price %v ok=%v", tick, ok, tt.price, tt.ok)
			}
		})
	}
}

func TestFeedPrefersFreshStreamPrice(t *testing.T) {
	rest := &stubFetcher{price: 9}
	feed := NewFeed(nil, rest, events.NewBus(), []string{"WIFUSDT"})
	now := time.Unix(1_700_000_000, 0)
	feed.now = func() time.Time { return now }

	feed.Update(events.PriceTick{Symbol: "WIFUSDT", Price: 2})
	got, err := feed.LastPrice(context.Background(), "WIFUSDT")
	if err != nil || got != 2 {
		t.Fatalf("price=%v err=%v, expected streamed 2", got, err)
	}
	if rest.calls != 0 {
		t.Fatalf("fallback called %d times, expected 0", rest.calls)
	}

	now = now.Add(time.Minute)
	got, err = feed.LastPrice(context.Background(), "WIFUSDT")
	if err != nil || got != 9 {
		t.Fatalf("price=%v err=%v, expected REST 9 for stale quote", got, err)
	}
}

func TestFeedKeepsNewestVenueQuote(t *testing.T) {
	feed := NewFeed(nil, nil, events.NewBus(), []string{"WIFUSDT"})
	now := time.Unix(1_700_000_000, 0)
	feed.now = func() time.Time { return now }

	feed.Update(events.PriceTick{Symbol: "WIFUSDT", Price: 2.4, Time: now.Add(-100 * time.Millisecond)})
	// Delivered later but stamped earlier by the venue.
	feed.Update(events.PriceTick{Symbol: "WIFUSDT", Price: 2.1, Time: now.Add(-300 * time.Millisecond)})

	got, err := feed.LastPrice(context.Background(), "WIFUSDT")
	if err != nil || got != 2.4 {
		t.Fatalf("price=%v err=%v, expected 2.4", got, err)
	}
}

func TestFeedPrunesStaleQuotes(t *testing.T) {
	feed := NewFeed(nil, nil, events.NewBus(), nil)
	now := time.Unix(1_700_000_000, 0)
	feed.now = func() time.Time { return now }

	feed.Update(events.PriceTick{Symbol: "WIFUSDT", Price: 2, Time: now})
	now = now.Add(3 * time.Second)
	feed.Update(events.PriceTick{Symbol: "DOGEUSDT", Price: 0.1, Time: now})
	now = now.Add(3 * time.Second)

	if n := feed.Prune(); n != 1 {
		t.Fatalf("pruned=%d, expected 1", n)
	}
	if _, err := feed.LastPrice(context.Background(), "DOGEUSDT"); err != nil {
		t.Fatalf("fresh quote pruned: %v", err)
	}
	if _, err := feed.LastPrice(context.Background(), "WIFUSDT"); err == nil {
		t.Fatalf("expected stale quote to be gone")
	}
}

func TestFeedWithoutFallback(t *testing.T) {
	feed := NewFeed(nil, nil, nil, nil)
	if _, err := feed.LastPrice(context.Background(), "DOGEUSDT"); err == nil {
		t.Fatalf("expected error without quote or fallback")
	}
}

func TestFeedFallbackError(t *testing.T) {
	boom := errors.New("boom")
	feed := NewFeed(nil, &stubFetcher{err: boom}, nil, nil)
	if _, err := feed.LastPrice(context.Background(), "DOGEUSDT"); !errors.Is(err, boom) {
		t.Fatalf("err=%v, expected boom", err)
	}
}

func TestBarAggregator(t *testing.T) {
	agg := NewBarAggregator(10 * time.Second)
	base := time.UnixMilli(1_700_000_000_000) // aligned to 10s

	trades := []Trade{
		{Symbol: "WIFUSDT", Price: 2.0, Qty: 1, Time: base.Add(1 * time.Second)},
		{Symbol: "WIFUSDT", Price: 2.5, Qty: 2, Time: base.Add(3 * time.Second)},
		{Symbol: "WIFUSDT", Price: 1.5, Qty: 1, Time: base.Add(9 * time.Second)},
		{Symbol: "WIFUSDT", Price: 1.8, Qty: 1, Time: base.Add(8 * time.Second)},
	}
	for _, tr := range trades {
		if _, done := agg.Add(tr); done {
			t.Fatalf("bar completed early at %v", tr.Time)
		}
	}

	bar, done := agg.Add(Trade{Symbol: "WIFUSDT", Price: 3, Qty: 1, Time: base.Add(12 * time.Second)})
	if !done {
		t.Fatalf("expected completed bar")
	}
	if !bar.Time.Equal(base) || bar.Open != 2.0 || bar.High != 2.5 || bar.Low != 1.5 || bar.Close != 1.5 || bar.Volume != 5 {
		t.Fatalf("bar=%+v, unexpected", bar)
	}

	// Late trade for a closed bucket is dropped.
	if _, done := agg.Add(Trade{Symbol: "WIFUSDT", Price: 100, Qty: 1, Time: base.Add(5 * time.Second)}); done {
		t.Fatalf("late trade completed a bar")
	}

	if got := agg.Flush(base.Add(15 * time.Second)); len(got) != 0 {
		t.Fatalf("flushed %d bars before window end", len(got))
	}
	got := agg.Flush(base.Add(20 * time.Second))
	if len(got) != 1 || got[0].Close != 3 || !got[0].Time.Equal(base.Add(10*time.Second)) {
		t.Fatalf("flush=%+v, unexpected", got)
	}
}

func TestBarAggregatorDropsTradesForFlushedBucket(t *testing.T) {
	agg := NewBarAggregator(10 * time.Second)
	base := time.UnixMilli(1_700_000_000_000)

	agg.Add(Trade{Symbol: "WIFUSDT", Price: 2.0, Qty: 4, Time: base.Add(1 * time.Second)})
	agg.Add(Trade{Symbol: "WIFUSDT", Price: 2.6, Qty: 6, Time: base.Add(5 * time.Second)})

	got := agg.Flush(base.Add(10*time.Second + 5*time.Millisecond))
	if len(got) != 1 || got[0].Open != 2.0 || got[0].High != 2.6 || got[0].Volume != 10 {
		t.Fatalf("flush=%+v, unexpected", got)
	}

	// Stamped inside the emitted bucket but arriving after its flush.
	if _, done := agg.Add(Trade{Symbol: "WIFUSDT", Price: 2.1, Qty: 1, Time: base.Add(9990 * time.Millisecond)}); done {
		t.Fatalf("late trade completed a bar")
	}
	if got := agg.Flush(base.Add(20 * time.Second)); len(got) != 0 {
		t.Fatalf("flush=%+v, expected nothing for an emitted bucket", got)
	}

	// The next bucket still records normally.
	agg.Add(Trade{Symbol: "WIFUSDT", Price: 2.2, Qty: 1, Time: base.Add(21 * time.Second)})
	got = agg.Flush(base.Add(30 * time.Second))
	if len(got) != 1 || !got[0].Time.Equal(base.Add(20*time.Second)) || got[0].Close != 2.2 {
		t.Fatalf("flush=%+v, unexpected", got)
	}
}

func TestBarAggregatorCloseFollowsTradeTime(t *testing.T) {
	agg := NewBarAggregator(10 * time.Second)
	base := time.UnixMilli(1_700_000_000_000)

	agg.Add(Trade{Symbol: "DOGEUSDT", Price: 0.08, Qty: 1, Time: base.Add(2 * time.Second)})
	agg.Add(Trade{Symbol: "DOGEUSDT", Price: 0.09, Qty: 1, Time: base.Add(9 * time.Second)})
	agg.Add(Trade{Symbol: "DOGEUSDT", Price: 0.07, Qty: 1, Time: base.Add(8 * time.Second)})
	agg.Add(Trade{Symbol: "DOGEUSDT", Price: 0.085, Qty: 1, Time: base.Add(9 * time.Second)})

	got := agg.Flush(base.Add(10 * time.Second))
	if len(got) != 1 {
		t.Fatalf("flush=%+v, expected one bar", got)
	}
	if got[0].Close != 0.085 || got[0].Low != 0.07 || got[0].High != 0.09 || got[0].Volume != 4 {
		t.Fatalf("bar=%+v, unexpected", got[0])
	}
}

func TestParseTradeMessage(t *testing.T) {
	msg := `{"topic":"publicTrade.DOGEUSDT","type":"snapshot","ts":1700000000100,"data":[{"T":1700000000050,"s":"DOGEUSDT","S":"Buy","v":"120","p":"0.0812","L":"PlusTick","i":"abc","BT":false}]}`
	trades, err := parseTradeMessage([]byte(msg))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades=%d, expected 1", len(trades))
	}
	tr := trades[0]
	if tr.Symbol != "DOGEUSDT" || tr.Price != 0.0812 || tr.Qty != 120 || tr.Time.UnixMilli() != 1700000000050 {
		t.Fatalf("trade=%+v, unexpected", tr)
	}
}

func TestMockQuotesDeterministic(t *testing.T) {
	a := NewMockQuotes(7, nil)
	b := NewMockQuotes(7, nil)
	for i := 0; i < 5; i++ {
		pa, _ := a.LastPrice(context.Background(), "WIFUSDT")
		pb, _ := b.LastPrice(context.Background(), "WIFUSDT")
		if pa != pb || pa <= 0 {
			t.Fatalf("step %d: %v vs %v", i, pa, pb)
		}
	}
}

func TestPublicLinearURL(t *testing.T) {
	if got := PublicLinearURL("demo"); got != "wss://stream.bybit.com/v5/public/linear" {
		t.Fatalf("url=%s", got)
	}
	if got := PublicLinearURL("testnet"); got != "wss://stream-testnet.bybit.com/v5/public/linear" {
		t.Fatalf("url=%s", got)
	}
}
