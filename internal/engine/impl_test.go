package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pairs-core/internal/monitor"
	"pairs-core/internal/signal"
	"pairs-core/pkg/db"
)

func newTestImpl(t *testing.T) (*Impl, *db.Database, string) {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	path := filepath.Join(t.TempDir(), "signals.json")
	impl := NewImpl(Config{
		Signals: signal.NewFileReader(path),
		DB:      database,
		Metrics: monitor.NewSystemMetrics(),
		Meta:    SystemStatus{DryRun: true, Venue: "bybit-demo"},
	})
	return impl, database, path
}

func TestGetSignals(t *testing.T) {
	impl, _, path := newTestImpl(t)
	ctx := context.Background()

	set, err := impl.GetSignals(ctx)
	if err != nil {
		t.Fatalf("GetSignals: %v", err)
	}
	if len(set.Pairs) != 0 || set.PublishedAt != nil {
		t.Fatalf("set=%+v, expected empty before first publish", set)
	}

	pair := signal.Pair{Y: "DOGEUSDT", X: "WIFUSDT", HedgeRatio: 1.2, StdSpread: 0.01}
	if err := signal.NewFilePublisher(path).Publish(ctx, signal.Set{Pairs: []signal.Pair{pair}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	set, err = impl.GetSignals(ctx)
	if err != nil {
		t.Fatalf("GetSignals: %v", err)
	}
	if len(set.Pairs) != 1 || set.Pairs[0].HedgeRatio != 1.2 || set.PublishedAt == nil {
		t.Fatalf("set=%+v, unexpected", set)
	}
}

func TestTradeSummary(t *testing.T) {
	impl, database, _ := newTestImpl(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)
	for i, pnl := range []float64{1.0, -0.4, 0.6} {
		err := database.CreatePairTrade(ctx, db.PairTrade{
			ID: string(rune('a' + i)), Y: "DOGEUSDT", X: "WIFUSDT", Direction: "long_spread",
			EntryTime: base, ExitTime: base.Add(time.Duration(i) * time.Minute), Fees: 0.1, NetProfit: pnl,
		})
		if err != nil {
			t.Fatalf("CreatePairTrade: %v", err)
		}
	}

	sum, err := impl.GetTradeSummary(ctx, 10)
	if err != nil {
		t.Fatalf("GetTradeSummary: %v", err)
	}
	if sum.Trades != 3 || sum.Wins != 2 || sum.Losses != 1 {
		t.Fatalf("summary=%+v, unexpected", sum)
	}
	if d := sum.NetProfit - 1.2; d > 1e-9 || d < -1e-9 {
		t.Fatalf("net=%v, expected 1.2", sum.NetProfit)
	}
}

func TestGetOrderLegNotFound(t *testing.T) {
	impl, _, _ := newTestImpl(t)
	if _, err := impl.GetOrderLeg(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, expected ErrNotFound", err)
	}
}

func TestSystemStatus(t *testing.T) {
	impl, _, _ := newTestImpl(t)
	st := impl.GetSystemStatus(context.Background())
	if !st.DryRun || st.Venue != "bybit-demo" || st.ServerTime.IsZero() {
		t.Fatalf("status=%+v, unexpected", st)
	}
}
