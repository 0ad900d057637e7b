package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"pairs-core/internal/events"
)

type staticExposure map[string]float64

func (s staticExposure) Exposure() map[string]float64 { return s }

func TestReconcileFindsDrift(t *testing.T) {
	local := staticExposure{"ADAUSDT": -97, "DOGEUSDT": 116}
	venue := VenueFunc(func(ctx context.Context) (map[string]float64, error) {
		// DOGE leg never filled; BTC is held outside the traded universe.
		return map[string]float64{"ADAUSDT": -97, "BTCUSDT": 0.5, "WIFUSDT": 10}, nil
	})
	s := NewService(venue, local, nil, []string{"ADAUSDT", "DOGEUSDT", "WIFUSDT"}, time.Minute)

	report, err := s.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !report.HasDiffs || len(report.Diffs) != 2 {
		t.Fatalf("diffs=%+v, expected DOGEUSDT and WIFUSDT", report.Diffs)
	}
	if d := report.Diffs[0]; d.Symbol != "DOGEUSDT" || d.LocalQty != 116 || d.VenueQty != 0 || d.Difference != 116 {
		t.Fatalf("diff[0]=%+v", d)
	}
	if d := report.Diffs[1]; d.Symbol != "WIFUSDT" || d.Difference != -10 {
		t.Fatalf("diff[1]=%+v", d)
	}
}

func TestReconcileClean(t *testing.T) {
	local := staticExposure{"ADAUSDT": -97, "DOGEUSDT": 116}
	venue := VenueFunc(func(ctx context.Context) (map[string]float64, error) {
		return map[string]float64{"ADAUSDT": -97, "DOGEUSDT": 116.00001}, nil
	})
	report, err := NewService(venue, local, nil, []string{"ADAUSDT", "DOGEUSDT"}, time.Minute).Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.HasDiffs {
		t.Fatalf("diffs=%+v, expected none within tolerance", report.Diffs)
	}
}

func TestReconcileVenueError(t *testing.T) {
	boom := errors.New("boom")
	venue := VenueFunc(func(ctx context.Context) (map[string]float64, error) { return nil, boom })
	if _, err := NewService(venue, staticExposure{}, nil, nil, time.Minute).Reconcile(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err=%v, expected boom", err)
	}
}

func TestDriftIsPublished(t *testing.T) {
	bus := events.NewBus()
	ch, stop := bus.Subscribe(events.EventExposureDrift, 1)
	defer stop()

	s := NewService(VenueFunc(func(ctx context.Context) (map[string]float64, error) {
		return map[string]float64{}, nil
	}), staticExposure{"ADAUSDT": 5}, bus, []string{"ADAUSDT"}, time.Minute)
	report, err := s.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	s.handleReport(report)

	select {
	case payload := <-ch:
		r, ok := payload.(Report)
		if !ok || len(r.Diffs) != 1 || r.Diffs[0].Symbol != "ADAUSDT" {
			t.Fatalf("payload=%+v", payload)
		}
		if got := r.String(); got != "exposure drift: ADAUSDT local=5.0000 venue=0.0000" {
			t.Fatalf("String()=%q", got)
		}
	default:
		t.Fatalf("expected exposure.drift event")
	}
}
