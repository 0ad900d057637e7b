package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pairs-core/internal/events"
)

func TestLatencyHistogramRing(t *testing.T) {
	h := NewLatencyHistogram(3)
	if s := h.Stats(); s.Count != 0 {
		t.Fatalf("count=%d, expected 0", s.Count)
	}
	for _, v := range []float64{10, 1, 2, 3} {
		h.Record(v)
	}
	s := h.Stats()
	if s.Count != 3 || s.Min != 1 || s.Max != 3 || s.Avg != 2 {
		t.Fatalf("stats=%+v, expected 3 samples 1..3", s)
	}
	h.Record(100)
	if s := h.Stats(); s.Max != 100 {
		t.Fatalf("max=%v after new sample, expected 100", s.Max)
	}
}

func TestSnapshotCounters(t *testing.T) {
	m := NewSystemMetrics()
	m.IncrementCycles()
	m.IncrementCycles()
	m.IncrementEntries()
	m.IncrementExits()
	m.IncrementLegFailures()
	m.RecordFailure(errors.New("price fetch: timeout"))
	m.RecordScreen(4, 20*time.Millisecond)
	m.SetOpenPositions(2)

	s := m.GetSnapshot()
	if s.Cycles != 2 || s.Entries != 1 || s.Exits != 1 || s.LegFailures != 1 || s.CycleFailures != 1 {
		t.Fatalf("snapshot=%+v, unexpected counters", s)
	}
	if s.LastAccepted != 4 || s.OpenPositions != 2 || s.Screens != 1 {
		t.Fatalf("snapshot=%+v, unexpected gauges", s)
	}
	if s.LastCycleError != "price fetch: timeout" {
		t.Fatalf("last error=%q", s.LastCycleError)
	}
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordingSink) Send(message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func TestMonitorForwardsAlerts(t *testing.T) {
	bus := events.NewBus()
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	(&Monitor{Bus: bus, Sink: sink}).Start(ctx)

	bus.Publish(events.EventLegRejected, "DOGEUSDT Sell rejected")
	deadline := time.Now().Add(time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sink.count() != 1 {
		t.Fatalf("alerts=%d, expected 1", sink.count())
	}
	if !strings.Contains(sink.msgs[0], "leg.rejected") || !strings.Contains(sink.msgs[0], "DOGEUSDT") {
		t.Fatalf("alert=%q, unexpected", sink.msgs[0])
	}
}
