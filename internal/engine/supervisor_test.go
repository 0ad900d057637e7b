package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"pairs-core/internal/events"
	"pairs-core/internal/monitor"
)

func TestSupervisorKeepsRunningAfterFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	script := []func() Result{
		func() Result { return Retry(errors.New("price fetch failed")) },
		func() Result { panic("boom") },
		func() Result { return Fail(errors.New("unexpected")) },
		func() Result { return Ok() },
	}
	var (
		calls    int
		outcomes []Outcome
		waits    []time.Duration
	)

	s := NewSupervisor("test", time.Second, 3*time.Second)
	s.sleep = func(ctx context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return true
	}
	s.OnResult = func(r Result, _ time.Duration) {
		outcomes = append(outcomes, r.Outcome)
		if len(outcomes) == len(script) {
			cancel()
		}
	}

	s.Run(ctx, func(ctx context.Context) Result {
		step := script[calls]
		calls++
		return step()
	})

	want := []Outcome{Recoverable, Fatal, Fatal, Success}
	if len(outcomes) != len(want) {
		t.Fatalf("outcomes=%v, expected %v", outcomes, want)
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Fatalf("outcome %d=%v, expected %v", i, outcomes[i], want[i])
		}
	}
	wantWaits := []time.Duration{time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range wantWaits {
		if waits[i] != w {
			t.Fatalf("wait %d=%v, expected %v", i, waits[i], w)
		}
	}
}

func TestSupervisorStopsOnCancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSupervisor("test", time.Hour, time.Hour)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(ctx context.Context) Result { return Ok() })
		close(done)
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("supervisor did not stop")
	}
}

func TestOutcomeString(t *testing.T) {
	if Success.String() != "success" || Recoverable.String() != "recoverable" || Fatal.String() != "fatal" {
		t.Fatalf("unexpected outcome names")
	}
}

func TestReportCountsAndAnnouncesFailures(t *testing.T) {
	bus := events.NewBus()
	ch, stop := bus.Subscribe(events.EventCycleFailed, 4)
	defer stop()
	metrics := monitor.NewSystemMetrics()
	hook := Report("trader", bus, metrics)

	hook(Ok(), time.Millisecond)
	hook(Retry(errors.New("price fetch failed")), 2*time.Millisecond)

	snap := metrics.GetSnapshot()
	if snap.CycleFailures != 1 {
		t.Fatalf("failures=%d, expected 1", snap.CycleFailures)
	}
	if snap.LastCycleError != "price fetch failed" {
		t.Fatalf("last error=%q, expected %q", snap.LastCycleError, "price fetch failed")
	}
	select {
	case payload := <-ch:
		f, ok := payload.(CycleFailure)
		if !ok {
			t.Fatalf("payload=%T, expected CycleFailure", payload)
		}
		if f.Loop != "trader" || f.Outcome != Recoverable || f.Error != "price fetch failed" {
			t.Fatalf("failure=%+v", f)
		}
		if got := f.String(); got != "trader cycle recoverable: price fetch failed" {
			t.Fatalf("String()=%q", got)
		}
	default:
		t.Fatalf("expected a cycle.failed event")
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second event %+v", extra)
	default:
	}
}
