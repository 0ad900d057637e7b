package engine

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"pairs-core/internal/events"
	"pairs-core/internal/monitor"
)

// Outcome classifies how a cycle ended.
type Outcome int

const (
	Success Outcome = iota
	// Recoverable errors abandon the rest of the cycle; the loop waits its
	// normal interval and tries again.
	Recoverable
	// Fatal errors are unexpected; the loop logs them, waits the retry delay
	// and keeps running.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what one cycle reports to its supervisor.
type Result struct {
	Outcome Outcome
	Err     error
}

// Ok reports a clean cycle.
func Ok() Result { return Result{Outcome: Success} }

// Retry reports a recoverable failure.
func Retry(err error) Result { return Result{Outcome: Recoverable, Err: err} }

// Fail reports a fatal failure.
func Fail(err error) Result { return Result{Outcome: Fatal, Err: err} }

// Cycle is one unit of work run by a Supervisor.
type Cycle func(ctx context.Context) Result

// Supervisor runs a cycle forever on a fixed sleep interval.
type Supervisor struct {
	Name       string
	Interval   time.Duration
	RetryDelay time.Duration
	// OnResult is called after every cycle, for metrics and alerting.
	OnResult func(Result, time.Duration)

	sleep func(ctx context.Context, d time.Duration) bool
}

// NewSupervisor creates a supervisor with the given cadence.
func NewSupervisor(name string, interval, retryDelay time.Duration) *Supervisor {
	return &Supervisor{Name: name, Interval: interval, RetryDelay: retryDelay, sleep: sleepCtx}
}

// Run blocks until ctx is done.
func (s *Supervisor) Run(ctx context.Context, cycle Cycle) {
	log.Printf("🚀 %s loop started (interval=%s)", s.Name, s.Interval)
	for {
		if ctx.Err() != nil {
			log.Printf("🛑 %s loop stopped", s.Name)
			return
		}

		start := time.Now()
		res := s.runOnce(ctx, cycle)
		took := time.Since(start)
		if s.OnResult != nil {
			s.OnResult(res, took)
		}

		wait := s.Interval
		switch res.Outcome {
		case Recoverable:
			log.Printf("⚠️ %s cycle aborted: %v", s.Name, res.Err)
		case Fatal:
			log.Printf("❌ %s cycle failed: %v", s.Name, res.Err)
			wait = s.RetryDelay
		}

		if !s.sleep(ctx, wait) {
			log.Printf("🛑 %s loop stopped", s.Name)
			return
		}
	}
}

// runOnce converts a panic inside the cycle into a Fatal result.
func (s *Supervisor) runOnce(ctx context.Context, cycle Cycle) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("%s cycle panic: %v\n%s", s.Name, r, debug.Stack())
			res = Fail(fmt.Errorf("panic: %v", r))
		}
	}()
	return cycle(ctx)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// CycleFailure is the payload of events.EventCycleFailed.
type CycleFailure struct {
	Loop    string  `json:"loop"`
	Outcome Outcome `json:"-"`
	Error   string  `json:"error"`
	TookMs  float64 `json:"took_ms"`
}

func (f CycleFailure) String() string {
	return fmt.Sprintf("%s cycle %s: %s", f.Loop, f.Outcome, f.Error)
}

// Report returns an OnResult hook that counts failed cycles and announces them on the bus.
func Report(name string, bus *events.Bus, metrics *monitor.SystemMetrics) func(Result, time.Duration) {
	return func(res Result, took time.Duration) {
		if res.Outcome == Success {
			return
		}
		if metrics != nil {
			metrics.RecordFailure(res.Err)
		}
		msg := ""
		if res.Err != nil {
			msg = res.Err.Error()
		}
		bus.Publish(events.EventCycleFailed, CycleFailure{
			Loop:    name,
			Outcome: res.Outcome,
			Error:   msg,
			TookMs:  float64(took.Microseconds()) / 1000,
		})
	}
}
