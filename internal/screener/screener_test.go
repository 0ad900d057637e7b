package screener

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"pairs-core/internal/data"
	"pairs-core/internal/engine"
	"pairs-core/internal/signal"
	"pairs-core/pkg/db"
)

type fakeLoader struct {
	series map[string]data.PriceSeries
	errs   map[string]error
}

func (f *fakeLoader) Window(ctx context.Context, symbol string, size int) (data.PriceSeries, error) {
	if err := f.errs[symbol]; err != nil {
		return data.PriceSeries{}, err
	}
	s, ok := f.series[symbol]
	if !ok || s.Len() < size {
		return data.PriceSeries{}, data.ErrShortWindow
	}
	return s, nil
}

type recordingPublisher struct {
	sets []signal.Set
	err  error
}

func (r *recordingPublisher) Publish(ctx context.Context, set signal.Set) error {
	if r.err != nil {
		return r.err
	}
	r.sets = append(r.sets, set)
	return nil
}

type recordingJournal struct{ runs []db.ScreenRun }

func (r *recordingJournal) CreateScreenRun(ctx context.Context, run db.ScreenRun) (int64, error) {
	r.runs = append(r.runs, run)
	return int64(len(r.runs)), nil
}

func seriesFromLogs(symbol string, logs []float64) data.PriceSeries {
	base := time.UnixMilli(1_700_000_000_000)
	s := data.PriceSeries{Symbol: symbol}
	for i, l := range logs {
		s.Times = append(s.Times, base.Add(time.Duration(i)*10*time.Second))
		s.Closes = append(s.Closes, math.Exp(l))
	}
	return s
}

// universe builds AUSDT cointegrated with BUSDT (hedge 1.2), an unrelated
// CUSDT and a constant-price FLATUSDT.
func universe(n int) map[string]data.PriceSeries {
	r := rand.New(rand.NewSource(42))
	x := make([]float64, n)
	for i := 1; i < n; i++ {
		x[i] = x[i-1] + r.NormFloat64()*0.01
	}
	y := make([]float64, n)
	for i := range x {
		y[i] = 0.5 + 1.2*x[i] + r.NormFloat64()*0.002
	}
	c := make([]float64, n)
	c[0] = 1
	for i := 1; i < n; i++ {
		c[i] = c[i-1] + r.NormFloat64()*0.02
	}
	flat := make([]float64, n)
	for i := range flat {
		flat[i] = math.Log(3)
	}
	return map[string]data.PriceSeries{
		"AUSDT":    seriesFromLogs("AUSDT", y),
		"BUSDT":    seriesFromLogs("BUSDT", x),
		"CUSDT":    seriesFromLogs("CUSDT", c),
		"FLATUSDT": seriesFromLogs("FLATUSDT", flat),
	}
}

func fixedClock() func() time.Time {
	t := time.Unix(1_700_000_000, 0)
	return func() time.Time { return t }
}

func findPair(pairs []signal.Pair, y, x string) (signal.Pair, bool) {
	for _, p := range pairs {
		if p.Y == y && p.X == x {
			return p, true
		}
	}
	return signal.Pair{}, false
}

func TestScreenFindsCointegratedPair(t *testing.T) {
	loader := &fakeLoader{series: universe(360)}
	e := New([]string{"BUSDT", "AUSDT", "CUSDT", "FLATUSDT"}, 360, loader, &recordingPublisher{}, withClock(fixedClock()))

	set, sum, err := e.Screen(context.Background())
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if sum.Loaded != 4 || sum.PairsTested != 6 {
		t.Fatalf("summary=%+v, expected 4 symbols and 6 pairs", sum)
	}

	p, ok := findPair(set.Pairs, "AUSDT", "BUSDT")
	if !ok {
		t.Fatalf("AUSDT/BUSDT not accepted: %+v", set.Pairs)
	}
	if math.Abs(p.HedgeRatio-1.2) > 0.05 {
		t.Fatalf("hedge_ratio=%v, expected ~1.2", p.HedgeRatio)
	}
	if math.Abs(p.MeanSpread-0.5) > 0.05 {
		t.Fatalf("mean_spread=%v, expected ~0.5", p.MeanSpread)
	}

	for _, p := range set.Pairs {
		if p.Y >= p.X {
			t.Fatalf("pair %s has y not sorting before x", p.Name())
		}
		if !(p.StdSpread > 0) {
			t.Fatalf("pair %s published with std_spread %v", p.Name(), p.StdSpread)
		}
		if p.Y == "FLATUSDT" || p.X == "FLATUSDT" {
			t.Fatalf("degenerate pair %s published", p.Name())
		}
	}
	if sum.PairsExcluded < 3 {
		t.Fatalf("excluded=%d, expected the three FLATUSDT pairs", sum.PairsExcluded)
	}
}

func TestScreenIsDeterministic(t *testing.T) {
	u := universe(360)
	a := New([]string{"AUSDT", "BUSDT", "CUSDT"}, 360, &fakeLoader{series: u}, &recordingPublisher{}, withClock(fixedClock()))
	b := New([]string{"CUSDT", "BUSDT", "AUSDT", "BUSDT"}, 360, &fakeLoader{series: u}, &recordingPublisher{}, withClock(fixedClock()))

	setA, _, errA := a.Screen(context.Background())
	setB, _, errB := b.Screen(context.Background())
	if errA != nil || errB != nil {
		t.Fatalf("Screen errors: %v, %v", errA, errB)
	}
	if !reflect.DeepEqual(setA, setB) {
		t.Fatalf("sets differ:\n%+v\n%+v", setA, setB)
	}
}

func TestScreenSkipsShortSymbol(t *testing.T) {
	u := universe(360)
	u["CUSDT"] = seriesFromLogs("CUSDT", []float64{0, 0.1})
	e := New([]string{"AUSDT", "BUSDT", "CUSDT"}, 360, &fakeLoader{series: u}, &recordingPublisher{}, withClock(fixedClock()))

	set, sum, err := e.Screen(context.Background())
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if sum.Loaded != 2 || sum.PairsTested != 1 {
		t.Fatalf("summary=%+v, expected 2 symbols and 1 pair", sum)
	}
	if _, ok := findPair(set.Pairs, "AUSDT", "BUSDT"); !ok {
		t.Fatalf("AUSDT/BUSDT missing after skipping CUSDT")
	}
}

func TestRunCyclePublishesAndJournals(t *testing.T) {
	pub := &recordingPublisher{}
	journal := &recordingJournal{}
	e := New([]string{"AUSDT", "BUSDT"}, 360, &fakeLoader{series: universe(360)}, pub,
		WithJournal(journal), withClock(fixedClock()))

	res := e.RunCycle(context.Background())
	if res.Outcome != engine.Success {
		t.Fatalf("result=%+v, expected success", res)
	}
	if len(pub.sets) != 1 || len(pub.sets[0].Pairs) != 1 {
		t.Fatalf("published=%+v, expected one set with one pair", pub.sets)
	}
	if len(journal.runs) != 1 || journal.runs[0].PairsAccepted != 1 || journal.runs[0].PairsTested != 1 {
		t.Fatalf("journal=%+v, unexpected", journal.runs)
	}
}

func TestRunCycleStorageErrorDoesNotPublish(t *testing.T) {
	pub := &recordingPublisher{}
	loader := &fakeLoader{series: universe(360), errs: map[string]error{"BUSDT": errors.New("database is locked")}}
	e := New([]string{"AUSDT", "BUSDT"}, 360, loader, pub, withClock(fixedClock()))

	res := e.RunCycle(context.Background())
	if res.Outcome != engine.Recoverable {
		t.Fatalf("result=%+v, expected recoverable", res)
	}
	if len(pub.sets) != 0 {
		t.Fatalf("published %d sets after storage error", len(pub.sets))
	}
}

func TestRunCyclePublishFailure(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("read-only file system")}
	e := New([]string{"AUSDT", "BUSDT"}, 360, &fakeLoader{series: universe(360)}, pub, withClock(fixedClock()))
	if res := e.RunCycle(context.Background()); res.Outcome != engine.Recoverable {
		t.Fatalf("result=%+v, expected recoverable", res)
	}
}

func TestEvaluateRejectsWrongRoleOrder(t *testing.T) {
	if _, _, err := Evaluate("WIFUSDT", "DOGEUSDT", nil, nil); err == nil {
		t.Fatalf("expected role order error")
	}
}
