package balance

import (
	"context"
	"errors"
	"testing"
)

type stubSource struct {
	values []float64
	err    error
	calls  int
}

func (s *stubSource) AvailableBalance(ctx context.Context) (float64, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	v := s.values[0]
	if len(s.values) > 1 {
		s.values = s.values[1:]
	}
	return v, nil
}

func TestManagerFetchesEveryCall(t *testing.T) {
	src := &stubSource{values: []float64{1000, 950}}
	m := NewManager(src)
	ctx := context.Background()

	for _, want := range []float64{1000, 950} {
		got, err := m.Available(ctx)
		if err != nil {
			t.Fatalf("Available: %v", err)
		}
		if got != want {
			t.Fatalf("Available=%v, expected %v", got, want)
		}
	}
	if src.calls != 2 {
		t.Fatalf("calls=%d, expected 2", src.calls)
	}
	if s := m.Snapshot(); s.Available != 950 || s.DryRun || s.LastSync.IsZero() {
		t.Fatalf("snapshot=%+v, unexpected", s)
	}
}

func TestManagerKeepsCacheOnFailure(t *testing.T) {
	src := &stubSource{values: []float64{500}}
	m := NewManager(src)
	ctx := context.Background()
	if _, err := m.Available(ctx); err != nil {
		t.Fatalf("Available: %v", err)
	}

	src.err = errors.New("timeout")
	if _, err := m.Available(ctx); err == nil {
		t.Fatalf("expected error")
	}
	if got := m.Snapshot().Available; got != 500 {
		t.Fatalf("cached=%v, expected 500", got)
	}
}

func TestDryRunManager(t *testing.T) {
	m := NewDryRunManager(10000)
	got, err := m.Available(context.Background())
	if err != nil || got != 10000 {
		t.Fatalf("Available=%v,%v, expected 10000", got, err)
	}
	if !m.Snapshot().DryRun {
		t.Fatalf("expected dry-run snapshot")
	}
}
