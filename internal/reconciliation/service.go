// Package reconciliation compares the trader's pair positions with the net
// positions the venue reports and raises an alert when they drift apart.
package reconciliation

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"pairs-core/internal/events"
)

// Venue reports net position size per symbol, shorts negative.
type Venue interface {
	Positions(ctx context.Context) (map[string]float64, error)
}

// VenueFunc adapts a function to Venue.
type VenueFunc func(ctx context.Context) (map[string]float64, error)

func (f VenueFunc) Positions(ctx context.Context) (map[string]float64, error) { return f(ctx) }

// Exposure nets local positions per symbol. state.Store satisfies it.
type Exposure interface {
	Exposure() map[string]float64
}

// Report is the outcome of one comparison.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Diffs     []Diff    `json:"diffs"`
	HasDiffs  bool      `json:"has_diffs"`
}

// Diff is one symbol whose local and venue quantities disagree.
type Diff struct {
	Symbol     string  `json:"symbol"`
	LocalQty   float64 `json:"local_qty"`
	VenueQty   float64 `json:"venue_qty"`
	Difference float64 `json:"difference"`
}

func (r Report) String() string {
	parts := make([]string, 0, len(r.Diffs))
	for _, d := range r.Diffs {
		parts = append(parts, fmt.Sprintf("%s local=%.4f venue=%.4f", d.Symbol, d.LocalQty, d.VenueQty))
	}
	return "exposure drift: " + strings.Join(parts, "; ")
}

// Service periodically reconciles. It only reports: a drift usually means a
// leg failed half way and needs an operator.
type Service struct {
	venue     Venue
	local     Exposure
	bus       *events.Bus
	symbols   map[string]bool
	interval  time.Duration
	Tolerance float64

	mu  sync.Mutex
	now func() time.Time
}

// NewService creates a reconciler restricted to the traded universe, so
// unrelated holdings on the same account are ignored.
func NewService(venue Venue, local Exposure, bus *events.Bus, symbols []string, interval time.Duration) *Service {
	set := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		set[s] = true
	}
	return &Service{
		venue:     venue,
		local:     local,
		bus:       bus,
		symbols:   set,
		interval:  interval,
		Tolerance: 1e-4,
		now:       time.Now,
	}
}

// Start begins periodic reconciliation.
func (s *Service) Start(ctx context.Context) {
	if s.venue == nil || s.interval <= 0 {
		log.Println("reconciliation disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				report, err := s.Reconcile(ctx)
				if err != nil {
					log.Printf("❌ reconciliation error: %v", err)
					continue
				}
				s.handleReport(report)
			case <-ctx.Done():
				return
			}
		}
	}()
	log.Printf("✓ reconciliation started (interval: %v)", s.interval)
}

// Reconcile performs one comparison. Diffs are sorted by symbol.
func (s *Service) Reconcile(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	venuePos, err := s.venue.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("venue positions: %w", err)
	}
	localPos := s.local.Exposure()

	seen := make(map[string]bool, len(localPos)+len(venuePos))
	for sym := range localPos {
		seen[sym] = true
	}
	for sym := range venuePos {
		if s.symbols[sym] {
			seen[sym] = true
		}
	}

	report := &Report{Timestamp: s.now()}
	for sym := range seen {
		l, v := localPos[sym], venuePos[sym]
		if math.Abs(l-v) > s.Tolerance {
			report.Diffs = append(report.Diffs, Diff{Symbol: sym, LocalQty: l, VenueQty: v, Difference: l - v})
		}
	}
	sort.Slice(report.Diffs, func(i, j int) bool { return report.Diffs[i].Symbol < report.Diffs[j].Symbol })
	report.HasDiffs = len(report.Diffs) > 0
	return report, nil
}

func (s *Service) handleReport(report *Report) {
	if !report.HasDiffs {
		return
	}
	log.Printf("⚠️ reconciliation: position differences detected")
	for _, d := range report.Diffs {
		log.Printf("  %s: local=%.4f venue=%.4f diff=%.4f", d.Symbol, d.LocalQty, d.VenueQty, d.Difference)
	}
	s.bus.Publish(events.EventExposureDrift, *report)
}
