package data

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"pairs-core/pkg/db"
)

var (
	// ErrShortWindow means fewer bars are stored than the window needs.
	ErrShortWindow = errors.New("not enough bars for window")
	// ErrInvalidSeries means the bars are out of order, duplicated or non-positive.
	ErrInvalidSeries = errors.New("invalid price series")
)

// BarStore is the read side of historical bar storage.
type BarStore interface {
	RecentBars(ctx context.Context, symbol string, limit int) ([]db.Bar, error)
}

// PriceSeries is a fixed window of closes, strictly ascending in time.
type PriceSeries struct {
	Symbol string
	Times  []time.Time
	Closes []float64
}

// Len returns the number of samples.
func (p PriceSeries) Len() int { return len(p.Closes) }

// LogCloses returns the natural log of each close.
func (p PriceSeries) LogCloses() []float64 {
	out := make([]float64, len(p.Closes))
	for i, c := range p.Closes {
		out[i] = math.Log(c)
	}
	return out
}

// Validate checks ordering, uniqueness and positivity.
func (p PriceSeries) Validate() error {
	if len(p.Times) != len(p.Closes) {
		return fmt.Errorf("%w: %s has %d times for %d closes", ErrInvalidSeries, p.Symbol, len(p.Times), len(p.Closes))
	}
	for i, c := range p.Closes {
		if !(c > 0) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: %s close %v at %d", ErrInvalidSeries, p.Symbol, c, i)
		}
		if i > 0 && !p.Times[i].After(p.Times[i-1]) {
			return fmt.Errorf("%w: %s not strictly ascending at %d", ErrInvalidSeries, p.Symbol, i)
		}
	}
	return nil
}

// HistoricalDataService loads price windows from bar storage.
type HistoricalDataService struct {
	store BarStore
}

// NewHistoricalDataService creates a new service instance.
func NewHistoricalDataService(store BarStore) *HistoricalDataService {
	return &HistoricalDataService{store: store}
}

// Window returns the most recent size bars of symbol. Storage failures are
// returned as is; short or malformed windows wrap ErrShortWindow or ErrInvalidSeries.
func (s *HistoricalDataService) Window(ctx context.Context, symbol string, size int) (PriceSeries, error) {
	bars, err := s.store.RecentBars(ctx, symbol, size)
	if err != nil {
		return PriceSeries{}, fmt.Errorf("load %s bars: %w", symbol, err)
	}
	if len(bars) < size {
		return PriceSeries{}, fmt.Errorf("%w: %s has %d of %d", ErrShortWindow, symbol, len(bars), size)
	}

	series := PriceSeries{
		Symbol: symbol,
		Times:  make([]time.Time, 0, len(bars)),
		Closes: make([]float64, 0, len(bars)),
	}
	for _, b := range bars {
		series.Times = append(series.Times, b.Time)
		series.Closes = append(series.Closes, b.Close)
	}
	if err := series.Validate(); err != nil {
		return PriceSeries{}, err
	}
	return series, nil
}

// IsDataError reports whether err describes the series rather than storage.
func IsDataError(err error) bool {
	return errors.Is(err, ErrShortWindow) || errors.Is(err, ErrInvalidSeries)
}
