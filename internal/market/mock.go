package market

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"pairs-core/internal/events"
)

// MockQuotes is a seeded geometric random walk per symbol for offline dry runs.
// Every call to LastPrice advances that symbol's walk by one step.
type MockQuotes struct {
	Bus        *events.Bus
	StartPrice float64
	Step       float64 // log-return standard deviation per call

	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
}

// NewMockQuotes creates a mock source with a fixed seed.
func NewMockQuotes(seed int64, bus *events.Bus) *MockQuotes {
	return &MockQuotes{
		Bus:        bus,
		StartPrice: 1,
		Step:       0.001,
		rng:        rand.New(rand.NewSource(seed)),
		prices:     make(map[string]float64),
	}
}

// LastPrice implements PriceFetcher.
func (m *MockQuotes) LastPrice(ctx context.Context, symbol string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	p, ok := m.prices[symbol]
	if !ok {
		p = m.StartPrice
	}
	p *= math.Exp(m.rng.NormFloat64() * m.Step)
	m.prices[symbol] = p
	m.mu.Unlock()

	m.Bus.Publish(events.EventPriceTick, events.PriceTick{Symbol: symbol, Price: p})
	return p, nil
}
