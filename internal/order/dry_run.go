package order

import (
	"context"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"pairs-core/pkg/exchanges/common"
)

// DryRunGateway accepts every order without touching a venue and keeps the
// resulting net quantity per symbol.
type DryRunGateway struct {
	mu        sync.Mutex
	positions map[string]float64
	orders    int

	latencyMin time.Duration
	latencyMax time.Duration
	rng        *rand.Rand
}

// NewDryRunGateway creates a simulated gateway. A positive latencyMax makes
// each order sleep a random duration in [latencyMin, latencyMax].
func NewDryRunGateway(latencyMin, latencyMax time.Duration) *DryRunGateway {
	if latencyMin > latencyMax {
		latencyMin, latencyMax = latencyMax, latencyMin
	}
	return &DryRunGateway{
		positions:  make(map[string]float64),
		latencyMin: latencyMin,
		latencyMax: latencyMax,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SubmitOrder records the order and acknowledges it.
func (d *DryRunGateway) SubmitOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if delay := d.delay(); delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return common.OrderResult{}, ctx.Err()
		}
	}

	d.mu.Lock()
	switch req.Side {
	case common.SideBuy:
		d.positions[req.Symbol] += req.Qty
	case common.SideSell:
		d.positions[req.Symbol] -= req.Qty
	}
	if d.positions[req.Symbol] == 0 {
		delete(d.positions, req.Symbol)
	}
	d.orders++
	net := d.positions[req.Symbol]
	d.mu.Unlock()

	log.Printf("🧪 DRY-RUN: %s %s qty=%.0f net=%.0f", req.Side, req.Symbol, req.Qty, net)
	return common.OrderResult{
		ExchangeOrderID: "dry-" + uuid.NewString(),
		ClientID:        req.ClientID,
		RetCode:         0,
		RetMsg:          "OK",
	}, nil
}

// Positions returns the simulated net quantity per symbol.
func (d *DryRunGateway) Positions() map[string]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]float64, len(d.positions))
	for k, v := range d.positions {
		out[k] = v
	}
	return out
}

// Orders returns how many orders were accepted.
func (d *DryRunGateway) Orders() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.orders
}

func (d *DryRunGateway) delay() time.Duration {
	if d.latencyMax <= 0 {
		return 0
	}
	span := d.latencyMax - d.latencyMin
	if span <= 0 {
		return d.latencyMin
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latencyMin + time.Duration(d.rng.Int63n(int64(span)+1))
}
