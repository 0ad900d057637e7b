// Package signal defines the published set of cointegrated pairs and the
// atomic hand-off between the screener and the trader.
package signal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"
)

var ErrInvalidPair = errors.New("invalid pair")

// Pair is one cointegrated relationship. Y is always the lexicographically
// smaller symbol and is regressed on X in log-price space.
type Pair struct {
	Y          string  `json:"y"`
	X          string  `json:"x"`
	HedgeRatio float64 `json:"hedge_ratio"`
	MeanSpread float64 `json:"mean_spread"`
	StdSpread  float64 `json:"std_spread"`
}

// Name formats the pair as Y/X.
func (p Pair) Name() string { return p.Y + "/" + p.X }

// Validate enforces role ordering and a usable spread distribution.
func (p Pair) Validate() error {
	switch {
	case p.Y == "" || p.X == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidPair)
	case p.Y >= p.X:
		return fmt.Errorf("%w: %s must sort before %s", ErrInvalidPair, p.Y, p.X)
	case !(p.StdSpread > 0) || math.IsInf(p.StdSpread, 0):
		return fmt.Errorf("%w: %s std_spread %v", ErrInvalidPair, p.Name(), p.StdSpread)
	case math.IsNaN(p.HedgeRatio) || math.IsInf(p.HedgeRatio, 0) ||
		math.IsNaN(p.MeanSpread) || math.IsInf(p.MeanSpread, 0):
		return fmt.Errorf("%w: %s non-finite statistics", ErrInvalidPair, p.Name())
	}
	return nil
}

// Set is everything one screening cycle accepted. PublishedAt comes from the
// artifact's modification time when read back.
type Set struct {
	Pairs       []Pair
	PublishedAt time.Time
}

// Publisher makes a Set visible to consumers.
type Publisher interface {
	Publish(ctx context.Context, set Set) error
}

// Source loads the currently published Set.
type Source interface {
	Load(ctx context.Context) (Set, error)
}

// Fanout publishes to a primary publisher and then, best effort, to mirrors.
// Only a primary failure is returned.
type Fanout struct {
	Primary Publisher
	Mirrors []Publisher
}

func (f Fanout) Publish(ctx context.Context, set Set) error {
	if err := f.Primary.Publish(ctx, set); err != nil {
		return err
	}
	for _, m := range f.Mirrors {
		if err := m.Publish(ctx, set); err != nil {
			log.Printf("⚠️ signal mirror publish failed: %v", err)
		}
	}
	return nil
}
