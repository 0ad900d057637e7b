// Package state holds the trader's open pair positions.
package state

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"pairs-core/pkg/db"
)

// Mirror persists positions so a restarted trader can resume them.
type Mirror interface {
	ListPairPositions(ctx context.Context) ([]db.PairPosition, error)
	UpsertPairPosition(ctx context.Context, p db.PairPosition) error
	DeletePairPosition(ctx context.Context, y, x string) error
}

// Store keeps one position per pair key. Only the trading loop writes it;
// readers such as reconciliation may run concurrently. The in-memory map is
// authoritative and the mirror is written through on every change.
type Store struct {
	mu        sync.RWMutex
	positions map[PairKey]Position
	mirror    Mirror
}

// NewStore creates an empty store. mirror may be nil.
func NewStore(mirror Mirror) *Store {
	return &Store{
		positions: make(map[PairKey]Position),
		mirror:    mirror,
	}
}

// Load seeds the store from the mirror on startup.
func (s *Store) Load(ctx context.Context) error {
	if s.mirror == nil {
		return nil
	}
	rows, err := s.mirror.ListPairPositions(ctx)
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		p, err := fromRow(r)
		if err != nil {
			log.Printf("⚠️ skipping stored position %s/%s: %v", r.Y, r.X, err)
			continue
		}
		s.positions[p.Key] = p
	}
	return nil
}

// Get returns the position for key, if open.
func (s *Store) Get(key PairKey) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[key]
	return p, ok
}

// Has reports whether key is open.
func (s *Store) Has(key PairKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.positions[key]
	return ok
}

// Put opens a position. The memory map is updated even if the mirror write
// fails; the mirror error is returned for logging.
func (s *Store) Put(ctx context.Context, p Position) error {
	s.mu.Lock()
	s.positions[p.Key] = p
	s.mu.Unlock()
	if s.mirror == nil {
		return nil
	}
	if err := s.mirror.UpsertPairPosition(ctx, toRow(p)); err != nil {
		return fmt.Errorf("mirror position %s: %w", p.Key, err)
	}
	return nil
}

// Delete closes the position for key.
func (s *Store) Delete(ctx context.Context, key PairKey) error {
	s.mu.Lock()
	delete(s.positions, key)
	s.mu.Unlock()
	if s.mirror == nil {
		return nil
	}
	if err := s.mirror.DeletePairPosition(ctx, key.Y, key.X); err != nil {
		return fmt.Errorf("unmirror position %s: %w", key, err)
	}
	return nil
}

// Keys returns the open keys in Y, X order.
func (s *Store) Keys() []PairKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]PairKey, 0, len(s.positions))
	for k := range s.positions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Len returns the number of open positions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// Exposure nets every open position into a signed quantity per symbol.
// Long spread holds +QtyY of Y and -QtyX of X; short spread the reverse.
func (s *Store) Exposure() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64)
	for _, p := range s.positions {
		sign := 1.0
		if p.Direction == ShortSpread {
			sign = -1
		}
		out[p.Key.Y] += sign * p.QtyY
		out[p.Key.X] -= sign * p.QtyX
	}
	return out
}

func toRow(p Position) db.PairPosition {
	return db.PairPosition{
		Y:          p.Key.Y,
		X:          p.Key.X,
		Direction:  p.Direction.String(),
		QtyY:       p.QtyY,
		QtyX:       p.QtyX,
		PriceY:     p.PriceY,
		PriceX:     p.PriceX,
		EntryTime:  p.EntryTime,
		HedgeRatio: p.HedgeRatio,
		MeanSpread: p.MeanSpread,
		StdSpread:  p.StdSpread,
	}
}

func fromRow(r db.PairPosition) (Position, error) {
	dir, err := ParseDirection(r.Direction)
	if err != nil {
		return Position{}, err
	}
	return Position{
		Key:        PairKey{Y: r.Y, X: r.X},
		Direction:  dir,
		QtyY:       r.QtyY,
		QtyX:       r.QtyX,
		PriceY:     r.PriceY,
		PriceX:     r.PriceX,
		EntryTime:  r.EntryTime,
		HedgeRatio: r.HedgeRatio,
		MeanSpread: r.MeanSpread,
		StdSpread:  r.StdSpread,
	}, nil
}
