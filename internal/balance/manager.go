// Package balance serves the account balance used for position sizing.
package balance

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Source reports the account's available balance.
type Source interface {
	AvailableBalance(ctx context.Context) (float64, error)
}

// Snapshot is the last known balance.
type Snapshot struct {
	Available float64   `json:"available"`
	LastSync  time.Time `json:"last_sync"`
	DryRun    bool      `json:"dry_run"`
}

// Manager reads the balance from a source on every call. Without a source it
// serves a fixed dry-run balance.
type Manager struct {
	source Source

	mu        sync.RWMutex
	available float64
	lastSync  time.Time
}

// NewManager creates a manager over a live source.
func NewManager(source Source) *Manager {
	return &Manager{source: source}
}

// NewDryRunManager creates a manager that always reports initial.
func NewDryRunManager(initial float64) *Manager {
	m := &Manager{}
	m.SetInitialBalance(initial)
	return m
}

// Available fetches the current available balance. A failed fetch is returned
// as an error and the cached value is left alone.
func (m *Manager) Available(ctx context.Context) (float64, error) {
	if m.source == nil {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.available, nil
	}

	bal, err := m.source.AvailableBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch balance: %w", err)
	}

	m.mu.Lock()
	m.available = bal
	m.lastSync = time.Now()
	m.mu.Unlock()
	return bal, nil
}

// Snapshot returns the last fetched balance without calling the source.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{Available: m.available, LastSync: m.lastSync, DryRun: m.source == nil}
}

// SetInitialBalance sets the dry-run balance.
func (m *Manager) SetInitialBalance(amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = amount
	m.lastSync = time.Now()
	log.Printf("💰 Initial balance set: %.2f", amount)
}
