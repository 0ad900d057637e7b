package common

import (
	"context"
	"log"
	"sync"
	"time"
)

// TimeSync tracks the offset between the local clock and the venue's clock so
// signed requests stay inside the receive window.
type TimeSync struct {
	serverTime   func(ctx context.Context) (int64, error)
	offset       int64 // ms, server - local
	lastSync     time.Time
	syncInterval time.Duration
	mu           sync.RWMutex
}

// NewTimeSync creates a time synchronization manager.
func NewTimeSync(serverTime func(ctx context.Context) (int64, error)) *TimeSync {
	return &TimeSync{
		serverTime:   serverTime,
		syncInterval: 30 * time.Minute,
	}
}

// Start syncs once and then keeps resyncing until ctx is done.
func (ts *TimeSync) Start(ctx context.Context) {
	if err := ts.Sync(ctx); err != nil {
		log.Printf("initial time sync failed: %v", err)
	}

	go func() {
		ticker := time.NewTicker(ts.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := ts.Sync(ctx); err != nil {
					log.Printf("time sync failed: %v", err)
				}
			}
		}
	}()
}

// Sync measures the offset once, assuming symmetric latency.
func (ts *TimeSync) Sync(ctx context.Context) error {
	before := time.Now().UnixMilli()
	server, err := ts.serverTime(ctx)
	if err != nil {
		return err
	}
	after := time.Now().UnixMilli()
	local := before + (after-before)/2

	ts.mu.Lock()
	ts.offset = server - local
	ts.lastSync = time.Now()
	ts.mu.Unlock()

	log.Printf("time sync: offset=%dms", server-local)
	return nil
}

// Now returns the current time in ms adjusted for the server offset.
func (ts *TimeSync) Now() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return time.Now().UnixMilli() + ts.offset
}

// Offset returns the current offset in ms.
func (ts *TimeSync) Offset() int64 {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.offset
}
