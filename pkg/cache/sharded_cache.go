package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// Quote is a cached last price. At is the venue timestamp and orders quotes;
// Received is the local arrival time and ages them.
type Quote struct {
	Price    float64
	At       time.Time
	Received time.Time
}

// QuoteCache holds the latest quote per symbol, sharded so stream writers and
// cycle readers rarely contend.
type QuoteCache struct {
	shards [numShards]*quoteShard
}

type quoteShard struct {
	mu    sync.RWMutex
	items map[string]Quote
}

func NewQuoteCache() *QuoteCache {
	c := &QuoteCache{}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &quoteShard{items: make(map[string]Quote)}
	}
	return c
}

func (c *QuoteCache) shard(symbol string) *quoteShard {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return c.shards[h.Sum32()%numShards]
}

// Set stores q unless a newer quote for symbol is already cached.
func (c *QuoteCache) Set(symbol string, q Quote) {
	s := c.shard(symbol)
	s.mu.Lock()
	if cur, ok := s.items[symbol]; !ok || !q.At.Before(cur.At) {
		s.items[symbol] = q
	}
	s.mu.Unlock()
}

func (c *QuoteCache) Get(symbol string) (Quote, bool) {
	s := c.shard(symbol)
	s.mu.RLock()
	q, ok := s.items[symbol]
	s.mu.RUnlock()
	return q, ok
}

// Len returns total items across all shards.
func (c *QuoteCache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

// Prune drops quotes received before cutoff and returns how many went.
func (c *QuoteCache) Prune(cutoff time.Time) int {
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		for sym, q := range s.items {
			if q.Received.Before(cutoff) {
				delete(s.items, sym)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
