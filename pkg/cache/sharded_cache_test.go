package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestQuoteCacheKeepsNewest(t *testing.T) {
	c := NewQuoteCache()
	t0 := time.Unix(1_700_000_000, 0)

	c.Set("DOGEUSDT", Quote{Price: 0.2, At: t0.Add(time.Second)})
	c.Set("DOGEUSDT", Quote{Price: 0.1, At: t0})
	q, ok := c.Get("DOGEUSDT")
	if !ok || q.Price != 0.2 {
		t.Fatalf("quote=%+v ok=%v, expected 0.2", q, ok)
	}

	c.Set("DOGEUSDT", Quote{Price: 0.3, At: t0.Add(time.Second)})
	if q, _ := c.Get("DOGEUSDT"); q.Price != 0.3 {
		t.Fatalf("price=%v, expected equal timestamp to overwrite", q.Price)
	}
	if _, ok := c.Get("WIFUSDT"); ok {
		t.Fatalf("expected miss for unknown symbol")
	}
}

func TestQuoteCachePrune(t *testing.T) {
	c := NewQuoteCache()
	t0 := time.Unix(1_700_000_000, 0)
	for i := 0; i < 40; i++ {
		at := t0.Add(time.Duration(i) * time.Second)
		c.Set(fmt.Sprintf("S%02dUSDT", i), Quote{Price: 1, At: at, Received: at})
	}
	if c.Len() != 40 {
		t.Fatalf("len=%d, expected 40", c.Len())
	}
	if n := c.Prune(t0.Add(10 * time.Second)); n != 10 {
		t.Fatalf("pruned=%d, expected 10", n)
	}
	if c.Len() != 30 {
		t.Fatalf("len=%d, expected 30", c.Len())
	}
}

func TestQuoteCacheConcurrent(t *testing.T) {
	c := NewQuoteCache()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				sym := fmt.Sprintf("S%dUSDT", i%10)
				c.Set(sym, Quote{Price: float64(w), At: time.Unix(int64(i), 0)})
				c.Get(sym)
			}
		}(w)
	}
	wg.Wait()
	if c.Len() != 10 {
		t.Fatalf("len=%d, expected 10", c.Len())
	}
}
