package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks loop throughput and latency for both engines.
type SystemMetrics struct {
	CycleLatency  *LatencyHistogram
	OrderLatency  *LatencyHistogram
	ScreenLatency *LatencyHistogram

	cycles      uint64
	failures    uint64
	entries     uint64
	exits       uint64
	legFailures uint64
	skipped     uint64
	screens     uint64

	mu             sync.RWMutex
	lastAccepted   int
	openPositions  int
	lastCycleError string
	started        time.Time
}

// NewSystemMetrics creates a new metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		CycleLatency:  NewLatencyHistogram(1000),
		OrderLatency:  NewLatencyHistogram(1000),
		ScreenLatency: NewLatencyHistogram(100),
		started:       time.Now(),
	}
}

// LatencyHistogram keeps the most recent samples in a ring.
type LatencyHistogram struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
	dirty   bool
	cached  LatencyStats
}

// NewLatencyHistogram creates a ring of the given size.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{samples: make([]float64, size), dirty: true}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples[h.next] = latencyMs
	h.next++
	if h.next == len(h.samples) {
		h.next = 0
		h.full = true
	}
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg and percentiles, recomputed only after new samples.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty {
		return h.cached
	}
	n := h.next
	if h.full {
		n = len(h.samples)
	}
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples[:n])
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	h.cached = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n-1)*0.95)],
		P99:   sorted[int(float64(n-1)*0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cached
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

func (m *SystemMetrics) IncrementCycles()      { atomic.AddUint64(&m.cycles, 1) }
func (m *SystemMetrics) IncrementEntries()     { atomic.AddUint64(&m.entries, 1) }
func (m *SystemMetrics) IncrementExits()       { atomic.AddUint64(&m.exits, 1) }
func (m *SystemMetrics) IncrementLegFailures() { atomic.AddUint64(&m.legFailures, 1) }
func (m *SystemMetrics) IncrementSkipped()     { atomic.AddUint64(&m.skipped, 1) }

// RecordFailure counts a failed cycle and remembers its error text.
func (m *SystemMetrics) RecordFailure(err error) {
	atomic.AddUint64(&m.failures, 1)
	if err == nil {
		return
	}
	m.mu.Lock()
	m.lastCycleError = err.Error()
	m.mu.Unlock()
}

// RecordScreen counts a finished screening cycle.
func (m *SystemMetrics) RecordScreen(accepted int, took time.Duration) {
	atomic.AddUint64(&m.screens, 1)
	m.ScreenLatency.RecordDuration(took)
	m.mu.Lock()
	m.lastAccepted = accepted
	m.mu.Unlock()
}

// SetOpenPositions records the store size after a trading cycle.
func (m *SystemMetrics) SetOpenPositions(n int) {
	m.mu.Lock()
	m.openPositions = n
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time view for the API.
type MetricsSnapshot struct {
	CycleLatency   LatencyStats `json:"cycle_latency"`
	OrderLatency   LatencyStats `json:"order_latency"`
	ScreenLatency  LatencyStats `json:"screen_latency"`
	Cycles         uint64       `json:"cycles"`
	CycleFailures  uint64       `json:"cycle_failures"`
	Entries        uint64       `json:"entries"`
	Exits          uint64       `json:"exits"`
	LegFailures    uint64       `json:"leg_failures"`
	SkippedEntries uint64       `json:"skipped_entries"`
	Screens        uint64       `json:"screens"`
	LastAccepted   int          `json:"last_accepted_pairs"`
	OpenPositions  int          `json:"open_positions"`
	LastCycleError string       `json:"last_cycle_error,omitempty"`
	GoroutineCount int          `json:"goroutine_count"`
	HeapAlloc      uint64       `json:"heap_alloc_bytes"`
	Uptime         string       `json:"uptime"`
	Timestamp      time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.mu.RLock()
	accepted, open, lastErr, started := m.lastAccepted, m.openPositions, m.lastCycleError, m.started
	m.mu.RUnlock()

	return MetricsSnapshot{
		CycleLatency:   m.CycleLatency.Stats(),
		OrderLatency:   m.OrderLatency.Stats(),
		ScreenLatency:  m.ScreenLatency.Stats(),
		Cycles:         atomic.LoadUint64(&m.cycles),
		CycleFailures:  atomic.LoadUint64(&m.failures),
		Entries:        atomic.LoadUint64(&m.entries),
		Exits:          atomic.LoadUint64(&m.exits),
		LegFailures:    atomic.LoadUint64(&m.legFailures),
		SkippedEntries: atomic.LoadUint64(&m.skipped),
		Screens:        atomic.LoadUint64(&m.screens),
		LastAccepted:   accepted,
		OpenPositions:  open,
		LastCycleError: lastErr,
		GoroutineCount: runtime.NumGoroutine(),
		HeapAlloc:      memStats.HeapAlloc,
		Uptime:         time.Since(started).Truncate(time.Second).String(),
		Timestamp:      time.Now(),
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{start: time.Now(), histogram: h}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
