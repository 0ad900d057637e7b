package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pairs-core/internal/engine"
	"pairs-core/internal/monitor"
)

type listQuery struct {
	Limit int `form:"limit"`
}

func (q *listQuery) normalize(def, max int) {
	if q.Limit <= 0 {
		q.Limit = def
	}
	if q.Limit > max {
		q.Limit = max
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

func bindLimit(c *gin.Context, def, max int) (int, bool) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return 0, false
	}
	q.normalize(def, max)
	c.Header("X-Result-Limit", strconv.Itoa(q.Limit))
	return q.Limit, true
}

// getSignals returns the currently published pairs.
func (s *Server) getSignals(c *gin.Context) {
	set, err := s.Service.GetSignals(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusServiceUnavailable, "SIGNALS_UNAVAILABLE", err.Error())
		return
	}
	c.JSON(http.StatusOK, set)
}

// getPositions returns open pair positions as mirrored in the database.
func (s *Server) getPositions(c *gin.Context) {
	positions, err := s.Service.GetPositions(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, positions)
}

func (s *Server) getTrades(c *gin.Context) {
	limit, ok := bindLimit(c, 100, 500)
	if !ok {
		return
	}
	trades, err := s.Service.GetTrades(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) getTradeSummary(c *gin.Context) {
	limit, ok := bindLimit(c, 500, 5000)
	if !ok {
		return
	}
	sum, err := s.Service.GetTradeSummary(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) getScreenRuns(c *gin.Context) {
	limit, ok := bindLimit(c, 50, 200)
	if !ok {
		return
	}
	runs, err := s.Service.GetScreenRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) getOrderLeg(c *gin.Context) {
	leg, err := s.Service.GetOrderLeg(c.Request.Context(), c.Param("id"))
	if errors.Is(err, engine.ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "order leg not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusOK, leg)
}

func (s *Server) getBalance(c *gin.Context) {
	if s.Balance == nil {
		respondError(c, http.StatusServiceUnavailable, "BALANCE_UNAVAILABLE", "balance not available")
		return
	}
	c.JSON(http.StatusOK, s.Balance.Snapshot())
}

// getSystemStatus exposes runtime mode and trading parameters.
func (s *Server) getSystemStatus(c *gin.Context) {
	status := s.Service.GetSystemStatus(c.Request.Context())
	mode := "LIVE"
	if status.DryRun {
		mode = "DRY_RUN"
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":   mode,
		"status": status,
	})
}

// getMetrics returns loop throughput and latency.
func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		respondError(c, http.StatusServiceUnavailable, "METRICS_UNAVAILABLE", "metrics not available")
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

// getPromMetrics returns a minimal Prometheus text exposition of key metrics.
func (s *Server) getPromMetrics(c *gin.Context) {
	if s.Metrics == nil {
		c.String(http.StatusServiceUnavailable, "# metrics not available\n")
		return
	}
	snapshot := s.Metrics.GetSnapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "pairs_cycles_total %d\n", snapshot.Cycles)
	fmt.Fprintf(&b, "pairs_cycle_failures_total %d\n", snapshot.CycleFailures)
	fmt.Fprintf(&b, "pairs_entries_total %d\n", snapshot.Entries)
	fmt.Fprintf(&b, "pairs_exits_total %d\n", snapshot.Exits)
	fmt.Fprintf(&b, "pairs_leg_failures_total %d\n", snapshot.LegFailures)
	fmt.Fprintf(&b, "pairs_skipped_entries_total %d\n", snapshot.SkippedEntries)
	fmt.Fprintf(&b, "pairs_screens_total %d\n", snapshot.Screens)

	writeLatency := func(prefix string, ls monitor.LatencyStats) {
		if ls.Count == 0 {
			return
		}
		fmt.Fprintf(&b, "pairs_%s_latency_ms_avg %f\n", prefix, ls.Avg)
		fmt.Fprintf(&b, "pairs_%s_latency_ms_p50 %f\n", prefix, ls.P50)
		fmt.Fprintf(&b, "pairs_%s_latency_ms_p95 %f\n", prefix, ls.P95)
		fmt.Fprintf(&b, "pairs_%s_latency_ms_p99 %f\n", prefix, ls.P99)
	}
	writeLatency("cycle", snapshot.CycleLatency)
	writeLatency("order", snapshot.OrderLatency)
	writeLatency("screen", snapshot.ScreenLatency)

	fmt.Fprintf(&b, "pairs_open_positions %d\n", snapshot.OpenPositions)
	fmt.Fprintf(&b, "pairs_last_accepted_pairs %d\n", snapshot.LastAccepted)
	fmt.Fprintf(&b, "pairs_goroutines %d\n", snapshot.GoroutineCount)
	fmt.Fprintf(&b, "pairs_heap_alloc_bytes %d\n", snapshot.HeapAlloc)

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, b.String())
}
