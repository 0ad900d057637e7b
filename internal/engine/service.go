// Package engine holds the cycle supervisor shared by the screener and the
// trader, and the read-only service the status API is built on.
package engine

import (
	"context"
)

// Service is the read-only view the API layer uses. It never touches the
// trader's in-memory position store; positions come from the database mirror.
type Service interface {
	GetSignals(ctx context.Context) (*SignalSet, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetTrades(ctx context.Context, limit int) ([]Trade, error)
	GetTradeSummary(ctx context.Context, limit int) (*TradeSummary, error)
	GetScreenRuns(ctx context.Context, limit int) ([]ScreenRun, error)
	GetOrderLeg(ctx context.Context, id string) (*OrderLeg, error)
	GetMetrics(ctx context.Context) any
	GetSystemStatus(ctx context.Context) *SystemStatus
}
