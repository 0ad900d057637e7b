// Package api serves the trader's read-only status API and event stream.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"pairs-core/internal/balance"
	"pairs-core/internal/engine"
	"pairs-core/internal/events"
	"pairs-core/internal/monitor"
)

// BalanceReader exposes the last known balance.
type BalanceReader interface {
	Snapshot() balance.Snapshot
}

// Server wires HTTP endpoints around the engine service and the event bus.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	Service   engine.Service
	Metrics   *monitor.SystemMetrics
	Balance   BalanceReader
	JWTSecret string

	limiter *ipLimiter
	handler http.Handler
	httpSrv *http.Server
}

// Options holds the collaborators of a Server. Bus, Metrics and Balance may be nil.
type Options struct {
	Bus       *events.Bus
	Service   engine.Service
	Metrics   *monitor.SystemMetrics
	Balance   BalanceReader
	JWTSecret string
	Timeout   time.Duration
	// CORSOrigins defaults to any origin.
	CORSOrigins []string
}

func NewServer(opts Options) *Server {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	r := gin.New()
	s := &Server{
		Router:    r,
		Bus:       opts.Bus,
		Service:   opts.Service,
		Metrics:   opts.Metrics,
		Balance:   opts.Balance,
		JWTSecret: opts.JWTSecret,
		limiter:   newIPLimiter(20, 50),
	}

	// Order matters.
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware(s.limiter))
	r.Use(TimeoutMiddleware(opts.Timeout))

	s.routes()
	s.handler = cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID", "Cache-Control"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         3600,
	}).Handler(r)
	return s
}

// Handler is the router wrapped with CORS handling.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", s.getPromMetrics)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	api.Use(AuthMiddleware(s.JWTSecret))
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/metrics", s.getMetrics)
		api.GET("/signals", s.getSignals)
		api.GET("/positions", s.getPositions)
		api.GET("/trades", s.getTrades)
		api.GET("/trades/summary", s.getTradeSummary)
		api.GET("/screens", s.getScreenRuns)
		api.GET("/legs/:id", s.getOrderLeg)
		api.GET("/balance", s.getBalance)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start serves until Shutdown. It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
