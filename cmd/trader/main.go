package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"pairs-core/internal/api"
	"pairs-core/internal/balance"
	"pairs-core/internal/engine"
	"pairs-core/internal/events"
	"pairs-core/internal/market"
	"pairs-core/internal/monitor"
	"pairs-core/internal/order"
	"pairs-core/internal/persistence"
	"pairs-core/internal/reconciliation"
	"pairs-core/internal/signal"
	"pairs-core/internal/state"
	"pairs-core/internal/trader"
	"pairs-core/pkg/config"
	"pairs-core/pkg/db"
	"pairs-core/pkg/exchanges/bybit"
	"pairs-core/pkg/exchanges/common"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}
	log.Printf("📦 database ready at %s", cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	metrics := monitor.NewSystemMetrics()
	mon := &monitor.Monitor{Bus: bus, Sink: monitor.LogSink{}}
	mon.Start(ctx)

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}

	client, err := bybit.NewClient(bybit.Config{
		APIKey:    cfg.BybitAPIKey,
		APISecret: cfg.BybitAPISecret,
		Env:       bybit.Env(cfg.BybitEnv),
	})
	if err != nil {
		log.Fatalf("bybit client: %v", err)
	}
	client.StartTimeSync(ctx)

	// Quotes
	var quotes trader.QuoteSource
	switch cfg.QuoteSource {
	case "stream":
		feed := market.NewFeed(market.NewStreamClient(market.PublicLinearURL(cfg.BybitEnv)), client, bus, cfg.Symbols)
		feed.Start(ctx)
		quotes = feed
		log.Printf("📈 quotes from ticker stream with REST fallback")
	case "mock":
		quotes = market.NewMockQuotes(time.Now().UnixNano(), bus)
		log.Printf("📈 quotes from mock random walk")
	default:
		quotes = client
		log.Printf("📈 quotes from REST tickers")
	}

	// Balance and execution venue
	var (
		balances  *balance.Manager
		gateway   common.Gateway
		positions reconciliation.Venue
		venue     string
	)
	if cfg.DryRun {
		balances = balance.NewDryRunManager(cfg.DryRunInitialBalance)
		dry := order.NewDryRunGateway(20*time.Millisecond, 80*time.Millisecond)
		gateway = dry
		positions = reconciliation.VenueFunc(func(ctx context.Context) (map[string]float64, error) {
			return dry.Positions(), nil
		})
		venue = "dry-run"
		log.Printf("🧪 DRY RUN: simulated fills, virtual balance %.2f USDT", cfg.DryRunInitialBalance)
	} else {
		balances = balance.NewManager(client)
		gateway = client
		positions = client
		venue = "bybit-" + cfg.BybitEnv
		log.Printf("💰 LIVE trading on %s", venue)
	}

	legWriter := persistence.NewBatchWriter(database.DB, 50, time.Second)
	defer func() {
		if err := legWriter.Close(); err != nil {
			log.Printf("⚠️ flush order legs on shutdown: %v", err)
		}
	}()
	executor := order.NewExecutor(gateway, legWriter, bus, metrics)

	var mirror state.Mirror
	if cfg.PersistPositions {
		mirror = database
	}
	store := state.NewStore(mirror)
	if err := store.Load(ctx); err != nil {
		log.Fatalf("restore positions: %v", err)
	}
	if store.Len() > 0 {
		log.Printf("♻️ restored %d open pair positions: %v", store.Len(), store.Keys())
	}
	metrics.SetOpenPositions(store.Len())

	// A dry run starts flat, so restored positions would always show as drift.
	if cfg.Reconcile && !(cfg.DryRun && store.Len() > 0) {
		reconciliation.NewService(positions, store, bus, cfg.Symbols, cfg.ReconcileInterval).Start(ctx)
	}

	signals := signal.NewFileReader(cfg.SignalPath)
	eng := trader.New(
		trader.ParamsFromConfig(cfg.Trading),
		signals,
		quotes,
		balances,
		executor,
		store,
		trader.WithTradeJournal(database),
		trader.WithBus(bus),
		trader.WithMetrics(metrics),
	)

	service := engine.NewImpl(engine.Config{
		Signals: signals,
		DB:      database,
		Metrics: metrics,
		Meta: engine.SystemStatus{
			DryRun:         cfg.DryRun,
			Venue:          venue,
			Symbols:        cfg.Symbols,
			QuoteSource:    cfg.QuoteSource,
			EntryThreshold: cfg.Trading.EntryThreshold,
			TakeProfit:     cfg.Trading.TakeProfit,
			StopLoss:       cfg.Trading.StopLoss,
			Version:        buildVersion,
		},
	})

	server := api.NewServer(api.Options{
		Bus:         bus,
		Service:     service,
		Metrics:     metrics,
		Balance:     balances,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	})
	go func() {
		if err := server.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server error: %v", err)
		}
	}()

	sup := engine.NewSupervisor("trader", cfg.Trading.Interval, cfg.ErrorRetryDelay)
	sup.OnResult = engine.Report("trader", bus, metrics)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx, eng.RunCycle)
	}()

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down trader")
	cancel()
	<-done

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ API shutdown: %v", err)
	}
}
