package main

import (
	"context"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"pairs-core/internal/data"
	"pairs-core/internal/engine"
	"pairs-core/internal/events"
	"pairs-core/internal/monitor"
	"pairs-core/internal/screener"
	"pairs-core/internal/signal"
	"pairs-core/pkg/config"
	"pairs-core/pkg/db"
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

	bus := events.NewBus()
	metrics := monitor.NewSystemMetrics()
	mon := &monitor.Monitor{Bus: bus, Sink: monitor.LogSink{}}

	publisher := signal.Fanout{Primary: signal.NewFilePublisher(cfg.SignalPath)}
	if cfg.NATSURL != "" {
		nb, err := signal.NewNATSBroadcaster(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			log.Printf("⚠️ NATS disabled: %v", err)
		} else {
			defer nb.Close()
			publisher.Mirrors = append(publisher.Mirrors, nb)
			log.Printf("📡 signal sets mirrored to %s on %s", cfg.NATSURL, cfg.NATSSubject)
		}
	}

	eng := screener.New(
		cfg.Symbols,
		cfg.Screening.Window,
		data.NewHistoricalDataService(database),
		publisher,
		screener.WithJournal(database),
		screener.WithBus(bus),
		screener.WithMetrics(metrics),
	)
	log.Printf("🔎 screening %d symbols over %d bars every %s, signals at %s",
		len(eng.Symbols), eng.Window, cfg.Screening.Interval, cfg.SignalPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mon.Start(ctx)

	sup := engine.NewSupervisor("screener", cfg.Screening.Interval, cfg.ErrorRetryDelay)
	sup.OnResult = engine.Report("screener", bus, metrics)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx, eng.RunCycle)
	}()

	sigChan := make(chan os.Signal, 1)
	ossignal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down screener")
	cancel()
	<-done
}
