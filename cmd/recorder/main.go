package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pairs-core/internal/market"
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

	wsURL := market.PublicLinearURL(cfg.BybitEnv)
	rec := market.NewRecorder(market.NewStreamClient(wsURL), database, cfg.BarInterval, cfg.Symbols)
	log.Printf("🎙️ recording %s bars for %d symbols from %s into %s", cfg.BarInterval, len(cfg.Symbols), wsURL, cfg.DBPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		rec.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down recorder")
	cancel()
	<-done
}
