package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/sugawarayuuta/sonnet"

	"pairs-core/internal/signal"
	"pairs-core/pkg/config"
	"pairs-core/pkg/db"
	"pairs-core/pkg/exchanges/bybit"
)

type HealthStatus struct {
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type HealthReport struct {
	Overall  string         `json:"overall"`
	Services []HealthStatus `json:"services"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	fmt.Println("🏥 Pairs Health Check")
	fmt.Println("=====================")
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report := HealthReport{Overall: "HEALTHY"}

	cfg, status := checkConfig()
	report.Services = append(report.Services, status)
	if cfg != nil {
		report.Services = append(report.Services,
			checkDatabase(ctx, cfg),
			checkSignals(ctx, cfg),
			checkBybit(ctx, cfg),
			checkAPIServer(ctx, cfg),
		)
		if cfg.NATSURL != "" {
			report.Services = append(report.Services, checkNATS(cfg))
		}
	}

	for _, svc := range report.Services {
		if svc.Status == "UNHEALTHY" {
			report.Overall = "UNHEALTHY"
			break
		} else if svc.Status == "DEGRADED" {
			report.Overall = "DEGRADED"
		}
	}

	fmt.Println("Results:")
	fmt.Println("--------")
	for _, svc := range report.Services {
		statusIcon := "✓"
		if svc.Status == "UNHEALTHY" {
			statusIcon = "✗"
		} else if svc.Status == "DEGRADED" {
			statusIcon = "⚠"
		}
		fmt.Printf("%s %-16s %s %s\n", statusIcon, svc.Service, svc.Status, svc.Message)
	}
	fmt.Println()
	fmt.Printf("Overall Status: %s\n", report.Overall)

	if len(os.Args) > 1 && os.Args[1] == "--json" {
		if err := writeJSON(os.Stdout, report); err != nil {
			log.Printf("encode report: %v", err)
			os.Exit(1)
		}
	}
	if report.Overall == "UNHEALTHY" {
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, report HealthReport) error {
	data, err := sonnet.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func newStatus(service string) HealthStatus {
	return HealthStatus{Service: service, Status: "HEALTHY", Timestamp: time.Now()}
}

func checkConfig() (*config.Config, HealthStatus) {
	status := newStatus("Configuration")
	cfg, err := config.Load()
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Failed to load: %v", err)
		return nil, status
	}
	status.Message = fmt.Sprintf("%d symbols, window=%d, dry_run=%t", len(cfg.Symbols), cfg.Screening.Window, cfg.DryRun)
	return cfg, status
}

// checkDatabase also reports how many symbols already hold a full screening window.
func checkDatabase(ctx context.Context, cfg *config.Config) HealthStatus {
	status := newStatus("Database")
	database, err := db.New(cfg.DBPath)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Open failed: %v", err)
		return status
	}
	defer database.Close()
	if err := database.DB.PingContext(ctx); err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Ping failed: %v", err)
		return status
	}
	if err := db.ApplyMigrations(database); err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Schema: %v", err)
		return status
	}

	full := 0
	for _, sym := range cfg.Symbols {
		bars, err := database.RecentBars(ctx, sym, cfg.Screening.Window)
		if err != nil {
			status.Status = "UNHEALTHY"
			status.Message = fmt.Sprintf("Read bars for %s: %v", sym, err)
			return status
		}
		if len(bars) >= cfg.Screening.Window {
			full++
		}
	}
	if full < 2 {
		status.Status = "DEGRADED"
	}
	status.Message = fmt.Sprintf("%d/%d symbols hold a full window", full, len(cfg.Symbols))
	return status
}

func checkSignals(ctx context.Context, cfg *config.Config) HealthStatus {
	status := newStatus("Signal artifact")
	set, err := signal.NewFileReader(cfg.SignalPath).Load(ctx)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Unreadable: %v", err)
		return status
	}
	if set.PublishedAt.IsZero() {
		status.Status = "DEGRADED"
		status.Message = "Not published yet"
		return status
	}
	age := time.Since(set.PublishedAt).Round(time.Second)
	if age > 3*cfg.Screening.Interval {
		status.Status = "DEGRADED"
	}
	status.Message = fmt.Sprintf("%d pairs, published %s ago", len(set.Pairs), age)
	return status
}

func checkBybit(ctx context.Context, cfg *config.Config) HealthStatus {
	status := newStatus("Bybit API")
	client, err := bybit.NewClient(bybit.Config{
		APIKey:    cfg.BybitAPIKey,
		APISecret: cfg.BybitAPISecret,
		Env:       bybit.Env(cfg.BybitEnv),
	})
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = err.Error()
		return status
	}
	serverTime, err := client.GetServerTime(ctx)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Connection failed: %v", err)
		return status
	}
	if cfg.BybitAPIKey == "" && !cfg.DryRun {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("No API key configured (%s time=%d)", cfg.BybitEnv, serverTime)
		return status
	}
	status.Message = fmt.Sprintf("Connected to %s (time=%d)", cfg.BybitEnv, serverTime)
	return status
}

func checkAPIServer(ctx context.Context, cfg *config.Config) HealthStatus {
	status := newStatus("API Server")
	url := fmt.Sprintf("http://localhost:%s/health", cfg.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = err.Error()
		return status
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		status.Status = "UNHEALTHY"
		status.Message = fmt.Sprintf("Not reachable: %v", err)
		return status
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return status
	}
	status.Message = "Running"
	return status
}

func checkNATS(cfg *config.Config) HealthStatus {
	status := newStatus("NATS")
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("pairs-health-check"), nats.Timeout(5*time.Second))
	if err != nil {
		status.Status = "DEGRADED"
		status.Message = fmt.Sprintf("Not reachable: %v", err)
		return status
	}
	defer nc.Close()
	status.Message = fmt.Sprintf("Connected, subject=%s", cfg.NATSSubject)
	return status
}
