package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Screening.Window != 360 {
		t.Fatalf("Window=%d, expected 360", cfg.Screening.Window)
	}
	if cfg.Trading.TakeProfit != 0.5 || cfg.Trading.StopLoss != -0.3 {
		t.Fatalf("bracket=(%v,%v), expected (0.5,-0.3)", cfg.Trading.TakeProfit, cfg.Trading.StopLoss)
	}
	if !cfg.PersistPositions {
		t.Fatalf("PersistPositions=false, expected true")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pairs.yaml")
	overlay := `
symbols: [wifusdt, dogeusdt, " pnutusdt "]
screening:
  window: 120
  interval: 2m
trading:
  entry_threshold: 1.5
  take_profit: 1.0
  interval: 3s
`
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ENTRY_THRESHOLD", "2.5")
	t.Setenv("TRADING_RUN_INTERVAL", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	want := []string{"WIFUSDT", "DOGEUSDT", "PNUTUSDT"}
	if len(cfg.Symbols) != len(want) {
		t.Fatalf("Symbols=%v, expected %v", cfg.Symbols, want)
	}
	for i := range want {
		if cfg.Symbols[i] != want[i] {
			t.Fatalf("Symbols=%v, expected %v", cfg.Symbols, want)
		}
	}
	if cfg.Screening.Window != 120 {
		t.Fatalf("Window=%d, expected 120", cfg.Screening.Window)
	}
	if cfg.Screening.Interval != 2*time.Minute {
		t.Fatalf("Screening.Interval=%v, expected 2m", cfg.Screening.Interval)
	}
	if cfg.Trading.EntryThreshold != 2.5 {
		t.Fatalf("EntryThreshold=%v, expected env value 2.5", cfg.Trading.EntryThreshold)
	}
	if cfg.Trading.TakeProfit != 1.0 {
		t.Fatalf("TakeProfit=%v, expected 1.0", cfg.Trading.TakeProfit)
	}
	if cfg.Trading.Interval != 500*time.Millisecond {
		t.Fatalf("Trading.Interval=%v, expected 500ms", cfg.Trading.Interval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"single symbol", func(c *Config) { c.Symbols = []string{"DOGEUSDT"} }},
		{"tiny window", func(c *Config) { c.Screening.Window = 10 }},
		{"inverted bracket", func(c *Config) { c.Trading.TakeProfit = -0.5 }},
		{"risk above one", func(c *Config) { c.Trading.RiskFraction = 1.5 }},
		{"negative fee", func(c *Config) { c.Trading.TakerFee = -0.001 }},
		{"unknown venue", func(c *Config) { c.BybitEnv = "paper" }},
		{"unknown quote source", func(c *Config) { c.QuoteSource = "grpc" }},
		{"mock quotes on live account", func(c *Config) { c.QuoteSource = "mock" }},
		{"zero bar interval", func(c *Config) { c.BarInterval = 0 }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestTOMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.toml")
	overlay := `
symbols = ["adausdt", "xrpusdt"]

[screening]
window = 240
interval_secs = 90.0

[trading]
stop_loss = -0.5
interval_secs = 2.5
`
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	cfg := Default()
	if err := ApplyFile(cfg, path); err != nil {
		t.Fatalf("ApplyFile: %v", err)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[0] != "ADAUSDT" || cfg.Symbols[1] != "XRPUSDT" {
		t.Fatalf("Symbols=%v, expected [ADAUSDT XRPUSDT]", cfg.Symbols)
	}
	if cfg.Screening.Window != 240 || cfg.Screening.Interval != 90*time.Second {
		t.Fatalf("Screening=%+v, expected window 240 every 90s", cfg.Screening)
	}
	if cfg.Trading.StopLoss != -0.5 || cfg.Trading.Interval != 2500*time.Millisecond {
		t.Fatalf("Trading stop_loss=%v interval=%v, expected -0.5 and 2.5s", cfg.Trading.StopLoss, cfg.Trading.Interval)
	}
	if cfg.Trading.TakeProfit != 0.5 {
		t.Fatalf("TakeProfit=%v, expected default 0.5", cfg.Trading.TakeProfit)
	}
}

func TestTOMLOverlayParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("symbols = [\n"), 0o644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	if err := ApplyFile(Default(), path); err == nil {
		t.Fatalf("expected parse error")
	}
}
