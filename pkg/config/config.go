package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the screener and the trader.
type Config struct {
	Port string

	// Instrument universe shared by both processes.
	Symbols []string

	Screening Screening
	Trading   Trading

	// Signal artifact
	SignalPath  string
	NATSURL     string
	NATSSubject string

	// Bybit (linear perpetuals)
	BybitAPIKey    string
	BybitAPISecret string
	BybitEnv       string // "mainnet", "testnet" or "demo"
	QuoteSource    string // "rest" (default), "stream" or "mock"

	// Recorder
	BarInterval time.Duration

	// Execution
	DryRun               bool
	DryRunInitialBalance float64

	// Database
	DBPath           string
	PersistPositions bool

	// Supervision
	ErrorRetryDelay time.Duration

	// Reconciliation of local pair positions against the venue
	Reconcile         bool
	ReconcileInterval time.Duration

	// API
	JWTSecret   string
	CORSOrigins []string
}

// Screening configures the cointegration screen.
type Screening struct {
	Window   int           `yaml:"window"`
	Interval time.Duration `yaml:"interval"`
}

// Trading configures entry sizing and the exit bracket.
type Trading struct {
	EntryThreshold float64       `yaml:"entry_threshold"`
	RiskFraction   float64       `yaml:"risk_fraction"`
	MinOrderValue  float64       `yaml:"min_order_value"`
	TakerFee       float64       `yaml:"taker_fee"`
	TakeProfit     float64       `yaml:"take_profit"`
	StopLoss       float64       `yaml:"stop_loss"`
	Interval       time.Duration `yaml:"interval"`
}

// Default returns the built-in settings used before the overlay file and environment apply.
func Default() *Config {
	return &Config{
		Port:    "8080",
		Symbols: []string{"DOGEUSDT", "FARTCOINUSDT", "PNUTUSDT", "POPCATUSDT", "WIFUSDT"},
		Screening: Screening{
			Window:   360,
			Interval: 5 * time.Minute,
		},
		Trading: Trading{
			EntryThreshold: 2.0,
			RiskFraction:   0.05,
			MinOrderValue:  5,
			TakerFee:       0.00055,
			TakeProfit:     0.5,
			StopLoss:       -0.3,
			Interval:       time.Second,
		},
		SignalPath:           "./data/cointegration_results.json",
		NATSSubject:          "pairs.signals",
		BybitEnv:             "demo",
		QuoteSource:          "rest",
		BarInterval:          10 * time.Second,
		DryRunInitialBalance: 10000,
		DBPath:               "./data/pairs.db",
		PersistPositions:     true,
		ErrorRetryDelay:      time.Second,
		Reconcile:            true,
		ReconcileInterval:    time.Minute,
	}
}

// Load reads the optional YAML overlay and environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := Default()
	if err := ApplyFile(cfg, getEnv("CONFIG_FILE", "pairs.yaml")); err != nil {
		return nil, err
	}
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	if v := os.Getenv("SYMBOLS"); v != "" {
		cfg.Symbols = splitAndTrim(v)
	}

	cfg.Screening.Window = getEnvInt("WINDOW_SIZE", cfg.Screening.Window)
	cfg.Screening.Interval = getEnvSeconds("COINTEGRATION_REFRESH_SECONDS", cfg.Screening.Interval)

	cfg.Trading.EntryThreshold = getEnvFloat("ENTRY_THRESHOLD", cfg.Trading.EntryThreshold)
	cfg.Trading.RiskFraction = getEnvFloat("RISK_PER_TRADE", cfg.Trading.RiskFraction)
	cfg.Trading.MinOrderValue = getEnvFloat("MIN_ORDER_VALUE", cfg.Trading.MinOrderValue)
	cfg.Trading.TakerFee = getEnvFloat("TRADING_TAKER_FEE", cfg.Trading.TakerFee)
	cfg.Trading.TakeProfit = getEnvFloat("TAKE_PROFIT", cfg.Trading.TakeProfit)
	cfg.Trading.StopLoss = getEnvFloat("STOP_LOSS", cfg.Trading.StopLoss)
	cfg.Trading.Interval = getEnvSeconds("TRADING_RUN_INTERVAL", cfg.Trading.Interval)

	cfg.SignalPath = getEnv("SIGNAL_PATH", cfg.SignalPath)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.NATSSubject = getEnv("NATS_SUBJECT", cfg.NATSSubject)

	cfg.BybitAPIKey = os.Getenv("BYBIT_API_KEY")
	cfg.BybitAPISecret = os.Getenv("BYBIT_API_SECRET")
	cfg.BybitEnv = strings.ToLower(getEnv("BYBIT_ENV", cfg.BybitEnv))
	cfg.QuoteSource = strings.ToLower(getEnv("QUOTE_SOURCE", cfg.QuoteSource))
	cfg.BarInterval = getEnvSeconds("BAR_INTERVAL_SECONDS", cfg.BarInterval)

	cfg.DryRun = getEnvBool("DRY_RUN", cfg.DryRun)
	cfg.DryRunInitialBalance = getEnvFloat("DRY_RUN_INITIAL_BALANCE", cfg.DryRunInitialBalance)

	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.PersistPositions = getEnvBool("PERSIST_POSITIONS", cfg.PersistPositions)
	cfg.ErrorRetryDelay = getEnvSeconds("ERROR_RETRY_DELAY", cfg.ErrorRetryDelay)
	cfg.Reconcile = getEnvBool("RECONCILE", cfg.Reconcile)
	cfg.ReconcileInterval = getEnvSeconds("RECONCILE_INTERVAL_SECONDS", cfg.ReconcileInterval)
	cfg.JWTSecret = getEnv("API_JWT_SECRET", cfg.JWTSecret)
	if v := os.Getenv("API_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	}
}

// Validate rejects settings the engines cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Symbols) < 2 {
		errs = append(errs, errors.New("at least two symbols are required"))
	}
	if c.Screening.Window < 30 {
		errs = append(errs, fmt.Errorf("window size %d too small (min 30)", c.Screening.Window))
	}
	if c.Screening.Interval <= 0 || c.Trading.Interval <= 0 {
		errs = append(errs, errors.New("cycle intervals must be positive"))
	}
	if c.Trading.EntryThreshold <= 0 {
		errs = append(errs, errors.New("entry threshold must be positive"))
	}
	if c.Trading.RiskFraction <= 0 || c.Trading.RiskFraction > 1 {
		errs = append(errs, fmt.Errorf("risk fraction %.4f outside (0, 1]", c.Trading.RiskFraction))
	}
	if c.Trading.TakerFee < 0 || c.Trading.MinOrderValue < 0 {
		errs = append(errs, errors.New("fee rate and minimum order value must be non-negative"))
	}
	if c.Trading.TakeProfit <= c.Trading.StopLoss {
		errs = append(errs, fmt.Errorf("take profit %.4f must exceed stop loss %.4f", c.Trading.TakeProfit, c.Trading.StopLoss))
	}
	switch c.BybitEnv {
	case "mainnet", "testnet", "demo":
	default:
		errs = append(errs, fmt.Errorf("unknown BYBIT_ENV %q", c.BybitEnv))
	}
	switch c.QuoteSource {
	case "rest", "stream":
	case "mock":
		if !c.DryRun {
			errs = append(errs, errors.New("QUOTE_SOURCE=mock requires DRY_RUN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown QUOTE_SOURCE %q", c.QuoteSource))
	}
	if c.BarInterval <= 0 {
		errs = append(errs, errors.New("bar interval must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, strings.ToUpper(t))
		}
	}
	return out
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvSeconds reads a (possibly fractional) number of seconds.
func getEnvSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return def
}
