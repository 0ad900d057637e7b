package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File represents the top-level YAML overlay structure.
type File struct {
	Symbols   []string   `yaml:"symbols"`
	Screening *Screening `yaml:"screening"`
	Trading   *Trading   `yaml:"trading"`
}

// tomlFile is the TOML spelling of File. Intervals are seconds.
type tomlFile struct {
	Symbols   []string `toml:"symbols"`
	Screening *struct {
		Window       int     `toml:"window"`
		IntervalSecs float64 `toml:"interval_secs"`
	} `toml:"screening"`
	Trading *struct {
		EntryThreshold float64 `toml:"entry_threshold"`
		RiskFraction   float64 `toml:"risk_fraction"`
		MinOrderValue  float64 `toml:"min_order_value"`
		TakerFee       float64 `toml:"taker_fee"`
		TakeProfit     float64 `toml:"take_profit"`
		StopLoss       float64 `toml:"stop_loss"`
		IntervalSecs   float64 `toml:"interval_secs"`
	} `toml:"trading"`
}

// ApplyFile merges non-zero values from a YAML or, for a .toml path, TOML
// overlay into cfg. A missing file is not an error.
func ApplyFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return applyTOML(cfg, data)
	}
	return applyYAML(cfg, data)
}

func applyYAML(cfg *Config, data []byte) error {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	merge(cfg, file)
	return nil
}

func applyTOML(cfg *Config, data []byte) error {
	var tf tomlFile
	if err := toml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	file := File{Symbols: tf.Symbols}
	if s := tf.Screening; s != nil {
		file.Screening = &Screening{Window: s.Window, Interval: seconds(s.IntervalSecs)}
	}
	if t := tf.Trading; t != nil {
		file.Trading = &Trading{
			EntryThreshold: t.EntryThreshold,
			RiskFraction:   t.RiskFraction,
			MinOrderValue:  t.MinOrderValue,
			TakerFee:       t.TakerFee,
			TakeProfit:     t.TakeProfit,
			StopLoss:       t.StopLoss,
			Interval:       seconds(t.IntervalSecs),
		}
	}
	merge(cfg, file)
	return nil
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}

func merge(cfg *Config, file File) {
	if len(file.Symbols) > 0 {
		syms := make([]string, 0, len(file.Symbols))
		for _, s := range file.Symbols {
			if t := strings.TrimSpace(s); t != "" {
				syms = append(syms, strings.ToUpper(t))
			}
		}
		cfg.Symbols = syms
	}

	if s := file.Screening; s != nil {
		if s.Window > 0 {
			cfg.Screening.Window = s.Window
		}
		if s.Interval > 0 {
			cfg.Screening.Interval = s.Interval
		}
	}

	if t := file.Trading; t != nil {
		if t.EntryThreshold != 0 {
			cfg.Trading.EntryThreshold = t.EntryThreshold
		}
		if t.RiskFraction != 0 {
			cfg.Trading.RiskFraction = t.RiskFraction
		}
		if t.MinOrderValue != 0 {
			cfg.Trading.MinOrderValue = t.MinOrderValue
		}
		if t.TakerFee != 0 {
			cfg.Trading.TakerFee = t.TakerFee
		}
		if t.TakeProfit != 0 {
			cfg.Trading.TakeProfit = t.TakeProfit
		}
		if t.StopLoss != 0 {
			cfg.Trading.StopLoss = t.StopLoss
		}
		if t.Interval > 0 {
			cfg.Trading.Interval = t.Interval
		}
	}
}
