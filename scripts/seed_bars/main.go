package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"pairs-core/pkg/config"
	"pairs-core/pkg/db"
)

// seed_bars loads close bars into the screener's database.
//
// Usage:
//
//   go run ./scripts/seed_bars -csv bars.csv
//   go run ./scripts/seed_bars -synthetic 360
//
// The CSV has a header and the columns symbol,time,open,high,low,close,volume
// where time is RFC3339 or unix milliseconds. -synthetic writes n minute bars
// for the configured symbols: the first two are cointegrated, the rest are
// independent random walks.

const batchSize = 500

func main() {
	csvPath := flag.String("csv", "", "CSV file to import")
	synthetic := flag.Int("synthetic", 0, "number of synthetic bars per symbol")
	seed := flag.Int64("seed", 42, "seed for synthetic bars")
	flag.Parse()

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

	ctx := context.Background()
	var bars []db.Bar
	switch {
	case *csvPath != "":
		f, err := os.Open(*csvPath)
		if err != nil {
			log.Fatalf("open csv: %v", err)
		}
		defer f.Close()
		if bars, err = readCSV(f); err != nil {
			log.Fatalf("read csv: %v", err)
		}
	case *synthetic > 0:
		bars = syntheticBars(cfg.Symbols, *synthetic, *seed, time.Now().Truncate(time.Minute))
	default:
		flag.Usage()
		os.Exit(2)
	}

	for start := 0; start < len(bars); start += batchSize {
		end := start + batchSize
		if end > len(bars) {
			end = len(bars)
		}
		if err := database.InsertBars(ctx, bars[start:end]); err != nil {
			log.Fatalf("insert bars: %v", err)
		}
	}
	log.Printf("✅ wrote %d bars into %s", len(bars), cfg.DBPath)
}

func readCSV(r io.Reader) ([]db.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 7
	cr.TrimLeadingSpace = true
	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	var bars []db.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return bars, nil
		}
		if err != nil {
			return nil, err
		}
		ts, err := parseTime(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var vals [5]float64
		for i := range vals {
			if vals[i], err = strconv.ParseFloat(rec[i+2], 64); err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+3, err)
			}
		}
		bars = append(bars, db.Bar{
			Symbol: strings.ToUpper(rec[0]),
			Time:   ts,
			Open:   vals[0],
			High:   vals[1],
			Low:    vals[2],
			Close:  vals[3],
			Volume: vals[4],
		})
	}
}

func parseTime(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

func syntheticBars(symbols []string, n int, seed int64, end time.Time) []db.Bar {
	r := rand.New(rand.NewSource(seed))
	walks := make([][]float64, len(symbols))
	for i := range walks {
		w := make([]float64, n)
		w[0] = math.Log(0.1 + r.Float64())
		for t := 1; t < n; t++ {
			w[t] = w[t-1] + r.NormFloat64()*0.002
		}
		walks[i] = w
	}
	if len(walks) >= 2 {
		for t := range walks[0] {
			walks[0][t] = 0.3 + 1.1*walks[1][t] + r.NormFloat64()*0.0005
		}
	}

	bars := make([]db.Bar, 0, n*len(symbols))
	for i, sym := range symbols {
		for t, lp := range walks[i] {
			p := math.Exp(lp)
			bars = append(bars, db.Bar{
				Symbol: sym,
				Time:   end.Add(-time.Duration(n-1-t) * time.Minute),
				Open:   p, High: p, Low: p, Close: p,
			})
		}
	}
	return bars
}
