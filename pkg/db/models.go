package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Bar is one OHLC sample of an instrument.
type Bar struct {
	Symbol string
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PairPosition mirrors an open pair trade.
type PairPosition struct {
	Y          string
	X          string
	Direction  string
	QtyY       float64
	QtyX       float64
	PriceY     float64
	PriceX     float64
	EntryTime  time.Time
	HedgeRatio float64
	MeanSpread float64
	StdSpread  float64
}

// PairTrade is a closed pair trade with its realized result.
type PairTrade struct {
	ID          string
	Y           string
	X           string
	Direction   string
	QtyY        float64
	QtyX        float64
	EntryPriceY float64
	EntryPriceX float64
	ExitPriceY  float64
	ExitPriceX  float64
	EntryTime   time.Time
	ExitTime    time.Time
	Fees        float64
	NetProfit   float64
}

// OrderLeg records one submitted order of a pair entry or exit.
type OrderLeg struct {
	ID              string
	Pair            string
	Intent          string // OPEN or CLOSE
	Symbol          string
	Side            string
	Qty             float64
	Price           float64
	RetCode         int
	RetMsg          string
	ExchangeOrderID string
	CreatedAt       time.Time
}

// ScreenRun summarizes one screening cycle.
type ScreenRun struct {
	ID            int64
	StartedAt     time.Time
	Symbols       int
	PairsTested   int
	PairsAccepted int
	PairsExcluded int
	Duration      time.Duration
}

// InsertBars upserts bars in a single transaction.
func (d *Database) InsertBars(ctx context.Context, bars []Bar) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ohlc_bars (symbol, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, ts) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Symbol, b.Time.UnixMilli(), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("insert bar %s@%d: %w", b.Symbol, b.Time.UnixMilli(), err)
		}
	}
	return tx.Commit()
}

// RecentBars returns the latest limit bars of a symbol in ascending time order.
func (d *Database) RecentBars(ctx context.Context, symbol string, limit int) ([]Bar, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT symbol, ts, open, high, low, close, volume
		FROM ohlc_bars WHERE symbol = ?
		ORDER BY ts DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var res []Bar
	for rows.Next() {
		var (
			b  Bar
			ts int64
		)
		if err := rows.Scan(&b.Symbol, &ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Time = time.UnixMilli(ts)
		res = append(res, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into ascending order.
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res, nil
}

// UpsertPairPosition stores an open pair position.
func (d *Database) UpsertPairPosition(ctx context.Context, p PairPosition) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO pair_positions (
			y, x, direction, qty_y, qty_x, price_y, price_x, entry_time, hedge_ratio, mean_spread, std_spread
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(y, x) DO UPDATE SET
			direction = excluded.direction,
			qty_y = excluded.qty_y,
			qty_x = excluded.qty_x,
			price_y = excluded.price_y,
			price_x = excluded.price_x,
			entry_time = excluded.entry_time,
			hedge_ratio = excluded.hedge_ratio,
			mean_spread = excluded.mean_spread,
			std_spread = excluded.std_spread
	`, p.Y, p.X, p.Direction, p.QtyY, p.QtyX, p.PriceY, p.PriceX, p.EntryTime.UnixMilli(), p.HedgeRatio, p.MeanSpread, p.StdSpread)
	return err
}

// DeletePairPosition removes a closed pair position.
func (d *Database) DeletePairPosition(ctx context.Context, y, x string) error {
	_, err := d.DB.ExecContext(ctx, `DELETE FROM pair_positions WHERE y = ? AND x = ?`, y, x)
	return err
}

// ListPairPositions returns all mirrored open positions ordered by key.
func (d *Database) ListPairPositions(ctx context.Context) ([]PairPosition, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT y, x, direction, qty_y, qty_x, price_y, price_x, entry_time, hedge_ratio, mean_spread, std_spread
		FROM pair_positions ORDER BY y, x`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []PairPosition
	for rows.Next() {
		var (
			p  PairPosition
			ts int64
		)
		if err := rows.Scan(&p.Y, &p.X, &p.Direction, &p.QtyY, &p.QtyX, &p.PriceY, &p.PriceX, &ts, &p.HedgeRatio, &p.MeanSpread, &p.StdSpread); err != nil {
			return nil, err
		}
		p.EntryTime = time.UnixMilli(ts)
		res = append(res, p)
	}
	return res, rows.Err()
}

// CreatePairTrade inserts a closed pair trade.
func (d *Database) CreatePairTrade(ctx context.Context, t PairTrade) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO pair_trades (
			id, y, x, direction, qty_y, qty_x, entry_price_y, entry_price_x,
			exit_price_y, exit_price_x, entry_time, exit_time, fees, net_profit
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.Y, t.X, t.Direction, t.QtyY, t.QtyX, t.EntryPriceY, t.EntryPriceX,
		t.ExitPriceY, t.ExitPriceX, t.EntryTime.UnixMilli(), t.ExitTime.UnixMilli(), t.Fees, t.NetProfit,
	)
	return err
}

// ListPairTrades returns the most recent closed trades first.
func (d *Database) ListPairTrades(ctx context.Context, limit int) ([]PairTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, y, x, direction, qty_y, qty_x, entry_price_y, entry_price_x,
			exit_price_y, exit_price_x, entry_time, exit_time, fees, net_profit
		FROM pair_trades ORDER BY exit_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []PairTrade
	for rows.Next() {
		var (
			t             PairTrade
			entry, exitTs int64
		)
		if err := rows.Scan(&t.ID, &t.Y, &t.X, &t.Direction, &t.QtyY, &t.QtyX, &t.EntryPriceY, &t.EntryPriceX,
			&t.ExitPriceY, &t.ExitPriceX, &entry, &exitTs, &t.Fees, &t.NetProfit); err != nil {
			return nil, err
		}
		t.EntryTime = time.UnixMilli(entry)
		t.ExitTime = time.UnixMilli(exitTs)
		res = append(res, t)
	}
	return res, rows.Err()
}

// InsertOrderLegQuery returns the statement and arguments used to journal a leg.
// The order executor hands these to the batch writer.
func InsertOrderLegQuery(l OrderLeg) (string, []any) {
	return `
		INSERT INTO order_legs (
			id, pair, intent, symbol, side, qty, price, ret_code, ret_msg, exchange_order_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		[]any{l.ID, l.Pair, l.Intent, l.Symbol, l.Side, l.Qty, l.Price, l.RetCode, l.RetMsg, l.ExchangeOrderID, l.CreatedAt.UnixMilli()}
}

// GetOrderLeg loads one journaled leg by ID.
func (d *Database) GetOrderLeg(ctx context.Context, id string) (*OrderLeg, error) {
	var (
		l  OrderLeg
		ts int64
	)
	err := d.DB.QueryRowContext(ctx, `
		SELECT id, pair, intent, symbol, side, qty, price, ret_code, ret_msg, exchange_order_id, created_at
		FROM order_legs WHERE id = ?`, id).
		Scan(&l.ID, &l.Pair, &l.Intent, &l.Symbol, &l.Side, &l.Qty, &l.Price, &l.RetCode, &l.RetMsg, &l.ExchangeOrderID, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	l.CreatedAt = time.UnixMilli(ts)
	return &l, nil
}

// CreateScreenRun journals a screening cycle summary.
func (d *Database) CreateScreenRun(ctx context.Context, r ScreenRun) (int64, error) {
	res, err := d.DB.ExecContext(ctx, `
		INSERT INTO screen_runs (started_at, symbols, pairs_tested, pairs_accepted, pairs_excluded, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.StartedAt.UnixMilli(), r.Symbols, r.PairsTested, r.PairsAccepted, r.PairsExcluded, r.Duration.Milliseconds())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListScreenRuns returns the most recent screening cycles first.
func (d *Database) ListScreenRuns(ctx context.Context, limit int) ([]ScreenRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, started_at, symbols, pairs_tested, pairs_accepted, pairs_excluded, duration_ms
		FROM screen_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []ScreenRun
	for rows.Next() {
		var (
			r          ScreenRun
			started    int64
			durationMs int64
		)
		if err := rows.Scan(&r.ID, &started, &r.Symbols, &r.PairsTested, &r.PairsAccepted, &r.PairsExcluded, &durationMs); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		r.Duration = time.Duration(durationMs) * time.Millisecond
		res = append(res, r)
	}
	return res, rows.Err()
}
