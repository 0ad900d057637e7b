package db

import (
	"fmt"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS ohlc_bars (
    symbol TEXT NOT NULL,
    ts INTEGER NOT NULL,
    open REAL DEFAULT 0,
    high REAL DEFAULT 0,
    low REAL DEFAULT 0,
    close REAL NOT NULL,
    volume REAL DEFAULT 0,
    PRIMARY KEY (symbol, ts)
);

CREATE TABLE IF NOT EXISTS pair_positions (
    y TEXT NOT NULL,
    x TEXT NOT NULL,
    direction TEXT NOT NULL,
    qty_y REAL NOT NULL,
    qty_x REAL NOT NULL,
    price_y REAL NOT NULL,
    price_x REAL NOT NULL,
    entry_time INTEGER NOT NULL,
    hedge_ratio REAL NOT NULL,
    mean_spread REAL NOT NULL,
    std_spread REAL NOT NULL,
    PRIMARY KEY (y, x)
);

CREATE TABLE IF NOT EXISTS pair_trades (
    id TEXT PRIMARY KEY,
    y TEXT NOT NULL,
    x TEXT NOT NULL,
    direction TEXT NOT NULL,
    qty_y REAL NOT NULL,
    qty_x REAL NOT NULL,
    entry_price_y REAL NOT NULL,
    entry_price_x REAL NOT NULL,
    exit_price_y REAL NOT NULL,
    exit_price_x REAL NOT NULL,
    entry_time INTEGER NOT NULL,
    exit_time INTEGER NOT NULL,
    fees REAL DEFAULT 0,
    net_profit REAL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS order_legs (
    id TEXT PRIMARY KEY,
    pair TEXT NOT NULL,
    intent TEXT NOT NULL,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    qty REAL NOT NULL,
    price REAL DEFAULT 0,
    ret_code INTEGER DEFAULT 0,
    ret_msg TEXT DEFAULT '',
    exchange_order_id TEXT DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS screen_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at INTEGER NOT NULL,
    symbols INTEGER DEFAULT 0,
    pairs_tested INTEGER DEFAULT 0,
    pairs_accepted INTEGER DEFAULT 0,
    pairs_excluded INTEGER DEFAULT 0,
    duration_ms INTEGER DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_pair_trades_exit ON pair_trades(exit_time);
CREATE INDEX IF NOT EXISTS idx_order_legs_created ON order_legs(created_at);
`

// ApplyMigrations bootstraps the schema; keep lightweight for fast startup.
func ApplyMigrations(d *Database) error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database is not initialized")
	}
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
