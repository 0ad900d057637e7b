package engine

import "time"

// SignalSet is the currently published set of pairs.
type SignalSet struct {
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Pairs       []Pair     `json:"pairs"`
}

// Pair is one published cointegrated pair.
type Pair struct {
	Y          string  `json:"y"`
	X          string  `json:"x"`
	HedgeRatio float64 `json:"hedge_ratio"`
	MeanSpread float64 `json:"mean_spread"`
	StdSpread  float64 `json:"std_spread"`
}

// Position is an open pair trade as mirrored in the database.
type Position struct {
	Y          string    `json:"y"`
	X          string    `json:"x"`
	Direction  string    `json:"direction"`
	QtyY       float64   `json:"qty_y"`
	QtyX       float64   `json:"qty_x"`
	PriceY     float64   `json:"price_y"`
	PriceX     float64   `json:"price_x"`
	EntryTime  time.Time `json:"entry_time"`
	HedgeRatio float64   `json:"hedge_ratio"`
	MeanSpread float64   `json:"mean_spread"`
	StdSpread  float64   `json:"std_spread"`
}

// Trade is a closed pair trade.
type Trade struct {
	ID          string    `json:"id"`
	Y           string    `json:"y"`
	X           string    `json:"x"`
	Direction   string    `json:"direction"`
	QtyY        float64   `json:"qty_y"`
	QtyX        float64   `json:"qty_x"`
	EntryPriceY float64   `json:"entry_price_y"`
	EntryPriceX float64   `json:"entry_price_x"`
	ExitPriceY  float64   `json:"exit_price_y"`
	ExitPriceX  float64   `json:"exit_price_x"`
	EntryTime   time.Time `json:"entry_time"`
	ExitTime    time.Time `json:"exit_time"`
	Fees        float64   `json:"fees"`
	NetProfit   float64   `json:"net_profit"`
}

// TradeSummary aggregates recent closed trades.
type TradeSummary struct {
	Trades    int     `json:"trades"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	NetProfit float64 `json:"net_profit"`
	Fees      float64 `json:"fees"`
}

// ScreenRun summarizes one screening cycle.
type ScreenRun struct {
	ID            int64     `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	Symbols       int       `json:"symbols"`
	PairsTested   int       `json:"pairs_tested"`
	PairsAccepted int       `json:"pairs_accepted"`
	PairsExcluded int       `json:"pairs_excluded"`
	DurationMs    int64     `json:"duration_ms"`
}

// OrderLeg is one journaled order.
type OrderLeg struct {
	ID              string    `json:"id"`
	Pair            string    `json:"pair"`
	Intent          string    `json:"intent"`
	Symbol          string    `json:"symbol"`
	Side            string    `json:"side"`
	Qty             float64   `json:"qty"`
	Price           float64   `json:"price"`
	RetCode         int       `json:"ret_code"`
	RetMsg          string    `json:"ret_msg"`
	ExchangeOrderID string    `json:"exchange_order_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// SystemStatus represents the system runtime status.
type SystemStatus struct {
	DryRun         bool      `json:"dry_run"`
	Venue          string    `json:"venue"`
	Symbols        []string  `json:"symbols"`
	QuoteSource    string    `json:"quote_source"`
	EntryThreshold float64   `json:"entry_threshold"`
	TakeProfit     float64   `json:"take_profit"`
	StopLoss       float64   `json:"stop_loss"`
	Version        string    `json:"version"`
	ServerTime     time.Time `json:"server_time"`
}
