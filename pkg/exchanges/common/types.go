package common

// Side denotes order side in the venue's casing.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// Opposite returns the side that unwinds s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType denotes the order types the trader sends.
type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
)

// Category selects the Bybit product line.
type Category string

const (
	CategoryLinear Category = "linear"
)

// OrderRequest captures an order intent to be sent to an exchange.
type OrderRequest struct {
	Category   Category
	Symbol     string
	Side       Side
	Type       OrderType
	Qty        float64
	ClientID   string // orderLinkId
	ReduceOnly bool
}

// OrderResult is the exchange acknowledgement. A non-zero RetCode means the
// venue rejected the order even though the HTTP call succeeded.
type OrderResult struct {
	ExchangeOrderID string
	ClientID        string
	RetCode         int
	RetMsg          string
}

// Success reports whether the venue accepted the order.
func (r OrderResult) Success() bool {
	return r.RetCode == 0
}
