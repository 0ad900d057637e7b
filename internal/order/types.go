package order

import (
	"fmt"

	"pairs-core/pkg/exchanges/common"
)

// Intent says whether a pair of legs opens or closes a position.
type Intent string

const (
	IntentOpen  Intent = "OPEN"
	IntentClose Intent = "CLOSE"
)

// Leg is one market order of a pair trade.
type Leg struct {
	Symbol string
	Side   common.Side
	Qty    float64
	Price  float64 // reference price at decision time, journaled only
}

// LegResult is what happened to one submitted leg.
type LegResult struct {
	Leg
	ClientID string
	Result   common.OrderResult
	Err      error
}

// OK reports whether the venue accepted the leg.
func (r LegResult) OK() bool {
	return r.Err == nil && r.Result.Success()
}

// LegError describes a failed leg.
type LegError struct {
	Symbol  string
	Side    common.Side
	Qty     float64
	RetCode int
	RetMsg  string
	Err     error
}

func (e *LegError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s %.0f: %v", e.Side, e.Symbol, e.Qty, e.Err)
	}
	return fmt.Sprintf("%s %s %.0f: retCode=%d %s", e.Side, e.Symbol, e.Qty, e.RetCode, e.RetMsg)
}

func (e *LegError) Unwrap() error { return e.Err }
