// Package order submits the two legs of a pair trade and journals them.
package order

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"pairs-core/internal/events"
	"pairs-core/internal/monitor"
	"pairs-core/pkg/db"
	"pairs-core/pkg/exchanges/common"
)

// LegJournal records submitted legs. persistence.BatchWriter satisfies it.
type LegJournal interface {
	WriteLeg(l db.OrderLeg)
}

// Executor sends legs to a gateway one after another.
type Executor struct {
	Gateway common.Gateway
	Journal LegJournal
	Bus     *events.Bus
	Metrics *monitor.SystemMetrics

	now   func() time.Time
	newID func() string
}

// NewExecutor creates an executor. journal, bus and metrics may be nil.
func NewExecutor(gw common.Gateway, journal LegJournal, bus *events.Bus, metrics *monitor.SystemMetrics) *Executor {
	return &Executor{
		Gateway: gw,
		Journal: journal,
		Bus:     bus,
		Metrics: metrics,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// SubmitPair sends every leg, even after an earlier one fails, and returns the
// per-leg results. The error joins one *LegError per failed leg and is nil
// only when all legs were accepted.
func (e *Executor) SubmitPair(ctx context.Context, pair string, intent Intent, legs ...Leg) ([]LegResult, error) {
	results := make([]LegResult, 0, len(legs))
	var errs []error
	for _, leg := range legs {
		r := e.submit(ctx, pair, intent, leg)
		results = append(results, r)
		if !r.OK() {
			errs = append(errs, &LegError{
				Symbol:  leg.Symbol,
				Side:    leg.Side,
				Qty:     leg.Qty,
				RetCode: r.Result.RetCode,
				RetMsg:  r.Result.RetMsg,
				Err:     r.Err,
			})
		}
	}
	return results, errors.Join(errs...)
}

func (e *Executor) submit(ctx context.Context, pair string, intent Intent, leg Leg) LegResult {
	req := common.OrderRequest{
		Category: common.CategoryLinear,
		Symbol:   leg.Symbol,
		Side:     leg.Side,
		Type:     common.OrderTypeMarket,
		Qty:      leg.Qty,
		ClientID: e.newID(),
	}

	start := e.now()
	res, err := e.Gateway.SubmitOrder(ctx, req)
	if e.Metrics != nil {
		e.Metrics.OrderLatency.RecordDuration(e.now().Sub(start))
	}

	r := LegResult{Leg: leg, ClientID: req.ClientID, Result: res, Err: err}
	e.journal(pair, intent, r, start)

	if r.OK() {
		log.Printf("📤 %s %s leg accepted: %s %s qty=%.0f ref=%.6f orderId=%s",
			pair, intent, leg.Side, leg.Symbol, leg.Qty, leg.Price, res.ExchangeOrderID)
		e.Bus.Publish(events.EventLegSubmitted, r)
	} else {
		if err != nil {
			log.Printf("❌ %s %s leg failed: %s %s qty=%.0f: %v", pair, intent, leg.Side, leg.Symbol, leg.Qty, err)
		} else {
			log.Printf("❌ %s %s leg rejected: %s %s qty=%.0f retCode=%d %s",
				pair, intent, leg.Side, leg.Symbol, leg.Qty, res.RetCode, res.RetMsg)
		}
		e.Bus.Publish(events.EventLegRejected, r)
	}
	return r
}

func (e *Executor) journal(pair string, intent Intent, r LegResult, at time.Time) {
	if e.Journal == nil {
		return
	}
	l := db.OrderLeg{
		ID:              r.ClientID,
		Pair:            pair,
		Intent:          string(intent),
		Symbol:          r.Symbol,
		Side:            string(r.Side),
		Qty:             r.Qty,
		Price:           r.Price,
		RetCode:         r.Result.RetCode,
		RetMsg:          r.Result.RetMsg,
		ExchangeOrderID: r.Result.ExchangeOrderID,
		CreatedAt:       at,
	}
	if r.Err != nil {
		l.RetCode = -1
		l.RetMsg = r.Err.Error()
	}
	e.Journal.WriteLeg(l)
}
