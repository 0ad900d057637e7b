package trader

import (
	"context"
	"log"

	"pairs-core/internal/events"
	"pairs-core/internal/order"
	"pairs-core/internal/state"
	"pairs-core/pkg/db"
)

// ClosedTrade is published when a position is closed.
type ClosedTrade struct {
	Position state.Position
	PriceY   float64
	PriceX   float64
	Value    Valuation
}

// evaluateExits marks every open position and closes those outside the
// bracket. A position is removed only when both closing legs are accepted.
func (e *Engine) evaluateExits(ctx context.Context, legErrs *[]error) error {
	for _, key := range e.store.Keys() {
		p, _ := e.store.Get(key)

		py, px, err := e.prices(ctx, key.Y, key.X)
		if err != nil {
			return err
		}
		v := Value(p, py, px, e.params.TakerFee)
		log.Printf("📈 %s %s qty_y=%.0f qty_x=%.0f price_y=%.6f price_x=%.6f movement=%.4f entry_fees=%.4f exit_fees=%.4f net=%.4f",
			key, p.Direction, p.QtyY, p.QtyX, py, px, v.Movement, v.EntryFees, v.ExitFees, v.Net)

		if !ShouldExit(v.Net, e.params.TakeProfit, e.params.StopLoss) {
			continue
		}

		reason := "take profit"
		if v.Net <= e.params.StopLoss {
			reason = "stop loss"
		}
		log.Printf("🔔 %s exit (%s): net=%.4f", key, reason, v.Net)

		if _, err := e.orders.SubmitPair(ctx, key.String(), order.IntentClose, exitLegs(p, py, px)...); err != nil {
			logLegFailure(key.String(), order.IntentClose, err)
			*legErrs = append(*legErrs, err)
			if e.metrics != nil {
				e.metrics.IncrementLegFailures()
			}
			continue
		}

		if err := e.store.Delete(ctx, key); err != nil {
			log.Printf("⚠️ %v", err)
		}
		e.journalTrade(ctx, p, py, px, v)
		e.bus.Publish(events.EventPositionClosed, ClosedTrade{Position: p, PriceY: py, PriceX: px, Value: v})
		if e.metrics != nil {
			e.metrics.IncrementExits()
		}
		log.Printf("✅ %s closed %s: net=%.4f", key, p.Direction, v.Net)
	}
	return nil
}

func (e *Engine) journalTrade(ctx context.Context, p state.Position, py, px float64, v Valuation) {
	if e.trades == nil {
		return
	}
	err := e.trades.CreatePairTrade(ctx, db.PairTrade{
		ID:          e.newID(),
		Y:           p.Key.Y,
		X:           p.Key.X,
		Direction:   p.Direction.String(),
		QtyY:        p.QtyY,
		QtyX:        p.QtyX,
		EntryPriceY: p.PriceY,
		EntryPriceX: p.PriceX,
		ExitPriceY:  py,
		ExitPriceX:  px,
		EntryTime:   p.EntryTime,
		ExitTime:    e.now(),
		Fees:        v.EntryFees + v.ExitFees,
		NetProfit:   v.Net,
	})
	if err != nil {
		log.Printf("⚠️ trade journal write failed for %s: %v", p.Key, err)
	}
}
