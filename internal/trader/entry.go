package trader

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"pairs-core/internal/events"
	"pairs-core/internal/order"
	"pairs-core/internal/signal"
	"pairs-core/internal/state"
)

// evaluateEntries checks every published pair without an open position and
// opens it when the z-score leaves the band.
func (e *Engine) evaluateEntries(ctx context.Context, set signal.Set, legErrs *[]error) error {
	for _, pair := range set.Pairs {
		key := state.PairKey{Y: pair.Y, X: pair.X}
		if e.store.Has(key) {
			continue
		}
		if err := pair.Validate(); err != nil {
			log.Printf("⚠️ ignoring published pair: %v", err)
			continue
		}

		py, px, err := e.prices(ctx, pair.Y, pair.X)
		if err != nil {
			return err
		}
		spread, z := ZScore(pair, py, px)

		bal, err := e.balance.Available(ctx)
		if err != nil {
			return err
		}
		qtyY, qtyX := Size(bal, e.params.RiskFraction, py, pair.HedgeRatio)
		log.Printf("🔍 %s price_y=%.6f price_x=%.6f spread=%.6f z=%.3f balance=%.2f qty_y=%.0f qty_x=%.0f",
			key, py, px, spread, z, bal, qtyY, qtyX)

		if qtyY == 0 || qtyX == 0 || qtyY*py < e.params.MinOrderValue || qtyX*px < e.params.MinOrderValue {
			log.Printf("⏭️ %s skipped: notional y=%.2f x=%.2f below minimum %.2f",
				key, qtyY*py, qtyX*px, e.params.MinOrderValue)
			if e.metrics != nil {
				e.metrics.IncrementSkipped()
			}
			continue
		}

		dir, ok := EntryDirection(z, e.params.EntryThreshold)
		if !ok {
			continue
		}
		log.Printf("🔔 %s entry %s: z=%.3f threshold=%.2f", key, dir, z, e.params.EntryThreshold)

		legs := entryLegs(dir, key, qtyY, qtyX, py, px)
		if _, err := e.orders.SubmitPair(ctx, key.String(), order.IntentOpen, legs...); err != nil {
			// No compensating order is sent for a leg that did fill.
			logLegFailure(key.String(), order.IntentOpen, err)
			*legErrs = append(*legErrs, err)
			if e.metrics != nil {
				e.metrics.IncrementLegFailures()
			}
			continue
		}

		p := state.Position{
			Key:        key,
			Direction:  dir,
			QtyY:       qtyY,
			QtyX:       qtyX,
			PriceY:     py,
			PriceX:     px,
			EntryTime:  e.now(),
			HedgeRatio: pair.HedgeRatio,
			MeanSpread: pair.MeanSpread,
			StdSpread:  pair.StdSpread,
		}
		if err := e.store.Put(ctx, p); err != nil {
			log.Printf("⚠️ %v", err)
		}
		e.bus.Publish(events.EventPositionOpened, p)
		if e.metrics != nil {
			e.metrics.IncrementEntries()
		}
		log.Printf("✅ %s opened %s: qty_y=%.0f@%.6f qty_x=%.0f@%.6f", key, dir, qtyY, py, qtyX, px)
	}
	return nil
}

func newTradeID() string {
	return fmt.Sprintf("pt-%s", uuid.NewString())
}
