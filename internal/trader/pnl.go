package trader

import (
	"math"

	"pairs-core/internal/order"
	"pairs-core/internal/signal"
	"pairs-core/internal/state"
	"pairs-core/pkg/exchanges/common"
)

// Valuation is a position marked at current prices.
type Valuation struct {
	EntryFees float64
	ExitFees  float64
	Movement  float64
	Net       float64
}

// Value marks p at (priceY, priceX). Fees are the taker rate on each leg's
// notional: entry prices for entry fees, current prices for exit fees.
func Value(p state.Position, priceY, priceX, takerFee float64) Valuation {
	v := Valuation{
		EntryFees: takerFee * (p.PriceY*p.QtyY + p.PriceX*p.QtyX),
		ExitFees:  takerFee * (priceY*p.QtyY + priceX*p.QtyX),
	}
	switch p.Direction {
	case state.LongSpread:
		v.Movement = (priceY-p.PriceY)*p.QtyY + (p.PriceX-priceX)*p.QtyX
	case state.ShortSpread:
		v.Movement = (p.PriceY-priceY)*p.QtyY + (priceX-p.PriceX)*p.QtyX
	}
	v.Net = v.Movement - v.EntryFees - v.ExitFees
	return v
}

// ShouldExit is the take-profit / stop-loss bracket. Both bounds are inclusive.
func ShouldExit(net, takeProfit, stopLoss float64) bool {
	return net >= takeProfit || net <= stopLoss
}

// ZScore standardizes the current log spread against the pair's window.
func ZScore(pair signal.Pair, priceY, priceX float64) (spread, z float64) {
	spread = math.Log(priceY) - pair.HedgeRatio*math.Log(priceX)
	return spread, (spread - pair.MeanSpread) / pair.StdSpread
}

// Size turns a risk budget into whole-unit leg quantities.
func Size(balance, riskFraction, priceY, hedgeRatio float64) (qtyY, qtyX float64) {
	budget := riskFraction * balance
	qtyY = math.Floor(budget / priceY)
	qtyX = math.Floor(math.Abs(qtyY * hedgeRatio))
	return qtyY, qtyX
}

// EntryDirection applies the z-score rule. ok is false inside the band.
func EntryDirection(z, threshold float64) (dir state.Direction, ok bool) {
	switch {
	case z > threshold:
		return state.ShortSpread, true
	case z < -threshold:
		return state.LongSpread, true
	default:
		return 0, false
	}
}

// entryLegs opens dir: long spread buys y and sells x, short spread the reverse.
func entryLegs(dir state.Direction, key state.PairKey, qtyY, qtyX, priceY, priceX float64) []order.Leg {
	sideY := common.SideBuy
	if dir == state.ShortSpread {
		sideY = common.SideSell
	}
	return []order.Leg{
		{Symbol: key.Y, Side: sideY, Qty: qtyY, Price: priceY},
		{Symbol: key.X, Side: sideY.Opposite(), Qty: qtyX, Price: priceX},
	}
}

// exitLegs unwinds p with the opposite side on each leg.
func exitLegs(p state.Position, priceY, priceX float64) []order.Leg {
	legs := entryLegs(p.Direction, p.Key, p.QtyY, p.QtyX, priceY, priceX)
	for i := range legs {
		legs[i].Side = legs[i].Side.Opposite()
	}
	return legs
}
