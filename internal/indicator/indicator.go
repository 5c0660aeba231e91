// Package indicator derives market-microstructure indicators from order-book
// snapshots. Everything here is a pure function: no internal state, safe to
// call concurrently for different symbols.
package indicator

import (
	"math"
	"time"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

// TopFraction is the fraction of levels (by count, from the top of the book)
// used for VWAP.
const TopFraction = 0.10

// VWAP returns the quantity-weighted average price over the top topFraction
// of levels by count. It returns 0 for an empty slice or zero total quantity;
// degenerate inputs are defined results, never errors.
func VWAP(levels []domain.PriceLevel, topFraction float64) float64 {
	n := int(math.Ceil(float64(len(levels)) * topFraction))
	if n > len(levels) {
		n = len(levels)
	}

	var totalQty, weighted float64
	for _, lv := range levels[:n] {
		weighted += lv.Price * lv.Quantity
		totalQty += lv.Quantity
	}
	if totalQty == 0 {
		return 0
	}
	return weighted / totalQty
}

// VolumeUSD sums price×quantity over all levels.
func VolumeUSD(levels []domain.PriceLevel) float64 {
	var sum float64
	for _, lv := range levels {
		sum += lv.Price * lv.Quantity
	}
	return sum
}

// SpreadPct returns the VWAP spread as a percentage of the bid VWAP. A zero
// bid VWAP yields 0 rather than dividing by zero.
func SpreadPct(vwapBid, vwapAsk float64) float64 {
	if vwapBid == 0 {
		return 0
	}
	return (vwapAsk - vwapBid) / vwapBid * 100
}

// Compose assembles the per-tick indicator record from a book snapshot.
// NetVolumeUSD is ask volume minus bid volume; positive values indicate
// sell-side pressure.
func Compose(snap domain.BookSnapshot, ts time.Time) domain.IndicatorRecord {
	vwapBid := VWAP(snap.Bids, TopFraction)
	vwapAsk := VWAP(snap.Asks, TopFraction)
	bidVol := VolumeUSD(snap.Bids)
	askVol := VolumeUSD(snap.Asks)

	return domain.IndicatorRecord{
		Symbol:       snap.Symbol,
		Timestamp:    ts,
		Price:        snap.LastTradePrice,
		BidVolumeUSD: bidVol,
		AskVolumeUSD: askVol,
		NetVolumeUSD: askVol - bidVol,
		VWAPBid:      vwapBid,
		VWAPAsk:      vwapAsk,
		SpreadPct:    SpreadPct(vwapBid, vwapAsk),
	}
}
