// Package book maintains the live in-memory order-book view for each symbol.
// A Book is owned by the single ingestion goroutine for its symbol; readers
// only see immutable snapshots.
package book

import (
	"sort"
	"time"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

// Book is the mutable order-book state for one symbol: two unordered
// price→quantity maps plus the last known trade price. Ordering is applied
// only when a snapshot is taken.
type Book struct {
	symbol    string
	bids      map[float64]float64
	asks      map[float64]float64
	lastTrade float64
}

// New creates an empty Book for the given symbol.
func New(symbol string) *Book {
	return &Book{
		symbol: symbol,
		bids:   make(map[float64]float64),
		asks:   make(map[float64]float64),
	}
}

// Symbol returns the symbol this book tracks.
func (b *Book) Symbol() string { return b.symbol }

// LastTradePrice returns the most recent trade price, or 0 if none seen yet.
func (b *Book) LastTradePrice() float64 { return b.lastTrade }

// ApplyDepth applies one incremental diff batch. For each level, quantity 0
// removes the entry and any other quantity overwrites it. Re-applying the
// same non-zero level is idempotent. The batch must be fully applied before
// any snapshot derived from it is taken; callers drive this sequentially.
func (b *Book) ApplyDepth(side domain.Side, levels []domain.PriceLevel) {
	m := b.bids
	if side == domain.SideAsk {
		m = b.asks
	}
	for _, lv := range levels {
		if lv.Quantity <= 0 {
			delete(m, lv.Price)
			continue
		}
		m[lv.Price] = lv.Quantity
	}
}

// ApplyTrade records the last trade price. Levels are untouched.
func (b *Book) ApplyTrade(price float64) {
	if price > 0 {
		b.lastTrade = price
	}
}

// Snapshot returns an immutable ordered view of the book: bids descending,
// asks ascending. When rangePct > 0 and a trade price is known, only levels
// within ±rangePct percent of the last trade price are included ("local
// liquidity" view); otherwise the full book is returned.
func (b *Book) Snapshot(rangePct float64, ts time.Time) domain.BookSnapshot {
	var lo, hi float64
	filtered := rangePct > 0 && b.lastTrade > 0
	if filtered {
		lo = b.lastTrade * (1 - rangePct/100)
		hi = b.lastTrade * (1 + rangePct/100)
	}

	collect := func(m map[float64]float64) []domain.PriceLevel {
		out := make([]domain.PriceLevel, 0, len(m))
		for p, q := range m {
			if filtered && (p < lo || p > hi) {
				continue
			}
			out = append(out, domain.PriceLevel{Price: p, Quantity: q})
		}
		return out
	}

	bids := collect(b.bids)
	asks := collect(b.asks)
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	return domain.BookSnapshot{
		Symbol:         b.symbol,
		Bids:           bids,
		Asks:           asks,
		LastTradePrice: b.lastTrade,
		Timestamp:      ts,
	}
}
