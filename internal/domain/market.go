// Package domain defines the value objects and collaborator interfaces shared
// across the streaming pipeline. It has no dependencies on concrete stores,
// caches, or transports.
package domain

import "time"

// Side identifies one side of an order book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// PriceLevel is a single price+quantity entry in an order book. A quantity of
// zero in an incoming update means the level must be removed; zero-quantity
// levels are never stored.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// DepthUpdate is one incremental order-book diff from the exchange stream.
// BidChanges and AskChanges carry set/overwrite entries; Quantity == 0 removes
// the level.
type DepthUpdate struct {
	Symbol     string
	EventTime  time.Time
	BidChanges []PriceLevel
	AskChanges []PriceLevel
}

// TradeEvent is a single executed trade from the exchange stream. Only the
// price is consumed; it updates the book's last trade price.
type TradeEvent struct {
	Symbol    string
	Price     float64
	Quantity  float64
	EventTime time.Time
}

// BookSnapshot is an immutable, ordered view of one symbol's order book.
// Bids are sorted descending by price, asks ascending.
type BookSnapshot struct {
	Symbol         string
	Bids           []PriceLevel
	Asks           []PriceLevel
	LastTradePrice float64
	Timestamp      time.Time
}

// IndicatorRecord is the flat per-tick output of the indicator engine. It is
// immutable once produced; exactly one record is emitted per processed update.
// NetVolumeUSD (ask minus bid) is the scalar observed by the anomaly detector.
type IndicatorRecord struct {
	Symbol       string
	Timestamp    time.Time
	Price        float64
	BidVolumeUSD float64
	AskVolumeUSD float64
	NetVolumeUSD float64
	VWAPBid      float64
	VWAPAsk      float64
	SpreadPct    float64
}

// TickPayload is the wire shape broadcast to subscribers. Field names are the
// compatibility contract with downstream display clients.
type TickPayload struct {
	Timestamp string  `json:"timestamp"`
	Symbol    string  `json:"symbol,omitempty"`
	Price     float64 `json:"price"`
	BidVolume float64 `json:"bidVolume"`
	AskVolume float64 `json:"askVolume"`
	NetVolume float64 `json:"netVolume"`
}

// Payload projects the record into the subscriber wire shape.
func (r IndicatorRecord) Payload() TickPayload {
	return TickPayload{
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
		Symbol:    r.Symbol,
		Price:     r.Price,
		BidVolume: r.BidVolumeUSD,
		AskVolume: r.AskVolumeUSD,
		NetVolume: r.NetVolumeUSD,
	}
}
