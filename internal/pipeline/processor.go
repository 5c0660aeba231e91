package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/a7351220/BINANCE-TRADE/internal/anomaly"
	"github.com/a7351220/BINANCE-TRADE/internal/book"
	"github.com/a7351220/BINANCE-TRADE/internal/domain"
	"github.com/a7351220/BINANCE-TRADE/internal/indicator"
)

// Processor owns the per-symbol books and anomaly detectors and turns each
// depth update into exactly one published tick. All updates flow through the
// single feed goroutine, so book mutation, indicator computation, and window
// observation stay strictly ordered per symbol; the mutex only shields the
// read-side accessors used by the HTTP handlers.
type Processor struct {
	mu        sync.Mutex
	books     *book.Registry
	detectors map[string]*anomaly.Detector
	clock     anomaly.Clock
	rangePct  float64
	fanout    *FanOut
	logger    *slog.Logger
}

// NewProcessor creates a Processor. rangePct selects the snapshot volume
// window: 0 uses the full book (the default; this is what feeds the anomaly
// detector), a positive value restricts volumes to levels within ±rangePct%
// of the last trade price.
func NewProcessor(books *book.Registry, fanout *FanOut, rangePct float64, clock anomaly.Clock, logger *slog.Logger) *Processor {
	return &Processor{
		books:     books,
		detectors: make(map[string]*anomaly.Detector),
		clock:     clock,
		rangePct:  rangePct,
		fanout:    fanout,
		logger:    logger.With(slog.String("component", "processor")),
	}
}

// HandleDepth applies one depth diff to the symbol's book, derives the tick
// record from the fully-applied snapshot, observes its net volume, and fans
// the record out.
func (p *Processor) HandleDepth(ctx context.Context, update domain.DepthUpdate) {
	p.mu.Lock()
	b := p.books.Get(update.Symbol)
	b.ApplyDepth(domain.SideBid, update.BidChanges)
	b.ApplyDepth(domain.SideAsk, update.AskChanges)

	snap := b.Snapshot(p.rangePct, update.EventTime)
	rec := indicator.Compose(snap, update.EventTime)

	found := p.detector(update.Symbol).Observe(rec.NetVolumeUSD, rec.Timestamp)
	p.mu.Unlock()

	if found != nil {
		p.logger.Info("volume anomaly detected",
			slog.String("symbol", found.Symbol),
			slog.Float64("net_volume_usd", found.Value),
			slog.Float64("z_score", found.ZScore),
			slog.String("direction", string(found.Direction)),
		)
		p.fanout.PublishAnomaly(ctx, *found)
	}

	p.fanout.Publish(ctx, rec)
}

// HandleTrade records the last trade price. No tick is emitted; trades only
// move the reference price used by range-filtered snapshots and the record's
// price field.
func (p *Processor) HandleTrade(ctx context.Context, trade domain.TradeEvent) {
	p.mu.Lock()
	p.books.Get(trade.Symbol).ApplyTrade(trade.Price)
	p.mu.Unlock()
}

// Anomalies returns the active anomaly list for symbol, newest first.
func (p *Processor) Anomalies(symbol string) []domain.AnomalyRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detector(symbol).Active()
}

// Baseline returns the trailing moving-average series for symbol's retained
// tick history.
func (p *Processor) Baseline(symbol string) []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detector(symbol).Baseline()
}

// AnomalyIndices resolves the active anomalies to indices in the retained
// tick history for display alignment.
func (p *Processor) AnomalyIndices(symbol string) []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detector(symbol).Indices()
}

// detector returns the per-symbol detector, creating it lazily. Caller must
// hold p.mu.
func (p *Processor) detector(symbol string) *anomaly.Detector {
	d, ok := p.detectors[symbol]
	if !ok {
		d = anomaly.NewDetector(symbol, p.clock)
		p.detectors[symbol] = d
	}
	return d
}
