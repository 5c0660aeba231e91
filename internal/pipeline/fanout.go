// Package pipeline drives one tick through the streaming core: book update →
// indicator computation → anomaly observation → persistence and fan-out.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

// Bus channels for cross-process consumers.
const (
	ChannelTicks     = "ticks"
	ChannelAnomalies = "anomalies"
)

// Subscriber is one live downstream consumer of tick payloads. Send must not
// block; a subscriber that cannot keep up signals it by returning false from
// IsReady and is silently skipped, never queued.
type Subscriber interface {
	IsReady() bool
	Send(payload []byte)
}

// FanOut persists each completed tick and broadcasts it to all live
// subscribers. Persistence is best-effort: failures are logged and never gate
// delivery to subscribers.
type FanOut struct {
	store  domain.TickStore
	cache  domain.TickCache
	bus    domain.SignalBus
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[Subscriber]struct{}
}

// NewFanOut creates a FanOut. Any of store, cache, and bus may be nil, in
// which case that sink is skipped.
func NewFanOut(store domain.TickStore, cache domain.TickCache, bus domain.SignalBus, logger *slog.Logger) *FanOut {
	return &FanOut{
		store:  store,
		cache:  cache,
		bus:    bus,
		logger: logger.With(slog.String("component", "fanout")),
		subs:   make(map[Subscriber]struct{}),
	}
}

// Attach registers a subscriber. Safe to call while publishes are in flight.
func (f *FanOut) Attach(s Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[s] = struct{}{}
}

// Detach removes a subscriber.
func (f *FanOut) Detach(s Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, s)
}

// Publish persists rec and broadcasts its display projection to every ready
// subscriber. Zero subscribers is not an error; persistence is still
// attempted. Subscribers see ticks in publish order, but there is no ordering
// guarantee across subscribers within a single publish.
func (f *FanOut) Publish(ctx context.Context, rec domain.IndicatorRecord) {
	if f.store != nil {
		if err := f.store.Insert(ctx, rec); err != nil {
			f.logger.Warn("tick persistence failed",
				slog.String("symbol", rec.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}
	if f.cache != nil {
		if err := f.cache.SetLatest(ctx, rec); err != nil {
			f.logger.Debug("tick cache update failed",
				slog.String("symbol", rec.Symbol),
				slog.String("error", err.Error()),
			)
		}
	}

	payload, err := json.Marshal(rec.Payload())
	if err != nil {
		f.logger.Error("tick payload marshal failed", slog.String("error", err.Error()))
		return
	}

	if f.bus != nil {
		if err := f.bus.Publish(ctx, ChannelTicks, payload); err != nil {
			f.logger.Debug("bus publish failed", slog.String("error", err.Error()))
		}
	}

	for _, s := range f.snapshotSubs() {
		if s.IsReady() {
			s.Send(payload)
		}
	}
}

// PublishAnomaly pushes a freshly detected anomaly to the signal bus.
// Best-effort, like tick persistence.
func (f *FanOut) PublishAnomaly(ctx context.Context, rec domain.AnomalyRecord) {
	if f.bus == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		f.logger.Error("anomaly payload marshal failed", slog.String("error", err.Error()))
		return
	}
	if err := f.bus.Publish(ctx, ChannelAnomalies, payload); err != nil {
		f.logger.Debug("anomaly publish failed", slog.String("error", err.Error()))
	}
}

// snapshotSubs copies the subscriber set so broadcast iteration tolerates
// concurrent connect/disconnect.
func (f *FanOut) snapshotSubs() []Subscriber {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Subscriber, 0, len(f.subs))
	for s := range f.subs {
		out = append(out, s)
	}
	return out
}
