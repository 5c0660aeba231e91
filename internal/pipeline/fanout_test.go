package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

// fakeStore records inserts and can be made to fail.
type fakeStore struct {
	inserted []domain.IndicatorRecord
	insertFn func() error
}

func (s *fakeStore) Insert(ctx context.Context, rec domain.IndicatorRecord) error {
	if s.insertFn != nil {
		if err := s.insertFn(); err != nil {
			return err
		}
	}
	s.inserted = append(s.inserted, rec)
	return nil
}

func (s *fakeStore) ReadRange(ctx context.Context, symbol string, r domain.TickRange) ([]domain.IndicatorRecord, error) {
	return nil, nil
}

func (s *fakeStore) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.IndicatorRecord, error) {
	return nil, nil
}

func (s *fakeStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// fakeCache records the latest tick per symbol.
type fakeCache struct {
	latest map[string]domain.IndicatorRecord
}

func (c *fakeCache) SetLatest(ctx context.Context, rec domain.IndicatorRecord) error {
	if c.latest == nil {
		c.latest = make(map[string]domain.IndicatorRecord)
	}
	c.latest[rec.Symbol] = rec
	return nil
}

func (c *fakeCache) GetLatest(ctx context.Context, symbol string) (domain.IndicatorRecord, error) {
	rec, ok := c.latest[symbol]
	if !ok {
		return domain.IndicatorRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

// fakeBus records published payloads per channel.
type fakeBus struct {
	published map[string][][]byte
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if b.published == nil {
		b.published = make(map[string][][]byte)
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

// fakeSubscriber captures payloads and reports a settable readiness.
type fakeSubscriber struct {
	ready    bool
	received [][]byte
}

func (s *fakeSubscriber) IsReady() bool       { return s.ready }
func (s *fakeSubscriber) Send(payload []byte) { s.received = append(s.received, payload) }

func testRecord() domain.IndicatorRecord {
	return domain.IndicatorRecord{
		Symbol:       "BTCUSDT",
		Timestamp:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Price:        100.5,
		BidVolumeUSD: 299,
		AskVolumeUSD: 304,
		NetVolumeUSD: 5,
	}
}

func TestPublish_PersistsWithZeroSubscribers(t *testing.T) {
	store := &fakeStore{}
	cache := &fakeCache{}
	bus := &fakeBus{}
	f := NewFanOut(store, cache, bus, slog.Default())

	f.Publish(context.Background(), testRecord())

	require.Len(t, store.inserted, 1)
	require.Contains(t, cache.latest, "BTCUSDT")
	require.Len(t, bus.published[ChannelTicks], 1)
}

func TestPublish_PayloadShape(t *testing.T) {
	bus := &fakeBus{}
	f := NewFanOut(nil, nil, bus, slog.Default())

	f.Publish(context.Background(), testRecord())

	require.Len(t, bus.published[ChannelTicks], 1)
	var got map[string]any
	require.NoError(t, json.Unmarshal(bus.published[ChannelTicks][0], &got))

	require.Equal(t, "2026-03-01T12:00:00Z", got["timestamp"])
	require.Equal(t, "BTCUSDT", got["symbol"])
	require.Equal(t, 100.5, got["price"])
	require.Equal(t, 299.0, got["bidVolume"])
	require.Equal(t, 304.0, got["askVolume"])
	require.Equal(t, 5.0, got["netVolume"])
}

func TestPublish_SkipsNotReadySubscriber(t *testing.T) {
	f := NewFanOut(nil, nil, nil, slog.Default())

	ready := &fakeSubscriber{ready: true}
	stalled := &fakeSubscriber{ready: false}
	f.Attach(ready)
	f.Attach(stalled)

	f.Publish(context.Background(), testRecord())

	require.Len(t, ready.received, 1)
	require.Empty(t, stalled.received)
}

func TestPublish_StoreFailureDoesNotGateDelivery(t *testing.T) {
	store := &fakeStore{insertFn: func() error { return errors.New("db down") }}
	f := NewFanOut(store, nil, nil, slog.Default())

	sub := &fakeSubscriber{ready: true}
	f.Attach(sub)

	f.Publish(context.Background(), testRecord())

	require.Empty(t, store.inserted)
	require.Len(t, sub.received, 1)
}

func TestDetach(t *testing.T) {
	f := NewFanOut(nil, nil, nil, slog.Default())

	sub := &fakeSubscriber{ready: true}
	f.Attach(sub)
	f.Detach(sub)

	f.Publish(context.Background(), testRecord())
	require.Empty(t, sub.received)
}

func TestPublishAnomaly(t *testing.T) {
	bus := &fakeBus{}
	f := NewFanOut(nil, nil, bus, slog.Default())

	rec := domain.AnomalyRecord{
		ID:        "a-1",
		Symbol:    "BTCUSDT",
		Value:     10000,
		ZScore:    12.5,
		Direction: domain.AnomalyAbove,
	}
	f.PublishAnomaly(context.Background(), rec)

	require.Len(t, bus.published[ChannelAnomalies], 1)
	var got domain.AnomalyRecord
	require.NoError(t, json.Unmarshal(bus.published[ChannelAnomalies][0], &got))
	require.Equal(t, rec.ID, got.ID)
	require.Equal(t, rec.Direction, got.Direction)
}
