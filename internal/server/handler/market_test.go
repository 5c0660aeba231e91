package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

type stubStore struct {
	recs       []domain.IndicatorRecord
	lastSymbol string
	lastRange  domain.TickRange
}

func (s *stubStore) Insert(ctx context.Context, rec domain.IndicatorRecord) error { return nil }

func (s *stubStore) ReadRange(ctx context.Context, symbol string, q domain.TickRange) ([]domain.IndicatorRecord, error) {
	s.lastSymbol = symbol
	s.lastRange = q
	return s.recs, nil
}

func (s *stubStore) ListBefore(ctx context.Context, before time.Time) ([]domain.IndicatorRecord, error) {
	return nil, nil
}

func (s *stubStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type stubCache struct {
	rec domain.IndicatorRecord
	err error
}

func (c *stubCache) SetLatest(ctx context.Context, rec domain.IndicatorRecord) error { return nil }

func (c *stubCache) GetLatest(ctx context.Context, symbol string) (domain.IndicatorRecord, error) {
	return c.rec, c.err
}

type stubAnomalies struct{}

func (stubAnomalies) Anomalies(symbol string) []domain.AnomalyRecord {
	return []domain.AnomalyRecord{{ID: "a-1", Symbol: symbol}}
}
func (stubAnomalies) Baseline(symbol string) []float64 { return []float64{1, 2} }
func (stubAnomalies) AnomalyIndices(symbol string) []int {
	return []int{7}
}

func TestHistory_UnconfiguredStore(t *testing.T) {
	h := NewMarketHandler(nil, nil, nil, "btcusdt", slog.Default())

	rr := httptest.NewRecorder()
	h.History(rr, httptest.NewRequest(http.MethodGet, "/api/market/history", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHistory_PaginationAndSymbol(t *testing.T) {
	store := &stubStore{}
	h := NewMarketHandler(store, nil, nil, "btcusdt", slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/market/history?symbol=ethusdt&page=3&limit=50", nil)
	rr := httptest.NewRecorder()
	h.History(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ETHUSDT", store.lastSymbol)
	require.Equal(t, 50, store.lastRange.Limit)
	require.Equal(t, 100, store.lastRange.Offset)
}

func TestHistory_InvalidTimestamp(t *testing.T) {
	h := NewMarketHandler(&stubStore{}, nil, nil, "btcusdt", slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/market/history?from=yesterday", nil)
	rr := httptest.NewRecorder()
	h.History(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRecent_ReturnsItems(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &stubStore{recs: []domain.IndicatorRecord{
		{Symbol: "BTCUSDT", Timestamp: ts, Price: 100.5, NetVolumeUSD: 5},
	}}
	h := NewMarketHandler(store, nil, nil, "btcusdt", slog.Default())

	rr := httptest.NewRecorder()
	h.Recent(rr, httptest.NewRequest(http.MethodGet, "/api/market/recent", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "BTCUSDT", store.lastSymbol)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &items))
	require.Len(t, items, 1)
	require.Equal(t, "2026-03-01T12:00:00Z", items[0]["timestamp"])
	require.Equal(t, 100.5, items[0]["price"])
	require.Equal(t, 5.0, items[0]["netVolume"])
}

func TestRecent_LimitClamped(t *testing.T) {
	store := &stubStore{}
	h := NewMarketHandler(store, nil, nil, "btcusdt", slog.Default())

	rr := httptest.NewRecorder()
	h.Recent(rr, httptest.NewRequest(http.MethodGet, "/api/market/recent?limit=99999", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 500, store.lastRange.Limit)
}

func TestLatest_NotFound(t *testing.T) {
	cache := &stubCache{err: domain.ErrNotFound}
	h := NewMarketHandler(nil, cache, nil, "btcusdt", slog.Default())

	rr := httptest.NewRecorder()
	h.Latest(rr, httptest.NewRequest(http.MethodGet, "/api/market/latest", nil))

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLatest_ReturnsCachedTick(t *testing.T) {
	cache := &stubCache{rec: domain.IndicatorRecord{
		Symbol:    "BTCUSDT",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Price:     100.5,
	}}
	h := NewMarketHandler(nil, cache, nil, "btcusdt", slog.Default())

	rr := httptest.NewRecorder()
	h.Latest(rr, httptest.NewRequest(http.MethodGet, "/api/market/latest", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var item map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))
	require.Equal(t, "BTCUSDT", item["symbol"])
}

func TestAnomalies_UnavailableWithoutDetector(t *testing.T) {
	h := NewMarketHandler(nil, nil, nil, "btcusdt", slog.Default())

	rr := httptest.NewRecorder()
	h.Anomalies(rr, httptest.NewRequest(http.MethodGet, "/api/market/anomalies", nil))

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAnomalies_ReturnsState(t *testing.T) {
	h := NewMarketHandler(nil, nil, stubAnomalies{}, "btcusdt", slog.Default())

	rr := httptest.NewRecorder()
	h.Anomalies(rr, httptest.NewRequest(http.MethodGet, "/api/market/anomalies", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Symbol    string                 `json:"symbol"`
		Anomalies []domain.AnomalyRecord `json:"anomalies"`
		Indices   []int                  `json:"indices"`
		Baseline  []float64              `json:"baseline"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "BTCUSDT", resp.Symbol)
	require.Len(t, resp.Anomalies, 1)
	require.Equal(t, []int{7}, resp.Indices)
	require.Equal(t, []float64{1, 2}, resp.Baseline)
}
