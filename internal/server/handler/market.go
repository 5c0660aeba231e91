package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

// AnomalySource exposes the live anomaly state maintained by the tick
// processor. Declared locally so the handler does not depend on the concrete
// pipeline type.
type AnomalySource interface {
	Anomalies(symbol string) []domain.AnomalyRecord
	Baseline(symbol string) []float64
	AnomalyIndices(symbol string) []int
}

// MarketHandler serves historical and live market-data endpoints.
type MarketHandler struct {
	ticks         domain.TickStore
	cache         domain.TickCache
	anomalies     AnomalySource
	defaultSymbol string
	logger        *slog.Logger
}

// NewMarketHandler creates a MarketHandler. ticks, cache, and anomalies may
// each be nil when the corresponding backend is not wired; affected endpoints
// then answer 503.
func NewMarketHandler(ticks domain.TickStore, cache domain.TickCache, anomalies AnomalySource, defaultSymbol string, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		ticks:         ticks,
		cache:         cache,
		anomalies:     anomalies,
		defaultSymbol: strings.ToUpper(defaultSymbol),
		logger:        logger,
	}
}

// tickItem is the JSON projection of one stored record.
type tickItem struct {
	Timestamp string  `json:"timestamp"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	BidVolume float64 `json:"bidVolume"`
	AskVolume float64 `json:"askVolume"`
	NetVolume float64 `json:"netVolume"`
	VWAPBid   float64 `json:"vwapBid"`
	VWAPAsk   float64 `json:"vwapAsk"`
	SpreadPct float64 `json:"spreadPct"`
}

func toItems(recs []domain.IndicatorRecord) []tickItem {
	items := make([]tickItem, len(recs))
	for i, r := range recs {
		items[i] = tickItem{
			Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
			Symbol:    r.Symbol,
			Price:     r.Price,
			BidVolume: r.BidVolumeUSD,
			AskVolume: r.AskVolumeUSD,
			NetVolume: r.NetVolumeUSD,
			VWAPBid:   r.VWAPBid,
			VWAPAsk:   r.VWAPAsk,
			SpreadPct: r.SpreadPct,
		}
	}
	return items
}

func (h *MarketHandler) symbol(r *http.Request) string {
	if s := strings.ToUpper(r.URL.Query().Get("symbol")); s != "" {
		return s
	}
	return h.defaultSymbol
}

// History returns persisted ticks in a time range, newest first.
// GET /api/market/history?symbol=BTCUSDT&from=...&to=...&page=1&limit=100
func (h *MarketHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.ticks == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}

	from, err := queryTime(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from timestamp")
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to timestamp")
		return
	}

	limit := queryInt(r, "limit", 100)
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}

	recs, err := h.ticks.ReadRange(r.Context(), h.symbol(r), domain.TickRange{
		From:   from,
		To:     to,
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "history query failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch historical data")
		return
	}

	writeJSON(w, http.StatusOK, toItems(recs))
}

// Recent returns the most recent persisted ticks, newest first.
// GET /api/market/recent?symbol=BTCUSDT&limit=30
func (h *MarketHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.ticks == nil {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}

	limit := queryInt(r, "limit", 30)
	if limit <= 0 {
		limit = 30
	}
	if limit > 500 {
		limit = 500
	}

	recs, err := h.ticks.ReadRange(r.Context(), h.symbol(r), domain.TickRange{Limit: limit})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "recent query failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch recent data")
		return
	}

	writeJSON(w, http.StatusOK, toItems(recs))
}

// Latest returns the most recent tick from the cache.
// GET /api/market/latest?symbol=BTCUSDT
func (h *MarketHandler) Latest(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}

	rec, err := h.cache.GetLatest(r.Context(), h.symbol(r))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no tick cached for symbol")
			return
		}
		h.logger.ErrorContext(r.Context(), "latest query failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to fetch latest tick")
		return
	}

	items := toItems([]domain.IndicatorRecord{rec})
	writeJSON(w, http.StatusOK, items[0])
}

// anomaliesResponse bundles the active anomalies with their display indices
// into the retained tick history and the moving-average baseline.
type anomaliesResponse struct {
	Symbol    string                 `json:"symbol"`
	Anomalies []domain.AnomalyRecord `json:"anomalies"`
	Indices   []int                  `json:"indices"`
	Baseline  []float64              `json:"baseline"`
}

// Anomalies returns the live anomaly state for a symbol.
// GET /api/market/anomalies?symbol=BTCUSDT
func (h *MarketHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	if h.anomalies == nil {
		writeError(w, http.StatusServiceUnavailable, "detector not running in this mode")
		return
	}

	sym := h.symbol(r)
	writeJSON(w, http.StatusOK, anomaliesResponse{
		Symbol:    sym,
		Anomalies: h.anomalies.Anomalies(sym),
		Indices:   h.anomalies.AnomalyIndices(sym),
		Baseline:  h.anomalies.Baseline(sym),
	})
}
