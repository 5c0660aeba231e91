package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

func TestVWAP_Empty(t *testing.T) {
	require.Equal(t, 0.0, VWAP(nil, TopFraction))
	require.Equal(t, 0.0, VWAP([]domain.PriceLevel{}, TopFraction))
}

func TestVWAP_ZeroTotalQuantity(t *testing.T) {
	levels := []domain.PriceLevel{{Price: 100, Quantity: 0}}
	require.Equal(t, 0.0, VWAP(levels, TopFraction))
}

func TestVWAP_TopFractionLevelCount(t *testing.T) {
	// 10 levels at 10% → ceil(1.0) = 1 level: VWAP is the top price.
	levels := make([]domain.PriceLevel, 10)
	for i := range levels {
		levels[i] = domain.PriceLevel{Price: 100 - float64(i), Quantity: 1}
	}
	require.Equal(t, 100.0, VWAP(levels, 0.10))

	// 15 levels at 10% → ceil(1.5) = 2 levels.
	levels = make([]domain.PriceLevel, 15)
	for i := range levels {
		levels[i] = domain.PriceLevel{Price: 100 - float64(i), Quantity: 1}
	}
	require.Equal(t, 99.5, VWAP(levels, 0.10))
}

func TestVWAP_QuantityWeighting(t *testing.T) {
	levels := []domain.PriceLevel{
		{Price: 100, Quantity: 1},
		{Price: 200, Quantity: 3},
	}
	// Both levels included at fraction 1.0.
	require.Equal(t, 175.0, VWAP(levels, 1.0))
}

func TestVolumeUSD(t *testing.T) {
	levels := []domain.PriceLevel{
		{Price: 100, Quantity: 1},
		{Price: 99.5, Quantity: 2},
	}
	require.Equal(t, 299.0, VolumeUSD(levels))
	require.Equal(t, 0.0, VolumeUSD(nil))
}

func TestSpreadPct(t *testing.T) {
	require.Equal(t, 0.0, SpreadPct(0, 101))
	require.InDelta(t, 1.0, SpreadPct(100, 101), 1e-12)
}

func TestCompose(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := domain.BookSnapshot{
		Symbol: "BTCUSDT",
		Bids: []domain.PriceLevel{
			{Price: 100, Quantity: 1},
			{Price: 99.5, Quantity: 2},
		},
		Asks: []domain.PriceLevel{
			{Price: 101, Quantity: 1},
			{Price: 101.5, Quantity: 2},
		},
		LastTradePrice: 100.5,
		Timestamp:      ts,
	}

	rec := Compose(snap, ts)

	require.Equal(t, "BTCUSDT", rec.Symbol)
	require.Equal(t, ts, rec.Timestamp)
	require.Equal(t, 100.5, rec.Price)
	require.Equal(t, 299.0, rec.BidVolumeUSD)
	require.Equal(t, 304.0, rec.AskVolumeUSD)
	require.InDelta(t, 5.0, rec.NetVolumeUSD, 1e-12)

	// 2 levels at 10% → ceil(0.2) = 1 level per side.
	require.Equal(t, 100.0, rec.VWAPBid)
	require.Equal(t, 101.0, rec.VWAPAsk)
	require.InDelta(t, 1.0, rec.SpreadPct, 1e-12)
}

func TestCompose_EmptyBook(t *testing.T) {
	ts := time.Now()
	rec := Compose(domain.BookSnapshot{Symbol: "BTCUSDT", Timestamp: ts}, ts)

	require.Equal(t, 0.0, rec.BidVolumeUSD)
	require.Equal(t, 0.0, rec.AskVolumeUSD)
	require.Equal(t, 0.0, rec.NetVolumeUSD)
	require.Equal(t, 0.0, rec.SpreadPct)
}
