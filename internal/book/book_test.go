package book

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/a7351220/BINANCE-TRADE/internal/domain"
)

func TestApplyDepth_ZeroQuantityRemovesLevel(t *testing.T) {
	b := New("BTCUSDT")

	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{
		{Price: 100, Quantity: 1.5},
		{Price: 99.5, Quantity: 2},
	})
	snap := b.Snapshot(0, time.Now())
	require.Len(t, snap.Bids, 2)

	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{
		{Price: 100, Quantity: 0},
	})
	snap = b.Snapshot(0, time.Now())
	require.Len(t, snap.Bids, 1)
	require.Equal(t, 99.5, snap.Bids[0].Price)
}

func TestApplyDepth_RemoveAbsentLevelIsNoop(t *testing.T) {
	b := New("BTCUSDT")

	b.ApplyDepth(domain.SideAsk, []domain.PriceLevel{
		{Price: 101, Quantity: 0},
	})
	snap := b.Snapshot(0, time.Now())
	require.Empty(t, snap.Asks)
}

func TestApplyDepth_ReapplySameLevelIsIdempotent(t *testing.T) {
	b := New("BTCUSDT")

	lv := []domain.PriceLevel{{Price: 100, Quantity: 3}}
	b.ApplyDepth(domain.SideBid, lv)
	b.ApplyDepth(domain.SideBid, lv)

	snap := b.Snapshot(0, time.Now())
	require.Len(t, snap.Bids, 1)
	require.Equal(t, 3.0, snap.Bids[0].Quantity)
}

func TestApplyDepth_OverwritesQuantity(t *testing.T) {
	b := New("BTCUSDT")

	b.ApplyDepth(domain.SideAsk, []domain.PriceLevel{{Price: 101, Quantity: 1}})
	b.ApplyDepth(domain.SideAsk, []domain.PriceLevel{{Price: 101, Quantity: 5}})

	snap := b.Snapshot(0, time.Now())
	require.Len(t, snap.Asks, 1)
	require.Equal(t, 5.0, snap.Asks[0].Quantity)
}

func TestSnapshot_Ordering(t *testing.T) {
	b := New("BTCUSDT")

	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{
		{Price: 99, Quantity: 1},
		{Price: 100, Quantity: 1},
		{Price: 99.5, Quantity: 1},
	})
	b.ApplyDepth(domain.SideAsk, []domain.PriceLevel{
		{Price: 102, Quantity: 1},
		{Price: 100.5, Quantity: 1},
		{Price: 101, Quantity: 1},
	})

	snap := b.Snapshot(0, time.Now())

	require.Equal(t, []float64{100, 99.5, 99}, prices(snap.Bids))
	require.Equal(t, []float64{100.5, 101, 102}, prices(snap.Asks))
}

func TestSnapshot_RangeFilter(t *testing.T) {
	b := New("BTCUSDT")

	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{
		{Price: 100, Quantity: 1},
		{Price: 90, Quantity: 1},
	})
	b.ApplyDepth(domain.SideAsk, []domain.PriceLevel{
		{Price: 101, Quantity: 1},
		{Price: 120, Quantity: 1},
	})
	b.ApplyTrade(100)

	snap := b.Snapshot(5, time.Now())
	require.Equal(t, []float64{100}, prices(snap.Bids))
	require.Equal(t, []float64{101}, prices(snap.Asks))

	// Without a range the full book comes back.
	snap = b.Snapshot(0, time.Now())
	require.Len(t, snap.Bids, 2)
	require.Len(t, snap.Asks, 2)
}

func TestSnapshot_RangeFilterNeedsTradePrice(t *testing.T) {
	b := New("BTCUSDT")

	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{
		{Price: 100, Quantity: 1},
		{Price: 50, Quantity: 1},
	})

	// No trade seen yet: the filter cannot anchor and the full book is used.
	snap := b.Snapshot(5, time.Now())
	require.Len(t, snap.Bids, 2)
}

func TestApplyTrade_IgnoresNonPositivePrice(t *testing.T) {
	b := New("BTCUSDT")

	b.ApplyTrade(100)
	b.ApplyTrade(0)
	b.ApplyTrade(-1)

	require.Equal(t, 100.0, b.LastTradePrice())
}

func TestRegistry_GetCreatesLazily(t *testing.T) {
	r := NewRegistry()

	b1 := r.Get("BTCUSDT")
	b2 := r.Get("BTCUSDT")
	require.Same(t, b1, b2)

	r.Get("ETHUSDT")
	require.ElementsMatch(t, []string{"BTCUSDT", "ETHUSDT"}, r.Symbols())
}

func prices(levels []domain.PriceLevel) []float64 {
	out := make([]float64, len(levels))
	for i, lv := range levels {
		out[i] = lv.Price
	}
	return out
}
