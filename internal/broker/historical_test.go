package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/components"
)

func TestFeeCapIsEnforced(t *testing.T) {
	fee := FeeModel{FeePerShare: 1.0}
	// naive = 100*1.0 = 100; cap = 0.005*100*10 = 5
	assert.InDelta(t, 5.0, fee.Compute(100, 10), 1e-9)
}

func TestFeeBelowCapIsUnaffected(t *testing.T) {
	fee := FeeModel{FeePerShare: 0.001}
	// naive = 100*0.001 = 0.1; cap = 5 -> naive wins
	assert.InDelta(t, 0.1, fee.Compute(100, 10), 1e-9)
}

func TestHistoricalSubmitFillsAtNextSlot(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	dt := time.Minute
	cache := NewDataCache()
	cache.Put("AAPL", Bar{Time: start, Close: 100})
	cache.Put("AAPL", Bar{Time: start.Add(dt), Close: 101})

	b := NewHistoricalBroker(start, dt, cache, FeeModel{FeePerShare: 0.01})
	resp, err := b.SubmitOrder(context.Background(), SubmitRequest{Symbol: "AAPL", Qty: 10, Side: components.Buy})
	require.NoError(t, err)
	assert.Equal(t, "filled", resp.Status)
	assert.InDelta(t, 101, resp.FilledAvgPrice, 1e-9)
	assert.Equal(t, start.Add(dt), resp.FilledAt)
}

func TestHistoricalSubmitRejectsInsufficientQty(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	dt := time.Minute
	cache := NewDataCache()
	cache.Put("AAPL", Bar{Time: start.Add(dt), Close: 100})

	b := NewHistoricalBroker(start, dt, cache, FeeModel{})
	b.AvailableQty = map[string]float64{"AAPL": 7}

	resp, err := b.SubmitOrder(context.Background(), SubmitRequest{Symbol: "AAPL", Qty: 10, Side: components.Buy})
	require.NoError(t, err)
	assert.Contains(t, resp.Status, "insufficient qty available for order (available: 7)")

	resp, err = b.SubmitOrder(context.Background(), SubmitRequest{Symbol: "AAPL", Qty: 7, Side: components.Buy})
	require.NoError(t, err)
	assert.Equal(t, "filled", resp.Status)
	assert.InDelta(t, 7, resp.Qty, 1e-9)
}

func TestHistoricalSubmitMissingPriceFails(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	b := NewHistoricalBroker(start, time.Minute, NewDataCache(), FeeModel{})

	resp, err := b.SubmitOrder(context.Background(), SubmitRequest{Symbol: "GHOST", Qty: 1, Side: components.Buy})
	require.NoError(t, err)
	assert.Contains(t, resp.Status, "failed")
}
