package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/components"
	"github.com/aristath/arduino-trader/internal/ecs"
)

func putBar(l *ecs.Ledger, ts time.Time, close float64) ecs.EntityID {
	e := l.Create(ts)
	l.PutValue(ecs.Bar("Close"), e, close)
	return e
}

func TestPairStratComputesSpread(t *testing.T) {
	assetA := ecs.New("A")
	assetB := ecs.New("B")
	combined := ecs.New("A_B")
	main := ecs.New("main")

	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	closesA := []float64{10, 11, 12}
	closesB := []float64{5, 6, 7}

	p := &PairStrat{PairName: "AB", TickerA: "A", TickerB: "B", Gamma: 1.0, Horizon: 3, ZThreshold: 100, BaseQty: 1}

	for i := range closesA {
		ts := base.Add(time.Duration(i) * time.Minute)
		putBar(assetA, ts, closesA[i])
		putBar(assetB, ts, closesB[i])
		require.NoError(t, p.Run([]*ecs.Ledger{assetA, assetB}, combined, main))
	}

	values := combined.SeriesValues(spreadKey(p.pairID()))
	require.Len(t, values, 3)
	for _, v := range values {
		assert.InDelta(t, 5.0, v, 1e-9)
	}
}

func TestPairStratEmitsPairOnZScoreCrossing(t *testing.T) {
	assetA := ecs.New("A")
	assetB := ecs.New("B")
	combined := ecs.New("A_B")
	main := ecs.New("main")

	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	// closeB constant at 100, closeA chosen so spread = closeA-closeB = 8,10,12,15.
	closesA := []float64{108, 110, 112, 115}

	p := &PairStrat{PairName: "AB", TickerA: "A", TickerB: "B", Gamma: 1.0, Horizon: 3, ZThreshold: 2.0, BaseQty: 10}

	for i, closeA := range closesA {
		ts := base.Add(time.Duration(i) * time.Minute)
		putBar(assetA, ts, closeA)
		putBar(assetB, ts, 100)
		require.NoError(t, p.Run([]*ecs.Ledger{assetA, assetB}, combined, main))
	}

	purchases := ecs.All[components.Purchase](main)
	sales := ecs.All[components.Sale](main)
	require.Len(t, purchases, 1)
	require.Len(t, sales, 1)

	purchase, _ := ecs.Get[components.Purchase](main, purchases[0])
	sale, _ := ecs.Get[components.Sale](main, sales[0])
	assert.Equal(t, "A", purchase.Ticker)
	assert.InDelta(t, 10, purchase.Quantity, 1e-9)
	assert.Equal(t, "B", sale.Ticker)
	assert.InDelta(t, 12, sale.Quantity, 1e-9) // round(10*115*1/100)
}

func TestPairStratSkipsCrossingWhenLegsHaveDecoupled(t *testing.T) {
	assetA := ecs.New("A")
	assetB := ecs.New("B")
	combined := ecs.New("A_B")
	main := ecs.New("main")

	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	// A rises while B falls: the two legs are anti-correlated, not
	// co-moving, so a wide gate should veto the trade even though the
	// spread still crosses ZThreshold.
	closesA := []float64{108, 110, 112, 115}
	closesB := []float64{100, 98, 96, 94}

	p := &PairStrat{
		PairName: "AB", TickerA: "A", TickerB: "B", Gamma: 1.0, Horizon: 3,
		ZThreshold: 2.0, BaseQty: 10, MinCorrelation: 0.9,
	}

	for i, closeA := range closesA {
		ts := base.Add(time.Duration(i) * time.Minute)
		putBar(assetA, ts, closeA)
		putBar(assetB, ts, closesB[i])
		require.NoError(t, p.Run([]*ecs.Ledger{assetA, assetB}, combined, main))
	}

	assert.Len(t, ecs.All[components.Purchase](main), 0)
	assert.Len(t, ecs.All[components.Sale](main), 0)
}

func TestPairStratSkipsWhenPairAlreadyOpen(t *testing.T) {
	assetA := ecs.New("A")
	assetB := ecs.New("B")
	combined := ecs.New("A_B")
	main := ecs.New("main")

	e := main.Create(time.Now())
	ecs.Attach(main, e, components.Position{Ticker: "A", Quantity: 10})

	base := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	closesA := []float64{108, 110, 112, 115}
	p := &PairStrat{PairName: "AB", TickerA: "A", TickerB: "B", Gamma: 1.0, Horizon: 3, ZThreshold: 2.0, BaseQty: 10}

	for i, closeA := range closesA {
		ts := base.Add(time.Duration(i) * time.Minute)
		putBar(assetA, ts, closeA)
		putBar(assetB, ts, 100)
		require.NoError(t, p.Run([]*ecs.Ledger{assetA, assetB}, combined, main))
	}

	assert.Len(t, ecs.All[components.Purchase](main), 0)
	assert.Len(t, ecs.All[components.Sale](main), 0)
}
