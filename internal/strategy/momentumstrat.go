package strategy

import (
	"fmt"

	"github.com/aristath/arduino-trader/internal/ecs"
	"github.com/aristath/arduino-trader/internal/indicators"
)

// MomentumStrat is a single-ticker strategy reading RSI<H,Close> and
// Bollinger<H,Close>: it buys on an oversold-band cross (RSI and %B both
// low) and sells on an overbought-band cross (both high). Exercises the
// RSI and Bollinger registration rules end to end, alongside PairStrat's
// SMA/MovingStdDev rules, so the solver is proven over more than one
// component shape (SPEC_FULL §4.5).
type MomentumStrat struct {
	StratName        string
	Ticker           string
	Horizon          int
	RSIOversold      float64
	RSIOverbought    float64
	BollingerLowBand float64
	BollingerHiBand  float64
	BaseQty          float64
}

func (m *MomentumStrat) Name() string { return "MomentumStrat:" + m.StratName }

func (m *MomentumStrat) Run(assets []*ecs.Ledger, combined *ecs.Ledger, main *ecs.Ledger) error {
	if len(assets) != 1 {
		return fmt.Errorf("%s: expected exactly 1 asset ledger, got %d", m.Name(), len(assets))
	}
	asset := assets[0]
	closeKey := ecs.Bar("Close")
	rsiKey := indicators.RSI(m.Horizon, closeKey)
	bollKey := indicators.Bollinger(m.Horizon, closeKey)
	asset.EnsureKey(rsiKey)
	asset.EnsureKey(bollKey)

	for _, e := range asset.NewValuesSinceMulti(m.Name(), rsiKey, bollKey) {
		rsi, ok1 := asset.Value(rsiKey, e)
		boll, ok2 := asset.Value(bollKey, e)
		if !ok1 || !ok2 {
			continue
		}
		pos := positionQty(main, m.Ticker)
		ts := entityTime(asset, e)

		switch {
		case rsi <= m.RSIOversold && boll <= m.BollingerLowBand && pos <= 0:
			emitPurchase(main, ts, m.Ticker, m.BaseQty)
		case rsi >= m.RSIOverbought && boll >= m.BollingerHiBand && pos > 0:
			emitSale(main, ts, m.Ticker, pos)
		}
	}
	return nil
}

func (m *MomentumStrat) ResetDayMarks(assets []*ecs.Ledger, combined *ecs.Ledger) {
	if len(assets) != 1 {
		return
	}
	closeKey := ecs.Bar("Close")
	assets[0].ResetValueMark(m.Name(), indicators.RSI(m.Horizon, closeKey))
	assets[0].ResetValueMark(m.Name(), indicators.Bollinger(m.Horizon, closeKey))
}
