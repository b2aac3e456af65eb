// Package strategy ships the two strategies supplementing the distilled
// spec (SPEC_FULL §4.5): PairStrat, a pairs-trading mean-reversion
// strategy over a combined ledger, and MomentumStrat, a single-ticker
// RSI/Bollinger strategy. Both implement pipeline.StrategySystem
// structurally (same Name/Run/ResetDayMarks shape) without importing
// internal/pipeline, mirroring the teacher's scorer-interface pattern in
// internal/modules/*/scorer.go: a package of pure computation against
// ledgers/components, wired by something higher up.
package strategy

import (
	"time"

	"github.com/aristath/arduino-trader/internal/components"
	"github.com/aristath/arduino-trader/internal/ecs"
)

// positionQty returns the current signed quantity held in ticker, or 0 if
// no Position entity exists for it yet (spec §9 Open Question: absent
// ticker reads as 0.0, not undefined).
func positionQty(main *ecs.Ledger, ticker string) float64 {
	for _, e := range ecs.All[components.Position](main) {
		if p, ok := ecs.Get[components.Position](main, e); ok && p.Ticker == ticker {
			return p.Quantity
		}
	}
	return 0
}

func emitPurchase(main *ecs.Ledger, at time.Time, ticker string, qty float64) {
	e := main.Create(at)
	ecs.Attach(main, e, components.Purchase{Ticker: ticker, Quantity: qty})
}

func emitSale(main *ecs.Ledger, at time.Time, ticker string, qty float64) {
	e := main.Create(at)
	ecs.Attach(main, e, components.Sale{Ticker: ticker, Quantity: qty})
}

func entityTime(source *ecs.Ledger, e ecs.EntityID) time.Time {
	t, _ := ecs.Get[ecs.TimeStamp](source, e)
	return t.Time
}

// appendCapped appends v to hist, trimming from the front so hist never
// holds more than limit values.
func appendCapped(hist []float64, v float64, limit int) []float64 {
	hist = append(hist, v)
	if len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	return hist
}
