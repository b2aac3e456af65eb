package pipeline

import (
	"fmt"

	"github.com/aristath/arduino-trader/internal/ecs"
)

// StrategyRunner invokes each registered strategy's systems in declared
// order, passing the ledgers for its assets plus its combined ledger last
// (spec §4.3). A strategy with OnlyDay set is skipped entirely on ticks
// outside the trading day.
type StrategyRunner struct{}

func (s *StrategyRunner) Name() string { return "StrategyRunner" }

func (s *StrategyRunner) Run(ctx *Context) error {
	now := clockTime(ctx.Main)
	for _, strat := range ctx.Strategies {
		if strat.OnlyDay && !ctx.withinTradingDay(now) {
			continue
		}
		assets, err := resolveAssets(ctx, strat.Tickers)
		if err != nil {
			return fmt.Errorf("strategy %s: %w", strat.StrategyName, err)
		}
		combined := ctx.Assets[strat.CombinedID()]
		for _, sys := range strat.Systems {
			if err := sys.Run(assets, combined, ctx.Main); err != nil {
				return fmt.Errorf("strategy %s system %s: %w", strat.StrategyName, sys.Name(), err)
			}
		}
	}
	return nil
}

func resolveAssets(ctx *Context, tickers []string) ([]*ecs.Ledger, error) {
	out := make([]*ecs.Ledger, len(tickers))
	for i, ticker := range tickers {
		l, ok := ctx.Assets[ticker]
		if !ok {
			return nil, fmt.Errorf("no asset ledger registered for %s", ticker)
		}
		out[i] = l
	}
	return out, nil
}
