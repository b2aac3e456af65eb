package pipeline

import (
	"context"

	"github.com/aristath/arduino-trader/internal/components"
	"github.com/aristath/arduino-trader/internal/ecs"
)

// SnapShotter emits a PortfolioSnapshot at the end of every tick whose
// value is cash plus the mark-to-market value of every open position
// (spec §4.3).
type SnapShotter struct{ bg context.Context }

func (s *SnapShotter) Name() string { return "SnapShotter" }

func (s *SnapShotter) Run(ctx *Context) error {
	cash, _, err := ecs.Singleton[components.Cash](ctx.Main)
	if err != nil {
		return err
	}

	value := cash.Cash
	for _, e := range ecs.All[components.Position](ctx.Main) {
		pos, ok := ecs.Get[components.Position](ctx.Main, e)
		if !ok || pos.Quantity == 0 {
			continue
		}
		price, err := ctx.Broker.CurrentPrice(s.bg, pos.Ticker)
		if err != nil {
			continue // no price this tick; position simply doesn't contribute
		}
		value += price * pos.Quantity
	}

	now := clockTime(ctx.Main)
	snap := ctx.Main.Create(now)
	ecs.Attach(ctx.Main, snap, components.PortfolioSnapshot{Time: now, Value: value, Cash: cash.Cash})
	return nil
}
