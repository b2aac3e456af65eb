package pipeline

import (
	"time"

	"github.com/aristath/arduino-trader/internal/components"
	"github.com/aristath/arduino-trader/internal/ecs"
)

// PurchasePowerSnapshotter runs first in the main stage, per the resolved
// Open Question in spec §9: PurchasePower.cash is refreshed from Cash.cash
// at the start of every tick, before any strategy or fill system runs, so
// sizing decisions never see a stale or mid-tick value.
type PurchasePowerSnapshotter struct{}

func (s *PurchasePowerSnapshotter) Name() string { return "PurchasePowerSnapshotter" }

func (s *PurchasePowerSnapshotter) Run(ctx *Context) error {
	cash, _, err := ecs.Singleton[components.Cash](ctx.Main)
	if err != nil {
		return err
	}
	if _, _, err := ecs.Singleton[components.PurchasePower](ctx.Main); err != nil {
		_, setErr := ecs.SetSingleton(ctx.Main, clockTime(ctx.Main), components.PurchasePower{Cash: cash.Cash})
		return setErr
	}
	return ecs.UpdateSingleton(ctx.Main, func(p *components.PurchasePower) {
		p.Cash = cash.Cash
	})
}

// clockTime returns the main ledger's Clock.Time, or the zero time if no
// Clock singleton has been installed yet (the very first tick).
func clockTime(main *ecs.Ledger) (t time.Time) {
	clock, _, err := ecs.Singleton[components.Clock](main)
	if err != nil {
		return t
	}
	return clock.Time
}
