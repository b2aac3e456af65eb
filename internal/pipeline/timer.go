package pipeline

import (
	"context"
	"time"

	"github.com/aristath/arduino-trader/internal/broker"
	"github.com/aristath/arduino-trader/internal/components"
	"github.com/aristath/arduino-trader/internal/ecs"
)

// Timer advances Clock.time by Clock.dtime in historical mode; in live mode
// it merely publishes the broker's current instant (spec §4.3).
type Timer struct{ bg context.Context }

func (t *Timer) Name() string { return "Timer" }

func (t *Timer) Run(ctx *Context) error {
	if hb, ok := ctx.Broker.(*broker.HistoricalBroker); ok {
		hb.Advance()
		clk := hb.Clock()
		return setClock(ctx.Main, clk.Time, clk.DTime)
	}

	now, err := ctx.Broker.CurrentTime(t.bg)
	if err != nil {
		return err
	}
	return setClockTimeOnly(ctx.Main, now)
}

func setClock(main *ecs.Ledger, t0 time.Time, dt time.Duration) error {
	if _, _, err := ecs.Singleton[components.Clock](main); err != nil {
		_, setErr := ecs.SetSingleton(main, t0, components.Clock{Time: t0, DTime: dt})
		return setErr
	}
	return ecs.UpdateSingleton(main, func(c *components.Clock) {
		c.Time = t0
		c.DTime = dt
	})
}

func setClockTimeOnly(main *ecs.Ledger, t0 time.Time) error {
	if _, _, err := ecs.Singleton[components.Clock](main); err != nil {
		_, setErr := ecs.SetSingleton(main, t0, components.Clock{Time: t0})
		return setErr
	}
	return ecs.UpdateSingleton(main, func(c *components.Clock) {
		c.Time = t0
	})
}
