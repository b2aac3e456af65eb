package pipeline

import (
	"github.com/aristath/arduino-trader/internal/components"
	"github.com/aristath/arduino-trader/internal/ecs"
)

// FeeQuoter is implemented by brokers that can price a fill's fee
// independently of the fill itself (broker.HistoricalBroker does). Filler
// falls back to a zero fee for brokers that don't.
type FeeQuoter interface {
	Fee(qty, price float64) float64
}

// Filler attaches Filled to every Order whose status is "filled" and not
// yet Filled, and applies its effect to Position and Cash (spec §4.3). It
// also reconciles OrderUpdate entities the live trading task attaches for
// orders that filled asynchronously, after this system's own NewSince
// high-water mark has already passed the original Order entity — byBrokerID
// is the index that makes that reconciliation possible without rewinding
// any mark.
type Filler struct {
	byBrokerID map[string]ecs.EntityID
}

func (f *Filler) Name() string { return "Filler" }

func (f *Filler) Run(ctx *Context) error {
	if f.byBrokerID == nil {
		f.byBrokerID = make(map[string]ecs.EntityID)
	}

	for _, e := range ecs.NewSince[components.Order](ctx.Main, "Filler") {
		order, ok := ecs.Get[components.Order](ctx.Main, e)
		if !ok {
			continue
		}
		if order.BrokerOrderID != "" {
			f.byBrokerID[order.BrokerOrderID] = e
		}
		if order.Status != "filled" {
			continue
		}
		if err := f.applyFill(ctx, e, order); err != nil {
			return err
		}
	}

	for _, e := range ecs.NewSince[components.OrderUpdate](ctx.Main, "Filler") {
		upd, ok := ecs.Get[components.OrderUpdate](ctx.Main, e)
		if !ok || upd.Status != "filled" {
			continue
		}
		orderEntity, ok := f.byBrokerID[upd.BrokerOrderID]
		if !ok {
			continue // update for an order this Filler never indexed
		}
		order, ok := ecs.Get[components.Order](ctx.Main, orderEntity)
		if !ok || order.Status == "filled" {
			continue // already applied (or synchronously filled already)
		}
		order.Status = upd.Status
		order.FilledQty = upd.FilledQty
		order.FilledAvgPrice = upd.FilledAvgPrice
		ecs.Attach(ctx.Main, orderEntity, order)
		if err := f.applyFill(ctx, orderEntity, order); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filler) applyFill(ctx *Context, e ecs.EntityID, order components.Order) error {
	var fee float64
	if fq, ok := ctx.Broker.(FeeQuoter); ok {
		fee = fq.Fee(order.FilledQty, order.FilledAvgPrice)
	}

	ecs.Attach(ctx.Main, e, components.Filled{
		Ticker:         order.Ticker,
		Side:           order.Side,
		FilledQty:      order.FilledQty,
		FilledAvgPrice: order.FilledAvgPrice,
		Fee:            fee,
		Time:           order.SubmittedAt,
	})

	sign := 1.0
	if order.Side == components.Sell {
		sign = -1.0
	}
	pos := findOrCreatePosition(ctx.Main, order.Ticker)
	ecs.Update(ctx.Main, pos, func(p *components.Position) {
		p.Quantity += sign * order.FilledQty
	})

	notional := order.FilledQty * order.FilledAvgPrice
	return ecs.UpdateSingleton(ctx.Main, func(c *components.Cash) {
		if order.Side == components.Buy {
			c.Cash -= notional + fee
		} else {
			c.Cash += notional - fee
		}
	})
}

// findOrCreatePosition returns the single Position entity for ticker,
// creating one with zero quantity if none exists yet (spec §3 invariant:
// exactly one Position per observed ticker).
func findOrCreatePosition(main *ecs.Ledger, ticker string) ecs.EntityID {
	for _, e := range ecs.All[components.Position](main) {
		if p, ok := ecs.Get[components.Position](main, e); ok && p.Ticker == ticker {
			return e
		}
	}
	e := main.Create(clockTime(main))
	ecs.Attach(main, e, components.Position{Ticker: ticker, Quantity: 0})
	return e
}
