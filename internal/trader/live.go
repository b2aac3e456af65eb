package trader

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/arduino-trader/internal/components"
	"github.com/aristath/arduino-trader/internal/ecs"
)

// RunLive is the three-cooperative-task scheduling model of spec.md §5's
// live mode: a data task pulls new bars into the asset ledgers, a trading
// task drains the broker's order-update stream into OrderUpdate entities,
// and the main task ticks the pipeline when the main ledger signals new
// data and on a short poll. All three observe bg's cancellation as
// their stop flag; no lock is held across a suspension point (the
// suspending calls — Bars, ReceiveOrder, and the new-data wait — all run
// outside any ledger critical section).
//
// barPollInterval is how often the data task polls for new bars — the live broker
// interface has no subscription primitive of its own to block on, so
// polling stands in for the "bar subscription" suspension point named by
// spec.md §5.
func (t *Trader) RunLive(bg context.Context, barPollInterval time.Duration) error {
	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go t.dataTask(bg, &wg, errCh, barPollInterval)

	wg.Add(1)
	go t.tradingTask(bg, &wg, errCh)

	mainErr := t.mainTask(bg)

	wg.Wait()
	select {
	case err := <-errCh:
		if mainErr == nil {
			mainErr = err
		}
	default:
	}
	return mainErr
}

// dataTask polls the broker for new bars on a fixed interval and appends
// them to each ticker's asset ledger — the only suspension point is the
// poll wait and the Bars call itself, never a held ledger lock.
func (t *Trader) dataTask(bg context.Context, wg *sync.WaitGroup, errCh chan<- error, interval time.Duration) {
	defer wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-bg.Done():
			return
		case <-ticker.C:
			now, err := t.ctx.Broker.CurrentTime(bg)
			if err != nil {
				errCh <- err
				return
			}
			for _, tk := range t.tickers {
				if err := t.ingestBars(bg, tk, now); err != nil {
					errCh <- err
					return
				}
			}
		}
	}
}

// tradingTask drains the broker's order-update stream and attaches one
// OrderUpdate entity per message, letting the next main-task tick's Filler
// reconcile it against the original Order (spec §6: only
// stream=="trade_updates" messages carry a meaningful order).
func (t *Trader) tradingTask(bg context.Context, wg *sync.WaitGroup, errCh chan<- error) {
	defer wg.Done()
	for {
		resp, err := t.ctx.Broker.ReceiveOrder(bg)
		if err != nil {
			if bg.Err() != nil {
				return // cancellation, not a real error
			}
			errCh <- err
			return
		}
		if resp == nil {
			continue
		}
		at := resp.UpdatedAt
		if at.IsZero() {
			at = resp.FilledAt
		}
		if at.IsZero() {
			continue
		}
		e := t.ctx.Main.Create(at)
		ecs.Attach(t.ctx.Main, e, components.OrderUpdate{
			BrokerOrderID:  resp.ID,
			Status:         resp.Status,
			FilledQty:      resp.FilledQty,
			FilledAvgPrice: resp.FilledAvgPrice,
		})
	}
}

// mainTask ticks the pipeline every time the main ledger signals new data,
// and on every poll interval, until bg is cancelled; asset-ledger signals
// are not watched, so new bars are picked up by the poll. Spec.md §5 allows the
// main task to wait on the new-data event with a caller-supplied deadline;
// a short poll interval stands in for that deadline here since Go has no
// primitive to select across a dynamic, per-strategy set of channels
// without one case per channel.
func (t *Trader) mainTask(bg context.Context) error {
	const pollInterval = 50 * time.Millisecond
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-bg.Done():
			return nil
		case <-t.ctx.Main.NewData():
			if err := t.Tick(bg); err != nil {
				return err
			}
		case <-poll.C:
			if err := t.Tick(bg); err != nil {
				return err
			}
		}
	}
}
