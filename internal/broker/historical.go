package broker

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/arduino-trader/internal/components"
)

// HistoricalBroker replays a DataCache against a virtual Clock, filling
// orders at the next price slot (clock.Time+clock.DTime) under the
// configured FeeModel (spec §4.4). AvailableQty and BuyingPower are
// optional constraints a back-test can configure to exercise the
// Purchaser/Seller retry rules (spec §4.3, §8 scenario 5); both are
// unconstrained (no rejection) when left at their zero value.
type HistoricalBroker struct {
	mu    sync.Mutex
	clock components.Clock
	cache *DataCache
	fee   FeeModel

	// AvailableQty, if set for a ticker, rejects a buy whose quantity is
	// larger than it with "insufficient qty available for order
	// (available: N)". Sell orders are not checked against it.
	AvailableQty map[string]float64
	// BuyingPower, if non-zero, rejects a buy whose notional exceeds it with
	// "insufficient day-trading buying power".
	BuyingPower float64

	nextID uint64
	orders map[string]OrderResponse
}

// NewHistoricalBroker constructs a broker seeded at start and driven by dt
// per tick, reading prices from cache and charging fee.
func NewHistoricalBroker(start time.Time, dt time.Duration, cache *DataCache, fee FeeModel) *HistoricalBroker {
	return &HistoricalBroker{
		clock:  components.Clock{Time: start, DTime: dt},
		cache:  cache,
		fee:    fee,
		orders: make(map[string]OrderResponse),
	}
}

// Advance moves the virtual clock forward by its configured DTime — called
// by the pipeline's Timer system once per tick in historical mode.
func (b *HistoricalBroker) Advance() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock.Time = b.clock.Time.Add(b.clock.DTime)
}

// Clock returns the broker's current virtual clock.
func (b *HistoricalBroker) Clock() components.Clock {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clock
}

func (b *HistoricalBroker) CurrentTime(ctx context.Context) (time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.clock.Time, nil
}

func (b *HistoricalBroker) CurrentPrice(ctx context.Context, ticker string) (float64, error) {
	b.mu.Lock()
	t := b.clock.Time
	b.mu.Unlock()
	bar, ok := b.cache.LastBarAt(ticker, t)
	if !ok {
		return 0, fmt.Errorf("no price data for %s at or before %s", ticker, t)
	}
	return bar.Close, nil
}

func (b *HistoricalBroker) nextOrderID() string {
	b.nextID++
	return fmt.Sprintf("hist-%d", b.nextID)
}

// SubmitOrder resolves a fill at clock.Time+clock.DTime, per spec §4.4.
// Constraint checks (AvailableQty, BuyingPower) and missing-price lookups
// all produce a failed Order rather than a Go error, per the error-handling
// design's "captured and attached" policy (spec §7 kinds 1-3); the request
// is not validated and the returned error is always nil.
func (b *HistoricalBroker) SubmitOrder(ctx context.Context, req SubmitRequest) (OrderResponse, error) {
	b.mu.Lock()
	now := b.clock.Time
	fillTime := b.clock.Time.Add(b.clock.DTime)
	avail, hasAvail := b.AvailableQty[req.Symbol]
	buyingPower := b.BuyingPower
	b.mu.Unlock()

	id := b.nextOrderID()
	resp := OrderResponse{
		Symbol:        req.Symbol,
		Side:          req.Side,
		ID:            id,
		ClientOrderID: uuid.NewString(),
		CreatedAt:     now,
		SubmittedAt:   now,
		Qty:           req.Qty,
	}

	if req.Side == components.Buy && hasAvail && req.Qty > avail {
		resp.Status = fmt.Sprintf("failed\ninsufficient qty available for order (available: %d)", int(avail))
		resp.FailedAt = now
		b.record(resp)
		return resp, nil
	}

	bar, ok := b.cache.BarAt(req.Symbol, fillTime)
	if !ok {
		resp.Status = fmt.Sprintf("failed\nno price data for %s at %s", req.Symbol, fillTime)
		resp.FailedAt = now
		b.record(resp)
		return resp, nil
	}

	if req.Side == components.Buy && buyingPower > 0 && math.Abs(req.Qty)*bar.Close > buyingPower {
		resp.Status = "failed\ninsufficient day-trading buying power"
		resp.FailedAt = now
		b.record(resp)
		return resp, nil
	}

	resp.Status = "filled"
	resp.FilledQty = req.Qty
	resp.FilledAvgPrice = bar.Close
	resp.FilledAt = fillTime
	resp.UpdatedAt = fillTime
	b.record(resp)
	return resp, nil
}

// Fee returns the fee a fill of qty shares at price would incur under the
// broker's configured model, capped per spec §4.4.
func (b *HistoricalBroker) Fee(qty, price float64) float64 {
	return b.fee.Compute(qty, price)
}

func (b *HistoricalBroker) record(resp OrderResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[resp.ID] = resp
}

// ReceiveOrder never produces an out-of-band update in historical mode: all
// state transitions happen synchronously inside SubmitOrder. It blocks
// until ctx is cancelled, matching the live broker's "may block/suspend"
// contract without ever actually firing.
func (b *HistoricalBroker) ReceiveOrder(ctx context.Context) (*OrderResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *HistoricalBroker) DeleteAllOrders(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = make(map[string]OrderResponse)
	return nil
}

func (b *HistoricalBroker) Trades(ctx context.Context, ticker string, start, stop time.Time) ([]Trade, error) {
	bars := b.cache.Range(ticker, start, stop)
	out := make([]Trade, len(bars))
	for i, bar := range bars {
		out[i] = Trade{Price: bar.Close, Qty: bar.Volume, Time: bar.Time}
	}
	return out, nil
}

func (b *HistoricalBroker) Bars(ctx context.Context, ticker string, start, stop time.Time, timeframe time.Duration) ([]Bar, error) {
	return b.cache.Range(ticker, start, stop), nil
}
