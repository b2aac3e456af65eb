package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/arduino-trader/internal/broker"
	"github.com/aristath/arduino-trader/internal/components"
	"github.com/aristath/arduino-trader/internal/ecs"
)

func newTestContext(t *testing.T, start time.Time, dt time.Duration) (*Context, *broker.HistoricalBroker) {
	t.Helper()
	main := ecs.New("main")
	_, err := ecs.SetSingleton(main, start, components.Cash{Cash: 10000})
	require.NoError(t, err)
	_, err = ecs.SetSingleton(main, start, components.Clock{Time: start, DTime: dt})
	require.NoError(t, err)

	cache := broker.NewDataCache()
	cache.Put("AAPL", broker.Bar{Time: start, Close: 100})
	cache.Put("AAPL", broker.Bar{Time: start.Add(dt), Close: 101})
	b := broker.NewHistoricalBroker(start, dt, cache, broker.FeeModel{FeePerShare: 0.01})

	return &Context{Main: main, Assets: map[string]*ecs.Ledger{}, Broker: b}, b
}

func TestPurchaseFlowsThroughPurchaserFillerAndSnapshotter(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	dt := time.Minute
	ctx, _ := newTestContext(t, start, dt)

	e := ctx.Main.Create(start)
	ecs.Attach(ctx.Main, e, components.Purchase{Ticker: "AAPL", Quantity: 10})

	systems := MainStage(context.Background())
	require.NoError(t, Run(systems, ctx))

	order, ok := ecs.Get[components.Order](ctx.Main, e)
	require.True(t, ok)
	assert.Equal(t, "filled", order.Status)

	filled, ok := ecs.Get[components.Filled](ctx.Main, e)
	require.True(t, ok)
	assert.InDelta(t, 101, filled.FilledAvgPrice, 1e-9)

	positions := ecs.All[components.Position](ctx.Main)
	require.Len(t, positions, 1)
	pos, _ := ecs.Get[components.Position](ctx.Main, positions[0])
	assert.Equal(t, "AAPL", pos.Ticker)
	assert.InDelta(t, 10, pos.Quantity, 1e-9)

	cash, _, err := ecs.Singleton[components.Cash](ctx.Main)
	require.NoError(t, err)
	assert.Less(t, cash.Cash, 10000.0)

	snaps := ecs.All[components.PortfolioSnapshot](ctx.Main)
	require.Len(t, snaps, 1)
}

func TestPurchaserRetriesOnInsufficientQty(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	dt := time.Minute
	ctx, b := newTestContext(t, start, dt)
	b.AvailableQty = map[string]float64{"AAPL": 7}

	e := ctx.Main.Create(start)
	ecs.Attach(ctx.Main, e, components.Purchase{Ticker: "AAPL", Quantity: 10})

	p := &Purchaser{bg: context.Background()}
	require.NoError(t, p.Run(ctx))

	order, ok := ecs.Get[components.Order](ctx.Main, e)
	require.True(t, ok)
	assert.Equal(t, "filled", order.Status)
	assert.InDelta(t, 7, order.RequestedQuantity, 1e-9)
}

func TestPurchaserFillsZeroQuantityWithoutTreatingItAsRetryExhaustion(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	dt := time.Minute
	ctx, _ := newTestContext(t, start, dt)

	e := ctx.Main.Create(start)
	ecs.Attach(ctx.Main, e, components.Purchase{Ticker: "AAPL", Quantity: 0})

	p := &Purchaser{bg: context.Background()}
	require.NoError(t, p.Run(ctx))

	order, ok := ecs.Get[components.Order](ctx.Main, e)
	require.True(t, ok)
	assert.Equal(t, "filled", order.Status)
	assert.InDelta(t, 0, order.FilledQty, 1e-9)

	positions := ecs.All[components.Position](ctx.Main)
	assert.Len(t, positions, 0)
}

func TestPurchasePowerSnapshotMirrorsCashAtTickStart(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	ctx, _ := newTestContext(t, start, time.Minute)

	s := &PurchasePowerSnapshotter{}
	require.NoError(t, s.Run(ctx))

	pp, _, err := ecs.Singleton[components.PurchasePower](ctx.Main)
	require.NoError(t, err)
	assert.InDelta(t, 10000, pp.Cash, 1e-9)
}

func TestFillerReconcilesAsyncOrderUpdate(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	ctx, _ := newTestContext(t, start, time.Minute)

	e := ctx.Main.Create(start)
	ecs.Attach(ctx.Main, e, components.Order{
		Ticker: "AAPL", Side: components.Buy, RequestedQuantity: 10,
		BrokerOrderID: "live-1", Status: "submitted", SubmittedAt: start,
	})

	f := &Filler{}
	require.NoError(t, f.Run(ctx)) // indexes the pending order, no fill yet (status not "filled")

	positions := ecs.All[components.Position](ctx.Main)
	assert.Len(t, positions, 0)

	upd := ctx.Main.Create(start.Add(30 * time.Second))
	ecs.Attach(ctx.Main, upd, components.OrderUpdate{
		BrokerOrderID: "live-1", Status: "filled", FilledQty: 10, FilledAvgPrice: 102,
	})
	require.NoError(t, f.Run(ctx))

	order, ok := ecs.Get[components.Order](ctx.Main, e)
	require.True(t, ok)
	assert.Equal(t, "filled", order.Status)

	positions = ecs.All[components.Position](ctx.Main)
	require.Len(t, positions, 1)
	pos, _ := ecs.Get[components.Position](ctx.Main, positions[0])
	assert.InDelta(t, 10, pos.Quantity, 1e-9)

	filled, ok := ecs.Get[components.Filled](ctx.Main, e)
	require.True(t, ok)
	assert.InDelta(t, 102, filled.FilledAvgPrice, 1e-9)
}

type noopStrategySystem struct {
	name       string
	resetCalls *int
}

func (n *noopStrategySystem) Name() string { return n.name }
func (n *noopStrategySystem) Run(assets []*ecs.Ledger, combined, main *ecs.Ledger) error {
	return nil
}
func (n *noopStrategySystem) ResetDayMarks(assets []*ecs.Ledger, combined *ecs.Ledger) {
	*n.resetCalls++
}

func TestDayCloserResetsMarksOnlyAcrossDayBoundary(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
	ctx, _ := newTestContext(t, start, time.Minute)
	calls := 0
	ctx.Strategies = []*Strategy{{
		StrategyName: "s",
		Tickers:      []string{"AAPL"},
		Systems:      []StrategySystem{&noopStrategySystem{name: "n", resetCalls: &calls}},
	}}
	ctx.Assets["AAPL"] = ecs.New("AAPL")

	d := &DayCloser{}
	require.NoError(t, d.Run(ctx)) // first tick: just records the day
	assert.Equal(t, 0, calls)

	require.NoError(t, setClockTimeOnly(ctx.Main, start.Add(30*time.Minute)))
	require.NoError(t, d.Run(ctx)) // same day
	assert.Equal(t, 0, calls)

	nextDay := start.Add(24 * time.Hour)
	require.NoError(t, setClockTimeOnly(ctx.Main, nextDay))
	require.NoError(t, d.Run(ctx)) // crosses into day 2
	assert.Equal(t, 1, calls)
}
