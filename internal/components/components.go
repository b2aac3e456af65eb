// Package components holds the bookkeeping and order-lifecycle component
// types attached to entities in the main ledger (spec §2/§3). Primitive
// bars and derived indicators live as scalar ecs.Key columns instead
// (internal/ecs, internal/indicators) since they are parametrised by
// horizon and source series; these types are not, so they are plain typed
// components addressed by Go type the ordinary ecs.Attach/Get way.
package components

import "time"

// Clock is the main ledger's singleton wall/virtual clock.
type Clock struct {
	Time  time.Time
	DTime time.Duration
}

// Cash is the main ledger's singleton cash balance.
type Cash struct {
	Cash float64
}

// PurchasePower is the main ledger's singleton buying-power snapshot,
// refreshed from Cash at the start of every main tick, before any system
// runs (spec §4.3, §9 Open Question resolution). Strategies read this, not
// Cash, when sizing orders.
type PurchasePower struct {
	Cash float64
}

// Position tracks the signed quantity held in one ticker. Exactly one
// exists per ticker any strategy observes (spec §3 invariant).
type Position struct {
	Ticker   string
	Quantity float64
}

// PortfolioSnapshot is emitted once per tick by SnapShotter.
type PortfolioSnapshot struct {
	Time  time.Time
	Value float64
	Cash  float64
}

// Side distinguishes a buy-side intent/order from a sell-side one.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Purchase is a buy intent emitted by a strategy, not yet submitted.
type Purchase struct {
	Ticker   string
	Quantity float64
}

// Sale is a sell intent emitted by a strategy, not yet submitted.
type Sale struct {
	Ticker   string
	Quantity float64
}

// Order is attached once Purchaser/Seller submits the intent to the
// broker. A failed submission attaches an Order whose Status begins
// "failed\n" and whose FilledQty is zero — an explicitly permitted
// terminal form (spec §4.3).
type Order struct {
	Ticker             string
	Side               Side
	RequestedQuantity  float64
	BrokerOrderID      string
	Status             string
	FilledQty          float64
	FilledAvgPrice     float64
	SubmittedAt        time.Time
}

// OrderUpdate is attached by the live-mode trading task when an
// out-of-band order-update stream message arrives for an order already
// submitted (spec §5, §6): a new entity, not a mutation of the original
// Order entity, so the ordinary NewSince change-tracking mechanism can
// still discover it. Filler reconciles it against the original Order
// entity by BrokerOrderID.
type OrderUpdate struct {
	BrokerOrderID  string
	Status         string
	FilledQty      float64
	FilledAvgPrice float64
}

// Filled is attached by Filler once an Order's status reaches "filled".
type Filled struct {
	Ticker         string
	Side           Side
	FilledQty      float64
	FilledAvgPrice float64
	Fee            float64
	Time           time.Time
}
