// Package pipeline implements the main-stage orchestration of spec §4.3:
// StrategyRunner, Purchaser, Seller, Filler, SnapShotter, Timer and
// DayCloser run in that fixed order against the main ledger, the per-asset
// and combined asset ledgers, and a broker.Broker. Grounded on the
// teacher's internal/modules system-ordering idiom (a fixed slice of named
// steps run in sequence against shared dependencies), generalised from
// portfolio-evaluation steps to ledger-pipeline stages.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/aristath/arduino-trader/internal/broker"
	"github.com/aristath/arduino-trader/internal/ecs"
)

// StrategySystem is one computation step of a Strategy: it reads bars and
// indicators from the strategy's asset ledgers and combined ledger and may
// emit Purchase/Sale entities into the main ledger.
type StrategySystem interface {
	Name() string
	Run(assets []*ecs.Ledger, combined *ecs.Ledger, main *ecs.Ledger) error
	// ResetDayMarks moves any new_entities high-water marks the system
	// keeps on assets/combined up to the current end of their columns, so
	// day N+1 starts with a clean view
	// (spec §4.3 DayCloser, §8 scenario 6).
	ResetDayMarks(assets []*ecs.Ledger, combined *ecs.Ledger)
}

// Strategy binds a name to an ordered list of systems and the asset
// identifiers it observes (spec §6 strategy configuration surface).
type Strategy struct {
	StrategyName string
	Tickers      []string
	OnlyDay      bool
	Systems      []StrategySystem
}

// CombinedID is the join of Tickers with "_", identifying the strategy's
// combined ledger.
func (s *Strategy) CombinedID() string { return strings.Join(s.Tickers, "_") }

// Context is the shared dependency set every main-stage system runs
// against: the main ledger, every asset/combined ledger keyed by
// identifier, the broker, and the registered strategies.
type Context struct {
	Main       *ecs.Ledger
	Assets     map[string]*ecs.Ledger
	Broker     broker.Broker
	Strategies []*Strategy

	// TradingDayStart/End bound the trading day as an offset from
	// midnight, used to evaluate a Strategy's OnlyDay flag. Both zero means
	// every tick counts as "within the trading day".
	TradingDayStart time.Duration
	TradingDayEnd   time.Duration
}

func (c *Context) withinTradingDay(t time.Time) bool {
	if c.TradingDayStart == 0 && c.TradingDayEnd == 0 {
		return true
	}
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	sinceOpen := t.Sub(midnight)
	return sinceOpen >= c.TradingDayStart && sinceOpen < c.TradingDayEnd
}

// System is one step of the main stage.
type System interface {
	Name() string
	Run(ctx *Context) error
}

// MainStage returns the fixed main-stage system order (spec §4.3),
// wired against bg for broker calls that need a context.Context (the
// ledger-level Context above carries no cancellation of its own).
func MainStage(bg context.Context) []System {
	return []System{
		&PurchasePowerSnapshotter{},
		&StrategyRunner{},
		&Purchaser{bg: bg},
		&Seller{bg: bg},
		&Filler{},
		&SnapShotter{bg: bg},
		&Timer{bg: bg},
		&DayCloser{},
	}
}

// Run executes every system of the main stage in order, aborting on the
// first error (spec §5: "within one main tick the stage order is total").
func Run(systems []System, ctx *Context) error {
	for _, sys := range systems {
		if err := sys.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}
