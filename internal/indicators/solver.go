package indicators

import "github.com/aristath/arduino-trader/internal/ecs"

// Registration is what a single indicator-key rule demands: prerequisite
// columns that must exist (and will themselves be ensured, possibly
// recursively, by a later pass) and the calculator systems that populate
// the key itself.
type Registration struct {
	Ensure  []ecs.Key
	Systems []ecs.System
}

// rulesFor maps a requested column key to its prerequisites and
// calculators, per the spec §4.2 registration table. Primitive bars
// (Close, Open, ...) and any key whose Kind is not one of the ten
// recognised indicator kinds have no rule and are left to whatever
// installed them directly (a data-feed system, for bars).
func rulesFor(k ecs.Key) (Registration, bool) {
	switch k.Kind {
	case "SMA":
		source := ecs.ParseKey(k.Source)
		return Registration{
			Ensure:  []ecs.Key{source},
			Systems: []ecs.System{smaSystem(k, source, k.Horizon)},
		}, true

	case "EMA":
		source := ecs.ParseKey(k.Source)
		return Registration{
			Ensure:  []ecs.Key{source},
			Systems: []ecs.System{newEMACalc(k, source, k.Horizon)},
		}, true

	case "MovingStdDev":
		source := ecs.ParseKey(k.Source)
		return Registration{
			Ensure:  []ecs.Key{source},
			Systems: []ecs.System{stdDevSystem(k, source, k.Horizon)},
		}, true

	case "Difference":
		source := ecs.ParseKey(k.Source)
		return Registration{
			Ensure:  []ecs.Key{source},
			Systems: []ecs.System{differenceSystem(k, source)},
		}, true

	case "RelativeDifference":
		source := ecs.ParseKey(k.Source)
		return Registration{
			Ensure:  []ecs.Key{source},
			Systems: []ecs.System{relativeDifferenceSystem(k, source)},
		}, true

	case "UpDown":
		source := ecs.ParseKey(k.Source)
		return Registration{
			Ensure:  []ecs.Key{source},
			Systems: []ecs.System{upDownSystem(k, source)},
		}, true

	case "LogVal":
		source := ecs.ParseKey(k.Source)
		return Registration{
			Ensure:  []ecs.Key{source},
			Systems: []ecs.System{logValSystem(k, source)},
		}, true

	case "RSI":
		// RSI<H,S> requires EMA<H,UpDown<Difference<S>>>, per the table.
		source := ecs.ParseKey(k.Source)
		diff := Difference(source)
		upd := UpDown(diff)
		ema := EMA(k.Horizon, upd)
		return Registration{
			Ensure:  []ecs.Key{ema},
			Systems: []ecs.System{newRSICalc(k, source, k.Horizon)},
		}, true

	case "Bollinger":
		source := ecs.ParseKey(k.Source)
		sma := SMA(k.Horizon, source)
		return Registration{
			Ensure:  []ecs.Key{sma, source},
			Systems: []ecs.System{bollingerSystem(k, source, k.Horizon)},
		}, true

	case "Sharpe":
		source := ecs.ParseKey(k.Source)
		sma := SMA(k.Horizon, source)
		sd := MovingStdDev(k.Horizon, source)
		return Registration{
			Ensure:  []ecs.Key{sma, sd},
			Systems: []ecs.System{sharpeSystem(k, source, k.Horizon)},
		}, true

	default:
		return Registration{}, false
	}
}

// EnsureSystems runs the registration table to a fixed point: every column
// reachable by repeatedly applying rulesFor to the ledger's current key
// set is declared (via EnsureKey) and given a calculator system in the
// "indicators" stage, and every prerequisite that declaration introduces
// is itself resolved on the next pass, until a pass changes neither the
// system count nor the component count (spec §4.2).
func EnsureSystems(l *ecs.Ledger) {
	stage := l.Stage("indicators")
	for {
		nSystems := len(stage.Systems)
		nComponents := len(l.Keys())

		for _, k := range l.Keys() {
			reg, ok := rulesFor(k)
			if !ok {
				continue
			}
			for _, need := range reg.Ensure {
				l.EnsureKey(need)
			}
			for _, sys := range reg.Systems {
				ecs.AddSystem(stage, sys)
			}
		}

		if len(stage.Systems) == nSystems && len(l.Keys()) == nComponents {
			return
		}
	}
}
