package indicators

import (
	"math"

	"github.com/aristath/arduino-trader/internal/ecs"
	"github.com/aristath/arduino-trader/pkg/formulas"
)

// seriesCalc is a calculator system that, for every new entity of its
// source column, derives a scalar value and writes it to its output
// column. Most calculators in this file (SMA, MovingStdDev, Difference,
// RelativeDifference, UpDown, LogVal, Bollinger) are pure windowed
// functions of the source series and fit this shape; EMA and RSI keep
// their own state/implementation below since EMA is a recurrence and RSI
// delegates to go-talib.
type seriesCalc struct {
	name   string
	output ecs.Key
	source ecs.Key
	fn     func(values []float64, idx int) (float64, bool)
}

func (c *seriesCalc) Name() string { return c.name }

func (c *seriesCalc) Run(l *ecs.Ledger) error {
	news := l.NewValuesSince(c.name, c.source)
	if len(news) == 0 {
		return nil
	}
	series := l.Series(c.source)
	values := l.SeriesValues(c.source)
	for _, e := range news {
		idx := indexOf(series, e)
		if idx < 0 {
			continue
		}
		if v, ok := c.fn(values, idx); ok {
			l.PutValue(c.output, e, v)
		}
	}
	return nil
}

func indexOf(ids []ecs.EntityID, e ecs.EntityID) int {
	for i, x := range ids {
		if x == e {
			return i
		}
	}
	return -1
}

// smaSystem computes the arithmetic mean of the trailing horizon values of
// source via the teacher's pkg/formulas.Mean (gonum stat.Mean).
func smaSystem(output, source ecs.Key, horizon int) ecs.System {
	return &seriesCalc{
		name:   "sma:" + output.String(),
		output: output,
		source: source,
		fn: func(values []float64, idx int) (float64, bool) {
			if idx+1 < horizon {
				return 0, false
			}
			window := values[idx-horizon+1 : idx+1]
			return formulas.Mean(window), true
		},
	}
}

// stdDevSystem computes the sample standard deviation of the trailing
// horizon values of source via the teacher's pkg/formulas.StdDev (gonum
// stat.StdDev, unbiased).
func stdDevSystem(output, source ecs.Key, horizon int) ecs.System {
	return &seriesCalc{
		name:   "movingstddev:" + output.String(),
		output: output,
		source: source,
		fn: func(values []float64, idx int) (float64, bool) {
			if idx+1 < horizon {
				return 0, false
			}
			window := values[idx-horizon+1 : idx+1]
			return formulas.StdDev(window), true
		},
	}
}

func differenceSystem(output, source ecs.Key) ecs.System {
	return &seriesCalc{
		name:   "difference:" + output.String(),
		output: output,
		source: source,
		fn: func(values []float64, idx int) (float64, bool) {
			if idx == 0 {
				return 0, false
			}
			return values[idx] - values[idx-1], true
		},
	}
}

func relativeDifferenceSystem(output, source ecs.Key) ecs.System {
	return &seriesCalc{
		name:   "relativedifference:" + output.String(),
		output: output,
		source: source,
		fn: func(values []float64, idx int) (float64, bool) {
			if idx == 0 || values[idx-1] == 0 {
				return 0, false
			}
			return (values[idx] - values[idx-1]) / values[idx-1], true
		},
	}
}

// upDownSystem separates a (typically Difference-valued) source into a
// directional sign: +1 up, -1 down, 0 unchanged.
func upDownSystem(output, source ecs.Key) ecs.System {
	return &seriesCalc{
		name:   "updown:" + output.String(),
		output: output,
		source: source,
		fn: func(values []float64, idx int) (float64, bool) {
			switch v := values[idx]; {
			case v > 0:
				return 1, true
			case v < 0:
				return -1, true
			default:
				return 0, true
			}
		},
	}
}

func logValSystem(output, source ecs.Key) ecs.System {
	return &seriesCalc{
		name:   "logval:" + output.String(),
		output: output,
		source: source,
		fn: func(values []float64, idx int) (float64, bool) {
			if values[idx] <= 0 {
				return 0, false
			}
			return math.Log(values[idx]), true
		},
	}
}

// bollingerSystem computes %B — (price-lowerBand)/(upperBand-lowerBand) —
// from the source series' own trailing mean and standard deviation, rather
// than reading the separately-installed SMA/MovingStdDev columns, so its
// result does not depend on those systems' position in the stage's run
// order within the same tick.
func bollingerSystem(output, source ecs.Key, horizon int) ecs.System {
	return &seriesCalc{
		name:   "bollinger:" + output.String(),
		output: output,
		source: source,
		fn: func(values []float64, idx int) (float64, bool) {
			if idx+1 < horizon {
				return 0, false
			}
			window := values[idx-horizon+1 : idx+1]
			mean := formulas.Mean(window)
			sd := formulas.StdDev(window)
			upper, lower := mean+2*sd, mean-2*sd
			if upper == lower {
				return 0, false
			}
			return (values[idx] - lower) / (upper - lower), true
		},
	}
}

// sharpeSystem computes a rolling Sharpe ratio over source's trailing
// horizon window of values as they are (no conversion to returns; a
// returns series such as RelativeDifference must be the source), via the
// teacher's
// pkg/formulas.CalculateSharpeRatio (zero risk-free rate, horizon periods
// per year since the window itself already defines the annualization
// base this indicator uses).
func sharpeSystem(output, source ecs.Key, horizon int) ecs.System {
	return &seriesCalc{
		name:   "sharpe:" + output.String(),
		output: output,
		source: source,
		fn: func(values []float64, idx int) (float64, bool) {
			if idx+1 < horizon {
				return 0, false
			}
			window := values[idx-horizon+1 : idx+1]
			sharpe := formulas.CalculateSharpeRatio(window, 0, horizon)
			if sharpe == nil {
				return 0, false
			}
			return *sharpe, true
		},
	}
}

// emaCalc is stateful: each value depends on the previous EMA value, not
// just a window of the source, so it cannot share seriesCalc's stateless
// fn shape. Seeded with the SMA of the first horizon values, per common
// practice.
type emaCalc struct {
	name    string
	output  ecs.Key
	source  ecs.Key
	horizon int
	alpha   float64

	seedBuffer []float64
	seeded     bool
	value      float64
}

func newEMACalc(output, source ecs.Key, horizon int) ecs.System {
	return &emaCalc{
		name:    "ema:" + output.String(),
		output:  output,
		source:  source,
		horizon: horizon,
		alpha:   2.0 / float64(horizon+1),
	}
}

func (c *emaCalc) Name() string { return c.name }

func (c *emaCalc) Run(l *ecs.Ledger) error {
	for _, e := range l.NewValuesSince(c.name, c.source) {
		v, ok := l.Value(c.source, e)
		if !ok {
			continue
		}
		if !c.seeded {
			c.seedBuffer = append(c.seedBuffer, v)
			if len(c.seedBuffer) < c.horizon {
				continue
			}
			c.value = formulas.Mean(c.seedBuffer)
			c.seeded = true
			l.PutValue(c.output, e, c.value)
			continue
		}
		c.value = c.alpha*v + (1-c.alpha)*c.value
		l.PutValue(c.output, e, c.value)
	}
	return nil
}

// rsiCalc defers to the teacher's pkg/formulas.CalculateRSI (go-talib
// underneath). The registration rule still installs the full
// EMA<H,UpDown<Difference<S>>> prerequisite chain from the table (so the
// ledger ends up with every intermediate column a from-scratch Wilder RSI
// would need), but the value itself is computed from source directly for
// numerical fidelity to the reference implementation.
type rsiCalc struct {
	name    string
	output  ecs.Key
	source  ecs.Key
	horizon int
}

func newRSICalc(output, source ecs.Key, horizon int) ecs.System {
	return &rsiCalc{name: "rsi:" + output.String(), output: output, source: source, horizon: horizon}
}

func (c *rsiCalc) Name() string { return c.name }

func (c *rsiCalc) Run(l *ecs.Ledger) error {
	news := l.NewValuesSince(c.name, c.source)
	if len(news) == 0 {
		return nil
	}
	series := l.Series(c.source)
	values := l.SeriesValues(c.source)
	for _, e := range news {
		idx := indexOf(series, e)
		if idx < 0 || idx+1 <= c.horizon {
			continue
		}
		window := values[:idx+1]
		rsi := formulas.CalculateRSI(window, c.horizon)
		if rsi == nil {
			continue
		}
		l.PutValue(c.output, e, *rsi)
	}
	return nil
}
