// Package indicators implements the indicator dependency solver (spec
// §4.2) and the calculator systems it installs: SMA, EMA, MovingStdDev,
// Difference, RelativeDifference, UpDown, LogVal, RSI, Bollinger and
// Sharpe. Grounded on the teacher's pkg/formulas (gonum-backed mean/stddev,
// go-talib-backed RSI) generalised from one-shot score calculations into
// ledger-column calculators that run incrementally, once per new bar.
package indicators

import "github.com/aristath/arduino-trader/internal/ecs"

// SMA builds the key for the simple moving average of source over horizon
// bars.
func SMA(horizon int, source ecs.Key) ecs.Key {
	return ecs.Key{Kind: "SMA", Horizon: horizon, Source: source.String()}
}

// EMA builds the key for the exponential moving average of source over
// horizon bars.
func EMA(horizon int, source ecs.Key) ecs.Key {
	return ecs.Key{Kind: "EMA", Horizon: horizon, Source: source.String()}
}

// MovingStdDev builds the key for the sample standard deviation of source
// over horizon bars.
func MovingStdDev(horizon int, source ecs.Key) ecs.Key {
	return ecs.Key{Kind: "MovingStdDev", Horizon: horizon, Source: source.String()}
}

// Difference builds the key for source[e]-source[prev(e)].
func Difference(source ecs.Key) ecs.Key {
	return ecs.Key{Kind: "Difference", Source: source.String()}
}

// RelativeDifference builds the key for (source[e]-source[prev(e)])/source[prev(e)].
func RelativeDifference(source ecs.Key) ecs.Key {
	return ecs.Key{Kind: "RelativeDifference", Source: source.String()}
}

// UpDown builds the key for the sign-separated value of source (typically
// a Difference column): +1/-1/0.
func UpDown(source ecs.Key) ecs.Key {
	return ecs.Key{Kind: "UpDown", Source: source.String()}
}

// LogVal builds the key for ln(source).
func LogVal(source ecs.Key) ecs.Key {
	return ecs.Key{Kind: "LogVal", Source: source.String()}
}

// RSI builds the key for the relative strength index of source over
// horizon bars.
func RSI(horizon int, source ecs.Key) ecs.Key {
	return ecs.Key{Kind: "RSI", Horizon: horizon, Source: source.String()}
}

// Bollinger builds the key for the %B (percent bandwidth) of source over
// horizon bars: (source-lowerBand)/(upperBand-lowerBand).
func Bollinger(horizon int, source ecs.Key) ecs.Key {
	return ecs.Key{Kind: "Bollinger", Horizon: horizon, Source: source.String()}
}

// Sharpe builds the key for the rolling Sharpe ratio of source's own values
// over horizon bars: their mean over their sample standard deviation,
// scaled by sqrt(horizon).
func Sharpe(horizon int, source ecs.Key) ecs.Key {
	return ecs.Key{Kind: "Sharpe", Horizon: horizon, Source: source.String()}
}
