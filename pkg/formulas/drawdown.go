package formulas

import "math"

// DrawdownMetrics represents drawdown analysis results
type DrawdownMetrics struct {
	MaxDrawdown     float64 `json:"max_drawdown"`      // Maximum drawdown (as positive percentage, e.g., 0.25 = 25% drawdown)
	CurrentDrawdown float64 `json:"current_drawdown"`  // Current drawdown from peak
	DaysInDrawdown  int     `json:"days_in_drawdown"`  // Days since peak
	PeakValue       float64 `json:"peak_value"`        // Value at peak
	CurrentValue    float64 `json:"current_value"`     // Current value
}

// CalculateDrawdownMetrics calculates comprehensive drawdown metrics
// including current drawdown, days in drawdown, and peak values
func CalculateDrawdownMetrics(prices []float64) *DrawdownMetrics {
	if len(prices) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := prices[0]
	peakIndex := 0
	currentValue := prices[len(prices)-1]

	for i, price := range prices {
		// Update peak
		if price > peak {
			peak = price
			peakIndex = i
		}

		// Calculate drawdown from peak
		if peak > 0 {
			drawdown := (peak - price) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	// Calculate current drawdown
	currentDrawdown := 0.0
	if peak > 0 {
		currentDrawdown = (peak - currentValue) / peak
	}

	// Days in drawdown (from peak to current)
	daysInDrawdown := len(prices) - 1 - peakIndex

	return &DrawdownMetrics{
		MaxDrawdown:     maxDrawdown,
		CurrentDrawdown: currentDrawdown,
		DaysInDrawdown:  daysInDrawdown,
		PeakValue:       peak,
		CurrentValue:    currentValue,
	}
}

// CalculateVolatility calculates annualized volatility from daily prices
// Returns annualized standard deviation of returns
func CalculateVolatility(prices []float64) *float64 {
	if len(prices) < 2 {
		return nil
	}

	returns := CalculateReturns(prices)
	volatility := AnnualizedVolatility(returns)

	return &volatility
}

// CalculateUlcerIndex calculates the Ulcer Index (downside risk measure)
// Measures depth and duration of drawdowns
func CalculateUlcerIndex(prices []float64, period int) *float64 {
	if len(prices) < period {
		return nil
	}

	// Get last 'period' prices
	window := prices[len(prices)-period:]

	// Calculate squared drawdowns
	peak := window[0]
	sumSquaredDrawdowns := 0.0

	for _, price := range window {
		if price > peak {
			peak = price
		}

		if peak > 0 {
			drawdown := (peak - price) / peak
			sumSquaredDrawdowns += drawdown * drawdown
		}
	}

	// Ulcer Index is the square root of the mean of squared drawdowns
	ulcer := math.Sqrt(sumSquaredDrawdowns / float64(period))
	return &ulcer
}
