package broker

import "math"

// FeeModel is the historical broker's three-parameter fee schedule (spec
// §4.4), grounded on the teacher's pkg/formulas cost-modelling style.
type FeeModel struct {
	VariableTransactionFee float64 // fraction of notional
	FeePerShare            float64
	FixedTransactionFee    float64
}

// feeCapFraction is the invariant fee cap, 0.5% of notional, that no broker
// implementation may exceed regardless of its configured FeeModel.
const feeCapFraction = 0.005

// Compute returns the fee for a fill of qty shares at price, capped at
// 0.005·|qty|·price regardless of how the configured model prices it.
func (f FeeModel) Compute(qty, price float64) float64 {
	absQty := math.Abs(qty)
	naive := absQty*(price*f.VariableTransactionFee+f.FeePerShare) + f.FixedTransactionFee
	capped := feeCapFraction * absQty * price
	if naive > capped {
		return capped
	}
	return naive
}
