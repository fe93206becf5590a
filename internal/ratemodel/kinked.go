/*

This file contains the kinked interest rate model used by the single-curve
lending protocols (HyperLend, HypurrFi). Borrow APR rises linearly to the
kink and then steepens; the supply side earns the borrow rate scaled by
utilization net of the reserve factor.

*/

package ratemodel

import (
	"math"

	"github.com/hyperyield/yvm/internal/types"
)

const (
	// MinUtilization / MaxUtilization clamp every utilization input before
	// model evaluation. The curve is undefined at the extremes (a fully
	// drained or fully borrowed pool) so evaluations are pinned just inside.
	MinUtilization = 0.01
	MaxUtilization = 0.99
)

// ClampUtilization pins a utilization value into [MinUtilization, MaxUtilization].
func ClampUtilization(u float64) float64 {
	return math.Max(MinUtilization, math.Min(MaxUtilization, u))
}

// BorrowAPR evaluates the kinked borrow curve at utilization u.
// Below the kink the rate climbs linearly to slope1; above it the excess
// utilization is charged slope2 on top. The curve is continuous at the kink
// by construction (value = slope1).
func BorrowAPR(u float64, params types.KinkedParams) float64 {
	if u <= params.Kink {
		return (u / params.Kink) * params.Slope1
	}
	return params.Slope1 + ((u-params.Kink)/(1-params.Kink))*params.Slope2
}

// KinkedSupplyAPY computes the supply APY for a kinked-model pool at the
// given utilization, returned as a percentage (17.83 == 17.83%).
// Utilization is clamped before evaluation. The APR -> APY conversion uses
// the continuous-compounding approximation e^APR - 1.
func KinkedSupplyAPY(utilization float64, params types.KinkedParams) float64 {
	u := ClampUtilization(utilization)

	borrowAPR := BorrowAPR(u, params)
	supplyAPR := borrowAPR * u * (1 - params.ReserveFactor)
	supplyAPY := math.Exp(supplyAPR) - 1

	return supplyAPY * 100
}

// NewUtilization computes the pool utilization after a TVL change.
// A pool whose TVL would drop to zero or below reads as maximally utilized.
func NewUtilization(currentTVL, currentBorrow, tvlChange float64) float64 {
	newTVL := currentTVL + tvlChange
	if newTVL <= 0 {
		return MaxUtilization
	}
	return ClampUtilization(currentBorrow / newTVL)
}
