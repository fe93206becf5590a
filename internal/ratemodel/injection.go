/*

This file contains the hypothetical-supply injection for submarket pools:
given a signed USD increment, it produces an independent copy of the
submarket parameters with supply assets, supply shares and utilization
recomputed. The caller's snapshot is never mutated, which lets the
equilibrium search evaluate hundreds of what-if amounts against one
snapshot. Share arithmetic runs on fixed-point decimals since raw share
counts exceed float64's integer range.

*/

package ratemodel

import (
	sdkmath "cosmossdk.io/math"

	"github.com/hyperyield/yvm/internal/types"
	"github.com/hyperyield/yvm/internal/utils"
)

// ProportionalInjection directs WithExtraSupply to spread the increment
// across all submarkets by their current supply share.
const ProportionalInjection = -1

// WithExtraSupply returns a copy of params with extraSupply (signed USD)
// injected. When targetIndex is a valid submarket index the whole increment
// goes to that submarket; otherwise it is distributed proportionally by
// each submarket's current share of total supply (equal split when total
// supply is zero). New supply shares are derived from each submarket's
// current share price (assets/shares, or 1.0 when shares are zero).
func WithExtraSupply(params types.SubmarketParams, extraSupply float64, targetIndex int) types.SubmarketParams {
	updated := types.SubmarketParams{
		ReserveFactor: params.ReserveFactor,
		Submarkets:    make([]types.Submarket, len(params.Submarkets)),
	}
	copy(updated.Submarkets, params.Submarkets)

	if len(updated.Submarkets) == 0 || extraSupply == 0 {
		return updated
	}

	var targets []int
	var portions []float64
	if targetIndex >= 0 && targetIndex < len(updated.Submarkets) {
		targets = []int{targetIndex}
		portions = []float64{1.0}
	} else {
		weights := SubmarketWeights(updated.Submarkets)
		targets = make([]int, len(updated.Submarkets))
		for i := range updated.Submarkets {
			targets[i] = i
		}
		portions = weights
	}

	for n, i := range targets {
		market := updated.Submarkets[i]
		increment := extraSupply * portions[n]

		supplyAssets := utils.Float64ToDec(market.TotalSupplyAssets)
		supplyShares := utils.Float64ToDec(market.TotalSupplyShares)
		incrementDec := utils.Float64ToDec(increment)

		sharePrice := sdkmath.LegacyOneDec()
		if supplyShares.IsPositive() {
			sharePrice = supplyAssets.Quo(supplyShares)
		}

		newAssets := supplyAssets.Add(incrementDec)
		additionalShares := incrementDec
		if sharePrice.IsPositive() {
			additionalShares = incrementDec.Quo(sharePrice)
		}
		newShares := supplyShares.Add(additionalShares)

		market.TotalSupplyAssets = utils.DecToFloat64(newAssets)
		market.TotalSupplyShares = utils.DecToFloat64(newShares)
		updated.Submarkets[i] = market
	}

	return updated
}
