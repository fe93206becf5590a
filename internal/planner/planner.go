/*

The planner turns a Recommendation into transaction instructions: one
withdrawal from the source pool and one allocation into the destination.
Amounts are always carried in USD; token-unit amounts are attached only
when the snapshot carries a usable price and decimals, and a failed
conversion is dropped rather than blocking the plan.

*/

package planner

import (
	"github.com/hyperyield/yvm/internal/logger"
	"github.com/hyperyield/yvm/internal/types"
	"github.com/hyperyield/yvm/internal/utils"
)

var plannerLogger = logger.GetForComponent("planner")

// BuildTransferPlan maps a non-hold recommendation onto withdrawal and
// allocation instructions. Hold recommendations yield an empty plan.
func BuildTransferPlan(rec types.Recommendation, pools types.PoolSet) types.TransferPlan {
	if rec.Action == types.ActionHold || rec.AmountUSD <= 0 {
		return types.TransferPlan{}
	}

	withdrawal := types.WithdrawalInstruction{
		PoolAddress: rec.FromAddress,
		Protocol:    rec.FromProtocol,
		AmountUSD:   rec.AmountUSD,
	}
	if fromPool, ok := pools.Pools[rec.FromAddress]; ok {
		withdrawal.AmountTokenUnits = tokenUnits(rec.AmountUSD, fromPool)
		if avail := fromPool.AvailableLiquidityUSD(); rec.AmountUSD > avail {
			plannerLogger.Warn().
				Str("pool", fromPool.PoolAddress).
				Float64("amountUSD", rec.AmountUSD).
				Float64("availableUSD", avail).
				Msg("Withdrawal exceeds pool's unborrowed liquidity, execution may be partial")
		}
	}

	allocation := types.AllocationInstruction{
		PoolAddress: rec.ToAddress,
		Protocol:    rec.ToProtocol,
		AmountUSD:   rec.AmountUSD,
	}
	if toPool, ok := pools.Pools[rec.ToAddress]; ok {
		allocation.AmountTokenUnits = tokenUnits(rec.AmountUSD, toPool)
	}

	return types.TransferPlan{
		Withdrawal:  &withdrawal,
		Allocations: []types.AllocationInstruction{allocation},
	}
}

// tokenUnits converts a USD amount to the pool token's smallest units.
// Returns "" when the snapshot has no price data or the conversion fails;
// the USD amount remains authoritative either way.
func tokenUnits(amountUSD float64, pool types.PoolSnapshot) string {
	if pool.TokenPriceUSD <= 0 || pool.TokenDecimals <= 0 {
		return ""
	}

	units, err := utils.USDToTokenUnits(amountUSD, pool.TokenPriceUSD, pool.TokenDecimals)
	if err != nil {
		plannerLogger.Warn().
			Err(err).
			Str("pool", pool.PoolAddress).
			Float64("amountUSD", amountUSD).
			Msg("Token-unit conversion failed, instruction keeps USD amount only")
		return ""
	}
	return units
}
