/*

Scenario pre-classification for the equilibrium policy. The two canonical
pools' utilizations relative to their kinks decide which sub-variant runs
first: a full-balance move between the canonical pools, the multi-pool
equilibrium search, or the simple highest-vs-lowest move-all check.

*/

package engine

import (
	"context"
	"fmt"

	"github.com/hyperyield/yvm/internal/estimator"
	"github.com/hyperyield/yvm/internal/types"
)

type scenarioType string

const (
	scenarioBothAboveKink    scenarioType = "both_above_kink"
	scenarioBothBelowKink    scenarioType = "both_below_kink"
	scenarioMixed            scenarioType = "mixed"
	scenarioEdgeCaseNearKink scenarioType = "edge_case_near_kink"

	// Both canonical utilizations inside this window is treated as the
	// near-kink edge case regardless of each pool's exact kink.
	nearKinkLow  = 0.78
	nearKinkHigh = 0.82
)

// classifyScenario buckets the canonical pools by utilization vs kink.
func (e *Engine) classifyScenario() scenarioType {
	hyperLend := e.pools.Pools[e.hyperLendAddress]
	hypurrFi := e.pools.Pools[e.hypurrFiAddress]

	hlUtil, hlKink := hyperLend.Utilization, poolKink(hyperLend)
	hfUtil, hfKink := hypurrFi.Utilization, poolKink(hypurrFi)

	switch {
	case hlUtil >= nearKinkLow && hlUtil <= nearKinkHigh &&
		hfUtil >= nearKinkLow && hfUtil <= nearKinkHigh:
		return scenarioEdgeCaseNearKink
	case hlUtil >= hlKink && hfUtil >= hfKink:
		return scenarioBothAboveKink
	case hlUtil < hlKink && hfUtil < hfKink:
		return scenarioBothBelowKink
	default:
		return scenarioMixed
	}
}

// analyzeScenario dispatches to the sub-variant for the classified
// scenario. Mixed first tries draining the below-kink canonical pool into
// the above-kink one, accepting only when the destination stays above its
// kink after the deposit; everything else starts with the equilibrium
// search and falls back to the simple move-all check.
func (e *Engine) analyzeScenario(ctx context.Context, est *estimator.Estimator) types.Recommendation {
	scenario := e.classifyScenario()
	engineLogger.Debug().Str("scenario", string(scenario)).Msg("Classified canonical pools")

	if scenario == scenarioMixed {
		hyperLend := e.pools.Pools[e.hyperLendAddress]
		fromAddr, toAddr := e.hyperLendAddress, e.hypurrFiAddress
		if hyperLend.Utilization > poolKink(hyperLend) {
			fromAddr, toAddr = e.hypurrFiAddress, e.hyperLendAddress
		}

		if move, ok := e.calculateMoveAll(ctx, est, fromAddr, toAddr); ok {
			toPool := e.pools.Pools[toAddr]
			if move.NewUtilTo > poolKink(toPool) && move.Profitable {
				return move
			}
		}
	}

	rebalance := e.findEquilibriumRebalance(ctx, est)
	if rebalance.Action == types.ActionRebalance && rebalance.Profitable {
		return rebalance
	}

	if moveAll := e.simpleMoveAll(ctx, est); moveAll.Action == types.ActionMoveAll {
		return moveAll
	}

	return types.Recommendation{
		Action:                     types.ActionHold,
		Reason:                     fmt.Sprintf("no profitable move found (scenario %s)", scenario),
		ObservedCurrentWeightedAPY: rebalance.ObservedCurrentWeightedAPY,
		ModeledCurrentWeightedAPY:  rebalance.ModeledCurrentWeightedAPY,
		NewWeightedAPY:             rebalance.ModeledCurrentWeightedAPY,
	}
}

// calculateMoveAll evaluates moving the full source balance to the
// destination. Returns false when the source holds nothing.
func (e *Engine) calculateMoveAll(ctx context.Context, est *estimator.Estimator, fromAddr, toAddr string) (types.Recommendation, bool) {
	amount := e.position[fromAddr]
	if amount <= 0 {
		return types.Recommendation{}, false
	}

	observed := e.observedCurrentWeightedAPY()
	modeled := e.modeledCurrentWeightedAPY(ctx, est)
	return e.buildMoveRecommendation(ctx, est, types.ActionMoveAll, fromAddr, toAddr, amount, modeled, observed), true
}

// simpleMoveAll is the two-pool variant: drain the lowest-APY pool into
// the highest-APY pool, but only when the destination's post-deposit APY
// still beats the source's pre-move APY and the weighted total improves.
func (e *Engine) simpleMoveAll(ctx context.Context, est *estimator.Estimator) types.Recommendation {
	var highAddr, lowAddr string
	for _, addr := range e.sortedPoolAddresses() {
		pool := e.pools.Pools[addr]
		if highAddr == "" || pool.CurrentAPY > e.pools.Pools[highAddr].CurrentAPY {
			highAddr = addr
		}
		if lowAddr == "" || pool.CurrentAPY < e.pools.Pools[lowAddr].CurrentAPY {
			lowAddr = addr
		}
	}

	hold := types.Recommendation{
		Action:                     types.ActionHold,
		Reason:                     "moving the lowest-APY balance would not improve yield",
		ObservedCurrentWeightedAPY: e.observedCurrentWeightedAPY(),
		ModeledCurrentWeightedAPY:  e.modeledCurrentWeightedAPY(ctx, est),
	}
	hold.NewWeightedAPY = hold.ModeledCurrentWeightedAPY

	if highAddr == "" || lowAddr == "" || highAddr == lowAddr {
		return hold
	}

	move, ok := e.calculateMoveAll(ctx, est, lowAddr, highAddr)
	if !ok {
		return hold
	}

	lowCurrentAPY := est.EstimateAPY(ctx, e.pools.Pools[lowAddr], 0)
	if move.NewAPYTo > lowCurrentAPY && move.GainBps > 0 {
		move.Reason = fmt.Sprintf("%s remains higher after full move from %s",
			move.ToProtocol, move.FromProtocol)
		return move
	}
	return hold
}
