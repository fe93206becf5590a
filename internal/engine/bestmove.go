/*

Best-single-move policy. One candidate move is considered per (source,
destination) pair: the source's full balance. The winner is the pair whose
destination pool, after absorbing the full source balance, still carries
the highest post-move APY. Strictly-greater comparisons keep the walk
deterministic under ties.

*/

package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperyield/yvm/internal/estimator"
	"github.com/hyperyield/yvm/internal/ratemodel"
	"github.com/hyperyield/yvm/internal/types"
)

// findBestSingleMove scans every funded source pool against every
// destination whose current APY strictly exceeds the source's, estimating
// the destination's post-deposit APY for a full-balance move.
func (e *Engine) findBestSingleMove(ctx context.Context, est *estimator.Estimator) types.Recommendation {
	observed := e.observedCurrentWeightedAPY()
	modeled := e.modeledCurrentWeightedAPY(ctx, est)

	currentBest := e.highestCurrentAPYPool()
	if currentBest == "" {
		return types.Recommendation{
			Action:                     types.ActionHold,
			Reason:                     "no pools available",
			ObservedCurrentWeightedAPY: observed,
			ModeledCurrentWeightedAPY:  modeled,
		}
	}

	if e.fullyConsolidatedIn(currentBest) {
		return types.Recommendation{
			Action:                     types.ActionHold,
			Reason:                     fmt.Sprintf("position already consolidated in highest-APY pool %s", currentBest),
			ObservedCurrentWeightedAPY: observed,
			ModeledCurrentWeightedAPY:  modeled,
			NewWeightedAPY:             modeled,
		}
	}

	var (
		bestFrom   string
		bestTo     string
		bestAmount float64
		bestNewAPY float64
		found      bool
	)

	for _, fromAddr := range e.sortedPoolAddresses() {
		balance := e.position[fromAddr]
		if balance <= 0 {
			continue
		}
		fromPool := e.pools.Pools[fromAddr]

		for _, toAddr := range e.sortedPoolAddresses() {
			if toAddr == fromAddr {
				continue
			}
			toPool := e.pools.Pools[toAddr]
			if toPool.CurrentAPY <= fromPool.CurrentAPY {
				continue
			}

			newAPYTo := est.EstimateAPY(ctx, toPool, balance)
			if !found || newAPYTo > bestNewAPY {
				found = true
				bestFrom = fromAddr
				bestTo = toAddr
				bestAmount = balance
				bestNewAPY = newAPYTo
			}
		}
	}

	if !found {
		return types.Recommendation{
			Action:                     types.ActionHold,
			Reason:                     "no destination retains a higher APY after absorbing a full-balance move",
			ObservedCurrentWeightedAPY: observed,
			ModeledCurrentWeightedAPY:  modeled,
			NewWeightedAPY:             modeled,
		}
	}

	return e.buildMoveRecommendation(ctx, est, types.ActionReallocate, bestFrom, bestTo, bestAmount, modeled, observed)
}

// buildMoveRecommendation fills in the post-move utilizations, APYs and
// gain for a concrete (from, to, amount) move. Shared by both policies.
func (e *Engine) buildMoveRecommendation(ctx context.Context, est *estimator.Estimator, action types.Action, fromAddr, toAddr string, amountUSD, modeledCurrent, observedCurrent float64) types.Recommendation {
	fromPool := e.pools.Pools[fromAddr]
	toPool := e.pools.Pools[toAddr]

	newAPYFrom := est.EstimateAPY(ctx, fromPool, -amountUSD)
	newAPYTo := est.EstimateAPY(ctx, toPool, amountUSD)

	newWeighted := e.weightedAPYAfterMove(ctx, est, fromAddr, toAddr, amountUSD, newAPYFrom, newAPYTo)
	gainBps := (newWeighted - modeledCurrent) * 10000

	return types.Recommendation{
		Action:                     action,
		Reason:                     fmt.Sprintf("move %.2f USD from %s to %s", amountUSD, fromPool.Protocol, toPool.Protocol),
		FromAddress:                fromAddr,
		FromProtocol:               fromPool.Protocol,
		ToAddress:                  toAddr,
		ToProtocol:                 toPool.Protocol,
		AmountUSD:                  amountUSD,
		NewUtilFrom:                newUtilization(fromPool, -amountUSD),
		NewUtilTo:                  newUtilization(toPool, amountUSD),
		NewAPYFrom:                 newAPYFrom,
		NewAPYTo:                   newAPYTo,
		ObservedCurrentWeightedAPY: observedCurrent,
		ModeledCurrentWeightedAPY:  modeledCurrent,
		NewWeightedAPY:             newWeighted,
		GainBps:                    gainBps,
		Profitable:                 gainBps > e.params.MinGainBps,
	}
}

// weightedAPYAfterMove recomputes the balance-weighted APY with amountUSD
// shifted between the two pools. Pools untouched by the move keep their
// modeled zero-delta APY.
func (e *Engine) weightedAPYAfterMove(ctx context.Context, est *estimator.Estimator, fromAddr, toAddr string, amountUSD, newAPYFrom, newAPYTo float64) float64 {
	total := e.position.TotalUSD()
	if total <= 0 {
		return 0
	}

	weighted := (e.position[fromAddr]-amountUSD)*newAPYFrom + (e.position[toAddr]+amountUSD)*newAPYTo
	for addr, balance := range e.position {
		if addr == fromAddr || addr == toAddr || balance <= 0 {
			continue
		}
		pool, ok := e.pools.Pools[addr]
		if !ok {
			continue
		}
		weighted += est.EstimateAPY(ctx, pool, 0) * balance
	}
	return weighted / total
}

func (e *Engine) highestCurrentAPYPool() string {
	best := ""
	bestAPY := 0.0
	for _, addr := range e.sortedPoolAddresses() {
		pool := e.pools.Pools[addr]
		if best == "" || pool.CurrentAPY > bestAPY {
			best = addr
			bestAPY = pool.CurrentAPY
		}
	}
	return best
}

// fullyConsolidatedIn reports whether every positive balance already sits
// in the given pool.
func (e *Engine) fullyConsolidatedIn(addr string) bool {
	for poolAddr, balance := range e.position {
		if balance > 0 && poolAddr != addr {
			return false
		}
	}
	return e.position[addr] > 0
}

// sortedPoolAddresses gives a stable iteration order over the pool set so
// tie-breaking does not depend on map ordering.
func (e *Engine) sortedPoolAddresses() []string {
	addrs := make([]string, 0, len(e.pools.Pools))
	for addr := range e.pools.Pools {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// newUtilization returns the pool's utilization after a TVL change,
// clamped to the model's working range.
func newUtilization(pool types.PoolSnapshot, tvlDeltaUSD float64) float64 {
	return ratemodel.NewUtilization(pool.TvlUSD, pool.TotalBorrowUSD(), tvlDeltaUSD)
}

// poolKink returns the pool's rate-curve kink, or 1 when the pool has no
// kinked parameterization so it always classifies as below the kink.
func poolKink(pool types.PoolSnapshot) float64 {
	if pool.Kinked != nil {
		return pool.Kinked.Kink
	}
	return 1
}
