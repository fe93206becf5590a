/*

Weighted equilibrium policy. Every ordered pool pair is searched for the
transfer amount that maximizes a blended stability/yield score, with the
amount capped so the source pool's utilization never exceeds the safe
maximum. The score is non-convex in the amount because of the piecewise
rate curves and per-second compounding, so a 3-stage adaptive grid is used
instead of a closed-form optimum.

*/

package engine

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/hyperyield/yvm/internal/estimator"
	"github.com/hyperyield/yvm/internal/types"
)

const (
	coarseGridPoints = 11
	fineGridPoints   = 21
	ultraGridPoints  = 41
	fineWindowRatio  = 0.10
	ultraWindowRatio = 0.02
	topCoarseKept    = 3

	stabilityWeight = 0.3
	yieldWeight     = 0.7
)

// pairMove is one fully evaluated (source, destination, amount) candidate.
type pairMove struct {
	fromAddr string
	toAddr   string
	amount   float64
	score    float64
}

// findEquilibriumRebalance runs the multi-pool search and returns the
// globally best-scoring move, or a hold when no pair admits one.
func (e *Engine) findEquilibriumRebalance(ctx context.Context, est *estimator.Estimator) types.Recommendation {
	observed := e.observedCurrentWeightedAPY()
	modeled := e.modeledCurrentWeightedAPY(ctx, est)

	var best *pairMove
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

			safeMax := e.safeMaxWithdrawal(fromPool, balance)
			if safeMax <= 0 {
				continue
			}

			score := e.moveScoreFunc(ctx, est, fromPool, toPool, modeled)
			amount, amountScore := findOptimalAmountAdaptive(safeMax, score)
			if best == nil || amountScore > best.score {
				best = &pairMove{fromAddr: fromAddr, toAddr: toAddr, amount: amount, score: amountScore}
			}
		}
	}

	if best == nil || best.amount <= 0 || best.score <= 0 {
		return types.Recommendation{
			Action:                     types.ActionHold,
			Reason:                     "no rebalance improves the weighted position within safety bounds",
			ObservedCurrentWeightedAPY: observed,
			ModeledCurrentWeightedAPY:  modeled,
			NewWeightedAPY:             modeled,
		}
	}

	rec := e.buildMoveRecommendation(ctx, est, types.ActionRebalance, best.fromAddr, best.toAddr, best.amount, modeled, observed)
	rec.StabilityScore = best.score
	if !rec.Profitable {
		rec.Reason = fmt.Sprintf("best rebalance gains only %.2f bps (minimum %.2f bps)", rec.GainBps, e.params.MinGainBps)
	}
	return rec
}

// safeMaxWithdrawal caps a withdrawal so the source pool's utilization
// stays at or below MaxSafeUtilization, and never exceeds our balance.
func (e *Engine) safeMaxWithdrawal(pool types.PoolSnapshot, balance float64) float64 {
	if e.params.MaxSafeUtilization <= 0 {
		return 0
	}
	headroom := pool.TvlUSD - pool.TotalBorrowUSD()/e.params.MaxSafeUtilization
	return math.Min(balance, math.Max(0, headroom))
}

// moveScoreFunc builds the score function for one (from, to) pair. Scores
// are zeroed only when all three guards trip at once: both resulting
// utilizations outside the safe band, spread above the cap, and the move
// failing to reduce the pre-move spread.
func (e *Engine) moveScoreFunc(ctx context.Context, est *estimator.Estimator, fromPool, toPool types.PoolSnapshot, modeledCurrent float64) func(amount float64) float64 {
	currentSpread := math.Abs(est.EstimateAPY(ctx, fromPool, 0) - est.EstimateAPY(ctx, toPool, 0))
	maxSpread := e.params.MaxSpreadBps / 10000

	return func(amount float64) float64 {
		if amount <= 0 {
			return 0
		}

		newUtilFrom := newUtilization(fromPool, -amount)
		newUtilTo := newUtilization(toPool, amount)

		newAPYFrom := est.EstimateAPY(ctx, fromPool, -amount)
		newAPYTo := est.EstimateAPY(ctx, toPool, amount)
		spread := math.Abs(newAPYFrom - newAPYTo)

		outsideBand := !e.withinSafeBand(newUtilFrom) || !e.withinSafeBand(newUtilTo)
		spreadTooWide := spread > maxSpread
		widensSpread := spread >= currentSpread
		if outsideBand && spreadTooWide && widensSpread {
			return 0
		}

		newWeighted := e.weightedAPYAfterMove(ctx, est, fromPool.PoolAddress, toPool.PoolAddress, amount, newAPYFrom, newAPYTo)
		gainBps := (newWeighted - modeledCurrent) * 10000

		utilBalance := 1 - (math.Abs(newUtilFrom-e.params.OptimalUtilization)+math.Abs(newUtilTo-e.params.OptimalUtilization))/0.2
		spreadTightness := 1 - spread/maxSpread
		stability := 0.6*utilBalance + 0.4*spreadTightness
		yield := gainBps / 100

		return stabilityWeight*stability + yieldWeight*yield
	}
}

func (e *Engine) withinSafeBand(util float64) bool {
	return util >= e.params.MinSafeUtilization && util <= e.params.MaxSafeUtilization
}

// findOptimalAmountAdaptive searches [0, safeMax] for the amount with the
// highest score. Stage 1 covers the full range coarsely, stage 2 refines
// the top three coarse points, stage 3 refines the single best fine point.
// The running best is tracked with strict > across every evaluated point,
// so the final result never scores below any earlier stage and ties go to
// the first point evaluated.
func findOptimalAmountAdaptive(safeMax float64, score func(float64) float64) (float64, float64) {
	if safeMax <= 0 {
		return 0, 0
	}

	bestAmount, bestScore := 0.0, math.Inf(-1)
	track := func(amount, s float64) {
		if s > bestScore {
			bestAmount, bestScore = amount, s
		}
	}

	type scored struct {
		amount float64
		score  float64
	}

	coarse := make([]scored, 0, coarseGridPoints)
	for i := 0; i < coarseGridPoints; i++ {
		amount := safeMax * float64(i) / float64(coarseGridPoints-1)
		s := score(amount)
		track(amount, s)
		coarse = append(coarse, scored{amount, s})
	}

	sort.SliceStable(coarse, func(i, j int) bool { return coarse[i].score > coarse[j].score })
	top := coarse
	if len(top) > topCoarseKept {
		top = top[:topCoarseKept]
	}

	// Fine pass: ±10% of safeMax around each coarse survivor, buckets
	// keyed by the amount rounded to cents, keeping each bucket's best.
	fineSpan := safeMax * fineWindowRatio
	bucketBest := make(map[float64]float64)
	bucketOrder := make([]float64, 0, topCoarseKept*fineGridPoints)
	for _, base := range top {
		start := math.Max(0, base.amount-fineSpan)
		end := math.Min(safeMax, base.amount+fineSpan)
		for j := 0; j < fineGridPoints; j++ {
			amount := start + (end-start)*float64(j)/float64(fineGridPoints-1)
			s := score(amount)
			track(amount, s)

			key := math.Round(amount*100) / 100
			prev, seen := bucketBest[key]
			if !seen {
				bucketOrder = append(bucketOrder, key)
			}
			if !seen || s > prev {
				bucketBest[key] = s
			}
		}
	}

	fineBestAmount, fineBestScore := 0.0, math.Inf(-1)
	for _, key := range bucketOrder {
		if bucketBest[key] > fineBestScore {
			fineBestAmount, fineBestScore = key, bucketBest[key]
		}
	}

	ultraSpan := safeMax * ultraWindowRatio
	start := math.Max(0, fineBestAmount-ultraSpan)
	end := math.Min(safeMax, fineBestAmount+ultraSpan)
	for k := 0; k < ultraGridPoints; k++ {
		amount := start + (end-start)*float64(k)/float64(ultraGridPoints-1)
		track(amount, score(amount))
	}

	return bestAmount, bestScore
}
