/*

This file contains the unified APY estimator. It is the single entry point
the decision engine uses to ask "what would this pool's supply APY be if the
vault's TVL in it changed by delta USD", regardless of which rate-model
family the pool belongs to.

*/

package estimator

import (
	"context"

	"github.com/hyperyield/yvm/internal/logger"
	"github.com/hyperyield/yvm/internal/ratemodel"
	"github.com/hyperyield/yvm/internal/types"
)

var estLogger = logger.GetForComponent("apy_estimator")

// epsilonTVL guards the utilization division when a hypothetical withdrawal
// empties a pool.
const epsilonTVL = 1e-9

// Estimator dispatches APY evaluations to the pool's rate model, applying
// hypothetical TVL deltas on independent copies. One Estimator is scoped to
// one decision pass: it memoizes each pool's zero-delta APY so the
// equilibrium search does not repeat identical evaluations (and, for
// submarket pools, identical oracle calls).
type Estimator struct {
	oracle   ratemodel.RateOracle
	zeroMemo map[string]float64
}

// New creates an estimator for a single decision pass. The oracle may be
// nil, in which case submarket pools rely on static borrow rates.
func New(oracle ratemodel.RateOracle) *Estimator {
	return &Estimator{
		oracle:   oracle,
		zeroMemo: make(map[string]float64),
	}
}

// EstimateAPY returns the pool's supply APY as a fraction (0.12 == 12%)
// under a hypothetical TVL delta in USD (positive = deposit, negative =
// withdrawal, 0 = current state). A zero delta reproduces the model's
// evaluation at the snapshot's own utilization.
func (e *Estimator) EstimateAPY(ctx context.Context, pool types.PoolSnapshot, tvlDeltaUSD float64) float64 {
	if tvlDeltaUSD == 0 {
		if apy, ok := e.zeroMemo[pool.PoolAddress]; ok {
			return apy
		}
	}

	apy := e.evaluate(ctx, pool, tvlDeltaUSD)

	if tvlDeltaUSD == 0 {
		e.zeroMemo[pool.PoolAddress] = apy
	}
	return apy
}

func (e *Estimator) evaluate(ctx context.Context, pool types.PoolSnapshot, tvlDeltaUSD float64) float64 {
	switch pool.ModelKind {
	case types.RateModelSubmarket:
		return e.evaluateSubmarket(ctx, pool, tvlDeltaUSD)
	default:
		return e.evaluateKinked(pool, tvlDeltaUSD)
	}
}

// evaluateSubmarket applies the delta as a proportional hypothetical
// injection and aggregates the weighted submarket APYs. When the
// aggregation cannot produce any usable submarket APY the snapshot's own
// reported APY is used instead of failing the caller.
func (e *Estimator) evaluateSubmarket(ctx context.Context, pool types.PoolSnapshot, tvlDeltaUSD float64) float64 {
	if pool.Submarket == nil || len(pool.Submarket.Submarkets) == 0 {
		return pool.CurrentAPY
	}

	params := *pool.Submarket
	if tvlDeltaUSD != 0 {
		params = ratemodel.WithExtraSupply(params, tvlDeltaUSD, ratemodel.ProportionalInjection)
	}

	apyPct, err := ratemodel.PoolAPY(ctx, params, e.oracle)
	if err != nil {
		estLogger.Warn().
			Err(err).
			Str("pool", pool.PoolAddress).
			Float64("tvlDelta", tvlDeltaUSD).
			Msg("Submarket aggregation unusable, falling back to reported APY")
		return pool.CurrentAPY
	}
	return apyPct / 100
}

func (e *Estimator) evaluateKinked(pool types.PoolSnapshot, tvlDeltaUSD float64) float64 {
	if pool.Kinked == nil {
		return pool.CurrentAPY
	}

	newTVL := pool.TvlUSD + tvlDeltaUSD
	if newTVL < epsilonTVL {
		newTVL = epsilonTVL
	}
	newUtil := ratemodel.ClampUtilization(pool.TotalBorrowUSD() / newTVL)

	return ratemodel.KinkedSupplyAPY(newUtil, *pool.Kinked) / 100
}
