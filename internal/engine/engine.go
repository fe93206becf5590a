/*

This file contains the reallocation decision engine's entry points. The
engine receives a normalized pool set and the vault's position vector and
answers a single question per cycle: should funds move, where, and how much.

Two policies are implemented. The best-single-move policy (Decide) is
authoritative for execution; the weighted equilibrium policy (Analyze) is
retained for reporting and scenario analysis. Any failure inside a full
decision pass is converted into a hold recommendation carrying the error
text; the engine never surfaces a fatal failure to its caller.

*/

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperyield/yvm/internal/estimator"
	"github.com/hyperyield/yvm/internal/logger"
	"github.com/hyperyield/yvm/internal/ratemodel"
	"github.com/hyperyield/yvm/internal/types"
)

var (
	ErrMissingCanonicalPools = errors.New("pool set does not contain both canonical protocols")
	ErrNegativeBalance       = errors.New("position balance cannot be negative")
)

var engineLogger = logger.GetForComponent("decision_engine")

// Engine evaluates reallocation decisions against one pool set + position.
// It holds no mutable state across decision passes; each pass gets its own
// estimator (and thus its own APY memo).
type Engine struct {
	pools    types.PoolSet
	position types.PositionVector
	params   types.SafetyParameters
	oracle   ratemodel.RateOracle

	hyperLendAddress string
	hypurrFiAddress  string
}

// New validates the inputs and builds an engine. The pool set must contain
// both canonical protocols and every position balance must be >= 0.
func New(pools types.PoolSet, position types.PositionVector, params types.SafetyParameters, oracle ratemodel.RateOracle) (*Engine, error) {
	hyperLend, okHL := pools.ProtocolToAddress[types.ProtocolHyperLend]
	hypurrFi, okHF := pools.ProtocolToAddress[types.ProtocolHypurrFi]
	if !okHL || !okHF {
		return nil, ErrMissingCanonicalPools
	}

	for addr, balance := range position {
		if balance < 0 {
			return nil, errors.Join(ErrNegativeBalance,
				fmt.Errorf("pool %s has balance %f", addr, balance))
		}
	}

	return &Engine{
		pools:            pools,
		position:         position,
		params:           params,
		oracle:           oracle,
		hyperLendAddress: hyperLend,
		hypurrFiAddress:  hypurrFi,
	}, nil
}

// Decide runs the authoritative best-single-move policy. It never fails:
// any panic during the pass is converted into a hold carrying the error
// text.
func (e *Engine) Decide(ctx context.Context) (rec types.Recommendation) {
	defer func() {
		if r := recover(); r != nil {
			engineLogger.Error().
				Interface("panic", r).
				Msg("Decision pass failed, converting to hold")
			rec = types.Recommendation{
				Action: types.ActionHold,
				Reason: fmt.Sprintf("decision error: %v", r),
			}
		}
	}()

	est := estimator.New(e.oracle)
	rec = e.findBestSingleMove(ctx, est)

	engineLogger.Info().
		Str("action", string(rec.Action)).
		Str("from", rec.FromAddress).
		Str("to", rec.ToAddress).
		Float64("amountUSD", rec.AmountUSD).
		Float64("gainBps", rec.GainBps).
		Bool("profitable", rec.Profitable).
		Msg("Best-single-move decision complete")
	return rec
}

// Analyze runs the weighted equilibrium policy: scenario classification
// followed by either a move-all attempt or the multi-pool adaptive search.
// Like Decide it degrades to hold instead of failing.
func (e *Engine) Analyze(ctx context.Context) (rec types.Recommendation) {
	defer func() {
		if r := recover(); r != nil {
			engineLogger.Error().
				Interface("panic", r).
				Msg("Analysis pass failed, converting to hold")
			rec = types.Recommendation{
				Action: types.ActionHold,
				Reason: fmt.Sprintf("analysis error: %v", r),
			}
		}
	}()

	est := estimator.New(e.oracle)
	rec = e.analyzeScenario(ctx, est)

	engineLogger.Info().
		Str("action", string(rec.Action)).
		Float64("gainBps", rec.GainBps).
		Bool("profitable", rec.Profitable).
		Msg("Equilibrium analysis complete")
	return rec
}

// observedCurrentWeightedAPY is the balance-weighted average of the
// snapshot-reported APYs. Display only, never decisive.
func (e *Engine) observedCurrentWeightedAPY() float64 {
	total := e.position.TotalUSD()
	if total <= 0 {
		return 0
	}

	weighted := 0.0
	for addr, balance := range e.position {
		if balance <= 0 {
			continue
		}
		pool, ok := e.pools.Pools[addr]
		if !ok {
			continue
		}
		weighted += pool.CurrentAPY * balance
	}
	return weighted / total
}

// modeledCurrentWeightedAPY is the balance-weighted average of each held
// pool's APY evaluated by the model at its own current utilization. All
// gain comparisons are made against this value so pre- and post-move APYs
// come from the same model.
func (e *Engine) modeledCurrentWeightedAPY(ctx context.Context, est *estimator.Estimator) float64 {
	total := e.position.TotalUSD()
	if total <= 0 {
		return 0
	}

	weighted := 0.0
	for addr, balance := range e.position {
		if balance <= 0 {
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
