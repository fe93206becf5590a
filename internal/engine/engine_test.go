package engine

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperyield/yvm/internal/estimator"
	"github.com/hyperyield/yvm/internal/ratemodel"
	"github.com/hyperyield/yvm/internal/types"
)

const (
	hlAddr = "0x1111111111111111111111111111111111111111"
	hfAddr = "0x2222222222222222222222222222222222222222"
)

var testParams = types.SafetyParameters{
	MinGainBps:         10,
	MinSafeUtilization: 0.805,
	MaxSafeUtilization: 0.87,
	MaxSpreadBps:       100,
	OptimalUtilization: 0.825,
}

func canonicalKinked(protocol types.Protocol, addr string, util, currentAPY float64) types.PoolSnapshot {
	return types.PoolSnapshot{
		Protocol:    protocol,
		PoolAddress: addr,
		CurrentAPY:  currentAPY,
		TvlUSD:      10_000_000,
		Utilization: util,
		ModelKind:   types.RateModelKinked,
		Kinked: &types.KinkedParams{
			Kink:          0.80,
			Slope1:        0.104,
			Slope2:        1.0,
			ReserveFactor: 0.20,
		},
	}
}

func canonicalPoolSet(hlUtil, hlAPY, hfUtil, hfAPY float64) types.PoolSet {
	return types.PoolSet{
		Pools: map[string]types.PoolSnapshot{
			hlAddr: canonicalKinked(types.ProtocolHyperLend, hlAddr, hlUtil, hlAPY),
			hfAddr: canonicalKinked(types.ProtocolHypurrFi, hfAddr, hfUtil, hfAPY),
		},
		ProtocolToAddress: map[types.Protocol]string{
			types.ProtocolHyperLend: hlAddr,
			types.ProtocolHypurrFi:  hfAddr,
		},
		AddressToProtocol: map[string]types.Protocol{
			hlAddr: types.ProtocolHyperLend,
			hfAddr: types.ProtocolHypurrFi,
		},
	}
}

func TestNewRejectsMissingCanonicalPools(t *testing.T) {
	pools := canonicalPoolSet(0.8, 0.06, 0.7, 0.05)
	delete(pools.ProtocolToAddress, types.ProtocolHypurrFi)

	_, err := New(pools, types.PositionVector{}, testParams, nil)
	require.ErrorIs(t, err, ErrMissingCanonicalPools)
}

func TestNewRejectsNegativeBalance(t *testing.T) {
	pools := canonicalPoolSet(0.8, 0.06, 0.7, 0.05)

	_, err := New(pools, types.PositionVector{hlAddr: -100}, testParams, nil)
	require.ErrorIs(t, err, ErrNegativeBalance)
}

func TestDecideHoldsWhenConsolidated(t *testing.T) {
	pools := canonicalPoolSet(0.80, 0.0688, 0.70, 0.0523)
	position := types.PositionVector{hlAddr: 100_000}

	eng, err := New(pools, position, testParams, nil)
	require.NoError(t, err)

	rec := eng.Decide(context.Background())
	assert.Equal(t, types.ActionHold, rec.Action)
	assert.Contains(t, rec.Reason, "already consolidated")
}

func TestDecideReallocatesToHigherAPYPool(t *testing.T) {
	// HyperLend sits at its kink and pays more; the whole position is in
	// HypurrFi. Moving the full 100k leaves HyperLend at ~0.792 utilization,
	// still well above HypurrFi's rate.
	pools := canonicalPoolSet(0.80, 0.0688, 0.70, 0.0523)
	position := types.PositionVector{hfAddr: 100_000}

	eng, err := New(pools, position, testParams, nil)
	require.NoError(t, err)

	rec := eng.Decide(context.Background())
	require.Equal(t, types.ActionReallocate, rec.Action)
	assert.Equal(t, hfAddr, rec.FromAddress)
	assert.Equal(t, hlAddr, rec.ToAddress)
	assert.Equal(t, 100_000.0, rec.AmountUSD)

	assert.InDelta(t, 0.7921, rec.NewUtilTo, 1e-4)
	assert.InDelta(t, 0.0674, rec.NewAPYTo, 5e-4)

	// Weighted gain over the modeled ~5.23% baseline is ~151 bps.
	assert.InDelta(t, 151, rec.GainBps, 5)
	assert.True(t, rec.Profitable)
}

func TestDecideHoldsWhenNoPoolsAvailable(t *testing.T) {
	eng := &Engine{
		pools:    types.PoolSet{Pools: map[string]types.PoolSnapshot{}},
		position: types.PositionVector{},
		params:   testParams,
	}

	rec := eng.Decide(context.Background())
	assert.Equal(t, types.ActionHold, rec.Action)
	assert.Equal(t, "no pools available", rec.Reason)
}

func TestClassifyScenario(t *testing.T) {
	cases := []struct {
		name   string
		hlUtil float64
		hfUtil float64
		want   scenarioType
	}{
		{"both near kink", 0.80, 0.81, scenarioEdgeCaseNearKink},
		{"both above", 0.85, 0.90, scenarioBothAboveKink},
		{"both below", 0.50, 0.60, scenarioBothBelowKink},
		{"mixed", 0.90, 0.50, scenarioMixed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pools := canonicalPoolSet(tc.hlUtil, 0.05, tc.hfUtil, 0.05)
			eng, err := New(pools, types.PositionVector{}, testParams, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, eng.classifyScenario())
		})
	}
}

func TestAnalyzeMixedDrainsBelowKinkPool(t *testing.T) {
	// HyperLend runs hot above its kink, HypurrFi sits idle below it. The
	// mixed scenario drains the cold pool into the hot one when the deposit
	// keeps the destination above its kink.
	pools := canonicalPoolSet(0.90, 0.306, 0.50, 0.0263)
	position := types.PositionVector{hfAddr: 500_000}

	eng, err := New(pools, position, testParams, nil)
	require.NoError(t, err)

	rec := eng.Analyze(context.Background())
	require.Equal(t, types.ActionMoveAll, rec.Action)
	assert.Equal(t, hfAddr, rec.FromAddress)
	assert.Equal(t, hlAddr, rec.ToAddress)
	assert.Equal(t, 500_000.0, rec.AmountUSD)
	assert.Greater(t, rec.NewUtilTo, 0.80)
	assert.True(t, rec.Profitable)
}

func TestAnalyzeHoldsWhenAlreadyBalanced(t *testing.T) {
	// Both pools at identical utilization and rate: no move can gain.
	pools := canonicalPoolSet(0.85, 0.09, 0.85, 0.09)
	position := types.PositionVector{hlAddr: 250_000, hfAddr: 250_000}

	eng, err := New(pools, position, testParams, nil)
	require.NoError(t, err)

	rec := eng.Analyze(context.Background())
	assert.Equal(t, types.ActionHold, rec.Action)
}

func TestNewUtilizationAfterTVLChange(t *testing.T) {
	pool := canonicalKinked(types.ProtocolHyperLend, hlAddr, 0.80, 0.06)

	// Withdrawals shrink TVL and raise utilization; deposits dilute it.
	assert.Greater(t, newUtilization(pool, -1_000_000), pool.Utilization)
	assert.InDelta(t, 8.0/11.0, newUtilization(pool, 1_000_000), 1e-9)

	// Draining the whole pool pins utilization at the model ceiling.
	assert.Equal(t, ratemodel.MaxUtilization, newUtilization(pool, -10_000_000))
}

func TestAnalyzeHoldsNearOptimalUtilization(t *testing.T) {
	// Both pools above the kink, right at the optimal 0.825 utilization,
	// with their rates less than a basis point apart. Any transfer pushes
	// the pools apart, so the equilibrium policy must hold.
	pools := canonicalPoolSet(0.825, 0.16316, 0.82502, 0.16324)
	position := types.PositionVector{hlAddr: 250_000, hfAddr: 250_000}

	est := estimator.New(nil)
	spread := math.Abs(est.EstimateAPY(context.Background(), pools.Pools[hlAddr], 0) -
		est.EstimateAPY(context.Background(), pools.Pools[hfAddr], 0))
	require.Less(t, spread, 0.0001)

	eng, err := New(pools, position, testParams, nil)
	require.NoError(t, err)

	rec := eng.Analyze(context.Background())
	assert.Equal(t, types.ActionHold, rec.Action)
	assert.Contains(t, rec.Reason, "both_above_kink")
	assert.InDelta(t, rec.ModeledCurrentWeightedAPY, rec.NewWeightedAPY, 1e-12)
}

func TestFindOptimalAmountAdaptive(t *testing.T) {
	// Smooth unimodal score peaking at 7.3 inside [0, 100]. The refinement
	// stages must land near the peak and never score below the best coarse
	// grid point.
	score := func(x float64) float64 {
		return 10 - (x-7.3)*(x-7.3)/10
	}

	coarseBest := math.Inf(-1)
	for i := 0; i < coarseGridPoints; i++ {
		s := score(100 * float64(i) / float64(coarseGridPoints-1))
		if s > coarseBest {
			coarseBest = s
		}
	}

	amount, best := findOptimalAmountAdaptive(100, score)
	assert.GreaterOrEqual(t, best, coarseBest)
	assert.InDelta(t, 7.3, amount, 0.5)
	assert.GreaterOrEqual(t, amount, 0.0)
	assert.LessOrEqual(t, amount, 100.0)
}

func TestFindOptimalAmountAdaptiveEmptyRange(t *testing.T) {
	amount, best := findOptimalAmountAdaptive(0, func(float64) float64 { return 1 })
	assert.Zero(t, amount)
	assert.Zero(t, best)
}

func TestSafeMaxWithdrawal(t *testing.T) {
	eng := &Engine{params: testParams}
	pool := canonicalKinked(types.ProtocolHyperLend, hlAddr, 0.80, 0.06)

	// Headroom: 10M - 8M/0.87 = ~804,597 caps a larger balance.
	capped := eng.safeMaxWithdrawal(pool, 5_000_000)
	assert.InDelta(t, 10_000_000-8_000_000/0.87, capped, 1)

	// A smaller balance is the binding constraint.
	assert.Equal(t, 100_000.0, eng.safeMaxWithdrawal(pool, 100_000))

	// A pool already past the safe ceiling admits no withdrawal.
	hot := canonicalKinked(types.ProtocolHyperLend, hlAddr, 0.95, 0.30)
	assert.Zero(t, eng.safeMaxWithdrawal(hot, 1_000_000))
}
