package ratemodel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperyield/yvm/internal/types"
)

// stubOracle returns a fixed rate, or an error when failing is set.
type stubOracle struct {
	rate    float64
	failing bool
	calls   int
}

func (s *stubOracle) BorrowRateView(_ context.Context, _ MarketStaticParams, _ MarketState) (float64, error) {
	s.calls++
	if s.failing {
		return 0, errors.New("rpc unavailable")
	}
	return s.rate, nil
}

func TestSubmarketWeights(t *testing.T) {
	markets := []types.Submarket{
		{TotalSupplyAssets: 100},
		{TotalSupplyAssets: 300},
		{TotalSupplyAssets: 600},
	}

	weights := SubmarketWeights(markets)
	require.Len(t, weights, 3)
	assert.InDelta(t, 0.1, weights[0], 1e-12)
	assert.InDelta(t, 0.3, weights[1], 1e-12)
	assert.InDelta(t, 0.6, weights[2], 1e-12)

	sum := weights[0] + weights[1] + weights[2]
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestSubmarketWeightsZeroSupply(t *testing.T) {
	markets := []types.Submarket{{}, {}, {}, {}}

	weights := SubmarketWeights(markets)
	require.Len(t, weights, 4)
	for _, w := range weights {
		assert.InDelta(t, 0.25, w, 1e-12)
	}
}

func TestSubmarketWeightsEmpty(t *testing.T) {
	assert.Nil(t, SubmarketWeights(nil))
}

func TestSupplyAPYFromBorrowRate(t *testing.T) {
	// No supply means no yield, whatever the rate says.
	assert.Zero(t, SupplyAPYFromBorrowRate(1e9, 0, 0, 0.1))

	// No borrow means the supply side earns nothing.
	assert.Zero(t, SupplyAPYFromBorrowRate(1e9, 1_000_000, 0, 0.1))

	// 1e9 per-second rate at 50% utilization, no reserve factor:
	// (1 + 0.5e-9)^31536000 - 1 = ~1.589%.
	apy := SupplyAPYFromBorrowRate(1e9, 2_000_000, 1_000_000, 0)
	assert.InDelta(t, 1.58929, apy, 1e-3)

	// The reserve factor cuts the supply side proportionally (to first order).
	withRF := SupplyAPYFromBorrowRate(1e9, 2_000_000, 1_000_000, 0.5)
	assert.Less(t, withRF, apy)
}

func TestPoolAPYUsesOracleRates(t *testing.T) {
	oracle := &stubOracle{rate: 1e9}
	params := types.SubmarketParams{
		ReserveFactor: 0,
		Submarkets: []types.Submarket{
			{TotalSupplyAssets: 2_000_000, TotalBorrowAssets: 1_000_000},
			{TotalSupplyAssets: 2_000_000, TotalBorrowAssets: 1_000_000},
		},
	}

	apy, err := PoolAPY(context.Background(), params, oracle)
	require.NoError(t, err)
	assert.Equal(t, 2, oracle.calls)

	// Identical markets: weighted aggregate equals the per-market APY.
	perMarket := SupplyAPYFromBorrowRate(1e9, 2_000_000, 1_000_000, 0)
	assert.InDelta(t, perMarket, apy, 1e-12)
}

func TestPoolAPYStaticFallbackOnOracleFailure(t *testing.T) {
	oracle := &stubOracle{failing: true}
	params := types.SubmarketParams{
		Submarkets: []types.Submarket{
			{TotalSupplyAssets: 2_000_000, TotalBorrowAssets: 1_000_000, BorrowRate: 1e9},
		},
	}

	apy, err := PoolAPY(context.Background(), params, oracle)
	require.NoError(t, err)
	assert.InDelta(t, SupplyAPYFromBorrowRate(1e9, 2_000_000, 1_000_000, 0), apy, 1e-12)
}

func TestPoolAPYNoUsableSubmarkets(t *testing.T) {
	oracle := &stubOracle{failing: true}
	params := types.SubmarketParams{
		Submarkets: []types.Submarket{
			{TotalSupplyAssets: 1_000_000, TotalBorrowAssets: 500_000}, // no static rate either
		},
	}

	_, err := PoolAPY(context.Background(), params, oracle)
	require.ErrorIs(t, err, ErrNoUsableSubmarkets)

	_, err = PoolAPY(context.Background(), types.SubmarketParams{}, oracle)
	require.ErrorIs(t, err, ErrNoUsableSubmarkets)
}

func TestPoolAPYSkipsDeadMarketButKeepsRest(t *testing.T) {
	params := types.SubmarketParams{
		Submarkets: []types.Submarket{
			{TotalSupplyAssets: 1_000_000, TotalBorrowAssets: 500_000}, // excluded, no rate
			{TotalSupplyAssets: 1_000_000, TotalBorrowAssets: 500_000, BorrowRate: 1e9},
		},
	}

	apy, err := PoolAPY(context.Background(), params, nil)
	require.NoError(t, err)

	// Only the second market contributes, at its 0.5 supply weight.
	expected := 0.5 * SupplyAPYFromBorrowRate(1e9, 1_000_000, 500_000, 0)
	assert.InDelta(t, expected, apy, 1e-12)
}
