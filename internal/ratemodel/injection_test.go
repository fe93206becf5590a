package ratemodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperyield/yvm/internal/types"
)

func twoMarketParams() types.SubmarketParams {
	return types.SubmarketParams{
		ReserveFactor: 0.1,
		Submarkets: []types.Submarket{
			{TotalSupplyAssets: 1_000_000, TotalSupplyShares: 2_000_000, TotalBorrowAssets: 600_000},
			{TotalSupplyAssets: 3_000_000, TotalSupplyShares: 3_000_000, TotalBorrowAssets: 1_000_000},
		},
	}
}

func TestWithExtraSupplyDoesNotMutateInput(t *testing.T) {
	original := twoMarketParams()

	_ = WithExtraSupply(original, 500_000, 0)

	assert.Equal(t, 1_000_000.0, original.Submarkets[0].TotalSupplyAssets)
	assert.Equal(t, 2_000_000.0, original.Submarkets[0].TotalSupplyShares)
	assert.Equal(t, 3_000_000.0, original.Submarkets[1].TotalSupplyAssets)
}

func TestWithExtraSupplyTargeted(t *testing.T) {
	updated := WithExtraSupply(twoMarketParams(), 500_000, 0)

	// Market 0 share price is 0.5 (1M assets over 2M shares), so 500k of
	// assets mints 1M shares.
	assert.InDelta(t, 1_500_000, updated.Submarkets[0].TotalSupplyAssets, 1)
	assert.InDelta(t, 3_000_000, updated.Submarkets[0].TotalSupplyShares, 1)

	// Market 1 untouched.
	assert.Equal(t, 3_000_000.0, updated.Submarkets[1].TotalSupplyAssets)
	assert.Equal(t, 3_000_000.0, updated.Submarkets[1].TotalSupplyShares)

	assert.Equal(t, 0.1, updated.ReserveFactor)
}

func TestWithExtraSupplyProportional(t *testing.T) {
	updated := WithExtraSupply(twoMarketParams(), 400_000, ProportionalInjection)

	// Supply split is 25% / 75%.
	assert.InDelta(t, 1_100_000, updated.Submarkets[0].TotalSupplyAssets, 1)
	assert.InDelta(t, 3_300_000, updated.Submarkets[1].TotalSupplyAssets, 1)

	// Market 1 share price is 1.0 so shares track assets.
	assert.InDelta(t, 3_300_000, updated.Submarkets[1].TotalSupplyShares, 1)
}

func TestWithExtraSupplyZeroShares(t *testing.T) {
	params := types.SubmarketParams{
		Submarkets: []types.Submarket{{TotalSupplyAssets: 0, TotalSupplyShares: 0}},
	}

	updated := WithExtraSupply(params, 1_000, 0)

	// Share price defaults to 1.0 when there are no shares yet.
	require.InDelta(t, 1_000, updated.Submarkets[0].TotalSupplyAssets, 1e-6)
	require.InDelta(t, 1_000, updated.Submarkets[0].TotalSupplyShares, 1e-6)
}

func TestWithExtraSupplyNoop(t *testing.T) {
	original := twoMarketParams()

	updated := WithExtraSupply(original, 0, 0)
	assert.Equal(t, original.Submarkets, updated.Submarkets)

	empty := WithExtraSupply(types.SubmarketParams{}, 500, 0)
	assert.Empty(t, empty.Submarkets)
}

func TestWithExtraSupplyWithdrawal(t *testing.T) {
	updated := WithExtraSupply(twoMarketParams(), -500_000, 1)

	assert.InDelta(t, 2_500_000, updated.Submarkets[1].TotalSupplyAssets, 1)
	assert.InDelta(t, 2_500_000, updated.Submarkets[1].TotalSupplyShares, 1)
}
