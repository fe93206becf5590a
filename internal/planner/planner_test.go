package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperyield/yvm/internal/types"
)

const (
	fromAddr = "0x1111111111111111111111111111111111111111"
	toAddr   = "0x2222222222222222222222222222222222222222"
)

func pricedPoolSet() types.PoolSet {
	return types.PoolSet{
		Pools: map[string]types.PoolSnapshot{
			fromAddr: {
				Protocol:      types.ProtocolHypurrFi,
				PoolAddress:   fromAddr,
				TokenPriceUSD: 1.0,
				TokenDecimals: 6,
			},
			toAddr: {
				Protocol:      types.ProtocolHyperLend,
				PoolAddress:   toAddr,
				TokenPriceUSD: 1.0,
				TokenDecimals: 6,
			},
		},
	}
}

func moveRec() types.Recommendation {
	return types.Recommendation{
		Action:       types.ActionReallocate,
		FromAddress:  fromAddr,
		FromProtocol: types.ProtocolHypurrFi,
		ToAddress:    toAddr,
		ToProtocol:   types.ProtocolHyperLend,
		AmountUSD:    100_000,
	}
}

func TestBuildTransferPlan(t *testing.T) {
	plan := BuildTransferPlan(moveRec(), pricedPoolSet())

	require.NotNil(t, plan.Withdrawal)
	assert.Equal(t, fromAddr, plan.Withdrawal.PoolAddress)
	assert.Equal(t, types.ProtocolHypurrFi, plan.Withdrawal.Protocol)
	assert.Equal(t, 100_000.0, plan.Withdrawal.AmountUSD)
	assert.Equal(t, "100000000000", plan.Withdrawal.AmountTokenUnits)

	require.Len(t, plan.Allocations, 1)
	alloc := plan.Allocations[0]
	assert.Equal(t, toAddr, alloc.PoolAddress)
	assert.Equal(t, types.ProtocolHyperLend, alloc.Protocol)
	assert.Equal(t, 100_000.0, alloc.AmountUSD)
	assert.Equal(t, "100000000000", alloc.AmountTokenUnits)
}

func TestBuildTransferPlanHold(t *testing.T) {
	plan := BuildTransferPlan(types.Recommendation{Action: types.ActionHold}, pricedPoolSet())
	assert.Nil(t, plan.Withdrawal)
	assert.Empty(t, plan.Allocations)

	rec := moveRec()
	rec.AmountUSD = 0
	plan = BuildTransferPlan(rec, pricedPoolSet())
	assert.Nil(t, plan.Withdrawal)
}

func TestBuildTransferPlanWithoutPriceData(t *testing.T) {
	pools := pricedPoolSet()
	from := pools.Pools[fromAddr]
	from.TokenPriceUSD = 0
	pools.Pools[fromAddr] = from

	plan := BuildTransferPlan(moveRec(), pools)

	// The USD amount stays authoritative; only the token-unit hint is dropped.
	require.NotNil(t, plan.Withdrawal)
	assert.Empty(t, plan.Withdrawal.AmountTokenUnits)
	assert.Equal(t, 100_000.0, plan.Withdrawal.AmountUSD)

	require.Len(t, plan.Allocations, 1)
	assert.Equal(t, "100000000000", plan.Allocations[0].AmountTokenUnits)
}

func TestBuildTransferPlanUnknownPool(t *testing.T) {
	plan := BuildTransferPlan(moveRec(), types.PoolSet{Pools: map[string]types.PoolSnapshot{}})

	require.NotNil(t, plan.Withdrawal)
	assert.Empty(t, plan.Withdrawal.AmountTokenUnits)
}
