package ratemodel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperyield/yvm/internal/types"
)

var testKinkedParams = types.KinkedParams{
	Kink:          0.80,
	Slope1:        0.104,
	Slope2:        1.0,
	ReserveFactor: 0.20,
}

func TestBorrowAPRContinuousAtKink(t *testing.T) {
	atKink := BorrowAPR(testKinkedParams.Kink, testKinkedParams)
	require.InDelta(t, testKinkedParams.Slope1, atKink, 1e-15, "borrow APR at the kink must equal slope1")

	justAbove := BorrowAPR(testKinkedParams.Kink+1e-9, testKinkedParams)
	assert.InDelta(t, atKink, justAbove, 1e-7)
}

func TestBorrowAPRMonotonic(t *testing.T) {
	prev := BorrowAPR(0.01, testKinkedParams)
	for u := 0.02; u <= 0.99; u += 0.01 {
		cur := BorrowAPR(u, testKinkedParams)
		require.GreaterOrEqualf(t, cur, prev, "borrow APR decreased between u=%f and u=%f", u-0.01, u)
		prev = cur
	}
}

func TestKinkedSupplyAPYKnownValue(t *testing.T) {
	u := 0.8287

	borrowAPR := BorrowAPR(u, testKinkedParams)
	assert.InDelta(t, 0.2475, borrowAPR, 1e-4)

	supplyAPR := borrowAPR * u * (1 - testKinkedParams.ReserveFactor)
	assert.InDelta(t, 0.1641, supplyAPR, 1e-4)

	apyPct := KinkedSupplyAPY(u, testKinkedParams)
	assert.InDelta(t, 17.83, apyPct, 0.01)
}

func TestKinkedSupplyAPYClampsUtilization(t *testing.T) {
	below := KinkedSupplyAPY(-0.5, testKinkedParams)
	atMin := KinkedSupplyAPY(MinUtilization, testKinkedParams)
	assert.Equal(t, atMin, below)

	above := KinkedSupplyAPY(1.5, testKinkedParams)
	atMax := KinkedSupplyAPY(MaxUtilization, testKinkedParams)
	assert.Equal(t, atMax, above)
}

func TestNewUtilization(t *testing.T) {
	// Withdrawal shrinks TVL and raises utilization.
	raised := NewUtilization(1_000_000, 700_000, -100_000)
	assert.InDelta(t, 700_000.0/900_000.0, raised, 1e-12)

	// Deposit grows TVL and lowers utilization.
	lowered := NewUtilization(1_000_000, 700_000, 250_000)
	assert.InDelta(t, 0.56, lowered, 1e-12)

	// Draining the pool entirely reads as maximally utilized.
	assert.Equal(t, MaxUtilization, NewUtilization(1_000_000, 700_000, -1_000_000))
	assert.Equal(t, MaxUtilization, NewUtilization(1_000_000, 700_000, -2_000_000))
}

func TestSupplyAPYBelowBorrowAPY(t *testing.T) {
	for u := 0.05; u < 1.0; u += 0.05 {
		borrowAPYPct := (math.Exp(BorrowAPR(u, testKinkedParams)) - 1) * 100
		supplyAPYPct := KinkedSupplyAPY(u, testKinkedParams)
		require.Less(t, supplyAPYPct, borrowAPYPct)
	}
}
