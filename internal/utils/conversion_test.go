package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUSDToTokenUnits(t *testing.T) {
	// 100,000 USD at 1.00 per token with 6 decimals.
	units, err := USDToTokenUnits(100_000, 1.0, 6)
	require.NoError(t, err)
	assert.Equal(t, "100000000000", units)

	// Price off peg: 1000 / 0.99980 with 6 decimals, truncated.
	units, err = USDToTokenUnits(1_000, 0.9998, 6)
	require.NoError(t, err)
	assert.Equal(t, "1000200040", units)

	// Zero amount is a valid instruction of zero units.
	units, err = USDToTokenUnits(0, 1.0, 6)
	require.NoError(t, err)
	assert.Equal(t, "0", units)
}

func TestUSDToTokenUnitsRejectsBadInputs(t *testing.T) {
	_, err := USDToTokenUnits(-1, 1.0, 6)
	require.ErrorIs(t, err, ErrAmountNegative)

	_, err = USDToTokenUnits(math.NaN(), 1.0, 6)
	require.ErrorIs(t, err, ErrNotFinite)

	_, err = USDToTokenUnits(100, 0, 6)
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = USDToTokenUnits(100, 1.0, 19)
	require.ErrorIs(t, err, ErrInvalidDecimals)

	_, err = USDToTokenUnits(100, 1.0, -1)
	require.ErrorIs(t, err, ErrInvalidDecimals)
}

func TestFloat64DecRoundtrip(t *testing.T) {
	for _, v := range []float64{0, 1, 0.8287, 123456.789, 1e-9} {
		back := DecToFloat64(Float64ToDec(v))
		assert.InDelta(t, v, back, 1e-12)
	}

	assert.True(t, Float64ToDec(math.NaN()).IsZero())
	assert.True(t, Float64ToDec(math.Inf(1)).IsZero())
}
