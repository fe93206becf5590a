/*
This file contains common utility functions for converting between float64
amounts and SDK fixed-point decimals, and for USD <-> token-unit conversion.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidDecimals  = errors.New("token decimals are invalid")
	ErrInvalidPrice     = errors.New("token price must be positive")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// Float64ToDec converts a float64 into a LegacyDec by formatting it with
// the full 18 decimal places LegacyDec carries.
// Non-finite inputs collapse to zero; callers validate finiteness upstream.
func Float64ToDec(v float64) sdkmath.LegacyDec {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sdkmath.LegacyZeroDec()
	}
	dec, err := sdkmath.LegacyNewDecFromStr(fmt.Sprintf("%.18f", v))
	if err != nil {
		return sdkmath.LegacyZeroDec()
	}
	return dec
}

// DecToFloat64 converts a LegacyDec back to float64, returning 0 for any
// value that does not fit.
func DecToFloat64(d sdkmath.LegacyDec) float64 {
	f, err := d.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// USDToTokenUnits converts a USD amount into raw token base units
// (amountUSD / priceUSD * 10^decimals), rendered as an integer string.
func USDToTokenUnits(amountUSD, tokenPriceUSD float64, tokenDecimals int) (string, error) {
	if math.IsNaN(amountUSD) || math.IsInf(amountUSD, 0) {
		return "", fmt.Errorf("%w: amount is %f", ErrNotFinite, amountUSD)
	}
	if amountUSD < 0 {
		return "", ErrAmountNegative
	}
	if tokenPriceUSD <= 0 || math.IsNaN(tokenPriceUSD) || math.IsInf(tokenPriceUSD, 0) {
		return "", ErrInvalidPrice
	}
	if tokenDecimals < 0 || tokenDecimals > 18 {
		return "", fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidDecimals, tokenDecimals)
	}

	amount := Float64ToDec(amountUSD)
	price := Float64ToDec(tokenPriceUSD)
	if !price.IsPositive() {
		return "", ErrInvalidPrice
	}

	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < tokenDecimals; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	units := amount.Quo(price).Mul(factor).TruncateInt()
	if units.IsNegative() {
		return "", ErrConversionFailed
	}
	return units.String(), nil
}
