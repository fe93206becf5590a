/*

This file contains the multi-submarket weighted rate model used by the
Felix vault. The vault allocates one pot of supply across N isolated
submarkets; each contributes its supply APY weighted by its share of total
supply. Borrow rates come from an injected rate oracle with a static
per-market fallback.

*/

package ratemodel

import (
	"context"
	"errors"
	"math"

	"github.com/hyperyield/yvm/internal/logger"
	"github.com/hyperyield/yvm/internal/types"
)

// SecondsPerYear is the compounding horizon for per-second borrow rates.
const SecondsPerYear = 31536000

// RateScale is the fixed-point scale of oracle-reported per-second rates.
const RateScale = 1e18

var ErrNoUsableSubmarkets = errors.New("no submarket produced a usable APY")

var modelLogger = logger.GetForComponent("rate_model")

// MarketStaticParams are the immutable identifiers of one submarket,
// handed to the rate oracle.
type MarketStaticParams struct {
	LoanToken       string
	CollateralToken string
	Oracle          string
	LLTV            float64
}

// MarketState is the dynamic submarket state handed to the rate oracle.
type MarketState struct {
	TotalSupplyAssets float64
	TotalSupplyShares float64
	TotalBorrowAssets float64
	TotalBorrowShares float64
	Fee               float64
}

// RateOracle answers the current per-second borrow rate (scaled by
// RateScale) for one submarket. Implementations may block on I/O; they are
// called once per submarket per APY evaluation and never retried here.
type RateOracle interface {
	BorrowRateView(ctx context.Context, params MarketStaticParams, state MarketState) (float64, error)
}

// SubmarketWeights computes each submarket's share of the pool's total
// supply. When total supply is zero every submarket gets an equal 1/N
// weight. The returned slice always sums to 1 for a non-empty input.
func SubmarketWeights(submarkets []types.Submarket) []float64 {
	if len(submarkets) == 0 {
		return nil
	}

	total := 0.0
	for _, m := range submarkets {
		total += m.TotalSupplyAssets
	}

	weights := make([]float64, len(submarkets))
	if total == 0 {
		equal := 1.0 / float64(len(submarkets))
		for i := range weights {
			weights[i] = equal
		}
		return weights
	}

	for i, m := range submarkets {
		weights[i] = m.TotalSupplyAssets / total
	}
	return weights
}

// SupplyAPYFromBorrowRate converts a per-second borrow rate into a supply
// APY percentage using discrete per-second compounding over a 365-day year.
// Returns 0 for a market with no supply.
func SupplyAPYFromBorrowRate(borrowRate, totalSupplyAssets, totalBorrowAssets, reserveFactor float64) float64 {
	if totalSupplyAssets == 0 {
		return 0
	}

	ratePerSecond := borrowRate / RateScale
	util := totalBorrowAssets / totalSupplyAssets
	supplyRate := ratePerSecond * util * (1 - reserveFactor)

	supplyAPY := math.Pow(1+supplyRate, SecondsPerYear) - 1
	return supplyAPY * 100
}

// PoolAPY aggregates per-submarket supply APYs into the pool-level APY as
// a supply-weighted average, returned as a percentage.
//
// Borrow rates are resolved per submarket: the oracle is asked first; on
// any oracle failure the submarket's static borrow_rate field is used; if
// neither is available the submarket is excluded from the aggregate rather
// than aborting the computation. ErrNoUsableSubmarkets is returned only
// when no submarket at all produced an APY (callers fall back to the
// snapshot's reported APY).
func PoolAPY(ctx context.Context, params types.SubmarketParams, oracle RateOracle) (float64, error) {
	if len(params.Submarkets) == 0 {
		return 0, ErrNoUsableSubmarkets
	}

	weights := SubmarketWeights(params.Submarkets)

	poolAPY := 0.0
	usable := 0
	for i, market := range params.Submarkets {
		rate, ok := resolveBorrowRate(ctx, market, oracle)
		if !ok {
			modelLogger.Warn().
				Str("loanToken", market.LoanToken).
				Str("collateralToken", market.CollateralToken).
				Msg("Submarket has no oracle rate and no static fallback, excluding from aggregate")
			continue
		}

		apy := SupplyAPYFromBorrowRate(rate, market.TotalSupplyAssets, market.TotalBorrowAssets, params.ReserveFactor)
		poolAPY += weights[i] * apy
		usable++
	}

	if usable == 0 {
		return 0, ErrNoUsableSubmarkets
	}
	return poolAPY, nil
}

// resolveBorrowRate asks the oracle for the market's per-second rate and
// falls back to the static borrow_rate field on any failure.
func resolveBorrowRate(ctx context.Context, market types.Submarket, oracle RateOracle) (float64, bool) {
	if oracle != nil {
		rate, err := oracle.BorrowRateView(ctx,
			MarketStaticParams{
				LoanToken:       market.LoanToken,
				CollateralToken: market.CollateralToken,
				Oracle:          market.Oracle,
				LLTV:            market.LLTV,
			},
			MarketState{
				TotalSupplyAssets: market.TotalSupplyAssets,
				TotalSupplyShares: market.TotalSupplyShares,
				TotalBorrowAssets: market.TotalBorrowAssets,
				TotalBorrowShares: market.TotalBorrowShares,
				Fee:               market.Fee,
			})
		if err == nil {
			return rate, true
		}
		modelLogger.Warn().
			Err(err).
			Str("loanToken", market.LoanToken).
			Str("collateralToken", market.CollateralToken).
			Msg("Rate oracle call failed, using static borrow rate")
	}

	if market.BorrowRate > 0 {
		return market.BorrowRate, true
	}
	return 0, false
}
