/*

Felix pool assembly. The Felix vault spreads one allocation across several
Morpho-style markets; each market's static params and dynamic state are
read individually and combined into one submarket-family payload. Borrow
rates are pinned into the payload as static fallbacks so the estimator can
still run if the IRM contract becomes unreachable mid-cycle.

*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/hyperyield/yvm/internal/config"
	"github.com/hyperyield/yvm/internal/oracle"
	"github.com/hyperyield/yvm/internal/ratemodel"
	"github.com/hyperyield/yvm/internal/types"
)

// Curve placeholders reported for the submarket family; the weighted model
// is authoritative, these only seed the fallback kinked parameterization.
const (
	felixTargetUtilization   = 0.9
	felixInitialRateAtTarget = 0.04
	felixMaxRateAtTarget     = 2.0
	felixReserveFactor       = 0.10
)

// fetchFelixPool reads every configured market and aggregates the
// pool-level figures the normalizer expects.
func (f *Fetcher) fetchFelixPool(ctx context.Context, priceUSD float64) (map[string]any, error) {
	if len(config.FelixMarketIDs) == 0 {
		return nil, errors.Join(ErrMarketDataUnavailable, errors.New("no felix market ids configured"))
	}

	markets := make([]map[string]any, 0, len(config.FelixMarketIDs))
	submarkets := make([]types.Submarket, 0, len(config.FelixMarketIDs))

	for _, marketID := range config.FelixMarketIDs {
		market, sub, err := f.fetchFelixMarket(ctx, marketID)
		if err != nil {
			return nil, err
		}
		markets = append(markets, market)
		submarkets = append(submarkets, sub)
	}

	totalSupply, totalBorrow := 0.0, 0.0
	for _, sub := range submarkets {
		totalSupply += sub.TotalSupplyAssets
		totalBorrow += sub.TotalBorrowAssets
	}
	utilization := 0.0
	if totalSupply > 0 {
		utilization = totalBorrow / totalSupply
	}

	tvlRaw, err := f.client.EthCall(ctx, config.FelixPoolAddress, oracle.EncodeTotalAssets())
	if err != nil {
		return nil, errors.Join(ErrMarketDataUnavailable, fmt.Errorf("totalAssets: %w", err))
	}
	totalAssets, err := uintWordAsFloat(tvlRaw, 0)
	if err != nil {
		return nil, errors.Join(ErrMarketDataUnavailable, err)
	}
	tvlUSD := totalAssets / math.Pow(10, float64(config.AssetDecimals)) * priceUSD

	params := types.SubmarketParams{ReserveFactor: felixReserveFactor, Submarkets: submarkets}
	currentAPYPct, err := ratemodel.PoolAPY(ctx, params, f.irmOracle)
	if err != nil {
		return nil, errors.Join(ErrMarketDataUnavailable,
			fmt.Errorf("felix pool APY: %w", err))
	}

	poolLogger.Debug().
		Int("marketCount", len(markets)).
		Float64("tvlUSD", tvlUSD).
		Float64("utilization", utilization).
		Float64("currentAPYPct", currentAPYPct).
		Msg("Assembled felix pool payload")

	return map[string]any{
		"protocol":        "felix",
		"tvl":             tvlUSD,
		"utilization":     utilization,
		"current_apy":     currentAPYPct / 100,
		"token_price_usd": priceUSD,
		"token_decimals":  config.AssetDecimals,
		"params": map[string]any{
			"target_utilization":     felixTargetUtilization,
			"initial_rate_at_target": felixInitialRateAtTarget,
			"max_rate_at_target":     felixMaxRateAtTarget,
			"reserve_factor":         felixReserveFactor,
			"underlying_markets":     toAnySlice(markets),
		},
	}, nil
}

// fetchFelixMarket reads one market's params and state and resolves its
// current per-second borrow rate.
func (f *Fetcher) fetchFelixMarket(ctx context.Context, marketID string) (map[string]any, types.Submarket, error) {
	paramsRaw, err := f.client.EthCall(ctx, config.FelixPoolAddress, oracle.EncodeIDToMarketParams(marketID))
	if err != nil {
		return nil, types.Submarket{}, errors.Join(ErrMarketDataUnavailable,
			fmt.Errorf("idToMarketParams(%s): %w", marketID, err))
	}

	loanToken, collateralToken, marketOracle, lltvWad, err := decodeMarketParams(paramsRaw)
	if err != nil {
		return nil, types.Submarket{}, errors.Join(ErrMarketDataUnavailable, err)
	}

	stateRaw, err := f.client.EthCall(ctx, config.FelixPoolAddress, oracle.EncodeMarket(marketID))
	if err != nil {
		return nil, types.Submarket{}, errors.Join(ErrMarketDataUnavailable,
			fmt.Errorf("market(%s): %w", marketID, err))
	}

	sub := types.Submarket{
		LoanToken:       loanToken,
		CollateralToken: collateralToken,
		Oracle:          marketOracle,
		LLTV:            lltvWad / ratemodel.RateScale,
	}
	if sub.TotalSupplyAssets, err = uintWordAsFloat(stateRaw, 0); err != nil {
		return nil, types.Submarket{}, errors.Join(ErrMarketDataUnavailable, err)
	}
	if sub.TotalSupplyShares, err = uintWordAsFloat(stateRaw, 1); err != nil {
		return nil, types.Submarket{}, errors.Join(ErrMarketDataUnavailable, err)
	}
	if sub.TotalBorrowAssets, err = uintWordAsFloat(stateRaw, 2); err != nil {
		return nil, types.Submarket{}, errors.Join(ErrMarketDataUnavailable, err)
	}
	if sub.TotalBorrowShares, err = uintWordAsFloat(stateRaw, 3); err != nil {
		return nil, types.Submarket{}, errors.Join(ErrMarketDataUnavailable, err)
	}
	if sub.Fee, err = uintWordAsFloat(stateRaw, 5); err != nil {
		return nil, types.Submarket{}, errors.Join(ErrMarketDataUnavailable, err)
	}

	// Pin the live rate as the payload's static fallback. A failed read
	// here is tolerated: the submarket keeps a zero fallback and relies
	// on the oracle during estimation.
	if f.irmOracle != nil {
		rate, rateErr := f.irmOracle.BorrowRateView(ctx,
			ratemodel.MarketStaticParams{
				LoanToken:       sub.LoanToken,
				CollateralToken: sub.CollateralToken,
				Oracle:          sub.Oracle,
				LLTV:            sub.LLTV,
			},
			ratemodel.MarketState{
				TotalSupplyAssets: sub.TotalSupplyAssets,
				TotalSupplyShares: sub.TotalSupplyShares,
				TotalBorrowAssets: sub.TotalBorrowAssets,
				TotalBorrowShares: sub.TotalBorrowShares,
				Fee:               sub.Fee,
			})
		if rateErr != nil {
			poolLogger.Warn().
				Err(rateErr).
				Str("marketID", marketID).
				Msg("Could not pin static borrow rate for felix market")
		} else {
			sub.BorrowRate = rate
		}
	}

	market := map[string]any{
		"loan_token":          sub.LoanToken,
		"collateral_token":    sub.CollateralToken,
		"oracle":              sub.Oracle,
		"lltv":                sub.LLTV,
		"total_supply_assets": sub.TotalSupplyAssets,
		"total_supply_shares": sub.TotalSupplyShares,
		"total_borrow_assets": sub.TotalBorrowAssets,
		"total_borrow_shares": sub.TotalBorrowShares,
		"fee":                 sub.Fee,
		"borrow_rate":         sub.BorrowRate,
	}
	return market, sub, nil
}

// decodeMarketParams unpacks the five-word market-params tuple.
func decodeMarketParams(data []byte) (loanToken, collateralToken, marketOracle string, lltvWad float64, err error) {
	for i := 0; i < 5; i++ {
		if _, wErr := oracle.Word(data, i); wErr != nil {
			return "", "", "", 0, fmt.Errorf("market params: %w", wErr)
		}
	}

	w0, _ := oracle.Word(data, 0)
	w1, _ := oracle.Word(data, 1)
	w2, _ := oracle.Word(data, 2)
	lltvWad, _ = uintWordAsFloat(data, 4)

	return oracle.DecodeAddressWord(w0), oracle.DecodeAddressWord(w1), oracle.DecodeAddressWord(w2), lltvWad, nil
}

func toAnySlice(markets []map[string]any) []any {
	out := make([]any, len(markets))
	for i, m := range markets {
		out[i] = m
	}
	return out
}
