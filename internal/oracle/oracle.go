/*

IRMOracle adapts the on-chain interest-rate-model contract to the rate
model's oracle interface. One eth_call per submarket: the static market
parameters and the current market state are packed into the view call and
the contract answers the per-second borrow rate scaled by 1e18.

*/

package oracle

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/hyperyield/yvm/internal/logger"
	"github.com/hyperyield/yvm/internal/ratemodel"
)

var oracleLogger = logger.GetForComponent("rate_oracle")

// IRMOracle queries borrowRateView on a Morpho-style IRM contract.
type IRMOracle struct {
	client *RPCClient
	// irmAddress is both the call target and the irm member of the
	// market-params tuple.
	irmAddress string
}

// NewIRMOracle builds an oracle over an existing RPC client.
func NewIRMOracle(client *RPCClient, irmAddress string) *IRMOracle {
	return &IRMOracle{client: client, irmAddress: irmAddress}
}

// BorrowRateView implements ratemodel.RateOracle. The lltv fraction is
// scaled to wei (1e18) and asset amounts are truncated to integers, which
// is how the contract stores them.
func (o *IRMOracle) BorrowRateView(ctx context.Context, params ratemodel.MarketStaticParams, state ratemodel.MarketState) (float64, error) {
	lltv := floatToWad(params.LLTV)

	marketWords := [6]*big.Int{
		floatToUint(state.TotalSupplyAssets),
		floatToUint(state.TotalSupplyShares),
		floatToUint(state.TotalBorrowAssets),
		floatToUint(state.TotalBorrowShares),
		big.NewInt(time.Now().Unix()), // lastUpdate: state was fetched this cycle
		floatToUint(state.Fee),
	}

	calldata := EncodeBorrowRateView(
		params.LoanToken,
		params.CollateralToken,
		params.Oracle,
		o.irmAddress,
		lltv,
		marketWords,
	)

	result, err := o.client.EthCall(ctx, o.irmAddress, calldata)
	if err != nil {
		return 0, fmt.Errorf("borrowRateView call: %w", err)
	}

	rateWord, err := Word(result, 0)
	if err != nil {
		return 0, fmt.Errorf("borrowRateView result: %w", err)
	}

	rate, _ := new(big.Float).SetInt(DecodeUint256(rateWord)).Float64()
	oracleLogger.Debug().
		Str("loanToken", params.LoanToken).
		Str("collateralToken", params.CollateralToken).
		Float64("perSecondRate", rate).
		Msg("Fetched borrow rate from IRM contract")
	return rate, nil
}

// floatToWad converts a fraction like 0.77 to its 1e18 fixed-point form.
func floatToWad(v float64) *big.Int {
	scaled := new(big.Float).Mul(big.NewFloat(v), big.NewFloat(1e18))
	out, _ := scaled.Int(nil)
	return out
}

// floatToUint truncates a non-negative float to a big integer.
func floatToUint(v float64) *big.Int {
	if math.IsNaN(v) || v <= 0 {
		return big.NewInt(0)
	}
	out, _ := big.NewFloat(v).Int(nil)
	return out
}
