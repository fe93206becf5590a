/*

Position retrieval: the vault's USD balance in each pool. Kinked-pool
balances come from the interest-bearing token's balanceOf; the Felix
balance is the vault's maxWithdraw, which already folds in share price.

*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/hyperyield/yvm/internal/config"
	"github.com/hyperyield/yvm/internal/oracle"
	"github.com/hyperyield/yvm/internal/types"
)

var ErrPositionUnavailable = errors.New("vault position unavailable")

// FetchPosition reads the vault's balance in every pool. Strict like the
// pool fetch: a single unreadable balance fails the cycle.
func (f *Fetcher) FetchPosition(ctx context.Context) (types.PositionVector, error) {
	price, err := f.assetPriceUSD(ctx)
	if err != nil {
		return nil, err
	}

	position := make(types.PositionVector, 3)

	hyperLend, err := f.kinkedBalanceUSD(ctx, config.HyperLendDataProvider, price)
	if err != nil {
		return nil, errors.Join(ErrPositionUnavailable, fmt.Errorf("hyperlend balance: %w", err))
	}
	position[config.HyperLendPoolAddress] = hyperLend

	hypurrFi, err := f.kinkedBalanceUSD(ctx, config.HypurrFiDataProvider, price)
	if err != nil {
		return nil, errors.Join(ErrPositionUnavailable, fmt.Errorf("hypurrfi balance: %w", err))
	}
	position[config.HypurrFiPoolAddress] = hypurrFi

	felixRaw, err := f.client.EthCall(ctx, config.FelixPoolAddress, oracle.EncodeMaxWithdraw(config.VaultAddress))
	if err != nil {
		return nil, errors.Join(ErrPositionUnavailable, fmt.Errorf("felix maxWithdraw: %w", err))
	}
	felixUnits, err := uintWordAsFloat(felixRaw, 0)
	if err != nil {
		return nil, errors.Join(ErrPositionUnavailable, err)
	}
	position[config.FelixPoolAddress] = unitsToUSD(felixUnits, price)

	poolLogger.Info().
		Float64("totalUSD", position.TotalUSD()).
		Msg("Fetched vault position")
	return position, nil
}

// kinkedBalanceUSD resolves the protocol's interest-bearing token for the
// asset and reads the vault's balance on it.
func (f *Fetcher) kinkedBalanceUSD(ctx context.Context, dataProvider string, priceUSD float64) (float64, error) {
	tokens, err := f.client.EthCall(ctx, dataProvider, oracle.EncodeGetReserveTokensAddresses(config.AssetAddress))
	if err != nil {
		return 0, fmt.Errorf("getReserveTokensAddresses: %w", err)
	}
	aTokenWord, err := oracle.Word(tokens, 0)
	if err != nil {
		return 0, err
	}
	aToken := oracle.DecodeAddressWord(aTokenWord)

	balanceRaw, err := f.client.EthCall(ctx, aToken, oracle.EncodeBalanceOf(config.VaultAddress))
	if err != nil {
		return 0, fmt.Errorf("balanceOf on %s: %w", aToken, err)
	}
	units, err := uintWordAsFloat(balanceRaw, 0)
	if err != nil {
		return 0, err
	}
	return unitsToUSD(units, priceUSD), nil
}

func unitsToUSD(units, priceUSD float64) float64 {
	return units / math.Pow(10, float64(config.AssetDecimals)) * priceUSD
}
