/*

This package builds the raw pool payloads the normalizer consumes, reading
everything from chain. Kinked pools come from an Aave-style protocol data
provider; the Felix pool is assembled from its Morpho-style market structs.
Retrieval is strict: a failed read for any pool aborts the whole fetch, as
partial pool sets would skew the reallocation decision.

*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/hyperyield/yvm/internal/config"
	"github.com/hyperyield/yvm/internal/logger"
	"github.com/hyperyield/yvm/internal/oracle"
	"github.com/hyperyield/yvm/internal/ratemodel"
	"github.com/hyperyield/yvm/internal/types"
)

var poolLogger = logger.GetForComponent("pool_retriever")

var (
	ErrReserveDataUnavailable = errors.New("reserve data unavailable")
	ErrMarketDataUnavailable  = errors.New("felix market data unavailable")
	ErrPriceUnavailable       = errors.New("asset price unavailable")
)

// rayScale is the 1e27 fixed-point scale of Aave-style reserve rates.
const rayScale = 1e27

// priceScale is the 1e8 scale of Aave-style oracle prices.
const priceScale = 1e8

// rateStrategy carries the published rate-strategy constants for a kinked
// protocol. They parameterize the what-if model, not the on-chain rates.
type rateStrategy struct {
	Kink          float64
	Slope1        float64
	Slope2        float64
	ReserveFactor float64
}

var kinkedStrategies = map[types.Protocol]rateStrategy{
	types.ProtocolHyperLend: {Kink: 0.80, Slope1: 0.052, Slope2: 1.00, ReserveFactor: 0.10},
	types.ProtocolHypurrFi:  {Kink: 0.80, Slope1: 0.040, Slope2: 0.75, ReserveFactor: 0.10},
}

// Fetcher reads pool and position state over JSON-RPC.
type Fetcher struct {
	client    *oracle.RPCClient
	irmOracle ratemodel.RateOracle
}

// NewFetcher builds a fetcher over an RPC client. The IRM oracle is used
// once per Felix submarket to pin a static borrow-rate fallback into the
// payload so later what-if passes survive transient RPC failures.
func NewFetcher(client *oracle.RPCClient, irmOracle ratemodel.RateOracle) *Fetcher {
	return &Fetcher{client: client, irmOracle: irmOracle}
}

// FetchAllPools assembles the raw payload map keyed by pool address. No
// partial results: if any pool cannot be read the whole fetch fails.
func (f *Fetcher) FetchAllPools(ctx context.Context) (map[string]map[string]any, error) {
	price, err := f.assetPriceUSD(ctx)
	if err != nil {
		return nil, err
	}

	payloads := make(map[string]map[string]any, 3)

	hyperLend, err := f.fetchKinkedPool(ctx, types.ProtocolHyperLend, config.HyperLendDataProvider, price)
	if err != nil {
		return nil, err
	}
	payloads[config.HyperLendPoolAddress] = hyperLend

	hypurrFi, err := f.fetchKinkedPool(ctx, types.ProtocolHypurrFi, config.HypurrFiDataProvider, price)
	if err != nil {
		return nil, err
	}
	payloads[config.HypurrFiPoolAddress] = hypurrFi

	felix, err := f.fetchFelixPool(ctx, price)
	if err != nil {
		return nil, err
	}
	payloads[config.FelixPoolAddress] = felix

	poolLogger.Info().Int("poolCount", len(payloads)).Msg("Fetched all pool payloads")
	return payloads, nil
}

// fetchKinkedPool reads the asset's reserve state from the protocol's data
// provider and folds in the protocol's rate-strategy constants.
func (f *Fetcher) fetchKinkedPool(ctx context.Context, protocol types.Protocol, dataProvider string, priceUSD float64) (map[string]any, error) {
	strategy, ok := kinkedStrategies[protocol]
	if !ok {
		return nil, fmt.Errorf("no rate strategy known for protocol %s", protocol)
	}

	result, err := f.client.EthCall(ctx, dataProvider, oracle.EncodeGetReserveData(config.AssetAddress))
	if err != nil {
		return nil, errors.Join(ErrReserveDataUnavailable,
			fmt.Errorf("%s getReserveData: %w", protocol, err))
	}

	// Data-provider layout: unbacked, accruedToTreasuryScaled, totalAToken,
	// totalStableDebt, totalVariableDebt, liquidityRate, ...
	totalAToken, err := uintWordAsFloat(result, 2)
	if err != nil {
		return nil, errors.Join(ErrReserveDataUnavailable, err)
	}
	totalStableDebt, err := uintWordAsFloat(result, 3)
	if err != nil {
		return nil, errors.Join(ErrReserveDataUnavailable, err)
	}
	totalVariableDebt, err := uintWordAsFloat(result, 4)
	if err != nil {
		return nil, errors.Join(ErrReserveDataUnavailable, err)
	}
	liquidityRate, err := uintWordAsFloat(result, 5)
	if err != nil {
		return nil, errors.Join(ErrReserveDataUnavailable, err)
	}

	totalDebt := totalStableDebt + totalVariableDebt
	utilization := 0.0
	if totalAToken > 0 {
		utilization = totalDebt / totalAToken
	}

	supplyAPR := liquidityRate / rayScale
	currentAPY := math.Expm1(supplyAPR)
	tvlUSD := totalAToken / math.Pow(10, float64(config.AssetDecimals)) * priceUSD

	poolLogger.Debug().
		Str("protocol", string(protocol)).
		Float64("tvlUSD", tvlUSD).
		Float64("utilization", utilization).
		Float64("currentAPY", currentAPY).
		Msg("Fetched kinked pool reserve data")

	return map[string]any{
		"protocol":        string(protocol),
		"tvl":             tvlUSD,
		"utilization":     utilization,
		"current_apy":     currentAPY,
		"kink":            strategy.Kink,
		"slope1":          strategy.Slope1,
		"slope2":          strategy.Slope2,
		"reserve_factor":  strategy.ReserveFactor,
		"token_price_usd": priceUSD,
		"token_decimals":  config.AssetDecimals,
	}, nil
}

// assetPriceUSD reads the underlying asset's USD price from the oracle.
func (f *Fetcher) assetPriceUSD(ctx context.Context) (float64, error) {
	result, err := f.client.EthCall(ctx, config.PriceOracleAddress, oracle.EncodeGetAssetPrice(config.AssetAddress))
	if err != nil {
		return 0, errors.Join(ErrPriceUnavailable, err)
	}

	raw, err := uintWordAsFloat(result, 0)
	if err != nil {
		return 0, errors.Join(ErrPriceUnavailable, err)
	}

	price := raw / priceScale
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, errors.Join(ErrPriceUnavailable,
			fmt.Errorf("oracle returned unusable price %f", price))
	}
	return price, nil
}

// uintWordAsFloat decodes the i-th return word as a float64. Precision
// loss above 2^53 is acceptable for the USD-level math done here.
func uintWordAsFloat(data []byte, i int) (float64, error) {
	w, err := oracle.Word(data, i)
	if err != nil {
		return 0, err
	}
	v, _ := new(big.Float).SetInt(oracle.DecodeUint256(w)).Float64()
	return v, nil
}
