/*

This is a custom type for lending pool snapshots which contains all the state
needed for estimating supply APYs under hypothetical TVL changes.

*/

package types

// Protocol is a canonical protocol identity produced by the normalizer.
type Protocol string

const (
	ProtocolHyperLend Protocol = "HyperLend"
	ProtocolHypurrFi  Protocol = "HypurrFi"
	ProtocolFelix     Protocol = "Felix"
)

// RateModelKind tags which interest-rate model a pool snapshot carries.
type RateModelKind string

const (
	RateModelKinked    RateModelKind = "kinked"
	RateModelSubmarket RateModelKind = "submarket"
)

// KinkedParams holds the parameters of a single-curve kinked interest
// rate model (Aave-style). All values are fractions, not percentages.
type KinkedParams struct {
	Kink          float64 `json:"kink"`           // Utilization breakpoint, in (0,1)
	Slope1        float64 `json:"slope1"`         // Borrow APR slope below the kink, >= 0
	Slope2        float64 `json:"slope2"`         // Additional slope above the kink, >= 0
	ReserveFactor float64 `json:"reserve_factor"` // Share of interest kept by the protocol, in [0,1)
}

// Submarket is one isolated lending market nested inside a multi-market
// vault-style protocol. Asset amounts are raw token units as reported
// on-chain.
type Submarket struct {
	LoanToken         string  `json:"loan_token"`
	CollateralToken   string  `json:"collateral_token"`
	Oracle            string  `json:"oracle"`
	LLTV              float64 `json:"lltv"`
	TotalSupplyAssets float64 `json:"total_supply_assets"`
	TotalSupplyShares float64 `json:"total_supply_shares"`
	TotalBorrowAssets float64 `json:"total_borrow_assets"`
	TotalBorrowShares float64 `json:"total_borrow_shares"`
	Fee               float64 `json:"fee"`
	BorrowRate        float64 `json:"borrow_rate,omitempty"` // Static per-second rate scaled by 1e18, oracle fallback
}

// SubmarketParams holds the full submarket list for a multi-market pool
// plus the vault-level reserve factor.
type SubmarketParams struct {
	ReserveFactor float64     `json:"reserve_factor"`
	Submarkets    []Submarket `json:"underlying_markets"`
}

// PoolSnapshot is the normalized, transient view of one lending pool used
// for a single decision pass. It is never persisted by the engine; the
// state package stores a JSON copy for history only.
type PoolSnapshot struct {
	Protocol    Protocol `json:"protocol"`
	PoolAddress string   `json:"pool_address"` // Unique key
	CurrentAPY  float64  `json:"current_apy"`  // Fraction (0.12 == 12%)
	TvlUSD      float64  `json:"tvl"`          // Total value locked in USD
	Utilization float64  `json:"utilization"`  // Fraction in [0,1)

	ModelKind RateModelKind    `json:"model_kind"`
	Kinked    *KinkedParams    `json:"kinked_params,omitempty"`
	Submarket *SubmarketParams `json:"submarket_params,omitempty"`

	// Optional token price data for USD <-> token-unit conversion.
	TokenPriceUSD float64 `json:"token_price_usd,omitempty"`
	TokenDecimals int     `json:"token_decimals,omitempty"`
}

// TotalBorrowUSD derives the borrowed amount implied by TVL and utilization.
func (p PoolSnapshot) TotalBorrowUSD() float64 {
	return p.TvlUSD * p.Utilization
}

// AvailableLiquidityUSD is the unborrowed portion of the pool's TVL.
func (p PoolSnapshot) AvailableLiquidityUSD() float64 {
	avail := p.TvlUSD - p.TotalBorrowUSD()
	if avail < 0 {
		return 0
	}
	return avail
}

// PoolSet is the normalizer's output: snapshots keyed by pool address plus
// the protocol <-> address bijection for the canonical protocols.
type PoolSet struct {
	Pools             map[string]PoolSnapshot `json:"pools"`
	ProtocolToAddress map[Protocol]string     `json:"protocol_to_address"`
	AddressToProtocol map[string]Protocol     `json:"address_to_protocol"`
}
