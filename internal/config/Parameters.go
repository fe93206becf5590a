/*

This file contains the default safety parameters for the YVM.

These parameters bound the equilibrium rebalance search when managing
significant stablecoin capital across HyperEVM lending pools. Each value
balances yield capture against the risk of pushing a pool into an unstable
utilization regime.

*/

package config

import (
	"github.com/hyperyield/yvm/internal/types"
)

// DefaultSafetyParameters provides the baseline thresholds for the decision
// engine's equilibrium search. These values are used unless an operator has
// stored an overriding set in the database.
var DefaultSafetyParameters = types.SafetyParameters{
	MinGainBps: 10,
	// Rationale: gas plus slippage on a withdraw/deposit round trip eats
	// roughly single-digit basis points on the sizes this vault moves.
	// Anything under 10 bps of modeled annual gain is noise, not signal.

	MinSafeUtilization: 0.805,
	MaxSafeUtilization: 0.87,
	// Rationale: both canonical pools kink at 0.80. Below the kink the
	// supply rate collapses; far above it withdrawals start failing for
	// other suppliers and the pool risks a rate spike. The band keeps
	// post-move utilization just above the kink but comfortably liquid.

	MaxSpreadBps: 100,
	// Rationale: a post-move APY spread above 100 bps means capital is
	// still badly placed and borrow demand will arbitrage the pools
	// against us. Moves that widen the spread past this are rejected
	// unless they at least narrow the pre-move spread.

	OptimalUtilization: 0.825,
	// Rationale: midpoint of the safe band. The stability score rewards
	// moves that leave both pools near this target.
}
