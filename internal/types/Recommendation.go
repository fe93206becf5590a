/*

This file contains the recommendation type returned by the decision engine,
and the tunable safety parameters that bound the equilibrium search.

*/

package types

// Action is the decision taken for one cycle.
type Action string

const (
	ActionHold       Action = "hold"
	ActionReallocate Action = "reallocate" // Best-single-move policy, full source balance
	ActionMoveAll    Action = "move_all"   // Two-pool weighted policy, full source balance
	ActionRebalance  Action = "rebalance"  // Equilibrium search, optimized partial amount
)

// Recommendation is the engine's output for a single decision pass.
// When Action is ActionHold only Reason is meaningful.
type Recommendation struct {
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`

	FromAddress  string   `json:"from_address,omitempty"`
	FromProtocol Protocol `json:"from_protocol,omitempty"`
	ToAddress    string   `json:"to_address,omitempty"`
	ToProtocol   Protocol `json:"to_protocol,omitempty"`
	AmountUSD    float64  `json:"amount_usd,omitempty"`

	// Post-move projections, fractions unless noted.
	NewUtilFrom float64 `json:"new_util_from,omitempty"`
	NewUtilTo   float64 `json:"new_util_to,omitempty"`
	NewAPYFrom  float64 `json:"new_apy_from,omitempty"`
	NewAPYTo    float64 `json:"new_apy_to,omitempty"`

	// Weighted-APY bookkeeping. The observed value comes from the
	// snapshot-reported current_apy fields and is display only; the
	// modeled value is what decisions are judged against.
	ObservedCurrentWeightedAPY float64 `json:"observed_current_weighted_apy,omitempty"`
	ModeledCurrentWeightedAPY  float64 `json:"modeled_current_weighted_apy,omitempty"`
	NewWeightedAPY             float64 `json:"new_weighted_apy,omitempty"`

	GainBps        float64 `json:"gain_bps"`
	StabilityScore float64 `json:"stability_score,omitempty"`
	Profitable     bool    `json:"profitable"`
}

// SafetyParameters holds all tunable thresholds used by the equilibrium
// search. Different sets of these can exist for different vault mandates.
type SafetyParameters struct {
	// MinGainBps is the minimum modeled gain, in basis points, for a move
	// to be flagged profitable.
	MinGainBps float64 `json:"min_gain_bps"`

	// MinSafeUtilization / MaxSafeUtilization bound the post-move
	// utilization band treated as stable.
	MinSafeUtilization float64 `json:"min_safe_utilization"`
	MaxSafeUtilization float64 `json:"max_safe_utilization"`

	// MaxSpreadBps is the largest post-move APY spread, in basis points,
	// the stability guard accepts without requiring spread reduction.
	MaxSpreadBps float64 `json:"max_spread_bps"`

	// OptimalUtilization is the utilization target the stability score
	// rewards proximity to.
	OptimalUtilization float64 `json:"optimal_utilization"`
}
