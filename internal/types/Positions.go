/*

This file contains the types for vault positions and the transaction-ready
transfer plan emitted once a reallocation decision has been made.

*/

package types

import "time"

// PositionVector maps pool address -> USD balance held by the vault.
// All balances are >= 0.
type PositionVector map[string]float64

// TotalUSD sums the vault's balance across every pool.
func (p PositionVector) TotalUSD() float64 {
	total := 0.0
	for _, bal := range p {
		if bal > 0 {
			total += bal
		}
	}
	return total
}

// WithdrawalInstruction describes the single withdrawal leg of a transfer.
// AmountUSD is always present and authoritative; AmountTokenUnits is
// populated only when the pool snapshot carried token price data.
type WithdrawalInstruction struct {
	PoolAddress      string   `json:"pool_address"`
	Protocol         Protocol `json:"protocol"`
	AmountUSD        float64  `json:"amount_usd"`
	AmountTokenUnits string   `json:"amount_token_units,omitempty"`
}

// AllocationInstruction describes the destination leg of a transfer.
type AllocationInstruction struct {
	PoolAddress      string   `json:"pool_address"`
	Protocol         Protocol `json:"protocol"`
	AmountUSD        float64  `json:"amount_usd"`
	AmountTokenUnits string   `json:"amount_token_units,omitempty"`
}

// TransferPlan is the transaction-instruction block for one decision cycle.
// At most one withdrawal and one allocation per cycle.
type TransferPlan struct {
	Withdrawal  *WithdrawalInstruction  `json:"withdrawal,omitempty"`
	Allocations []AllocationInstruction `json:"allocations,omitempty"`
}

// DecisionRun captures one full decision cycle for the history store.
type DecisionRun struct {
	RunID          string          `json:"run_id"`
	Timestamp      time.Time       `json:"timestamp"`
	Pools          []PoolSnapshot  `json:"pools"`
	Position       PositionVector  `json:"position"`
	Recommendation Recommendation  `json:"recommendation"`
	TransferPlan   *TransferPlan   `json:"transfer_plan,omitempty"`
	Analysis       *Recommendation `json:"analysis,omitempty"` // Equilibrium-policy view, reporting only
}
