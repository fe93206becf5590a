// ./internal/state/decision_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hyperyield/yvm/internal/types"
)

var ErrDecisionNotFound = errors.New("decision run not found")

// SaveDecisionRun persists one full decision cycle.
func SaveDecisionRun(run types.DecisionRun) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	poolsJSON, err := json.Marshal(run.Pools)
	if err != nil {
		return fmt.Errorf("failed to marshal pools: %w", err)
	}

	positionJSON, err := json.Marshal(run.Position)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}

	recommendationJSON, err := json.Marshal(run.Recommendation)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendation: %w", err)
	}

	var transferPlanJSON []byte
	if run.TransferPlan != nil {
		if transferPlanJSON, err = json.Marshal(run.TransferPlan); err != nil {
			return fmt.Errorf("failed to marshal transfer_plan: %w", err)
		}
	}

	var analysisJSON []byte
	if run.Analysis != nil {
		if analysisJSON, err = json.Marshal(run.Analysis); err != nil {
			return fmt.Errorf("failed to marshal analysis: %w", err)
		}
	}

	query := `
		INSERT INTO decision_runs (
			run_id, run_timestamp, pools, position,
			recommendation, transfer_plan, analysis,
			action, gain_bps, profitable
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`

	_, err = DB.Exec(
		query,
		run.RunID, run.Timestamp, poolsJSON, positionJSON,
		recommendationJSON, nullableJSON(transferPlanJSON), nullableJSON(analysisJSON),
		string(run.Recommendation.Action), run.Recommendation.GainBps, run.Recommendation.Profitable,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision run: %w", err)
	}

	log.Info().
		Str("runID", run.RunID).
		Str("action", string(run.Recommendation.Action)).
		Msg("Saved decision run to database")
	return nil
}

// GetRecentDecisions returns the latest decision runs, newest first.
func GetRecentDecisions(limit int) ([]types.DecisionRun, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, run_timestamp, pools, position, recommendation, transfer_plan, analysis
		FROM decision_runs
		ORDER BY run_timestamp DESC
		LIMIT $1;
	`

	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision runs: %w", err)
	}
	defer rows.Close()

	var runs []types.DecisionRun
	for rows.Next() {
		run, err := scanDecisionRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetDecisionByID fetches one decision run by its UUID.
func GetDecisionByID(runID string) (types.DecisionRun, error) {
	if DB == nil {
		return types.DecisionRun{}, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT run_id, run_timestamp, pools, position, recommendation, transfer_plan, analysis
		FROM decision_runs
		WHERE run_id = $1;
	`

	run, err := scanDecisionRun(DB.QueryRow(query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.DecisionRun{}, ErrDecisionNotFound
	}
	return run, err
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecisionRun(row rowScanner) (types.DecisionRun, error) {
	var run types.DecisionRun
	var poolsJSON, positionJSON, recommendationJSON []byte
	var transferPlanJSON, analysisJSON sql.NullString

	err := row.Scan(&run.RunID, &run.Timestamp, &poolsJSON, &positionJSON,
		&recommendationJSON, &transferPlanJSON, &analysisJSON)
	if err != nil {
		return types.DecisionRun{}, err
	}

	if err := json.Unmarshal(poolsJSON, &run.Pools); err != nil {
		return types.DecisionRun{}, fmt.Errorf("failed to unmarshal pools: %w", err)
	}
	if err := json.Unmarshal(positionJSON, &run.Position); err != nil {
		return types.DecisionRun{}, fmt.Errorf("failed to unmarshal position: %w", err)
	}
	if err := json.Unmarshal(recommendationJSON, &run.Recommendation); err != nil {
		return types.DecisionRun{}, fmt.Errorf("failed to unmarshal recommendation: %w", err)
	}

	if transferPlanJSON.Valid && transferPlanJSON.String != "" {
		var plan types.TransferPlan
		if err := json.Unmarshal([]byte(transferPlanJSON.String), &plan); err != nil {
			return types.DecisionRun{}, fmt.Errorf("failed to unmarshal transfer_plan: %w", err)
		}
		run.TransferPlan = &plan
	}

	if analysisJSON.Valid && analysisJSON.String != "" {
		var analysis types.Recommendation
		if err := json.Unmarshal([]byte(analysisJSON.String), &analysis); err != nil {
			return types.DecisionRun{}, fmt.Errorf("failed to unmarshal analysis: %w", err)
		}
		run.Analysis = &analysis
	}

	return run, nil
}

// nullableJSON maps empty payloads to SQL NULL.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
