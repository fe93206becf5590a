/*

The worker is the orchestrator: on a fixed interval it fetches pool and
position state, normalizes it, runs both decision policies, builds the
transfer plan and persists the full run. A failed step aborts the cycle;
the loop itself keeps running until the context is cancelled.

*/

package worker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hyperyield/yvm/internal/config"
	"github.com/hyperyield/yvm/internal/datafetcher"
	"github.com/hyperyield/yvm/internal/engine"
	"github.com/hyperyield/yvm/internal/logger"
	"github.com/hyperyield/yvm/internal/normalizer"
	"github.com/hyperyield/yvm/internal/planner"
	"github.com/hyperyield/yvm/internal/ratemodel"
	"github.com/hyperyield/yvm/internal/state"
	"github.com/hyperyield/yvm/internal/types"
)

// Worker runs the decision cycle on a fixed interval.
type Worker struct {
	logger     zerolog.Logger
	fetcher    *datafetcher.Fetcher
	oracle     ratemodel.RateOracle
	params     types.SafetyParameters
	cycleCount int
}

// Config holds the dependencies for creating a new worker.
type Config struct {
	Fetcher    *datafetcher.Fetcher
	RateOracle ratemodel.RateOracle
	Params     types.SafetyParameters
}

// New creates a worker with dependency injection.
func New(cfg Config) (*Worker, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	if cfg.RateOracle == nil {
		return nil, fmt.Errorf("rate oracle cannot be nil")
	}

	return &Worker{
		logger:  logger.GetForComponent("worker"),
		fetcher: cfg.Fetcher,
		oracle:  cfg.RateOracle,
		params:  cfg.Params,
	}, nil
}

// RunLoop starts the main decision loop with the specified interval.
func (w *Worker) RunLoop(ctx context.Context, interval time.Duration) {
	w.logger.Info().
		Dur("interval", interval).
		Msg("Starting decision loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run first cycle immediately
	w.cycleCount++
	w.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Decision loop stopped due to context cancellation")
			return
		case <-ticker.C:
			w.cycleCount++
			w.RunCycle(ctx)
		}
	}
}

// RunCycle executes one complete decision cycle.
func (w *Worker) RunCycle(ctx context.Context) {
	runID := uuid.New().String()
	cycleLogger := w.logger.With().Str("run_id", runID).Int("cycle", w.cycleCount).Logger()

	cycleLogger.Info().Msg("--- Starting decision cycle ---")
	startTime := time.Now()

	cycleLogger.Info().Msg("Step 1: Fetching on-chain pool and position state")
	rawPools, err := w.fetcher.FetchAllPools(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to fetch pools")
		return
	}

	position, err := w.fetcher.FetchPosition(ctx)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: failed to fetch vault position")
		return
	}

	cycleLogger.Info().Msg("Step 2: Normalizing pool payloads")
	poolSet, err := normalizer.Normalize(rawPools)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: pool payload validation failed")
		return
	}

	cycleLogger.Info().Msg("Step 3: Running decision policies")
	params := w.params
	params.MinGainBps = config.MinGainBps

	eng, err := engine.New(poolSet, position, params, w.oracle)
	if err != nil {
		cycleLogger.Error().Err(err).Msg("Cycle aborted: could not build decision engine")
		return
	}

	recommendation := eng.Decide(ctx)
	analysis := eng.Analyze(ctx)

	cycleLogger.Info().Msg("Step 4: Building transfer plan")
	plan := planner.BuildTransferPlan(recommendation, poolSet)

	run := types.DecisionRun{
		RunID:          runID,
		Timestamp:      startTime,
		Pools:          sortedSnapshots(poolSet),
		Position:       position,
		Recommendation: recommendation,
		Analysis:       &analysis,
	}
	if plan.Withdrawal != nil {
		run.TransferPlan = &plan
	}

	cycleLogger.Info().Msg("Step 5: Persisting decision run")
	if err := state.SaveDecisionRun(run); err != nil {
		cycleLogger.Error().Err(err).Msg("Failed to persist decision run")
	}

	cycleLogger.Info().
		Str("action", string(recommendation.Action)).
		Float64("amountUSD", recommendation.AmountUSD).
		Float64("gainBps", recommendation.GainBps).
		Bool("profitable", recommendation.Profitable).
		Dur("elapsed", time.Since(startTime)).
		Msg("--- Decision cycle completed ---")
}

// sortedSnapshots flattens the pool set in a stable order for persistence.
func sortedSnapshots(set types.PoolSet) []types.PoolSnapshot {
	snapshots := make([]types.PoolSnapshot, 0, len(set.Pools))
	for _, addr := range sortedKeys(set.Pools) {
		snapshots = append(snapshots, set.Pools[addr])
	}
	return snapshots
}

func sortedKeys(pools map[string]types.PoolSnapshot) []string {
	keys := make([]string, 0, len(pools))
	for k := range pools {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
