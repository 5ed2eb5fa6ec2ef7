// Package dfsapi exposes the three synchronous operations of spec.md §6
// (estimate_ownership, simulate_contest, optimize_with_leverage) as
// plain Go functions over C1-C9, taking context.Context first the way
// the teacher's RunSimulation does in simulator/monte_carlo.go. Results
// that can degrade without failing (low curve R², sparse ownership
// training data) carry a Warnings slice alongside the value, per
// spec.md §7's "logged as structured warnings; operation continues".
package dfsapi

import (
	"context"
	"time"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/cache"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/constraintspec"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/contest"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfserrors"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfslog"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/fieldsampler"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/optimizer"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/ownership"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/payout"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/portfolio"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/scenario"
)

// sparseTrainingThreshold is the rows-per-driver floor below which
// EstimateOwnership warns that the fit may be unreliable, rather than
// failing outright (spec.md §7: fit-quality warnings don't abort).
const sparseTrainingThreshold = 5

// EstimateOwnershipConfig mirrors spec.md §6's estimate_ownership config.
type EstimateOwnershipConfig struct {
	Method             ownership.CombineMethod
	BootstrapSamples   int // B in spec.md §4.4.6; 0 disables uncertainty bands
	Decay              ownership.DecayKind
	SalaryTreeCount    int // salary-skill base estimator forest size; 0 uses its default
	SalaryTreeMaxDepth int
	Seed               int64
}

// EstimateOwnership fits the four base estimators of C4 over rows and
// combines them per cfg, returning a bootstrap-uncertainty prediction
// for every driver on slate. projectedPoints supplies each driver's
// current slate-day projection, keyed by DriverID; a missing entry
// falls back to 0 (the projection-based estimator then contributes a
// value_score of 0 for that driver, same as a zero projection would).
func EstimateOwnership(ctx context.Context, slate dfstypes.Slate, rows []ownership.TrainingRow, projectedPoints map[string]float64, cfg EstimateOwnershipConfig) ([]dfstypes.OwnershipPrediction, []string, error) {
	select {
	case <-ctx.Done():
		return nil, nil, dfserrors.Wrap(dfserrors.KindCancelled, "estimate_ownership cancelled before starting", nil, ctx.Err())
	default:
	}

	log := dfslog.WithRunContext(string(cache.Fingerprint(slate, nil)), "estimate_ownership")

	ens := ownership.NewEnsemble(cfg.Method, cfg.BootstrapSamples, cfg.Seed,
		func() ownership.BaseEstimator { return ownership.NewHistoricalEstimator() },
		func() ownership.BaseEstimator { return ownership.NewProjectionEstimator() },
		func() ownership.BaseEstimator {
			return ownership.NewSalarySkillEstimator(cfg.SalaryTreeCount, cfg.SalaryTreeMaxDepth)
		},
		func() ownership.BaseEstimator { return ownership.NewRecentFormEstimator(cfg.Decay) },
	)
	if err := ens.Fit(rows); err != nil {
		return nil, nil, err
	}

	var warnings []string
	if len(slate.Drivers) > 0 && len(rows) < sparseTrainingThreshold*len(slate.Drivers) {
		warning := "sparse ownership training data; predictions may be unreliable"
		warnings = append(warnings, warning)
		log.WithField("training_rows", len(rows)).Warn(warning)
	}

	predictions := make([]dfstypes.OwnershipPrediction, len(slate.Drivers))
	for i, d := range slate.Drivers {
		predictions[i] = ens.PredictWithUncertainty(d, slate.TrackArchetype, projectedPoints[d.DriverID])
	}
	return predictions, warnings, nil
}

// SimulateContestConfig mirrors spec.md §6's simulate_contest config.
type SimulateContestConfig struct {
	FieldSize    int
	TierOverride dfstypes.ContestTier // empty uses dfstypes.TierForSize(FieldSize)
	Seed         int64
	TopPct       float64 // defaults to 0.01 inside contest.Simulate
}

// SimulateContest fits a payout curve from prizeTable (C5), samples an
// opponent field of cfg.FieldSize lineups from fieldOwnership (C6), and
// simulates myLineups against that field over every scenario (C7).
func SimulateContest(ctx context.Context, myLineups []dfstypes.Lineup, prizeTable []payout.PrizeEntry, slate dfstypes.Slate, scenarios *dfstypes.ScenarioMatrix, fieldOwnership []dfstypes.OwnershipPrediction, spec *constraintspec.Spec, cfg SimulateContestConfig) (*dfstypes.ContestResult, []string, error) {
	tier := cfg.TierOverride
	if tier == "" {
		tier = dfstypes.TierForSize(cfg.FieldSize)
	}
	c := dfstypes.Contest{FieldSize: cfg.FieldSize, Tier: tier}

	fit, err := payout.Fit(prizeTable, cfg.FieldSize)
	if err != nil {
		return nil, nil, err
	}
	var warnings []string
	if fit.Warning != "" {
		warnings = append(warnings, fit.Warning)
		dfslog.Root().WithField("tier", tier).Warn(fit.Warning)
	}

	field, err := fieldsampler.Sample(slate, spec, fieldOwnership, fieldsampler.Config{FieldSize: cfg.FieldSize, Seed: cfg.Seed})
	if err != nil {
		return nil, warnings, err
	}

	result, err := contest.Simulate(ctx, scenarios, myLineups, field, fit.Curve, c, contest.Config{TopPct: cfg.TopPct})
	if err != nil {
		return result, warnings, err
	}
	return result, warnings, nil
}

// OptimizeWithLeverageConfig mirrors spec.md §6's optimize_with_leverage
// config.
type OptimizeWithLeverageConfig struct {
	NLineups        int
	Alpha           float64
	LambdaOwnership float64
	// MinDiff is the minimum Hamming distance enforced between portfolio
	// lineups. nil uses portfolio's default (2); a pointer to 0 is the
	// legal, explicit "diversity disabled" value from spec.md §8.
	MinDiff                *int
	MaxTotalOwnership      float64
	MaxOwnershipPerDriver  float64
	MinLowOwnershipDrivers optimizer.LowOwnershipRequirement
	RegimeAllocation       map[string]float64 // empty disables regime-aware allocation
	SolverTimeoutSec       float64
	Seed                   int64
}

// OptimizeWithLeverage builds a K=NLineups portfolio (C9) over slate
// using the tail-objective optimizer (C8), applying the ownership
// leverage penalty and cardinality constraints, with regime-proportional
// allocation when RegimeAllocation is non-empty.
func OptimizeWithLeverage(ctx context.Context, slate dfstypes.Slate, scenarios *dfstypes.ScenarioMatrix, ownershipPredictions []dfstypes.OwnershipPrediction, spec *constraintspec.Spec, cfg OptimizeWithLeverageConfig) (*dfstypes.Portfolio, error) {
	strategy := portfolio.StrategyPureTail
	if cfg.LambdaOwnership > 0 || cfg.MaxTotalOwnership > 0 || cfg.MaxOwnershipPerDriver > 0 || cfg.MinLowOwnershipDrivers.Count > 0 {
		strategy = portfolio.StrategyLeverageAware
	}
	var regimeWeights []scenario.RegimeWeight
	if len(cfg.RegimeAllocation) > 0 {
		strategy = portfolio.StrategyRegimeAware
		for regime, weight := range cfg.RegimeAllocation {
			regimeWeights = append(regimeWeights, scenario.RegimeWeight{Regime: regime, Weight: weight})
		}
	}

	solverCfg := optimizer.Config{Seed: cfg.Seed}
	if cfg.SolverTimeoutSec > 0 {
		solverCfg.TimeBudget = durationFromSeconds(cfg.SolverTimeoutSec)
	}

	return portfolio.Generate(ctx, slate, scenarios, ownershipPredictions, spec, portfolio.Config{
		NumLineups:             cfg.NLineups,
		Strategy:               strategy,
		Alpha:                  cfg.Alpha,
		OwnershipPenalty:       cfg.LambdaOwnership,
		MinHammingDistance:     cfg.MinDiff,
		MaxTotalOwnership:      cfg.MaxTotalOwnership,
		MaxOwnershipPerDriver:  cfg.MaxOwnershipPerDriver,
		MinLowOwnershipDrivers: cfg.MinLowOwnershipDrivers,
		RegimeWeights:          regimeWeights,
		SolverConfig:           solverCfg,
	})
}

func durationFromSeconds(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
