// Package portfolio implements C9: generating a multi-lineup portfolio
// from the tail-objective optimizer (C8), under three strategies —
// pure-tail, regime-aware (allocating lineups proportional to
// P(regime)*utility), and leverage-aware (ownership-penalized) — with
// diversity enforced at generation time and an exposure report computed
// over the finished set (spec.md §4.9).
//
// Grounded on internal/analytics/portfolio/optimizer.go's portfolio
// construction loop in the teacher codebase (build N candidate weight
// vectors, score each, keep the best under a diversification
// constraint); this replaces continuous portfolio weights with discrete
// lineup selection, one optimizer.Optimize call per slot, reusing C2's
// regime partition instead of a separate covariance model. Regime-aware
// generation fans out one goroutine per regime via golang.org/x/sync/
// errgroup (spec.md §5), since each regime's search runs against its
// own disjoint scenario sub-matrix.
package portfolio

import (
	"context"
	"math"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/constraintspec"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfserrors"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/optimizer"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/scenario"
)

// Strategy selects how lineups are allocated across the portfolio.
type Strategy string

const (
	StrategyPureTail      Strategy = "pure_tail"
	StrategyRegimeAware   Strategy = "regime_aware"
	StrategyLeverageAware Strategy = "leverage_aware"
)

// Config parameterizes portfolio generation.
type Config struct {
	NumLineups       int
	Strategy         Strategy
	Alpha            float64 // CVaR tail level passed to the optimizer
	OwnershipPenalty float64 // forced on for StrategyLeverageAware even if zero here

	// MinHammingDistance is the diversity-at-generation floor (spec.md
	// §4.9). nil means "unset" and defaults to 2; a pointer to 0 is the
	// legal, explicit "diversity disabled, duplicates allowed" value
	// from spec.md §8's min_diff=0 boundary case — an int can't carry
	// that distinction since its own zero value would be ambiguous.
	MinHammingDistance *int

	// Leverage-aware cardinality constraints (spec.md §6), only applied
	// when Strategy is StrategyLeverageAware.
	MaxTotalOwnership      float64
	MaxOwnershipPerDriver  float64
	MinLowOwnershipDrivers optimizer.LowOwnershipRequirement

	// RegimeWeights overrides the track-archetype default allocation for
	// StrategyRegimeAware (spec.md §6's regime_allocation); nil uses
	// TrackRegimeWeights/DefaultRegimeWeights from the slate's archetype.
	RegimeWeights []scenario.RegimeWeight

	SolverConfig optimizer.Config
}

func (c Config) withDefaults(slate dfstypes.Slate) Config {
	if c.Strategy == "" {
		c.Strategy = StrategyPureTail
	}
	if c.Alpha <= 0 {
		c.Alpha = 0.20
	}
	if c.MinHammingDistance == nil {
		defaultMinHamming := 2
		c.MinHammingDistance = &defaultMinHamming
	}
	if c.Strategy == StrategyLeverageAware && c.OwnershipPenalty <= 0 {
		c.OwnershipPenalty = 0.5
	}
	return c
}

// leverageConstraints returns the optimizer-level cardinality constraints
// for cfg, zero-valued (i.e. disabled) unless Strategy is leverage-aware.
func (cfg Config) leverageConstraints() (float64, float64, optimizer.LowOwnershipRequirement) {
	if cfg.Strategy != StrategyLeverageAware {
		return 0, 0, optimizer.LowOwnershipRequirement{}
	}
	return cfg.MaxTotalOwnership, cfg.MaxOwnershipPerDriver, cfg.MinLowOwnershipDrivers
}

// Generate builds cfg.NumLineups lineups from scenarios under cfg.Strategy.
func Generate(ctx context.Context, slate dfstypes.Slate, scenarios *dfstypes.ScenarioMatrix, ownership []dfstypes.OwnershipPrediction, spec *constraintspec.Spec, cfg Config) (*dfstypes.Portfolio, error) {
	cfg = cfg.withDefaults(slate)
	if cfg.NumLineups <= 0 {
		return nil, dfserrors.New(dfserrors.KindInputValidation, "num_lineups must be positive", nil)
	}

	switch cfg.Strategy {
	case StrategyRegimeAware:
		return generateRegimeAware(ctx, slate, scenarios, ownership, spec, cfg)
	default: // StrategyPureTail, StrategyLeverageAware: same loop, different solver config
		return generateFlat(ctx, slate, scenarios, ownership, spec, cfg, "")
	}
}

// generateFlat fills the whole portfolio from one scenario matrix,
// tagging every lineup with regimeTag if non-empty.
func generateFlat(ctx context.Context, slate dfstypes.Slate, scenarios *dfstypes.ScenarioMatrix, ownership []dfstypes.OwnershipPrediction, spec *constraintspec.Spec, cfg Config, regimeTag string) (*dfstypes.Portfolio, error) {
	portfolio := &dfstypes.Portfolio{ID: uuid.New(), RegimeTag: map[int]string{}}

	for i := 0; i < cfg.NumLineups; i++ {
		solverCfg := cfg.SolverConfig
		solverCfg.Objective = optimizer.ObjectiveCVaR
		solverCfg.Alpha = cfg.Alpha
		solverCfg.OwnershipPenalty = cfg.OwnershipPenalty

		maxTotal, maxPerDriver, minLow := cfg.leverageConstraints()
		result, err := optimizer.Optimize(ctx, slate, scenarios, ownership, spec, optimizer.Constraints{
			ExistingLineups:        portfolio.Lineups,
			MinHammingDistance:     *cfg.MinHammingDistance,
			MaxTotalOwnership:      maxTotal,
			MaxOwnershipPerDriver:  maxPerDriver,
			MinLowOwnershipDrivers: minLow,
		}, solverCfg)
		if err != nil {
			if len(portfolio.Lineups) == 0 {
				return nil, err
			}
			portfolio.Shortfall = append(portfolio.Shortfall, dfstypes.RegimeShortfall{
				Regime:    regimeTag,
				Requested: cfg.NumLineups,
				Delivered: len(portfolio.Lineups),
			})
			break
		}
		if regimeTag != "" {
			portfolio.RegimeTag[len(portfolio.Lineups)] = regimeTag
		}
		portfolio.Lineups = append(portfolio.Lineups, result.Lineup)
	}

	portfolio.Exposure = ComputeExposure(slate, portfolio.Lineups)
	return portfolio, nil
}

// regimeBuild is one regime's output from generateRegimeAware's fan-out:
// the lineups it delivered plus a shortfall record when it couldn't
// fill its full allocation.
type regimeBuild struct {
	regime    string
	lineups   []dfstypes.Lineup
	shortfall *dfstypes.RegimeShortfall
}

// generateRegimeAware splits NumLineups across skeleton-narrative regimes
// in proportion to their weights (largest-remainder rounding, see
// allocateByWeight), running one goroutine per
// regime (spec.md §5) since each regime optimizes against its own
// disjoint sub-matrix of scenarios and is otherwise independent work.
// Diversity is enforced within each regime's own batch; cross-regime
// diversity is not checked live (each goroutine only sees its own
// regime's growing set), but the portfolio-wide ComputeExposure below
// still reports the realized pairwise diversity over the whole set.
func generateRegimeAware(ctx context.Context, slate dfstypes.Slate, scenarios *dfstypes.ScenarioMatrix, ownership []dfstypes.OwnershipPrediction, spec *constraintspec.Spec, cfg Config) (*dfstypes.Portfolio, error) {
	weights := cfg.RegimeWeights
	if len(weights) == 0 {
		weights = regimeWeightsForTrack(slate.TrackArchetype)
	}
	allocations := allocateByWeight(cfg.NumLineups, weights)

	g, gctx := errgroup.WithContext(ctx)
	builds := make([]regimeBuild, len(allocations))

	for i, alloc := range allocations {
		i, alloc := i, alloc
		if alloc.count == 0 {
			continue
		}
		g.Go(func() error {
			builds[i] = buildRegime(gctx, slate, scenarios, ownership, spec, cfg, alloc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	portfolio := &dfstypes.Portfolio{ID: uuid.New(), RegimeTag: map[int]string{}}
	for _, b := range builds {
		for _, l := range b.lineups {
			portfolio.RegimeTag[len(portfolio.Lineups)] = b.regime
			portfolio.Lineups = append(portfolio.Lineups, l)
		}
		if b.shortfall != nil {
			portfolio.Shortfall = append(portfolio.Shortfall, *b.shortfall)
		}
	}

	if len(portfolio.Lineups) == 0 {
		return nil, dfserrors.New(dfserrors.KindInfeasibleLineup, "no regime yielded a feasible lineup", nil)
	}

	portfolio.Exposure = ComputeExposure(slate, portfolio.Lineups)
	return portfolio, nil
}

// buildRegime fills one regime's allocation against its sub-matrix of
// scenarios, enforcing diversity only within the lineups it generates
// itself.
func buildRegime(ctx context.Context, slate dfstypes.Slate, scenarios *dfstypes.ScenarioMatrix, ownership []dfstypes.OwnershipPrediction, spec *constraintspec.Spec, cfg Config, alloc regimeAllocation) regimeBuild {
	sub := regimeSubMatrix(scenarios, alloc.regime)
	if sub.N() == 0 {
		return regimeBuild{
			regime:    alloc.regime,
			shortfall: &dfstypes.RegimeShortfall{Regime: alloc.regime, Requested: alloc.count, Delivered: 0},
		}
	}

	var lineups []dfstypes.Lineup
	for i := 0; i < alloc.count; i++ {
		solverCfg := cfg.SolverConfig
		solverCfg.Objective = optimizer.ObjectiveCVaR
		solverCfg.Alpha = cfg.Alpha
		solverCfg.OwnershipPenalty = cfg.OwnershipPenalty

		result, err := optimizer.Optimize(ctx, slate, sub, ownership, spec, optimizer.Constraints{
			ExistingLineups:    lineups,
			MinHammingDistance: *cfg.MinHammingDistance,
		}, solverCfg)
		if err != nil {
			break
		}
		lineups = append(lineups, result.Lineup)
	}

	build := regimeBuild{regime: alloc.regime, lineups: lineups}
	if len(lineups) < alloc.count {
		build.shortfall = &dfstypes.RegimeShortfall{Regime: alloc.regime, Requested: alloc.count, Delivered: len(lineups)}
	}
	return build
}

type regimeAllocation struct {
	regime string
	count  int
}

// allocateByWeight rounds N*weight down per regime, then distributes the
// remainder to the largest fractional remainders so totals sum exactly
// to numLineups regardless of rounding (the same "largest remainder"
// rule used for proportional seat allocation).
func allocateByWeight(numLineups int, weights []scenario.RegimeWeight) []regimeAllocation {
	totalWeight := 0.0
	for _, w := range weights {
		totalWeight += w.Weight
	}
	if totalWeight <= 0 {
		return nil
	}

	allocs := make([]regimeAllocation, len(weights))
	remainders := make([]float64, len(weights))
	assigned := 0
	for i, w := range weights {
		exact := float64(numLineups) * w.Weight / totalWeight
		allocs[i] = regimeAllocation{regime: w.Regime, count: int(math.Floor(exact))}
		remainders[i] = exact - math.Floor(exact)
		assigned += allocs[i].count
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return remainders[order[a]] > remainders[order[b]] })

	for _, idx := range order {
		if assigned >= numLineups {
			break
		}
		allocs[idx].count++
		assigned++
	}
	return allocs
}

func regimeWeightsForTrack(trackArchetype string) []scenario.RegimeWeight {
	if w, ok := scenario.TrackRegimeWeights[trackArchetype]; ok {
		return w
	}
	return scenario.DefaultRegimeWeights
}

func regimeSubMatrix(scenarios *dfstypes.ScenarioMatrix, regime string) *dfstypes.ScenarioMatrix {
	sub := &dfstypes.ScenarioMatrix{NumDrivers: scenarios.NumDrivers, RaceLength: scenarios.RaceLength, MaxDominators: scenarios.MaxDominators}
	for _, s := range scenarios.Scenarios {
		if s.Regime == regime {
			sub.Scenarios = append(sub.Scenarios, s)
		}
	}
	return sub
}

// ComputeExposure summarizes player/team exposure and mean pairwise
// diversity across a finished portfolio.
func ComputeExposure(slate dfstypes.Slate, lineups []dfstypes.Lineup) *dfstypes.ExposureReport {
	report := &dfstypes.ExposureReport{
		PlayerExposure: make(map[string]float64),
		TeamExposure:   make(map[string]float64),
	}
	if len(lineups) == 0 {
		return report
	}

	teamOf := make(map[string]string, len(slate.Drivers))
	for _, d := range slate.Drivers {
		teamOf[d.DriverID] = d.TeamID
	}

	playerCount := make(map[string]int)
	teamCount := make(map[string]int)
	for _, l := range lineups {
		seenTeam := make(map[string]bool)
		for _, id := range l.DriverIDs {
			playerCount[id]++
			team := teamOf[id]
			if team != "" && !seenTeam[team] {
				teamCount[team]++
				seenTeam[team] = true
			}
		}
	}
	for id, count := range playerCount {
		report.PlayerExposure[id] = float64(count) / float64(len(lineups))
	}
	for team, count := range teamCount {
		report.TeamExposure[team] = float64(count) / float64(len(lineups))
	}

	if len(lineups) > 1 {
		total, pairs := 0, 0
		for i := 0; i < len(lineups); i++ {
			for j := i + 1; j < len(lineups); j++ {
				total += lineups[i].HammingDistance(lineups[j])
				pairs++
			}
		}
		if pairs > 0 {
			report.DiversityScore = float64(total) / float64(pairs)
		}
	}

	return report
}
