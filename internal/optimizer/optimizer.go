// Package optimizer implements C8: the tail-objective optimizer. No
// MILP/LP solver exists anywhere in the surrounding stack, so this is a
// hand-rolled depth-first search over driver combinations, visited in
// value-density order, with every complete candidate evaluated exactly
// (CVaR over the full scenario matrix, minus an ownership-leverage
// penalty) (spec.md §4.8). Branches are cut only by the salary cap, the
// team max stack, forced inclusions/exclusions, too few drivers left to
// fill the roster, and the node/time budget; no objective bound prunes
// the search.
//
// Grounded on internal/optimizer/dp_optimizer.go's DPOptimizer in the
// teacher codebase: same shape (recursive state-space search,
// DPStats-style counters, context cancellation, locked/excluded
// players; no state is memoized here), generalized from position-slot knapsack to the no-MILP-
// library tail-CVaR objective of spec.md, with stacking replaced by the
// hard team-count bounds compiled in C1.
package optimizer

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/constraintspec"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfserrors"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/tailmetrics"
)

// ObjectiveKind selects the lineup-scoring objective.
type ObjectiveKind string

const (
	ObjectiveCVaR ObjectiveKind = "cvar_upper"
	ObjectiveMean ObjectiveKind = "mean"
)

// LowOwnershipRequirement enforces that at least Count chosen drivers
// have ownership at or below Threshold (spec.md §6's min_low_ownership_drivers).
type LowOwnershipRequirement struct {
	Count     int
	Threshold float64
}

// Constraints bounds the search beyond what C1's Spec already compiles:
// forced selections, portfolio diversity against lineups already
// generated this run, and the leverage-aware cardinality constraints of
// spec.md §4.9/§6.
type Constraints struct {
	ForceInclude       []int // driver indices that must appear in the lineup
	ForceExclude       []int // driver indices that must not appear
	ExistingLineups    []dfstypes.Lineup
	MinHammingDistance int // 0 disables the diversity check

	MaxTotalOwnership      float64                 // 0 disables; cap on sum(own_d) over the chosen roster
	MaxOwnershipPerDriver  float64                 // 0 disables; per-driver ownership ceiling
	MinLowOwnershipDrivers LowOwnershipRequirement // Count<=0 disables
}

// Config tunes the search.
type Config struct {
	Objective        ObjectiveKind
	Alpha            float64 // CVaR tail level, ignored for ObjectiveMean
	OwnershipPenalty float64 // lambda in spec.md's "subtract lambda*sum(own_d^2)" leverage term
	MaxNodes         int     // branch-and-bound node budget; default 2_000_000
	TimeBudget       time.Duration
	Seed             int64
}

func (c Config) withDefaults() Config {
	if c.Objective == "" {
		c.Objective = ObjectiveCVaR
	}
	if c.Alpha <= 0 {
		c.Alpha = 0.20
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = 2_000_000
	}
	if c.TimeBudget <= 0 {
		c.TimeBudget = 30 * time.Second
	}
	return c
}

// Stats reports search diagnostics, mirroring the teacher's DPStats.
type Stats struct {
	NodesExplored int
	Pruned        int
	Elapsed       time.Duration
}

// Result is the best lineup found plus its realized objective value.
type Result struct {
	Lineup    dfstypes.Lineup
	Objective float64
	Stats     Stats
}

// Optimize searches for the feasible roster maximizing cfg.Objective
// (CVaR-upper by default) minus an ownership-leverage penalty, subject
// to spec's compiled constraints and the additional Constraints here.
func Optimize(ctx context.Context, slate dfstypes.Slate, scenarios *dfstypes.ScenarioMatrix, ownership []dfstypes.OwnershipPrediction, spec *constraintspec.Spec, constraints Constraints, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()
	start := time.Now()
	deadline := start.Add(cfg.TimeBudget)

	if slate.RosterSize <= 0 || slate.RosterSize > len(slate.Drivers) {
		return Result{}, dfserrors.New(dfserrors.KindInfeasibleLineup, "roster size is invalid for the given slate", nil)
	}

	ownershipByIdx := make([]float64, len(slate.Drivers))
	for _, o := range ownership {
		if idx := slate.DriverIndex(o.DriverID); idx >= 0 {
			ownershipByIdx[idx] = o.Mean
		}
	}

	excluded := toSet(constraints.ForceExclude)
	included := toSet(constraints.ForceInclude)

	minStack, maxStack := spec.TeamStackBounds()

	order := valueDensityOrder(slate, scenarios)

	s := &search{
		ctx:            ctx,
		slate:          slate,
		scenarios:      scenarios,
		ownership:      ownershipByIdx,
		spec:           spec,
		constraints:    constraints,
		cfg:            cfg,
		excluded:       excluded,
		included:       included,
		minStack:       minStack,
		maxStack:       maxStack,
		order:          order,
		deadline:       deadline,
		bestObjective:  negInf,
	}

	for _, idx := range constraints.ForceInclude {
		if excluded[idx] {
			return Result{}, dfserrors.New(dfserrors.KindInfeasibleLineup, "a driver is both force-included and force-excluded", map[string]any{"driver_index": idx})
		}
	}

	s.descend(0, nil, 0, map[string]int{})

	s.stats.Elapsed = time.Since(start)

	if s.bestChosen == nil {
		if s.timedOut {
			return Result{}, dfserrors.New(dfserrors.KindSolverTimeout, "branch-and-bound search exhausted its time/node budget before finding a feasible lineup", nil)
		}
		return Result{}, dfserrors.New(dfserrors.KindInfeasibleLineup, "no roster satisfies the compiled constraints", nil)
	}

	lineup := buildLineup(slate, scenarios, s.bestChosen)
	return Result{Lineup: lineup, Objective: s.bestObjective, Stats: s.stats}, nil
}

const negInf = -1e18

type search struct {
	ctx         context.Context
	slate       dfstypes.Slate
	scenarios   *dfstypes.ScenarioMatrix
	ownership   []float64
	spec        *constraintspec.Spec
	constraints Constraints
	cfg         Config
	excluded    map[int]bool
	included    map[int]bool
	minStack    int
	maxStack    int
	order       []int
	deadline    time.Time

	stats         Stats
	timedOut      bool
	bestChosen    []int
	bestObjective float64
}

// descend explores the search tree in value-density order. A driver is
// not added when it would break the salary cap, its team's max stack or
// a forced exclusion; a branch stops when too few drivers remain to fill
// the roster or once the node/time budget is exhausted.
func (s *search) descend(pos int, chosen []int, salary int32, teamCounts map[string]int) {
	if s.timedOut {
		return
	}
	s.stats.NodesExplored++
	if s.stats.NodesExplored > s.cfg.MaxNodes || time.Now().After(s.deadline) {
		s.timedOut = true
		return
	}
	select {
	case <-s.ctx.Done():
		s.timedOut = true
		return
	default:
	}

	if len(chosen) == s.slate.RosterSize {
		s.evaluate(chosen)
		return
	}
	if pos >= len(s.order) {
		return
	}
	remainingSlots := s.slate.RosterSize - len(chosen)
	if len(s.order)-pos < remainingSlots {
		return
	}

	idx := s.order[pos]

	// Branch 1: include driver idx, if legal.
	if !s.excluded[idx] && withinCapacity(s.slate, salary, idx) && withinTeamCap(s.slate, teamCounts, idx, s.maxStack) {
		teamCounts[s.slate.Drivers[idx].TeamID]++
		s.descend(pos+1, append(chosen, idx), salary+s.slate.Drivers[idx].Salary, teamCounts)
		teamCounts[s.slate.Drivers[idx].TeamID]--
	}

	// Branch 2: skip driver idx, unless it was forced in.
	if !s.included[idx] {
		s.descend(pos+1, chosen, salary, teamCounts)
	} else {
		s.stats.Pruned++
	}
}

func (s *search) evaluate(chosen []int) {
	for _, required := range s.constraints.ForceInclude {
		if !containsInt(chosen, required) {
			return
		}
	}
	if !teamMinSatisfied(s.slate, chosen, s.minStack) {
		return
	}
	if s.constraints.MinHammingDistance > 0 {
		candidate := dfstypes.Lineup{DriverIDs: driverIDsOf(s.slate, chosen)}
		for _, existing := range s.constraints.ExistingLineups {
			if candidate.HammingDistance(existing) < s.constraints.MinHammingDistance {
				return
			}
		}
	}
	if !s.cardinalityOwnershipSatisfied(chosen) {
		return
	}

	scores := s.scenarios.LineupScores(chosen)
	var base float64
	if s.cfg.Objective == ObjectiveMean {
		base = tailmetrics.Mean(scores)
	} else {
		base, _ = tailmetrics.CVaRUpper(scores, s.cfg.Alpha)
	}

	// spec.md §4.8: subtract lambda * sum(own_d^2), quadratic in ownership
	// but linear in x since ownership is constant per candidate.
	ownershipSqSum := 0.0
	for _, idx := range chosen {
		o := s.ownership[idx]
		ownershipSqSum += o * o
	}
	objective := base - s.cfg.OwnershipPenalty*ownershipSqSum

	if objective > s.bestObjective {
		s.bestObjective = objective
		s.bestChosen = append([]int(nil), chosen...)
	}
}

// cardinalityOwnershipSatisfied checks the leverage-aware cardinality
// constraints of spec.md §6: a cap on total roster ownership, a
// per-driver ownership ceiling, and a minimum count of low-ownership
// drivers. Each is skipped when left at its zero value.
func (s *search) cardinalityOwnershipSatisfied(chosen []int) bool {
	c := s.constraints
	total := 0.0
	low := 0
	for _, idx := range chosen {
		o := s.ownership[idx]
		total += o
		if c.MaxOwnershipPerDriver > 0 && o > c.MaxOwnershipPerDriver {
			return false
		}
		if c.MinLowOwnershipDrivers.Count > 0 && o <= c.MinLowOwnershipDrivers.Threshold {
			low++
		}
	}
	if c.MaxTotalOwnership > 0 && total > c.MaxTotalOwnership {
		return false
	}
	if c.MinLowOwnershipDrivers.Count > 0 && low < c.MinLowOwnershipDrivers.Count {
		return false
	}
	return true
}

func driverIDsOf(slate dfstypes.Slate, chosen []int) []string {
	ids := make([]string, len(chosen))
	for i, idx := range chosen {
		ids[i] = slate.Drivers[idx].DriverID
	}
	return ids
}

func withinCapacity(slate dfstypes.Slate, salary int32, idx int) bool {
	if slate.SalaryCap <= 0 {
		return true
	}
	return salary+slate.Drivers[idx].Salary <= slate.SalaryCap
}

func withinTeamCap(slate dfstypes.Slate, teamCounts map[string]int, idx int, maxStack int) bool {
	if maxStack <= 0 {
		return true
	}
	return teamCounts[slate.Drivers[idx].TeamID]+1 <= maxStack
}

func teamMinSatisfied(slate dfstypes.Slate, chosen []int, minStack int) bool {
	if minStack <= 1 {
		return true
	}
	counts := make(map[string]int)
	for _, idx := range chosen {
		counts[slate.Drivers[idx].TeamID]++
	}
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	return maxCount >= minStack
}

// valueDensityOrder sorts driver indices descending by mean-points per
// salary dollar, a cheap proxy used only to order the search so strong
// candidates are visited early; it prunes nothing, and the true
// objective is always recomputed exactly at each leaf.
func valueDensityOrder(slate dfstypes.Slate, scenarios *dfstypes.ScenarioMatrix) []int {
	density := make([]float64, len(slate.Drivers))
	for i := range slate.Drivers {
		mean := tailmetrics.Mean(scenarios.LineupScores([]int{i}))
		salary := float64(slate.Drivers[i].Salary)
		if salary <= 0 {
			salary = 1
		}
		density[i] = mean / salary
	}
	order := make([]int, len(slate.Drivers))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return density[order[a]] > density[order[b]] })
	return order
}

func toSet(xs []int) map[int]bool {
	m := make(map[int]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func buildLineup(slate dfstypes.Slate, scenarios *dfstypes.ScenarioMatrix, chosen []int) dfstypes.Lineup {
	sorted := append([]int(nil), chosen...)
	sort.Ints(sorted)

	driverIDs := make([]string, len(sorted))
	var totalSalary int32
	for i, idx := range sorted {
		driverIDs[i] = slate.Drivers[idx].DriverID
		totalSalary += slate.Drivers[idx].Salary
	}

	return dfstypes.Lineup{
		ID:          uuid.New(),
		DriverIDs:   driverIDs,
		DriverIdx:   sorted,
		TotalSalary: totalSalary,
		MeanPoints:  tailmetrics.Mean(scenarios.LineupScores(sorted)),
	}
}
