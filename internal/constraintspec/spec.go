// Package constraintspec compiles an immutable feasibility specification
// (C1) from slate/ontology inputs. It is consumed by the scenario
// generator (veto predicates) and the tail-objective optimizer (linear
// constraints), and never mutated after compilation.
//
// Grounded on internal/optimizer/constraints.go's LineupConstraints in the
// teacher codebase: that type builds a sport-specific table of position/
// team/game bounds from a *types.Contest. Here there are no position slots
// (every driver fills the same "G" role), so the table collapses to team
// (manufacturer) stacking bounds plus scenario-level conservation vetoes.
package constraintspec

import (
	"fmt"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfserrors"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

// Op is a linear-constraint comparison operator.
type Op string

const (
	OpLE Op = "<="
	OpGE Op = ">="
	OpEQ Op = "=="
)

// LinearConstraint is a row over driver-indicator variables:
// sum_d coeffs[d] * x_d <op> rhs.
type LinearConstraint struct {
	Name   string
	Coeffs []float64 // aligned to Slate.Drivers, sparse entries may be 0
	Op     Op
	RHS    float64
}

// Bounds is a per-driver outcome-attribute interval, e.g. laps-led bounds
// used by C2 when drawing conditional distributions.
type Bounds struct {
	Min, Max float64
}

// ScenarioCandidate is the minimal shape C2 needs to veto-check a draft
// scenario before committing it to the matrix.
type ScenarioCandidate struct {
	LapsLed    []float64
	Dominator  []bool
}

// Spec is the compiled, immutable constraint specification for one slate.
type Spec struct {
	raceLength    float64
	maxDominators int
	teamMinStack  int
	teamMaxStack  int
	driverBounds  map[string]Bounds
	linear        []LinearConstraint
}

// Options configures compilation. TeamMinStack/TeamMaxStack default to 2/3
// per spec.md §6's fixed roster rule.
type Options struct {
	TeamMinStack int
	TeamMaxStack int
	DriverBounds map[string]Bounds
}

// Compile builds an immutable Spec from a slate and options. It fails with
// a SpecCompileError on internally contradictory bounds (e.g. min > max
// team stack, or a driver bound with Min > Max).
func Compile(slate dfstypes.Slate, opts Options) (*Spec, error) {
	minStack, maxStack := opts.TeamMinStack, opts.TeamMaxStack
	if minStack == 0 {
		minStack = 2
	}
	if maxStack == 0 {
		maxStack = 3
	}
	if minStack > maxStack {
		return nil, dfserrors.New(dfserrors.KindSpecCompileError,
			fmt.Sprintf("team min_stack %d exceeds max_stack %d", minStack, maxStack), nil)
	}
	for driverID, b := range opts.DriverBounds {
		if b.Min > b.Max {
			return nil, dfserrors.New(dfserrors.KindSpecCompileError,
				fmt.Sprintf("driver %s bound min %.3f exceeds max %.3f", driverID, b.Min, b.Max),
				map[string]any{"driver_id": driverID})
		}
	}

	s := &Spec{
		raceLength:    slate.RaceLength,
		maxDominators: slate.MaxDominators,
		teamMinStack:  minStack,
		teamMaxStack:  maxStack,
		driverBounds:  opts.DriverBounds,
	}
	s.linear = s.buildLinearConstraints(slate)
	return s, nil
}

// buildLinearConstraints emits one pair of rows (min/max) per team, over
// driver-indicator variables, the way setupNBAConstraints etc. built
// per-position rows in the teacher.
func (s *Spec) buildLinearConstraints(slate dfstypes.Slate) []LinearConstraint {
	teams := make(map[string][]int)
	for i, d := range slate.Drivers {
		teams[d.TeamID] = append(teams[d.TeamID], i)
	}

	rows := make([]LinearConstraint, 0, len(teams)*2)
	for team, idxs := range teams {
		coeffs := make([]float64, len(slate.Drivers))
		for _, i := range idxs {
			coeffs[i] = 1
		}
		rows = append(rows,
			LinearConstraint{Name: fmt.Sprintf("team_%s_min", team), Coeffs: coeffs, Op: OpGE, RHS: 0},
			LinearConstraint{Name: fmt.Sprintf("team_%s_max", team), Coeffs: coeffs, Op: OpLE, RHS: float64(s.teamMaxStack)},
		)
	}
	return rows
}

// LinearConstraints returns the compiled (coeffs, op, rhs) rows.
func (s *Spec) LinearConstraints() []LinearConstraint { return s.linear }

// TeamStackBounds returns the configured [min, max] drivers per team.
func (s *Spec) TeamStackBounds() (min, max int) { return s.teamMinStack, s.teamMaxStack }

// DriverBounds returns the per-attribute interval for a driver, or the
// full [0,1] attribute range (Bounds{Min: 0, Max: 1}) if none was
// configured.
func (s *Spec) DriverBounds(driverID string) Bounds {
	if b, ok := s.driverBounds[driverID]; ok {
		return b
	}
	return Bounds{Min: 0, Max: 1}
}

// Veto reports whether a candidate scenario violates a hard conservation
// rule: total laps-led must not exceed race length, and the number of
// dominator-flagged drivers must not exceed max_dominators.
func (s *Spec) Veto(candidate ScenarioCandidate) (violated bool, predicate string) {
	totalLaps := 0.0
	for _, l := range candidate.LapsLed {
		totalLaps += l
	}
	if totalLaps > s.raceLength {
		return true, fmt.Sprintf("laps_led_conservation: %.2f > race_length %.2f", totalLaps, s.raceLength)
	}

	dominators := 0
	for _, f := range candidate.Dominator {
		if f {
			dominators++
		}
	}
	if dominators > s.maxDominators {
		return true, fmt.Sprintf("dominator_conservation: %d > max_dominators %d", dominators, s.maxDominators)
	}

	return false, ""
}

// RaceLength and MaxDominators expose the conservation-law parameters C2
// draws against.
func (s *Spec) RaceLength() float64  { return s.raceLength }
func (s *Spec) MaxDominators() int   { return s.maxDominators }
