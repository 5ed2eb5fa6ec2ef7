// Package fieldsampler implements C6: sampling an opponent field of
// lineups from a Dirichlet-multinomial ownership model, oversampling and
// filtering to feasibility, shrinking concentration and retrying when
// too few feasible lineups survive (spec.md §4.6).
//
// Grounded on internal/simulator/contest.go's field-generation pass in
// the teacher codebase (which draws opponent lineups uniformly at
// random from a value-weighted pool); this replaces the uniform draw
// with a Dirichlet-sampled ownership vector per spec.md §4.6, using
// gonum.org/v1/gonum/stat/distuv.Dirichlet (the scenario generator, C2,
// draws its regime from the same package's Categorical).
package fieldsampler

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/constraintspec"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfserrors"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

// Config parameterizes field sampling.
type Config struct {
	FieldSize        int
	OversampleFactor float64 // draws OversampleFactor*FieldSize candidates before filtering; default 3
	MaxAttempts      int     // shrink-and-retry attempts; default 5
	ShrinkFactor     float64 // concentration multiplier applied per retry; default 0.7
	Seed             int64
}

func (c Config) withDefaults() Config {
	if c.OversampleFactor <= 0 {
		c.OversampleFactor = 3
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.ShrinkFactor <= 0 || c.ShrinkFactor >= 1 {
		c.ShrinkFactor = 0.7
	}
	return c
}

// Sample draws cfg.FieldSize feasible opponent lineups from slate, using
// ownership as the Dirichlet concentration base. It oversamples
// candidates, filters to spec-feasible lineups, and on insufficient
// yield shrinks concentration (flattening the ownership distribution)
// and retries up to cfg.MaxAttempts times before returning
// FieldYieldInsufficient.
func Sample(slate dfstypes.Slate, spec *constraintspec.Spec, ownership []dfstypes.OwnershipPrediction, cfg Config) ([]dfstypes.Lineup, error) {
	cfg = cfg.withDefaults()
	if cfg.FieldSize <= 0 {
		return nil, dfserrors.New(dfserrors.KindInputValidation, "field size must be positive", nil)
	}

	baseAlpha := concentrationFromOwnership(slate, ownership)
	rng := rand.New(rand.NewSource(cfg.Seed))

	concentration := 1.0
	var feasible []dfstypes.Lineup
	var lastAttempt int

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		lastAttempt = attempt
		alpha := scaleAlpha(baseAlpha, concentration)
		candidateCount := int(float64(cfg.FieldSize) * cfg.OversampleFactor)

		feasible = feasible[:0]
		for i := 0; i < candidateCount && len(feasible) < cfg.FieldSize; i++ {
			probs := sampleDirichlet(alpha, rng)
			lineup, ok := drawLineup(slate, probs, rng)
			if !ok {
				continue
			}
			if !feasibleLineup(slate, spec, lineup) {
				continue
			}
			feasible = append(feasible, lineup)
		}

		if len(feasible) >= cfg.FieldSize {
			return feasible[:cfg.FieldSize], nil
		}
		concentration *= cfg.ShrinkFactor
	}

	return nil, dfserrors.New(dfserrors.KindFieldYieldInsufficient, "field sampling did not reach the requested field size after shrink-and-retry", map[string]any{
		"requested": cfg.FieldSize,
		"delivered": len(feasible),
		"attempts":  lastAttempt + 1,
	})
}

// concentrationFromOwnership builds the base Dirichlet alpha vector from
// predicted ownership means, falling back to a uniform prior for any
// driver without a prediction.
func concentrationFromOwnership(slate dfstypes.Slate, ownership []dfstypes.OwnershipPrediction) []float64 {
	byDriver := make(map[string]float64, len(ownership))
	for _, o := range ownership {
		byDriver[o.DriverID] = o.Mean
	}

	alpha := make([]float64, len(slate.Drivers))
	const minAlpha = 0.05
	for i, d := range slate.Drivers {
		v, ok := byDriver[d.DriverID]
		if !ok || v <= 0 {
			v = 1.0 / float64(len(slate.Drivers))
		}
		alpha[i] = minAlpha + v*10
	}
	return alpha
}

// scaleAlpha shrinks concentration toward 1 (uniform) as factor
// decreases, widening the sampled distribution so a broader set of
// driver combinations becomes reachable on retry.
func scaleAlpha(base []float64, factor float64) []float64 {
	out := make([]float64, len(base))
	for i, a := range base {
		out[i] = 1 + (a-1)*factor
		if out[i] <= 0 {
			out[i] = 0.01
		}
	}
	return out
}

func sampleDirichlet(alpha []float64, rng *rand.Rand) []float64 {
	d := distuv.Dirichlet{Alpha: alpha, Src: rng}
	return d.Rand(nil)
}

// drawLineup selects RosterSize distinct drivers without replacement,
// weighted by probs, via sequential re-normalized weighted sampling.
func drawLineup(slate dfstypes.Slate, probs []float64, rng *rand.Rand) (dfstypes.Lineup, bool) {
	if slate.RosterSize <= 0 || slate.RosterSize > len(slate.Drivers) {
		return dfstypes.Lineup{}, false
	}

	remaining := append([]float64(nil), probs...)
	chosen := make([]int, 0, slate.RosterSize)
	chosenSet := make(map[int]struct{}, slate.RosterSize)

	for len(chosen) < slate.RosterSize {
		total := 0.0
		for i, p := range remaining {
			if _, taken := chosenSet[i]; taken {
				continue
			}
			total += p
		}
		if total <= 0 {
			return dfstypes.Lineup{}, false
		}
		target := rng.Float64() * total
		cum := 0.0
		pick := -1
		for i, p := range remaining {
			if _, taken := chosenSet[i]; taken {
				continue
			}
			cum += p
			if target <= cum {
				pick = i
				break
			}
		}
		if pick < 0 {
			return dfstypes.Lineup{}, false
		}
		chosen = append(chosen, pick)
		chosenSet[pick] = struct{}{}
	}

	sort.Ints(chosen)
	driverIDs := make([]string, len(chosen))
	var totalSalary int32
	for i, idx := range chosen {
		driverIDs[i] = slate.Drivers[idx].DriverID
		totalSalary += slate.Drivers[idx].Salary
	}

	return dfstypes.Lineup{
		DriverIDs:   driverIDs,
		DriverIdx:   chosen,
		TotalSalary: totalSalary,
	}, true
}

// feasibleLineup applies the salary cap and the compiled per-team
// stacking bounds (spec.md §6's fixed roster rule) to a sampled lineup.
func feasibleLineup(slate dfstypes.Slate, spec *constraintspec.Spec, lineup dfstypes.Lineup) bool {
	if slate.SalaryCap > 0 && lineup.TotalSalary > slate.SalaryCap {
		return false
	}

	minStack, maxStack := spec.TeamStackBounds()
	teamCounts := make(map[string]int)
	for _, idx := range lineup.DriverIdx {
		teamCounts[slate.Drivers[idx].TeamID]++
	}
	maxCount := 0
	for _, count := range teamCounts {
		if count > maxStack {
			return false
		}
		if count > maxCount {
			maxCount = count
		}
	}
	if minStack > 1 && maxCount < minStack {
		return false
	}
	return true
}
