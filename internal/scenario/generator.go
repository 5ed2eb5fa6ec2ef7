// Package scenario implements C2: a constrained causal simulator that
// produces N coherent race scenarios honoring the compiled ConstraintSpec
// (C1). Generation is a two-stage causal draw — a skeleton narrative
// (regime) followed by per-driver conditional outcomes — grounded on
// internal/simulator/distributions.go's per-driver Distribution samplers
// in the teacher codebase, generalized from "draw a player's fantasy
// score" to "draw a driver's laps-led share / incident flag / finish
// differential, then score it with the DraftKings formula".
package scenario

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/constraintspec"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfserrors"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

// Regime names for the skeleton narrative (spec.md glossary).
const (
	RegimeDominator   = "dominator"
	RegimeChaos       = "chaos"
	RegimeFuelMileage = "fuel-mileage"
)

// DefaultRegimeWeights is the fallback mixing distribution when a track
// archetype has no explicit entry. Ordering is fixed so draws are
// reproducible across Go map-iteration orders.
var DefaultRegimeWeights = []RegimeWeight{
	{Regime: RegimeDominator, Weight: 0.35},
	{Regime: RegimeChaos, Weight: 0.40},
	{Regime: RegimeFuelMileage, Weight: 0.25},
}

// RegimeWeight pairs a skeleton-narrative label with its mixing weight for
// a track archetype.
type RegimeWeight struct {
	Regime string
	Weight float64
}

// TrackRegimeWeights maps a track archetype tag to its regime mixing
// weights. Unknown archetypes fall back to DefaultRegimeWeights.
var TrackRegimeWeights = map[string][]RegimeWeight{
	"superspeedway": {
		{Regime: RegimeChaos, Weight: 0.70},
		{Regime: RegimeDominator, Weight: 0.10},
		{Regime: RegimeFuelMileage, Weight: 0.20},
	},
	"short-track": {
		{Regime: RegimeDominator, Weight: 0.55},
		{Regime: RegimeChaos, Weight: 0.35},
		{Regime: RegimeFuelMileage, Weight: 0.10},
	},
	"intermediate": {
		{Regime: RegimeDominator, Weight: 0.40},
		{Regime: RegimeChaos, Weight: 0.30},
		{Regime: RegimeFuelMileage, Weight: 0.30},
	},
	"road-course": {
		{Regime: RegimeChaos, Weight: 0.45},
		{Regime: RegimeFuelMileage, Weight: 0.40},
		{Regime: RegimeDominator, Weight: 0.15},
	},
}

// Config configures scenario generation.
type Config struct {
	N                 int
	Seed              int64
	Workers           int
	MaxResampleAttempts int // default 16, per spec.md §4.2
}

// RejectionStats reports how many draft scenarios were vetoed and
// resampled, for diagnostics.
type RejectionStats struct {
	Rejected int
	Retained int
}

func regimeWeightsFor(trackArchetype string) []RegimeWeight {
	if w, ok := TrackRegimeWeights[trackArchetype]; ok {
		return w
	}
	return DefaultRegimeWeights
}

// Generate produces a ScenarioMatrix of N coherent race scenarios for the
// slate, vetoed against spec. Generation is parallelized across workers
// over fixed-size chunks; each chunk draws from its own RNG seeded with
// Config.Seed plus the chunk's first scenario index, so the result is
// bit-reproducible regardless of GOMAXPROCS (chunks are merged back into
// scenario-index order, not appended in completion order).
func Generate(ctx context.Context, slate dfstypes.Slate, spec *constraintspec.Spec, cfg Config) (*dfstypes.ScenarioMatrix, RejectionStats, error) {
	if cfg.N <= 0 {
		return nil, RejectionStats{}, dfserrors.New(dfserrors.KindInputValidation, "N must be positive", nil)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	maxAttempts := cfg.MaxResampleAttempts
	if maxAttempts <= 0 {
		maxAttempts = 16
	}

	weights := regimeWeightsFor(slate.TrackArchetype)
	wVec := make([]float64, len(weights))
	for i, rw := range weights {
		wVec[i] = rw.Weight
	}

	scenarios := make([]dfstypes.Scenario, cfg.N)
	rejectedCounts := make([]int, workers)

	// Partition scenario indices into fixed-size chunks so floating-point
	// reductions downstream are insensitive to core count (spec.md §9).
	const chunkSize = 1024
	type chunk struct{ start, end int }
	var chunks []chunk
	for start := 0; start < cfg.N; start += chunkSize {
		end := start + chunkSize
		if end > cfg.N {
			end = cfg.N
		}
		chunks = append(chunks, chunk{start, end})
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)
	var mu sync.Mutex
	var firstErr error

	for ci, c := range chunks {
		c := c
		workerIdx := ci % workers
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			rng := rand.New(rand.NewSource(cfg.Seed + int64(c.start)))
			localRejected := 0

			for s := c.start; s < c.end; s++ {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				scen, rejected, err := drawFeasibleScenario(rng, slate, spec, wVec, weights, s, maxAttempts)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return err
				}
				localRejected += rejected
				scenarios[s] = scen
			}

			rejectedCounts[workerIdx] += localRejected
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, RejectionStats{}, err
	}

	totalRejected := 0
	for _, r := range rejectedCounts {
		totalRejected += r
	}

	matrix := &dfstypes.ScenarioMatrix{
		Scenarios:     scenarios,
		NumDrivers:    len(slate.Drivers),
		RaceLength:    slate.RaceLength,
		MaxDominators: slate.MaxDominators,
	}
	return matrix, RejectionStats{Rejected: totalRejected, Retained: cfg.N}, nil
}

// drawFeasibleScenario draws candidate scenarios until one passes the
// constraint spec's veto check, or the resample budget is exhausted.
func drawFeasibleScenario(rng *rand.Rand, slate dfstypes.Slate, spec *constraintspec.Spec, wVec []float64, weights []RegimeWeight, index, maxAttempts int) (dfstypes.Scenario, int, error) {
	rejected := 0
	var lastPredicate string

	for attempt := 0; attempt < maxAttempts; attempt++ {
		regime := drawRegime(rng, wVec, weights)
		scen := drawConditional(rng, slate, regime, index)

		violated, predicate := spec.Veto(constraintspec.ScenarioCandidate{
			LapsLed:   scen.LapsLed,
			Dominator: scen.DominatorF,
		})
		if !violated {
			return scen, rejected, nil
		}
		rejected++
		lastPredicate = predicate
	}

	return dfstypes.Scenario{}, rejected, dfserrors.New(
		dfserrors.KindInfeasibleScenarioBudget,
		fmt.Sprintf("exceeded %d resample attempts for scenario %d", maxAttempts, index),
		map[string]any{"failing_predicate": lastPredicate, "scenario_index": index},
	)
}

func drawRegime(rng *rand.Rand, wVec []float64, weights []RegimeWeight) string {
	cat := distuv.NewCategorical(wVec, rng)
	idx := int(cat.Rand())
	if idx < 0 || idx >= len(weights) {
		idx = 0
	}
	return weights[idx].Regime
}

// drawConditional draws per-driver laps-led share, incident flag, and
// finish-rank differential conditioned on the regime and each driver's
// archetype attributes, then applies DraftKings scoring.
func drawConditional(rng *rand.Rand, slate dfstypes.Slate, regime string, index int) dfstypes.Scenario {
	d := len(slate.Drivers)
	points := make([]float64, d)
	lapsLed := make([]float64, d)
	dominatorFlag := make([]bool, d)
	finishRank := make([]int, d)

	lapsShare := make([]float64, d)
	shareTotal := 0.0
	for i, drv := range slate.Drivers {
		alpha, beta := lapsLedShapeParams(regime, drv.Archetype)
		dist := NewBetaDistribution(alpha, beta, 1.0, 0.0)
		share := dist.Sample(rng)
		lapsShare[i] = share
		shareTotal += share
	}
	if shareTotal <= 0 {
		shareTotal = 1
	}

	// Normalize so aggregate laps-led never structurally exceeds race
	// length even before the veto check (keeps the rejection rate low
	// while still letting the veto catch regime-specific blowups).
	raceLength := slate.RaceLength
	dominatorBudget := regimeDominatorBudget(regime, slate.MaxDominators)

	type rankDraw struct {
		idx   int
		value float64
	}
	rankDraws := make([]rankDraw, d)

	for i, drv := range slate.Drivers {
		normalizedShare := lapsShare[i] / shareTotal
		lapsLed[i] = normalizedShare * raceLength * regimeLapsIntensity(regime)

		incidentProb := incidentProbability(regime, drv.Archetype)
		incident := rng.Float64() < incidentProb

		placeDiffMean := placeDifferentialMean(regime, drv.Archetype)
		placeDiff := NewNormalDistribution(placeDiffMean, 5.0).Sample(rng)
		if incident {
			placeDiff -= 15.0
		}

		rankDraws[i] = rankDraw{idx: i, value: placeDiff}
	}

	sort.Slice(rankDraws, func(a, b int) bool { return rankDraws[a].value > rankDraws[b].value })
	for rank, rd := range rankDraws {
		finishRank[rd.idx] = rank + 1
	}

	dominatorRank := append([]rankDraw(nil), rankDraws...)
	sort.Slice(dominatorRank, func(a, b int) bool { return lapsLed[dominatorRank[a].idx] > lapsLed[dominatorRank[b].idx] })
	for i := 0; i < len(dominatorRank) && i < dominatorBudget; i++ {
		dominatorFlag[dominatorRank[i].idx] = true
	}

	for i := range slate.Drivers {
		points[i] = scoreDraftKings(finishRank[i], lapsLed[i], dominatorFlag[i], d)
	}

	return dfstypes.Scenario{
		Index:      index,
		Regime:     regime,
		Points:     points,
		LapsLed:    lapsLed,
		DominatorF: dominatorFlag,
		FinishRank: finishRank,
	}
}

// scoreDraftKings applies the NASCAR DraftKings scoring formula: finish
// position points (higher for better finish), laps-led bonus points, and
// a dominator bonus. Constants are representative of DK's published
// scoring table, not reproduced verbatim from any source in the pack.
func scoreDraftKings(finishRank int, lapsLed float64, dominator bool, fieldSize int) float64 {
	finishPoints := float64(fieldSize-finishRank+1) / float64(fieldSize) * 45.0
	lapsLedPoints := lapsLed * 0.25
	dominatorBonus := 0.0
	if dominator {
		dominatorBonus = 3.0
	}
	return finishPoints + lapsLedPoints + dominatorBonus
}

func lapsLedShapeParams(regime string, attrs dfstypes.ArchetypeAttrs) (alpha, beta float64) {
	base := 1.0 + attrs.Skill*3.0
	switch regime {
	case RegimeDominator:
		return base * 1.8, 2.0
	case RegimeChaos:
		return base * 0.6, 4.0
	default: // fuel-mileage
		return base, 3.0
	}
}

func regimeLapsIntensity(regime string) float64 {
	switch regime {
	case RegimeDominator:
		return 0.9
	case RegimeChaos:
		return 0.5
	default:
		return 0.7
	}
}

func regimeDominatorBudget(regime string, maxDominators int) int {
	if maxDominators <= 0 {
		maxDominators = 2
	}
	switch regime {
	case RegimeDominator:
		return int(math.Max(1, math.Min(float64(maxDominators), 1)))
	case RegimeChaos:
		return maxDominators
	default:
		return int(math.Max(1, math.Min(float64(maxDominators), 2)))
	}
}

func incidentProbability(regime string, attrs dfstypes.ArchetypeAttrs) float64 {
	base := 0.04 + attrs.Aggression*0.10 + attrs.ShadowRisk*0.05
	switch regime {
	case RegimeChaos:
		return base * 2.5
	case RegimeFuelMileage:
		return base * 0.6
	default:
		return base
	}
}

func placeDifferentialMean(regime string, attrs dfstypes.ArchetypeAttrs) float64 {
	skillEdge := (attrs.Skill - 0.5) * 20.0
	switch regime {
	case RegimeDominator:
		return skillEdge * 1.3
	case RegimeChaos:
		return skillEdge * 0.6
	default:
		return skillEdge + attrs.RealpolitikPos*5.0
	}
}
