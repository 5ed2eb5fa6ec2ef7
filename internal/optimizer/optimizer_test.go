package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/constraintspec"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

func smallSlate() dfstypes.Slate {
	drivers := make([]dfstypes.Driver, 10)
	for i := range drivers {
		drivers[i] = dfstypes.Driver{
			DriverID: string(rune('A' + i)),
			Salary:   int32(5000 + i*400),
			TeamID:   string(rune('a' + i%4)),
		}
	}
	return dfstypes.Slate{
		Drivers:       drivers,
		SalaryCap:     30000,
		RosterSize:    4,
		RaceLength:    200,
		MaxDominators: 2,
	}
}

func scenariosFor(slate dfstypes.Slate) *dfstypes.ScenarioMatrix {
	scenarios := make([]dfstypes.Scenario, 50)
	for s := range scenarios {
		points := make([]float64, len(slate.Drivers))
		for d := range points {
			// Deterministic pseudo-random-looking but reproducible points.
			points[d] = float64((s*7+d*13)%97) + float64(d)
		}
		scenarios[s] = dfstypes.Scenario{Index: s, Points: points}
	}
	return &dfstypes.ScenarioMatrix{Scenarios: scenarios, NumDrivers: len(slate.Drivers)}
}

func TestOptimize_ReturnsFeasibleLineupWithinSalaryCap(t *testing.T) {
	slate := smallSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 3})
	require.NoError(t, err)

	result, err := Optimize(context.Background(), slate, scenariosFor(slate), nil, spec, Constraints{}, Config{})
	require.NoError(t, err)
	require.Len(t, result.Lineup.DriverIdx, slate.RosterSize)
	require.LessOrEqual(t, result.Lineup.TotalSalary, slate.SalaryCap)
}

func TestOptimize_HonorsForceIncludeAndExclude(t *testing.T) {
	slate := smallSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 4})
	require.NoError(t, err)

	result, err := Optimize(context.Background(), slate, scenariosFor(slate), nil, spec, Constraints{
		ForceInclude: []int{0},
		ForceExclude: []int{9},
	}, Config{})
	require.NoError(t, err)
	require.Contains(t, result.Lineup.DriverIdx, 0)
	require.NotContains(t, result.Lineup.DriverIdx, 9)
}

func TestOptimize_ConflictingForceConstraintsIsInfeasible(t *testing.T) {
	slate := smallSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 4})
	require.NoError(t, err)

	_, err = Optimize(context.Background(), slate, scenariosFor(slate), nil, spec, Constraints{
		ForceInclude: []int{3},
		ForceExclude: []int{3},
	}, Config{})
	require.Error(t, err)
}

func TestOptimize_RespectsTeamMaxStack(t *testing.T) {
	slate := smallSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 1})
	require.NoError(t, err)

	result, err := Optimize(context.Background(), slate, scenariosFor(slate), nil, spec, Constraints{}, Config{})
	require.NoError(t, err)

	counts := make(map[string]int)
	for _, idx := range result.Lineup.DriverIdx {
		counts[slate.Drivers[idx].TeamID]++
	}
	for _, c := range counts {
		require.LessOrEqual(t, c, 1)
	}
}

func TestOptimize_DiversityConstraintExcludesNearDuplicateLineup(t *testing.T) {
	slate := smallSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 4})
	require.NoError(t, err)

	first, err := Optimize(context.Background(), slate, scenariosFor(slate), nil, spec, Constraints{}, Config{})
	require.NoError(t, err)

	second, err := Optimize(context.Background(), slate, scenariosFor(slate), nil, spec, Constraints{
		ExistingLineups:    []dfstypes.Lineup{first.Lineup},
		MinHammingDistance: slate.RosterSize, // requires a fully disjoint roster
	}, Config{})
	require.NoError(t, err)
	require.GreaterOrEqual(t, first.Lineup.HammingDistance(second.Lineup), slate.RosterSize)
}

func TestOptimize_CancelledContextReturnsSolverTimeoutOrInfeasible(t *testing.T) {
	slate := smallSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 4})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Optimize(ctx, slate, scenariosFor(slate), nil, spec, Constraints{}, Config{})
	require.Error(t, err)
}

func TestOptimize_MaxOwnershipPerDriverExcludesHighOwnershipDrivers(t *testing.T) {
	slate := smallSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 4})
	require.NoError(t, err)

	ownership := make([]dfstypes.OwnershipPrediction, len(slate.Drivers))
	for i, d := range slate.Drivers {
		ownership[i] = dfstypes.OwnershipPrediction{DriverID: d.DriverID, Mean: 0.9}
	}
	ownership[0].Mean = 0.1 // only driver 0 is below the ceiling

	_, err = Optimize(context.Background(), slate, scenariosFor(slate), ownership, spec, Constraints{
		MaxOwnershipPerDriver: 0.5,
	}, Config{})
	require.Error(t, err) // can't fill roster_size=4 with only one eligible driver
}

func TestOptimize_MinLowOwnershipDriversRequiresEnoughLowOwnershipPicks(t *testing.T) {
	slate := smallSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 4})
	require.NoError(t, err)

	ownership := make([]dfstypes.OwnershipPrediction, len(slate.Drivers))
	for i, d := range slate.Drivers {
		mean := 0.8
		if i < 2 {
			mean = 0.05
		}
		ownership[i] = dfstypes.OwnershipPrediction{DriverID: d.DriverID, Mean: mean}
	}

	result, err := Optimize(context.Background(), slate, scenariosFor(slate), ownership, spec, Constraints{
		MinLowOwnershipDrivers: LowOwnershipRequirement{Count: 2, Threshold: 0.1},
	}, Config{})
	require.NoError(t, err)

	lowCount := 0
	for _, idx := range result.Lineup.DriverIdx {
		if ownership[idx].Mean <= 0.1 {
			lowCount++
		}
	}
	require.GreaterOrEqual(t, lowCount, 2)
}

func TestOptimize_MeanObjectiveAlsoFindsFeasibleLineup(t *testing.T) {
	slate := smallSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 4})
	require.NoError(t, err)

	result, err := Optimize(context.Background(), slate, scenariosFor(slate), nil, spec, Constraints{}, Config{
		Objective:  ObjectiveMean,
		TimeBudget: 2 * time.Second,
	})
	require.NoError(t, err)
	require.Len(t, result.Lineup.DriverIdx, slate.RosterSize)
}
