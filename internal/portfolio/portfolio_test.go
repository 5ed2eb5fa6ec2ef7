package portfolio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/constraintspec"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/scenario"
)

func testSlate() dfstypes.Slate {
	drivers := make([]dfstypes.Driver, 10)
	for i := range drivers {
		drivers[i] = dfstypes.Driver{
			DriverID: string(rune('A' + i)),
			Salary:   int32(5000 + i*400),
			TeamID:   string(rune('a' + i%4)),
		}
	}
	return dfstypes.Slate{
		Drivers:        drivers,
		SalaryCap:      30000,
		RosterSize:     4,
		TrackArchetype: "intermediate",
		RaceLength:     200,
		MaxDominators:  2,
	}
}

func testScenarios(slate dfstypes.Slate, regimes []string) *dfstypes.ScenarioMatrix {
	scenarios := make([]dfstypes.Scenario, 0, len(regimes)*10)
	for r, regime := range regimes {
		for s := 0; s < 10; s++ {
			points := make([]float64, len(slate.Drivers))
			for d := range points {
				points[d] = float64((s*7+d*13+r*5)%97) + float64(d)
			}
			scenarios = append(scenarios, dfstypes.Scenario{Index: len(scenarios), Regime: regime, Points: points})
		}
	}
	return &dfstypes.ScenarioMatrix{Scenarios: scenarios, NumDrivers: len(slate.Drivers)}
}

func TestGenerate_PureTail_ProducesRequestedLineups(t *testing.T) {
	slate := testSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 3})
	require.NoError(t, err)
	scenarios := testScenarios(slate, []string{scenario.RegimeDominator})

	result, err := Generate(context.Background(), slate, scenarios, nil, spec, Config{NumLineups: 3, Strategy: StrategyPureTail})
	require.NoError(t, err)
	require.Len(t, result.Lineups, 3)
	require.NotNil(t, result.Exposure)
}

func TestGenerate_PureTail_LineupsAreMutuallyDiverse(t *testing.T) {
	slate := testSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 4})
	require.NoError(t, err)
	scenarios := testScenarios(slate, []string{scenario.RegimeChaos})

	result, err := Generate(context.Background(), slate, scenarios, nil, spec, Config{
		NumLineups:         4,
		Strategy:           StrategyPureTail,
		MinHammingDistance: intPtr(1),
	})
	require.NoError(t, err)

	for i := 0; i < len(result.Lineups); i++ {
		for j := i + 1; j < len(result.Lineups); j++ {
			require.NotEqual(t, result.Lineups[i].DriverIDs, result.Lineups[j].DriverIDs)
		}
	}
}

func intPtr(n int) *int { return &n }

// TestGenerate_ZeroMinDiffAllowsDuplicateLineups exercises spec.md §8's
// min_diff=0 boundary case: with diversity disabled, the deterministic
// argmax solver has no reason to pick a different lineup each slot.
func TestGenerate_ZeroMinDiffAllowsDuplicateLineups(t *testing.T) {
	slate := testSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 4})
	require.NoError(t, err)
	scenarios := testScenarios(slate, []string{scenario.RegimeDominator})

	result, err := Generate(context.Background(), slate, scenarios, nil, spec, Config{
		NumLineups:         3,
		Strategy:           StrategyPureTail,
		MinHammingDistance: intPtr(0),
	})
	require.NoError(t, err)
	require.Len(t, result.Lineups, 3)
	require.Equal(t, result.Lineups[0].DriverIDs, result.Lineups[1].DriverIDs)
	require.Equal(t, result.Lineups[0].DriverIDs, result.Lineups[2].DriverIDs)
}

func TestGenerate_RegimeAware_TagsLineupsByRegime(t *testing.T) {
	slate := testSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 4})
	require.NoError(t, err)
	scenarios := testScenarios(slate, []string{scenario.RegimeDominator, scenario.RegimeChaos, scenario.RegimeFuelMileage})

	result, err := Generate(context.Background(), slate, scenarios, nil, spec, Config{
		NumLineups: 10,
		Strategy:   StrategyRegimeAware,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Lineups)

	seen := make(map[string]bool)
	for _, tag := range result.RegimeTag {
		seen[tag] = true
	}
	require.NotEmpty(t, seen)
	for tag := range seen {
		require.Contains(t, []string{scenario.RegimeDominator, scenario.RegimeChaos, scenario.RegimeFuelMileage}, tag)
	}
}

func TestGenerate_LeverageAware_StillFeasible(t *testing.T) {
	slate := testSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 4})
	require.NoError(t, err)
	scenarios := testScenarios(slate, []string{scenario.RegimeDominator})

	ownership := make([]dfstypes.OwnershipPrediction, len(slate.Drivers))
	for i, d := range slate.Drivers {
		ownership[i] = dfstypes.OwnershipPrediction{DriverID: d.DriverID, Mean: 0.1 * float64(i+1)}
	}

	result, err := Generate(context.Background(), slate, scenarios, ownership, spec, Config{
		NumLineups: 2,
		Strategy:   StrategyLeverageAware,
	})
	require.NoError(t, err)
	require.Len(t, result.Lineups, 2)
}

func TestGenerate_RejectsNonPositiveLineupCount(t *testing.T) {
	slate := testSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 4})
	require.NoError(t, err)

	_, err = Generate(context.Background(), slate, testScenarios(slate, []string{scenario.RegimeChaos}), nil, spec, Config{NumLineups: 0})
	require.Error(t, err)
}

func TestAllocateByWeight_SumsExactlyToRequestedTotal(t *testing.T) {
	weights := []scenario.RegimeWeight{
		{Regime: "a", Weight: 0.35},
		{Regime: "b", Weight: 0.40},
		{Regime: "c", Weight: 0.25},
	}
	for _, n := range []int{1, 3, 7, 10, 23} {
		allocs := allocateByWeight(n, weights)
		total := 0
		for _, a := range allocs {
			total += a.count
		}
		require.Equal(t, n, total)
	}
}

func TestComputeExposure_ComputesPlayerAndTeamFractions(t *testing.T) {
	slate := testSlate()
	lineups := []dfstypes.Lineup{
		{DriverIdx: []int{0, 1, 2, 3}, DriverIDs: []string{"A", "B", "C", "D"}},
		{DriverIdx: []int{0, 1, 4, 5}, DriverIDs: []string{"A", "B", "E", "F"}},
	}

	report := ComputeExposure(slate, lineups)
	require.Equal(t, 1.0, report.PlayerExposure["A"])
	require.Equal(t, 0.5, report.PlayerExposure["C"])
	require.Greater(t, report.DiversityScore, 0.0)
}

func TestComputeExposure_EmptyPortfolioReturnsZeroReport(t *testing.T) {
	slate := testSlate()
	report := ComputeExposure(slate, nil)
	require.Empty(t, report.PlayerExposure)
	require.Equal(t, 0.0, report.DiversityScore)
}
