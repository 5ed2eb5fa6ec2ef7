package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/constraintspec"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

func testSlate(n int) dfstypes.Slate {
	drivers := make([]dfstypes.Driver, n)
	for i := range drivers {
		drivers[i] = dfstypes.Driver{
			DriverID: driverName(i),
			Salary:   int32(5000 + i*500),
			TeamID:   teamName(i % 3),
			Archetype: dfstypes.ArchetypeAttrs{
				Skill: 0.3 + float64(i%5)*0.1,
			},
		}
	}
	return dfstypes.Slate{
		Drivers:       drivers,
		SalaryCap:     50000,
		RosterSize:    6,
		TrackArchetype: "intermediate",
		RaceLength:    400,
		MaxDominators: 2,
	}
}

func driverName(i int) string { return "driver_" + string(rune('A'+i)) }
func teamName(i int) string   { return "team_" + string(rune('A'+i)) }

func TestGenerate_HonorsConservationLaws(t *testing.T) {
	slate := testSlate(10)
	spec, err := constraintspec.Compile(slate, constraintspec.Options{})
	require.NoError(t, err)

	matrix, stats, err := Generate(context.Background(), slate, spec, Config{N: 200, Seed: 42, Workers: 2})
	require.NoError(t, err)
	require.Equal(t, 200, matrix.N())
	require.GreaterOrEqual(t, stats.Retained, 0)

	for _, scen := range matrix.Scenarios {
		total := 0.0
		dominators := 0
		for i := range scen.LapsLed {
			total += scen.LapsLed[i]
			if scen.DominatorF[i] {
				dominators++
			}
		}
		require.LessOrEqual(t, total, slate.RaceLength+1e-9)
		require.LessOrEqual(t, dominators, slate.MaxDominators)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	slate := testSlate(8)
	spec, err := constraintspec.Compile(slate, constraintspec.Options{})
	require.NoError(t, err)

	m1, _, err := Generate(context.Background(), slate, spec, Config{N: 50, Seed: 7, Workers: 3})
	require.NoError(t, err)
	m2, _, err := Generate(context.Background(), slate, spec, Config{N: 50, Seed: 7, Workers: 3})
	require.NoError(t, err)

	for s := range m1.Scenarios {
		require.Equal(t, m1.Scenarios[s].Points, m2.Scenarios[s].Points, "scenario %d should be reproducible given a fixed seed", s)
	}
}

func TestGenerate_InfeasibleBudgetReportsFailingPredicate(t *testing.T) {
	// A negative max_dominators makes every candidate violate the dominator
	// conservation predicate regardless of regime, so the resample budget
	// is guaranteed to exhaust deterministically.
	slate := testSlate(6)
	slate.MaxDominators = -1
	spec, err := constraintspec.Compile(slate, constraintspec.Options{})
	require.NoError(t, err)

	_, _, err = Generate(context.Background(), slate, spec, Config{N: 5, Seed: 1, Workers: 1, MaxResampleAttempts: 2})
	require.Error(t, err)
}
