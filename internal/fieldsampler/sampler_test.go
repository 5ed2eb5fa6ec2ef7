package fieldsampler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/constraintspec"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

func testSlate(n int) dfstypes.Slate {
	drivers := make([]dfstypes.Driver, n)
	for i := 0; i < n; i++ {
		drivers[i] = dfstypes.Driver{
			DriverID: driverName(i),
			Salary:   int32(5000 + (i%6)*500),
			TeamID:   teamName(i % 5),
		}
	}
	return dfstypes.Slate{
		Drivers:       drivers,
		SalaryCap:     50000,
		RosterSize:    6,
		TrackArchetype: "intermediate",
		RaceLength:    200,
		MaxDominators: 2,
	}
}

func driverName(i int) string { return "driver_" + string(rune('A'+i)) }
func teamName(i int) string   { return "team_" + string(rune('A'+i)) }

func TestSample_ReturnsExactFieldSize(t *testing.T) {
	slate := testSlate(20)
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 3})
	require.NoError(t, err)

	field, err := Sample(slate, spec, nil, Config{FieldSize: 30, Seed: 1})
	require.NoError(t, err)
	require.Len(t, field, 30)
	for _, l := range field {
		require.Len(t, l.DriverIDs, slate.RosterSize)
		require.LessOrEqual(t, l.TotalSalary, slate.SalaryCap)
	}
}

func TestSample_RespectsTeamMaxStack(t *testing.T) {
	slate := testSlate(20)
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 2})
	require.NoError(t, err)

	field, err := Sample(slate, spec, nil, Config{FieldSize: 20, Seed: 2})
	require.NoError(t, err)

	for _, l := range field {
		counts := make(map[string]int)
		for _, idx := range l.DriverIdx {
			counts[slate.Drivers[idx].TeamID]++
		}
		for _, c := range counts {
			require.LessOrEqual(t, c, 2)
		}
	}
}

func TestSample_RespectsTeamMinStack(t *testing.T) {
	slate := testSlate(20)
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 2, TeamMaxStack: 3})
	require.NoError(t, err)

	field, err := Sample(slate, spec, nil, Config{FieldSize: 20, Seed: 4})
	require.NoError(t, err)

	for _, l := range field {
		counts := make(map[string]int)
		for _, idx := range l.DriverIdx {
			counts[slate.Drivers[idx].TeamID]++
		}
		maxCount := 0
		for _, c := range counts {
			if c > maxCount {
				maxCount = c
			}
		}
		require.GreaterOrEqual(t, maxCount, 2)
	}
}

func TestSample_InsufficientFieldSizeReturnsFieldYieldInsufficient(t *testing.T) {
	slate := testSlate(8) // fewer drivers than needed to cover a large field without repeats of hard constraints
	slate.RosterSize = 6
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 1})
	require.NoError(t, err)

	_, err = Sample(slate, spec, nil, Config{FieldSize: 500, MaxAttempts: 2, Seed: 3})
	require.Error(t, err)
}

func TestSample_Deterministic(t *testing.T) {
	slate := testSlate(20)
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 3})
	require.NoError(t, err)

	f1, err := Sample(slate, spec, nil, Config{FieldSize: 15, Seed: 42})
	require.NoError(t, err)
	f2, err := Sample(slate, spec, nil, Config{FieldSize: 15, Seed: 42})
	require.NoError(t, err)

	for i := range f1 {
		require.Equal(t, f1[i].DriverIDs, f2[i].DriverIDs)
	}
}
