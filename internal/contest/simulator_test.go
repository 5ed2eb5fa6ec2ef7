package contest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

func twoScenarioMatrix() *dfstypes.ScenarioMatrix {
	return &dfstypes.ScenarioMatrix{
		NumDrivers: 3,
		Scenarios: []dfstypes.Scenario{
			{Index: 0, Points: []float64{10, 20, 30}},
			{Index: 1, Points: []float64{40, 5, 5}},
		},
	}
}

func lineupOf(idx ...int) dfstypes.Lineup {
	return dfstypes.Lineup{ID: uuid.New(), DriverIdx: idx, DriverIDs: make([]string, len(idx))}
}

func flatCurve(cutoff int) dfstypes.PayoutCurve {
	return dfstypes.PayoutCurve{Family: dfstypes.PayoutPowerLaw, A: 100, B: 1, CutoffRank: cutoff}
}

func TestSimulate_RequiresAtLeastOneUserLineup(t *testing.T) {
	_, err := Simulate(context.Background(), twoScenarioMatrix(), nil, nil, flatCurve(5), dfstypes.Contest{EntryFee: 5, FieldSize: 2}, Config{})
	require.Error(t, err)
}

func TestSimulate_BestScenarioScoreWinsRank1(t *testing.T) {
	scenarios := twoScenarioMatrix()
	user := lineupOf(2) // driver index 2: scores 30 in scenario 0, 5 in scenario 1
	field := lineupOf(0)

	result, err := Simulate(context.Background(), scenarios, []dfstypes.Lineup{user}, []dfstypes.Lineup{field}, flatCurve(2), dfstypes.Contest{EntryFee: 10, FieldSize: 2}, Config{})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	// scenario 0: user(30) beats field(10) -> rank 1; scenario 1: user(5) loses to field(40) -> rank 2.
	require.Equal(t, 1, result.Entries[0].Rank) // rounds down from mean(1,2)=1.5 via integer division
}

func TestSimulate_CancellationReturnsCancelledResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	user := lineupOf(0)
	result, err := Simulate(ctx, twoScenarioMatrix(), []dfstypes.Lineup{user}, nil, flatCurve(5), dfstypes.Contest{EntryFee: 5, FieldSize: 1}, Config{})
	require.Error(t, err)
	require.NotNil(t, result)
	require.True(t, result.Cancelled)
}

func TestSimulate_PayoutBeyondCutoffNeverCashes(t *testing.T) {
	scenarios := twoScenarioMatrix()
	user := lineupOf(0)
	field := lineupOf(2)

	// CutoffRank 0 means every rank (>=1) exceeds it, so nothing ever pays
	// regardless of how the scenarios rank user vs. field.
	result, err := Simulate(context.Background(), scenarios, []dfstypes.Lineup{user}, []dfstypes.Lineup{field}, flatCurve(0), dfstypes.Contest{EntryFee: 10, FieldSize: 2}, Config{})
	require.NoError(t, err)
	require.False(t, result.Entries[0].Cashed)
}
