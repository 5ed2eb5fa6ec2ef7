package payout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

func powerLawEntries(a, b float64, n int) []PrizeEntry {
	entries := make([]PrizeEntry, n)
	for i := 0; i < n; i++ {
		rank := i + 1
		entries[i] = PrizeEntry{Rank: rank, Payout: a * math.Pow(float64(rank), -b)}
	}
	return entries
}

func TestFit_SelectsPowerLawForPowerLawData(t *testing.T) {
	entries := powerLawEntries(1000, 1.4, 50)
	result, err := Fit(entries, 3000)
	require.NoError(t, err)
	require.Equal(t, dfstypes.PayoutPowerLaw, result.Curve.Family)
	require.Greater(t, result.Curve.RSquared, 0.9)
	require.Equal(t, dfstypes.TierSmall, result.Curve.Tier)
}

func TestFit_TiersByFieldSize(t *testing.T) {
	require.Equal(t, dfstypes.TierSmall, dfstypes.TierForSize(100))
	require.Equal(t, dfstypes.TierMedium, dfstypes.TierForSize(10000))
	require.Equal(t, dfstypes.TierLarge, dfstypes.TierForSize(50000))
}

func TestFit_RejectsSparseData(t *testing.T) {
	_, err := Fit([]PrizeEntry{{Rank: 1, Payout: 100}}, 1000)
	require.Error(t, err)
}

func TestPredict_ZeroBeyondCutoff(t *testing.T) {
	curve := dfstypes.PayoutCurve{Family: dfstypes.PayoutPowerLaw, A: 1000, B: 1.2, CutoffRank: 10}
	require.Equal(t, 0.0, Predict(curve, 11))
	require.Greater(t, Predict(curve, 1), 0.0)
}

func TestPredict_ExponentialFamily(t *testing.T) {
	curve := dfstypes.PayoutCurve{Family: dfstypes.PayoutExponential, A: 500, B: 0.05, CutoffRank: 100}
	got := Predict(curve, 1)
	require.InDelta(t, 500*math.Exp(-0.05), got, 1e-6)
}
