package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/constraintspec"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

func testSlate() dfstypes.Slate {
	return dfstypes.Slate{
		Drivers: []dfstypes.Driver{
			{DriverID: "B", Salary: 6000, TeamID: "team1"},
			{DriverID: "A", Salary: 5000, TeamID: "team1"},
		},
		SalaryCap:  30000,
		RosterSize: 4,
	}
}

func TestFingerprint_StableUnderDriverReordering(t *testing.T) {
	slate := testSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 3})
	require.NoError(t, err)

	reordered := slate
	reordered.Drivers = []dfstypes.Driver{slate.Drivers[1], slate.Drivers[0]}

	require.Equal(t, Fingerprint(slate, spec), Fingerprint(reordered, spec))
}

func TestFingerprint_ChangesWithSalary(t *testing.T) {
	slate := testSlate()
	spec, err := constraintspec.Compile(slate, constraintspec.Options{TeamMinStack: 1, TeamMaxStack: 3})
	require.NoError(t, err)

	changed := slate
	changed.Drivers = append([]dfstypes.Driver(nil), slate.Drivers...)
	changed.Drivers[0].Salary += 100

	require.NotEqual(t, Fingerprint(slate, spec), Fingerprint(changed, spec))
}

func TestCache_PayoutCurveRoundTrips(t *testing.T) {
	c := New(time.Minute)
	curve := dfstypes.PayoutCurve{Family: dfstypes.PayoutPowerLaw, A: 100, B: 0.8, Tier: dfstypes.TierMedium}

	_, ok := c.GetPayoutCurve("fp1", dfstypes.TierMedium)
	require.False(t, ok)

	c.SetPayoutCurve("fp1", dfstypes.TierMedium, curve, 0)
	got, ok := c.GetPayoutCurve("fp1", dfstypes.TierMedium)
	require.True(t, ok)
	require.Equal(t, curve, got)

	stats := c.Stats()
	require.Equal(t, int64(1), stats.Sets)
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
}

func TestCache_DistinctTiersDoNotCollide(t *testing.T) {
	c := New(time.Minute)
	small := dfstypes.PayoutCurve{Family: dfstypes.PayoutPowerLaw, A: 10, Tier: dfstypes.TierSmall}
	large := dfstypes.PayoutCurve{Family: dfstypes.PayoutExponential, A: 50, Tier: dfstypes.TierLarge}

	c.SetPayoutCurve("fp1", dfstypes.TierSmall, small, 0)
	c.SetPayoutCurve("fp1", dfstypes.TierLarge, large, 0)

	got, ok := c.GetPayoutCurve("fp1", dfstypes.TierSmall)
	require.True(t, ok)
	require.Equal(t, small, got)

	got, ok = c.GetPayoutCurve("fp1", dfstypes.TierLarge)
	require.True(t, ok)
	require.Equal(t, large, got)
}

func TestCache_OwnershipRoundTrips(t *testing.T) {
	c := New(time.Minute)
	predictions := []dfstypes.OwnershipPrediction{{DriverID: "A", Mean: 0.2}}

	c.SetOwnership("fp1", predictions, 0)
	got, ok := c.GetOwnership("fp1")
	require.True(t, ok)
	require.Equal(t, predictions, got)
}

func TestCache_EntriesExpireAfterTTL(t *testing.T) {
	c := New(0)
	c.SetPayoutCurve("fp1", dfstypes.TierSmall, dfstypes.PayoutCurve{A: 1}, time.Nanosecond)
	time.Sleep(time.Millisecond)

	_, ok := c.GetPayoutCurve("fp1", dfstypes.TierSmall)
	require.False(t, ok)
}

func TestCache_PurgeSweepsExpiredEntriesOnly(t *testing.T) {
	c := New(0)
	c.SetPayoutCurve("expired", dfstypes.TierSmall, dfstypes.PayoutCurve{A: 1}, time.Nanosecond)
	c.SetPayoutCurve("fresh", dfstypes.TierSmall, dfstypes.PayoutCurve{A: 2}, time.Hour)
	time.Sleep(time.Millisecond)

	swept := c.Purge()
	require.Equal(t, 1, swept)

	_, ok := c.GetPayoutCurve("fresh", dfstypes.TierSmall)
	require.True(t, ok)
}

func TestCache_ZeroTTLDefaultNeverExpires(t *testing.T) {
	c := New(0)
	c.SetPayoutCurve("fp1", dfstypes.TierSmall, dfstypes.PayoutCurve{A: 1}, 0)
	time.Sleep(time.Millisecond)

	_, ok := c.GetPayoutCurve("fp1", dfstypes.TierSmall)
	require.True(t, ok)
}
