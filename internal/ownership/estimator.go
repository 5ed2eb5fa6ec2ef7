// Package ownership implements C4: the ownership ensemble. Four base
// estimators (historical, projection-based, salary-skill regression,
// recent-form) are combined by voting or stacking into a point + bootstrap
// uncertainty ownership prediction per driver.
//
// Grounded on the contrarian/leverage logic in
// services/realtime-service/internal/ownership (OwnershipTracker,
// LeverageCalculator) in the teacher codebase, which tracks and scores
// live ownership but never fits a predictive ensemble from historical
// data; the four-estimator contract itself follows spec.md §4.4 and §9
// ("an estimator is any object implementing fit(X,y) and predict(X)").
package ownership

import (
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

// TrainingRow is one historical observation used to fit the base
// estimators: a driver's slate context plus the ownership the field
// actually gave it.
type TrainingRow struct {
	DriverID        string
	TrackArchetype  string
	Salary          int
	Skill           float64
	ProjectedPoints float64
	ActualOwnership float64   // in [0,1]
	RecentOwnerships []float64 // last-K chronological ownership, most recent last
}

// BaseEstimator is the tagged-variant contract of spec.md §9: fit(X,y)
// and predict(X), without virtual-dispatch infrastructure beyond this
// interface.
type BaseEstimator interface {
	Name() string
	Fit(rows []TrainingRow) error
	Predict(driver dfstypes.Driver, trackArchetype string) float64
	// Ready reports whether Fit succeeded with enough data to predict.
	Ready() bool
}

// DecayKind selects the recent-form estimator's weighting scheme.
type DecayKind string

const (
	DecayNone        DecayKind = "none"
	DecayLinear      DecayKind = "linear"
	DecayExponential DecayKind = "exponential"
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
