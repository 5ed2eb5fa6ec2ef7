package ownership

import (
	"math"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

// RecentFormEstimator predicts ownership as a decayed rolling mean over a
// driver's last-K chronological ownership observations (spec.md §4.4.4),
// with none/linear/exponential weighting schemes selected by DecayKind.
type RecentFormEstimator struct {
	decay    DecayKind
	byDriver map[string]float64
	global   float64
	ready    bool
}

func NewRecentFormEstimator(decay DecayKind) *RecentFormEstimator {
	if decay == "" {
		decay = DecayExponential
	}
	return &RecentFormEstimator{
		decay:    decay,
		byDriver: make(map[string]float64),
	}
}

func (e *RecentFormEstimator) Name() string { return "recent_form_" + string(e.decay) }

func (e *RecentFormEstimator) Fit(rows []TrainingRow) error {
	if len(rows) == 0 {
		e.ready = false
		return nil
	}

	sumGlobal, countGlobal := 0.0, 0
	for _, r := range rows {
		if v := e.weightedMean(r.RecentOwnerships); v > 0 {
			e.byDriver[r.DriverID] = v
		}
		sumGlobal += r.ActualOwnership
		countGlobal++
	}
	if countGlobal > 0 {
		e.global = sumGlobal / float64(countGlobal)
	}
	e.ready = true
	return nil
}

func (e *RecentFormEstimator) Predict(driver dfstypes.Driver, _ string) float64 {
	if v, ok := e.byDriver[driver.DriverID]; ok && v > 0 {
		return clamp01(v)
	}
	return clamp01(e.global)
}

func (e *RecentFormEstimator) Ready() bool { return e.ready }

// weightedMean applies the configured decay to a chronological series
// (most recent last), weighting recent observations more heavily under
// linear and exponential decay.
func (e *RecentFormEstimator) weightedMean(series []float64) float64 {
	n := len(series)
	if n == 0 {
		return 0
	}

	weights := make([]float64, n)
	switch e.decay {
	case DecayLinear:
		for i := range series {
			weights[i] = float64(i + 1)
		}
	case DecayExponential:
		const lambda = 0.35
		for i := range series {
			age := float64(n - 1 - i)
			weights[i] = math.Exp(-lambda * age)
		}
	default: // DecayNone
		for i := range series {
			weights[i] = 1
		}
	}

	sumW, sumWV := 0.0, 0.0
	for i, v := range series {
		sumW += weights[i]
		sumWV += weights[i] * v
	}
	if sumW == 0 {
		return 0
	}
	return sumWV / sumW
}
