package ownership

import "github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"

// HistoricalEstimator predicts mean ownership per (driver, track
// archetype), falling back to the driver's overall mean, then to the
// global mean, per spec.md §4.4.1.
type HistoricalEstimator struct {
	byDriverTrack map[string]float64
	byDriver      map[string]float64
	global        float64
	ready         bool
}

func NewHistoricalEstimator() *HistoricalEstimator {
	return &HistoricalEstimator{
		byDriverTrack: make(map[string]float64),
		byDriver:      make(map[string]float64),
	}
}

func (e *HistoricalEstimator) Name() string { return "historical" }

func (e *HistoricalEstimator) Fit(rows []TrainingRow) error {
	if len(rows) == 0 {
		e.ready = false
		return nil
	}

	sumDriverTrack := make(map[string]float64)
	countDriverTrack := make(map[string]int)
	sumDriver := make(map[string]float64)
	countDriver := make(map[string]int)
	sumGlobal, countGlobal := 0.0, 0

	for _, r := range rows {
		key := r.DriverID + "|" + r.TrackArchetype
		sumDriverTrack[key] += r.ActualOwnership
		countDriverTrack[key]++
		sumDriver[r.DriverID] += r.ActualOwnership
		countDriver[r.DriverID]++
		sumGlobal += r.ActualOwnership
		countGlobal++
	}

	for key, sum := range sumDriverTrack {
		e.byDriverTrack[key] = sum / float64(countDriverTrack[key])
	}
	for driver, sum := range sumDriver {
		e.byDriver[driver] = sum / float64(countDriver[driver])
	}
	if countGlobal > 0 {
		e.global = sumGlobal / float64(countGlobal)
	}
	e.ready = true
	return nil
}

func (e *HistoricalEstimator) Predict(driver dfstypes.Driver, trackArchetype string) float64 {
	if v, ok := e.byDriverTrack[driver.DriverID+"|"+trackArchetype]; ok {
		return clamp01(v)
	}
	if v, ok := e.byDriver[driver.DriverID]; ok {
		return clamp01(v)
	}
	return clamp01(e.global)
}

func (e *HistoricalEstimator) Ready() bool { return e.ready }
