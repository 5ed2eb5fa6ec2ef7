package ownership

import (
	"gonum.org/v1/gonum/stat"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

// ProjectionEstimator fits a linear model of ownership on
// value_score = projected_points / salary (spec.md §4.4.2), via
// gonum.org/v1/gonum/stat.LinearRegression.
type ProjectionEstimator struct {
	alpha, beta float64
	ready       bool
}

func NewProjectionEstimator() *ProjectionEstimator { return &ProjectionEstimator{} }

func (e *ProjectionEstimator) Name() string { return "projection" }

func (e *ProjectionEstimator) Fit(rows []TrainingRow) error {
	if len(rows) < 2 {
		e.ready = false
		return nil
	}

	x := make([]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = valueScore(r.ProjectedPoints, float64(r.Salary))
		y[i] = r.ActualOwnership
	}

	e.alpha, e.beta = stat.LinearRegression(x, y, nil, false)
	e.ready = true
	return nil
}

func (e *ProjectionEstimator) Predict(driver dfstypes.Driver, _ string) float64 {
	// Predict is only ever called with the projected points supplied via
	// PredictWithProjection; without a projection this degrades to the
	// fitted intercept.
	return clamp01(e.alpha)
}

// PredictWithProjection is the concrete entry point the ensemble uses,
// since ownership depends on the driver's current-slate projection, not
// just its archetype attributes.
func (e *ProjectionEstimator) PredictWithProjection(driver dfstypes.Driver, projectedPoints float64) float64 {
	vs := valueScore(projectedPoints, float64(driver.Salary))
	return clamp01(e.alpha + e.beta*vs)
}

func (e *ProjectionEstimator) Ready() bool { return e.ready }

func valueScore(projectedPoints float64, salary float64) float64 {
	if salary <= 0 {
		return 0
	}
	return projectedPoints / salary
}
