// Package payout implements C5: fitting a rank->payout curve for a
// contest's prize table, selecting between power-law and exponential
// families by R², tiered by contest size (spec.md §4.5).
//
// Grounded on the LBFGS-based nonlinear optimization in
// internal/analytics/portfolio.solveQuadraticProgramming (teacher
// codebase), reusing gonum.org/v1/gonum/optimize.Problem/LBFGS/Minimize
// for least-squares curve fitting instead of mean-variance weights.
package payout

import (
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfserrors"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
)

// FitQualityWarningThreshold is the R² below which a fitted curve is
// still accepted but should be flagged to the caller as low-confidence.
const FitQualityWarningThreshold = 0.90

// FitQualityRejectThreshold is the R² below which the fit is rejected
// outright as unusable.
const FitQualityRejectThreshold = 0.50

// PrizeEntry is one observed (rank, payout) point from a contest's prize
// table used to fit the curve.
type PrizeEntry struct {
	Rank   int
	Payout float64
}

// FitResult is the outcome of fitting both candidate families and
// selecting the better one.
type FitResult struct {
	Curve   dfstypes.PayoutCurve
	Warning string // non-empty when RSquared is below FitQualityWarningThreshold
}

// Fit selects a contest tier from fieldSize and fits both the power-law
// and exponential families to entries, returning whichever has the
// higher R². entries need not be sorted and may omit non-paying ranks.
func Fit(entries []PrizeEntry, fieldSize int) (FitResult, error) {
	if len(entries) < 3 {
		return FitResult{}, dfserrors.New(dfserrors.KindCurveFitError, "at least 3 prize-table entries are required to fit a payout curve", nil)
	}

	tier := dfstypes.TierForSize(fieldSize)
	cutoff := maxRank(entries)

	powerLaw, powerR2, err := fitPowerLaw(entries)
	if err != nil {
		return FitResult{}, err
	}
	exponential, expR2, err := fitExponential(entries)
	if err != nil {
		return FitResult{}, err
	}

	var curve dfstypes.PayoutCurve
	var r2 float64
	if powerR2 >= expR2 {
		curve = dfstypes.PayoutCurve{Family: dfstypes.PayoutPowerLaw, A: powerLaw[0], B: powerLaw[1], Tier: tier, RSquared: powerR2, CutoffRank: cutoff}
		r2 = powerR2
	} else {
		curve = dfstypes.PayoutCurve{Family: dfstypes.PayoutExponential, A: exponential[0], B: exponential[1], Tier: tier, RSquared: expR2, CutoffRank: cutoff}
		r2 = expR2
	}

	if r2 < FitQualityRejectThreshold {
		return FitResult{}, dfserrors.New(dfserrors.KindCurveFitError, "neither payout curve family reached the minimum acceptable fit quality", map[string]any{
			"r_squared": r2,
		})
	}

	result := FitResult{Curve: curve}
	if r2 < FitQualityWarningThreshold {
		result.Warning = "payout curve fit quality is below the high-confidence threshold"
	}
	return result, nil
}

// Predict returns the payout for rank under curve, 0 beyond CutoffRank.
func Predict(curve dfstypes.PayoutCurve, rank int) float64 {
	if rank <= 0 || rank > curve.CutoffRank {
		return 0
	}
	r := float64(rank)
	switch curve.Family {
	case dfstypes.PayoutExponential:
		return curve.A * math.Exp(-curve.B*r)
	default: // PayoutPowerLaw
		return curve.A * math.Pow(r, -curve.B)
	}
}

func maxRank(entries []PrizeEntry) int {
	max := 0
	for _, e := range entries {
		if e.Rank > max {
			max = e.Rank
		}
	}
	return max
}

// fitPowerLaw fits payout(rank) = a * rank^-b by nonlinear least squares
// over (a,b), starting from the log-linear closed-form estimate.
func fitPowerLaw(entries []PrizeEntry) ([2]float64, float64, error) {
	a0, b0 := powerLawSeed(entries)
	params, err := minimizeSSE(entries, a0, b0, func(rank, a, b float64) float64 {
		return a * math.Pow(rank, -b)
	})
	if err != nil {
		return [2]float64{}, 0, err
	}
	r2 := rSquared(entries, func(rank float64) float64 {
		return params[0] * math.Pow(rank, -params[1])
	})
	return params, r2, nil
}

// fitExponential fits payout(rank) = a * exp(-b*rank).
func fitExponential(entries []PrizeEntry) ([2]float64, float64, error) {
	a0, b0 := exponentialSeed(entries)
	params, err := minimizeSSE(entries, a0, b0, func(rank, a, b float64) float64 {
		return a * math.Exp(-b*rank)
	})
	if err != nil {
		return [2]float64{}, 0, err
	}
	r2 := rSquared(entries, func(rank float64) float64 {
		return params[0] * math.Exp(-params[1]*rank)
	})
	return params, r2, nil
}

func minimizeSSE(entries []PrizeEntry, a0, b0 float64, model func(rank, a, b float64) float64) ([2]float64, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			a, b := x[0], x[1]
			sse := 0.0
			for _, e := range entries {
				resid := model(float64(e.Rank), a, b) - e.Payout
				sse += resid * resid
			}
			return sse
		},
	}

	method := &optimize.LBFGS{}
	settings := &optimize.Settings{FuncEvaluations: 5000, GradientThreshold: 1e-8}

	result, err := optimize.Minimize(problem, []float64{a0, b0}, settings, method)
	if err != nil {
		return [2]float64{}, dfserrors.Wrap(dfserrors.KindCurveFitError, "nonlinear least-squares fit did not converge", nil, err)
	}
	return [2]float64{result.X[0], result.X[1]}, nil
}

func rSquared(entries []PrizeEntry, predict func(rank float64) float64) float64 {
	mean := 0.0
	for _, e := range entries {
		mean += e.Payout
	}
	mean /= float64(len(entries))

	ssRes, ssTot := 0.0, 0.0
	for _, e := range entries {
		pred := predict(float64(e.Rank))
		ssRes += (e.Payout - pred) * (e.Payout - pred)
		ssTot += (e.Payout - mean) * (e.Payout - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// powerLawSeed estimates starting (a,b) via log-log linear regression:
// log(payout) = log(a) - b*log(rank).
func powerLawSeed(entries []PrizeEntry) (float64, float64) {
	var sumX, sumY, sumXY, sumXX float64
	n := 0.0
	for _, e := range entries {
		if e.Rank <= 0 || e.Payout <= 0 {
			continue
		}
		x := math.Log(float64(e.Rank))
		y := math.Log(e.Payout)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
		n++
	}
	if n < 2 {
		return firstPayout(entries), 1.0
	}
	slope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	intercept := (sumY - slope*sumX) / n
	return math.Exp(intercept), -slope
}

// exponentialSeed estimates starting (a,b) via log-linear regression:
// log(payout) = log(a) - b*rank.
func exponentialSeed(entries []PrizeEntry) (float64, float64) {
	var sumX, sumY, sumXY, sumXX float64
	n := 0.0
	for _, e := range entries {
		if e.Payout <= 0 {
			continue
		}
		x := float64(e.Rank)
		y := math.Log(e.Payout)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
		n++
	}
	if n < 2 {
		return firstPayout(entries), 0.01
	}
	slope := (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	intercept := (sumY - slope*sumX) / n
	return math.Exp(intercept), -slope
}

func firstPayout(entries []PrizeEntry) float64 {
	if len(entries) == 0 {
		return 1
	}
	return entries[0].Payout
}
