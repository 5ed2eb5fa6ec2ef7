// Package tailmetrics computes C3: CVaR, Top-X% and conditional upside
// over a scenario-indexed lineup-score distribution. Grounded on
// internal/simulator/monte_carlo.go's percentile/statistics block in the
// teacher codebase, replacing its bubble sort with sort.Float64s and
// adding the Rockafellar-Uryasev CVaR formulation plus deterministic
// tie-breaking by scenario index (spec.md §4.3).
package tailmetrics

import (
	"math"
	"sort"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfserrors"
)

// indexedScore pairs a score with its originating scenario index so ties
// break deterministically (ascending scenario index) rather than by
// whatever order sort.Sort happens to leave equal elements in.
type indexedScore struct {
	score float64
	index int
}

func sortedIndexed(scores []float64) []indexedScore {
	out := make([]indexedScore, len(scores))
	for i, s := range scores {
		out[i] = indexedScore{score: s, index: i}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].score != out[b].score {
			return out[a].score < out[b].score
		}
		return out[a].index < out[b].index
	})
	return out
}

// Quantile returns the empirical q-quantile (q in [0,1]) of scores, with
// ties broken by ascending scenario index so the chosen index is
// deterministic.
func Quantile(scores []float64, q float64) (value float64, atIndex int, err error) {
	if len(scores) == 0 {
		return 0, 0, dfserrors.New(dfserrors.KindInputValidation, "quantile of empty scenario set", nil)
	}
	if q < 0 || q > 1 {
		return 0, 0, dfserrors.New(dfserrors.KindInputValidation, "quantile q must be in [0,1]", nil)
	}
	sorted := sortedIndexed(scores)
	pos := int(math.Ceil(q*float64(len(sorted)))) - 1
	if pos < 0 {
		pos = 0
	}
	if pos >= len(sorted) {
		pos = len(sorted) - 1
	}
	return sorted[pos].score, sorted[pos].index, nil
}

// VaR is the (1-alpha)-quantile of L: the threshold the upper alpha-tail
// begins at.
func VaR(scores []float64, alpha float64) (float64, error) {
	if alpha <= 0 || alpha >= 1 {
		return 0, dfserrors.New(dfserrors.KindInputValidation, "alpha must be in (0,1)", nil)
	}
	v, _, err := Quantile(scores, 1-alpha)
	return v, err
}

// CVaRUpper is the Rockafellar-Uryasev upper-tail CVaR at level alpha:
// the mean of the upper alpha-quantile tail of scores (maximized by the
// tail-objective optimizer in C8).
func CVaRUpper(scores []float64, alpha float64) (float64, error) {
	if alpha <= 0 || alpha >= 1 {
		return 0, dfserrors.New(dfserrors.KindInputValidation, "alpha must be in (0,1)", nil)
	}
	sorted := sortedIndexed(scores)
	n := len(sorted)
	tailCount := int(math.Ceil(alpha * float64(n)))
	if tailCount < 1 {
		tailCount = 1
	}
	sum := 0.0
	for i := n - tailCount; i < n; i++ {
		sum += sorted[i].score
	}
	return sum / float64(tailCount), nil
}

// CVaRUpperClipped bounds each scenario's contribution at threshold T
// before averaging, so a single extreme scenario cannot dominate the
// estimate (spec.md §4.8's "sign-flipped variant ... clipped to T").
func CVaRUpperClipped(scores []float64, alpha, T float64) (float64, error) {
	clipped := make([]float64, len(scores))
	for i, s := range scores {
		if s > T {
			clipped[i] = T
		} else {
			clipped[i] = s
		}
	}
	return CVaRUpper(clipped, alpha)
}

// TopXProbability returns P(L >= threshold) over the scenario set.
func TopXProbability(scores []float64, threshold float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	count := 0
	for _, s := range scores {
		if s >= threshold {
			count++
		}
	}
	return float64(count) / float64(len(scores))
}

// ConditionalUpside is E[L | L >= q_{1-alpha}(L)], the expected score
// conditioned on landing in the upper alpha-tail.
func ConditionalUpside(scores []float64, alpha float64) (float64, error) {
	return CVaRUpper(scores, alpha)
}

// Mean is the plain expectation over scenarios (the alpha->1 limit of
// CVaRUpper, per spec.md §8's boundary test).
func Mean(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
