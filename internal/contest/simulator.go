// Package contest implements C7: simulating a portfolio of user lineups
// against a sampled opponent field across every scenario, resolving
// rank/payout/cash outcomes and aggregating ROI, cash rate and top-1%
// rate with confidence intervals (spec.md §4.7).
//
// Grounded on internal/simulator/contest.go's ContestSimulator in the
// teacher codebase (SimulateFullContest: combine lineups, score per
// player outcome, sort descending, assign rank/payout/ROI); this
// generalizes the single-draw simulation to the full scenario matrix
// produced by C2, uses the fitted curve from C5 instead of a TODO
// payout-structure stub, and adds deterministic lexicographic
// tie-breaking plus tail-metric aggregation from C3.
package contest

import (
	"context"
	"sort"

	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfserrors"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/dfstypes"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/payout"
	"github.com/zax-lab/nascar-dfs-optimizer-sub003/internal/tailmetrics"
)

// Config parameterizes one contest simulation run.
type Config struct {
	// TopPct defines "top-X%" for the Top1Pct statistic; defaults to 0.01
	// (top 1%) when zero, matching spec.md's naming.
	TopPct float64
}

// Simulate runs userLineups against fieldLineups over every scenario in
// scenarios, resolving each scenario's ranking with curve and contest,
// and aggregating per-lineup outcomes into a ContestResult.
func Simulate(ctx context.Context, scenarios *dfstypes.ScenarioMatrix, userLineups, fieldLineups []dfstypes.Lineup, curve dfstypes.PayoutCurve, c dfstypes.Contest, cfg Config) (*dfstypes.ContestResult, error) {
	if len(userLineups) == 0 {
		return nil, dfserrors.New(dfserrors.KindInputValidation, "at least one user lineup is required to simulate a contest", nil)
	}
	n := scenarios.N()
	if n == 0 {
		return nil, dfserrors.New(dfserrors.KindInfeasibleScenarioBudget, "scenario matrix has zero scenarios", nil)
	}

	all := make([]dfstypes.Lineup, 0, len(userLineups)+len(fieldLineups))
	all = append(all, userLineups...)
	all = append(all, fieldLineups...)

	scoresByLineup := make([][]float64, len(all))
	for i, l := range all {
		scoresByLineup[i] = scenarios.LineupScores(l.DriverIdx)
	}

	roiByUser := make([][]float64, len(userLineups))
	cashedByUser := make([][]bool, len(userLineups))
	rankByUser := make([][]int, len(userLineups))
	payoutByUser := make([][]float64, len(userLineups))

	topFraction := cfg.TopPct
	if topFraction <= 0 {
		topFraction = 0.01
	}
	topPct := max(1, int(float64(c.FieldSize)*topFraction))

	for s := 0; s < n; s++ {
		select {
		case <-ctx.Done():
			return &dfstypes.ContestResult{Cancelled: true}, dfserrors.Wrap(dfserrors.KindCancelled, "contest simulation cancelled", nil, ctx.Err())
		default:
		}

		order := rankScenario(all, scoresByLineup, s)
		for rank, idx := range order {
			if idx >= len(userLineups) {
				continue
			}
			p := payout.Predict(curve, rank+1)
			roiByUser[idx] = append(roiByUser[idx], roi(p, c.EntryFee))
			cashedByUser[idx] = append(cashedByUser[idx], p > 0)
			rankByUser[idx] = append(rankByUser[idx], rank+1)
			payoutByUser[idx] = append(payoutByUser[idx], p)
		}
	}

	result := &dfstypes.ContestResult{Entries: make([]dfstypes.EntryResult, len(userLineups))}

	portfolioROI := make([]float64, n)
	portfolioCashed := make([]float64, n)
	portfolioTop1 := make([]float64, n)

	for i, lineup := range userLineups {
		result.Entries[i] = dfstypes.EntryResult{
			LineupID: lineup.ID.String(),
			Rank:     meanInt(rankByUser[i]),
			Payout:   tailmetrics.Mean(payoutByUser[i]),
			Cashed:   meanBool(cashedByUser[i]) >= 0.5,
		}
		for s := 0; s < n && s < len(roiByUser[i]); s++ {
			portfolioROI[s] += roiByUser[i][s] / float64(len(userLineups))
			if cashedByUser[i][s] {
				portfolioCashed[s] += 1.0 / float64(len(userLineups))
			}
			if rankByUser[i][s] <= topPct {
				portfolioTop1[s] += 1.0 / float64(len(userLineups))
			}
		}
	}

	result.ROI = confidenceInterval(portfolioROI)
	result.CashPct = confidenceInterval(portfolioCashed)
	result.Top1Pct = confidenceInterval(portfolioTop1)
	return result, nil
}

// rankScenario returns lineup indices ordered best-to-worst for scenario
// s, ties broken lexicographically by lineup ID so the ordering is
// deterministic regardless of sort stability.
func rankScenario(all []dfstypes.Lineup, scoresByLineup [][]float64, s int) []int {
	order := make([]int, len(all))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		sa, sb := scoresByLineup[ia][s], scoresByLineup[ib][s]
		if sa != sb {
			return sa > sb
		}
		return all[ia].ID.String() < all[ib].ID.String()
	})
	return order
}

func roi(payout, entryFee float64) float64 {
	if entryFee <= 0 {
		return 0
	}
	return (payout - entryFee) / entryFee
}

func confidenceInterval(samples []float64) dfstypes.ConfidenceInterval {
	if len(samples) == 0 {
		return dfstypes.ConfidenceInterval{}
	}
	mean := tailmetrics.Mean(samples)
	p05, _, _ := tailmetrics.Quantile(samples, 0.05)
	p95, _, _ := tailmetrics.Quantile(samples, 0.95)
	return dfstypes.ConfidenceInterval{Mean: mean, P05: p05, P95: p95}
}

func meanInt(xs []int) int {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return sum / len(xs)
}

func meanBool(xs []bool) float64 {
	if len(xs) == 0 {
		return 0
	}
	count := 0
	for _, x := range xs {
		if x {
			count++
		}
	}
	return float64(count) / float64(len(xs))
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
