package dfstypes

// Scenario is one coherent race outcome produced by C2. Index s is stable
// across the run: every downstream metric, tie-break and regime partition
// references scenarios by this index.
type Scenario struct {
	Index       int
	Regime      string    // skeleton-narrative label, e.g. "dominator", "chaos", "fuel-mileage"
	Points      []float64 // per-driver points, aligned to Slate.Drivers
	LapsLed     []float64 // per-driver laps led
	DominatorF  []bool    // per-driver dominator flag
	FinishRank  []int     // per-driver finish rank (1-based), optional
}

// ScenarioMatrix is the (N scenarios x D drivers) row-major points tensor
// plus per-scenario metadata. Row-major storage is preferred here because
// every downstream consumer (tail metrics, optimizer objective, contest
// simulator) reduces across scenarios for a fixed lineup, i.e. it walks one
// row at a time summing a driver subset.
type ScenarioMatrix struct {
	Scenarios []Scenario
	NumDrivers int
	RaceLength float64
	MaxDominators int
}

// N returns the number of scenarios.
func (m ScenarioMatrix) N() int { return len(m.Scenarios) }

// LineupScores computes L[s] = sum_d x_d * points[s,d] for the given driver
// indices, across all scenarios. The returned slice is indexed by scenario
// index (same order as m.Scenarios).
func (m ScenarioMatrix) LineupScores(driverIdx []int) []float64 {
	out := make([]float64, len(m.Scenarios))
	for s, scen := range m.Scenarios {
		total := 0.0
		for _, d := range driverIdx {
			total += scen.Points[d]
		}
		out[s] = total
	}
	return out
}
