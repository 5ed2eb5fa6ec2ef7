package dfstypes

import "github.com/google/uuid"

// Lineup is an unordered set of exactly RosterSize distinct drivers.
type Lineup struct {
	ID          uuid.UUID `json:"id"`
	DriverIDs   []string  `json:"driver_ids"`
	DriverIdx   []int     `json:"-"` // indices into the owning Slate.Drivers, cached for hot loops
	TotalSalary int32     `json:"total_salary"`
	MeanPoints  float64   `json:"mean_points"`
}

// HammingDistance counts drivers in l that are absent from other. For two
// lineups of equal size this is the number of drivers swapped between
// them, i.e. half the size of their symmetric difference.
func (l Lineup) HammingDistance(other Lineup) int {
	set := make(map[string]struct{}, len(other.DriverIDs))
	for _, id := range other.DriverIDs {
		set[id] = struct{}{}
	}
	shared := 0
	for _, id := range l.DriverIDs {
		if _, ok := set[id]; ok {
			shared++
		}
	}
	// Two lineups of equal size roster_size: distance = roster_size - shared.
	return len(l.DriverIDs) - shared
}

// Portfolio is an ordered collection of Lineups, optionally regime-tagged.
type Portfolio struct {
	ID        uuid.UUID          `json:"id"`
	Lineups   []Lineup           `json:"lineups"`
	RegimeTag map[int]string     `json:"regime_tag,omitempty"` // lineup index -> regime, when regime-aware
	Cancelled bool               `json:"cancelled"`
	Exposure  *ExposureReport    `json:"exposure,omitempty"`
	Shortfall []RegimeShortfall  `json:"shortfall,omitempty"`
}

// RegimeShortfall records that a regime ran out of feasible novel lineups.
type RegimeShortfall struct {
	Regime    string
	Requested int
	Delivered int
}

// ExposureReport summarizes player/team exposure across a portfolio.
type ExposureReport struct {
	PlayerExposure map[string]float64 `json:"player_exposure"` // driver_id -> fraction of lineups
	TeamExposure   map[string]float64 `json:"team_exposure"`
	DiversityScore float64            `json:"diversity_score"` // mean pairwise Hamming distance
}
