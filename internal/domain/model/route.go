package model

// RawRoute is a route as delivered by the upstream scoring pipeline.
type RawRoute struct {
	ID         string  `json:"route_id"`
	Efficiency float64 `json:"efficiency_score"`
	Complexity float64 `json:"operational_complexity_score"`
	Danger     float64 `json:"peligrosity_score"`
	DistanceKM float64 `json:"total_distance_km"`
}

// Route is a RawRoute enriched by the normalizer.
type Route struct {
	RawRoute

	ScoreFinal float64 `json:"route_score_final"`
	Tier       Tier    `json:"difficulty_tier"`
}

// Tier is the difficulty bucket of a route.
type Tier string

// Difficulty tiers in increasing order.
const (
	TierEasy   Tier = "Easy"
	TierMedium Tier = "Medium"
	TierHard   Tier = "Hard"
	TierExpert Tier = "Expert"
)

// Tiers lists every tier from easiest to hardest.
var Tiers = []Tier{TierEasy, TierMedium, TierHard, TierExpert} //nolint:gochecknoglobals // fixed ordering

// TierFor bins a route score into (0,40], (40,60], (60,80], (80,100].
// A score of exactly 0 is Easy.
func TierFor(score float64) Tier {
	switch {
	case score <= 40:
		return TierEasy
	case score <= 60:
		return TierMedium
	case score <= 80:
		return TierHard
	default:
		return TierExpert
	}
}

// Rank returns the position of t in Tiers, or -1 for an unknown tier.
func (t Tier) Rank() int {
	for i, v := range Tiers {
		if v == t {
			return i
		}
	}
	return -1
}
