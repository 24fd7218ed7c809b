package model

// Pair is one solved (driver, route) match expressed as matrix indices.
type Pair struct {
	DriverIndex int `json:"driver_index"`
	RouteIndex  int `json:"route_index"`
}

// Band classifies how a driver's score compares with the route's.
type Band string

// Qualification bands.
const (
	BandOverQualified  Band = "over-qualified"
	BandWellMatched    Band = "well-matched"
	BandUnderQualified Band = "under-qualified"
)

// BandThreshold is the score difference separating the bands.
const BandThreshold = 10.0

// BandFor classifies a signed score difference (driver minus route).
func BandFor(diff float64) Band {
	switch {
	case diff > BandThreshold:
		return BandOverQualified
	case diff < -BandThreshold:
		return BandUnderQualified
	default:
		return BandWellMatched
	}
}

// Assignment is one matched pair joined back to its driver and route.
type Assignment struct {
	DriverID         string  `json:"driver_id"`
	RouteID          string  `json:"route_id"`
	Weight           float64 `json:"match_score"`
	DriverScore      float64 `json:"driver_score"`
	RouteScore       float64 `json:"route_score"`
	ScoreDifference  float64 `json:"score_difference"`
	Band             Band    `json:"fit"`
	Tier             Tier    `json:"route_difficulty"`
	KMBalance        float64 `json:"km_balance"`
	DriverSafety     float64 `json:"driver_safety"`
	DriverEfficiency float64 `json:"driver_efficiency"`
	RouteDistanceKM  float64 `json:"route_distance_km"`
	RouteDanger      float64 `json:"route_peligrosity"`
}
