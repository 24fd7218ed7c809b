package result

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/rumbo/drivermatch/internal/domain/model"
)

// TierStat counts the assignments on one difficulty tier.
type TierStat struct {
	Tier            model.Tier `json:"tier"`
	Count           int        `json:"count"`
	MeanDriverScore float64    `json:"mean_driver_score"`
}

// ScoreStats describes a set of adjusted driver scores.
type ScoreStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Summary aggregates one matching run.
type Summary struct {
	Drivers    int `json:"drivers"`
	Routes     int `json:"routes"`
	Assigned   int `json:"assigned"`
	Unassigned int `json:"unassigned"`

	TotalWeight         float64 `json:"total_weight"`
	MeanWeight          float64 `json:"mean_weight"`
	MeanScoreDifference float64 `json:"mean_score_difference"`
	StdScoreDifference  float64 `json:"std_score_difference"`

	Bands            map[model.Band]int `json:"bands"`
	Tiers            []TierStat         `json:"tiers"`
	UnassignedScores ScoreStats         `json:"unassigned_scores"`
}

// BandShare returns the fraction of assignments in band b.
func (s *Summary) BandShare(b model.Band) float64 {
	if s.Assigned == 0 {
		return 0
	}
	return float64(s.Bands[b]) / float64(s.Assigned)
}

// Summarize computes run statistics. Standard deviations are population ones.
func Summarize(drivers []model.Driver, routes []model.Route, assignments []model.Assignment, unassigned []model.Driver) Summary {
	s := Summary{
		Drivers:    len(drivers),
		Routes:     len(routes),
		Assigned:   len(assignments),
		Unassigned: len(unassigned),
		Bands: map[model.Band]int{
			model.BandOverQualified:  0,
			model.BandWellMatched:    0,
			model.BandUnderQualified: 0,
		},
	}

	if n := len(assignments); n > 0 {
		weights := make([]float64, n)
		diffs := make([]float64, n)
		for k, a := range assignments {
			weights[k] = a.Weight
			diffs[k] = a.ScoreDifference
			s.Bands[a.Band]++
		}
		s.TotalWeight = floats.Sum(weights)
		s.MeanWeight = s.TotalWeight / float64(n)
		s.MeanScoreDifference, s.StdScoreDifference = stat.PopMeanStdDev(diffs, nil)
	}

	for _, tier := range model.Tiers {
		var scores []float64
		for _, a := range assignments {
			if a.Tier == tier {
				scores = append(scores, a.DriverScore)
			}
		}
		ts := TierStat{Tier: tier, Count: len(scores)}
		if len(scores) > 0 {
			ts.MeanDriverScore = stat.Mean(scores, nil)
		}
		s.Tiers = append(s.Tiers, ts)
	}

	if len(unassigned) > 0 {
		scores := make([]float64, len(unassigned))
		for k, d := range unassigned {
			scores[k] = d.ScoreAdjusted
		}
		s.UnassignedScores = ScoreStats{
			Count: len(scores),
			Mean:  stat.Mean(scores, nil),
			Min:   floats.Min(scores),
			Max:   floats.Max(scores),
		}
	}
	return s
}
