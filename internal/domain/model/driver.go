// Package model contains domain models passed between layers.
package model

// RawDriver is a driver as delivered by the upstream scoring pipeline.
// Sub-scores are expected in [0,100] and DrivenKM is the cumulative distance.
type RawDriver struct {
	ID         string  `json:"driver_id"`
	Safety     float64 `json:"safety_score"`
	Efficiency float64 `json:"efficiency_score"`
	Compliance float64 `json:"compliance_score"`
	DrivenKM   float64 `json:"driven_km"`
}

// Driver is a RawDriver enriched by the normalizer.
type Driver struct {
	RawDriver

	// ScoreFinal is the weighted combination of the three sub-scores.
	ScoreFinal float64 `json:"driver_score_final"`
	// KMBalance is fleet mean distance minus this driver's distance.
	KMBalance float64 `json:"km_balance"`
	// KMBalanceScaled is KMBalance z-scored onto [-10,10].
	KMBalanceScaled float64 `json:"km_balance_scaled"`
	// ScoreAdjusted is ScoreFinal shifted by the balancing term, in [0,100].
	ScoreAdjusted float64 `json:"driver_score_adjusted"`
}
