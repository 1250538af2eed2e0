package models

import "time"

type Probability string

const (
	ProbabilityLow    Probability = "low"
	ProbabilityMedium Probability = "medium"
	ProbabilityHigh   Probability = "high"
)

// Prediction is one forward-looking threat for a region. The full set is
// replaced as a snapshot on each predictive cycle, never merged.
type Prediction struct {
	RegionID    string
	Threat      DisasterType
	Probability Probability
	TimeWindow  string // e.g. "within 48hrs"
	Action      string
	GeneratedAt time.Time
}
