package ai

// RiskAssessment is the structured output of a risk-scoring analysis.
type RiskAssessment struct {
	RiskScore    int    `json:"risk_score"`
	DisasterType string `json:"disaster_type"`
	Confidence   string `json:"confidence"`
	Reasoning    string `json:"reasoning"`
}

// ThreatForecast is one entry of a predictive-warning analysis. Region
// carries the region id echoed back from the prompt.
type ThreatForecast struct {
	Region            string `json:"region"`
	Threat            string `json:"threat"`
	Probability       string `json:"probability"`
	EstimatedTime     string `json:"estimated_time"`
	RecommendedAction string `json:"recommended_action"`
}

// AlertMessage is the bilingual community alert. Both variants come from
// one call so they frame the event identically.
type AlertMessage struct {
	English string `json:"english"`
	Swahili string `json:"swahili"`
}
