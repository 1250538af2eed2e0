package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceRe         = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON strips markdown code fences and trailing commas from a model
// response and returns the raw JSON bytes. Models frequently wrap JSON in
// fences even when told not to.
func ExtractJSON(text string) []byte {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	} else {
		text = strings.TrimSpace(text)
	}
	text = trailingCommaRe.ReplaceAllString(text, "$1")
	return []byte(text)
}

// DecodeRiskAssessment parses a risk-scoring response and validates its
// shape. A malformed response is a recoverable error for one region only.
func DecodeRiskAssessment(data []byte) (*RiskAssessment, error) {
	var r RiskAssessment
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("malformed risk assessment: %w", err)
	}
	if r.RiskScore < 0 {
		r.RiskScore = 0
	}
	if r.RiskScore > 100 {
		r.RiskScore = 100
	}
	return &r, nil
}

// DecodeThreatForecasts parses a predictive-warning response.
func DecodeThreatForecasts(data []byte) ([]ThreatForecast, error) {
	var list []ThreatForecast
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("malformed threat forecast list: %w", err)
	}
	return list, nil
}

// DecodeAlertMessage parses a bilingual alert response. Both language
// variants must be present.
func DecodeAlertMessage(data []byte) (*AlertMessage, error) {
	var m AlertMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("malformed alert message: %w", err)
	}
	if m.English == "" || m.Swahili == "" {
		return nil, fmt.Errorf("alert message missing a language variant")
	}
	return &m, nil
}
