package models

import (
	"encoding/json"
	"time"
)

type AnalysisKind string

const (
	AnalysisKindRisk       AnalysisKind = "risk"
	AnalysisKindPrediction AnalysisKind = "prediction"
	AnalysisKindAlert      AnalysisKind = "alert"
	AnalysisKindRationale  AnalysisKind = "rationale"
	AnalysisKindReport     AnalysisKind = "report"
)

// CacheKey identifies one analysis result: what was analysed, the
// fingerprint of the inputs, and which kind of analysis ran. A changed
// fingerprint produces a new key, so a fresh entry never overwrites the
// one it supersedes.
type CacheKey struct {
	Subject     string
	Fingerprint string
	Kind        AnalysisKind
}

func (k CacheKey) String() string {
	return k.Subject + "|" + k.Fingerprint + "|" + string(k.Kind)
}

// AnalysisCacheEntry is one stored AI analysis result. Rows are append-only;
// superseded and expired entries are retained for audit.
type AnalysisCacheEntry struct {
	ID          int64
	Key         CacheKey
	Value       json.RawMessage
	GeneratedAt time.Time
	ExpiresAt   *time.Time // nil means no expiry
}

// Live reports whether the entry is still usable at the given instant.
func (e *AnalysisCacheEntry) Live(now time.Time) bool {
	return e.ExpiresAt == nil || now.Before(*e.ExpiresAt)
}
