package models

import (
	"encoding/json"
	"time"
)

type SourceKind string

const (
	SourceWeather     SourceKind = "weather"
	SourceFire        SourceKind = "fire"
	SourceSeismic     SourceKind = "seismic"
	SourceForecast    SourceKind = "forecast"
	SourceFieldReport SourceKind = "field-report"
)

// Observation is a normalized reading from one source for one region and
// time. Immutable once stored; the observations table is append-only.
type Observation struct {
	ID          int64
	Source      SourceKind
	RegionID    string // empty when the source reading could not be located
	Payload     json.RawMessage
	Fingerprint string // stable hash of the normalized payload
	// Duplicate is true when Fingerprint matches the most recent prior
	// observation from the same source+region. Kept for the audit trail;
	// downstream analysis skips duplicates.
	Duplicate   bool
	CollectedAt time.Time
}
