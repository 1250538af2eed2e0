package ingestion

import (
	"context"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

type Scope string

const (
	// ScopePerRegion adapters are invoked once per configured region.
	ScopePerRegion Scope = "per-region"
	// ScopeGlobal adapters are invoked once per cycle and cover the whole
	// monitored area.
	ScopeGlobal Scope = "global"
)

// Reading is one normalized upstream reading before persistence. Payload is
// the source-specific normalized value; it is marshalled to JSON for the
// observation record and fingerprinted for duplicate detection.
type Reading struct {
	Source    models.SourceKind
	RegionID  string // filled by per-region adapters; resolved from coordinates otherwise
	Latitude  float64
	Longitude float64
	Located   bool // true when Latitude/Longitude carry a real position
	Payload   any
}

// SourceAdapter normalizes one upstream feed. Adapters are independent of
// each other; a failure in one never aborts the cycle for the rest.
type SourceAdapter interface {
	Kind() models.SourceKind
	Scope() Scope
	// Fetch returns normalized readings. region is nil for global adapters.
	Fetch(ctx context.Context, region *models.Region) ([]Reading, error)
}
