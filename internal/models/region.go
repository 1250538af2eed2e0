package models

import "time"

// Region is static reference data seeded once at startup. Only the risk
// fields change at runtime, and only through the risk scoring engine.
type Region struct {
	ID         string // stable slug, e.g. "tana-river"
	Name       string
	Latitude   float64
	Longitude  float64
	RiskScore  *int       // nil until first scored, then 0-100
	LastScored *time.Time // nil until first scored
}

func (r *Region) Coordinates() Coordinates {
	return Coordinates{
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
	}
}

// RefugeSite is a known evacuation point inside a region. Read-only input
// to alert text generation.
type RefugeSite struct {
	ID        int64
	Name      string
	RegionID  string
	Latitude  float64
	Longitude float64
	Capacity  int
}

// Contact is a registered alert recipient for a region.
type Contact struct {
	ID       int64
	Name     string
	Phone    string // E.164
	RegionID string
}
