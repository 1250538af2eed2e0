package models

import "time"

type DisasterType string

const (
	DisasterTypeFlood      DisasterType = "flood"
	DisasterTypeWildfire   DisasterType = "wildfire"
	DisasterTypeEarthquake DisasterType = "earthquake"
	DisasterTypeDrought    DisasterType = "drought"
	DisasterTypeLandslide  DisasterType = "landslide"
	DisasterTypeOther      DisasterType = "other"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Origin string

const (
	OriginAutoDetected  Origin = "auto-detected"
	OriginFieldReported Origin = "field-reported"
)

type DisasterStatus string

const (
	DisasterStatusActive   DisasterStatus = "active"
	DisasterStatusResolved DisasterStatus = "resolved"
)

type Disaster struct {
	ID             string
	Type           DisasterType
	Severity       Severity
	RegionID       string
	Latitude       float64
	Longitude      float64
	AffectedPeople int
	Description    string
	Origin         Origin
	Status         DisasterStatus
	ReportedAt     time.Time
	ResolvedAt     *time.Time // nil while active
}

func (d *Disaster) Coordinates() Coordinates {
	return Coordinates{
		Latitude:  d.Latitude,
		Longitude: d.Longitude,
	}
}
