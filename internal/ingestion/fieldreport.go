package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
	"github.com/kdms-ke/disaster-pipeline/internal/observability"
	"github.com/kdms-ke/disaster-pipeline/internal/repository"
)

// FieldReport is a manual disaster report from the ground. It bypasses the
// collector cycle and creates a disaster directly.
type FieldReport struct {
	Type           models.DisasterType
	Severity       models.Severity
	RegionID       string
	Latitude       float64
	Longitude      float64
	AffectedPeople int
	Description    string
	Reporter       string
}

// FieldReporter turns field reports into disasters plus a field-report
// observation for the audit trail.
type FieldReporter struct {
	disasters    repository.DisasterStore
	observations repository.ObservationStore
	regions      repository.RegionStore
	clock        clockwork.Clock
	metrics      *observability.Metrics
}

func NewFieldReporter(
	disasters repository.DisasterStore,
	observations repository.ObservationStore,
	regions repository.RegionStore,
	clock clockwork.Clock,
	metrics *observability.Metrics,
) *FieldReporter {
	return &FieldReporter{
		disasters:    disasters,
		observations: observations,
		regions:      regions,
		clock:        clock,
		metrics:      metrics,
	}
}

func (f *FieldReporter) Submit(ctx context.Context, report FieldReport) (*models.Disaster, error) {
	region, err := f.regions.GetRegion(ctx, report.RegionID)
	if err != nil {
		return nil, fmt.Errorf("unknown region %q: %w", report.RegionID, err)
	}

	lat, lng := report.Latitude, report.Longitude
	if lat == 0 && lng == 0 {
		lat, lng = region.Latitude, region.Longitude
	}
	severity := report.Severity
	if severity == "" {
		severity = models.SeverityMedium
	}

	now := f.clock.Now()
	d := &models.Disaster{
		ID:             uuid.NewString(),
		Type:           report.Type,
		Severity:       severity,
		RegionID:       region.ID,
		Latitude:       lat,
		Longitude:      lng,
		AffectedPeople: report.AffectedPeople,
		Description:    report.Description,
		Origin:         models.OriginFieldReported,
		Status:         models.DisasterStatusActive,
		ReportedAt:     now,
	}
	if err := f.disasters.AddDisaster(ctx, d); err != nil {
		return nil, err
	}
	f.metrics.DisastersCreated.WithLabelValues(string(d.Type), string(models.OriginFieldReported)).Inc()

	payload := map[string]any{
		"disaster_id":     d.ID,
		"type":            d.Type,
		"severity":        d.Severity,
		"affected_people": d.AffectedPeople,
		"description":     d.Description,
		"reporter":        report.Reporter,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return d, nil // the disaster exists; the audit observation is best-effort
	}
	fp, err := Fingerprint(payload)
	if err != nil {
		return d, nil
	}
	obs := &models.Observation{
		Source:      models.SourceFieldReport,
		RegionID:    region.ID,
		Payload:     raw,
		Fingerprint: fp,
		CollectedAt: now,
	}
	if err := f.observations.AddObservation(ctx, obs); err == nil {
		f.metrics.ObservationsStored.WithLabelValues(string(models.SourceFieldReport)).Inc()
	}

	return d, nil
}
