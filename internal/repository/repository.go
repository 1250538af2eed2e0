package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

var (
	// ErrNotFound is returned when a single-record lookup matches nothing.
	ErrNotFound = errors.New("repository: not found")
	// ErrWorkerUnavailable is returned when assigning a worker that is not
	// currently available.
	ErrWorkerUnavailable = errors.New("repository: worker not available")
	// ErrAlreadyResolved is returned when resolving a disaster twice; the
	// active to resolved transition is one-way.
	ErrAlreadyResolved = errors.New("repository: disaster already resolved")
)

type RegionStore interface {
	ListRegions(ctx context.Context) ([]models.Region, error)
	GetRegion(ctx context.Context, id string) (*models.Region, error)
	// UpdateRegionRisk is the single atomic write mutating a region.
	UpdateRegionRisk(ctx context.Context, id string, score int, scoredAt time.Time) error
	CountRegionsAtRisk(ctx context.Context, minScore int) (int, error)
	ListRefugeSites(ctx context.Context, regionID string) ([]models.RefugeSite, error)
	ListContacts(ctx context.Context, regionID string) ([]models.Contact, error)
	AddContact(ctx context.Context, c *models.Contact) error
}

type ObservationStore interface {
	// AddObservation appends an observation and fills in its ID.
	AddObservation(ctx context.Context, o *models.Observation) error
	// LatestFingerprint returns the fingerprint of the most recent
	// observation for source+region, or "" when none exists.
	LatestFingerprint(ctx context.Context, source models.SourceKind, regionID string) (string, error)
	// ListFreshObservations returns non-duplicate, non-forecast observations
	// for a region collected after since (all of them when since is nil).
	ListFreshObservations(ctx context.Context, regionID string, since *time.Time) ([]models.Observation, error)
	// LatestForecasts returns the most recent forecast observation per region.
	LatestForecasts(ctx context.Context) ([]models.Observation, error)
}

type DisasterStore interface {
	AddDisaster(ctx context.Context, d *models.Disaster) error
	GetDisaster(ctx context.Context, id string) (*models.Disaster, error)
	// ListDisasters filters by status when status is non-empty.
	ListDisasters(ctx context.Context, status models.DisasterStatus) ([]models.Disaster, error)
	HasActiveDisaster(ctx context.Context, regionID string, t models.DisasterType) (bool, error)
	ResolveDisaster(ctx context.Context, id string, at time.Time) error
}

type AlertStore interface {
	AddAlert(ctx context.Context, a *models.Alert) error
	// GetAlertByTier returns the most recent alert for disaster+tier, or
	// nil when no alert has been recorded.
	GetAlertByTier(ctx context.Context, disasterID string, tier int) (*models.Alert, error)
	ListAlerts(ctx context.Context) ([]models.Alert, error)
}

type PredictionStore interface {
	// ReplacePredictions swaps the whole snapshot in one transaction.
	// Readers never observe a mix of old and new predictions.
	ReplacePredictions(ctx context.Context, preds []models.Prediction) error
	ListPredictions(ctx context.Context) ([]models.Prediction, error)
}

type WorkerStore interface {
	ListWorkers(ctx context.Context) ([]models.Worker, error)
	ListAvailableWorkers(ctx context.Context) ([]models.Worker, error)
	// AssignWorker marks an available worker deployed on a disaster.
	// Returns ErrWorkerUnavailable when the worker is not available.
	AssignWorker(ctx context.Context, workerID int64, disasterID string) error
	CountWorkersByStatus(ctx context.Context, status models.WorkerStatus) (int, error)
}

type AnalysisCacheStore interface {
	// GetLiveCacheEntry returns the latest unexpired entry for the key, or
	// nil when none is live. Superseded entries stay in the table.
	GetLiveCacheEntry(ctx context.Context, key models.CacheKey, now time.Time) (*models.AnalysisCacheEntry, error)
	AddCacheEntry(ctx context.Context, e *models.AnalysisCacheEntry) error
}
