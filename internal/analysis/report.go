package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kdms-ke/disaster-pipeline/internal/ai"
	"github.com/kdms-ke/disaster-pipeline/internal/models"
	"github.com/kdms-ke/disaster-pipeline/internal/observability"
	"github.com/kdms-ke/disaster-pipeline/internal/repository"
)

const highRiskThreshold = 70

// Reporter assembles the national situation report on demand.
type Reporter struct {
	client    ai.Client
	disasters repository.DisasterStore
	regions   repository.RegionStore
	workers   repository.WorkerStore
	aiTimeout time.Duration
	clock     clockwork.Clock
	metrics   *observability.Metrics
}

func NewReporter(
	client ai.Client,
	disasters repository.DisasterStore,
	regions repository.RegionStore,
	workers repository.WorkerStore,
	aiTimeout time.Duration,
	clock clockwork.Clock,
	metrics *observability.Metrics,
) *Reporter {
	return &Reporter{
		client:    client,
		disasters: disasters,
		regions:   regions,
		workers:   workers,
		aiTimeout: aiTimeout,
		clock:     clock,
		metrics:   metrics,
	}
}

// NationalReport returns a markdown situation report over current national
// state. On-demand and stateless; an AI failure surfaces to the caller.
func (r *Reporter) NationalReport(ctx context.Context) (string, error) {
	active, err := r.disasters.ListDisasters(ctx, models.DisasterStatusActive)
	if err != nil {
		return "", fmt.Errorf("error listing active disasters: %w", err)
	}

	totalAffected := 0
	for _, d := range active {
		totalAffected += d.AffectedPeople
	}

	highRisk, err := r.regions.CountRegionsAtRisk(ctx, highRiskThreshold)
	if err != nil {
		return "", fmt.Errorf("error counting high-risk regions: %w", err)
	}
	deployed, err := r.workers.CountWorkersByStatus(ctx, models.WorkerDeployed)
	if err != nil {
		return "", fmt.Errorf("error counting deployed workers: %w", err)
	}
	available, err := r.workers.CountWorkersByStatus(ctx, models.WorkerAvailable)
	if err != nil {
		return "", fmt.Errorf("error counting available workers: %w", err)
	}

	stats := ai.ReportStats{
		ActiveDisasters:  len(active),
		TotalAffected:    totalAffected,
		HighRiskRegions:  highRisk,
		DeployedWorkers:  deployed,
		AvailableWorkers: available,
	}

	cctx, cancel := context.WithTimeout(ctx, r.aiTimeout)
	defer cancel()

	report, err := r.client.Generate(cctx, ai.ReportPrompt(stats, active, r.clock.Now()))
	if err != nil {
		r.metrics.AICalls.WithLabelValues(string(models.AnalysisKindReport), "error").Inc()
		return "", fmt.Errorf("error generating situation report: %w", err)
	}
	r.metrics.AICalls.WithLabelValues(string(models.AnalysisKindReport), "success").Inc()

	return report, nil
}
