// Package analysis hosts the AI-assisted stages of the pipeline: per-region
// risk scoring, the predictive warning engine, and the national situation
// report.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kdms-ke/disaster-pipeline/internal/ai"
	"github.com/kdms-ke/disaster-pipeline/internal/cache"
	"github.com/kdms-ke/disaster-pipeline/internal/ingestion"
	"github.com/kdms-ke/disaster-pipeline/internal/models"
	"github.com/kdms-ke/disaster-pipeline/internal/observability"
	"github.com/kdms-ke/disaster-pipeline/internal/repository"
	"github.com/kdms-ke/disaster-pipeline/internal/worker"
)

// RiskEngine maintains the current 0-100 risk score per region. A region is
// rescored only when it has fresh non-duplicate observations since its last
// scoring; everything else keeps its prior score.
type RiskEngine struct {
	client       ai.Client
	cache        *cache.Cache
	regions      repository.RegionStore
	observations repository.ObservationStore
	poolSize     int
	aiTimeout    time.Duration
	clock        clockwork.Clock
	metrics      *observability.Metrics
}

func NewRiskEngine(
	client ai.Client,
	c *cache.Cache,
	regions repository.RegionStore,
	observations repository.ObservationStore,
	poolSize int,
	aiTimeout time.Duration,
	clock clockwork.Clock,
	metrics *observability.Metrics,
) *RiskEngine {
	return &RiskEngine{
		client:       client,
		cache:        c,
		regions:      regions,
		observations: observations,
		poolSize:     poolSize,
		aiTimeout:    aiTimeout,
		clock:        clock,
		metrics:      metrics,
	}
}

// ScoreAll rescores every region with fresh observations, fanning the work
// out across the bounded pool. Per-region failures are logged and counted,
// never fatal to the cycle.
func (e *RiskEngine) ScoreAll(ctx context.Context) {
	regions, err := e.regions.ListRegions(ctx)
	if err != nil {
		slog.Error("risk scoring aborted, cannot list regions", "error", err)
		return
	}

	pool := worker.NewPool(e.poolSize, len(regions)+1)
	pool.Start(ctx)
	for i := range regions {
		region := regions[i]
		pool.Submit(func(ctx context.Context) error {
			return e.scoreRegion(ctx, &region)
		})
	}
	pool.Stop()

	if n := pool.Failures(); n > 0 {
		slog.Warn("risk scoring finished with failures", "regions_failed", n)
	}
}

func (e *RiskEngine) scoreRegion(ctx context.Context, region *models.Region) error {
	obs, err := e.observations.ListFreshObservations(ctx, region.ID, region.LastScored)
	if err != nil {
		return fmt.Errorf("error loading observations for %s: %w", region.ID, err)
	}
	if len(obs) == 0 {
		// Nothing new since the last scoring; the score must not move.
		return nil
	}

	fps := make([]string, len(obs))
	for i, o := range obs {
		fps[i] = o.Fingerprint
	}
	key := models.CacheKey{
		Subject:     "region:" + region.ID,
		Fingerprint: ingestion.CombineFingerprints(fps),
		Kind:        models.AnalysisKindRisk,
	}

	value, err := e.cache.GetOrCompute(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		cctx, cancel := context.WithTimeout(ctx, e.aiTimeout)
		defer cancel()

		text, err := e.client.Generate(cctx, ai.RiskPrompt(region, obs))
		if err != nil {
			e.metrics.AICalls.WithLabelValues(string(models.AnalysisKindRisk), "error").Inc()
			return nil, err
		}
		e.metrics.AICalls.WithLabelValues(string(models.AnalysisKindRisk), "success").Inc()
		return json.RawMessage(ai.ExtractJSON(text)), nil
	})
	if err != nil {
		slog.Warn("risk analysis unavailable, prior score retained", "region", region.ID, "error", err)
		return err
	}

	assessment, err := ai.DecodeRiskAssessment(value)
	if err != nil {
		// Soft failure for this region only: keep the prior score.
		e.metrics.ParseFailures.WithLabelValues(string(models.AnalysisKindRisk)).Inc()
		slog.Warn("risk response did not parse, prior score retained", "region", region.ID, "error", err)
		return err
	}

	if err := e.regions.UpdateRegionRisk(ctx, region.ID, assessment.RiskScore, e.clock.Now()); err != nil {
		return fmt.Errorf("error updating risk for %s: %w", region.ID, err)
	}

	slog.Debug("region scored", "region", region.ID, "score", assessment.RiskScore, "hint", assessment.DisasterType)
	return nil
}
