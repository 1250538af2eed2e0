package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kdms-ke/disaster-pipeline/internal/ai"
	"github.com/kdms-ke/disaster-pipeline/internal/cache"
	"github.com/kdms-ke/disaster-pipeline/internal/ingestion"
	"github.com/kdms-ke/disaster-pipeline/internal/models"
	"github.com/kdms-ke/disaster-pipeline/internal/observability"
	"github.com/kdms-ke/disaster-pipeline/internal/repository"
)

// PredictEngine produces the 72-hour threat snapshot: one batch AI call per
// cycle over the latest forecast of every region, replaced atomically. When
// the batch fails the previous snapshot stays in place.
type PredictEngine struct {
	client       ai.Client
	cache        *cache.Cache
	observations repository.ObservationStore
	predictions  repository.PredictionStore
	aiTimeout    time.Duration
	clock        clockwork.Clock
	metrics      *observability.Metrics
}

func NewPredictEngine(
	client ai.Client,
	c *cache.Cache,
	observations repository.ObservationStore,
	predictions repository.PredictionStore,
	aiTimeout time.Duration,
	clock clockwork.Clock,
	metrics *observability.Metrics,
) *PredictEngine {
	return &PredictEngine{
		client:       client,
		cache:        c,
		observations: observations,
		predictions:  predictions,
		aiTimeout:    aiTimeout,
		clock:        clock,
		metrics:      metrics,
	}
}

// Refresh rebuilds the prediction snapshot. Fail-safe, not fail-empty: any
// error leaves the prior snapshot untouched.
func (e *PredictEngine) Refresh(ctx context.Context) error {
	forecasts, err := e.observations.LatestForecasts(ctx)
	if err != nil {
		return fmt.Errorf("error loading forecasts: %w", err)
	}
	if len(forecasts) == 0 {
		slog.Debug("no forecasts collected yet, prediction snapshot unchanged")
		return nil
	}

	fps := make([]string, len(forecasts))
	knownRegions := make(map[string]bool, len(forecasts))
	for i, o := range forecasts {
		fps[i] = o.Fingerprint
		knownRegions[o.RegionID] = true
	}
	key := models.CacheKey{
		Subject:     "global-forecast",
		Fingerprint: ingestion.CombineFingerprints(fps),
		Kind:        models.AnalysisKindPrediction,
	}

	value, err := e.cache.GetOrCompute(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		cctx, cancel := context.WithTimeout(ctx, e.aiTimeout)
		defer cancel()

		text, err := e.client.Generate(cctx, ai.PredictionPrompt(forecasts))
		if err != nil {
			e.metrics.AICalls.WithLabelValues(string(models.AnalysisKindPrediction), "error").Inc()
			return nil, err
		}
		e.metrics.AICalls.WithLabelValues(string(models.AnalysisKindPrediction), "success").Inc()
		return json.RawMessage(ai.ExtractJSON(text)), nil
	})
	if err != nil {
		slog.Warn("prediction batch failed, prior snapshot retained", "error", err)
		return err
	}

	list, err := ai.DecodeThreatForecasts(value)
	if err != nil {
		e.metrics.ParseFailures.WithLabelValues(string(models.AnalysisKindPrediction)).Inc()
		slog.Warn("prediction response did not parse, prior snapshot retained", "error", err)
		return err
	}

	now := e.clock.Now()
	preds := make([]models.Prediction, 0, len(list))
	for _, f := range list {
		if !knownRegions[f.Region] {
			slog.Debug("prediction for unknown region dropped", "region", f.Region)
			continue
		}
		preds = append(preds, models.Prediction{
			RegionID:    f.Region,
			Threat:      parseDisasterType(f.Threat),
			Probability: parseProbability(f.Probability),
			TimeWindow:  f.EstimatedTime,
			Action:      f.RecommendedAction,
			GeneratedAt: now,
		})
	}

	if err := e.predictions.ReplacePredictions(ctx, preds); err != nil {
		return fmt.Errorf("error replacing prediction snapshot: %w", err)
	}

	slog.Info("prediction snapshot replaced", "predictions", len(preds))
	return nil
}

func parseDisasterType(s string) models.DisasterType {
	switch strings.ToLower(s) {
	case "flood":
		return models.DisasterTypeFlood
	case "wildfire":
		return models.DisasterTypeWildfire
	case "earthquake":
		return models.DisasterTypeEarthquake
	case "drought":
		return models.DisasterTypeDrought
	case "landslide":
		return models.DisasterTypeLandslide
	default:
		return models.DisasterTypeOther
	}
}

func parseProbability(s string) models.Probability {
	switch strings.ToLower(s) {
	case "high":
		return models.ProbabilityHigh
	case "medium":
		return models.ProbabilityMedium
	default:
		return models.ProbabilityLow
	}
}
