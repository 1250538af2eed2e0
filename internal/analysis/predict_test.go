package analysis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdms-ke/disaster-pipeline/internal/cache"
	"github.com/kdms-ke/disaster-pipeline/internal/ingestion"
	"github.com/kdms-ke/disaster-pipeline/internal/models"
	"github.com/kdms-ke/disaster-pipeline/internal/observability"
	"github.com/kdms-ke/disaster-pipeline/internal/repository"
)

func addForecastObservation(t *testing.T, db *repository.SQLiteDB, regionID string, precipSum []float64, at time.Time) {
	t.Helper()
	payload := map[string]any{"precipitation_sum": precipSum}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	fp, err := ingestion.Fingerprint(payload)
	require.NoError(t, err)
	require.NoError(t, db.AddObservation(context.Background(), &models.Observation{
		Source:      models.SourceForecast,
		RegionID:    regionID,
		Payload:     raw,
		Fingerprint: fp,
		CollectedAt: at,
	}))
}

func TestRefresh_BuildsSnapshotAndDropsUnknownRegions(t *testing.T) {
	db, clock := newAnalysisDB(t)
	ai := newScriptedAI(`[
		{"region": "tana-river", "threat": "flood", "probability": "high", "estimated_time": "within 48hrs", "recommended_action": "Pre-position boats at Hola"},
		{"region": "atlantis", "threat": "flood", "probability": "high", "estimated_time": "within 24hrs", "recommended_action": "n/a"}
	]`)
	metrics := observability.NewMetricsForTesting()
	engine := NewPredictEngine(ai, cache.New(db, time.Hour, clock, metrics), db, db, time.Second, clock, metrics)

	addForecastObservation(t, db, "tana-river", []float64{40, 55, 70}, clock.Now())
	require.NoError(t, engine.Refresh(context.Background()))

	preds, err := db.ListPredictions(context.Background())
	require.NoError(t, err)
	require.Len(t, preds, 1, "forecast for an unknown region must be dropped")
	p := preds[0]
	assert.Equal(t, "tana-river", p.RegionID)
	assert.Equal(t, models.DisasterTypeFlood, p.Threat)
	assert.Equal(t, models.ProbabilityHigh, p.Probability)
	assert.Equal(t, "within 48hrs", p.TimeWindow)
}

func TestRefresh_ReplacesWholeSnapshot(t *testing.T) {
	db, clock := newAnalysisDB(t)
	ai := newScriptedAI(`[{"region": "tana-river", "threat": "flood", "probability": "high", "estimated_time": "within 48hrs", "recommended_action": "evacuate low ground"}]`)
	metrics := observability.NewMetricsForTesting()
	engine := NewPredictEngine(ai, cache.New(db, time.Hour, clock, metrics), db, db, time.Second, clock, metrics)

	addForecastObservation(t, db, "tana-river", []float64{40, 55}, clock.Now())
	require.NoError(t, engine.Refresh(context.Background()))

	// New forecast data, entirely different threat picture.
	ai.response.Store(`[{"region": "baringo", "threat": "drought", "probability": "medium", "estimated_time": "within 72hrs", "recommended_action": "stage water trucks"}]`)
	clock.Advance(time.Minute)
	addForecastObservation(t, db, "baringo", []float64{0, 0, 0}, clock.Now())
	require.NoError(t, engine.Refresh(context.Background()))

	preds, err := db.ListPredictions(context.Background())
	require.NoError(t, err)
	require.Len(t, preds, 1, "old snapshot rows must not survive the swap")
	assert.Equal(t, "baringo", preds[0].RegionID)
	assert.Equal(t, models.DisasterTypeDrought, preds[0].Threat)
}

func TestRefresh_FailureRetainsPriorSnapshot(t *testing.T) {
	db, clock := newAnalysisDB(t)
	ai := newScriptedAI(`[{"region": "tana-river", "threat": "flood", "probability": "high", "estimated_time": "within 48hrs", "recommended_action": "evacuate"}]`)
	metrics := observability.NewMetricsForTesting()
	engine := NewPredictEngine(ai, cache.New(db, time.Hour, clock, metrics), db, db, time.Second, clock, metrics)

	addForecastObservation(t, db, "tana-river", []float64{40, 55}, clock.Now())
	require.NoError(t, engine.Refresh(context.Background()))

	// Fresh input, upstream down: fail safe, not fail empty.
	ai.fail.Store(true)
	clock.Advance(time.Minute)
	addForecastObservation(t, db, "tana-river", []float64{60, 80}, clock.Now())
	require.Error(t, engine.Refresh(context.Background()))

	preds, err := db.ListPredictions(context.Background())
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.Equal(t, "tana-river", preds[0].RegionID)
}

func TestRefresh_MalformedResponseRetainsPriorSnapshot(t *testing.T) {
	db, clock := newAnalysisDB(t)
	ai := newScriptedAI(`[{"region": "tana-river", "threat": "flood", "probability": "high", "estimated_time": "within 48hrs", "recommended_action": "evacuate"}]`)
	metrics := observability.NewMetricsForTesting()
	engine := NewPredictEngine(ai, cache.New(db, time.Hour, clock, metrics), db, db, time.Second, clock, metrics)

	addForecastObservation(t, db, "tana-river", []float64{40, 55}, clock.Now())
	require.NoError(t, engine.Refresh(context.Background()))

	ai.response.Store(`not json at all`)
	clock.Advance(time.Minute)
	addForecastObservation(t, db, "tana-river", []float64{61, 82}, clock.Now())
	require.Error(t, engine.Refresh(context.Background()))

	preds, err := db.ListPredictions(context.Background())
	require.NoError(t, err)
	assert.Len(t, preds, 1)
}

func TestRefresh_NoForecastsIsANoOp(t *testing.T) {
	db, clock := newAnalysisDB(t)
	ai := newScriptedAI(`[]`)
	metrics := observability.NewMetricsForTesting()
	engine := NewPredictEngine(ai, cache.New(db, time.Hour, clock, metrics), db, db, time.Second, clock, metrics)

	require.NoError(t, engine.Refresh(context.Background()))
	assert.Zero(t, ai.calls.Load(), "no forecasts means no AI call")
}
