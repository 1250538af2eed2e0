package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdms-ke/disaster-pipeline/internal/alert"
	"github.com/kdms-ke/disaster-pipeline/internal/analysis"
	"github.com/kdms-ke/disaster-pipeline/internal/cache"
	"github.com/kdms-ke/disaster-pipeline/internal/dispatch"
	"github.com/kdms-ke/disaster-pipeline/internal/ingestion"
	"github.com/kdms-ke/disaster-pipeline/internal/models"
	"github.com/kdms-ke/disaster-pipeline/internal/observability"
	"github.com/kdms-ke/disaster-pipeline/internal/repository"
)

// stubAI serves every analysis kind from one canned response.
type stubAI struct {
	response string
}

func (s *stubAI) Generate(ctx context.Context, prompt string) (string, error) {
	return s.response, nil
}

// stubSender accepts everything.
type stubSender struct{}

func (s *stubSender) SendBulk(ctx context.Context, phones []string, message string) (int, error) {
	return len(phones), nil
}

type testEnv struct {
	router *gin.Engine
	db     *repository.SQLiteDB
	clock  *clockwork.FakeClock
}

func setupTestEnv(t *testing.T, aiResponse string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Seed(context.Background()))

	clock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	ai := &stubAI{response: aiResponse}
	c := cache.New(db, time.Hour, clock, metrics)

	reporter := analysis.NewReporter(ai, db, db, db, time.Second, clock, metrics)
	fieldReports := ingestion.NewFieldReporter(db, db, db, clock, metrics)
	dispatcher := alert.NewDispatcher(ai, c, &stubSender{}, db, db, db,
		160, 1, time.Millisecond, time.Second, clock, metrics)
	recommender := dispatch.NewRecommender(ai, db, db, time.Second)

	handler := NewHandler(db, db, db, db, db, reporter, fieldReports, dispatcher, recommender, clock)
	router := gin.New()
	handler.RegisterRoutes(router)

	return &testEnv{router: router, db: db, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t, "")
	w := env.do(t, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestGetRegions_ReturnsSeededCounties(t *testing.T) {
	env := setupTestEnv(t, "")
	w := env.do(t, "GET", "/api/regions", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var regions []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &regions))
	assert.Equal(t, 16, len(regions))
	// Unscored regions expose a null risk score, not zero.
	assert.Nil(t, regions[0]["risk_score"])
}

func TestSubmitFieldReport_CreatesActiveDisaster(t *testing.T) {
	env := setupTestEnv(t, "")
	w := env.do(t, "POST", "/api/reports", map[string]any{
		"type":            "flood",
		"region":          "tana-river",
		"affected_people": 1200,
		"description":     "River burst its banks near Hola",
		"reporter":        "Chief Hassan",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var d map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "active", d["status"])
	assert.Equal(t, "field-reported", d["origin"])
	assert.Equal(t, "medium", d["severity"], "severity defaults when omitted")

	list := env.do(t, "GET", "/api/disasters?status=active", nil)
	var disasters []map[string]any
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &disasters))
	assert.Len(t, disasters, 1)
}

func TestSubmitFieldReport_UnknownRegion(t *testing.T) {
	env := setupTestEnv(t, "")
	w := env.do(t, "POST", "/api/reports", map[string]any{
		"type":   "flood",
		"region": "atlantis",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDisasters_InvalidStatusRejected(t *testing.T) {
	env := setupTestEnv(t, "")
	w := env.do(t, "GET", "/api/disasters?status=pending", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveDisaster_IsOneWay(t *testing.T) {
	env := setupTestEnv(t, "")
	w := env.do(t, "POST", "/api/reports", map[string]any{
		"type": "flood", "region": "kisumu",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var d map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	id := d["id"].(string)

	assert.Equal(t, http.StatusOK, env.do(t, "POST", "/api/disasters/"+id+"/resolve", nil).Code)
	assert.Equal(t, http.StatusConflict, env.do(t, "POST", "/api/disasters/"+id+"/resolve", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, "POST", "/api/disasters/nope/resolve", nil).Code)
}

func TestAddContact(t *testing.T) {
	env := setupTestEnv(t, "")
	w := env.do(t, "POST", "/api/contacts", map[string]any{
		"name":   "Halima",
		"phone":  "+254711000111",
		"region": "garissa",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, "POST", "/api/contacts", map[string]any{"name": "NoPhone"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlertPreviewAndSendFlow(t *testing.T) {
	env := setupTestEnv(t, `{"english": "FLOOD ALERT Tana River. Move to Hola Stadium Camp. Call 1199.",
		"swahili": "TAHADHARI YA MAFURIKO Tana River. Nenda Hola Stadium Camp. Piga 1199."}`)

	// Two tana-river contacts come seeded; register a third.
	require.Equal(t, http.StatusCreated, env.do(t, "POST", "/api/contacts", map[string]any{
		"name": "Amina", "phone": "+254700000001", "region": "tana-river",
	}).Code)

	w := env.do(t, "POST", "/api/reports", map[string]any{
		"type": "flood", "severity": "high", "region": "tana-river", "affected_people": 5000,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var d map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	id := d["id"].(string)

	preview := env.do(t, "POST", fmt.Sprintf("/api/disasters/%s/alert/preview", id), map[string]any{"tier": 1})
	require.Equal(t, http.StatusOK, preview.Code, preview.Body.String())
	var p map[string]any
	require.NoError(t, json.Unmarshal(preview.Body.Bytes(), &p))
	assert.Equal(t, false, p["truncated"])
	assert.Equal(t, float64(3), p["recipients"])

	send := env.do(t, "POST", fmt.Sprintf("/api/disasters/%s/alert/send", id), map[string]any{"tier": 1})
	require.Equal(t, http.StatusOK, send.Code, send.Body.String())

	// The sent tier is closed for previews and resends alike.
	again := env.do(t, "POST", fmt.Sprintf("/api/disasters/%s/alert/send", id), map[string]any{"tier": 1})
	assert.Equal(t, http.StatusConflict, again.Code)
	assert.Equal(t, http.StatusConflict,
		env.do(t, "POST", fmt.Sprintf("/api/disasters/%s/alert/preview", id), map[string]any{"tier": 1}).Code)

	list := env.do(t, "GET", "/api/alerts", nil)
	var alerts []map[string]any
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &alerts))
	assert.Len(t, alerts, 1)

	bad := env.do(t, "POST", fmt.Sprintf("/api/disasters/%s/alert/preview", id), map[string]any{"tier": 9})
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestRecommendationAndAssignFlow(t *testing.T) {
	env := setupTestEnv(t, "Closest rescue specialist to the flood zone.")

	w := env.do(t, "POST", "/api/reports", map[string]any{
		"type": "flood", "region": "tana-river",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var d map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	id := d["id"].(string)

	rec := env.do(t, "GET", fmt.Sprintf("/api/disasters/%s/recommendation", id), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var r struct {
		Recommended struct {
			Worker models.Worker `json:"worker"`
		} `json:"recommended"`
		Candidates []json.RawMessage `json:"candidates"`
		Rationale  string            `json:"rationale"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.NotZero(t, r.Recommended.Worker.ID)
	assert.NotEmpty(t, r.Candidates)
	assert.NotEmpty(t, r.Rationale)

	assign := env.do(t, "POST", fmt.Sprintf("/api/disasters/%s/assign", id),
		map[string]any{"worker_id": r.Recommended.Worker.ID})
	require.Equal(t, http.StatusOK, assign.Code, assign.Body.String())

	// Same worker cannot be taken twice.
	again := env.do(t, "POST", fmt.Sprintf("/api/disasters/%s/assign", id),
		map[string]any{"worker_id": r.Recommended.Worker.ID})
	assert.Equal(t, http.StatusConflict, again.Code)
}

func TestGetNationalReport(t *testing.T) {
	env := setupTestEnv(t, "## Executive Summary\nNo active incidents.")
	w := env.do(t, "GET", "/api/report", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["report"], "Executive Summary")
}

func TestGetPredictions_EmptyBeforeFirstCycle(t *testing.T) {
	env := setupTestEnv(t, "")
	w := env.do(t, "GET", "/api/predictions", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var preds []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preds))
	assert.Empty(t, preds)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(2))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make(map[int]int)
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/ping", nil)
		router.ServeHTTP(w, req)
		codes[w.Code]++
	}
	assert.Greater(t, codes[http.StatusTooManyRequests], 0, "burst beyond the limit must be rejected")
	assert.Greater(t, codes[http.StatusOK], 0)
}
