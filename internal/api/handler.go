// Package api exposes the pipeline over HTTP. Handlers stay thin: they
// parse, delegate to the engines and stores, and render.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"github.com/kdms-ke/disaster-pipeline/internal/alert"
	"github.com/kdms-ke/disaster-pipeline/internal/analysis"
	"github.com/kdms-ke/disaster-pipeline/internal/dispatch"
	"github.com/kdms-ke/disaster-pipeline/internal/ingestion"
	"github.com/kdms-ke/disaster-pipeline/internal/models"
	"github.com/kdms-ke/disaster-pipeline/internal/repository"
)

type Handler struct {
	regions     repository.RegionStore
	disasters   repository.DisasterStore
	alerts      repository.AlertStore
	predictions repository.PredictionStore
	workers     repository.WorkerStore

	reporter     *analysis.Reporter
	fieldReports *ingestion.FieldReporter
	dispatcher   *alert.Dispatcher
	recommender  *dispatch.Recommender
	clock        clockwork.Clock
}

func NewHandler(
	regions repository.RegionStore,
	disasters repository.DisasterStore,
	alerts repository.AlertStore,
	predictions repository.PredictionStore,
	workers repository.WorkerStore,
	reporter *analysis.Reporter,
	fieldReports *ingestion.FieldReporter,
	dispatcher *alert.Dispatcher,
	recommender *dispatch.Recommender,
	clock clockwork.Clock,
) *Handler {
	return &Handler{
		regions:      regions,
		disasters:    disasters,
		alerts:       alerts,
		predictions:  predictions,
		workers:      workers,
		reporter:     reporter,
		fieldReports: fieldReports,
		dispatcher:   dispatcher,
		recommender:  recommender,
		clock:        clock,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)

	r.GET("/api/regions", h.getRegions)
	r.GET("/api/disasters", h.getDisasters)
	r.POST("/api/disasters/:id/resolve", h.resolveDisaster)
	r.GET("/api/predictions", h.getPredictions)
	r.GET("/api/alerts", h.getAlerts)
	r.GET("/api/workers", h.getWorkers)
	r.GET("/api/report", h.getNationalReport)

	r.POST("/api/reports", h.submitFieldReport)
	r.POST("/api/contacts", h.addContact)

	r.POST("/api/disasters/:id/alert/preview", h.previewAlert)
	r.POST("/api/disasters/:id/alert/send", h.sendAlert)
	r.GET("/api/disasters/:id/recommendation", h.getRecommendation)
	r.POST("/api/disasters/:id/assign", h.assignWorker)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getRegions(c *gin.Context) {
	regions, err := h.regions.ListRegions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch regions"})
		return
	}

	out := make([]gin.H, len(regions))
	for i, r := range regions {
		out[i] = gin.H{
			"id":          r.ID,
			"name":        r.Name,
			"latitude":    r.Latitude,
			"longitude":   r.Longitude,
			"risk_score":  r.RiskScore,
			"last_scored": r.LastScored,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getDisasters(c *gin.Context) {
	var status models.DisasterStatus
	switch c.Query("status") {
	case "active":
		status = models.DisasterStatusActive
	case "resolved":
		status = models.DisasterStatusResolved
	case "":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be active or resolved"})
		return
	}

	disasters, err := h.disasters.ListDisasters(c.Request.Context(), status)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch disasters"})
		return
	}

	out := make([]gin.H, len(disasters))
	for i := range disasters {
		out[i] = disasterJSON(&disasters[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) resolveDisaster(c *gin.Context) {
	err := h.disasters.ResolveDisaster(c.Request.Context(), c.Param("id"), h.clock.Now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "disaster not found"})
	case errors.Is(err, repository.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "disaster already resolved"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve disaster"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "resolved"})
	}
}

func (h *Handler) getPredictions(c *gin.Context) {
	preds, err := h.predictions.ListPredictions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch predictions"})
		return
	}

	out := make([]gin.H, len(preds))
	for i, p := range preds {
		out[i] = gin.H{
			"region":             p.RegionID,
			"threat":             p.Threat,
			"probability":        p.Probability,
			"estimated_time":     p.TimeWindow,
			"recommended_action": p.Action,
			"generated_at":       p.GeneratedAt,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getAlerts(c *gin.Context) {
	alerts, err := h.alerts.ListAlerts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch alerts"})
		return
	}

	out := make([]gin.H, len(alerts))
	for i, a := range alerts {
		out[i] = gin.H{
			"id":          a.ID,
			"disaster_id": a.DisasterID,
			"tier":        a.Tier,
			"message_en":  a.MessageEN,
			"message_sw":  a.MessageSW,
			"truncated":   a.Truncated,
			"recipients":  a.Recipients,
			"retries":     a.Retries,
			"status":      a.Status,
			"sent_at":     sentAtOrNil(a.SentAt),
		}
	}
	c.JSON(http.StatusOK, out)
}

// Failed deliveries carry a zero sent-at; render it as null.
func sentAtOrNil(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func (h *Handler) getWorkers(c *gin.Context) {
	workers, err := h.workers.ListWorkers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch workers"})
		return
	}

	out := make([]gin.H, len(workers))
	for i, w := range workers {
		out[i] = gin.H{
			"id":                  w.ID,
			"name":                w.Name,
			"role":                w.Role,
			"region":              w.RegionID,
			"status":              w.Status,
			"current_disaster_id": w.CurrentDisasterID,
			"latitude":            w.Latitude,
			"longitude":           w.Longitude,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getNationalReport(c *gin.Context) {
	report, err := h.reporter.NationalReport(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report generation unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"report":       report,
		"generated_at": h.clock.Now().UTC(),
	})
}

type fieldReportRequest struct {
	Type           string  `json:"type" binding:"required"`
	Severity       string  `json:"severity"`
	Region         string  `json:"region" binding:"required"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AffectedPeople int     `json:"affected_people"`
	Description    string  `json:"description"`
	Reporter       string  `json:"reporter"`
}

func (h *Handler) submitFieldReport(c *gin.Context) {
	var req fieldReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.fieldReports.Submit(c.Request.Context(), ingestion.FieldReport{
		Type:           models.DisasterType(req.Type),
		Severity:       models.Severity(req.Severity),
		RegionID:       req.Region,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		AffectedPeople: req.AffectedPeople,
		Description:    req.Description,
		Reporter:       req.Reporter,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown region"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit report"})
		return
	}

	c.JSON(http.StatusCreated, disasterJSON(d))
}

type contactRequest struct {
	Name   string `json:"name" binding:"required"`
	Phone  string `json:"phone" binding:"required"`
	Region string `json:"region" binding:"required"`
}

func (h *Handler) addContact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact := &models.Contact{Name: req.Name, Phone: req.Phone, RegionID: req.Region}
	if err := h.regions.AddContact(c.Request.Context(), contact); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown region"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register contact"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":     contact.ID,
		"name":   contact.Name,
		"phone":  contact.Phone,
		"region": contact.RegionID,
	})
}

type alertTierRequest struct {
	Tier int `json:"tier"`
}

func (h *Handler) previewAlert(c *gin.Context) {
	var req alertTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	preview, err := h.dispatcher.GeneratePreview(c.Request.Context(), c.Param("id"), req.Tier)
	if err != nil {
		h.alertError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *Handler) sendAlert(c *gin.Context) {
	var req alertTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.dispatcher.ConfirmSend(c.Request.Context(), c.Param("id"), req.Tier)
	if err != nil {
		if a != nil {
			// Delivery failed after retries; the failure is recorded.
			c.JSON(http.StatusBadGateway, gin.H{
				"error":    "alert delivery failed",
				"alert_id": a.ID,
				"retries":  a.Retries,
			})
			return
		}
		h.alertError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alert_id":   a.ID,
		"tier":       a.Tier,
		"recipients": a.Recipients,
		"retries":    a.Retries,
		"truncated":  a.Truncated,
		"status":     a.Status,
		"sent_at":    a.SentAt,
	})
}

func (h *Handler) getRecommendation(c *gin.Context) {
	rec, err := h.recommender.Recommend(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, dispatch.ErrNoWorkersAvailable):
		c.JSON(http.StatusConflict, gin.H{"error": "no available workers"})
	case errors.Is(err, dispatch.ErrDisasterNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "disaster is not active"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build recommendation"})
	default:
		c.JSON(http.StatusOK, rec)
	}
}

type assignRequest struct {
	WorkerID int64 `json:"worker_id" binding:"required"`
}

func (h *Handler) assignWorker(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.recommender.Assign(c.Request.Context(), c.Param("id"), req.WorkerID)
	switch {
	case errors.Is(err, repository.ErrWorkerUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": "worker is not available"})
	case errors.Is(err, dispatch.ErrDisasterNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "disaster is not active"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to assign worker"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "assigned", "worker_id": req.WorkerID})
	}
}

func (h *Handler) alertError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, alert.ErrInvalidTier):
		c.JSON(http.StatusBadRequest, gin.H{"error": "tier must be between 1 and 3"})
	case errors.Is(err, alert.ErrAlreadySent):
		c.JSON(http.StatusConflict, gin.H{"error": "alert already sent for this tier"})
	case errors.Is(err, alert.ErrSendExhausted):
		c.JSON(http.StatusConflict, gin.H{"error": "previous send failed permanently"})
	case errors.Is(err, alert.ErrDisasterResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "disaster is resolved"})
	case errors.Is(err, alert.ErrNoRecipients):
		c.JSON(http.StatusConflict, gin.H{"error": "no registered contacts for region"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "alert operation failed"})
	}
}

func disasterJSON(d *models.Disaster) gin.H {
	return gin.H{
		"id":              d.ID,
		"type":            d.Type,
		"severity":        d.Severity,
		"region":          d.RegionID,
		"latitude":        d.Latitude,
		"longitude":       d.Longitude,
		"affected_people": d.AffectedPeople,
		"description":     d.Description,
		"origin":          d.Origin,
		"status":          d.Status,
		"reported_at":     d.ReportedAt,
		"resolved_at":     d.ResolvedAt,
	}
}
