// Package alert turns an active disaster into a bilingual community SMS.
// Generation and delivery are split: a preview is side-effect-free and
// cacheable, confirmation is the only path that reaches the gateway.
package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/kdms-ke/disaster-pipeline/internal/ai"
	"github.com/kdms-ke/disaster-pipeline/internal/cache"
	"github.com/kdms-ke/disaster-pipeline/internal/ingestion"
	"github.com/kdms-ke/disaster-pipeline/internal/models"
	"github.com/kdms-ke/disaster-pipeline/internal/observability"
	"github.com/kdms-ke/disaster-pipeline/internal/repository"
	"github.com/kdms-ke/disaster-pipeline/internal/sms"
)

var (
	// ErrAlreadySent means a sent alert already exists for this disaster
	// and tier. The invariant is at most one sent alert per pair.
	ErrAlreadySent = errors.New("alert: already sent for this disaster and tier")
	// ErrSendExhausted means a previous send for this pair failed after all
	// retries. Operators open a new tier rather than resending.
	ErrSendExhausted = errors.New("alert: previous send failed permanently")
	// ErrDisasterResolved means the disaster is no longer active.
	ErrDisasterResolved = errors.New("alert: disaster is resolved")
	// ErrNoRecipients means the region has no registered contacts.
	ErrNoRecipients = errors.New("alert: no registered contacts for region")
	// ErrInvalidTier is returned for tiers outside 1..3.
	ErrInvalidTier = errors.New("alert: tier must be between 1 and 3")
)

// Preview is a generated alert that has not been sent. Identical requests
// reuse the cached text, so the operator confirms exactly what they saw.
type Preview struct {
	DisasterID string `json:"disaster_id"`
	Tier       int    `json:"tier"`
	MessageEN  string `json:"message_en"`
	MessageSW  string `json:"message_sw"`
	Truncated  bool   `json:"truncated"`
	Recipients int    `json:"recipients"`
}

type Dispatcher struct {
	client    ai.Client
	cache     *cache.Cache
	sender    sms.Sender
	disasters repository.DisasterStore
	regions   repository.RegionStore
	alerts    repository.AlertStore

	charLimit     int
	maxRetries    int
	retryInterval time.Duration
	aiTimeout     time.Duration
	clock         clockwork.Clock
	metrics       *observability.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewDispatcher(
	client ai.Client,
	c *cache.Cache,
	sender sms.Sender,
	disasters repository.DisasterStore,
	regions repository.RegionStore,
	alerts repository.AlertStore,
	charLimit int,
	maxRetries int,
	retryInterval time.Duration,
	aiTimeout time.Duration,
	clock clockwork.Clock,
	metrics *observability.Metrics,
) *Dispatcher {
	return &Dispatcher{
		client:        client,
		cache:         c,
		sender:        sender,
		disasters:     disasters,
		regions:       regions,
		alerts:        alerts,
		charLimit:     charLimit,
		maxRetries:    maxRetries,
		retryInterval: retryInterval,
		aiTimeout:     aiTimeout,
		clock:         clock,
		metrics:       metrics,
		locks:         make(map[string]*sync.Mutex),
	}
}

// GeneratePreview builds (or replays from cache) the bilingual alert for a
// disaster and tier without sending anything. It fails the same eligibility
// checks ConfirmSend enforces so the operator learns early.
func (d *Dispatcher) GeneratePreview(ctx context.Context, disasterID string, tier int) (*Preview, error) {
	if tier < 1 || tier > 3 {
		return nil, ErrInvalidTier
	}

	dis, err := d.disasters.GetDisaster(ctx, disasterID)
	if err != nil {
		return nil, fmt.Errorf("error loading disaster: %w", err)
	}
	if err := d.checkEligible(ctx, dis, tier); err != nil {
		return nil, err
	}

	region, err := d.regions.GetRegion(ctx, dis.RegionID)
	if err != nil {
		return nil, fmt.Errorf("error loading region %s: %w", dis.RegionID, err)
	}
	refuges, err := d.regions.ListRefugeSites(ctx, dis.RegionID)
	if err != nil {
		return nil, fmt.Errorf("error loading refuge sites: %w", err)
	}
	contacts, err := d.regions.ListContacts(ctx, dis.RegionID)
	if err != nil {
		return nil, fmt.Errorf("error loading contacts: %w", err)
	}

	fp, err := ingestion.Fingerprint(struct {
		Type     models.DisasterType `json:"type"`
		Severity models.Severity     `json:"severity"`
		Affected int                 `json:"affected"`
		Tier     int                 `json:"tier"`
	}{dis.Type, dis.Severity, dis.AffectedPeople, tier})
	if err != nil {
		return nil, err
	}
	key := models.CacheKey{
		Subject:     fmt.Sprintf("disaster:%s|tier:%d", dis.ID, tier),
		Fingerprint: fp,
		Kind:        models.AnalysisKindAlert,
	}

	value, err := d.cache.GetOrCompute(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		cctx, cancel := context.WithTimeout(ctx, d.aiTimeout)
		defer cancel()

		text, err := d.client.Generate(cctx, ai.AlertPrompt(dis, region.Name, refuges, d.charLimit))
		if err != nil {
			d.metrics.AICalls.WithLabelValues(string(models.AnalysisKindAlert), "error").Inc()
			return nil, err
		}
		d.metrics.AICalls.WithLabelValues(string(models.AnalysisKindAlert), "success").Inc()
		return json.RawMessage(ai.ExtractJSON(text)), nil
	})
	if err != nil {
		return nil, fmt.Errorf("error generating alert text: %w", err)
	}

	msg, err := ai.DecodeAlertMessage(value)
	if err != nil {
		d.metrics.ParseFailures.WithLabelValues(string(models.AnalysisKindAlert)).Inc()
		return nil, err
	}

	en, cutEN := truncateAtWord(msg.English, d.charLimit)
	sw, cutSW := truncateAtWord(msg.Swahili, d.charLimit)

	return &Preview{
		DisasterID: dis.ID,
		Tier:       tier,
		MessageEN:  en,
		MessageSW:  sw,
		Truncated:  cutEN || cutSW,
		Recipients: len(contacts),
	}, nil
}

// ConfirmSend delivers the previewed alert to every registered contact of
// the disaster's region. Concurrent confirmations for the same disaster and
// tier serialize on a keyed mutex; exactly one can reach status sent.
func (d *Dispatcher) ConfirmSend(ctx context.Context, disasterID string, tier int) (*models.Alert, error) {
	if tier < 1 || tier > 3 {
		return nil, ErrInvalidTier
	}

	lock := d.lockFor(fmt.Sprintf("%s|%d", disasterID, tier))
	lock.Lock()
	defer lock.Unlock()

	preview, err := d.GeneratePreview(ctx, disasterID, tier)
	if err != nil {
		return nil, err
	}

	dis, err := d.disasters.GetDisaster(ctx, disasterID)
	if err != nil {
		return nil, fmt.Errorf("error loading disaster: %w", err)
	}
	contacts, err := d.regions.ListContacts(ctx, dis.RegionID)
	if err != nil {
		return nil, fmt.Errorf("error loading contacts: %w", err)
	}
	if len(contacts) == 0 {
		return nil, ErrNoRecipients
	}
	phones := make([]string, len(contacts))
	for i, c := range contacts {
		phones[i] = c.Phone
	}

	attempts := 0
	accepted := 0
	operation := func() error {
		attempts++
		if attempts > 1 {
			d.metrics.SMSRetries.Inc()
		}
		en, err := d.sender.SendBulk(ctx, phones, preview.MessageEN)
		if err != nil {
			return err
		}
		sw, err := d.sender.SendBulk(ctx, phones, preview.MessageSW)
		if err != nil {
			return err
		}
		// A contact counts as reached only when the gateway accepted both
		// language variants.
		accepted = min(en, sw)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.retryInterval
	sendErr := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(d.maxRetries)), ctx))

	a := &models.Alert{
		ID:         uuid.NewString(),
		DisasterID: dis.ID,
		Tier:       tier,
		MessageEN:  preview.MessageEN,
		MessageSW:  preview.MessageSW,
		Truncated:  preview.Truncated,
		Recipients: accepted,
		Retries:    attempts - 1,
		Status:     models.AlertStatusSent,
	}
	if sendErr != nil {
		a.Status = models.AlertStatusFailed
	} else {
		a.SentAt = d.clock.Now()
	}

	if err := d.alerts.AddAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("error recording alert: %w", err)
	}
	d.metrics.AlertsRecorded.WithLabelValues(string(a.Status)).Inc()

	if sendErr != nil {
		slog.Error("alert delivery failed after retries",
			"disaster", dis.ID, "tier", tier, "attempts", attempts, "error", sendErr)
		return a, fmt.Errorf("alert delivery failed: %w", sendErr)
	}

	slog.Info("alert sent",
		"disaster", dis.ID, "tier", tier, "recipients", accepted, "retries", a.Retries)
	return a, nil
}

func (d *Dispatcher) checkEligible(ctx context.Context, dis *models.Disaster, tier int) error {
	if dis.Status != models.DisasterStatusActive {
		return ErrDisasterResolved
	}
	prior, err := d.alerts.GetAlertByTier(ctx, dis.ID, tier)
	if err != nil {
		return fmt.Errorf("error checking prior alerts: %w", err)
	}
	if prior != nil {
		if prior.Status == models.AlertStatusSent {
			return ErrAlreadySent
		}
		return ErrSendExhausted
	}
	return nil
}

func (d *Dispatcher) lockFor(key string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.locks[key]
	if !ok {
		m = &sync.Mutex{}
		d.locks[key] = m
	}
	return m
}

// truncateAtWord cuts s to at most limit characters at a word boundary. The
// count is in runes so Swahili text with accents is not cut mid-character.
func truncateAtWord(s string, limit int) (string, bool) {
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}

	// Prefer the last space inside the limit; with none, a hard cut beats
	// an over-length message.
	cut := limit
	for i := limit; i > 0; i-- {
		if unicode.IsSpace(runes[i-1]) {
			cut = i - 1
			break
		}
	}
	return strings.TrimRight(string(runes[:cut]), " \t\n"), true
}
