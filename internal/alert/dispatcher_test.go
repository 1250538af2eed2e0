package alert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kdms-ke/disaster-pipeline/internal/cache"
	"github.com/kdms-ke/disaster-pipeline/internal/models"
	"github.com/kdms-ke/disaster-pipeline/internal/observability"
)

func TestMain(m *testing.M) {
	// opencensus, pulled in by the Gemini client, starts a permanent stats
	// worker in package init.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type fakeDisasterStore struct {
	mu        sync.Mutex
	disasters map[string]models.Disaster
}

func (s *fakeDisasterStore) AddDisaster(ctx context.Context, d *models.Disaster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disasters[d.ID] = *d
	return nil
}

func (s *fakeDisasterStore) GetDisaster(ctx context.Context, id string) (*models.Disaster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disasters[id]
	if !ok {
		return nil, fmt.Errorf("disaster %s not found", id)
	}
	return &d, nil
}

func (s *fakeDisasterStore) ListDisasters(ctx context.Context, status models.DisasterStatus) ([]models.Disaster, error) {
	return nil, nil
}

func (s *fakeDisasterStore) HasActiveDisaster(ctx context.Context, regionID string, t models.DisasterType) (bool, error) {
	return false, nil
}

func (s *fakeDisasterStore) ResolveDisaster(ctx context.Context, id string, at time.Time) error {
	return nil
}

type fakeRegionStore struct {
	region   models.Region
	refuges  []models.RefugeSite
	contacts []models.Contact
}

func (s *fakeRegionStore) ListRegions(ctx context.Context) ([]models.Region, error) {
	return []models.Region{s.region}, nil
}

func (s *fakeRegionStore) GetRegion(ctx context.Context, id string) (*models.Region, error) {
	r := s.region
	return &r, nil
}

func (s *fakeRegionStore) UpdateRegionRisk(ctx context.Context, id string, score int, scoredAt time.Time) error {
	return nil
}

func (s *fakeRegionStore) CountRegionsAtRisk(ctx context.Context, minScore int) (int, error) {
	return 0, nil
}

func (s *fakeRegionStore) ListRefugeSites(ctx context.Context, regionID string) ([]models.RefugeSite, error) {
	return s.refuges, nil
}

func (s *fakeRegionStore) ListContacts(ctx context.Context, regionID string) ([]models.Contact, error) {
	return s.contacts, nil
}

func (s *fakeRegionStore) AddContact(ctx context.Context, c *models.Contact) error {
	s.contacts = append(s.contacts, *c)
	return nil
}

type fakeAlertStore struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (s *fakeAlertStore) AddAlert(ctx context.Context, a *models.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, *a)
	return nil
}

func (s *fakeAlertStore) GetAlertByTier(ctx context.Context, disasterID string, tier int) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if s.alerts[i].DisasterID == disasterID && s.alerts[i].Tier == tier {
			a := s.alerts[i]
			return &a, nil
		}
	}
	return nil, nil
}

func (s *fakeAlertStore) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Alert(nil), s.alerts...), nil
}

func (s *fakeAlertStore) countByStatus(status models.AlertStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.alerts {
		if a.Status == status {
			n++
		}
	}
	return n
}

type memCacheStore struct {
	mu      sync.Mutex
	entries []models.AnalysisCacheEntry
}

func (s *memCacheStore) GetLiveCacheEntry(ctx context.Context, key models.CacheKey, now time.Time) (*models.AnalysisCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.Key == key && e.Live(now) {
			return &e, nil
		}
	}
	return nil, nil
}

func (s *memCacheStore) AddCacheEntry(ctx context.Context, e *models.AnalysisCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, *e)
	return nil
}

// stubAI returns a canned bilingual response and counts calls.
type stubAI struct {
	calls    atomic.Int64
	response string
}

func (s *stubAI) Generate(ctx context.Context, prompt string) (string, error) {
	s.calls.Add(1)
	return s.response, nil
}

// stubSender counts SendBulk calls and can fail the first n attempts or
// script per-call accepted counts.
type stubSender struct {
	mu       sync.Mutex
	calls    int
	failNext int
	failAll  bool
	accepts  []int // per-call accepted counts; exhausted means accept all
}

func (s *stubSender) SendBulk(ctx context.Context, phones []string, message string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failAll {
		return 0, errors.New("gateway unreachable")
	}
	if s.failNext > 0 {
		s.failNext--
		return 0, errors.New("gateway unreachable")
	}
	if len(s.accepts) > 0 {
		n := s.accepts[0]
		s.accepts = s.accepts[1:]
		return n, nil
	}
	return len(phones), nil
}

func (s *stubSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestDispatcher(t *testing.T, aiClient *stubAI, sender *stubSender, maxRetries int) (*Dispatcher, *fakeAlertStore) {
	t.Helper()
	disasters := &fakeDisasterStore{disasters: map[string]models.Disaster{
		"dis-1": {
			ID:             "dis-1",
			Type:           models.DisasterTypeFlood,
			Severity:       models.SeverityHigh,
			RegionID:       "tana-river",
			AffectedPeople: 5000,
			Origin:         models.OriginAutoDetected,
			Status:         models.DisasterStatusActive,
		},
		"dis-resolved": {
			ID:       "dis-resolved",
			Type:     models.DisasterTypeFlood,
			RegionID: "tana-river",
			Status:   models.DisasterStatusResolved,
		},
	}}
	regions := &fakeRegionStore{
		region: models.Region{ID: "tana-river", Name: "Tana River"},
		refuges: []models.RefugeSite{
			{Name: "Hola Primary School", RegionID: "tana-river"},
		},
		contacts: []models.Contact{
			{Name: "Amina", Phone: "+254700000001", RegionID: "tana-river"},
			{Name: "Otieno", Phone: "+254700000002", RegionID: "tana-river"},
			{Name: "Wanjiru", Phone: "+254700000003", RegionID: "tana-river"},
		},
	}
	alerts := &fakeAlertStore{}
	clock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	c := cache.New(&memCacheStore{}, time.Hour, clock, metrics)

	d := NewDispatcher(aiClient, c, sender, disasters, regions, alerts,
		160, maxRetries, time.Millisecond, time.Second, clock, metrics)
	return d, alerts
}

func bilingual(en, sw string) string {
	return fmt.Sprintf(`{"english": %q, "swahili": %q}`, en, sw)
}

func TestGeneratePreview_SideEffectFreeAndCached(t *testing.T) {
	aiClient := &stubAI{response: bilingual(
		"FLOOD ALERT Tana River. Move to Hola Primary School. Call 1199.",
		"TAHADHARI YA MAFURIKO Tana River. Nenda Hola Primary School. Piga 1199.")}
	sender := &stubSender{}
	d, alerts := newTestDispatcher(t, aiClient, sender, 3)

	p1, err := d.GeneratePreview(context.Background(), "dis-1", 1)
	require.NoError(t, err)
	p2, err := d.GeneratePreview(context.Background(), "dis-1", 1)
	require.NoError(t, err)

	assert.Equal(t, p1.MessageEN, p2.MessageEN, "repeated previews must replay the cached text")
	assert.Equal(t, int64(1), aiClient.calls.Load(), "second preview must come from cache")
	assert.Equal(t, 3, p1.Recipients)
	assert.False(t, p1.Truncated)
	assert.Zero(t, sender.callCount(), "preview must never reach the gateway")
	got, _ := alerts.ListAlerts(context.Background())
	assert.Empty(t, got, "preview must not record an alert")
}

func TestGeneratePreview_TruncatesOverLengthAtWordBoundary(t *testing.T) {
	long := strings.Repeat("maji yanafika haraka ", 10) // ~210 chars
	aiClient := &stubAI{response: bilingual(long, long)}
	d, _ := newTestDispatcher(t, aiClient, &stubSender{}, 3)

	p, err := d.GeneratePreview(context.Background(), "dis-1", 1)
	require.NoError(t, err)

	assert.True(t, p.Truncated)
	assert.LessOrEqual(t, len([]rune(p.MessageEN)), 160)
	assert.False(t, strings.HasSuffix(p.MessageEN, " "), "no trailing space after the cut")
	// The cut lands between words, never inside one.
	assert.True(t, strings.HasPrefix(long, p.MessageEN+" "),
		"truncated text must be a word-boundary prefix of the original")
}

func TestGeneratePreview_ResolvedDisasterRejected(t *testing.T) {
	aiClient := &stubAI{response: bilingual("a", "b")}
	d, _ := newTestDispatcher(t, aiClient, &stubSender{}, 3)

	_, err := d.GeneratePreview(context.Background(), "dis-resolved", 1)
	assert.ErrorIs(t, err, ErrDisasterResolved)
}

func TestConfirmSend_ConcurrentConfirmationsSendOnce(t *testing.T) {
	aiClient := &stubAI{response: bilingual(
		"FLOOD ALERT Tana River. Call 1199.",
		"TAHADHARI Tana River. Piga 1199.")}
	sender := &stubSender{}
	d, alerts := newTestDispatcher(t, aiClient, sender, 3)

	const n = 8
	results := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = d.ConfirmSend(context.Background(), "dis-1", 1)
		}(i)
	}
	wg.Wait()

	sent, already := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			sent++
		case errors.Is(err, ErrAlreadySent):
			already++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, sent, "exactly one confirmation may deliver")
	assert.Equal(t, n-1, already)
	assert.Equal(t, 1, alerts.countByStatus(models.AlertStatusSent))
	assert.Equal(t, 2, sender.callCount(), "one English and one Swahili dispatch")
}

func TestConfirmSend_RetriesThenSucceeds(t *testing.T) {
	aiClient := &stubAI{response: bilingual("alert en", "alert sw")}
	sender := &stubSender{failNext: 2}
	d, _ := newTestDispatcher(t, aiClient, sender, 3)

	a, err := d.ConfirmSend(context.Background(), "dis-1", 1)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusSent, a.Status)
	assert.Equal(t, 2, a.Retries)
	assert.Equal(t, 3, a.Recipients)
	assert.False(t, a.SentAt.IsZero())
}

func TestConfirmSend_RecipientsCountBothLanguageSends(t *testing.T) {
	aiClient := &stubAI{response: bilingual("alert en", "alert sw")}
	// Gateway accepts all three English sends but only two Swahili ones.
	sender := &stubSender{accepts: []int{3, 2}}
	d, _ := newTestDispatcher(t, aiClient, sender, 3)

	a, err := d.ConfirmSend(context.Background(), "dis-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Recipients, "a contact is reached only when both variants were accepted")
}

func TestConfirmSend_ExhaustedRetriesRecordFailureAndBlockResend(t *testing.T) {
	aiClient := &stubAI{response: bilingual("alert en", "alert sw")}
	sender := &stubSender{failAll: true}
	d, alerts := newTestDispatcher(t, aiClient, sender, 2)

	a, err := d.ConfirmSend(context.Background(), "dis-1", 1)
	require.Error(t, err)
	require.NotNil(t, a)
	assert.Equal(t, models.AlertStatusFailed, a.Status)
	assert.Equal(t, 2, a.Retries, "retries beyond the first attempt")
	assert.True(t, a.SentAt.IsZero(), "an alert that never left keeps no sent timestamp")
	assert.Equal(t, 1, alerts.countByStatus(models.AlertStatusFailed))

	_, err = d.ConfirmSend(context.Background(), "dis-1", 1)
	assert.ErrorIs(t, err, ErrSendExhausted)
}

func TestConfirmSend_DifferentTiersAreIndependent(t *testing.T) {
	aiClient := &stubAI{response: bilingual("alert en", "alert sw")}
	sender := &stubSender{}
	d, alerts := newTestDispatcher(t, aiClient, sender, 3)

	_, err := d.ConfirmSend(context.Background(), "dis-1", 1)
	require.NoError(t, err)
	_, err = d.ConfirmSend(context.Background(), "dis-1", 2)
	require.NoError(t, err)

	assert.Equal(t, 2, alerts.countByStatus(models.AlertStatusSent))
}

func TestConfirmSend_InvalidTier(t *testing.T) {
	d, _ := newTestDispatcher(t, &stubAI{response: bilingual("a", "b")}, &stubSender{}, 3)
	_, err := d.ConfirmSend(context.Background(), "dis-1", 0)
	assert.ErrorIs(t, err, ErrInvalidTier)
	_, err = d.ConfirmSend(context.Background(), "dis-1", 4)
	assert.ErrorIs(t, err, ErrInvalidTier)
}
