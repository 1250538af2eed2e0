package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/kdms-ke/disaster-pipeline/internal/config"
	"github.com/kdms-ke/disaster-pipeline/internal/models"
	"github.com/kdms-ke/disaster-pipeline/internal/observability"
	"github.com/kdms-ke/disaster-pipeline/internal/repository"
)

// Collector drives the periodic multi-source collection cycle: it invokes
// every adapter concurrently under a bounded timeout, persists normalized
// observations, applies the auto-detection thresholds, and then runs the
// registered post-cycle hooks (risk scoring, predictive warnings).
type Collector struct {
	cfg          config.CollectorConfig
	adapters     []SourceAdapter
	regions      repository.RegionStore
	observations repository.ObservationStore
	disasters    repository.DisasterStore
	clock        clockwork.Clock
	metrics      *observability.Metrics

	hooks []func(ctx context.Context)
	wg    sync.WaitGroup
}

func NewCollector(
	cfg config.CollectorConfig,
	adapters []SourceAdapter,
	regions repository.RegionStore,
	observations repository.ObservationStore,
	disasters repository.DisasterStore,
	clock clockwork.Clock,
	metrics *observability.Metrics,
) *Collector {
	return &Collector{
		cfg:          cfg,
		adapters:     adapters,
		regions:      regions,
		observations: observations,
		disasters:    disasters,
		clock:        clock,
		metrics:      metrics,
	}
}

// OnCycleComplete registers a hook run after each collection cycle, in
// registration order.
func (c *Collector) OnCycleComplete(hook func(ctx context.Context)) {
	c.hooks = append(c.hooks, hook)
}

// Start launches the periodic cycle: once immediately, then on every tick
// until the context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		slog.Info("collector starting", "interval", c.cfg.Interval, "adapters", len(c.adapters))

		ticker := c.clock.NewTicker(c.cfg.Interval)
		defer ticker.Stop()

		c.RunCycle(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("collector shutting down")
				return
			case <-ticker.Chan():
				c.RunCycle(ctx)
			}
		}
	}()
}

func (c *Collector) Stop() {
	c.wg.Wait()
	slog.Info("collector stopped")
}

// RunCycle executes one full collection cycle. Safe to call directly; an
// in-flight cycle being superseded by the next tick is harmless because
// observations are append-only.
func (c *Collector) RunCycle(ctx context.Context) {
	start := c.clock.Now()
	c.metrics.CollectorRunning.Set(1)
	defer func() {
		c.metrics.CollectorRunning.Set(0)
		c.metrics.CycleDuration.Observe(c.clock.Since(start).Seconds())
	}()

	regions, err := c.regions.ListRegions(ctx)
	if err != nil {
		slog.Error("cycle aborted, cannot list regions", "error", err)
		return
	}

	readings := c.collect(ctx, regions)
	stored := c.persist(ctx, regions, readings)
	c.applyThresholds(ctx, regions, stored)

	for _, hook := range c.hooks {
		hook(ctx)
	}

	slog.Info("collection cycle complete", "readings", len(readings), "duration", c.clock.Since(start))
}

// collect fans the adapters out concurrently, each under its own timeout.
// One adapter failing or timing out never affects the others.
func (c *Collector) collect(ctx context.Context, regions []models.Region) []Reading {
	var (
		mu  sync.Mutex
		all []Reading
		wg  sync.WaitGroup
	)

	for _, adapter := range c.adapters {
		wg.Add(1)
		go func(a SourceAdapter) {
			defer wg.Done()

			actx, cancel := context.WithTimeout(ctx, c.cfg.AdapterTimeout)
			defer cancel()

			var collected []Reading
			switch a.Scope() {
			case ScopePerRegion:
				for i := range regions {
					rs, err := a.Fetch(actx, &regions[i])
					if err != nil {
						slog.Warn("adapter fetch failed", "source", a.Kind(), "region", regions[i].ID, "error", err)
						c.metrics.AdapterErrors.WithLabelValues(string(a.Kind())).Inc()
						continue
					}
					collected = append(collected, rs...)
				}
			case ScopeGlobal:
				rs, err := a.Fetch(actx, nil)
				if err != nil {
					slog.Warn("adapter fetch failed", "source", a.Kind(), "error", err)
					c.metrics.AdapterErrors.WithLabelValues(string(a.Kind())).Inc()
					return
				}
				collected = rs
			}

			mu.Lock()
			all = append(all, collected...)
			mu.Unlock()
		}(adapter)
	}

	wg.Wait()
	return all
}

// persist writes each reading as an observation, flagging fingerprint
// repeats as duplicates so downstream analysis skips them.
func (c *Collector) persist(ctx context.Context, regions []models.Region, readings []Reading) []storedReading {
	stored := make([]storedReading, 0, len(readings))
	now := c.clock.Now()

	for _, r := range readings {
		if r.RegionID == "" && r.Located {
			r.RegionID = nearestRegion(regions, r.Latitude, r.Longitude)
		}

		payload, err := json.Marshal(r.Payload)
		if err != nil {
			slog.Error("cannot marshal reading payload", "source", r.Source, "error", err)
			continue
		}
		fp, err := Fingerprint(r.Payload)
		if err != nil {
			slog.Error("cannot fingerprint reading", "source", r.Source, "error", err)
			continue
		}

		prior, err := c.observations.LatestFingerprint(ctx, r.Source, r.RegionID)
		if err != nil {
			slog.Error("cannot read prior fingerprint", "source", r.Source, "error", err)
			continue
		}

		obs := &models.Observation{
			Source:      r.Source,
			RegionID:    r.RegionID,
			Payload:     payload,
			Fingerprint: fp,
			Duplicate:   prior == fp,
			CollectedAt: now,
		}
		if err := c.observations.AddObservation(ctx, obs); err != nil {
			slog.Error("cannot store observation", "source", r.Source, "error", err)
			continue
		}

		c.metrics.ObservationsStored.WithLabelValues(string(r.Source)).Inc()
		if obs.Duplicate {
			c.metrics.DuplicateObservations.WithLabelValues(string(r.Source)).Inc()
		}
		stored = append(stored, storedReading{Reading: r, observation: obs})
	}

	return stored
}

type storedReading struct {
	Reading
	observation *models.Observation
}

// applyThresholds opens disasters from simple per-source rules, skipping
// regions that already have an active disaster of the same type.
func (c *Collector) applyThresholds(ctx context.Context, regions []models.Region, stored []storedReading) {
	fireClusters := make(map[[2]int][]storedReading)

	for _, sr := range stored {
		switch p := sr.Payload.(type) {
		case weatherPayload:
			if p.RainfallMM >= c.cfg.RainfallFloodMM {
				severity := models.SeverityMedium
				if p.RainfallMM >= c.cfg.RainfallSevereMM {
					severity = models.SeverityHigh
				}
				desc := fmt.Sprintf("Rainfall of %.1fmm recorded, above the %.0fmm flood threshold.", p.RainfallMM, c.cfg.RainfallFloodMM)
				c.openDisaster(ctx, models.DisasterTypeFlood, severity, sr.RegionID, sr.Latitude, sr.Longitude, desc)
			}
		case seismicPayload:
			if p.Magnitude >= c.cfg.QuakeMinMagnitude {
				severity := models.SeverityLow
				switch {
				case p.Magnitude >= 5.5:
					severity = models.SeverityHigh
				case p.Magnitude >= 4.5:
					severity = models.SeverityMedium
				}
				desc := fmt.Sprintf("M%.1f earthquake at depth %.0fkm. %s", p.Magnitude, p.DepthKM, p.Place)
				c.openDisaster(ctx, models.DisasterTypeEarthquake, severity, sr.RegionID, sr.Latitude, sr.Longitude, desc)
			}
		case firePayload:
			// Round, don't truncate: int(lat+0.5) collapses (-1.5, 0.5)
			// into one cell south of the equator.
			key := [2]int{int(math.Round(sr.Latitude)), int(math.Round(sr.Longitude))}
			fireClusters[key] = append(fireClusters[key], sr)
		}
	}

	for _, cluster := range fireClusters {
		if len(cluster) < c.cfg.FireClusterMin {
			continue
		}
		severity := models.SeverityMedium
		if len(cluster) >= c.cfg.FireClusterHigh {
			severity = models.SeverityHigh
		}
		seed := cluster[0]
		desc := fmt.Sprintf("%d active fire hotspots detected via NASA FIRMS VIIRS satellite.", len(cluster))
		c.openDisaster(ctx, models.DisasterTypeWildfire, severity, seed.RegionID, seed.Latitude, seed.Longitude, desc)
	}
}

func (c *Collector) openDisaster(ctx context.Context, t models.DisasterType, severity models.Severity, regionID string, lat, lng float64, desc string) {
	exists, err := c.disasters.HasActiveDisaster(ctx, regionID, t)
	if err != nil {
		slog.Error("cannot check for active disaster", "region", regionID, "type", t, "error", err)
		return
	}
	if exists {
		// Ongoing event already tracked; not an error.
		slog.Debug("active disaster already tracked", "region", regionID, "type", t)
		return
	}

	d := &models.Disaster{
		ID:          uuid.NewString(),
		Type:        t,
		Severity:    severity,
		RegionID:    regionID,
		Latitude:    lat,
		Longitude:   lng,
		Description: desc,
		Origin:      models.OriginAutoDetected,
		Status:      models.DisasterStatusActive,
		ReportedAt:  c.clock.Now(),
	}
	if err := c.disasters.AddDisaster(ctx, d); err != nil {
		slog.Error("cannot create disaster", "region", regionID, "type", t, "error", err)
		return
	}

	c.metrics.DisastersCreated.WithLabelValues(string(t), string(models.OriginAutoDetected)).Inc()
	slog.Info("disaster auto-detected", "id", d.ID, "type", t, "severity", severity, "region", regionID)
}

func nearestRegion(regions []models.Region, lat, lng float64) string {
	point := models.Coordinates{Latitude: lat, Longitude: lng}
	best := ""
	bestDist := -1.0
	for i := range regions {
		d := regions[i].Coordinates().DistanceKM(point)
		if bestDist < 0 || d < bestDist {
			best = regions[i].ID
			bestDist = d
		}
	}
	return best
}
