// Package dispatch ranks available field workers for an active disaster and
// performs the explicit assignment. Recommendation is read-only; nothing
// changes until an operator assigns.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kdms-ke/disaster-pipeline/internal/ai"
	"github.com/kdms-ke/disaster-pipeline/internal/models"
	"github.com/kdms-ke/disaster-pipeline/internal/repository"
)

// ErrNoWorkersAvailable is returned when every field worker is deployed.
var ErrNoWorkersAvailable = errors.New("dispatch: no available workers")

// ErrDisasterNotActive is returned when recommending or assigning against a
// resolved disaster.
var ErrDisasterNotActive = errors.New("dispatch: disaster is not active")

const (
	roleWeight      = 0.7
	proximityWeight = 0.3
	// Score granted to a role with no suitability mapping for the disaster
	// type; keeps unlisted roles rankable without favouring them.
	roleBaseline = 0.2
)

// roleSuitability scores how well each role fits each disaster type, in
// [0,1]. Coordinators sit mid-table everywhere: useful, rarely the first
// responder.
var roleSuitability = map[models.DisasterType]map[models.WorkerRole]float64{
	models.DisasterTypeFlood: {
		models.RoleRescue:      1.0,
		models.RoleMedic:       0.8,
		models.RoleLogistics:   0.6,
		models.RoleCoordinator: 0.5,
		models.RoleEngineer:    0.4,
	},
	models.DisasterTypeWildfire: {
		models.RoleRescue:      1.0,
		models.RoleMedic:       0.7,
		models.RoleCoordinator: 0.5,
		models.RoleLogistics:   0.5,
		models.RoleEngineer:    0.3,
	},
	models.DisasterTypeEarthquake: {
		models.RoleRescue:      1.0,
		models.RoleEngineer:    0.9,
		models.RoleMedic:       0.8,
		models.RoleCoordinator: 0.5,
		models.RoleLogistics:   0.5,
	},
	models.DisasterTypeDrought: {
		models.RoleLogistics:   1.0,
		models.RoleCoordinator: 0.7,
		models.RoleMedic:       0.6,
		models.RoleEngineer:    0.4,
		models.RoleRescue:      0.3,
	},
	models.DisasterTypeLandslide: {
		models.RoleRescue:      1.0,
		models.RoleEngineer:    0.8,
		models.RoleMedic:       0.8,
		models.RoleCoordinator: 0.5,
		models.RoleLogistics:   0.5,
	},
}

// Candidate is one ranked worker with its score breakdown.
type Candidate struct {
	Worker     models.Worker `json:"worker"`
	Score      float64       `json:"score"`
	RoleScore  float64       `json:"role_score"`
	DistanceKM float64       `json:"distance_km"`
}

// Recommendation ranks every available worker for a disaster. Rationale is
// best-effort AI text and may be empty.
type Recommendation struct {
	DisasterID  string      `json:"disaster_id"`
	Recommended Candidate   `json:"recommended"`
	Candidates  []Candidate `json:"candidates"`
	Rationale   string      `json:"rationale,omitempty"`
}

type Recommender struct {
	client    ai.Client
	disasters repository.DisasterStore
	workers   repository.WorkerStore
	aiTimeout time.Duration
}

func NewRecommender(client ai.Client, disasters repository.DisasterStore, workers repository.WorkerStore, aiTimeout time.Duration) *Recommender {
	return &Recommender{
		client:    client,
		disasters: disasters,
		workers:   workers,
		aiTimeout: aiTimeout,
	}
}

// Recommend ranks all available workers for the disaster. The rationale call
// degrades silently: a ranking without prose is still a ranking.
func (r *Recommender) Recommend(ctx context.Context, disasterID string) (*Recommendation, error) {
	d, err := r.disasters.GetDisaster(ctx, disasterID)
	if err != nil {
		return nil, fmt.Errorf("error loading disaster: %w", err)
	}
	if d.Status != models.DisasterStatusActive {
		return nil, ErrDisasterNotActive
	}

	available, err := r.workers.ListAvailableWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing available workers: %w", err)
	}
	if len(available) == 0 {
		return nil, ErrNoWorkersAvailable
	}

	site := d.Coordinates()
	candidates := make([]Candidate, len(available))
	for i, w := range available {
		role := suitability(d.Type, w.Role)
		dist := w.Coordinates().DistanceKM(site)
		candidates[i] = Candidate{
			Worker:     w,
			RoleScore:  role,
			DistanceKM: dist,
			Score:      roleWeight*role + proximityWeight*proximity(dist),
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	rec := &Recommendation{
		DisasterID:  d.ID,
		Recommended: candidates[0],
		Candidates:  candidates,
	}

	cctx, cancel := context.WithTimeout(ctx, r.aiTimeout)
	defer cancel()
	top := rec.Recommended
	rationale, err := r.client.Generate(cctx, ai.RationalePrompt(d, &top.Worker, top.DistanceKM))
	if err != nil {
		slog.Warn("dispatch rationale unavailable", "disaster", d.ID, "error", err)
	} else {
		rec.Rationale = rationale
	}

	return rec, nil
}

// Assign deploys a worker on a disaster. The store enforces that only an
// available worker can be taken.
func (r *Recommender) Assign(ctx context.Context, disasterID string, workerID int64) error {
	d, err := r.disasters.GetDisaster(ctx, disasterID)
	if err != nil {
		return fmt.Errorf("error loading disaster: %w", err)
	}
	if d.Status != models.DisasterStatusActive {
		return ErrDisasterNotActive
	}

	if err := r.workers.AssignWorker(ctx, workerID, d.ID); err != nil {
		return err
	}
	slog.Info("worker assigned", "worker", workerID, "disaster", d.ID)
	return nil
}

func suitability(t models.DisasterType, role models.WorkerRole) float64 {
	if m, ok := roleSuitability[t]; ok {
		if s, ok := m[role]; ok {
			return s
		}
	}
	return roleBaseline
}

// proximity maps distance to (0,1]; 10 km halves the score.
func proximity(distKM float64) float64 {
	return 1 / (1 + distKM/10)
}
