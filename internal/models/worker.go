package models

type WorkerRole string

const (
	RoleMedic       WorkerRole = "medic"
	RoleRescue      WorkerRole = "rescue"
	RoleEngineer    WorkerRole = "engineer"
	RoleLogistics   WorkerRole = "logistics"
	RoleCoordinator WorkerRole = "coordinator"
)

type WorkerStatus string

const (
	WorkerAvailable WorkerStatus = "available"
	WorkerDeployed  WorkerStatus = "deployed"
)

// Worker is a field responder. Status and CurrentDisasterID change on
// explicit assignment, never as a side effect of recommendation.
type Worker struct {
	ID                int64
	Name              string
	Role              WorkerRole
	Phone             string
	RegionID          string
	Status            WorkerStatus
	CurrentDisasterID *string // nil unless deployed
	Latitude          float64
	Longitude         float64
}

func (w *Worker) Coordinates() Coordinates {
	return Coordinates{
		Latitude:  w.Latitude,
		Longitude: w.Longitude,
	}
}
