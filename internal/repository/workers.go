package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

func (s *SQLiteDB) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	return s.listWorkers(ctx, "")
}

func (s *SQLiteDB) ListAvailableWorkers(ctx context.Context) ([]models.Worker, error) {
	return s.listWorkers(ctx, models.WorkerAvailable)
}

func (s *SQLiteDB) listWorkers(ctx context.Context, status models.WorkerStatus) ([]models.Worker, error) {
	query := `SELECT id, name, role, phone, region_id, status, current_disaster_id, latitude, longitude FROM workers`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing workers: %w", err)
	}
	defer rows.Close()

	var workers []models.Worker
	for rows.Next() {
		var (
			w        models.Worker
			disaster sql.NullString
		)
		if err := rows.Scan(&w.ID, &w.Name, &w.Role, &w.Phone, &w.RegionID, &w.Status, &disaster, &w.Latitude, &w.Longitude); err != nil {
			return nil, err
		}
		if disaster.Valid {
			id := disaster.String
			w.CurrentDisasterID = &id
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// AssignWorker flips an available worker to deployed in one guarded update,
// so two concurrent assignments of the same worker cannot both succeed.
func (s *SQLiteDB) AssignWorker(ctx context.Context, workerID int64, disasterID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE workers SET status = ?, current_disaster_id = ? WHERE id = ? AND status = ?`,
		models.WorkerDeployed, disasterID, workerID, models.WorkerAvailable)
	if err != nil {
		return fmt.Errorf("error assigning worker: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrWorkerUnavailable
	}
	return nil
}

func (s *SQLiteDB) CountWorkersByStatus(ctx context.Context, status models.WorkerStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM workers WHERE status = ?`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting workers: %w", err)
	}
	return n, nil
}
