package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

func (s *SQLiteDB) AddDisaster(ctx context.Context, d *models.Disaster) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO disasters (id, type, severity, region_id, latitude, longitude,
		   affected_people, description, origin, status, reported_at, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Type, d.Severity, d.RegionID, d.Latitude, d.Longitude,
		d.AffectedPeople, d.Description, d.Origin, d.Status, d.ReportedAt, d.ResolvedAt)
	if err != nil {
		return fmt.Errorf("error adding disaster: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetDisaster(ctx context.Context, id string) (*models.Disaster, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, severity, region_id, latitude, longitude, affected_people,
		   description, origin, status, reported_at, resolved_at
		 FROM disasters WHERE id = ?`, id)
	d, err := scanDisaster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func (s *SQLiteDB) ListDisasters(ctx context.Context, status models.DisasterStatus) ([]models.Disaster, error) {
	query := `SELECT id, type, severity, region_id, latitude, longitude, affected_people,
		description, origin, status, reported_at, resolved_at FROM disasters`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY reported_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing disasters: %w", err)
	}
	defer rows.Close()

	var disasters []models.Disaster
	for rows.Next() {
		d, err := scanDisaster(rows)
		if err != nil {
			return nil, err
		}
		disasters = append(disasters, *d)
	}
	return disasters, rows.Err()
}

func (s *SQLiteDB) HasActiveDisaster(ctx context.Context, regionID string, t models.DisasterType) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM disasters WHERE region_id = ? AND type = ? AND status = ?`,
		regionID, t, models.DisasterStatusActive).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("error checking active disaster: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteDB) ResolveDisaster(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE disasters SET status = ?, resolved_at = ? WHERE id = ? AND status = ?`,
		models.DisasterStatusResolved, at, id, models.DisasterStatusActive)
	if err != nil {
		return fmt.Errorf("error resolving disaster: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, getErr := s.GetDisaster(ctx, id); getErr != nil {
			return getErr
		}
		return ErrAlreadyResolved
	}
	return nil
}

func scanDisaster(row rowScanner) (*models.Disaster, error) {
	var (
		d          models.Disaster
		resolvedAt sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.Type, &d.Severity, &d.RegionID, &d.Latitude, &d.Longitude,
		&d.AffectedPeople, &d.Description, &d.Origin, &d.Status, &d.ReportedAt, &resolvedAt); err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		d.ResolvedAt = &t
	}
	return &d, nil
}
