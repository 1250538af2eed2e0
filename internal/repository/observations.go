package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

func (s *SQLiteDB) AddObservation(ctx context.Context, o *models.Observation) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO observations (source, region_id, payload, fingerprint, duplicate, collected_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.Source, o.RegionID, string(o.Payload), o.Fingerprint, o.Duplicate, o.CollectedAt)
	if err != nil {
		return fmt.Errorf("error adding observation: %w", err)
	}
	o.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteDB) LatestFingerprint(ctx context.Context, source models.SourceKind, regionID string) (string, error) {
	var fp string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM observations WHERE source = ? AND region_id = ? ORDER BY id DESC LIMIT 1`,
		source, regionID).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error fetching latest fingerprint: %w", err)
	}
	return fp, nil
}

func (s *SQLiteDB) ListFreshObservations(ctx context.Context, regionID string, since *time.Time) ([]models.Observation, error) {
	query := `SELECT id, source, region_id, payload, fingerprint, duplicate, collected_at
		FROM observations
		WHERE region_id = ? AND duplicate = 0 AND source != ?`
	args := []any{regionID, models.SourceForecast}
	if since != nil {
		query += ` AND collected_at > ?`
		args = append(args, *since)
	}
	query += ` ORDER BY collected_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing fresh observations: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func (s *SQLiteDB) LatestForecasts(ctx context.Context) ([]models.Observation, error) {
	// Latest forecast row per region.
	rows, err := s.db.QueryContext(ctx,
		`SELECT o.id, o.source, o.region_id, o.payload, o.fingerprint, o.duplicate, o.collected_at
		 FROM observations o
		 JOIN (SELECT region_id, MAX(id) AS max_id FROM observations WHERE source = ? GROUP BY region_id) latest
		   ON o.id = latest.max_id
		 ORDER BY o.region_id`,
		models.SourceForecast)
	if err != nil {
		return nil, fmt.Errorf("error listing latest forecasts: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func scanObservations(rows *sql.Rows) ([]models.Observation, error) {
	var obs []models.Observation
	for rows.Next() {
		var (
			o       models.Observation
			payload string
		)
		if err := rows.Scan(&o.ID, &o.Source, &o.RegionID, &payload, &o.Fingerprint, &o.Duplicate, &o.CollectedAt); err != nil {
			return nil, err
		}
		o.Payload = []byte(payload)
		obs = append(obs, o)
	}
	return obs, rows.Err()
}
