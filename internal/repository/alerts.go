package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

func (s *SQLiteDB) AddAlert(ctx context.Context, a *models.Alert) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, disaster_id, tier, message_en, message_sw, truncated, recipients, retries, status, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.DisasterID, a.Tier, a.MessageEN, a.MessageSW, a.Truncated, a.Recipients, a.Retries, a.Status, a.SentAt)
	if err != nil {
		return fmt.Errorf("error adding alert: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetAlertByTier(ctx context.Context, disasterID string, tier int) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, disaster_id, tier, message_en, message_sw, truncated, recipients, retries, status, sent_at
		 FROM alerts WHERE disaster_id = ? AND tier = ?
		 ORDER BY sent_at DESC LIMIT 1`, disasterID, tier)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (s *SQLiteDB) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, disaster_id, tier, message_en, message_sw, truncated, recipients, retries, status, sent_at
		 FROM alerts ORDER BY sent_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("error listing alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	if err := row.Scan(&a.ID, &a.DisasterID, &a.Tier, &a.MessageEN, &a.MessageSW,
		&a.Truncated, &a.Recipients, &a.Retries, &a.Status, &a.SentAt); err != nil {
		return nil, err
	}
	return &a, nil
}
