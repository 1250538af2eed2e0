package repository

import (
	"context"
	"fmt"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

func (s *SQLiteDB) ReplacePredictions(ctx context.Context, preds []models.Prediction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting prediction replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM predictions`); err != nil {
		return fmt.Errorf("error clearing predictions: %w", err)
	}
	for _, p := range preds {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO predictions (region_id, threat, probability, time_window, action, generated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.RegionID, p.Threat, p.Probability, p.TimeWindow, p.Action, p.GeneratedAt); err != nil {
			return fmt.Errorf("error inserting prediction: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteDB) ListPredictions(ctx context.Context) ([]models.Prediction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT region_id, threat, probability, time_window, action, generated_at
		 FROM predictions ORDER BY region_id`)
	if err != nil {
		return nil, fmt.Errorf("error listing predictions: %w", err)
	}
	defer rows.Close()

	var preds []models.Prediction
	for rows.Next() {
		var p models.Prediction
		if err := rows.Scan(&p.RegionID, &p.Threat, &p.Probability, &p.TimeWindow, &p.Action, &p.GeneratedAt); err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, rows.Err()
}
