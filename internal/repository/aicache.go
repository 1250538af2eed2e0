package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

// GetLiveCacheEntry returns the newest unexpired entry for the key. Older
// and expired rows are never deleted; they stay behind as the audit trail.
func (s *SQLiteDB) GetLiveCacheEntry(ctx context.Context, key models.CacheKey, now time.Time) (*models.AnalysisCacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject, fingerprint, kind, value, generated_at, expires_at
		 FROM ai_cache
		 WHERE subject = ? AND fingerprint = ? AND kind = ?
		   AND (expires_at IS NULL OR expires_at > ?)
		 ORDER BY id DESC LIMIT 1`,
		key.Subject, key.Fingerprint, key.Kind, now)

	var (
		e         models.AnalysisCacheEntry
		value     string
		expiresAt sql.NullTime
	)
	err := row.Scan(&e.ID, &e.Key.Subject, &e.Key.Fingerprint, &e.Key.Kind, &value, &e.GeneratedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching cache entry: %w", err)
	}
	e.Value = []byte(value)
	if expiresAt.Valid {
		t := expiresAt.Time
		e.ExpiresAt = &t
	}
	return &e, nil
}

func (s *SQLiteDB) AddCacheEntry(ctx context.Context, e *models.AnalysisCacheEntry) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_cache (subject, fingerprint, kind, value, generated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Key.Subject, e.Key.Fingerprint, e.Key.Kind, string(e.Value), e.GeneratedAt, e.ExpiresAt)
	if err != nil {
		return fmt.Errorf("error adding cache entry: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}
