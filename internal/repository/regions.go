package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kdms-ke/disaster-pipeline/internal/models"
)

func (s *SQLiteDB) ListRegions(ctx context.Context) ([]models.Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, latitude, longitude, risk_score, last_scored FROM regions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("error listing regions: %w", err)
	}
	defer rows.Close()

	var regions []models.Region
	for rows.Next() {
		r, err := scanRegion(rows)
		if err != nil {
			return nil, err
		}
		regions = append(regions, *r)
	}
	return regions, rows.Err()
}

func (s *SQLiteDB) GetRegion(ctx context.Context, id string) (*models.Region, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, latitude, longitude, risk_score, last_scored FROM regions WHERE id = ?`, id)
	r, err := scanRegion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *SQLiteDB) UpdateRegionRisk(ctx context.Context, id string, score int, scoredAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE regions SET risk_score = ?, last_scored = ? WHERE id = ?`, score, scoredAt, id)
	if err != nil {
		return fmt.Errorf("error updating region risk: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteDB) CountRegionsAtRisk(ctx context.Context, minScore int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM regions WHERE risk_score >= ?`, minScore).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting regions at risk: %w", err)
	}
	return n, nil
}

func (s *SQLiteDB) ListRefugeSites(ctx context.Context, regionID string) ([]models.RefugeSite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, region_id, latitude, longitude, capacity FROM refuge_sites WHERE region_id = ?`, regionID)
	if err != nil {
		return nil, fmt.Errorf("error listing refuge sites: %w", err)
	}
	defer rows.Close()

	var sites []models.RefugeSite
	for rows.Next() {
		var site models.RefugeSite
		if err := rows.Scan(&site.ID, &site.Name, &site.RegionID, &site.Latitude, &site.Longitude, &site.Capacity); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *SQLiteDB) ListContacts(ctx context.Context, regionID string) ([]models.Contact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, region_id FROM contacts WHERE region_id = ?`, regionID)
	if err != nil {
		return nil, fmt.Errorf("error listing contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.Contact
	for rows.Next() {
		var c models.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.RegionID); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (s *SQLiteDB) AddContact(ctx context.Context, c *models.Contact) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (name, phone, region_id) VALUES (?, ?, ?)`, c.Name, c.Phone, c.RegionID)
	if err != nil {
		return fmt.Errorf("error adding contact: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegion(row rowScanner) (*models.Region, error) {
	var (
		r          models.Region
		score      sql.NullInt64
		lastScored sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Latitude, &r.Longitude, &score, &lastScored); err != nil {
		return nil, err
	}
	if score.Valid {
		v := int(score.Int64)
		r.RiskScore = &v
	}
	if lastScored.Valid {
		t := lastScored.Time
		r.LastScored = &t
	}
	return &r, nil
}
