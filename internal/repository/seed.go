package repository

import (
	"context"
	"fmt"
)

type seedRegion struct {
	id   string
	name string
	lat  float64
	lng  float64
}

// Counties monitored by the pipeline. Centroids are approximate county
// centres; risk scores start unset and are filled by the scoring engine.
var seedRegions = []seedRegion{
	{"baringo", "Baringo", 0.4919, 35.7430},
	{"garissa", "Garissa", -0.4536, 39.6461},
	{"isiolo", "Isiolo", 0.3546, 37.5822},
	{"kilifi", "Kilifi", -3.5107, 39.9093},
	{"kisumu", "Kisumu", -0.0917, 34.7680},
	{"kitui", "Kitui", -1.3668, 38.0106},
	{"machakos", "Machakos", -1.5177, 37.2634},
	{"mandera", "Mandera", 3.9366, 41.8670},
	{"marsabit", "Marsabit", 2.3342, 37.9899},
	{"mombasa", "Mombasa", -4.0435, 39.6682},
	{"nairobi", "Nairobi", -1.2864, 36.8172},
	{"nakuru", "Nakuru", -0.3031, 36.0800},
	{"samburu", "Samburu", 1.2153, 36.9541},
	{"tana-river", "Tana River", -1.6519, 39.6516},
	{"turkana", "Turkana", 3.1219, 35.5973},
	{"wajir", "Wajir", 1.7471, 40.0573},
}

// Seed populates reference data on first start. Inserts are idempotent so
// restarts leave existing rows (and their risk scores) alone.
func (s *SQLiteDB) Seed(ctx context.Context) error {
	for _, r := range seedRegions {
		if _, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO regions (id, name, latitude, longitude) VALUES (?, ?, ?, ?)`,
			r.id, r.name, r.lat, r.lng); err != nil {
			return fmt.Errorf("error seeding region %s: %w", r.id, err)
		}
	}

	refuges := []struct {
		name     string
		regionID string
		lat, lng float64
		capacity int
	}{
		{"Hola Stadium Camp", "tana-river", -1.4963, 40.0300, 2000},
		{"Garsen Primary Grounds", "tana-river", -2.2661, 40.1197, 800},
		{"Garissa Primary School", "garissa", -0.4569, 39.6583, 1200},
		{"Lodwar County Hall", "turkana", 3.1191, 35.5973, 1500},
		{"Kisumu Showground", "kisumu", -0.0754, 34.7400, 2500},
		{"Moi Stadium Annex", "mombasa", -4.0381, 39.6400, 1800},
		{"Nakuru ASK Grounds", "nakuru", -0.3111, 36.0667, 3000},
	}
	for _, rf := range refuges {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO refuge_sites (name, region_id, latitude, longitude, capacity)
			 SELECT ?, ?, ?, ?, ?
			 WHERE NOT EXISTS (SELECT 1 FROM refuge_sites WHERE name = ?)`,
			rf.name, rf.regionID, rf.lat, rf.lng, rf.capacity, rf.name); err != nil {
			return fmt.Errorf("error seeding refuge site %s: %w", rf.name, err)
		}
	}

	workers := []struct {
		name     string
		role     string
		phone    string
		regionID string
		lat, lng float64
	}{
		{"Amina Wako", "medic", "+254700000101", "tana-river", -1.6402, 39.6489},
		{"John Ekai", "rescue", "+254700000102", "turkana", 3.1100, 35.6100},
		{"Grace Atieno", "coordinator", "+254700000103", "kisumu", -0.0910, 34.7600},
		{"Hassan Abdi", "logistics", "+254700000104", "garissa", -0.4600, 39.6400},
		{"Peter Mwangi", "engineer", "+254700000105", "nairobi", -1.2921, 36.8219},
		{"Fatuma Noor", "medic", "+254700000106", "mandera", 3.9300, 41.8600},
	}
	for _, w := range workers {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO workers (name, role, phone, region_id, latitude, longitude)
			 SELECT ?, ?, ?, ?, ?, ?
			 WHERE NOT EXISTS (SELECT 1 FROM workers WHERE phone = ?)`,
			w.name, w.role, w.phone, w.regionID, w.lat, w.lng, w.phone); err != nil {
			return fmt.Errorf("error seeding worker %s: %w", w.name, err)
		}
	}

	contacts := []struct {
		name     string
		phone    string
		regionID string
	}{
		{"Tana River Chief Office", "+254711000201", "tana-river"},
		{"Garsen Community Radio", "+254711000202", "tana-river"},
		{"Garissa Ward Admin", "+254711000203", "garissa"},
		{"Lodwar Relief Committee", "+254711000204", "turkana"},
		{"Kisumu Red Cross Branch", "+254711000205", "kisumu"},
	}
	for _, c := range contacts {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO contacts (name, phone, region_id)
			 SELECT ?, ?, ?
			 WHERE NOT EXISTS (SELECT 1 FROM contacts WHERE phone = ?)`,
			c.name, c.phone, c.regionID, c.phone); err != nil {
			return fmt.Errorf("error seeding contact %s: %w", c.name, err)
		}
	}

	return nil
}
