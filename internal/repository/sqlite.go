package repository

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	// The modernc driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent component access.
	db.SetMaxOpenConns(1)

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS regions (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL UNIQUE,
			latitude    REAL NOT NULL,
			longitude   REAL NOT NULL,
			risk_score  INTEGER,
			last_scored DATETIME
		);

		CREATE TABLE IF NOT EXISTS refuge_sites (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			name      TEXT NOT NULL,
			region_id TEXT NOT NULL REFERENCES regions(id),
			latitude  REAL NOT NULL,
			longitude REAL NOT NULL,
			capacity  INTEGER NOT NULL DEFAULT 500
		);

		CREATE TABLE IF NOT EXISTS contacts (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			name      TEXT NOT NULL,
			phone     TEXT NOT NULL,
			region_id TEXT NOT NULL REFERENCES regions(id)
		);

		CREATE TABLE IF NOT EXISTS observations (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			source       TEXT NOT NULL,
			region_id    TEXT,
			payload      TEXT NOT NULL,
			fingerprint  TEXT NOT NULL,
			duplicate    INTEGER NOT NULL DEFAULT 0,
			collected_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS disasters (
			id              TEXT PRIMARY KEY,
			type            TEXT NOT NULL,
			severity        TEXT NOT NULL,
			region_id       TEXT,
			latitude        REAL NOT NULL,
			longitude       REAL NOT NULL,
			affected_people INTEGER NOT NULL DEFAULT 0,
			description     TEXT,
			origin          TEXT NOT NULL,
			status          TEXT NOT NULL,
			reported_at     DATETIME NOT NULL,
			resolved_at     DATETIME
		);

		CREATE TABLE IF NOT EXISTS alerts (
			id          TEXT PRIMARY KEY,
			disaster_id TEXT NOT NULL REFERENCES disasters(id),
			tier        INTEGER NOT NULL,
			message_en  TEXT NOT NULL,
			message_sw  TEXT NOT NULL,
			truncated   INTEGER NOT NULL DEFAULT 0,
			recipients  INTEGER NOT NULL DEFAULT 0,
			retries     INTEGER NOT NULL DEFAULT 0,
			status      TEXT NOT NULL,
			sent_at     DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS predictions (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			region_id    TEXT NOT NULL,
			threat       TEXT NOT NULL,
			probability  TEXT NOT NULL,
			time_window  TEXT NOT NULL,
			action       TEXT NOT NULL,
			generated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS workers (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			name                TEXT NOT NULL,
			role                TEXT NOT NULL,
			phone               TEXT,
			region_id           TEXT REFERENCES regions(id),
			status              TEXT NOT NULL DEFAULT 'available',
			current_disaster_id TEXT,
			latitude            REAL NOT NULL,
			longitude           REAL NOT NULL
		);

		CREATE TABLE IF NOT EXISTS ai_cache (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			subject      TEXT NOT NULL,
			fingerprint  TEXT NOT NULL,
			kind         TEXT NOT NULL,
			value        TEXT NOT NULL,
			generated_at DATETIME NOT NULL,
			expires_at   DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_observations_source_region ON observations(source, region_id, id);
		CREATE INDEX IF NOT EXISTS idx_observations_region_time ON observations(region_id, collected_at);
		CREATE INDEX IF NOT EXISTS idx_disasters_region_type ON disasters(region_id, type, status);
		CREATE INDEX IF NOT EXISTS idx_alerts_disaster_tier ON alerts(disaster_id, tier);
		CREATE INDEX IF NOT EXISTS idx_ai_cache_key ON ai_cache(subject, fingerprint, kind, id);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
