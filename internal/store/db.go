// Package store keeps a local, write-behind record of completed
// campaign runs. It is never read by the dispatch loop: a crash still
// loses in-flight progress, the history exists only for the user to
// review afterwards.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func New(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{db}, nil
}

func (db *DB) Migrate() error {
	migrations := []string{
		migrationCampaignRuns,
		migrationSendRecords,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

const migrationCampaignRuns = `
CREATE TABLE IF NOT EXISTS campaign_runs (
    id TEXT PRIMARY KEY,
    subject TEXT NOT NULL,
    sender_name TEXT,
    account_ids JSON,
    total INTEGER NOT NULL,
    sent INTEGER DEFAULT 0,
    failed INTEGER DEFAULT 0,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_campaign_runs_started ON campaign_runs(started_at);
`

const migrationSendRecords = `
CREATE TABLE IF NOT EXISTS send_records (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES campaign_runs(id) ON DELETE CASCADE,
    email TEXT NOT NULL,
    name TEXT,
    account_id INTEGER,
    status TEXT NOT NULL,
    error TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_send_records_run ON send_records(run_id);
CREATE INDEX IF NOT EXISTS idx_send_records_status ON send_records(status);
`
