package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrRunNotFound = errors.New("campaign run not found")

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type CampaignRun struct {
	ID          string
	Subject     string
	SenderName  string
	AccountIDs  []int64
	Total       int
	Sent        int
	Failed      int
	StartedAt   time.Time
	CompletedAt *time.Time
}

type SendRecord struct {
	ID        string
	RunID     string
	Email     string
	Name      string
	AccountID int64
	Status    string
	Error     string
	CreatedAt time.Time
}

type RunRepository struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run at dispatch start. The counters are filled
// in by Complete once the loop finishes.
func (r *RunRepository) Create(run *CampaignRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	accounts, err := json.Marshal(run.AccountIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal account ids: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO campaign_runs (id, subject, sender_name, account_ids, total, sent, failed, started_at)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?)`,
		run.ID, run.Subject, run.SenderName, string(accounts), run.Total, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create campaign run: %w", err)
	}
	return nil
}

func (r *RunRepository) Complete(id string, sent, failed int) error {
	res, err := r.db.Exec(`
		UPDATE campaign_runs SET sent = ?, failed = ?, completed_at = ? WHERE id = ?`,
		sent, failed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to complete campaign run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *RunRepository) RecordSend(rec *SendRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(`
		INSERT INTO send_records (id, run_id, email, name, account_id, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RunID, rec.Email, rec.Name, rec.AccountID, rec.Status, rec.Error, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record send: %w", err)
	}
	return nil
}

func (r *RunRepository) Get(id string) (*CampaignRun, error) {
	row := r.db.QueryRow(`
		SELECT id, subject, sender_name, account_ids, total, sent, failed, started_at, completed_at
		FROM campaign_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(limit int) ([]*CampaignRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, subject, sender_name, account_ids, total, sent, failed, started_at, completed_at
		FROM campaign_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaign runs: %w", err)
	}
	defer rows.Close()

	var runs []*CampaignRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *RunRepository) Records(runID string) ([]*SendRecord, error) {
	rows, err := r.db.Query(`
		SELECT id, run_id, email, name, account_id, status, error, created_at
		FROM send_records WHERE run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list send records: %w", err)
	}
	defer rows.Close()

	var records []*SendRecord
	for rows.Next() {
		var rec SendRecord
		var name, errMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Email, &name, &rec.AccountID,
			&rec.Status, &errMsg, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan send record: %w", err)
		}
		rec.Name = name.String
		rec.Error = errMsg.String
		records = append(records, &rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*CampaignRun, error) {
	var run CampaignRun
	var senderName, accounts sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&run.ID, &run.Subject, &senderName, &accounts, &run.Total,
		&run.Sent, &run.Failed, &run.StartedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	run.SenderName = senderName.String
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if accounts.Valid && accounts.String != "" {
		if err := json.Unmarshal([]byte(accounts.String), &run.AccountIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal account ids: %w", err)
		}
	}
	return &run, nil
}
