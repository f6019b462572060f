package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"metricsync/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Journal is a write-through sqlite record of job lifecycle, so job
// outcomes survive process restarts for triage. The in-memory map in
// Queue stays authoritative while the process runs.
type Journal struct {
	db *sql.DB
}

func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS jobs (
        id TEXT PRIMARY KEY,
        source TEXT NOT NULL,
        target_date TEXT,
        state TEXT NOT NULL,
        result TEXT,
        error TEXT,
        enqueued_at TIMESTAMP NOT NULL,
        started_at TIMESTAMP,
        finished_at TIMESTAMP
    )`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) CreateJob(ctx context.Context, job *models.Job) error {
	query := `INSERT INTO jobs (id, source, target_date, state, enqueued_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := j.db.ExecContext(ctx, query, job.ID, job.Source, job.TargetDate, job.State, job.EnqueuedAt); err != nil {
		return fmt.Errorf("failed to create job row: %w", err)
	}
	return nil
}

func (j *Journal) MarkActive(ctx context.Context, jobID string) error {
	query := `UPDATE jobs SET state = ?, started_at = ? WHERE id = ?`
	if _, err := j.db.ExecContext(ctx, query, models.JobActive, time.Now(), jobID); err != nil {
		return fmt.Errorf("failed to mark job active: %w", err)
	}
	return nil
}

func (j *Journal) MarkTerminal(ctx context.Context, jobID string, state models.JobState, result *models.SyncResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	query := `UPDATE jobs SET state = ?, result = ?, error = ?, target_date = COALESCE(NULLIF(target_date, ''), ?), finished_at = ? WHERE id = ?`
	targetDate := ""
	if result != nil && result.Metrics != nil {
		targetDate = result.Metrics.Date
	}
	errMsg := ""
	if result != nil {
		errMsg = result.Error
	}
	if _, err := j.db.ExecContext(ctx, query, state, string(payload), errMsg, targetDate, time.Now(), jobID); err != nil {
		return fmt.Errorf("failed to mark job terminal: %w", err)
	}
	return nil
}

// GetJob reads one journal row; used for post-restart triage.
func (j *Journal) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	query := `SELECT id, source, target_date, state, result, enqueued_at FROM jobs WHERE id = ?`
	var job models.Job
	var resultJSON sql.NullString
	var targetDate sql.NullString
	err := j.db.QueryRowContext(ctx, query, jobID).Scan(&job.ID, &job.Source, &targetDate, &job.State, &resultJSON, &job.EnqueuedAt)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job row: %w", err)
	}
	job.TargetDate = targetDate.String
	if resultJSON.Valid && resultJSON.String != "" {
		var result models.SyncResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err == nil {
			job.Result = &result
		}
	}
	return &job, nil
}
