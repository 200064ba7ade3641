package inspections

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new job.
func (r *PGRepo) Create(ctx context.Context, job Job) error {
	const query = `
INSERT INTO inspection_jobs (id, user_id, status, image_keys, status_seq, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	keys, err := json.Marshal(job.ImageKeys)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		string(job.Status),
		keys,
		job.StatusSeq,
		job.SubmittedAt,
	)
	return err
}

// GetByID returns a job by ID.
func (r *PGRepo) GetByID(ctx context.Context, jobID string) (Job, error) {
	const query = `
SELECT id, user_id, status, image_keys, result, error_code, error_message, failure_reason,
       status_seq, submitted_at, updated_at, completed_at
FROM inspection_jobs
WHERE id = $1
LIMIT 1`
	return scanJob(r.DB.QueryRowContext(ctx, query, jobID))
}

// ListByUser returns a user's jobs ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Job, error) {
	const query = `
SELECT id, user_id, status, image_keys, result, error_code, error_message, failure_reason,
       status_seq, submitted_at, updated_at, completed_at
FROM inspection_jobs
WHERE user_id = $1
ORDER BY submitted_at DESC
LIMIT $2 OFFSET $3`
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJobRow(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateProgress advances a non-terminal status, ignoring regressions.
// The WHERE clause enforces monotonicity so concurrent pollers cannot
// move a job backwards.
func (r *PGRepo) UpdateProgress(ctx context.Context, jobID string, status Status, seq int64) error {
	const query = `
UPDATE inspection_jobs
SET status = $2, status_seq = $3, updated_at = $4
WHERE id = $1
  AND status NOT IN ('succeeded', 'failed')
  AND status_seq <= $3
  AND status <> $2`
	_, err := r.DB.ExecContext(ctx, query, jobID, string(status), seq, time.Now().UTC())
	return err
}

// MarkTerminal records a terminal state with at-most-one transition semantics.
func (r *PGRepo) MarkTerminal(ctx context.Context, jobID string, update TerminalUpdate) (Job, bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Job{}, false, err
	}
	defer tx.Rollback()

	const selectQuery = `
SELECT id, user_id, status, image_keys, result, error_code, error_message, failure_reason,
       status_seq, submitted_at, updated_at, completed_at
FROM inspection_jobs
WHERE id = $1
FOR UPDATE`
	job, err := scanJob(tx.QueryRowContext(ctx, selectQuery, jobID))
	if err != nil {
		return Job{}, false, err
	}

	recorded := false
	if job.Status.Terminal() {
		overridable := job.FailureReason == ReasonAnalysisTimeout
		if !update.Authoritative || !overridable || (job.CompletedAt != nil && !update.ReportedAt.After(*job.CompletedAt)) {
			if err := tx.Commit(); err != nil {
				return Job{}, false, err
			}
			return job, false, nil
		}
	} else {
		recorded = true
	}

	job = applyTerminal(job, update)

	const updateQuery = `
UPDATE inspection_jobs
SET status = $2, result = $3, error_code = $4, error_message = $5, failure_reason = $6,
    status_seq = $7, updated_at = $8, completed_at = $9
WHERE id = $1`
	var resultPayload any
	if job.Result != nil {
		data, err := json.Marshal(job.Result)
		if err != nil {
			return Job{}, false, err
		}
		resultPayload = data
	}
	if _, err := tx.ExecContext(ctx, updateQuery,
		job.ID,
		string(job.Status),
		resultPayload,
		nullString(job.ErrorCode),
		nullString(job.ErrorMessage),
		nullString(job.FailureReason),
		job.StatusSeq,
		job.UpdatedAt,
		job.CompletedAt,
	); err != nil {
		return Job{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Job{}, false, err
	}
	return job, recorded, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row *sql.Row) (Job, error) {
	job, err := scanJobRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	return job, err
}

func scanJobRow(row rowScanner) (Job, error) {
	var job Job
	var status string
	var imageKeys []byte
	var result sql.NullString
	var errorCode, errorMessage, failureReason sql.NullString
	var updatedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&status,
		&imageKeys,
		&result,
		&errorCode,
		&errorMessage,
		&failureReason,
		&job.StatusSeq,
		&job.SubmittedAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return Job{}, err
	}

	job.Status = Status(status)
	if len(imageKeys) > 0 {
		if err := json.Unmarshal(imageKeys, &job.ImageKeys); err != nil {
			return Job{}, err
		}
	}
	if result.Valid && result.String != "" {
		var parsed Result
		if err := json.Unmarshal([]byte(result.String), &parsed); err != nil {
			return Job{}, err
		}
		job.Result = &parsed
	}
	job.ErrorCode = errorCode.String
	job.ErrorMessage = errorMessage.String
	job.FailureReason = failureReason.String
	if updatedAt.Valid {
		t := updatedAt.Time
		job.UpdatedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
