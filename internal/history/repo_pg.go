package history

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Append stores the entry. ON CONFLICT DO NOTHING keeps the append idempotent
// per job.
func (r *PGRepo) Append(ctx context.Context, entry Entry) error {
	const query = `
INSERT INTO history_entries (job_id, user_id, status, failure_reason, finding_count, overall_score, submitted_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (job_id) DO NOTHING`
	_, err := r.DB.ExecContext(ctx, query,
		entry.JobID,
		entry.UserID,
		entry.Status,
		nullString(entry.FailureReason),
		entry.FindingCount,
		entry.OverallScore,
		entry.SubmittedAt,
		entry.CompletedAt,
	)
	return err
}

// GetByJobID returns the entry for a job.
func (r *PGRepo) GetByJobID(ctx context.Context, jobID string) (Entry, error) {
	const query = `
SELECT job_id, user_id, status, failure_reason, finding_count, overall_score, submitted_at, completed_at
FROM history_entries
WHERE job_id = $1
LIMIT 1`
	entry, err := scanEntry(r.DB.QueryRowContext(ctx, query, jobID))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return entry, err
}

// ListByUser returns a user's entries newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Entry, error) {
	const query = `
SELECT job_id, user_id, status, failure_reason, finding_count, overall_score, submitted_at, completed_at
FROM history_entries
WHERE user_id = $1
ORDER BY submitted_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// ListAll returns all entries newest-first.
func (r *PGRepo) ListAll(ctx context.Context, limit, offset int) ([]Entry, error) {
	const query = `
SELECT job_id, user_id, status, failure_reason, finding_count, overall_score, submitted_at, completed_at
FROM history_entries
ORDER BY submitted_at DESC
LIMIT $1 OFFSET $2`
	rows, err := r.DB.QueryContext(ctx, query, normalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func collectEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var entry Entry
	var failureReason sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(
		&entry.JobID,
		&entry.UserID,
		&entry.Status,
		&failureReason,
		&entry.FindingCount,
		&entry.OverallScore,
		&entry.SubmittedAt,
		&completedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	entry.FailureReason = failureReason.String
	if completedAt.Valid {
		t := completedAt.Time
		entry.CompletedAt = &t
	}
	return entry, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
