package audit

import (
	"context"
	"database/sql"
	"encoding/json"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Insert appends the entry.
func (r *PGRepo) Insert(ctx context.Context, entry Entry) error {
	const query = `
INSERT INTO audit_log (user_id, action, entity_type, entity_id, request_id, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	var details any
	if len(entry.Details) > 0 {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return err
		}
		details = data
	}
	_, err := r.DB.ExecContext(ctx, query,
		nullString(entry.UserID),
		entry.Action,
		nullString(entry.EntityType),
		nullString(entry.EntityID),
		nullString(entry.RequestID),
		details,
		entry.CreatedAt,
	)
	return err
}

// ListRecent returns entries newest-first.
func (r *PGRepo) ListRecent(ctx context.Context, limit, offset int) ([]Entry, error) {
	const query = `
SELECT id, user_id, action, entity_type, entity_id, request_id, details, created_at
FROM audit_log
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var userID, entityType, entityID, requestID sql.NullString
		var details []byte
		if err := rows.Scan(&entry.ID, &userID, &entry.Action, &entityType, &entityID, &requestID, &details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.UserID = userID.String
		entry.EntityType = entityType.String
		entry.EntityID = entityID.String
		entry.RequestID = requestID.String
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
