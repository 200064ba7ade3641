package sessions

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new user.
func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, username, password_hash, role, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		strings.ToLower(user.Email),
		user.Username,
		user.PasswordHash,
		string(user.Role),
		user.CreatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "duplicate key") {
		return ErrConflict
	}
	return err
}

// GetByID returns a user by ID.
func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `
SELECT id, email, username, password_hash, role, created_at, last_login
FROM users
WHERE id = $1
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, userID))
}

// GetByEmail returns a user by email, case-insensitive.
func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	const query = `
SELECT id, email, username, password_hash, role, created_at, last_login
FROM users
WHERE email = $1
LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, strings.ToLower(email)))
}

// UpdateLastLogin stamps the user's last login time.
func (r *PGRepo) UpdateLastLogin(ctx context.Context, userID string) error {
	const query = `UPDATE users SET last_login = $2 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, userID, time.Now().UTC())
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) scanOne(row *sql.Row) (User, error) {
	var user User
	var role string
	var lastLogin sql.NullTime
	err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash, &role, &user.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	user.Role = Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return user, nil
}
