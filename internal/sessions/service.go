package sessions

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DedovInside/AutoInspect/internal/shared/auth"
	"github.com/DedovInside/AutoInspect/internal/shared/telemetry"
)

const (
	minPasswordLen = 8
	minUsernameLen = 3
	maxUsernameLen = 50
)

// AuditRecorder receives best-effort audit events for account activity.
type AuditRecorder interface {
	Record(ctx context.Context, action, userID string, details map[string]any)
}

// Service contains business logic for registration, login and session verification.
type Service struct {
	Repo       Repo
	Signer     *auth.Signer
	Revoker    Revoker
	Audit      AuditRecorder
	BcryptCost int
}

// NewService constructs a Service.
func NewService(repo Repo, signer *auth.Signer, revoker Revoker, bcryptCost int) *Service {
	return &Service{Repo: repo, Signer: signer, Revoker: revoker, BcryptCost: bcryptCost}
}

func (s *Service) audit(ctx context.Context, action, userID string) {
	if s.Audit != nil {
		s.Audit.Record(ctx, action, userID, nil)
	}
}

// Register creates an account and returns a fresh session.
// Fails with ErrConflict when the identity already exists.
func (s *Service) Register(ctx context.Context, email, username, password string) (Session, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if err := validateCredentials(email, username, password); err != nil {
		return Session{}, err
	}

	hash, err := HashPassword(password, s.BcryptCost)
	if err != nil {
		return Session{}, err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return Session{}, err
	}

	telemetry.Info("session.registered", map[string]any{"user_id": user.ID})
	s.audit(ctx, "user.registered", user.ID)
	return s.issueSession(user)
}

// Login verifies credentials and returns a fresh session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	user, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := CheckPassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	if err := s.Repo.UpdateLastLogin(ctx, user.ID); err != nil {
		telemetry.Error("session.last_login_update_failed", map[string]any{"user_id": user.ID, "error": err.Error()})
	}

	telemetry.Info("session.login", map[string]any{"user_id": user.ID})
	s.audit(ctx, "user.login", user.ID)
	return s.issueSession(user)
}

// Logout revokes the token behind the session. It is idempotent and always
// succeeds locally; revocation store failures are logged, not surfaced.
func (s *Service) Logout(ctx context.Context, token string) {
	if strings.TrimSpace(token) == "" {
		return
	}
	claims, err := s.Signer.Verify(token)
	if err != nil {
		return
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.Revoker.Revoke(ctx, claims.TokenID, ttl); err != nil {
		telemetry.Error("session.revoke_failed", map[string]any{"user_id": claims.UserID, "error": err.Error()})
		return
	}
	telemetry.Info("session.logout", map[string]any{"user_id": claims.UserID})
	s.audit(ctx, "user.logout", claims.UserID)
}

// VerifyToken validates a bearer token and rejects revoked sessions.
func (s *Service) VerifyToken(ctx context.Context, token string) (auth.Claims, error) {
	claims, err := s.Signer.Verify(token)
	if err != nil {
		return auth.Claims{}, err
	}
	revoked, err := s.Revoker.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		// Revocation store unavailable: fail closed for safety.
		return auth.Claims{}, err
	}
	if revoked {
		return auth.Claims{}, auth.ErrInvalidToken
	}
	return claims, nil
}

// CurrentUser loads the account behind a verified session.
func (s *Service) CurrentUser(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) issueSession(user User) (Session, error) {
	token, claims, err := s.Signer.Issue(user.ID, string(user.Role))
	if err != nil {
		return Session{}, err
	}
	return Session{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		Token:    token,
		TokenID:  claims.TokenID,
	}, nil
}

func validateCredentials(email, username, password string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidInput
	}
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return ErrInvalidInput
	}
	if len(password) < minPasswordLen {
		return ErrInvalidInput
	}
	return nil
}
