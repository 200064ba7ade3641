package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the identity contained in an access token.
type Claims struct {
	UserID  string `json:"user_id"`
	Role    string `json:"role"`
	TokenID string `json:"token_id"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// Signer issues and verifies HS256 access tokens.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewSigner constructs a Signer. An empty secret falls back to a dev-only value.
func NewSigner(secret, issuer string, ttl time.Duration) *Signer {
	s := strings.TrimSpace(secret)
	if s == "" {
		s = "dev-secret"
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &Signer{secret: []byte(s), issuer: issuer, ttl: ttl}
}

// Issue signs a token for the given identity and returns it with its claims.
func (s *Signer) Issue(userID, role string) (string, Claims, error) {
	if strings.TrimSpace(userID) == "" {
		return "", Claims{}, errors.New("user id is required")
	}
	now := time.Now().UTC()
	claims := Claims{
		UserID:  userID,
		Role:    role,
		TokenID: uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, claims, nil
}

// Verify parses a token and returns its claims.
func (s *Signer) Verify(tokenString string) (Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return Claims{}, ErrInvalidToken
	}
	return *claims, nil
}
