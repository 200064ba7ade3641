package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/DedovInside/AutoInspect/internal/shared/auth"
	"github.com/DedovInside/AutoInspect/internal/shared/server/respond"
)

const (
	userIDKey  = "userId"
	roleKey    = "userRole"
	tokenIDKey = "tokenId"
)

// TokenVerifier validates a bearer token and returns the identity it carries.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (auth.Claims, error)
}

// Auth validates bearer tokens and stores identity in context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		token := bearerToken(c)
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := verifier.VerifyToken(c.Request.Context(), token)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(roleKey, claims.Role)
		c.Set(tokenIDKey, claims.TokenID)
		c.Next()
	}
}

// RequireAdmin blocks requests whose session role is not admin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if RoleFromContext(c) != "admin" {
			respond.Error(c, http.StatusForbidden, "forbidden", "admin role required", nil)
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// RoleFromContext fetches the session role set by the auth middleware.
func RoleFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(roleKey)
	if role, ok := val.(string); ok {
		return role
	}
	return ""
}

// TokenIDFromContext fetches the token ID set by the auth middleware.
func TokenIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(tokenIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
