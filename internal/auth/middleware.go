package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userKey = "vault.user_id"

// Middleware rejects requests without a valid token and records the caller's id.
// Both "Bearer <token>" and a bare token are accepted.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := s.ValidateToken(bearer(c.GetHeader(s.headerName)))
		switch {
		case errors.Is(err, ErrTokenRequired):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
		case err != nil:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token: " + err.Error()})
		default:
			c.Set(userKey, userID)
			c.Next()
		}
	}
}

// UserIDFromContext returns the id stored by Middleware.
func UserIDFromContext(c *gin.Context) (int64, bool) {
	id, ok := c.Get(userKey)
	if !ok {
		return 0, false
	}
	userID, ok := id.(int64)
	return userID, ok
}

func bearer(header string) string {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(rest)
	}
	return header
}
