package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BhargavCodes/ai-vault/internal/apperr"
)

// TokenClaims is what the bearer token says about itself. It is read without
// verifying the signature and is for display only.
type TokenClaims struct {
	UserID    int64
	ExpiresAt time.Time
}

// Expired reports whether the token's exp lies before now.
func (c TokenClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

type wireClaims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Claims decodes the current token's payload.
func (s *Service) Claims() (TokenClaims, error) {
	const op = "token claims"
	token := s.Snapshot().Token
	if token == "" {
		return TokenClaims{}, apperr.Precondition(op, "login required")
	}
	var wc wireClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &wc); err != nil {
		return TokenClaims{}, apperr.New(apperr.KindAuth, op, fmt.Errorf("parse token: %w", err))
	}
	out := TokenClaims{UserID: wc.UserID}
	if wc.ExpiresAt != nil {
		out.ExpiresAt = wc.ExpiresAt.Time
	}
	return out, nil
}
