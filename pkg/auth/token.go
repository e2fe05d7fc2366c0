// Package auth provides read-only inspection of the externally supplied
// access token. The surrounding application owns authentication and
// session management; this package only decodes claims so the client can
// warn when it is handed a token that is already dead.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims represents the decoded JWT claims of the access token.
type TokenClaims struct {
	SchoolID string `json:"school_id"` // Tenant scope
	jwt.RegisteredClaims
}

// ParseUnverified decodes a JWT without verifying its signature. The
// token was issued to us by the backend; we only read its claims for
// diagnostics, we never make trust decisions from them.
func ParseUnverified(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}

	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	return claims, nil
}

// IsExpired reports whether the token carries an exp claim in the past.
// Tokens without an exp claim never expire.
func (c *TokenClaims) IsExpired() bool {
	return c.ExpiresAt != nil && time.Now().After(c.ExpiresAt.Time)
}

// ExpiresIn returns the duration until expiration, zero when the token
// carries no exp claim.
func (c *TokenClaims) ExpiresIn() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}

	return time.Until(c.ExpiresAt.Time)
}
