// Package auth verifies the bearer tokens presented to the API. Accounts live
// outside this service; a token's subject is taken as the user id.
package auth

import (
	"context"
	"time"
)

// JWTService issues and validates access tokens.
type JWTService interface {
	// GenerateToken creates a signed access token whose subject is userID.
	GenerateToken(ctx context.Context, userID string) (string, error)

	// ValidateToken checks the signature and time claims of tokenString and
	// returns its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the validated fields of an access token.
type Claims struct {
	// UserID is the token subject.
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}
