// Package auth supplies connection tokens to realtime clients and validates
// them on the server side.
//
// A client resolves its TokenProvider on every connection attempt, so a
// provider that refreshes tokens keeps reconnects authenticated. Servers
// validate the token query parameter with a TokenValidator.
package auth

import (
	"context"
	"time"
)

// TokenProvider returns the token to attach to the next connection URI.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider that always returns the same token.
type StaticToken string

// Token implements TokenProvider.
func (t StaticToken) Token(context.Context) (string, error) {
	return string(t), nil
}

// TokenFunc adapts a function to the TokenProvider interface.
type TokenFunc func(ctx context.Context) (string, error)

// Token calls f(ctx).
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// TokenValidator verifies a token presented by a connecting client and
// returns the user it belongs to.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*UserInfo, error)
}

// UserInfo represents authenticated user information.
type UserInfo struct {
	// ID is the unique user identifier
	ID string `json:"id"`

	// Username is the user's login name
	Username string `json:"username"`

	// Roles assigned to the user
	Roles []string `json:"roles,omitempty"`

	// ExpiresAt indicates when the token stops being valid
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// AuthError represents authentication and authorization errors.
type AuthError struct {
	// Code is the error code (e.g., "token_invalid", "token_expired")
	Code string

	// Message provides human-readable error details
	Message string

	// Details contains additional error context
	Details map[string]interface{}
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return e.Message
}

// Common authentication error codes
const (
	ErrTokenMissing      = "token_missing"
	ErrTokenExpired      = "token_expired"
	ErrTokenInvalid      = "token_invalid"
	ErrTokenRevoked      = "token_revoked"
	ErrRateLimited       = "rate_limited"
	ErrInvalidCredential = "invalid_credentials"
)

// NewAuthError creates a new authentication error.
func NewAuthError(code, message string) *AuthError {
	return &AuthError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the authentication error.
func (e *AuthError) WithDetail(key string, value interface{}) *AuthError {
	e.Details[key] = value
	return e
}
