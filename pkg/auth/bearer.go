package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// BearerTokenProvider issues opaque random tokens and validates them.
// Tokens live in memory, which suits the development server and tests.
type BearerTokenProvider struct {
	tokens map[string]*tokenInfo
	mu     sync.RWMutex

	// Configuration
	tokenExpiry time.Duration
	tokenLength int
	now         func() time.Time
}

// tokenInfo stores token metadata
type tokenInfo struct {
	UserInfo  *UserInfo
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// BearerTokenConfig configures the bearer token provider
type BearerTokenConfig struct {
	// TokenExpiry defines token lifetime (default: 1 hour)
	TokenExpiry time.Duration

	// TokenLength in bytes (default: 32)
	TokenLength int

	// Now overrides the clock, for tests
	Now func() time.Time
}

// NewBearerTokenProvider creates a new bearer token provider.
func NewBearerTokenProvider(config *BearerTokenConfig) *BearerTokenProvider {
	if config == nil {
		config = &BearerTokenConfig{}
	}

	// Apply defaults
	if config.TokenExpiry == 0 {
		config.TokenExpiry = 1 * time.Hour
	}
	if config.TokenLength == 0 {
		config.TokenLength = 32
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &BearerTokenProvider{
		tokens:      make(map[string]*tokenInfo),
		tokenExpiry: config.TokenExpiry,
		tokenLength: config.TokenLength,
		now:         config.Now,
	}
}

// Issue creates a token for username.
func (p *BearerTokenProvider) Issue(username string) (string, *UserInfo, error) {
	if username == "" {
		return "", nil, NewAuthError(ErrInvalidCredential, "username required")
	}

	token, err := p.generateToken()
	if err != nil {
		return "", nil, err
	}

	now := p.now()
	expires := now.Add(p.tokenExpiry)
	user := &UserInfo{
		ID:        fmt.Sprintf("user-%s", username),
		Username:  username,
		Roles:     []string{"user"},
		ExpiresAt: &expires,
	}

	p.mu.Lock()
	p.tokens[token] = &tokenInfo{UserInfo: user, IssuedAt: now, ExpiresAt: expires}
	p.mu.Unlock()

	return token, user, nil
}

// Validate implements TokenValidator.
func (p *BearerTokenProvider) Validate(ctx context.Context, token string) (*UserInfo, error) {
	if token == "" {
		return nil, NewAuthError(ErrTokenMissing, "token required")
	}

	p.mu.RLock()
	info, exists := p.tokens[token]
	p.mu.RUnlock()

	if !exists {
		return nil, NewAuthError(ErrTokenInvalid, "token not found")
	}
	if info.Revoked {
		return nil, NewAuthError(ErrTokenRevoked, "token has been revoked")
	}
	if p.now().After(info.ExpiresAt) {
		return nil, NewAuthError(ErrTokenExpired, "token has expired")
	}

	return info.UserInfo, nil
}

// Revoke invalidates a token.
func (p *BearerTokenProvider) Revoke(token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, exists := p.tokens[token]
	if !exists {
		return NewAuthError(ErrTokenInvalid, "token not found")
	}
	info.Revoked = true
	return nil
}

// generateToken creates a cryptographically secure random token.
func (p *BearerTokenProvider) generateToken() (string, error) {
	bytes := make([]byte, p.tokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", NewAuthError(ErrTokenInvalid, "failed to generate token").
			WithDetail("error", err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// CleanupExpired removes expired and revoked tokens from storage.
func (p *BearerTokenProvider) CleanupExpired() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	removed := 0
	for token, info := range p.tokens {
		if info.Revoked || now.After(info.ExpiresAt) {
			delete(p.tokens, token)
			removed++
		}
	}
	return removed
}

// StaticTokens validates a fixed token to username table.
type StaticTokens map[string]string

// Validate implements TokenValidator.
func (s StaticTokens) Validate(ctx context.Context, token string) (*UserInfo, error) {
	if token == "" {
		return nil, NewAuthError(ErrTokenMissing, "token required")
	}
	username, ok := s[token]
	if !ok {
		return nil, NewAuthError(ErrTokenInvalid, "token not found")
	}
	return &UserInfo{ID: "user-" + username, Username: username}, nil
}

// ChainValidators accepts a token if any validator accepts it. The error of
// the last validator is returned when all reject.
func ChainValidators(validators ...TokenValidator) TokenValidator {
	return chain(validators)
}

type chain []TokenValidator

func (c chain) Validate(ctx context.Context, token string) (*UserInfo, error) {
	err := error(NewAuthError(ErrTokenInvalid, "no validator configured"))
	for _, v := range c {
		user, verr := v.Validate(ctx, token)
		if verr == nil {
			return user, nil
		}
		err = verr
	}
	return nil, err
}
