package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/auth"
)

func TestStaticToken(t *testing.T) {
	var p auth.TokenProvider = auth.StaticToken("abc")
	token, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestTokenFunc_CalledEveryTime(t *testing.T) {
	calls := 0
	p := auth.TokenFunc(func(context.Context) (string, error) {
		calls++
		return "t" + string(rune('0'+calls)), nil
	})

	first, _ := p.Token(context.Background())
	second, _ := p.Token(context.Background())
	assert.Equal(t, "t1", first)
	assert.Equal(t, "t2", second)
}

func TestBearerTokenProvider(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	provider := auth.NewBearerTokenProvider(&auth.BearerTokenConfig{
		TokenExpiry: time.Hour,
		Now:         func() time.Time { return now },
	})

	token, user, err := provider.Issue("alice")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "alice", user.Username)

	got, err := provider.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-alice", got.ID)

	_, err = provider.Validate(context.Background(), "nope")
	var ae *auth.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, auth.ErrTokenInvalid, ae.Code)

	now = now.Add(2 * time.Hour)
	_, err = provider.Validate(context.Background(), token)
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, auth.ErrTokenExpired, ae.Code)

	assert.Equal(t, 1, provider.CleanupExpired())
}

func TestBearerTokenProvider_Revoke(t *testing.T) {
	provider := auth.NewBearerTokenProvider(nil)
	token, _, err := provider.Issue("bob")
	require.NoError(t, err)

	require.NoError(t, provider.Revoke(token))
	_, err = provider.Validate(context.Background(), token)
	var ae *auth.AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, auth.ErrTokenRevoked, ae.Code)

	assert.Error(t, provider.Revoke("unknown"))
}

func TestBearerTokenProvider_IssueRequiresUsername(t *testing.T) {
	_, _, err := auth.NewBearerTokenProvider(nil).Issue("")
	assert.Error(t, err)
}

func TestChainValidators(t *testing.T) {
	bearer := auth.NewBearerTokenProvider(nil)
	issued, _, err := bearer.Issue("carol")
	require.NoError(t, err)

	v := auth.ChainValidators(auth.StaticTokens{"dev": "dave"}, bearer)

	user, err := v.Validate(context.Background(), "dev")
	require.NoError(t, err)
	assert.Equal(t, "dave", user.Username)

	user, err = v.Validate(context.Background(), issued)
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Username)

	_, err = v.Validate(context.Background(), "")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	validator := auth.StaticTokens{"secret": "erin"}
	var seen *auth.UserInfo
	h := auth.Middleware(validator, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.UserInfoFromContext(r.Context())
		assert.Equal(t, "secret", auth.TokenFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("query token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/ws?token=secret", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "erin", seen.Username)
	})

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ws", nil)
		req.Header.Set("Authorization", "Bearer secret")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, auth.ErrTokenMissing, body["error"])
	})
}

func TestRateLimiter(t *testing.T) {
	l := auth.NewRateLimiter(auth.RateLimitConfig{FramesPerMinute: 60, BurstSize: 2})

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "keys are independent")

	l.Reset("a")
	assert.Equal(t, 2.0, l.Remaining("a"))
}
