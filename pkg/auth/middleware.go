package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sdkwork-cloud/openchat-realtime/pkg/logging"
)

// TokenParam is the query parameter clients put the token in
const TokenParam = "token"

// Middleware rejects HTTP requests that do not carry a valid token. The
// token is read from the token query parameter, which is where browsers and
// the realtime client put it, or from an Authorization bearer header.
func Middleware(validator TokenValidator, logger logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			user, err := validator.Validate(r.Context(), token)
			if err != nil {
				logger.Warn("rejected connection",
					logging.String("remote_addr", r.RemoteAddr),
					logging.ErrorField(err))
				writeAuthError(w, err)
				return
			}

			ctx := ContextWithUserInfo(r.Context(), user)
			ctx = ContextWithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromRequest extracts a token from the query string or the
// Authorization header.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get(TokenParam); token != "" {
		return token
	}

	header := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, err error) {
	code := ErrTokenInvalid
	var ae *AuthError
	if errors.As(err, &ae) {
		code = ae.Code
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": err.Error(),
	})
}

// Context helpers

type contextKey string

const (
	contextKeyAuth     contextKey = "realtime_auth_token"
	contextKeyUserInfo contextKey = "realtime_user_info"
)

// ContextWithToken adds an auth token to the context.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyAuth, token)
}

// TokenFromContext returns the token stored by ContextWithToken.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(contextKeyAuth).(string)
	return token
}

// ContextWithUserInfo adds user info to the context.
func ContextWithUserInfo(ctx context.Context, userInfo *UserInfo) context.Context {
	return context.WithValue(ctx, contextKeyUserInfo, userInfo)
}

// UserInfoFromContext extracts user info from context.
func UserInfoFromContext(ctx context.Context) (*UserInfo, bool) {
	userInfo, ok := ctx.Value(contextKeyUserInfo).(*UserInfo)
	return userInfo, ok
}
