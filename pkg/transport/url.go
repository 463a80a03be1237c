package transport

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Query parameters appended to the endpoint on every connect attempt
const (
	TokenParam     = "token"
	TimestampParam = "timestamp"
)

// BuildURL appends the auth token and a millisecond timestamp to endpoint.
// http and https schemes are rewritten to ws and wss.
func BuildURL(endpoint, token string, now time.Time) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}

	q := u.Query()
	if token != "" {
		q.Set(TokenParam, token)
	}
	q.Set(TimestampParam, strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// RedactURL removes the token parameter so URLs can be logged
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has(TokenParam) {
		q.Set(TokenParam, "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
