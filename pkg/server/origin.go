package server

import (
	"net/http"
	"net/url"
	"strings"
)

var localhostOrigins = []string{
	"http://localhost",
	"https://localhost",
	"http://127.0.0.1",
	"https://127.0.0.1",
	"http://[::1]",
	"https://[::1]",
}

// originChecker decides which browser origins may open a websocket
type originChecker struct {
	allowed []string
}

// check implements websocket.Upgrader.CheckOrigin
func (o originChecker) check(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Not a browser
		return true
	}

	if len(o.allowed) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}

	for _, allowed := range o.allowed {
		if allowed == "*" || matchOrigin(allowed, origin) {
			return true
		}
	}
	return false
}

// matchOrigin accepts exact matches, and any port on localhost when a
// localhost origin is allowed
func matchOrigin(allowed, origin string) bool {
	if allowed == origin {
		return true
	}
	return isLocalhostOrigin(allowed) && isLocalhostOrigin(origin)
}

func isLocalhostOrigin(origin string) bool {
	for _, pattern := range localhostOrigins {
		if origin == pattern || strings.HasPrefix(origin, pattern+":") {
			return true
		}
	}
	return false
}
