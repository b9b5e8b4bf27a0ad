package handlers

import (
	"net"
	"net/http"
	"strings"
)

// RateLimiter guards the unauthenticated account endpoints. A nil limiter
// means no throttling.
type RateLimiter interface {
	Allow(key string) bool
}

func allowRequest(limiter RateLimiter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	ip := clientIP(r)
	if scope == "" {
		return limiter.Allow(ip)
	}
	return limiter.Allow(scope + ":" + ip)
}

// clientIP prefers the first X-Forwarded-For entry so limits apply to the
// originating client rather than the proxy in front of the server.
func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
