package middleware

import (
	"net"
	"net/http"
	"time"

	"github.com/strataops/vaulthub/internal/ratelimit"
)

// RateLimit returns a middleware that limits requests per caller using the
// given limiter. Authenticated requests are keyed by user ID; anonymous ones
// fall back to the remote address.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetUserID(r.Context())
			if key == "" {
				key = remoteAddr(r)
			}

			if !limiter.Allow(key, time.Now()) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"code":"rate_limited","message":"Too many requests, slow down"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
