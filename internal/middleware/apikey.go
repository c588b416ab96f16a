package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const apiKeyHeader = "X-API-Key"

// APIKey enforces the configured key set on every request. When enforcement
// is disabled, or no keys are configured, requests pass through untouched.
func APIKey(required bool, keys []string) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(keys))
	for _, key := range keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			allowed = append(allowed, trimmed)
		}
	}
	enforce := required && len(allowed) > 0

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enforce {
				next.ServeHTTP(w, r)
				return
			}

			provided := strings.TrimSpace(r.Header.Get(apiKeyHeader))
			if provided == "" {
				http.Error(w, "missing api key", http.StatusUnauthorized)
				return
			}
			for _, key := range allowed {
				if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "invalid api key", http.StatusUnauthorized)
		})
	}
}
