// Package auth enforces bearer-token authentication on the API surface.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/lowfreq/meridian/internal/config"
	"github.com/lowfreq/meridian/internal/httputil"
	"github.com/lowfreq/meridian/internal/logging"
)

// exemptPaths are always public regardless of auth configuration, so
// orchestrators and scrapers never need credentials.
var exemptPaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

func isExempt(path string) bool {
	return exemptPaths[path]
}

// Middleware returns an HTTP middleware enforcing bearer auth on non-exempt
// paths. With auth disabled every endpoint is public; that gets one warning
// at startup rather than silence.
func Middleware(cfg config.AuthConfig, logger *logging.Logger) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		logger.Warnw("authentication disabled, all endpoints are public")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				httputil.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
