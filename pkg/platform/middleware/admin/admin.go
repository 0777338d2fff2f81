// Package admin guards operational endpoints with a shared static token.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	dErrors "ezclaim/pkg/domain-errors"
	"ezclaim/pkg/platform/httputil"
	"ezclaim/pkg/requestcontext"
)

// TokenHeader carries the operations token on scrape requests.
const TokenHeader = "X-Admin-Token"

// RequireAdminToken rejects requests whose X-Admin-Token (or bearer token)
// does not match expected. An empty expected token leaves the route open,
// which is how local development exposes /metrics.
func RequireAdminToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}
		want := []byte(expected)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subtle.ConstantTimeCompare([]byte(presented(r)), want) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "operations token rejected",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func presented(r *http.Request) string {
	if t := r.Header.Get(TokenHeader); t != "" {
		return t
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
