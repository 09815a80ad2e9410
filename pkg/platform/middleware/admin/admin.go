// Package admin guards operator endpoints with a shared secret.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/httputil"
	"concord/pkg/requestcontext"
)

// HeaderToken carries the shared admin secret.
const HeaderToken = "X-Admin-Token"

const adminSubject = "admin"

// RequireAdminToken admits requests whose HeaderToken matches expected and
// tags them with the admin subject. An empty expected token refuses every
// request.
func RequireAdminToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			got := r.Header.Get(HeaderToken)
			if expected == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				logger.WarnContext(ctx, "admin token rejected",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
					"token_present", got != "",
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			ctx = requestcontext.WithSubject(ctx, adminSubject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
