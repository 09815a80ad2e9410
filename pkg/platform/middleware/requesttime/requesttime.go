// Package requesttime provides middleware for request-scoped time.
// All operations within a single HTTP request use the same "now" timestamp,
// so event log entries, expiry checks and lock checks agree with each other.
package requesttime

import (
	"net/http"
	"time"

	"concord/pkg/requestcontext"
)

// HeaderOverride carries an RFC 3339 timestamp that replaces the request
// clock when Override is installed.
const HeaderOverride = "X-Concord-Time"

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Override lets callers pin the request clock through HeaderOverride. It is
// meant for acceptance runs and demos and must be installed after Middleware.
// Unparseable values are rejected.
func Override(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(HeaderOverride)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad_request","error_description":"X-Concord-Time must be RFC 3339"}`))
			return
		}
		ctx := requestcontext.WithTime(r.Context(), t.UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
