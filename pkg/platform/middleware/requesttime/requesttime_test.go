package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"concord/pkg/requestcontext"
)

func TestMiddleware(t *testing.T) {
	var seen time.Time
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.Now(r.Context())
	})

	t.Run("stamps the request", func(t *testing.T) {
		before := time.Now()
		Middleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.False(t, seen.Before(before))
	})

	t.Run("override pins the clock", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderOverride, "2026-06-01T12:00:00Z")
		Middleware(Override(next)).ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), seen)
	})

	t.Run("override rejects garbage", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderOverride, "tomorrow")
		rr := httptest.NewRecorder()
		Middleware(Override(next)).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
