package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/requestcontext"
)

type stubValidator struct {
	claims *Claims
	err    error
}

func (s stubValidator) ValidateToken(string) (*Claims, error) { return s.claims, s.err }

func TestRequireDomainToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seenDomain id.DomainID
	var seenSubject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenDomain, _ = requestcontext.CallerDomain(r.Context())
		seenSubject = requestcontext.Subject(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		mw := RequireDomainToken(stubValidator{}, logger)(next)
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/proposal", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("invalid token rejected", func(t *testing.T) {
		mw := RequireDomainToken(stubValidator{err: errors.New("bad")}, logger)(next)
		req := httptest.NewRequest(http.MethodPost, "/proposal", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid or expired token")
	})

	t.Run("valid token sets caller domain", func(t *testing.T) {
		mw := RequireDomainToken(stubValidator{claims: &Claims{Domain: id.Energy, Subject: "op"}}, logger)(next)
		req := httptest.NewRequest(http.MethodPost, "/proposal", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, id.Energy, seenDomain)
		assert.Equal(t, "op", seenSubject)
	})
}

func TestAuthorizeDomain(t *testing.T) {
	assert.NoError(t, AuthorizeDomain(context.Background(), id.Energy))

	ctx := requestcontext.WithCallerDomain(context.Background(), id.Energy)
	assert.NoError(t, AuthorizeDomain(ctx, id.Energy))

	err := AuthorizeDomain(ctx, id.Food)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}
