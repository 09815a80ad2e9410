package testutil

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	id "concord/pkg/domain"
	"concord/pkg/requestcontext"
)

// WithCallerDomain marks the request as authenticated for domain, the way
// the auth middleware would after validating an operator token.
func WithCallerDomain(req *http.Request, domain id.DomainID) *http.Request {
	ctx := requestcontext.WithCallerDomain(req.Context(), domain)
	ctx = requestcontext.WithSubject(ctx, "operator@"+string(domain))
	return req.WithContext(ctx)
}

// At returns a background context whose request clock reads t.
func At(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
