// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and sweeps read them. Keeping the
// package free of net/http lets services import it without pulling in
// transport code.
//
// Usage in services (read values):
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "concord/pkg/domain"
)

type (
	requestIDKey    struct{}
	requestTimeKey  struct{}
	callerDomainKey struct{}
	subjectKey      struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyRequestID    = requestIDKey{}
	ContextKeyRequestTime  = requestTimeKey{}
	ContextKeyCallerDomain = callerDomainKey{}
	ContextKeySubject      = subjectKey{}
)

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (sweeps, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that exercise lock periods and expiry windows
//   - Sweeps that need one consistent "now" across a batch
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// CallerDomain returns the domain an authenticated operator token speaks for.
// The second return is false when the request was not authenticated.
func CallerDomain(ctx context.Context) (id.DomainID, bool) {
	d, ok := ctx.Value(ContextKeyCallerDomain).(id.DomainID)
	return d, ok
}

// WithCallerDomain injects the authenticated caller domain.
func WithCallerDomain(ctx context.Context, d id.DomainID) context.Context {
	return context.WithValue(ctx, ContextKeyCallerDomain, d)
}

// Subject returns the authenticated token subject (operator or wallet).
func Subject(ctx context.Context) string {
	if s, ok := ctx.Value(ContextKeySubject).(string); ok {
		return s
	}
	return ""
}

// WithSubject injects the authenticated subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ContextKeySubject, subject)
}
