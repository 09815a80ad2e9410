package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/requestcontext"
)

// TokenValidator validates an operator bearer token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims are the values the middleware places into the request context.
type Claims struct {
	Domain  id.DomainID
	Subject string
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireDomainToken rejects requests without a valid operator token and
// records the caller domain for handlers that must check signer identity.
func RequireDomainToken(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx = requestcontext.WithCallerDomain(ctx, claims.Domain)
			ctx = requestcontext.WithSubject(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthorizeDomain checks that an authenticated caller speaks for d.
// Requests that did not pass through RequireDomainToken are allowed; the
// router only installs it when authentication is required.
func AuthorizeDomain(ctx context.Context, d id.DomainID) error {
	caller, ok := requestcontext.CallerDomain(ctx)
	if !ok || caller == d {
		return nil
	}
	return dErrors.Newf(dErrors.CodeForbidden, "token for %s cannot act for %s", caller, d)
}
