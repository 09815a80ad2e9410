package httptransport

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/httputil"
	"concord/pkg/requestcontext"
)

const (
	defaultTokenTTL = 24 * time.Hour
	maxTokenTTL     = 30 * 24 * time.Hour
)

// TokenIssuer mints operator tokens bound to a domain.
type TokenIssuer interface {
	GenerateOperatorToken(domain id.DomainID, subject string, expiresIn time.Duration) (string, error)
}

// TokenHandler issues operator tokens. It is mounted behind the admin token.
type TokenHandler struct {
	issuer TokenIssuer
	logger *slog.Logger
}

func NewTokenHandler(issuer TokenIssuer, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{issuer: issuer, logger: logger}
}

func (h *TokenHandler) Register(r chi.Router) {
	r.Post("/admin/tokens", h.HandleIssue)
}

type IssueTokenRequest struct {
	Domain   string `json:"domain"`
	Subject  string `json:"subject"`
	TTLHours int    `json:"ttl_hours,omitempty"`

	domain id.DomainID
	ttl    time.Duration
}

func (r *IssueTokenRequest) Validate() error {
	d, err := id.ParseDomainID(r.Domain)
	if err != nil {
		return err
	}
	r.domain = d
	r.Subject = strings.TrimSpace(r.Subject)
	if r.Subject == "" {
		return dErrors.New(dErrors.CodeValidation, "subject is required")
	}
	r.ttl = defaultTokenTTL
	if r.TTLHours != 0 {
		r.ttl = time.Duration(r.TTLHours) * time.Hour
	}
	if r.ttl <= 0 || r.ttl > maxTokenTTL {
		return dErrors.Newf(dErrors.CodeValidation, "ttl_hours must be between 1 and %d", int(maxTokenTTL.Hours()))
	}
	return nil
}

type IssueTokenResponse struct {
	Token     string      `json:"token"`
	Domain    id.DomainID `json:"domain"`
	ExpiresIn int         `json:"expires_in"`
}

func (h *TokenHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[IssueTokenRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	token, err := h.issuer.GenerateOperatorToken(req.domain, req.Subject, req.ttl)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue operator token",
			"request_id", requestID,
			"domain", string(req.domain),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token"))
		return
	}
	h.logger.InfoContext(ctx, "operator token issued",
		"request_id", requestID,
		"domain", string(req.domain),
		"subject", req.Subject,
	)
	httputil.WriteJSON(w, http.StatusCreated, IssueTokenResponse{
		Token:     token,
		Domain:    req.domain,
		ExpiresIn: int(req.ttl.Seconds()),
	})
}
