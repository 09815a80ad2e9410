package handler

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"concord/internal/coordinator"
	"concord/internal/faucet"
	"concord/internal/registry"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/httputil"
	"concord/pkg/platform/middleware/auth"
	"concord/pkg/requestcontext"
)

// Service defines the cross-domain operations exposed over HTTP.
type Service interface {
	CoordinateFaucetRequest(ctx context.Context, req coordinator.FaucetRequest) (*faucet.Faucet, error)
	DomainSnapshot(ctx context.Context, domain id.DomainID) (*coordinator.DomainSnapshot, error)
	Metrics(ctx context.Context) (*coordinator.Summary, error)
	EnforceGlobalGuardrails(ctx context.Context) ([]coordinator.Escalation, error)
	Domains() []registry.Domain
	Policies() []coordinator.PolicyRule
}

// Handler handles coordinator endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts coordinator routes. The Prometheus scrape endpoint owns
// GET /metrics, so the JSON aggregate lives under /metrics/summary.
func (h *Handler) Register(r chi.Router) {
	r.Post("/faucets", h.HandleOpenFaucet)
	r.Get("/domains", h.HandleDomains)
	r.Get("/domains/{domain}", h.HandleSnapshot)
	r.Get("/metrics/summary", h.HandleMetrics)
	r.Get("/policies", h.HandlePolicies)
	r.Post("/guardrails/enforce", h.HandleEnforce)
}

// OpenFaucetRequest asks for Amount units per hour over DurationHours.
type OpenFaucetRequest struct {
	FromDomain       string   `json:"from_domain"`
	ToDomain         string   `json:"to_domain"`
	FromNode         string   `json:"from_node"`
	ToNode           string   `json:"to_node"`
	ResourceType     string   `json:"resource_type"`
	Amount           float64  `json:"amount"`
	DurationHours    float64  `json:"duration_hours"`
	ClaimedAvailable *float64 `json:"claimed_available,omitempty"`

	from, to id.DomainID
}

func (r *OpenFaucetRequest) Validate() error {
	from, err := id.ParseDomainID(r.FromDomain)
	if err != nil {
		return err
	}
	to, err := id.ParseDomainID(r.ToDomain)
	if err != nil {
		return err
	}
	r.from, r.to = from, to
	r.ResourceType = strings.TrimSpace(r.ResourceType)
	if r.ResourceType == "" {
		return dErrors.New(dErrors.CodeValidation, "resource_type is required")
	}
	if !finitePositive(r.Amount) {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if !finitePositive(r.DurationHours) {
		return dErrors.New(dErrors.CodeValidation, "duration_hours must be positive")
	}
	return nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

type OpenFaucetResponse struct {
	FaucetID id.FaucetID    `json:"faucet_id"`
	Faucet   *faucet.Faucet `json:"faucet"`
}

type DomainsResponse struct {
	Domains []registry.Domain `json:"domains"`
}

type PoliciesResponse struct {
	Policies []coordinator.PolicyRule `json:"policies"`
}

type EnforceResponse struct {
	Escalations []coordinator.Escalation `json:"escalations"`
}

func (h *Handler) HandleOpenFaucet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[OpenFaucetRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := auth.AuthorizeDomain(ctx, req.from); err != nil {
		httputil.WriteError(w, err)
		return
	}

	f, err := h.service.CoordinateFaucetRequest(ctx, coordinator.FaucetRequest{
		FromDomain:       req.from,
		ToDomain:         req.to,
		FromNode:         req.FromNode,
		ToNode:           req.ToNode,
		ResourceType:     req.ResourceType,
		Rate:             req.Amount,
		DurationHours:    req.DurationHours,
		ClaimedAvailable: req.ClaimedAvailable,
	})
	if err != nil {
		h.logFailure(ctx, "faucet request failed", err,
			"from_domain", string(req.from),
			"resource_type", req.ResourceType,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, OpenFaucetResponse{FaucetID: f.ID, Faucet: f})
}

func (h *Handler) HandleDomains(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, DomainsResponse{Domains: h.service.Domains()})
}

func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	domain, err := id.ParseDomainID(chi.URLParam(r, "domain"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snap, err := h.service.DomainSnapshot(ctx, domain)
	if err != nil {
		h.logFailure(ctx, "domain snapshot failed", err, "domain", string(domain))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snap)
}

func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sum, err := h.service.Metrics(ctx)
	if err != nil {
		h.logFailure(ctx, "metrics summary failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sum)
}

func (h *Handler) HandlePolicies(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, PoliciesResponse{Policies: h.service.Policies()})
}

// HandleEnforce runs the global guardrail sweep on demand. Only governance
// operators may trigger it when auth is enabled.
func (h *Handler) HandleEnforce(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := auth.AuthorizeDomain(ctx, id.Governance); err != nil {
		httputil.WriteError(w, err)
		return
	}
	escalations, err := h.service.EnforceGlobalGuardrails(ctx)
	if err != nil {
		h.logFailure(ctx, "global guardrail sweep failed", err)
		httputil.WriteError(w, err)
		return
	}
	if escalations == nil {
		escalations = []coordinator.Escalation{}
	}
	httputil.WriteJSON(w, http.StatusOK, EnforceResponse{Escalations: escalations})
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, args...)
		return
	}
	h.logger.WarnContext(ctx, msg, args...)
}
