package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"concord/internal/faucet"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/httputil"
	"concord/pkg/platform/middleware/auth"
	"concord/pkg/requestcontext"
)

// Service defines the faucet operations exposed over HTTP. Opening a faucet
// goes through the coordinator and is not part of this interface.
type Service interface {
	Get(ctx context.Context, faucetID id.FaucetID) (*faucet.Faucet, error)
	List(ctx context.Context, filter faucet.Filter) ([]*faucet.Faucet, error)
	Scale(ctx context.Context, faucetID id.FaucetID, newRate float64) (*faucet.Faucet, error)
	Pause(ctx context.Context, faucetID id.FaucetID) (*faucet.Faucet, error)
	Resume(ctx context.Context, faucetID id.FaucetID) (*faucet.Faucet, error)
	Close(ctx context.Context, faucetID id.FaucetID, reason string) (*faucet.Faucet, error)
	Draw(ctx context.Context, faucetID id.FaucetID, amount float64) (*faucet.Faucet, error)
}

// Handler handles faucet endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts faucet routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/faucets", h.HandleList)
	r.Get("/faucets/{id}", h.HandleGet)
	r.Post("/faucets/{id}/scale", h.HandleScale)
	r.Post("/faucets/{id}/pause", h.HandlePause)
	r.Post("/faucets/{id}/resume", h.HandleResume)
	r.Post("/faucets/{id}/close", h.HandleClose)
	r.Post("/faucets/{id}/draw", h.HandleDraw)
}

type ScaleRequest struct {
	Rate *float64 `json:"rate"`
}

func (r *ScaleRequest) Validate() error {
	if r.Rate == nil {
		return dErrors.New(dErrors.CodeValidation, "rate is required")
	}
	if *r.Rate < 0 {
		return dErrors.New(dErrors.CodeValidation, "rate cannot be negative")
	}
	return nil
}

type DrawRequest struct {
	Amount float64 `json:"amount"`
}

func (r *DrawRequest) Validate() error {
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}

type ListResponse struct {
	Faucets []*faucet.Faucet `json:"faucets"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := faucet.Filter{}
	q := r.URL.Query()
	if v := q.Get("domain"); v != "" {
		d, err := id.ParseDomainID(v)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Domain = d
	}
	if v := q.Get("status"); v != "" {
		switch s := faucet.Status(v); s {
		case faucet.StatusActive, faucet.StatusPaused, faucet.StatusClosed:
			filter.Status = s
		default:
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", v))
			return
		}
	}

	faucets, err := h.service.List(ctx, filter)
	if err != nil {
		h.logFailure(ctx, "failed to list faucets", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Faucets: faucets})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.withFaucet(w, r, h.service.Get)
}

func (h *Handler) HandleScale(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ScaleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.withFaucet(w, r, h.owned(sourceOnly, func(ctx context.Context, faucetID id.FaucetID) (*faucet.Faucet, error) {
		return h.service.Scale(ctx, faucetID, *req.Rate)
	}))
}

func (h *Handler) HandlePause(w http.ResponseWriter, r *http.Request) {
	h.withFaucet(w, r, h.owned(sourceOnly, h.service.Pause))
}

func (h *Handler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.withFaucet(w, r, h.owned(sourceOnly, h.service.Resume))
}

func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	h.withFaucet(w, r, h.owned(sourceOnly, func(ctx context.Context, faucetID id.FaucetID) (*faucet.Faucet, error) {
		return h.service.Close(ctx, faucetID, faucet.ReasonClosed)
	}))
}

func (h *Handler) HandleDraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[DrawRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.withFaucet(w, r, h.owned(eitherEnd, func(ctx context.Context, faucetID id.FaucetID) (*faucet.Faucet, error) {
		return h.service.Draw(ctx, faucetID, req.Amount)
	}))
}

// Which ends of a faucet may operate it.
const (
	sourceOnly = false
	eitherEnd  = true
)

// owned runs op only for callers that speak for the faucet's source
// domain, or its receiving domain when receiver is set. Requests without a
// caller domain skip the lookup.
func (h *Handler) owned(receiver bool, op func(context.Context, id.FaucetID) (*faucet.Faucet, error)) func(context.Context, id.FaucetID) (*faucet.Faucet, error) {
	return func(ctx context.Context, faucetID id.FaucetID) (*faucet.Faucet, error) {
		if _, ok := requestcontext.CallerDomain(ctx); ok {
			f, err := h.service.Get(ctx, faucetID)
			if err != nil {
				return nil, err
			}
			err = auth.AuthorizeDomain(ctx, f.FromDomain)
			if err != nil && receiver && auth.AuthorizeDomain(ctx, f.ToDomain) == nil {
				err = nil
			}
			if err != nil {
				return nil, err
			}
		}
		return op(ctx, faucetID)
	}
}

// withFaucet parses the {id} path parameter, runs op and writes the faucet.
func (h *Handler) withFaucet(w http.ResponseWriter, r *http.Request, op func(context.Context, id.FaucetID) (*faucet.Faucet, error)) {
	ctx := r.Context()
	faucetID, err := id.ParseFaucetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	f, err := op(ctx, faucetID)
	if err != nil {
		h.logFailure(ctx, "faucet operation failed", err, "faucet_id", faucetID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, f)
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, args...)
		return
	}
	h.logger.WarnContext(ctx, msg, args...)
}
