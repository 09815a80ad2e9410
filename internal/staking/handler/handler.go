package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"concord/internal/staking"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/httputil"
	"concord/pkg/requestcontext"
)

// Service defines the staking operations exposed over HTTP.
type Service interface {
	Stake(ctx context.Context, req staking.StakeRequest) (*staking.Position, error)
	Unstake(ctx context.Context, wallet id.WalletID, domain id.DomainID, amount float64) (*staking.Position, error)
	IssueTicket(ctx context.Context, req staking.TicketRequest) (*staking.Ticket, error)
	ConsumeTicket(ctx context.Context, wallet id.WalletID, domain id.DomainID, amount float64) (*staking.Ticket, error)
	Position(ctx context.Context, wallet id.WalletID, domain id.DomainID) (*staking.Position, error)
	PoolTotals(ctx context.Context) ([]staking.PoolTotal, error)
}

// Handler handles staking endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts staking routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/stake", h.HandleStake)
	r.Post("/unstake", h.HandleUnstake)
	r.Post("/tickets", h.HandleIssueTicket)
	r.Post("/tickets/consume", h.HandleConsumeTicket)
	r.Get("/stakes/{domain}/{wallet}", h.HandlePosition)
	r.Get("/pools", h.HandlePools)
}

// walletDomain is embedded by every request that names a position.
type walletDomain struct {
	Domain string `json:"domain"`
	Wallet string `json:"wallet"`

	domain id.DomainID
	wallet id.WalletID
}

func (r *walletDomain) parse() error {
	d, err := id.ParseDomainID(r.Domain)
	if err != nil {
		return err
	}
	w, err := id.ParseWalletID(r.Wallet)
	if err != nil {
		return err
	}
	r.domain, r.wallet = d, w
	return nil
}

type StakeRequest struct {
	walletDomain
	Amount   float64 `json:"amount"`
	LockDays int     `json:"lock_days"`
}

func (r *StakeRequest) Validate() error {
	if err := r.parse(); err != nil {
		return err
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if r.LockDays < 0 || r.LockDays > staking.MaxLockDays {
		return dErrors.Newf(dErrors.CodeValidation, "lock_days must be between 0 and %d", staking.MaxLockDays)
	}
	return nil
}

type AmountRequest struct {
	walletDomain
	Amount float64 `json:"amount"`
}

func (r *AmountRequest) Validate() error {
	if err := r.parse(); err != nil {
		return err
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}

type TicketRequest struct {
	walletDomain
	Amount   float64 `json:"amount"`
	UnlockAt string  `json:"unlock_at,omitempty"`

	unlockAt time.Time
}

func (r *TicketRequest) Validate() error {
	if err := r.parse(); err != nil {
		return err
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if v := strings.TrimSpace(r.UnlockAt); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "unlock_at must be an RFC3339 timestamp")
		}
		r.unlockAt = t.UTC()
	}
	return nil
}

type PoolsResponse struct {
	Pools []staking.PoolTotal `json:"pools"`
}

func (h *Handler) HandleStake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[StakeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	p, err := h.service.Stake(ctx, staking.StakeRequest{
		Wallet: req.wallet, Domain: req.domain, Amount: req.Amount, LockDays: req.LockDays,
	})
	h.respond(ctx, w, "stake failed", p, err)
}

func (h *Handler) HandleUnstake(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	p, err := h.service.Unstake(ctx, req.wallet, req.domain, req.Amount)
	h.respond(ctx, w, "unstake failed", p, err)
}

func (h *Handler) HandleIssueTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[TicketRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	t, err := h.service.IssueTicket(ctx, staking.TicketRequest{
		Wallet: req.wallet, Domain: req.domain, Amount: req.Amount, UnlockAt: req.unlockAt,
	})
	h.respond(ctx, w, "ticket issue failed", t, err)
}

func (h *Handler) HandleConsumeTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AmountRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	t, err := h.service.ConsumeTicket(ctx, req.wallet, req.domain, req.Amount)
	h.respond(ctx, w, "ticket consumption failed", t, err)
}

func (h *Handler) HandlePosition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	wd := walletDomain{Domain: chi.URLParam(r, "domain"), Wallet: chi.URLParam(r, "wallet")}
	if err := wd.parse(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.Position(ctx, wd.wallet, wd.domain)
	h.respond(ctx, w, "position lookup failed", p, err)
}

func (h *Handler) HandlePools(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pools, err := h.service.PoolTotals(ctx)
	if err != nil {
		h.respond(ctx, w, "pool totals failed", nil, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PoolsResponse{Pools: pools})
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, msg string, v any, err error) {
	if err != nil {
		level := slog.LevelWarn
		if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}
