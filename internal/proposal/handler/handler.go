package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"concord/internal/proposal"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/httputil"
	"concord/pkg/platform/middleware/auth"
	"concord/pkg/requestcontext"
)

// Service defines the proposal operations exposed over HTTP. Submission,
// review and enactment go through the coordinator so guardrails and peer
// attestations run as part of the call.
type Service interface {
	SubmitProposal(ctx context.Context, req proposal.CreateRequest) (*proposal.Proposal, error)
	GetProposal(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error)
	ListProposals(ctx context.Context, filter proposal.Filter) ([]*proposal.Proposal, error)
	AttestProposal(ctx context.Context, proposalID id.ProposalID, signer id.DomainID, vote proposal.Vote, noteRef string) (*proposal.Proposal, error)
	ReviewProposal(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error)
	EnactProposal(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error)
	RollbackProposal(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error)
}

// Handler handles proposal endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts proposal routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/proposals", h.HandleCreate)
	r.Get("/proposals", h.HandleList)
	r.Get("/proposals/{id}", h.HandleGet)
	r.Post("/proposals/{id}/attest", h.HandleAttest)
	r.Post("/proposals/{id}/review", h.HandleReview)
	r.Post("/proposals/{id}/enact", h.HandleEnact)
	r.Post("/proposals/{id}/rollback", h.HandleRollback)
}

type CreateRequest struct {
	Domain       string                `json:"domain"`
	Author       string                `json:"author"`
	Changes      []proposal.Change     `json:"changes"`
	Metrics      proposal.MetricsClaim `json:"metrics"`
	RationaleRef string                `json:"rationale_ref"`
	Quorum       *int                  `json:"quorum,omitempty"`

	domain id.DomainID
}

func (r *CreateRequest) Validate() error {
	d, err := id.ParseDomainID(r.Domain)
	if err != nil {
		return err
	}
	r.domain = d
	if len(r.Changes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "changes must not be empty")
	}
	return nil
}

type AttestRequest struct {
	Domain  string `json:"domain"`
	Vote    string `json:"vote"`
	NoteRef string `json:"note_ref"`

	signer id.DomainID
	vote   proposal.Vote
}

func (r *AttestRequest) Validate() error {
	d, err := id.ParseDomainID(r.Domain)
	if err != nil {
		return err
	}
	v, err := proposal.ParseVote(r.Vote)
	if err != nil {
		return err
	}
	r.signer, r.vote = d, v
	return nil
}

type CreateResponse struct {
	ProposalID id.ProposalID      `json:"proposal_id"`
	Status     proposal.Status    `json:"status"`
	Proposal   *proposal.Proposal `json:"proposal"`
}

// ActionResponse acknowledges a state-changing call.
type ActionResponse struct {
	OK         bool            `json:"ok"`
	ProposalID id.ProposalID   `json:"proposal_id"`
	Status     proposal.Status `json:"status"`
	Approvals  int             `json:"approvals"`
	Quorum     int             `json:"quorum"`
}

type ListResponse struct {
	Proposals []*proposal.Proposal `json:"proposals"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := auth.AuthorizeDomain(ctx, req.domain); err != nil {
		httputil.WriteError(w, err)
		return
	}
	author := req.Author
	if author == "" {
		author = requestcontext.Subject(ctx)
	}

	p, err := h.service.SubmitProposal(ctx, proposal.CreateRequest{
		Domain:       req.domain,
		Author:       author,
		Changes:      req.Changes,
		Metrics:      req.Metrics,
		RationaleRef: req.RationaleRef,
		Quorum:       req.Quorum,
	})
	if err != nil {
		h.logFailure(ctx, "proposal submission failed", err, "domain", string(req.domain))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, CreateResponse{ProposalID: p.ID, Status: p.Status, Proposal: p})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := proposal.Filter{}
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
		switch s := proposal.Status(v); s {
		case proposal.StatusPending, proposal.StatusReviewing, proposal.StatusEnacted,
			proposal.StatusRejected, proposal.StatusExpired:
			filter.Status = s
		default:
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", v))
			return
		}
	}

	proposals, err := h.service.ListProposals(ctx, filter)
	if err != nil {
		h.logFailure(ctx, "failed to list proposals", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Proposals: proposals})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	proposalID, err := id.ParseProposalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.GetProposal(ctx, proposalID)
	if err != nil {
		h.logFailure(ctx, "proposal lookup failed", err, "proposal_id", proposalID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) HandleAttest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[AttestRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	if err := auth.AuthorizeDomain(ctx, req.signer); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.act(w, r, "attestation failed", func(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error) {
		return h.service.AttestProposal(ctx, proposalID, req.signer, req.vote, req.NoteRef)
	})
}

func (h *Handler) HandleReview(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "review failed", h.owned(h.service.ReviewProposal))
}

func (h *Handler) HandleEnact(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "enact failed", h.owned(h.service.EnactProposal))
}

func (h *Handler) HandleRollback(w http.ResponseWriter, r *http.Request) {
	h.act(w, r, "rollback failed", h.owned(h.service.RollbackProposal))
}

// owned runs op only for callers that speak for the proposal's domain.
// Requests without a caller domain skip the lookup.
func (h *Handler) owned(op func(context.Context, id.ProposalID) (*proposal.Proposal, error)) func(context.Context, id.ProposalID) (*proposal.Proposal, error) {
	return func(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error) {
		if _, ok := requestcontext.CallerDomain(ctx); ok {
			p, err := h.service.GetProposal(ctx, proposalID)
			if err != nil {
				return nil, err
			}
			if err := auth.AuthorizeDomain(ctx, p.Domain); err != nil {
				return nil, err
			}
		}
		return op(ctx, proposalID)
	}
}

// act parses the {id} path parameter, runs op and acknowledges the result.
func (h *Handler) act(w http.ResponseWriter, r *http.Request, msg string, op func(context.Context, id.ProposalID) (*proposal.Proposal, error)) {
	ctx := r.Context()
	proposalID, err := id.ParseProposalID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := op(ctx, proposalID)
	if err != nil {
		h.logFailure(ctx, msg, err, "proposal_id", proposalID.String())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ActionResponse{
		OK:         true,
		ProposalID: p.ID,
		Status:     p.Status,
		Approvals:  p.Approvals(),
		Quorum:     p.Quorum,
	})
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error, attrs ...any) {
	args := append([]any{"request_id", requestcontext.RequestID(ctx), "error", err}, attrs...)
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, args...)
		return
	}
	h.logger.WarnContext(ctx, msg, args...)
}
