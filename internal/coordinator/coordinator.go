// Package coordinator orchestrates the domain modules.
//
// The proposal engine, guardrail evaluator, faucet manager, resource ledger
// and staking ledger each own their state; the coordinator strings them
// together: it reviews proposals (guardrails, then peer attestations),
// applies enacted changes, routes faucet requests and runs the system-wide
// guardrail sweep.
package coordinator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"concord/internal/coordinator/metrics"
	"concord/internal/faucet"
	"concord/internal/guardrail"
	"concord/internal/proposal"
	"concord/internal/registry"
	"concord/internal/resource"
	"concord/internal/staking"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/audit"
)

// Proposals is the proposal engine as the coordinator uses it.
type Proposals interface {
	Create(ctx context.Context, req proposal.CreateRequest) (*proposal.Proposal, error)
	Get(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error)
	List(ctx context.Context, filter proposal.Filter) ([]*proposal.Proposal, error)
	Attest(ctx context.Context, proposalID id.ProposalID, signer id.DomainID, vote proposal.Vote, noteRef string) (*proposal.Proposal, error)
	RequestSigners(ctx context.Context, proposalID id.ProposalID, signers []id.DomainID) (*proposal.Proposal, error)
	RecordGuardrails(ctx context.Context, proposalID id.ProposalID, results []proposal.GuardrailResult) (*proposal.Proposal, error)
	Enact(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error)
	Rollback(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error)
}

// Faucets is the faucet manager as the coordinator uses it.
type Faucets interface {
	Open(ctx context.Context, req faucet.OpenRequest) (*faucet.Faucet, error)
	List(ctx context.Context, filter faucet.Filter) ([]*faucet.Faucet, error)
	Scale(ctx context.Context, faucetID id.FaucetID, newRate float64) (*faucet.Faucet, error)
	Pause(ctx context.Context, faucetID id.FaucetID) (*faucet.Faucet, error)
	Close(ctx context.Context, faucetID id.FaucetID, reason string) (*faucet.Faucet, error)
}

// Resources is the resource ledger as the coordinator uses it.
type Resources interface {
	Deposit(ctx context.Context, domain id.DomainID, resourceType string, qty float64) (float64, error)
	Reserve(ctx context.Context, domain id.DomainID, resourceType string, qty float64) error
	RecentDemand(ctx context.Context, domain id.DomainID, resourceType string) (float64, error)
	List(ctx context.Context, domain id.DomainID) ([]resource.Stock, error)
}

// Stakes is the staking ledger as the coordinator uses it.
type Stakes interface {
	StakeDistribution(ctx context.Context, domain id.DomainID) ([]float64, error)
	Positions(ctx context.Context, domain id.DomainID) ([]*staking.Position, error)
	PoolTotals(ctx context.Context) ([]staking.PoolTotal, error)
}

// Guardrails is the guardrail evaluator as the coordinator uses it.
type Guardrails interface {
	Evaluate(ctx context.Context, name string, in guardrail.Input) (proposal.GuardrailResult, error)
	MeasuredImpact(ctx context.Context, domain id.DomainID) (float64, bool, error)
	Thresholds() guardrail.Thresholds
}

// EventCounter reports the size of the event log.
type EventCounter interface {
	Count(ctx context.Context) (int64, error)
}

const defaultGlobalWindow = 7 * 24 * time.Hour

// Service coordinates proposals, guardrails, faucets and stakes.
type Service struct {
	proposals  Proposals
	guardrails Guardrails
	faucets    Faucets
	resources  Resources
	stakes     Stakes
	events     EventCounter
	registry   *registry.Registry
	catalog    *Catalog
	attestor   PeerAttestor
	tracer     trace.Tracer

	globalWindow time.Duration
	throttle     bool

	logger   *slog.Logger
	recorder audit.Recorder
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithRecorder(r audit.Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAttestor replaces the default oracle-backed peer attestor.
func WithAttestor(a PeerAttestor) Option {
	return func(s *Service) {
		s.attestor = a
	}
}

func WithCatalog(c *Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

func WithEventCounter(c EventCounter) Option {
	return func(s *Service) {
		s.events = c
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// Deps are the modules the coordinator drives.
type Deps struct {
	Proposals  Proposals
	Guardrails Guardrails
	Faucets    Faucets
	Resources  Resources
	Stakes     Stakes
	Registry   *registry.Registry
}

func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		proposals:  deps.Proposals,
		guardrails: deps.Guardrails,
		faucets:    deps.Faucets,
		resources:  deps.Resources,
		stakes:     deps.Stakes,
		registry:   deps.Registry,

		globalWindow: defaultGlobalWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.catalog == nil {
		s.catalog = NewCatalog()
	}
	if s.attestor == nil {
		s.attestor = NewOracleAttestor(guardrail.NewStubOracle())
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("concord/coordinator")
	}
	return s
}

// Applier returns the change applier the proposal engine should enact
// through.
func (s *Service) Applier() proposal.ChangeApplier {
	return &applier{s: s}
}

// Catalog exposes the nodes and policy rules created by enactment.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Domains returns the registry table.
func (s *Service) Domains() []registry.Domain {
	return s.registry.All()
}

// Policies returns the current governance rules.
func (s *Service) Policies() []PolicyRule {
	return s.catalog.Policies()
}

// SubmitProposal creates a proposal and reviews it. A review failure leaves
// the proposal pending; it is logged and the created proposal returned so
// the caller can retry the review.
func (s *Service) SubmitProposal(ctx context.Context, req proposal.CreateRequest) (*proposal.Proposal, error) {
	p, err := s.proposals.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	reviewed, err := s.ReviewProposal(ctx, p.ID)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "review after submission failed",
				"proposal_id", p.ID.String(),
				"error", err,
			)
		}
		return p, nil
	}
	return reviewed, nil
}

func (s *Service) GetProposal(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error) {
	return s.proposals.Get(ctx, proposalID)
}

func (s *Service) ListProposals(ctx context.Context, filter proposal.Filter) ([]*proposal.Proposal, error) {
	return s.proposals.List(ctx, filter)
}

func (s *Service) AttestProposal(ctx context.Context, proposalID id.ProposalID, signer id.DomainID, vote proposal.Vote, noteRef string) (*proposal.Proposal, error) {
	return s.proposals.Attest(ctx, proposalID, signer, vote, noteRef)
}

func (s *Service) RollbackProposal(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error) {
	return s.proposals.Rollback(ctx, proposalID)
}

// EnactProposal enacts a proposal, reviewing it first when an open proposal
// still lacks guardrail results.
func (s *Service) EnactProposal(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error) {
	ctx, span := s.tracer.Start(ctx, "coordinator.enact",
		trace.WithAttributes(attribute.String("proposal.id", proposalID.String())))
	defer span.End()

	p, err := s.proposals.Get(ctx, proposalID)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if p.Status.IsOpen() {
		domain, err := s.registry.Get(p.Domain)
		if err != nil {
			recordSpanError(span, err)
			return nil, err
		}
		if len(p.MissingGuardrails(domain.RequiredGuardrails())) > 0 {
			if _, err := s.ReviewProposal(ctx, proposalID); err != nil && !dErrors.HasCode(err, dErrors.CodeExpiredProposal) {
				recordSpanError(span, err)
				return nil, err
			}
		}
	}

	enacted, err := s.proposals.Enact(ctx, proposalID)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("proposal.status", string(enacted.Status)))
	return enacted, nil
}

// FaucetRequest is a cross-domain resource flow requested outside a
// proposal.
type FaucetRequest struct {
	FromDomain       id.DomainID
	ToDomain         id.DomainID
	FromNode         string
	ToNode           string
	ResourceType     string
	Rate             float64
	DurationHours    float64
	ClaimedAvailable *float64
}

// CoordinateFaucetRequest checks that the source domain produces the
// resource and opens the faucet.
func (s *Service) CoordinateFaucetRequest(ctx context.Context, req FaucetRequest) (*faucet.Faucet, error) {
	ctx, span := s.tracer.Start(ctx, "coordinator.faucet_request",
		trace.WithAttributes(
			attribute.String("faucet.from", string(req.FromDomain)),
			attribute.String("faucet.to", string(req.ToDomain)),
			attribute.String("faucet.resource", req.ResourceType),
		))
	defer span.End()

	from, err := s.registry.Get(req.FromDomain)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if _, ok := from.Produces(req.ResourceType); !ok {
		err := dErrors.Newf(dErrors.CodeValidation, "domain %s does not produce %q", req.FromDomain, req.ResourceType)
		recordSpanError(span, err)
		return nil, err
	}

	f, err := s.faucets.Open(ctx, faucet.OpenRequest{
		FromDomain:       req.FromDomain,
		ToDomain:         req.ToDomain,
		FromNode:         req.FromNode,
		ToNode:           req.ToNode,
		ResourceType:     req.ResourceType,
		MaxRate:          req.Rate,
		DurationHours:    req.DurationHours,
		ClaimedAvailable: req.ClaimedAvailable,
	})
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("faucet.id", f.ID.String()))
	return f, nil
}

func (s *Service) logAudit(ctx context.Context, domain id.DomainID, event audit.EventType, msg string, attrs ...any) {
	audit.LogAudit(ctx, s.logger, s.recorder, domain, event, msg, attrs...)
}
