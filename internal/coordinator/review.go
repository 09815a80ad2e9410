package coordinator

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"concord/internal/guardrail"
	"concord/internal/proposal"
	"concord/internal/registry"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/requestcontext"
)

const guardrailTimeout = 5 * time.Second

// ReviewProposal runs the mandatory and domain-specific guardrails, records
// their verdicts and, unless one vetoed, requests the domain's peer
// attestations. Governance-relevant proposals also ask governance to attest.
// Domains configured to auto-attest have their requested peers vote at
// once. The proposal stays in review until quorum or expiry.
//
// Reviewing a decided proposal returns it unchanged.
func (s *Service) ReviewProposal(ctx context.Context, proposalID id.ProposalID) (*proposal.Proposal, error) {
	ctx, span := s.tracer.Start(ctx, "coordinator.review",
		trace.WithAttributes(attribute.String("proposal.id", proposalID.String())))
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveReviewLatency(time.Since(start)) }()

	p, err := s.proposals.Get(ctx, proposalID)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if !p.Status.IsOpen() {
		return p, nil
	}
	if p.IsExpired(requestcontext.Now(ctx)) {
		err := dErrors.New(dErrors.CodeExpiredProposal, "proposal has expired")
		recordSpanError(span, err)
		return nil, err
	}
	domain, err := s.registry.Get(p.Domain)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("proposal.domain", string(p.Domain)))

	results, err := s.runGuardrails(ctx, p, domain)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	p, err = s.proposals.RecordGuardrails(ctx, proposalID, results)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	if p.Status == proposal.StatusRejected {
		s.metrics.IncrementReview(string(p.Domain), string(p.Status))
		span.SetAttributes(attribute.String("proposal.status", string(p.Status)))
		return p, nil
	}

	p, err = s.requestAttestations(ctx, p, domain)
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	s.metrics.IncrementReview(string(p.Domain), string(p.Status))
	span.SetAttributes(
		attribute.String("proposal.status", string(p.Status)),
		attribute.Int("proposal.approvals", p.Approvals()),
	)
	return p, nil
}

// runGuardrails evaluates every guardrail the domain requires in parallel.
// Results keep the domain's guardrail order.
func (s *Service) runGuardrails(ctx context.Context, p *proposal.Proposal, domain registry.Domain) ([]proposal.GuardrailResult, error) {
	state, err := s.domainState(ctx, domain)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, guardrailTimeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	names := domain.RequiredGuardrails()
	results := make([]proposal.GuardrailResult, len(names))
	in := guardrail.Input{Proposal: p, Domain: domain, State: state}
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			r, err := s.guardrails.Evaluate(ctx, name, in)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "guardrail evaluation timed out")
		}
		return nil, err
	}
	return results, nil
}

// domainState gathers the domain-local data guardrails look at.
func (s *Service) domainState(ctx context.Context, domain registry.Domain) (guardrail.DomainState, error) {
	distribution, err := s.stakes.StakeDistribution(ctx, domain.ID)
	if err != nil {
		return guardrail.DomainState{}, err
	}
	stocks, err := s.resources.List(ctx, domain.ID)
	if err != nil {
		return guardrail.DomainState{}, err
	}
	state := guardrail.DomainState{
		StakeDistribution: distribution,
		Stock:             make(map[string]float64, len(stocks)),
		RecentDemand:      make(map[string]float64, len(stocks)),
	}
	for _, st := range stocks {
		state.Stock[st.ResourceType] = st.Available
		demand, err := s.resources.RecentDemand(ctx, domain.ID, st.ResourceType)
		if err != nil {
			return guardrail.DomainState{}, err
		}
		state.RecentDemand[st.ResourceType] = demand
	}
	return state, nil
}

// requestAttestations asks the routed peers to attest and, for auto-attesting
// domains, casts the votes of peers that have not voted yet.
func (s *Service) requestAttestations(ctx context.Context, p *proposal.Proposal, domain registry.Domain) (*proposal.Proposal, error) {
	signers := s.signersFor(p, domain)
	if len(signers) == 0 {
		return p, nil
	}
	p, err := s.proposals.RequestSigners(ctx, p.ID, signers)
	if err != nil {
		return nil, err
	}
	if !domain.AutoAttest {
		return p, nil
	}

	for _, signer := range p.RequestedSigners {
		if _, voted := p.Attestations[signer]; voted {
			continue
		}
		vote, note, err := s.attestor.Attest(ctx, signer, p)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "peer attestation failed")
		}
		p, err = s.proposals.Attest(ctx, p.ID, signer, vote, note)
		if err != nil {
			return nil, err
		}
		s.metrics.IncrementAutoAttestation(string(signer), string(vote))
	}
	return p, nil
}

// signersFor returns the domain's peers, plus governance when the proposal
// changes policy.
func (s *Service) signersFor(p *proposal.Proposal, domain registry.Domain) []id.DomainID {
	signers := append([]id.DomainID(nil), domain.Peers...)
	if governanceRelevant(p) && p.Domain != id.Governance && !containsDomain(signers, id.Governance) {
		signers = append(signers, id.Governance)
	}
	return signers
}

func governanceRelevant(p *proposal.Proposal) bool {
	for _, c := range p.Changes {
		if c.Kind == proposal.ChangeAmendPolicy {
			return true
		}
	}
	return false
}

func containsDomain(list []id.DomainID, d id.DomainID) bool {
	for _, x := range list {
		if x == d {
			return true
		}
	}
	return false
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}
