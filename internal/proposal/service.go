// Package proposal implements the proposal state machine: creation,
// attestations, guardrail results, enactment, rollback and expiry.
//
// Every mutation of one proposal runs under that proposal's lock, so votes
// are never lost and enactment never runs twice or races a rollback. Store
// writes are additionally version-checked; a conflicting write is retried
// once against a fresh copy and then reported as ConcurrentModification.
package proposal

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"concord/internal/proposal/metrics"
	"concord/internal/registry"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/audit"
	"concord/pkg/platform/entitylock"
	"concord/pkg/platform/sentinel"
	"concord/pkg/requestcontext"
)

const maxNoteRefLength = 512

// Store persists proposals. Update must fail with sentinel.ErrConflict when
// p.Version no longer matches the stored version, and bump p.Version on
// success.
type Store interface {
	Create(ctx context.Context, p *Proposal) error
	Get(ctx context.Context, proposalID id.ProposalID) (*Proposal, error)
	Update(ctx context.Context, p *Proposal) error
	List(ctx context.Context, filter Filter) ([]*Proposal, error)
}

// ChangeApplier carries out a proposal's changes. Apply is all-or-nothing:
// when it fails it has already undone whatever it did. Compensate undoes
// the side effects of a successful Apply.
type ChangeApplier interface {
	Apply(ctx context.Context, p *Proposal) ([]SideEffect, error)
	Compensate(ctx context.Context, p *Proposal, effects []SideEffect) error
}

type nopApplier struct{}

func (nopApplier) Apply(context.Context, *Proposal) ([]SideEffect, error)    { return nil, nil }
func (nopApplier) Compensate(context.Context, *Proposal, []SideEffect) error { return nil }

// errNoChange short-circuits a write for idempotent no-ops.
var errNoChange = errors.New("no change")

// Service implements the proposal engine.
type Service struct {
	store    Store
	registry *registry.Registry
	applier  ChangeApplier
	locks    *entitylock.Locker
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

// WithApplier sets the routine that carries out changes on enactment.
func WithApplier(a ChangeApplier) Option {
	return func(s *Service) {
		s.applier = a
	}
}

func New(store Store, reg *registry.Registry, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: reg,
		applier:  nopApplier{},
		locks:    entitylock.New(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetApplier replaces the change applier. The coordinator depends on the
// proposal service and applies changes for it, so it is wired after both
// are constructed.
func (s *Service) SetApplier(a ChangeApplier) {
	s.applier = a
}

// Create validates and stores a new pending proposal. Its quorum defaults to
// the domain's and it expires after the domain's review window.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Proposal, error) {
	domain, err := s.registry.Get(req.Domain)
	if err != nil {
		s.logAudit(ctx, id.System, audit.EventProposalInvalid, "proposal rejected at creation",
			"author", req.Author,
			"reason", dErrors.MessageOf(err),
		)
		return nil, err
	}
	if err := validateCreate(&req, domain); err != nil {
		s.logAudit(ctx, req.Domain, audit.EventProposalInvalid, "proposal rejected at creation",
			"author", req.Author,
			"reason", dErrors.MessageOf(err),
		)
		return nil, err
	}

	now := requestcontext.Now(ctx)
	quorum := domain.Quorum
	if req.Quorum != nil {
		quorum = *req.Quorum
	}
	p := &Proposal{
		ID:           id.NewProposalID(),
		Domain:       req.Domain,
		Author:       req.Author,
		Changes:      req.Changes,
		Metrics:      req.Metrics,
		RationaleRef: strings.TrimSpace(req.RationaleRef),
		Status:       StatusPending,
		Quorum:       quorum,
		CreatedAt:    now,
		ExpiresAt:    now.Add(domain.ReviewWindow),
		Attestations: make(map[id.DomainID]Attestation),
		Guardrails:   make(map[string]GuardrailResult),
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create proposal")
	}

	s.metrics.IncrementCreated(string(p.Domain))
	s.logAudit(ctx, p.Domain, audit.EventProposalCreated, "proposal created",
		"proposal_id", p.ID,
		"author", p.Author,
		"changes", len(p.Changes),
		"quorum", p.Quorum,
		"expires_at", p.ExpiresAt,
	)
	return p.Clone(), nil
}

// Get returns a proposal.
func (s *Service) Get(ctx context.Context, proposalID id.ProposalID) (*Proposal, error) {
	return s.load(ctx, proposalID)
}

// List returns proposals matching filter in creation order.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Proposal, error) {
	proposals, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list proposals")
	}
	return proposals, nil
}

// Attest records signer's vote, replacing any earlier vote from the same
// signer. The first vote moves a pending proposal into review.
func (s *Service) Attest(ctx context.Context, proposalID id.ProposalID, signer id.DomainID, vote Vote, noteRef string) (*Proposal, error) {
	if err := validateAttestation(signer, vote, noteRef); err != nil {
		return nil, s.refused(ctx, proposalID, audit.EventAttestationRefused, "attestation refused", err, "signer", string(signer))
	}

	var transitioned, replaced bool
	p, err := s.mutate(ctx, proposalID, func(p *Proposal) error {
		if p.Domain == signer {
			return dErrors.New(dErrors.CodeValidation, "a domain cannot attest its own proposal")
		}
		if err := s.requireOpen(ctx, p); err != nil {
			return err
		}
		_, replaced = p.Attestations[signer]
		p.Attestations[signer] = Attestation{
			Signer:    signer,
			Vote:      vote,
			NoteRef:   noteRef,
			Timestamp: requestcontext.Now(ctx),
		}
		transitioned = p.Status == StatusPending
		if transitioned {
			p.Status = StatusReviewing
		}
		return nil
	})
	if err != nil {
		return nil, s.refused(ctx, proposalID, audit.EventAttestationRefused, "attestation refused", err, "signer", string(signer))
	}

	s.metrics.IncrementAttestation(string(signer), string(vote))
	s.logAudit(ctx, p.Domain, audit.EventAttestationRecorded, "attestation recorded",
		"proposal_id", p.ID,
		"signer", string(signer),
		"vote", string(vote),
		"replaced", replaced,
		"approvals", p.Approvals(),
		"quorum", p.Quorum,
	)
	if transitioned {
		s.transitioned(ctx, p, audit.EventProposalReviewing, "proposal under review")
	}
	return p, nil
}

func validateAttestation(signer id.DomainID, vote Vote, noteRef string) error {
	if !signer.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown signer domain %q", signer)
	}
	if _, err := ParseVote(string(vote)); err != nil {
		return err
	}
	if len(noteRef) > maxNoteRefLength {
		return dErrors.New(dErrors.CodeValidation, "note reference is too long")
	}
	return nil
}

// RequestSigners records the peers asked to attest. Already requested peers
// and the origin domain are skipped.
func (s *Service) RequestSigners(ctx context.Context, proposalID id.ProposalID, signers []id.DomainID) (*Proposal, error) {
	var added []id.DomainID
	p, err := s.mutate(ctx, proposalID, func(p *Proposal) error {
		if err := s.requireOpen(ctx, p); err != nil {
			return err
		}
		added = added[:0]
		for _, signer := range signers {
			if signer == p.Domain || !signer.IsValid() || containsDomain(p.RequestedSigners, signer) {
				continue
			}
			p.RequestedSigners = append(p.RequestedSigners, signer)
			added = append(added, signer)
		}
		if len(added) == 0 {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return nil, s.refused(ctx, proposalID, audit.EventSignerRequestRefused, "signer request refused", err)
	}
	for _, signer := range added {
		s.logAudit(ctx, p.Domain, audit.EventAttestationRequested, "attestation requested",
			"proposal_id", p.ID,
			"signer", string(signer),
		)
	}
	return p, nil
}

// RecordGuardrails stores guardrail results, replacing earlier results of
// the same name. Any veto is terminal and rejects the proposal.
func (s *Service) RecordGuardrails(ctx context.Context, proposalID id.ProposalID, results []GuardrailResult) (*Proposal, error) {
	if len(results) == 0 {
		err := dErrors.New(dErrors.CodeValidation, "no guardrail results")
		return nil, s.refused(ctx, proposalID, audit.EventGuardrailRefused, "guardrail results refused", err)
	}
	var (
		transitioned bool
		veto         *GuardrailResult
	)
	p, err := s.mutate(ctx, proposalID, func(p *Proposal) error {
		if err := s.requireOpen(ctx, p); err != nil {
			return err
		}
		veto = nil
		for _, r := range results {
			p.Guardrails[r.Name] = r
			if r.Outcome == OutcomeVeto && veto == nil {
				r := r
				veto = &r
			}
		}
		transitioned = p.Status == StatusPending
		if veto != nil {
			p.Status = StatusRejected
			p.RejectionReason = "vetoed by " + veto.Name + " guardrail"
			return nil
		}
		if transitioned {
			p.Status = StatusReviewing
		}
		return nil
	})
	if err != nil {
		return nil, s.refused(ctx, proposalID, audit.EventGuardrailRefused, "guardrail results refused", err)
	}

	for _, r := range results {
		s.logAudit(ctx, p.Domain, audit.EventGuardrailEvaluated, "guardrail evaluated",
			"proposal_id", p.ID,
			"guardrail", r.Name,
			"outcome", string(r.Outcome),
			"factor", r.Factor,
		)
	}
	if veto != nil {
		s.logAudit(ctx, p.Domain, audit.EventGuardrailVetoed, "guardrail vetoed proposal",
			"proposal_id", p.ID,
			"guardrail", veto.Name,
			"evidence", veto.Evidence,
		)
		s.transitioned(ctx, p, audit.EventProposalRejected, "proposal rejected",
			"reason", p.RejectionReason,
		)
		return p, nil
	}
	if transitioned {
		s.transitioned(ctx, p, audit.EventProposalReviewing, "proposal under review")
	}
	return p, nil
}

// Enact checks guardrails and quorum, applies the proposal's changes and
// marks it enacted. Enacting an enacted proposal is a no-op.
func (s *Service) Enact(ctx context.Context, proposalID id.ProposalID) (*Proposal, error) {
	var (
		out     *Proposal
		enacted bool
	)
	err := s.locks.RunLocked(ctx, proposalID.String(), func(ctx context.Context) error {
		p, err := s.load(ctx, proposalID)
		if err != nil {
			return err
		}
		if p.Status == StatusEnacted {
			out = p
			return nil
		}
		if err := s.checkEnactable(ctx, p); err != nil {
			return err
		}

		effects, err := s.applier.Apply(ctx, p.Clone())
		if err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		p, err = s.write(ctx, p, func(p *Proposal) error {
			if !p.Status.IsOpen() {
				return dErrors.Newf(dErrors.CodeConcurrentModification, "proposal became %s during enactment", p.Status)
			}
			p.Status = StatusEnacted
			p.EnactedAt = &now
			p.SideEffects = effects
			return nil
		})
		if err != nil {
			if cErr := s.applier.Compensate(ctx, p, effects); cErr != nil && s.logger != nil {
				s.logger.ErrorContext(ctx, "failed to compensate after enact write failure",
					"proposal_id", proposalID.String(),
					"error", cErr,
				)
			}
			return err
		}
		out = p
		enacted = true
		return nil
	})
	if err != nil {
		s.metrics.IncrementEnactRefused(string(dErrors.CodeOf(err)))
		return nil, s.refused(ctx, proposalID, audit.EventEnactRefused, "enact refused", err)
	}
	if enacted {
		s.transitioned(ctx, out, audit.EventProposalEnacted, "proposal enacted",
			"approvals", out.Approvals(),
			"side_effects", len(out.SideEffects),
			"scale_factor", out.ScaleFactor(),
		)
	}
	return out, nil
}

// checkEnactable applies the enactment preconditions in order: expiry, a
// terminal rejection, outstanding guardrails, then quorum.
func (s *Service) checkEnactable(ctx context.Context, p *Proposal) error {
	if p.IsExpired(requestcontext.Now(ctx)) {
		return dErrors.Newf(dErrors.CodeExpiredProposal, "proposal expired at %s", p.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	if p.Status == StatusRejected {
		if veto, ok := p.Veto(); ok {
			return dErrors.Newf(dErrors.CodeGuardrailVetoed, "proposal was vetoed by the %s guardrail", veto.Name)
		}
		return dErrors.New(dErrors.CodeInvariantViolation, "proposal was rejected")
	}
	domain, err := s.registry.Get(p.Domain)
	if err != nil {
		return err
	}
	if missing := p.MissingGuardrails(domain.RequiredGuardrails()); len(missing) > 0 {
		return dErrors.Newf(dErrors.CodeGuardrailPending, "guardrails not yet evaluated: %s", strings.Join(missing, ", "))
	}
	if !p.QuorumMet() {
		return dErrors.Newf(dErrors.CodeQuorumNotMet, "%d of %d required approvals", p.Approvals(), p.Quorum)
	}
	return nil
}

// Rollback withdraws a proposal. Open proposals are rejected; enacted
// proposals have their side effects compensated and keep their status.
// Rolling back a rejected or already rolled-back proposal is a no-op. A
// partial compensation is stored so a retry only undoes what remains.
func (s *Service) Rollback(ctx context.Context, proposalID id.ProposalID) (*Proposal, error) {
	var (
		out     *Proposal
		event   audit.EventType
		partial *CompensationError
	)
	err := s.locks.RunLocked(ctx, proposalID.String(), func(ctx context.Context) error {
		p, err := s.load(ctx, proposalID)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		if p.IsExpired(now) {
			return dErrors.New(dErrors.CodeExpiredProposal, "proposal has expired")
		}

		switch {
		case p.Status == StatusRejected, p.Status == StatusEnacted && p.RolledBackAt != nil:
			out = p
			return nil
		case p.Status.IsOpen():
			p, err = s.write(ctx, p, func(p *Proposal) error {
				if !p.Status.IsOpen() {
					return dErrors.Newf(dErrors.CodeConcurrentModification, "proposal became %s during rollback", p.Status)
				}
				p.Status = StatusRejected
				p.RejectionReason = "withdrawn"
				return nil
			})
			if err != nil {
				return err
			}
			out, event = p, audit.EventProposalRejected
			return nil
		default:
			pending := p.PendingCompensation()
			if cErr := s.applier.Compensate(ctx, p.Clone(), pending); cErr != nil {
				partial = compensationFailure(cErr, pending)
				if len(partial.Done) > 0 {
					if _, err := s.write(ctx, p, func(p *Proposal) error {
						p.Compensated = append(p.Compensated, partial.Done...)
						return nil
					}); err != nil && s.logger != nil {
						s.logger.ErrorContext(ctx, "failed to record partial compensation",
							"proposal_id", proposalID.String(),
							"error", err,
						)
					}
				}
				return cErr
			}
			p, err = s.write(ctx, p, func(p *Proposal) error {
				if p.RolledBackAt != nil {
					return errNoChange
				}
				p.Compensated = append(p.Compensated, pending...)
				p.RolledBackAt = &now
				return nil
			})
			if err != nil {
				return err
			}
			out, event = p, audit.EventProposalRolledBack
			return nil
		}
	})
	if err != nil {
		if partial != nil {
			return nil, s.refused(ctx, proposalID, audit.EventRollbackFailed, "rollback incomplete", err,
				"compensated", effectRefs(partial.Done),
				"outstanding", effectRefs(partial.Failed),
			)
		}
		return nil, s.refused(ctx, proposalID, audit.EventRollbackRefused, "rollback refused", err)
	}
	switch event {
	case audit.EventProposalRejected:
		s.transitioned(ctx, out, event, "proposal withdrawn", "reason", out.RejectionReason)
	case audit.EventProposalRolledBack:
		s.logAudit(ctx, out.Domain, event, "proposal rolled back",
			"proposal_id", out.ID,
			"side_effects", len(out.SideEffects),
		)
	}
	return out, nil
}

// Expire moves every open proposal past its review window to expired. It
// has no other side effects. Failures are logged and the sweep moves on.
func (s *Service) Expire(ctx context.Context) (int, error) {
	var candidates []*Proposal
	for _, status := range []Status{StatusPending, StatusReviewing} {
		ps, err := s.store.List(ctx, Filter{Status: status})
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list open proposals")
		}
		candidates = append(candidates, ps...)
	}

	now := requestcontext.Now(ctx)
	expired := 0
	for _, candidate := range candidates {
		if !candidate.IsExpired(now) {
			continue
		}
		var p *Proposal
		err := s.locks.RunLocked(ctx, candidate.ID.String(), func(ctx context.Context) error {
			fresh, err := s.load(ctx, candidate.ID)
			if err != nil {
				return err
			}
			p, err = s.write(ctx, fresh, func(p *Proposal) error {
				if !p.Status.IsOpen() || !p.IsExpired(now) {
					return errNoChange
				}
				p.Status = StatusExpired
				return nil
			})
			return err
		})
		if err != nil {
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "failed to expire proposal",
					"proposal_id", candidate.ID.String(),
					"error", err,
				)
			}
			continue
		}
		if p.Status == StatusExpired {
			expired++
			s.transitioned(ctx, p, audit.EventProposalExpired, "proposal expired",
				"approvals", p.Approvals(),
				"quorum", p.Quorum,
			)
		}
	}
	return expired, nil
}

// requireOpen rejects mutations of expired or decided proposals.
func (s *Service) requireOpen(ctx context.Context, p *Proposal) error {
	if p.IsExpired(requestcontext.Now(ctx)) {
		return dErrors.New(dErrors.CodeExpiredProposal, "proposal has expired")
	}
	if !p.Status.IsOpen() {
		return dErrors.Newf(dErrors.CodeConflict, "proposal is %s", p.Status)
	}
	return nil
}

// mutate loads the proposal under its lock, applies fn and writes it.
func (s *Service) mutate(ctx context.Context, proposalID id.ProposalID, fn func(p *Proposal) error) (*Proposal, error) {
	var out *Proposal
	err := s.locks.RunLocked(ctx, proposalID.String(), func(ctx context.Context) error {
		p, err := s.load(ctx, proposalID)
		if err != nil {
			return err
		}
		out, err = s.write(ctx, p, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// write applies fn to p and stores it. On a version conflict it reloads,
// reapplies fn and tries once more. fn returning errNoChange skips the write.
func (s *Service) write(ctx context.Context, p *Proposal, fn func(p *Proposal) error) (*Proposal, error) {
	if err := fn(p); err != nil {
		if errors.Is(err, errNoChange) {
			return p, nil
		}
		return p, err
	}
	err := s.store.Update(ctx, p)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		return p, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save proposal")
	}

	s.metrics.IncrementRetry()
	fresh, err := s.load(ctx, p.ID)
	if err != nil {
		return p, err
	}
	if err := fn(fresh); err != nil {
		if errors.Is(err, errNoChange) {
			return fresh, nil
		}
		return fresh, err
	}
	if err := s.store.Update(ctx, fresh); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return fresh, dErrors.New(dErrors.CodeConcurrentModification, "proposal was modified concurrently")
		}
		return fresh, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save proposal")
	}
	return fresh, nil
}

func (s *Service) load(ctx context.Context, proposalID id.ProposalID) (*Proposal, error) {
	p, err := s.store.Get(ctx, proposalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "proposal %s not found", proposalID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load proposal")
	}
	return p, nil
}

// refused records a rejected operation on the event log and returns err.
func (s *Service) refused(ctx context.Context, proposalID id.ProposalID, event audit.EventType, msg string, err error, attrs ...any) error {
	args := append([]any{
		"proposal_id", proposalID,
		"reason", string(dErrors.CodeOf(err)),
		"error", dErrors.MessageOf(err),
	}, attrs...)
	s.logAudit(ctx, s.domainOf(ctx, proposalID), event, msg, args...)
	return err
}

// compensationFailure normalises a Compensate error. Appliers that do not
// report progress are treated as having undone nothing.
func compensationFailure(err error, pending []SideEffect) *CompensationError {
	var ce *CompensationError
	if errors.As(err, &ce) {
		return ce
	}
	return &CompensationError{Failed: pending, Err: err}
}

func effectRefs(effects []SideEffect) []string {
	refs := make([]string, 0, len(effects))
	for _, e := range effects {
		refs = append(refs, e.Kind+":"+e.Ref)
	}
	return refs
}

// domainOf tags refusal events; unknown proposals are tagged system.
func (s *Service) domainOf(ctx context.Context, proposalID id.ProposalID) id.DomainID {
	p, err := s.store.Get(ctx, proposalID)
	if err != nil {
		return id.System
	}
	return p.Domain
}

func (s *Service) transitioned(ctx context.Context, p *Proposal, event audit.EventType, msg string, attrs ...any) {
	s.metrics.IncrementTransition(string(p.Domain), string(p.Status))
	args := append([]any{"proposal_id", p.ID, "status", string(p.Status)}, attrs...)
	s.logAudit(ctx, p.Domain, event, msg, args...)
}

func (s *Service) logAudit(ctx context.Context, domain id.DomainID, event audit.EventType, msg string, attrs ...any) {
	audit.LogAudit(ctx, s.logger, s.recorder, domain, event, msg, attrs...)
}

func containsDomain(list []id.DomainID, d id.DomainID) bool {
	for _, x := range list {
		if x == d {
			return true
		}
	}
	return false
}
