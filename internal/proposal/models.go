package proposal

import (
	"encoding/json"
	"sort"
	"time"

	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
)

// Status is a proposal's lifecycle state. Transitions only move forward:
// pending -> reviewing -> enacted | rejected, and pending | reviewing -> expired.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReviewing Status = "reviewing"
	StatusEnacted   Status = "enacted"
	StatusRejected  Status = "rejected"
	StatusExpired   Status = "expired"
)

// IsOpen reports whether the proposal can still collect votes.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusReviewing
}

// Vote is a signer domain's position on a proposal.
type Vote string

const (
	VoteApprove Vote = "approve"
	VoteReject  Vote = "reject"
	VoteAbstain Vote = "abstain"
)

func ParseVote(s string) (Vote, error) {
	switch v := Vote(s); v {
	case VoteApprove, VoteReject, VoteAbstain:
		return v, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown vote %q", s)
	}
}

// MetricsClaim holds the six author-asserted impact estimates. They are
// opaque inputs; the engine never computes them.
type MetricsClaim struct {
	Ecological float64 `json:"ecological"`
	Wellbeing  float64 `json:"wellbeing"`
	Efficiency float64 `json:"efficiency"`
	Resilience float64 `json:"resilience"`
	Equity     float64 `json:"equity"`
	Innovation float64 `json:"innovation"`
}

// ChangeKind names a change-application routine.
type ChangeKind string

const (
	ChangeAllocateResource ChangeKind = "allocate_resource"
	ChangeCreateNode       ChangeKind = "create_node"
	ChangeDepositStock     ChangeKind = "deposit_stock"
	ChangeAmendPolicy      ChangeKind = "amend_policy"
	ChangeNote             ChangeKind = "note"
)

// Change is one opaque change descriptor. Payload is decoded by the routine
// registered for Kind.
type Change struct {
	Kind    ChangeKind     `json:"kind"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Decode unmarshals the payload into v.
func (c Change) Decode(v any) error {
	raw, err := json.Marshal(c.Payload)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid change payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid "+string(c.Kind)+" payload")
	}
	return nil
}

// AllocateResource opens a faucet from the proposing domain.
type AllocateResource struct {
	ToDomain         id.DomainID `json:"to_domain"`
	FromNode         string      `json:"from_node"`
	ToNode           string      `json:"to_node"`
	ResourceType     string      `json:"resource_type"`
	Rate             float64     `json:"rate"`
	DurationHours    float64     `json:"duration_hours"`
	ClaimedAvailable *float64    `json:"claimed_available,omitempty"`
}

// CreateNode registers a named node in the proposing domain.
type CreateNode struct {
	NodeID string `json:"node_id"`
	Name   string `json:"name"`
}

// DepositStock adds produced stock to the proposing domain.
type DepositStock struct {
	ResourceType string  `json:"resource_type"`
	Quantity     float64 `json:"quantity"`
}

// AmendPolicy records a governance rule change.
type AmendPolicy struct {
	Rule string `json:"rule"`
	Text string `json:"text"`
}

// Attestation is a signer domain's latest vote. A later attestation from the
// same signer replaces the earlier one.
type Attestation struct {
	Signer    id.DomainID `json:"signer"`
	Vote      Vote        `json:"vote"`
	NoteRef   string      `json:"note_ref,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Outcome is a guardrail verdict.
type Outcome string

const (
	OutcomePass  Outcome = "pass"
	OutcomeScale Outcome = "scale"
	OutcomeVeto  Outcome = "veto"
)

// GuardrailResult is one guardrail's verdict with its evidence. Factor is set
// for OutcomeScale and discounts the quantities the proposal acts on.
type GuardrailResult struct {
	Name        string         `json:"name"`
	Outcome     Outcome        `json:"outcome"`
	Factor      float64        `json:"factor,omitempty"`
	Evidence    map[string]any `json:"evidence,omitempty"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}

// SideEffect references something enactment created, so rollback can
// compensate it.
type SideEffect struct {
	Kind string `json:"kind"` // "faucet", "node", "stock", "policy"
	Ref  string `json:"ref"`
}

// CompensationError reports a rollback that undid only some side effects.
// Done were compensated; Failed still stand.
type CompensationError struct {
	Done   []SideEffect
	Failed []SideEffect
	Err    error
}

func (e *CompensationError) Error() string { return e.Err.Error() }

func (e *CompensationError) Unwrap() error { return e.Err }

// Proposal is a requested change plus claimed impact, subject to review.
type Proposal struct {
	ID               id.ProposalID               `json:"id"`
	Domain           id.DomainID                 `json:"domain"`
	Author           string                      `json:"author"`
	Changes          []Change                    `json:"changes"`
	Metrics          MetricsClaim                `json:"metrics"`
	RationaleRef     string                      `json:"rationale_ref,omitempty"`
	Status           Status                      `json:"status"`
	Quorum           int                         `json:"quorum"`
	CreatedAt        time.Time                   `json:"created_at"`
	ExpiresAt        time.Time                   `json:"expires_at"`
	RequestedSigners []id.DomainID               `json:"requested_signers,omitempty"`
	Attestations     map[id.DomainID]Attestation `json:"attestations"`
	Guardrails       map[string]GuardrailResult  `json:"guardrails"`
	RejectionReason  string                      `json:"rejection_reason,omitempty"`
	EnactedAt        *time.Time                  `json:"enacted_at,omitempty"`
	RolledBackAt     *time.Time                  `json:"rolled_back_at,omitempty"`
	SideEffects      []SideEffect                `json:"side_effects,omitempty"`
	Compensated      []SideEffect                `json:"compensated,omitempty"`
	Version          int64                       `json:"version"`
}

// PendingCompensation lists side effects a rollback has not yet undone.
func (p *Proposal) PendingCompensation() []SideEffect {
	var out []SideEffect
	for _, e := range p.SideEffects {
		if !containsEffect(p.Compensated, e) {
			out = append(out, e)
		}
	}
	return out
}

func containsEffect(list []SideEffect, e SideEffect) bool {
	for _, x := range list {
		if x == e {
			return true
		}
	}
	return false
}

// Approvals counts distinct signer domains whose latest vote is approve.
func (p *Proposal) Approvals() int {
	n := 0
	for _, a := range p.Attestations {
		if a.Vote == VoteApprove {
			n++
		}
	}
	return n
}

// QuorumMet reports whether approvals reached the quorum requirement.
func (p *Proposal) QuorumMet() bool {
	return p.Approvals() >= p.Quorum
}

// Veto returns the first veto result by guardrail name, if any.
func (p *Proposal) Veto() (GuardrailResult, bool) {
	names := make([]string, 0, len(p.Guardrails))
	for name := range p.Guardrails {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if r := p.Guardrails[name]; r.Outcome == OutcomeVeto {
			return r, true
		}
	}
	return GuardrailResult{}, false
}

// MissingGuardrails lists required guardrails without a recorded result.
func (p *Proposal) MissingGuardrails(required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := p.Guardrails[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// ScaleFactor is the smallest factor of all scale results, or 1.
func (p *Proposal) ScaleFactor() float64 {
	f := 1.0
	for _, r := range p.Guardrails {
		if r.Outcome == OutcomeScale && r.Factor < f {
			f = r.Factor
		}
	}
	return f
}

// IsExpired reports whether an open proposal is past its review window. The
// expiry sweep is the only path that stores StatusExpired, so mutating
// calls consult this as well as Status.
func (p *Proposal) IsExpired(now time.Time) bool {
	if p.Status == StatusExpired {
		return true
	}
	return p.Status.IsOpen() && !now.Before(p.ExpiresAt)
}

// Clone returns a deep copy.
func (p *Proposal) Clone() *Proposal {
	c := *p
	c.Changes = make([]Change, len(p.Changes))
	for i, ch := range p.Changes {
		c.Changes[i] = Change{Kind: ch.Kind, Payload: cloneMap(ch.Payload)}
	}
	c.RequestedSigners = append([]id.DomainID(nil), p.RequestedSigners...)
	c.Attestations = make(map[id.DomainID]Attestation, len(p.Attestations))
	for k, v := range p.Attestations {
		c.Attestations[k] = v
	}
	c.Guardrails = make(map[string]GuardrailResult, len(p.Guardrails))
	for k, v := range p.Guardrails {
		v.Evidence = cloneMap(v.Evidence)
		c.Guardrails[k] = v
	}
	c.SideEffects = append([]SideEffect(nil), p.SideEffects...)
	c.Compensated = append([]SideEffect(nil), p.Compensated...)
	if p.EnactedAt != nil {
		t := *p.EnactedAt
		c.EnactedAt = &t
	}
	if p.RolledBackAt != nil {
		t := *p.RolledBackAt
		c.RolledBackAt = &t
	}
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// CreateRequest is the input to Create. Quorum overrides the domain default
// when set.
type CreateRequest struct {
	Domain       id.DomainID
	Author       string
	Changes      []Change
	Metrics      MetricsClaim
	RationaleRef string
	Quorum       *int
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Domain id.DomainID
	Status Status
}

func (f Filter) Matches(p *Proposal) bool {
	if f.Domain != "" && p.Domain != f.Domain {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	return true
}
