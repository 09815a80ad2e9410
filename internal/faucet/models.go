package faucet

import (
	"time"

	id "concord/pkg/domain"
)

// Status is the stored lifecycle state of a faucet.
type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusClosed Status = "closed"
)

// Close reasons recorded on the faucet.
const (
	ReasonClosed     = "closed"
	ReasonExpired    = "expired"
	ReasonRolledBack = "rolled_back"
)

// Operations named in refusal events.
const (
	opScale  = "scale"
	opPause  = "pause"
	opResume = "resume"
	opClose  = "close"
	opDraw   = "draw"
)

// Faucet is a rate-limited, time-bounded flow of one resource type between
// two nodes. Rates are units per hour.
//
// Invariants:
//   - 0 <= CurrentRate <= MaxRate
//   - Drawn <= Reserved for non-metered resource types
//   - once ClosesAt has passed the faucet reads as closed
type Faucet struct {
	ID           id.FaucetID    `json:"id"`
	FromDomain   id.DomainID    `json:"from_domain"`
	ToDomain     id.DomainID    `json:"to_domain"`
	FromNode     string         `json:"from_node"`
	ToNode       string         `json:"to_node"`
	ResourceType string         `json:"resource_type"`
	Metered      bool           `json:"metered"`
	MaxRate      float64        `json:"max_rate"`
	CurrentRate  float64        `json:"current_rate"`
	Reserved     float64        `json:"reserved"`
	Drawn        float64        `json:"drawn"`
	OpenedAt     time.Time      `json:"opened_at"`
	ClosesAt     time.Time      `json:"closes_at"`
	ClosedAt     *time.Time     `json:"closed_at,omitempty"`
	Status       Status         `json:"status"`
	CloseReason  string         `json:"close_reason,omitempty"`
	ProposalID   *id.ProposalID `json:"proposal_id,omitempty"`
}

// IsExpired reports whether the scheduled close time has passed.
func (f *Faucet) IsExpired(now time.Time) bool {
	return !now.Before(f.ClosesAt)
}

// EffectiveStatus applies lazy expiry: a faucet past ClosesAt is closed
// whether or not the sweep has run yet.
func (f *Faucet) EffectiveStatus(now time.Time) Status {
	if f.Status != StatusClosed && f.IsExpired(now) {
		return StatusClosed
	}
	return f.Status
}

// Remaining is the reserved quantity not yet drawn.
func (f *Faucet) Remaining() float64 {
	if f.Metered {
		return 0
	}
	return max(f.Reserved-f.Drawn, 0)
}

func (f *Faucet) clone() *Faucet {
	c := *f
	if f.ClosedAt != nil {
		t := *f.ClosedAt
		c.ClosedAt = &t
	}
	if f.ProposalID != nil {
		p := *f.ProposalID
		c.ProposalID = &p
	}
	return &c
}

// view returns a copy with lazy expiry applied.
func (f *Faucet) view(now time.Time) *Faucet {
	c := f.clone()
	if c.EffectiveStatus(now) == StatusClosed && c.Status != StatusClosed {
		c.Status = StatusClosed
		c.CloseReason = ReasonExpired
		closed := c.ClosesAt
		c.ClosedAt = &closed
	}
	return c
}

// OpenRequest describes a faucet to open. ClaimedAvailable is set when the
// caller asserts the resource is scarce; the claim is checked against stock.
type OpenRequest struct {
	FromDomain       id.DomainID
	ToDomain         id.DomainID
	FromNode         string
	ToNode           string
	ResourceType     string
	MaxRate          float64
	DurationHours    float64
	ClaimedAvailable *float64
	ProposalID       *id.ProposalID
}

// Demand is the total quantity a faucet can move over its lifetime.
func (r OpenRequest) Demand() float64 {
	return r.MaxRate * r.DurationHours
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Domain     id.DomainID
	Status     Status
	ProposalID *id.ProposalID
}

func (f Filter) matches(fc *Faucet, now time.Time) bool {
	if f.Domain != "" && fc.FromDomain != f.Domain && fc.ToDomain != f.Domain {
		return false
	}
	if f.Status != "" && fc.EffectiveStatus(now) != f.Status {
		return false
	}
	if f.ProposalID != nil && (fc.ProposalID == nil || *fc.ProposalID != *f.ProposalID) {
		return false
	}
	return true
}
