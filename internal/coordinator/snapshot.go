package coordinator

import (
	"context"
	"time"

	"concord/internal/faucet"
	"concord/internal/guardrail"
	"concord/internal/proposal"
	"concord/internal/registry"
	"concord/internal/resource"
	"concord/internal/staking"
	id "concord/pkg/domain"
	"concord/pkg/requestcontext"
)

// DomainSnapshot is a domain's local state at one instant.
type DomainSnapshot struct {
	Domain         registry.Domain         `json:"domain"`
	ProposalCounts map[proposal.Status]int `json:"proposal_counts"`
	OpenProposals  []*proposal.Proposal    `json:"open_proposals"`
	Faucets        []*faucet.Faucet        `json:"faucets"`
	Stock          []resource.Stock        `json:"stock"`
	Stakes         []*staking.Position     `json:"stakes"`
	StakeGini      float64                 `json:"stake_gini"`
	Nodes          []Node                  `json:"nodes"`
	AsOf           time.Time               `json:"as_of"`
}

// DomainSnapshot collects proposals, faucets touching the domain, stock and
// stakes. Closed faucets are left out.
func (s *Service) DomainSnapshot(ctx context.Context, domainID id.DomainID) (*DomainSnapshot, error) {
	domain, err := s.registry.Get(domainID)
	if err != nil {
		return nil, err
	}
	proposals, err := s.proposals.List(ctx, proposal.Filter{Domain: domainID})
	if err != nil {
		return nil, err
	}
	faucets, err := s.faucets.List(ctx, faucet.Filter{Domain: domainID})
	if err != nil {
		return nil, err
	}
	stock, err := s.resources.List(ctx, domainID)
	if err != nil {
		return nil, err
	}
	positions, err := s.stakes.Positions(ctx, domainID)
	if err != nil {
		return nil, err
	}
	distribution, err := s.stakes.StakeDistribution(ctx, domainID)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	snap := &DomainSnapshot{
		Domain:         domain,
		ProposalCounts: make(map[proposal.Status]int),
		OpenProposals:  []*proposal.Proposal{},
		Faucets:        []*faucet.Faucet{},
		Stock:          stock,
		Stakes:         positions,
		StakeGini:      guardrail.Gini(distribution),
		Nodes:          s.catalog.Nodes(domainID),
		AsOf:           now,
	}
	for _, p := range proposals {
		snap.ProposalCounts[p.Status]++
		if p.Status.IsOpen() && !p.IsExpired(now) {
			snap.OpenProposals = append(snap.OpenProposals, p)
		}
	}
	for _, f := range faucets {
		if f.EffectiveStatus(now) != faucet.StatusClosed {
			snap.Faucets = append(snap.Faucets, f)
		}
	}
	return snap, nil
}

// Summary is the system-wide aggregate served to dashboards.
type Summary struct {
	ProposalsByStatus map[proposal.Status]int `json:"proposals_by_status"`
	ActiveProposals   int                     `json:"active_proposals"`
	ActiveFaucets     int                     `json:"active_faucets"`
	FaucetThroughput  float64                 `json:"faucet_throughput_per_hour"`
	TotalEvents       int64                   `json:"total_events"`
	Pools             []staking.PoolTotal     `json:"pools"`
	Policies          int                     `json:"policies"`
	AsOf              time.Time               `json:"as_of"`
}

// Metrics aggregates proposal counts, faucet throughput, staking pools and
// the event log size. Open proposals past their window count as expired.
func (s *Service) Metrics(ctx context.Context) (*Summary, error) {
	proposals, err := s.proposals.List(ctx, proposal.Filter{})
	if err != nil {
		return nil, err
	}
	faucets, err := s.faucets.List(ctx, faucet.Filter{Status: faucet.StatusActive})
	if err != nil {
		return nil, err
	}
	pools, err := s.stakes.PoolTotals(ctx)
	if err != nil {
		return nil, err
	}
	var total int64
	if s.events != nil {
		if total, err = s.events.Count(ctx); err != nil {
			return nil, err
		}
	}

	now := requestcontext.Now(ctx)
	sum := &Summary{
		ProposalsByStatus: make(map[proposal.Status]int),
		ActiveFaucets:     len(faucets),
		TotalEvents:       total,
		Pools:             pools,
		Policies:          len(s.catalog.Policies()),
		AsOf:              now,
	}
	for _, p := range proposals {
		status := p.Status
		if p.IsExpired(now) {
			status = proposal.StatusExpired
		}
		sum.ProposalsByStatus[status]++
		if status.IsOpen() {
			sum.ActiveProposals++
		}
	}
	for _, f := range faucets {
		sum.FaucetThroughput += f.CurrentRate
	}
	return sum, nil
}
