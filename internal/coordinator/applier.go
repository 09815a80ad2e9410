package coordinator

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"concord/internal/faucet"
	"concord/internal/proposal"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/audit"
	"concord/pkg/platform/sentinel"
	"concord/pkg/requestcontext"
)

// Side effect kinds recorded on enacted proposals.
const (
	effectFaucet = "faucet"
	effectNode   = "node"
	effectStock  = "stock"
	effectPolicy = "policy"
)

// applier turns a proposal's changes into faucets, nodes, stock deposits
// and policy amendments. Apply is all-or-nothing: when a change fails, the
// effects of the earlier ones are compensated in reverse order.
type applier struct {
	s *Service
}

func (a *applier) Apply(ctx context.Context, p *proposal.Proposal) ([]proposal.SideEffect, error) {
	factor := p.ScaleFactor()
	var effects []proposal.SideEffect
	for i, c := range p.Changes {
		effect, err := a.apply(ctx, p, c, factor)
		if err != nil {
			a.s.metrics.IncrementChange(string(c.Kind), "failed")
			if cErr := a.Compensate(ctx, p, effects); cErr != nil && a.s.logger != nil {
				a.s.logger.ErrorContext(ctx, "failed to compensate partial enactment",
					"proposal_id", p.ID.String(),
					"error", cErr,
				)
			}
			if dErrors.CodeOf(err) == dErrors.CodeInternal {
				return nil, dErrors.Wrap(err, dErrors.CodeInternal, "change "+strconv.Itoa(i)+" failed")
			}
			return nil, err
		}
		a.s.metrics.IncrementChange(string(c.Kind), "applied")
		if effect != nil {
			effects = append(effects, *effect)
		}
	}
	return effects, nil
}

func (a *applier) apply(ctx context.Context, p *proposal.Proposal, c proposal.Change, factor float64) (*proposal.SideEffect, error) {
	switch c.Kind {
	case proposal.ChangeAllocateResource:
		var alloc proposal.AllocateResource
		if err := c.Decode(&alloc); err != nil {
			return nil, err
		}
		proposalID := p.ID
		f, err := a.s.faucets.Open(ctx, faucet.OpenRequest{
			FromDomain:       p.Domain,
			ToDomain:         alloc.ToDomain,
			FromNode:         alloc.FromNode,
			ToNode:           alloc.ToNode,
			ResourceType:     alloc.ResourceType,
			MaxRate:          alloc.Rate * factor,
			DurationHours:    alloc.DurationHours,
			ClaimedAvailable: alloc.ClaimedAvailable,
			ProposalID:       &proposalID,
		})
		if err != nil {
			return nil, err
		}
		return &proposal.SideEffect{Kind: effectFaucet, Ref: f.ID.String()}, nil

	case proposal.ChangeCreateNode:
		var n proposal.CreateNode
		if err := c.Decode(&n); err != nil {
			return nil, err
		}
		node := Node{
			ID:         n.NodeID,
			Domain:     p.Domain,
			Name:       n.Name,
			ProposalID: p.ID,
			CreatedAt:  requestcontext.Now(ctx),
		}
		if err := a.s.catalog.AddNode(node); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return nil, dErrors.Newf(dErrors.CodeConflict, "node %q already exists in %s", n.NodeID, p.Domain)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create node")
		}
		a.s.logAudit(ctx, p.Domain, audit.EventNodeCreated, "node created",
			"proposal_id", p.ID,
			"node_id", node.ID,
			"name", node.Name,
		)
		return &proposal.SideEffect{Kind: effectNode, Ref: nodeKey(p.Domain, node.ID)}, nil

	case proposal.ChangeDepositStock:
		var d proposal.DepositStock
		if err := c.Decode(&d); err != nil {
			return nil, err
		}
		if _, err := a.s.resources.Deposit(ctx, p.Domain, d.ResourceType, d.Quantity); err != nil {
			return nil, err
		}
		return &proposal.SideEffect{Kind: effectStock, Ref: stockRef(d.ResourceType, d.Quantity)}, nil

	case proposal.ChangeAmendPolicy:
		var amend proposal.AmendPolicy
		if err := c.Decode(&amend); err != nil {
			return nil, err
		}
		a.s.catalog.AmendPolicy(PolicyRule{
			Rule:       amend.Rule,
			Text:       amend.Text,
			ProposalID: p.ID,
			AmendedAt:  requestcontext.Now(ctx),
		})
		a.s.logAudit(ctx, id.Governance, audit.EventPolicyAmended, "policy amended",
			"proposal_id", p.ID,
			"origin", string(p.Domain),
			"rule", amend.Rule,
		)
		return &proposal.SideEffect{Kind: effectPolicy, Ref: amend.Rule}, nil

	case proposal.ChangeNote:
		return nil, nil

	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown change kind %q", c.Kind)
	}
}

// Compensate undoes side effects in reverse order. It attempts every effect;
// on failure it returns a *proposal.CompensationError wrapping the first
// failure and listing which effects were undone.
func (a *applier) Compensate(ctx context.Context, p *proposal.Proposal, effects []proposal.SideEffect) error {
	var (
		first        error
		done, failed []proposal.SideEffect
	)
	for i := len(effects) - 1; i >= 0; i-- {
		e := effects[i]
		if err := a.compensate(ctx, p, e); err != nil {
			a.s.metrics.IncrementChange(e.Kind, "compensation_failed")
			if a.s.logger != nil {
				a.s.logger.ErrorContext(ctx, "failed to compensate side effect",
					"proposal_id", p.ID.String(),
					"kind", e.Kind,
					"ref", e.Ref,
					"error", err,
				)
			}
			if first == nil {
				first = err
			}
			failed = append(failed, e)
			continue
		}
		a.s.metrics.IncrementChange(e.Kind, "compensated")
		done = append(done, e)
	}
	if first != nil {
		return &proposal.CompensationError{Done: done, Failed: failed, Err: first}
	}
	return nil
}

func (a *applier) compensate(ctx context.Context, p *proposal.Proposal, e proposal.SideEffect) error {
	switch e.Kind {
	case effectFaucet:
		faucetID, err := id.ParseFaucetID(e.Ref)
		if err != nil {
			return err
		}
		_, err = a.s.faucets.Close(ctx, faucetID, faucet.ReasonRolledBack)
		return err
	case effectNode:
		_, nodeID, _ := strings.Cut(e.Ref, "/")
		a.s.catalog.RemoveNode(p.Domain, nodeID)
		return nil
	case effectStock:
		resourceType, qty, err := parseStockRef(e.Ref)
		if err != nil {
			return err
		}
		return a.s.resources.Reserve(ctx, p.Domain, resourceType, qty)
	case effectPolicy:
		a.s.catalog.RevertPolicy(e.Ref, p.ID)
		return nil
	default:
		return dErrors.Newf(dErrors.CodeInternal, "unknown side effect kind %q", e.Kind)
	}
}

func stockRef(resourceType string, qty float64) string {
	return resourceType + ":" + strconv.FormatFloat(qty, 'g', -1, 64)
}

func parseStockRef(ref string) (string, float64, error) {
	i := strings.LastIndex(ref, ":")
	if i < 0 {
		return "", 0, dErrors.Newf(dErrors.CodeInternal, "malformed stock reference %q", ref)
	}
	qty, err := strconv.ParseFloat(ref[i+1:], 64)
	if err != nil {
		return "", 0, dErrors.Wrap(err, dErrors.CodeInternal, "malformed stock reference")
	}
	return ref[:i], qty, nil
}
