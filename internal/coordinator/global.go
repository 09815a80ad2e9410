package coordinator

import (
	"context"
	"time"

	"concord/internal/faucet"
	"concord/internal/guardrail"
	"concord/internal/proposal"
	id "concord/pkg/domain"
	"concord/pkg/platform/audit"
	"concord/pkg/requestcontext"
)

// Escalation kinds and severities.
const (
	EscalationEquity  = "equity"
	EscalationEcology = "ecology"

	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Escalation is one system-wide threshold breach reported to governance.
type Escalation struct {
	Kind      string        `json:"kind"`
	Domain    id.DomainID   `json:"domain"`
	Severity  string        `json:"severity"`
	Value     float64       `json:"value"`
	Threshold float64       `json:"threshold"`
	Throttled []id.FaucetID `json:"throttled,omitempty"`
}

// WithGlobalPolicy sets the look-back window for cumulative ecological
// impact and whether the sweep may throttle faucets.
func WithGlobalPolicy(window time.Duration, throttle bool) Option {
	return func(s *Service) {
		s.globalWindow = window
		s.throttle = throttle
	}
}

// EnforceGlobalGuardrails re-evaluates the equity and ecology thresholds for
// every domain. Each breach is escalated to governance as a
// guardrail_escalation event. Proposals are never rolled back; with
// throttling enabled, a domain's outbound faucets are scaled down on a
// moderate ecology breach and paused on a critical one. A failure for one
// domain is logged and the sweep moves on.
func (s *Service) EnforceGlobalGuardrails(ctx context.Context) ([]Escalation, error) {
	ctx, span := s.tracer.Start(ctx, "coordinator.enforce_global_guardrails")
	defer span.End()

	t := s.guardrails.Thresholds()
	var escalations []Escalation
	for _, domain := range s.registry.All() {
		found, err := s.checkDomain(ctx, domain.ID, t)
		if err != nil {
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "global guardrail check failed",
					"domain", string(domain.ID),
					"error", err,
				)
			}
			continue
		}
		escalations = append(escalations, found...)
	}

	for _, e := range escalations {
		s.metrics.IncrementEscalation(e.Kind)
		s.logAudit(ctx, id.Governance, audit.EventGuardrailEscalation, "global guardrail breached",
			"kind", e.Kind,
			"domain", string(e.Domain),
			"severity", e.Severity,
			"value", e.Value,
			"threshold", e.Threshold,
			"throttled", len(e.Throttled),
		)
	}
	return escalations, nil
}

func (s *Service) checkDomain(ctx context.Context, domain id.DomainID, t guardrail.Thresholds) ([]Escalation, error) {
	var out []Escalation

	distribution, err := s.stakes.StakeDistribution(ctx, domain)
	if err != nil {
		return nil, err
	}
	if gini := guardrail.Gini(distribution); gini > t.EquityCeiling {
		out = append(out, Escalation{
			Kind:      EscalationEquity,
			Domain:    domain,
			Severity:  SeverityCritical,
			Value:     gini,
			Threshold: t.EquityCeiling,
		})
	}

	impact, err := s.ecologicalImpact(ctx, domain)
	if err != nil {
		return nil, err
	}
	outcome, factor := guardrail.Ecology(impact, t)
	if outcome == proposal.OutcomePass {
		return out, nil
	}
	e := Escalation{
		Kind:      EscalationEcology,
		Domain:    domain,
		Severity:  SeverityWarning,
		Value:     impact,
		Threshold: t.EcologyModerate,
	}
	if outcome == proposal.OutcomeVeto {
		e.Severity = SeverityCritical
		e.Threshold = t.EcologyCritical
	}
	if s.throttle {
		e.Throttled, err = s.throttleFaucets(ctx, domain, outcome, factor)
		if err != nil {
			return nil, err
		}
	}
	return append(out, e), nil
}

// ecologicalImpact is the lower of the telemetry reading and the summed
// ecological claims of proposals enacted within the global window.
func (s *Service) ecologicalImpact(ctx context.Context, domain id.DomainID) (float64, error) {
	enacted, err := s.proposals.List(ctx, proposal.Filter{Domain: domain, Status: proposal.StatusEnacted})
	if err != nil {
		return 0, err
	}
	since := requestcontext.Now(ctx).Add(-s.globalWindow)
	cumulative := 0.0
	for _, p := range enacted {
		if p.RolledBackAt != nil || p.EnactedAt == nil || p.EnactedAt.Before(since) {
			continue
		}
		cumulative += p.Metrics.Ecological
	}

	measured, ok, err := s.guardrails.MeasuredImpact(ctx, domain)
	if err != nil {
		return 0, err
	}
	if ok {
		return min(cumulative, measured), nil
	}
	return cumulative, nil
}

// throttleFaucets pauses (veto) or scales (scale) the domain's active
// outbound faucets.
func (s *Service) throttleFaucets(ctx context.Context, domain id.DomainID, outcome proposal.Outcome, factor float64) ([]id.FaucetID, error) {
	active, err := s.faucets.List(ctx, faucet.Filter{Domain: domain, Status: faucet.StatusActive})
	if err != nil {
		return nil, err
	}
	var throttled []id.FaucetID
	for _, f := range active {
		if f.FromDomain != domain {
			continue
		}
		if outcome == proposal.OutcomeVeto {
			_, err = s.faucets.Pause(ctx, f.ID)
		} else {
			_, err = s.faucets.Scale(ctx, f.ID, min(f.CurrentRate, f.MaxRate*factor))
		}
		if err != nil {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "failed to throttle faucet",
					"faucet_id", f.ID.String(),
					"error", err,
				)
			}
			continue
		}
		throttled = append(throttled, f.ID)
	}
	return throttled, nil
}
