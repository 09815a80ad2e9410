// Package guardrail evaluates proposals against named admission checks.
//
// Every guardrail is a function from a proposal and its domain's state to a
// verdict (pass, scale or veto) with evidence. The numeric checks are pure
// functions in rules.go; checks that need an outside opinion consult the
// injected ComplianceOracle or TelemetrySource.
package guardrail

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"concord/internal/guardrail/metrics"
	"concord/internal/platform/config"
	"concord/internal/proposal"
	"concord/internal/registry"
	"concord/internal/resource"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/requestcontext"
)

// Thresholds are the tunable constants behind the numeric guardrails.
type Thresholds struct {
	EcologyCritical   float64
	EcologyModerate   float64
	EcologyMinScale   float64
	EquityCeiling     float64
	EquitySensitivity float64
	Scarcity          resource.ScarcityConfig
}

// DefaultThresholds mirrors the configuration defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EcologyCritical:   -3.0,
		EcologyModerate:   -1.0,
		EcologyMinScale:   0.1,
		EquityCeiling:     0.45,
		EquitySensitivity: 0.02,
		Scarcity:          resource.DefaultScarcityConfig(),
	}
}

func ThresholdsFromConfig(cfg config.GuardrailConfig) Thresholds {
	return Thresholds{
		EcologyCritical:   cfg.EcologyCritical,
		EcologyModerate:   cfg.EcologyModerate,
		EcologyMinScale:   cfg.EcologyMinScale,
		EquityCeiling:     cfg.EquityCeiling,
		EquitySensitivity: cfg.EquitySensitivity,
		Scarcity: resource.ScarcityConfig{
			ClaimMax:     cfg.ScarcityClaimMax,
			Ratio:        cfg.ScarcityRatio,
			DemandWindow: cfg.DemandWindow,
		},
	}
}

// DomainState is the domain-local data a guardrail may look at. Stock and
// RecentDemand are keyed by resource type.
type DomainState struct {
	StakeDistribution []float64
	Stock             map[string]float64
	RecentDemand      map[string]float64
}

// Input is everything a guardrail receives.
type Input struct {
	Proposal *proposal.Proposal
	Domain   registry.Domain
	State    DomainState
}

// Func is a named guardrail. It fills Outcome, Factor and Evidence; the
// evaluator stamps Name and EvaluatedAt.
type Func func(ctx context.Context, in Input) (proposal.GuardrailResult, error)

// Evaluator is the lookup table of guardrails.
type Evaluator struct {
	thresholds Thresholds
	oracle     ComplianceOracle
	telemetry  TelemetrySource
	ethics     []string
	funcs      map[string]Func
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Evaluator)

func WithOracle(o ComplianceOracle) Option {
	return func(e *Evaluator) {
		e.oracle = o
	}
}

func WithTelemetry(t TelemetrySource) Option {
	return func(e *Evaluator) {
		e.telemetry = t
	}
}

// WithEthicsRules replaces DefaultEthicsRules.
func WithEthicsRules(rules []string) Option {
	return func(e *Evaluator) {
		e.ethics = rules
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// WithFunc registers or replaces a guardrail.
func WithFunc(name string, fn Func) Option {
	return func(e *Evaluator) {
		e.funcs[name] = fn
	}
}

// New builds an evaluator with the built-in guardrails. It fails when an
// ethics rule does not compile.
func New(t Thresholds, opts ...Option) (*Evaluator, error) {
	e := &Evaluator{
		thresholds: t,
		oracle:     NewStubOracle(),
		telemetry:  NewStubTelemetry(),
		ethics:     DefaultEthicsRules,
		funcs:      make(map[string]Func),
	}
	e.funcs[registry.GuardrailEcology] = e.ecology
	e.funcs[registry.GuardrailEquity] = e.equity
	e.funcs[registry.GuardrailPrivacy] = e.payloadCheck(registry.GuardrailPrivacy, personalDataWithoutConsent)
	e.funcs[registry.GuardrailAccessibility] = e.payloadCheck(registry.GuardrailAccessibility, inaccessible)
	e.funcs[registry.GuardrailOpenness] = e.payloadCheck(registry.GuardrailOpenness, closedContent)
	e.funcs[registry.GuardrailScarcity] = e.scarcity
	for _, opt := range opts {
		opt(e)
	}

	rules, err := compileEthicsRules(e.ethics)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid ethics rules")
	}
	if _, overridden := e.funcs[registry.GuardrailEthics]; !overridden {
		e.funcs[registry.GuardrailEthics] = e.ethicsCheck(rules)
	}
	return e, nil
}

// Thresholds returns the configured thresholds.
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Names lists the registered guardrails.
func (e *Evaluator) Names() []string {
	names := make([]string, 0, len(e.funcs))
	for name := range e.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Evaluate runs the named guardrail.
func (e *Evaluator) Evaluate(ctx context.Context, name string, in Input) (proposal.GuardrailResult, error) {
	fn, ok := e.funcs[name]
	if !ok {
		return proposal.GuardrailResult{}, dErrors.Newf(dErrors.CodeInternal, "no guardrail named %q", name)
	}

	start := time.Now()
	result, err := fn(ctx, in)
	e.metrics.ObserveLatency(name, time.Since(start))
	if err != nil {
		e.metrics.IncrementFailure(name)
		if e.logger != nil {
			e.logger.ErrorContext(ctx, "guardrail evaluation failed",
				"guardrail", name,
				"proposal_id", in.Proposal.ID.String(),
				"error", err,
			)
		}
		return proposal.GuardrailResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "guardrail "+name+" failed")
	}

	result.Name = name
	result.EvaluatedAt = requestcontext.Now(ctx)
	if result.Outcome != proposal.OutcomeScale {
		result.Factor = 0
	}
	e.metrics.IncrementOutcome(name, string(result.Outcome))
	return result, nil
}

// MeasuredImpact returns the telemetry reading for a domain, if any.
func (e *Evaluator) MeasuredImpact(ctx context.Context, domain id.DomainID) (float64, bool, error) {
	return e.telemetry.EcologicalImpact(ctx, domain)
}

// Oracle returns the compliance oracle guardrails consult.
func (e *Evaluator) Oracle() ComplianceOracle {
	return e.oracle
}

func (e *Evaluator) ecology(ctx context.Context, in Input) (proposal.GuardrailResult, error) {
	claimed := in.Proposal.Metrics.Ecological
	impact := claimed
	evidence := map[string]any{
		"claimed":  claimed,
		"critical": e.thresholds.EcologyCritical,
		"moderate": e.thresholds.EcologyModerate,
	}
	measured, ok, err := e.telemetry.EcologicalImpact(ctx, in.Proposal.Domain)
	if err != nil {
		return proposal.GuardrailResult{}, err
	}
	if ok {
		evidence["measured"] = measured
		impact = min(impact, measured)
	}
	evidence["impact"] = impact

	outcome, factor := Ecology(impact, e.thresholds)
	if outcome == proposal.OutcomeScale {
		evidence["factor"] = factor
	}
	return proposal.GuardrailResult{Outcome: outcome, Factor: factor, Evidence: evidence}, nil
}

func (e *Evaluator) equity(_ context.Context, in Input) (proposal.GuardrailResult, error) {
	gini := Gini(in.State.StakeDistribution)
	projected := ProjectedInequality(in.State.StakeDistribution, in.Proposal.Metrics.Equity, e.thresholds)
	return proposal.GuardrailResult{
		Outcome: Equity(projected, e.thresholds),
		Evidence: map[string]any{
			"gini":      gini,
			"projected": projected,
			"ceiling":   e.thresholds.EquityCeiling,
			"wallets":   len(in.State.StakeDistribution),
		},
	}, nil
}

func (e *Evaluator) scarcity(_ context.Context, in Input) (proposal.GuardrailResult, error) {
	findings := scarcityFindings(in.Proposal, in.State, e.thresholds.Scarcity)
	if len(findings) > 0 {
		return proposal.GuardrailResult{
			Outcome:  proposal.OutcomeVeto,
			Evidence: map[string]any{"reason": "artificial scarcity", "findings": findings},
		}, nil
	}
	return proposal.GuardrailResult{Outcome: proposal.OutcomePass}, nil
}

// payloadCheck vetoes on the first offending change payload and otherwise
// defers to the compliance oracle.
func (e *Evaluator) payloadCheck(name string, check func(map[string]any) (string, bool)) Func {
	return func(ctx context.Context, in Input) (proposal.GuardrailResult, error) {
		if i, reason, bad := payloadViolation(in.Proposal, check); bad {
			return proposal.GuardrailResult{
				Outcome:  proposal.OutcomeVeto,
				Evidence: map[string]any{"change": i, "reason": reason},
			}, nil
		}
		return e.consult(ctx, name, in.Proposal)
	}
}

func (e *Evaluator) ethicsCheck(rules *ethicsRules) Func {
	return func(ctx context.Context, in Input) (proposal.GuardrailResult, error) {
		if violated := rules.violations(in.Proposal); len(violated) > 0 {
			return proposal.GuardrailResult{
				Outcome:  proposal.OutcomeVeto,
				Evidence: map[string]any{"reason": "constitutional rule violated", "rules": violated},
			}, nil
		}
		return e.consult(ctx, registry.GuardrailEthics, in.Proposal)
	}
}

func (e *Evaluator) consult(ctx context.Context, check string, p *proposal.Proposal) (proposal.GuardrailResult, error) {
	verdict, err := e.oracle.Check(ctx, check, p)
	if err != nil {
		return proposal.GuardrailResult{}, err
	}
	if !verdict.Compliant {
		return proposal.GuardrailResult{
			Outcome:  proposal.OutcomeVeto,
			Evidence: map[string]any{"oracle": "non_compliant", "reason": verdict.Reason},
		}, nil
	}
	return proposal.GuardrailResult{
		Outcome:  proposal.OutcomePass,
		Evidence: map[string]any{"oracle": "compliant"},
	}, nil
}
