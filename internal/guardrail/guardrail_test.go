package guardrail_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"concord/internal/guardrail"
	"concord/internal/proposal"
	"concord/internal/registry"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/testutil"
)

var evalTime = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

func input(t *testing.T, domain id.DomainID, p *proposal.Proposal) guardrail.Input {
	t.Helper()
	d, err := registry.Default().Get(domain)
	require.NoError(t, err)
	p.Domain = domain
	if p.ID.IsNil() {
		p.ID = id.NewProposalID()
	}
	return guardrail.Input{Proposal: p, Domain: d}
}

func newEvaluator(t *testing.T, opts ...guardrail.Option) *guardrail.Evaluator {
	t.Helper()
	e, err := guardrail.New(guardrail.DefaultThresholds(), opts...)
	require.NoError(t, err)
	return e
}

func TestEvaluator_Ecology(t *testing.T) {
	ctx := testutil.At(evalTime)

	t.Run("vetoes critical claim", func(t *testing.T) {
		e := newEvaluator(t)
		r, err := e.Evaluate(ctx, registry.GuardrailEcology, input(t, id.Ecology, &proposal.Proposal{
			Metrics: proposal.MetricsClaim{Ecological: -4},
		}))
		require.NoError(t, err)
		assert.Equal(t, proposal.OutcomeVeto, r.Outcome)
		assert.Equal(t, registry.GuardrailEcology, r.Name)
		assert.Equal(t, evalTime, r.EvaluatedAt)
		assert.Equal(t, -4.0, r.Evidence["impact"])
	})

	t.Run("measured impact overrides an optimistic claim", func(t *testing.T) {
		telemetry := guardrail.NewStubTelemetry()
		telemetry.Set(id.Energy, -2)
		e := newEvaluator(t, guardrail.WithTelemetry(telemetry))
		r, err := e.Evaluate(ctx, registry.GuardrailEcology, input(t, id.Energy, &proposal.Proposal{
			Metrics: proposal.MetricsClaim{Ecological: 1},
		}))
		require.NoError(t, err)
		assert.Equal(t, proposal.OutcomeScale, r.Outcome)
		assert.InDelta(t, 0.5, r.Factor, 1e-9)
		assert.Equal(t, -2.0, r.Evidence["measured"])
	})
}

func TestEvaluator_Equity(t *testing.T) {
	e := newEvaluator(t)
	in := input(t, id.Energy, &proposal.Proposal{})
	in.State.StakeDistribution = []float64{1, 1, 1, 1000}

	r, err := e.Evaluate(context.Background(), registry.GuardrailEquity, in)
	require.NoError(t, err)
	assert.Equal(t, proposal.OutcomeVeto, r.Outcome)

	in.State.StakeDistribution = []float64{100, 120, 90}
	r, err = e.Evaluate(context.Background(), registry.GuardrailEquity, in)
	require.NoError(t, err)
	assert.Equal(t, proposal.OutcomePass, r.Outcome)
	assert.Equal(t, 3, r.Evidence["wallets"])
}

func TestEvaluator_DomainSpecific(t *testing.T) {
	ctx := context.Background()

	t.Run("privacy vetoes personal data without consent", func(t *testing.T) {
		e := newEvaluator(t)
		r, err := e.Evaluate(ctx, registry.GuardrailPrivacy, input(t, id.Health, &proposal.Proposal{
			Changes: []proposal.Change{
				{Kind: proposal.ChangeNote},
				{Kind: proposal.ChangeCreateNode, Payload: map[string]any{"node_id": "clinic-7", "personal_data": true}},
			},
		}))
		require.NoError(t, err)
		assert.Equal(t, proposal.OutcomeVeto, r.Outcome)
		assert.Equal(t, 1, r.Evidence["change"])
	})

	t.Run("accessibility consults the oracle", func(t *testing.T) {
		oracle := guardrail.NewStubOracle()
		oracle.Deny(registry.GuardrailAccessibility, "no step-free access")
		e := newEvaluator(t, guardrail.WithOracle(oracle))
		r, err := e.Evaluate(ctx, registry.GuardrailAccessibility, input(t, id.Transport, &proposal.Proposal{
			Changes: []proposal.Change{{Kind: proposal.ChangeNote}},
		}))
		require.NoError(t, err)
		assert.Equal(t, proposal.OutcomeVeto, r.Outcome)
		assert.Equal(t, "no step-free access", r.Evidence["reason"])
	})

	t.Run("openness passes open licenses", func(t *testing.T) {
		e := newEvaluator(t)
		r, err := e.Evaluate(ctx, registry.GuardrailOpenness, input(t, id.Education, &proposal.Proposal{
			Changes: []proposal.Change{{Kind: proposal.ChangeNote, Payload: map[string]any{"license": "cc-by-sa"}}},
		}))
		require.NoError(t, err)
		assert.Equal(t, proposal.OutcomePass, r.Outcome)
	})

	t.Run("scarcity vetoes implausible availability claims", func(t *testing.T) {
		e := newEvaluator(t)
		in := input(t, id.Resources, &proposal.Proposal{
			Changes: []proposal.Change{{Kind: proposal.ChangeAllocateResource, Payload: map[string]any{
				"to_domain": "food", "resource_type": "water", "rate": 10.0, "duration_hours": 5.0, "claimed_available": 50.0,
			}}},
		})
		in.State.Stock = map[string]float64{"water": 20000}
		r, err := e.Evaluate(ctx, registry.GuardrailScarcity, in)
		require.NoError(t, err)
		assert.Equal(t, proposal.OutcomeVeto, r.Outcome)

		in.State.Stock = map[string]float64{"water": 300}
		r, err = e.Evaluate(ctx, registry.GuardrailScarcity, in)
		require.NoError(t, err)
		assert.Equal(t, proposal.OutcomePass, r.Outcome)
	})
}

func TestEvaluator_Ethics(t *testing.T) {
	ctx := context.Background()

	t.Run("default rules", func(t *testing.T) {
		e := newEvaluator(t)
		r, err := e.Evaluate(ctx, registry.GuardrailEthics, input(t, id.Governance, &proposal.Proposal{
			Changes:      []proposal.Change{{Kind: proposal.ChangeAmendPolicy}},
			RationaleRef: "ipfs://charter-v2",
			Metrics:      proposal.MetricsClaim{Wellbeing: 1},
		}))
		require.NoError(t, err)
		assert.Equal(t, proposal.OutcomePass, r.Outcome)

		r, err = e.Evaluate(ctx, registry.GuardrailEthics, input(t, id.Governance, &proposal.Proposal{
			Changes: []proposal.Change{{Kind: proposal.ChangeAmendPolicy}},
			Metrics: proposal.MetricsClaim{Wellbeing: -5},
		}))
		require.NoError(t, err)
		assert.Equal(t, proposal.OutcomeVeto, r.Outcome)
		assert.Len(t, r.Evidence["rules"], 2)
	})

	t.Run("custom rules", func(t *testing.T) {
		e := newEvaluator(t, guardrail.WithEthicsRules([]string{`!("amend_policy" in kinds) || metrics.resilience >= 0.0`}))
		r, err := e.Evaluate(ctx, registry.GuardrailEthics, input(t, id.Governance, &proposal.Proposal{
			Changes: []proposal.Change{{Kind: proposal.ChangeAmendPolicy}},
			Metrics: proposal.MetricsClaim{Resilience: -1},
		}))
		require.NoError(t, err)
		assert.Equal(t, proposal.OutcomeVeto, r.Outcome)
	})

	t.Run("rules must compile to booleans", func(t *testing.T) {
		_, err := guardrail.New(guardrail.DefaultThresholds(), guardrail.WithEthicsRules([]string{`metrics.wellbeing + 1.0`}))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = guardrail.New(guardrail.DefaultThresholds(), guardrail.WithEthicsRules([]string{`unknown_var > 1`}))
		require.Error(t, err)
	})
}

type failingOracle struct{}

func (failingOracle) Check(context.Context, string, *proposal.Proposal) (guardrail.Verdict, error) {
	return guardrail.Verdict{}, errors.New("oracle unreachable")
}

func TestEvaluator_Failures(t *testing.T) {
	e := newEvaluator(t, guardrail.WithOracle(failingOracle{}))
	_, err := e.Evaluate(context.Background(), registry.GuardrailPrivacy, input(t, id.Health, &proposal.Proposal{
		Changes: []proposal.Change{{Kind: proposal.ChangeNote}},
	}))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	_, err = e.Evaluate(context.Background(), "astrology", input(t, id.Health, &proposal.Proposal{}))
	require.Error(t, err)

	assert.Contains(t, e.Names(), registry.GuardrailEthics)
	assert.Len(t, e.Names(), 7)
}
