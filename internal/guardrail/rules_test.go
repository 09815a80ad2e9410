package guardrail

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"concord/internal/proposal"
)

func TestEcology(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name    string
		impact  float64
		outcome proposal.Outcome
		factor  float64
	}{
		{"critical impact vetoes", -4.0, proposal.OutcomeVeto, 0},
		{"moderate impact scales", -2.0, proposal.OutcomeScale, 0.5},
		{"at critical scales to minimum", -3.0, proposal.OutcomeScale, 0.1},
		{"near critical clamps to minimum", -2.95, proposal.OutcomeScale, 0.1},
		{"at moderate passes", -1.0, proposal.OutcomePass, 0},
		{"positive passes", 2.5, proposal.OutcomePass, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, factor := Ecology(tt.impact, th)
			assert.Equal(t, tt.outcome, outcome)
			assert.InDelta(t, tt.factor, factor, 1e-9)
		})
	}
}

func TestGini(t *testing.T) {
	assert.Equal(t, 0.0, Gini(nil))
	assert.Equal(t, 0.0, Gini([]float64{0, 0}))
	assert.InDelta(t, 0.0, Gini([]float64{5, 5, 5, 5}), 1e-9)
	assert.InDelta(t, 0.25, Gini([]float64{1, 2, 3, 4}), 1e-9)
	assert.InDelta(t, 0.75, Gini([]float64{0, 0, 0, 10}), 1e-9)
	assert.InDelta(t, Gini([]float64{4, 1, 3, 2}), Gini([]float64{1, 2, 3, 4}), 1e-9)
}

func TestEquity(t *testing.T) {
	th := DefaultThresholds()
	concentrated := []float64{1, 1, 1, 1000}

	projected := ProjectedInequality(concentrated, 0, th)
	assert.Greater(t, projected, th.EquityCeiling)
	assert.Equal(t, proposal.OutcomeVeto, Equity(projected, th))

	// A large enough equity claim pulls the projection under the ceiling.
	projected = ProjectedInequality(concentrated, 20, th)
	assert.Equal(t, proposal.OutcomePass, Equity(projected, th))

	assert.Equal(t, 0.0, ProjectedInequality([]float64{10, 10}, 5, th))
}

func TestPayloadChecks(t *testing.T) {
	_, bad := personalDataWithoutConsent(map[string]any{"personal_data": true})
	assert.True(t, bad)
	_, bad = personalDataWithoutConsent(map[string]any{"personal_data": true, "consent": true})
	assert.False(t, bad)

	_, bad = inaccessible(map[string]any{"accessible": false})
	assert.True(t, bad)
	_, bad = inaccessible(map[string]any{})
	assert.False(t, bad)

	_, bad = closedContent(map[string]any{"license": "Proprietary"})
	assert.True(t, bad)
	_, bad = closedContent(map[string]any{"license": "CC-BY"})
	assert.False(t, bad)
}

func TestNumericGuardrailProperties(t *testing.T) {
	th := DefaultThresholds()
	properties := gopter.NewProperties(nil)

	properties.Property("scale factor stays within [min, 1]", prop.ForAll(
		func(impact float64) bool {
			outcome, factor := Ecology(impact, th)
			if outcome != proposal.OutcomeScale {
				return true
			}
			return factor >= th.EcologyMinScale && factor <= 1
		},
		gen.Float64Range(-10, 10),
	))

	properties.Property("gini is within [0, 1)", prop.ForAll(
		func(stakes []float64) bool {
			g := Gini(stakes)
			return g >= 0 && g < 1
		},
		gen.SliceOf(gen.Float64Range(0, 1e6)),
	))

	properties.Property("lower impact never yields a milder verdict", prop.ForAll(
		func(a, b float64) bool {
			if a > b {
				a, b = b, a
			}
			severity := map[proposal.Outcome]int{proposal.OutcomePass: 0, proposal.OutcomeScale: 1, proposal.OutcomeVeto: 2}
			oa, fa := Ecology(a, th)
			ob, fb := Ecology(b, th)
			if severity[oa] != severity[ob] {
				return severity[oa] > severity[ob]
			}
			return oa != proposal.OutcomeScale || fa <= fb
		},
		gen.Float64Range(-6, 2),
		gen.Float64Range(-6, 2),
	))

	properties.TestingRun(t)
}
