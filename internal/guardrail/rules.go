package guardrail

import (
	"math"
	"sort"
	"strings"

	"concord/internal/proposal"
	"concord/internal/resource"
)

// Rule functions are pure: everything they need arrives in Input and they
// return the verdict with its evidence. The evaluator stamps name and time.

// Ecology vetoes impacts below the critical threshold and scales down
// impacts between critical and moderate. impact is the lower of the claimed
// and measured values.
func Ecology(impact float64, t Thresholds) (proposal.Outcome, float64) {
	switch {
	case impact < t.EcologyCritical:
		return proposal.OutcomeVeto, 0
	case impact < t.EcologyModerate:
		return proposal.OutcomeScale, ScaleFactor(impact, t)
	default:
		return proposal.OutcomePass, 0
	}
}

// ScaleFactor maps an impact between the critical and moderate thresholds
// linearly onto [EcologyMinScale, 1].
func ScaleFactor(impact float64, t Thresholds) float64 {
	span := t.EcologyModerate - t.EcologyCritical
	if span <= 0 {
		return t.EcologyMinScale
	}
	f := (impact - t.EcologyCritical) / span
	return math.Min(1, math.Max(t.EcologyMinScale, f))
}

// Gini returns the Gini coefficient of values. Empty or all-zero
// distributions are perfectly equal. Negative values are ignored.
func Gini(values []float64) float64 {
	xs := make([]float64, 0, len(values))
	total := 0.0
	for _, v := range values {
		if v >= 0 {
			xs = append(xs, v)
			total += v
		}
	}
	n := float64(len(xs))
	if n == 0 || total == 0 {
		return 0
	}
	sort.Float64s(xs)
	weighted := 0.0
	for i, x := range xs {
		weighted += float64(i+1) * x
	}
	return math.Max(0, (2*weighted)/(n*total)-(n+1)/n)
}

// ProjectedInequality discounts the current Gini by the proposal's equity
// claim and clamps the result to [0, 1].
func ProjectedInequality(stakes []float64, equityClaim float64, t Thresholds) float64 {
	projected := Gini(stakes) - equityClaim*t.EquitySensitivity
	return math.Min(1, math.Max(0, projected))
}

// Equity vetoes proposals whose projected inequality exceeds the ceiling.
func Equity(projected float64, t Thresholds) proposal.Outcome {
	if projected > t.EquityCeiling {
		return proposal.OutcomeVeto
	}
	return proposal.OutcomePass
}

// scarcityFinding is one allocation whose claimed availability does not hold
// up against the ledger.
type scarcityFinding struct {
	Change       int     `json:"change"`
	ResourceType string  `json:"resource_type"`
	Claimed      float64 `json:"claimed_available"`
	Available    float64 `json:"available"`
	RecentDemand float64 `json:"recent_demand"`
}

// scarcityFindings runs the artificial-scarcity heuristic over every
// allocation that carries an availability claim.
func scarcityFindings(p *proposal.Proposal, state DomainState, cfg resource.ScarcityConfig) []scarcityFinding {
	var out []scarcityFinding
	for i, c := range p.Changes {
		if c.Kind != proposal.ChangeAllocateResource {
			continue
		}
		var a proposal.AllocateResource
		if err := c.Decode(&a); err != nil || a.ClaimedAvailable == nil {
			continue
		}
		available := state.Stock[a.ResourceType]
		demand := state.RecentDemand[a.ResourceType]
		if resource.IsArtificialScarcity(*a.ClaimedAvailable, available, demand, cfg) {
			out = append(out, scarcityFinding{
				Change:       i,
				ResourceType: a.ResourceType,
				Claimed:      *a.ClaimedAvailable,
				Available:    available,
				RecentDemand: demand,
			})
		}
	}
	return out
}

// payloadViolation finds the first change whose payload fails check.
func payloadViolation(p *proposal.Proposal, check func(payload map[string]any) (string, bool)) (int, string, bool) {
	for i, c := range p.Changes {
		if reason, bad := check(c.Payload); bad {
			return i, reason, true
		}
	}
	return 0, "", false
}

// personalDataWithoutConsent flags payloads that process personal data
// without a recorded consent.
func personalDataWithoutConsent(payload map[string]any) (string, bool) {
	if personal, _ := payload["personal_data"].(bool); !personal {
		return "", false
	}
	if consent, _ := payload["consent"].(bool); consent {
		return "", false
	}
	return "personal data processed without consent", true
}

// inaccessible flags payloads explicitly marked as not accessible.
func inaccessible(payload map[string]any) (string, bool) {
	v, ok := payload["accessible"].(bool)
	if ok && !v {
		return "change is not accessible", true
	}
	return "", false
}

var openLicenses = map[string]bool{
	"cc0": true, "cc-by": true, "cc-by-sa": true, "mit": true,
	"apache-2.0": true, "gpl-3.0": true, "mpl-2.0": true, "public-domain": true,
}

// closedContent flags payloads carrying a license outside the open set.
func closedContent(payload map[string]any) (string, bool) {
	license, ok := payload["license"].(string)
	if !ok {
		return "", false
	}
	if openLicenses[strings.ToLower(strings.TrimSpace(license))] {
		return "", false
	}
	return "content license " + license + " is not open", true
}
