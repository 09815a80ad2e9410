package registry

import (
	"time"

	id "concord/pkg/domain"
)

const day = 24 * time.Hour

// DefaultDomains returns the built-in domain table. Review windows scale with
// criticality: health decides fastest, governance slowest.
func DefaultDomains() []Domain {
	return []Domain{
		{
			ID: id.Infrastructure, Label: "Infrastructure", Quorum: 2, ReviewWindow: 5 * day,
			Resources:       []ResourceType{{Name: "materials"}, {Name: "construction_capacity"}},
			Peers:           []id.DomainID{id.Energy, id.Resources},
			StakeMultiplier: 1.0, AutoAttest: true,
			SeedStock: map[string]float64{"materials": 5000, "construction_capacity": 800},
		},
		{
			ID: id.Energy, Label: "Energy", Quorum: 2, ReviewWindow: 3 * day,
			Resources:       []ResourceType{{Name: "electricity"}, {Name: "heat", Metered: true}},
			Peers:           []id.DomainID{id.Ecology, id.Resources},
			StakeMultiplier: 1.2, AutoAttest: true,
			SeedStock: map[string]float64{"electricity": 10000, "heat": 4000},
		},
		{
			ID: id.Food, Label: "Food", Quorum: 2, ReviewWindow: 4 * day,
			Resources:       []ResourceType{{Name: "produce"}, {Name: "grain"}},
			Peers:           []id.DomainID{id.Ecology, id.Health},
			StakeMultiplier: 1.0, AutoAttest: true,
			SeedStock: map[string]float64{"produce": 3000, "grain": 6000},
		},
		{
			ID: id.Ecology, Label: "Ecology", Quorum: 1, ReviewWindow: 7 * day,
			Resources:       []ResourceType{{Name: "habitat_credit"}},
			Peers:           []id.DomainID{id.Governance},
			StakeMultiplier: 1.5, AutoAttest: true,
			SeedStock: map[string]float64{"habitat_credit": 1000},
		},
		{
			ID: id.Social, Label: "Social", Quorum: 1, ReviewWindow: 5 * day,
			Resources:       []ResourceType{{Name: "volunteer_hours", Metered: true}},
			Peers:           []id.DomainID{id.Governance},
			StakeMultiplier: 1.0, AutoAttest: true,
			SeedStock: map[string]float64{"volunteer_hours": 2000},
		},
		{
			ID: id.Transport, Label: "Transport", Quorum: 2, ReviewWindow: 3 * day,
			Resources:       []ResourceType{{Name: "transit_capacity"}},
			Peers:           []id.DomainID{id.Infrastructure, id.Energy},
			Guardrails:      []string{GuardrailAccessibility},
			StakeMultiplier: 1.0, AutoAttest: true,
			SeedStock: map[string]float64{"transit_capacity": 1500},
		},
		{
			ID: id.Health, Label: "Health", Quorum: 2, ReviewWindow: 1 * day,
			Resources:       []ResourceType{{Name: "medical_supplies"}},
			Peers:           []id.DomainID{id.Social, id.Resources},
			Guardrails:      []string{GuardrailPrivacy},
			StakeMultiplier: 1.3, AutoAttest: true,
			SeedStock: map[string]float64{"medical_supplies": 1200},
		},
		{
			ID: id.Education, Label: "Education", Quorum: 1, ReviewWindow: 5 * day,
			Resources:       []ResourceType{{Name: "course_seats"}},
			Peers:           []id.DomainID{id.Social},
			Guardrails:      []string{GuardrailOpenness},
			StakeMultiplier: 1.0, AutoAttest: true,
			SeedStock: map[string]float64{"course_seats": 900},
		},
		{
			ID: id.Resources, Label: "Resource Management", Quorum: 2, ReviewWindow: 4 * day,
			Resources:       []ResourceType{{Name: "water", Metered: true}, {Name: "minerals"}, {Name: "materials"}},
			Peers:           []id.DomainID{id.Ecology, id.Infrastructure},
			Guardrails:      []string{GuardrailScarcity},
			StakeMultiplier: 1.1, AutoAttest: true,
			SeedStock: map[string]float64{"water": 20000, "minerals": 2500, "materials": 4000},
		},
		{
			ID: id.Governance, Label: "Governance", Quorum: 1, ReviewWindow: 10 * day,
			Guardrails:      []string{GuardrailEthics},
			StakeMultiplier: 2.0, AutoAttest: true,
		},
	}
}

// Default returns the registry built from DefaultDomains.
func Default() *Registry {
	r, err := New(DefaultDomains())
	if err != nil {
		panic("registry: invalid default table: " + err.Error())
	}
	return r
}
