// Package registry holds the static table of participating domains.
//
// Domain behavior is data: quorum defaults, review windows, peer routing,
// extra guardrails and stake multipliers are looked up here instead of being
// spread across per-domain code. The table is immutable after Load.
package registry

import (
	"sort"
	"time"

	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
)

// Guardrail names that domains can opt into on top of the mandatory pair.
const (
	GuardrailEcology       = "ecology"
	GuardrailEquity        = "equity"
	GuardrailEthics        = "ethics"
	GuardrailPrivacy       = "privacy"
	GuardrailAccessibility = "accessibility"
	GuardrailOpenness      = "openness"
	GuardrailScarcity      = "scarcity"
)

// MandatoryGuardrails run for every proposal regardless of origin.
var MandatoryGuardrails = []string{GuardrailEcology, GuardrailEquity}

// ResourceType is something a domain can originate. Metered types are
// reserved as they are drawn rather than up front when a faucet opens.
type ResourceType struct {
	Name    string `json:"name" yaml:"name"`
	Metered bool   `json:"metered" yaml:"metered"`
}

// Domain is the immutable configuration of one participating domain.
type Domain struct {
	ID              id.DomainID        `json:"id"`
	Label           string             `json:"label"`
	Quorum          int                `json:"quorum"`
	ReviewWindow    time.Duration      `json:"review_window"`
	Resources       []ResourceType     `json:"resources"`
	Peers           []id.DomainID      `json:"peers"`
	Guardrails      []string           `json:"guardrails"`
	StakeMultiplier float64            `json:"stake_multiplier"`
	AutoAttest      bool               `json:"auto_attest"`
	SeedStock       map[string]float64 `json:"seed_stock,omitempty"`
}

// Produces reports whether the domain originates the named resource type.
func (d Domain) Produces(resourceType string) (ResourceType, bool) {
	for _, rt := range d.Resources {
		if rt.Name == resourceType {
			return rt, true
		}
	}
	return ResourceType{}, false
}

// RequiredGuardrails returns the mandatory guardrails followed by the
// domain-specific ones, without duplicates.
func (d Domain) RequiredGuardrails() []string {
	out := append([]string(nil), MandatoryGuardrails...)
	seen := map[string]bool{GuardrailEcology: true, GuardrailEquity: true}
	for _, g := range d.Guardrails {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	return out
}

func (d Domain) clone() Domain {
	c := d
	c.Resources = append([]ResourceType(nil), d.Resources...)
	c.Peers = append([]id.DomainID(nil), d.Peers...)
	c.Guardrails = append([]string(nil), d.Guardrails...)
	if d.SeedStock != nil {
		c.SeedStock = make(map[string]float64, len(d.SeedStock))
		for k, v := range d.SeedStock {
			c.SeedStock[k] = v
		}
	}
	return c
}

// Registry is a read-only lookup table keyed by domain id.
type Registry struct {
	domains map[id.DomainID]Domain
}

// New builds a registry from explicit domain definitions. Every one of the
// ten domains must be present exactly once.
func New(domains []Domain) (*Registry, error) {
	r := &Registry{domains: make(map[id.DomainID]Domain, len(domains))}
	for _, d := range domains {
		if !d.ID.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeValidation, "unknown domain %q", d.ID)
		}
		if _, dup := r.domains[d.ID]; dup {
			return nil, dErrors.Newf(dErrors.CodeValidation, "domain %q defined twice", d.ID)
		}
		if err := validateDomain(d); err != nil {
			return nil, err
		}
		r.domains[d.ID] = d.clone()
	}
	for _, want := range id.AllDomains() {
		if _, ok := r.domains[want]; !ok {
			return nil, dErrors.Newf(dErrors.CodeValidation, "domain %q missing from registry", want)
		}
	}
	return r, nil
}

func validateDomain(d Domain) error {
	if d.Quorum < 1 {
		return dErrors.Newf(dErrors.CodeValidation, "domain %q: quorum must be at least 1", d.ID)
	}
	if d.ReviewWindow < 24*time.Hour || d.ReviewWindow > 10*24*time.Hour {
		return dErrors.Newf(dErrors.CodeValidation, "domain %q: review window must be between 1 and 10 days", d.ID)
	}
	if d.StakeMultiplier <= 0 {
		return dErrors.Newf(dErrors.CodeValidation, "domain %q: stake multiplier must be positive", d.ID)
	}
	for _, p := range d.Peers {
		if !p.IsValid() || p == d.ID {
			return dErrors.Newf(dErrors.CodeValidation, "domain %q: invalid peer %q", d.ID, p)
		}
	}
	for _, g := range d.Guardrails {
		if !knownGuardrail(g) {
			return dErrors.Newf(dErrors.CodeValidation, "domain %q: unknown guardrail %q", d.ID, g)
		}
	}
	for name, qty := range d.SeedStock {
		if _, ok := d.Produces(name); !ok {
			return dErrors.Newf(dErrors.CodeValidation, "domain %q: seed stock for unknown resource %q", d.ID, name)
		}
		if qty < 0 {
			return dErrors.Newf(dErrors.CodeValidation, "domain %q: seed stock for %q is negative", d.ID, name)
		}
	}
	return nil
}

func knownGuardrail(name string) bool {
	switch name {
	case GuardrailEcology, GuardrailEquity, GuardrailEthics, GuardrailPrivacy,
		GuardrailAccessibility, GuardrailOpenness, GuardrailScarcity:
		return true
	}
	return false
}

// Get returns the configuration of a domain.
func (r *Registry) Get(d id.DomainID) (Domain, error) {
	dom, ok := r.domains[d]
	if !ok {
		return Domain{}, dErrors.Newf(dErrors.CodeValidation, "unknown domain %q", d)
	}
	return dom.clone(), nil
}

// All returns every domain in the canonical order.
func (r *Registry) All() []Domain {
	out := make([]Domain, 0, len(r.domains))
	for _, d := range id.AllDomains() {
		out = append(out, r.domains[d].clone())
	}
	return out
}

// LookupResource finds a resource type by name across all domains.
func (r *Registry) LookupResource(name string) (ResourceType, bool) {
	for _, d := range id.AllDomains() {
		if rt, ok := r.domains[d].Produces(name); ok {
			return rt, true
		}
	}
	return ResourceType{}, false
}

// AttestedBy returns the domains whose proposals list d as a peer.
func (r *Registry) AttestedBy(d id.DomainID) []id.DomainID {
	var out []id.DomainID
	for _, dom := range r.domains {
		for _, p := range dom.Peers {
			if p == d {
				out = append(out, dom.ID)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
