package domain

import (
	"strings"

	dErrors "concord/pkg/domain-errors"
)

// DomainID names one of the ten decision-making partitions.
// Invariant: the value is one of the constants below (or System for
// cross-domain events, which is never a valid proposal origin).
//
// Construct via ParseDomainID at trust boundaries; direct casting bypasses
// validation.
type DomainID string

const (
	Infrastructure DomainID = "infrastructure"
	Energy         DomainID = "energy"
	Food           DomainID = "food"
	Ecology        DomainID = "ecology"
	Social         DomainID = "social"
	Transport      DomainID = "transport"
	Health         DomainID = "health"
	Education      DomainID = "education"
	Resources      DomainID = "resources"
	Governance     DomainID = "governance"

	// System tags cross-domain events in the event log.
	System DomainID = "system"
)

var allDomains = []DomainID{
	Infrastructure, Energy, Food, Ecology, Social,
	Transport, Health, Education, Resources, Governance,
}

// AllDomains returns the ten participating domains in a stable order.
func AllDomains() []DomainID {
	return append([]DomainID(nil), allDomains...)
}

// ParseDomainID validates a domain identifier from external input.
func ParseDomainID(s string) (DomainID, error) {
	d := DomainID(strings.ToLower(strings.TrimSpace(s)))
	if d == "" {
		return "", dErrors.New(dErrors.CodeValidation, "domain is required")
	}
	if !d.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown domain %q", s)
	}
	return d, nil
}

// IsValid reports whether d is one of the ten participating domains.
func (d DomainID) IsValid() bool {
	for _, known := range allDomains {
		if d == known {
			return true
		}
	}
	return false
}

func (d DomainID) String() string { return string(d) }
