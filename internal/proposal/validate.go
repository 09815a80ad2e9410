package proposal

import (
	"math"
	"strings"

	"concord/internal/registry"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
)

const (
	maxChanges      = 64
	maxAuthorLength = 256
	maxRefLength    = 512
)

// validateCreate checks a create request against the origin domain's
// configuration. It normalizes the request in place.
func validateCreate(req *CreateRequest, domain registry.Domain) error {
	req.Author = strings.TrimSpace(req.Author)
	if req.Author == "" {
		return dErrors.New(dErrors.CodeValidation, "author is required")
	}
	if len(req.Author) > maxAuthorLength {
		return dErrors.New(dErrors.CodeValidation, "author is too long")
	}
	if len(req.RationaleRef) > maxRefLength {
		return dErrors.New(dErrors.CodeValidation, "rationale reference is too long")
	}
	if len(req.Changes) == 0 {
		return dErrors.New(dErrors.CodeValidation, "changes must not be empty")
	}
	if len(req.Changes) > maxChanges {
		return dErrors.Newf(dErrors.CodeValidation, "at most %d changes per proposal", maxChanges)
	}
	if req.Quorum != nil {
		if *req.Quorum < 1 || *req.Quorum > len(id.AllDomains())-1 {
			return dErrors.Newf(dErrors.CodeValidation, "quorum must be between 1 and %d", len(id.AllDomains())-1)
		}
	}
	for _, v := range []float64{
		req.Metrics.Ecological, req.Metrics.Wellbeing, req.Metrics.Efficiency,
		req.Metrics.Resilience, req.Metrics.Equity, req.Metrics.Innovation,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return dErrors.New(dErrors.CodeValidation, "metrics must be finite numbers")
		}
	}
	for i, c := range req.Changes {
		if err := validateChange(c, domain); err != nil {
			return dErrors.Newf(dErrors.CodeValidation, "change %d: %s", i, dErrors.MessageOf(err))
		}
	}
	return nil
}

func validateChange(c Change, domain registry.Domain) error {
	switch c.Kind {
	case ChangeAllocateResource:
		var a AllocateResource
		if err := c.Decode(&a); err != nil {
			return err
		}
		if _, err := id.ParseDomainID(string(a.ToDomain)); err != nil {
			return err
		}
		if _, ok := domain.Produces(a.ResourceType); !ok {
			return dErrors.Newf(dErrors.CodeValidation, "domain %s does not produce %q", domain.ID, a.ResourceType)
		}
		if !positive(a.Rate) || !positive(a.DurationHours) {
			return dErrors.New(dErrors.CodeValidation, "rate and duration_hours must be positive")
		}
		if a.ClaimedAvailable != nil && *a.ClaimedAvailable < 0 {
			return dErrors.New(dErrors.CodeValidation, "claimed_available cannot be negative")
		}
	case ChangeCreateNode:
		var n CreateNode
		if err := c.Decode(&n); err != nil {
			return err
		}
		if strings.TrimSpace(n.NodeID) == "" {
			return dErrors.New(dErrors.CodeValidation, "node_id is required")
		}
	case ChangeDepositStock:
		var d DepositStock
		if err := c.Decode(&d); err != nil {
			return err
		}
		if _, ok := domain.Produces(d.ResourceType); !ok {
			return dErrors.Newf(dErrors.CodeValidation, "domain %s does not produce %q", domain.ID, d.ResourceType)
		}
		if !positive(d.Quantity) {
			return dErrors.New(dErrors.CodeValidation, "quantity must be positive")
		}
	case ChangeAmendPolicy:
		var a AmendPolicy
		if err := c.Decode(&a); err != nil {
			return err
		}
		if strings.TrimSpace(a.Rule) == "" {
			return dErrors.New(dErrors.CodeValidation, "rule is required")
		}
	case ChangeNote:
	default:
		return dErrors.Newf(dErrors.CodeValidation, "unknown change kind %q", c.Kind)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
