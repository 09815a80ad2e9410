package resource

import id "concord/pkg/domain"

// Stock is the available quantity of one resource type held by a domain.
// Available never goes negative.
type Stock struct {
	Domain       id.DomainID `json:"domain"`
	ResourceType string      `json:"resource_type"`
	Available    float64     `json:"available"`
}

// ScarcityCheck is the evidence behind an artificial-scarcity decision.
type ScarcityCheck struct {
	Claimed      float64 `json:"claimed_available"`
	Available    float64 `json:"available"`
	RecentDemand float64 `json:"recent_demand"`
	Flagged      bool    `json:"flagged"`
}
