package guardrail

import (
	"context"
	"sync"

	"concord/internal/proposal"
	id "concord/pkg/domain"
)

// Verdict is an external compliance opinion.
type Verdict struct {
	Compliant bool   `json:"compliant"`
	Reason    string `json:"reason,omitempty"`
}

// ComplianceOracle answers whether a proposal complies with an external
// regime (privacy law, accessibility standards, the constitution). check is
// the guardrail name asking.
type ComplianceOracle interface {
	Check(ctx context.Context, check string, p *proposal.Proposal) (Verdict, error)
}

// TelemetrySource reports measured ecological impact for a domain. ok is
// false when no reading is available.
type TelemetrySource interface {
	EcologicalImpact(ctx context.Context, domain id.DomainID) (impact float64, ok bool, err error)
}

// StubOracle approves everything except the checks listed in Deny, which
// fail with the mapped reason.
type StubOracle struct {
	mu   sync.RWMutex
	deny map[string]string
}

func NewStubOracle() *StubOracle {
	return &StubOracle{deny: make(map[string]string)}
}

// Deny makes the named check fail from now on.
func (o *StubOracle) Deny(check, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deny[check] = reason
}

func (o *StubOracle) Check(_ context.Context, check string, _ *proposal.Proposal) (Verdict, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if reason, ok := o.deny[check]; ok {
		return Verdict{Compliant: false, Reason: reason}, nil
	}
	return Verdict{Compliant: true}, nil
}

// StubTelemetry serves fixed readings.
type StubTelemetry struct {
	mu       sync.RWMutex
	readings map[id.DomainID]float64
}

func NewStubTelemetry() *StubTelemetry {
	return &StubTelemetry{readings: make(map[id.DomainID]float64)}
}

// Set records a reading for domain.
func (t *StubTelemetry) Set(domain id.DomainID, impact float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readings[domain] = impact
}

func (t *StubTelemetry) EcologicalImpact(_ context.Context, domain id.DomainID) (float64, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.readings[domain]
	return v, ok, nil
}
