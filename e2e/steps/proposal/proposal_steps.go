package proposal

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Save(key, value string)
	Saved(key string) string
}

// RegisterSteps registers proposal lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &proposalSteps{tc: tc}

	ctx.Step(`^domain "([^"]*)" proposes to allocate (\d+) "([^"]*)" per hour for (\d+) hours to "([^"]*)" with ecological impact (-?[\d.]+)$`, steps.proposeAllocation)
	ctx.Step(`^the proposal is created with status "([^"]*)"$`, steps.createdWithStatus)
	ctx.Step(`^the proposal should have (\d+) requested signers and quorum (\d+)$`, steps.signersAndQuorum)
	ctx.Step(`^the proposal should have (\d+) approvals$`, steps.approvals)
	ctx.Step(`^the "([^"]*)" guardrail should return "([^"]*)"$`, steps.guardrailOutcome)
	ctx.Step(`^I enact the proposal$`, steps.enact)
	ctx.Step(`^I fetch the proposal$`, steps.fetch)
	ctx.Step(`^the proposal should have opened an active faucet at its full rate$`, steps.openedActiveFaucet)
	ctx.Step(`^the proposal should have no side effects$`, steps.noSideEffects)
}

type proposalSteps struct {
	tc TestContext
}

func (s *proposalSteps) proposeAllocation(ctx context.Context, domain string, rate int, resourceType string, hours int, to string, ecological float64) error {
	body := map[string]any{
		"domain":        domain,
		"author":        "e2e@" + domain,
		"rationale_ref": "doc://e2e",
		"metrics":       map[string]any{"ecological": ecological, "equity": 1},
		"changes": []map[string]any{{
			"kind": "allocate_resource",
			"payload": map[string]any{
				"to_domain":      to,
				"resource_type":  resourceType,
				"rate":           rate,
				"duration_hours": hours,
			},
		}},
	}
	if err := s.tc.POST("/proposals", body); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return fmt.Errorf("create proposal: status %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	v, err := s.tc.GetResponseField("proposal_id")
	if err != nil {
		return err
	}
	s.tc.Save("proposal_id", fmt.Sprint(v))
	return nil
}

func (s *proposalSteps) createdWithStatus(ctx context.Context, status string) error {
	return s.fieldEquals("status", status)
}

func (s *proposalSteps) signersAndQuorum(ctx context.Context, signers, quorum int) error {
	v, err := s.tc.GetResponseField("proposal.requested_signers")
	if err != nil {
		return err
	}
	list, _ := v.([]any)
	if len(list) != signers {
		return fmt.Errorf("expected %d requested signers, got %v", signers, v)
	}
	return s.fieldEquals("proposal.quorum", fmt.Sprint(quorum))
}

func (s *proposalSteps) approvals(ctx context.Context, n int) error {
	v, err := s.tc.GetResponseField("proposal.attestations")
	if err != nil {
		return err
	}
	attestations, _ := v.(map[string]any)
	approvals := 0
	for _, a := range attestations {
		if m, ok := a.(map[string]any); ok && m["vote"] == "approve" {
			approvals++
		}
	}
	if approvals != n {
		return fmt.Errorf("expected %d approvals, got %d", n, approvals)
	}
	return nil
}

func (s *proposalSteps) guardrailOutcome(ctx context.Context, name, outcome string) error {
	return s.fieldEquals("proposal.guardrails."+name+".outcome", outcome)
}

func (s *proposalSteps) enact(ctx context.Context) error {
	return s.tc.POST("/proposals/"+s.tc.Saved("proposal_id")+"/enact", map[string]any{})
}

func (s *proposalSteps) fetch(ctx context.Context) error {
	return s.tc.GET("/proposals/" + s.tc.Saved("proposal_id"))
}

func (s *proposalSteps) openedActiveFaucet(ctx context.Context) error {
	if err := s.fetch(ctx); err != nil {
		return err
	}
	kind, err := s.tc.GetResponseField("side_effects.0.kind")
	if err != nil {
		return err
	}
	if kind != "faucet" {
		return fmt.Errorf("expected a faucet side effect, got %v", kind)
	}
	ref, err := s.tc.GetResponseField("side_effects.0.ref")
	if err != nil {
		return err
	}
	if err := s.tc.GET(fmt.Sprintf("/faucets/%v", ref)); err != nil {
		return err
	}
	if err := s.fieldEquals("status", "active"); err != nil {
		return err
	}
	maxRate, err := s.tc.GetResponseField("max_rate")
	if err != nil {
		return err
	}
	current, err := s.tc.GetResponseField("current_rate")
	if err != nil {
		return err
	}
	if maxRate != current {
		return fmt.Errorf("expected current_rate %v to equal max_rate %v", current, maxRate)
	}
	return nil
}

func (s *proposalSteps) noSideEffects(ctx context.Context) error {
	if err := s.fetch(ctx); err != nil {
		return err
	}
	if _, err := s.tc.GetResponseField("side_effects"); err == nil {
		return fmt.Errorf("expected no side effects: %s", s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *proposalSteps) fieldEquals(field, expected string) error {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(v); got != expected {
		return fmt.Errorf("expected %s=%q, got %q", field, expected, got)
	}
	return nil
}
