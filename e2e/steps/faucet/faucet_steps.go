package faucet

import (
	"context"
	"fmt"
	"math"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers resource ledger and faucet step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &faucetSteps{tc: tc}

	ctx.Step(`^domain "([^"]*)" has exactly (\d+) "([^"]*)" available$`, steps.hasExactly)
	ctx.Step(`^domain "([^"]*)" requests a faucet of (\d+) "([^"]*)" per hour for (\d+) hours to "([^"]*)"$`, steps.requestFaucet)
	ctx.Step(`^domain "([^"]*)" should still have (\d+) "([^"]*)" available$`, steps.shouldHave)
}

type faucetSteps struct {
	tc TestContext
}

// hasExactly drains surplus stock through a one-hour faucet or tops up a
// shortfall with a deposit, so the scenario starts from a known balance.
func (s *faucetSteps) hasExactly(ctx context.Context, domain string, target int, resourceType string) error {
	current, err := s.available(domain, resourceType)
	if err != nil {
		return err
	}
	diff := current - float64(target)
	switch {
	case diff > 0:
		err = s.tc.POST("/faucets", map[string]any{
			"from_domain":    domain,
			"to_domain":      "infrastructure",
			"resource_type":  resourceType,
			"amount":         diff,
			"duration_hours": 1,
		})
	case diff < 0:
		err = s.tc.POST("/resources/deposit", map[string]any{
			"domain":        domain,
			"resource_type": resourceType,
			"quantity":      -diff,
		})
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status >= 300 {
		return fmt.Errorf("adjusting stock: status %d: %s", status, s.tc.GetLastResponseBody())
	}
	return s.shouldHave(ctx, domain, target, resourceType)
}

func (s *faucetSteps) requestFaucet(ctx context.Context, from string, rate int, resourceType string, hours int, to string) error {
	return s.tc.POST("/faucets", map[string]any{
		"from_domain":    from,
		"to_domain":      to,
		"resource_type":  resourceType,
		"amount":         rate,
		"duration_hours": hours,
	})
}

func (s *faucetSteps) shouldHave(ctx context.Context, domain string, expected int, resourceType string) error {
	got, err := s.available(domain, resourceType)
	if err != nil {
		return err
	}
	if math.Abs(got-float64(expected)) > 1e-9 {
		return fmt.Errorf("expected %d %s in %s, got %v", expected, resourceType, domain, got)
	}
	return nil
}

func (s *faucetSteps) available(domain, resourceType string) (float64, error) {
	if err := s.tc.GET("/resources/" + domain); err != nil {
		return 0, err
	}
	v, err := s.tc.GetResponseField("stock")
	if err != nil {
		return 0, err
	}
	rows, _ := v.([]any)
	for _, row := range rows {
		m, ok := row.(map[string]any)
		if !ok || m["resource_type"] != resourceType {
			continue
		}
		if n, ok := m["available"].(float64); ok {
			return n, nil
		}
	}
	return 0, nil
}
