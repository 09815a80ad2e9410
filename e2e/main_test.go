package e2e

import (
	"os"
	"testing"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
)

// TestFeatures runs the acceptance suite against CONCORD_E2E_URL. The server
// must be started with CONCORD_ALLOW_CLOCK_OVERRIDE=true.
func TestFeatures(t *testing.T) {
	baseURL := os.Getenv("CONCORD_E2E_URL")
	if baseURL == "" {
		t.Skip("CONCORD_E2E_URL not set")
	}
	tc := NewTestContext(baseURL)

	suite := godog.TestSuite{
		Name: "concord",
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			RegisterSteps(ctx, tc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Output:   colors.Colored(os.Stdout),
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("acceptance suite failed")
	}
}
