package e2e

import (
	"context"

	"github.com/cucumber/godog"

	"concord/e2e/steps/common"
	"concord/e2e/steps/faucet"
	"concord/e2e/steps/proposal"
	"concord/e2e/steps/staking"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.Reset()
		return ctx, nil
	})

	// Register common steps (server health, status and error assertions)
	common.RegisterSteps(ctx, tc)

	proposal.RegisterSteps(ctx, tc)
	faucet.RegisterSteps(ctx, tc)
	staking.RegisterSteps(ctx, tc)
}
