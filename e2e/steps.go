package e2e

import (
	"github.com/cucumber/godog"

	"podium/e2e/steps/common"
	"podium/e2e/steps/submission"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register submission and moderation steps
	submission.RegisterSteps(ctx, tc)
}
