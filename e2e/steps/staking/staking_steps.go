package staking

import (
	"context"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	SetClock(t time.Time)
	Save(key, value string)
	Saved(key string) string
}

// RegisterSteps registers staking step definitions. Day offsets are relative
// to the start of the scenario and are sent through the clock override.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &stakingSteps{tc: tc}

	ctx.Step(`^a fresh wallet$`, steps.freshWallet)
	ctx.Step(`^the wallet stakes (\d+) in "([^"]*)" locked for (\d+) days$`, steps.stake)
	ctx.Step(`^on day (\d+) the wallet unstakes (\d+) from "([^"]*)"$`, steps.unstakeOnDay)
}

type stakingSteps struct {
	tc    TestContext
	start time.Time
}

func (s *stakingSteps) freshWallet(ctx context.Context) error {
	s.start = time.Now().UTC().Truncate(time.Second)
	s.tc.SetClock(s.start)
	s.tc.Save("wallet", fmt.Sprintf("0xe2e%d", s.start.UnixNano()))
	return nil
}

func (s *stakingSteps) stake(ctx context.Context, amount int, domain string, lockDays int) error {
	if err := s.tc.POST("/stake", map[string]any{
		"wallet":    s.tc.Saved("wallet"),
		"domain":    domain,
		"amount":    amount,
		"lock_days": lockDays,
	}); err != nil {
		return err
	}
	if status := s.tc.GetLastResponseStatus(); status != 200 {
		return fmt.Errorf("stake: status %d: %s", status, s.tc.GetLastResponseBody())
	}
	return nil
}

func (s *stakingSteps) unstakeOnDay(ctx context.Context, day, amount int, domain string) error {
	s.tc.SetClock(s.start.Add(time.Duration(day) * 24 * time.Hour))
	return s.tc.POST("/unstake", map[string]any{
		"wallet": s.tc.Saved("wallet"),
		"domain": domain,
		"amount": amount,
	})
}
