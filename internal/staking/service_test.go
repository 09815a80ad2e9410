package staking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"concord/internal/eventlog"
	eventstore "concord/internal/eventlog/store"
	"concord/internal/registry"
	"concord/internal/staking"
	"concord/internal/staking/store"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/audit"
	"concord/pkg/testutil"
)

const wallet = id.WalletID("0xa11ce")

type ServiceSuite struct {
	suite.Suite
	events  *eventlog.Service
	service *staking.Service
	day0    time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.events = eventlog.New(eventstore.NewInMemoryStore())
	s.service = staking.New(store.NewInMemoryStore(), registry.Default(),
		staking.WithRecorder(s.events),
		staking.WithLogger(testutil.DiscardLogger()),
	)
	s.day0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) day(n int) context.Context {
	return testutil.At(s.day0.Add(time.Duration(n) * 24 * time.Hour))
}

func (s *ServiceSuite) stake(ctx context.Context, domain id.DomainID, amount float64, lockDays int) *staking.Position {
	p, err := s.service.Stake(ctx, staking.StakeRequest{Wallet: wallet, Domain: domain, Amount: amount, LockDays: lockDays})
	s.Require().NoError(err)
	return p
}

// Stake 500 locked for 30 days; unstaking 200 on day 10 is refused, on day
// 31 it succeeds and leaves 300.
func (s *ServiceSuite) TestLockedUnstakeScenario() {
	s.stake(s.day(0), id.Energy, 500, 30)

	_, err := s.service.Unstake(s.day(10), wallet, id.Energy, 200)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStillLocked))

	p, err := s.service.Position(s.day(10), wallet, id.Energy)
	s.Require().NoError(err)
	s.Equal(500.0, p.Staked)

	p, err = s.service.Unstake(s.day(31), wallet, id.Energy, 200)
	s.Require().NoError(err)
	s.Equal(300.0, p.Staked)

	events, err := s.events.List(context.Background(), eventlog.Filter{})
	s.Require().NoError(err)
	var types []audit.EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	s.Equal([]audit.EventType{audit.EventStaked, audit.EventUnstakeRefused, audit.EventUnstaked}, types)
}

func (s *ServiceSuite) TestStake() {
	s.Run("influence uses the domain multiplier", func() {
		p := s.stake(s.day(0), id.Energy, 100, 0)
		s.Equal(100.0, p.Staked)
		s.InDelta(120.0, p.Influence, 1e-9)
	})

	s.Run("lock is extended, never shortened", func() {
		p := s.stake(s.day(0), id.Food, 10, 30)
		s.Equal(s.day0.Add(30*24*time.Hour), p.LockUntil)
		p = s.stake(s.day(1), id.Food, 10, 5)
		s.Equal(s.day0.Add(30*24*time.Hour), p.LockUntil)
		p = s.stake(s.day(20), id.Food, 10, 30)
		s.Equal(s.day0.Add(50*24*time.Hour), p.LockUntil)
	})

	s.Run("validation", func() {
		for _, req := range []staking.StakeRequest{
			{Wallet: wallet, Domain: id.Energy, Amount: 0},
			{Wallet: wallet, Domain: id.Energy, Amount: -5},
			{Wallet: wallet, Domain: id.Energy, Amount: 5, LockDays: -1},
			{Wallet: wallet, Domain: "mars", Amount: 5},
		} {
			_, err := s.service.Stake(s.day(0), req)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "%+v", req)
		}
	})
}

func (s *ServiceSuite) TestUnstake() {
	s.stake(s.day(0), id.Health, 100, 0)

	s.Run("cannot exceed stake", func() {
		_, err := s.service.Unstake(s.day(1), wallet, id.Health, 100.01)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("influence does not decrease", func() {
		before, _ := s.service.Position(s.day(1), wallet, id.Health)
		after, err := s.service.Unstake(s.day(1), wallet, id.Health, 100)
		s.Require().NoError(err)
		s.Zero(after.Staked)
		s.Equal(before.Influence, after.Influence)
		s.Equal(before.Cumulative, after.Cumulative)
	})

	s.Run("never staked", func() {
		_, err := s.service.Unstake(s.day(1), "0xb0b", id.Health, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestTickets() {
	s.stake(s.day(0), id.Education, 100, 0)

	s.Run("issue bounded by stake", func() {
		t, err := s.service.IssueTicket(s.day(0), staking.TicketRequest{Wallet: wallet, Domain: id.Education, Amount: 60})
		s.Require().NoError(err)
		s.Equal(60.0, t.Remaining)

		_, err = s.service.IssueTicket(s.day(0), staking.TicketRequest{Wallet: wallet, Domain: id.Education, Amount: 41})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("consume decrements and never goes negative", func() {
		t, err := s.service.ConsumeTicket(s.day(0), wallet, id.Education, 25)
		s.Require().NoError(err)
		s.Equal(35.0, t.Remaining)
		s.Equal(60.0, t.Issued)

		_, err = s.service.ConsumeTicket(s.day(0), wallet, id.Education, 35.5)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		t, err = s.service.Ticket(s.day(0), wallet, id.Education)
		s.Require().NoError(err)
		s.Equal(35.0, t.Remaining)
	})

	s.Run("locked tickets cannot be consumed", func() {
		s.stake(s.day(0), id.Social, 50, 0)
		_, err := s.service.IssueTicket(s.day(0), staking.TicketRequest{
			Wallet: wallet, Domain: id.Social, Amount: 10, UnlockAt: s.day0.Add(48 * time.Hour),
		})
		s.Require().NoError(err)

		_, err = s.service.ConsumeTicket(s.day(1), wallet, id.Social, 5)
		s.True(dErrors.HasCode(err, dErrors.CodeStillLocked))
		_, err = s.service.ConsumeTicket(s.day(2), wallet, id.Social, 5)
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestUnstakeKeepsTicketsBacked() {
	s.stake(s.day(0), id.Transport, 100, 0)
	_, err := s.service.IssueTicket(s.day(0), staking.TicketRequest{Wallet: wallet, Domain: id.Transport, Amount: 100})
	s.Require().NoError(err)

	s.Run("refused while tickets exceed what would remain", func() {
		_, err := s.service.Unstake(s.day(1), wallet, id.Transport, 100)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		p, err := s.service.Position(s.day(1), wallet, id.Transport)
		s.Require().NoError(err)
		s.Equal(100.0, p.Staked)
		t, err := s.service.ConsumeTicket(s.day(1), wallet, id.Transport, 60)
		s.Require().NoError(err)
		s.Equal(40.0, t.Remaining)
	})

	s.Run("allowed down to the outstanding balance", func() {
		p, err := s.service.Unstake(s.day(1), wallet, id.Transport, 60)
		s.Require().NoError(err)
		s.Equal(40.0, p.Staked)

		_, err = s.service.Unstake(s.day(1), wallet, id.Transport, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("allowed in full once tickets are consumed", func() {
		_, err := s.service.ConsumeTicket(s.day(1), wallet, id.Transport, 40)
		s.Require().NoError(err)
		p, err := s.service.Unstake(s.day(1), wallet, id.Transport, 40)
		s.Require().NoError(err)
		s.Zero(p.Staked)
	})
}

func (s *ServiceSuite) TestAggregates() {
	ctx := s.day(0)
	s.stake(ctx, id.Energy, 100, 0)
	_, err := s.service.Stake(ctx, staking.StakeRequest{Wallet: "0xb0b", Domain: id.Energy, Amount: 300})
	s.Require().NoError(err)
	_, err = s.service.Stake(ctx, staking.StakeRequest{Wallet: "0xb0b", Domain: id.Food, Amount: 50})
	s.Require().NoError(err)

	totals, err := s.service.PoolTotals(ctx)
	s.Require().NoError(err)
	s.Len(totals, 10)
	s.Equal(id.Infrastructure, totals[0].Domain)
	s.Equal(400.0, totals[1].Staked)
	s.Equal(2, totals[1].Wallets)
	s.Equal(50.0, totals[2].Staked)
	s.Zero(totals[9].Staked)

	dist, err := s.service.StakeDistribution(ctx, id.Energy)
	s.Require().NoError(err)
	s.Equal([]float64{100, 300}, dist)

	all, err := s.service.StakeDistribution(ctx, "")
	s.Require().NoError(err)
	s.Equal([]float64{100, 350}, all)
}

func TestConcurrentUnstakeNeverOverdraws(t *testing.T) {
	svc := staking.New(store.NewInMemoryStore(), registry.Default())
	ctx := testutil.At(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err := svc.Stake(ctx, staking.StakeRequest{Wallet: wallet, Domain: id.Transport, Amount: 100})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Unstake(ctx, wallet, id.Transport, 10); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	p, err := svc.Position(ctx, wallet, id.Transport)
	require.NoError(t, err)
	assert.Zero(t, p.Staked)
}

func TestRestakeNeverShortensLock(t *testing.T) {
	svc := staking.New(store.NewInMemoryStore(), registry.Default())
	day0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	day := func(n int) context.Context { return testutil.At(day0.AddDate(0, 0, n)) }

	testutil.Given(t, "a 30 day lock taken on day 0", func(t *testing.T) {
		_, err := svc.Stake(day(0), staking.StakeRequest{Wallet: wallet, Domain: id.Food, Amount: 100, LockDays: 30})
		require.NoError(t, err)

		testutil.When(t, "a 5 day top-up lands on day 10", func(t *testing.T) {
			p, err := svc.Stake(day(10), staking.StakeRequest{Wallet: wallet, Domain: id.Food, Amount: 50, LockDays: 5})
			require.NoError(t, err)

			testutil.Then(t, "the original lock still holds", func(t *testing.T) {
				assert.Equal(t, day0.AddDate(0, 0, 30), p.LockUntil)
				assert.Equal(t, 150.0, p.Staked)

				_, err := svc.Unstake(day(20), wallet, id.Food, 10)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeStillLocked))
			})
		})
	})
}
