// Package staking is the ledger of wallet stakes per domain, the influence
// they earn and the access tickets they back.
package staking

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"concord/internal/registry"
	"concord/internal/staking/metrics"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/audit"
	"concord/pkg/platform/entitylock"
	"concord/pkg/platform/sentinel"
	"concord/pkg/requestcontext"
)

// MaxLockDays bounds how far into the future a stake can be locked.
const MaxLockDays = 3650

// Store persists positions and ticket balances. Save methods upsert.
type Store interface {
	GetPosition(ctx context.Context, wallet id.WalletID, domain id.DomainID) (*Position, error)
	SavePosition(ctx context.Context, p *Position) error
	ListPositions(ctx context.Context, domain id.DomainID) ([]*Position, error)
	GetTicket(ctx context.Context, wallet id.WalletID, domain id.DomainID) (*Ticket, error)
	SaveTicket(ctx context.Context, t *Ticket) error
}

// Service implements the staking ledger. Mutations for one wallet and
// domain pair are serialized.
type Service struct {
	store    Store
	registry *registry.Registry
	locks    *entitylock.Locker
	logger   *slog.Logger
	recorder audit.Recorder
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithRecorder(r audit.Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, reg *registry.Registry, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: reg,
		locks:    entitylock.New(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stake adds amount to the position. Influence grows by amount times the
// domain multiplier and the lock is extended to now+LockDays, never
// shortened.
func (s *Service) Stake(ctx context.Context, req StakeRequest) (*Position, error) {
	if !validAmount(req.Amount) {
		return nil, s.refuseValidation(req.Domain, "stake", "amount must be positive")
	}
	if req.LockDays < 0 || req.LockDays > MaxLockDays {
		return nil, s.refuseValidation(req.Domain, "stake", "lock days out of range")
	}
	domain, err := s.registry.Get(req.Domain)
	if err != nil {
		return nil, err
	}

	var out *Position
	err = s.locks.RunLocked(ctx, positionKey(req.Wallet, req.Domain), func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		p, err := s.loadPosition(ctx, req.Wallet, req.Domain)
		if err != nil {
			return err
		}
		p.Staked += req.Amount
		p.Cumulative += req.Amount
		p.Influence += req.Amount * domain.StakeMultiplier
		if lockUntil := now.Add(time.Duration(req.LockDays) * 24 * time.Hour); lockUntil.After(p.LockUntil) {
			p.LockUntil = lockUntil
		}
		p.UpdatedAt = now
		if err := s.store.SavePosition(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save stake")
		}
		out = p
		return nil
	})
	if err != nil {
		s.metrics.IncrementOperation(string(req.Domain), "stake", "error")
		return nil, err
	}

	s.metrics.IncrementOperation(string(req.Domain), "stake", "ok")
	s.metrics.AddStaked(string(req.Domain), req.Amount)
	s.logAudit(ctx, req.Domain, audit.EventStaked, "stake recorded",
		"wallet", req.Wallet,
		"amount", req.Amount,
		"staked", out.Staked,
		"influence", out.Influence,
		"lock_until", out.LockUntil,
	)
	return out, nil
}

// Unstake removes amount from the position. It is refused while the lock is
// in force, when amount exceeds the current stake, or when the remaining
// stake would no longer back the outstanding tickets.
func (s *Service) Unstake(ctx context.Context, wallet id.WalletID, domain id.DomainID, amount float64) (*Position, error) {
	if !validAmount(amount) {
		return nil, s.refuseValidation(domain, "unstake", "amount must be positive")
	}
	if _, err := s.registry.Get(domain); err != nil {
		return nil, err
	}

	var out *Position
	err := s.locks.RunLocked(ctx, positionKey(wallet, domain), func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		p, err := s.loadPosition(ctx, wallet, domain)
		if err != nil {
			return err
		}
		if amount > p.Staked {
			return dErrors.Newf(dErrors.CodeValidation,
				"unstake amount %.2f exceeds staked %.2f", amount, p.Staked)
		}
		if p.IsLocked(now) {
			return dErrors.Newf(dErrors.CodeStillLocked,
				"stake is locked until %s", p.LockUntil.UTC().Format(time.RFC3339))
		}
		t, err := s.loadTicket(ctx, wallet, domain)
		if err != nil {
			return err
		}
		if p.Staked-amount < t.Remaining {
			return dErrors.Newf(dErrors.CodeValidation,
				"unstake would leave %.2f staked behind %.2f outstanding tickets", p.Staked-amount, t.Remaining)
		}
		p.Staked -= amount
		p.UpdatedAt = now
		if err := s.store.SavePosition(ctx, p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save unstake")
		}
		out = p
		return nil
	})
	if err != nil {
		s.metrics.IncrementOperation(string(domain), "unstake", string(dErrors.CodeOf(err)))
		s.logAudit(ctx, domain, audit.EventUnstakeRefused, "unstake refused",
			"wallet", wallet,
			"amount", amount,
			"reason", string(dErrors.CodeOf(err)),
			"error", dErrors.MessageOf(err),
		)
		return nil, err
	}

	s.metrics.IncrementOperation(string(domain), "unstake", "ok")
	s.metrics.AddStaked(string(domain), -amount)
	s.logAudit(ctx, domain, audit.EventUnstaked, "stake withdrawn",
		"wallet", wallet,
		"amount", amount,
		"staked", out.Staked,
	)
	return out, nil
}

// IssueTicket grants access tickets backed by stake. Outstanding tickets can
// never exceed the wallet's current stake in the domain.
func (s *Service) IssueTicket(ctx context.Context, req TicketRequest) (*Ticket, error) {
	if !validAmount(req.Amount) {
		return nil, s.refuseValidation(req.Domain, "issue_ticket", "amount must be positive")
	}
	if _, err := s.registry.Get(req.Domain); err != nil {
		return nil, err
	}

	var out *Ticket
	err := s.locks.RunLocked(ctx, positionKey(req.Wallet, req.Domain), func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		p, err := s.loadPosition(ctx, req.Wallet, req.Domain)
		if err != nil {
			return err
		}
		t, err := s.loadTicket(ctx, req.Wallet, req.Domain)
		if err != nil {
			return err
		}
		if t.Remaining+req.Amount > p.Staked {
			return dErrors.Newf(dErrors.CodeValidation,
				"tickets would exceed stake: outstanding %.2f, requested %.2f, staked %.2f",
				t.Remaining, req.Amount, p.Staked)
		}
		unlockAt := req.UnlockAt
		if unlockAt.IsZero() {
			unlockAt = now
		}
		if unlockAt.After(t.UnlockAt) {
			t.UnlockAt = unlockAt
		}
		t.Issued += req.Amount
		t.Remaining += req.Amount
		if err := s.store.SaveTicket(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save ticket")
		}
		out = t
		return nil
	})
	if err != nil {
		s.metrics.IncrementOperation(string(req.Domain), "issue_ticket", string(dErrors.CodeOf(err)))
		s.logAudit(ctx, req.Domain, audit.EventTicketRefused, "ticket issue refused",
			"wallet", req.Wallet,
			"amount", req.Amount,
			"error", dErrors.MessageOf(err),
		)
		return nil, err
	}

	s.metrics.IncrementOperation(string(req.Domain), "issue_ticket", "ok")
	s.logAudit(ctx, req.Domain, audit.EventTicketIssued, "ticket issued",
		"wallet", req.Wallet,
		"amount", req.Amount,
		"remaining", out.Remaining,
		"unlock_at", out.UnlockAt,
	)
	return out, nil
}

// ConsumeTicket spends tickets. It is refused before UnlockAt and when the
// remaining balance would go negative.
func (s *Service) ConsumeTicket(ctx context.Context, wallet id.WalletID, domain id.DomainID, amount float64) (*Ticket, error) {
	if !validAmount(amount) {
		return nil, s.refuseValidation(domain, "consume_ticket", "amount must be positive")
	}
	if _, err := s.registry.Get(domain); err != nil {
		return nil, err
	}

	var out *Ticket
	err := s.locks.RunLocked(ctx, positionKey(wallet, domain), func(ctx context.Context) error {
		now := requestcontext.Now(ctx)
		t, err := s.loadTicket(ctx, wallet, domain)
		if err != nil {
			return err
		}
		if amount > t.Remaining {
			return dErrors.Newf(dErrors.CodeValidation,
				"consume amount %.2f exceeds remaining tickets %.2f", amount, t.Remaining)
		}
		if now.Before(t.UnlockAt) {
			return dErrors.Newf(dErrors.CodeStillLocked,
				"tickets unlock at %s", t.UnlockAt.UTC().Format(time.RFC3339))
		}
		t.Remaining -= amount
		if err := s.store.SaveTicket(ctx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save ticket")
		}
		out = t
		return nil
	})
	if err != nil {
		s.metrics.IncrementOperation(string(domain), "consume_ticket", string(dErrors.CodeOf(err)))
		s.logAudit(ctx, domain, audit.EventTicketRefused, "ticket consumption refused",
			"wallet", wallet,
			"amount", amount,
			"error", dErrors.MessageOf(err),
		)
		return nil, err
	}

	s.metrics.IncrementOperation(string(domain), "consume_ticket", "ok")
	s.logAudit(ctx, domain, audit.EventTicketConsumed, "ticket consumed",
		"wallet", wallet,
		"amount", amount,
		"remaining", out.Remaining,
	)
	return out, nil
}

// Position returns the wallet's position; a wallet that never staked reads
// as an empty position.
func (s *Service) Position(ctx context.Context, wallet id.WalletID, domain id.DomainID) (*Position, error) {
	if _, err := s.registry.Get(domain); err != nil {
		return nil, err
	}
	return s.loadPosition(ctx, wallet, domain)
}

// Ticket returns the wallet's ticket balance.
func (s *Service) Ticket(ctx context.Context, wallet id.WalletID, domain id.DomainID) (*Ticket, error) {
	if _, err := s.registry.Get(domain); err != nil {
		return nil, err
	}
	return s.loadTicket(ctx, wallet, domain)
}

// Positions lists positions in a domain; an empty domain lists all.
func (s *Service) Positions(ctx context.Context, domain id.DomainID) ([]*Position, error) {
	positions, err := s.store.ListPositions(ctx, domain)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list positions")
	}
	return positions, nil
}

// PoolTotals aggregates stake per domain, including empty pools, in registry
// order.
func (s *Service) PoolTotals(ctx context.Context) ([]PoolTotal, error) {
	positions, err := s.Positions(ctx, "")
	if err != nil {
		return nil, err
	}
	byDomain := make(map[id.DomainID]*PoolTotal)
	for _, p := range positions {
		t, ok := byDomain[p.Domain]
		if !ok {
			t = &PoolTotal{Domain: p.Domain}
			byDomain[p.Domain] = t
		}
		t.Staked += p.Staked
		t.Influence += p.Influence
		if p.Staked > 0 {
			t.Wallets++
		}
	}
	out := make([]PoolTotal, 0, len(id.AllDomains()))
	for _, d := range id.AllDomains() {
		if t, ok := byDomain[d]; ok {
			out = append(out, *t)
			continue
		}
		out = append(out, PoolTotal{Domain: d})
	}
	return out, nil
}

// StakeDistribution returns the non-zero staked amounts in a domain in
// ascending order; an empty domain aggregates each wallet across domains.
func (s *Service) StakeDistribution(ctx context.Context, domain id.DomainID) ([]float64, error) {
	positions, err := s.Positions(ctx, domain)
	if err != nil {
		return nil, err
	}
	byWallet := make(map[id.WalletID]float64, len(positions))
	for _, p := range positions {
		byWallet[p.Wallet] += p.Staked
	}
	out := make([]float64, 0, len(byWallet))
	for _, v := range byWallet {
		if v > 0 {
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out, nil
}

func (s *Service) loadPosition(ctx context.Context, wallet id.WalletID, domain id.DomainID) (*Position, error) {
	p, err := s.store.GetPosition(ctx, wallet, domain)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &Position{Wallet: wallet, Domain: domain}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load position")
	}
	return p, nil
}

func (s *Service) loadTicket(ctx context.Context, wallet id.WalletID, domain id.DomainID) (*Ticket, error) {
	t, err := s.store.GetTicket(ctx, wallet, domain)
	if errors.Is(err, sentinel.ErrNotFound) {
		return &Ticket{Wallet: wallet, Domain: domain}, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ticket")
	}
	return t, nil
}

func (s *Service) refuseValidation(domain id.DomainID, operation, msg string) error {
	s.metrics.IncrementOperation(string(domain), operation, string(dErrors.CodeValidation))
	return dErrors.New(dErrors.CodeValidation, msg)
}

func (s *Service) logAudit(ctx context.Context, domain id.DomainID, event audit.EventType, msg string, attrs ...any) {
	audit.LogAudit(ctx, s.logger, s.recorder, domain, event, msg, attrs...)
}

func positionKey(wallet id.WalletID, domain id.DomainID) string {
	return string(domain) + "|" + string(wallet)
}

func validAmount(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
