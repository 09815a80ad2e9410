// Package faucet manages rate-limited, time-bounded resource flows between
// nodes of two domains.
//
// Non-metered resource types reserve their full lifetime demand from the
// resource ledger when the faucet opens; metered types reserve as units are
// drawn. Stock is never restored on close (consumption model).
package faucet

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"concord/internal/faucet/metrics"
	"concord/internal/registry"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/audit"
	"concord/pkg/platform/entitylock"
	"concord/pkg/platform/sentinel"
	"concord/pkg/requestcontext"
)

// Store persists faucets.
type Store interface {
	Create(ctx context.Context, f *Faucet) error
	Get(ctx context.Context, faucetID id.FaucetID) (*Faucet, error)
	Update(ctx context.Context, f *Faucet) error
	List(ctx context.Context) ([]*Faucet, error)
	ListOpen(ctx context.Context) ([]*Faucet, error)
}

// Ledger is the slice of the resource ledger the faucet manager needs.
type Ledger interface {
	Reserve(ctx context.Context, domain id.DomainID, resourceType string, qty float64) error
	Release(ctx context.Context, domain id.DomainID, resourceType string, qty float64) error
	CheckScarcity(ctx context.Context, domain id.DomainID, resourceType string, claimed float64) error
}

// Service implements the faucet manager.
type Service struct {
	store    Store
	ledger   Ledger
	registry *registry.Registry
	locks    *entitylock.Locker
	logger   *slog.Logger
	recorder audit.Recorder
	metrics  *metrics.Metrics

	limitersMu sync.Mutex
	limiters   map[id.FaucetID]*rate.Limiter
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

func WithLocker(l *entitylock.Locker) Option {
	return func(s *Service) {
		s.locks = l
	}
}

func New(store Store, ledger Ledger, reg *registry.Registry, opts ...Option) *Service {
	s := &Service{
		store:    store,
		ledger:   ledger,
		registry: reg,
		limiters: make(map[id.FaucetID]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = entitylock.New(0)
	}
	return s
}

// Open reserves stock and creates an active faucet with CurrentRate equal to
// MaxRate. Nothing is reserved when any check fails.
func (s *Service) Open(ctx context.Context, req OpenRequest) (*Faucet, error) {
	rt, err := s.validateOpen(&req)
	if err != nil {
		s.refuse(ctx, req, "validation", err)
		return nil, err
	}

	if req.ClaimedAvailable != nil {
		if err := s.ledger.CheckScarcity(ctx, req.FromDomain, req.ResourceType, *req.ClaimedAvailable); err != nil {
			s.refuse(ctx, req, "artificial_scarcity", err)
			return nil, err
		}
	}

	reserved := 0.0
	if !rt.Metered {
		reserved = req.Demand()
		if err := s.ledger.Reserve(ctx, req.FromDomain, req.ResourceType, reserved); err != nil {
			s.refuse(ctx, req, "resource_unavailable", err)
			return nil, err
		}
	}

	now := requestcontext.Now(ctx)
	f := &Faucet{
		ID:           id.NewFaucetID(),
		FromDomain:   req.FromDomain,
		ToDomain:     req.ToDomain,
		FromNode:     req.FromNode,
		ToNode:       req.ToNode,
		ResourceType: req.ResourceType,
		Metered:      rt.Metered,
		MaxRate:      req.MaxRate,
		CurrentRate:  req.MaxRate,
		Reserved:     reserved,
		OpenedAt:     now,
		ClosesAt:     now.Add(hours(req.DurationHours)),
		Status:       StatusActive,
		ProposalID:   req.ProposalID,
	}
	if err := s.store.Create(ctx, f); err != nil {
		if relErr := s.ledger.Release(ctx, req.FromDomain, req.ResourceType, reserved); relErr != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to release reservation after faucet create failure",
				"faucet_id", f.ID.String(),
				"error", relErr,
			)
		}
		wrapped := dErrors.Wrap(err, dErrors.CodeInternal, "failed to create faucet")
		s.refuse(ctx, req, "error", wrapped)
		return nil, wrapped
	}

	s.metrics.IncrementOpened(string(f.FromDomain), f.ResourceType)
	attrs := []any{
		"faucet_id", f.ID,
		"to_domain", string(f.ToDomain),
		"from_node", f.FromNode,
		"to_node", f.ToNode,
		"resource_type", f.ResourceType,
		"max_rate", f.MaxRate,
		"reserved", f.Reserved,
		"closes_at", f.ClosesAt,
	}
	if f.ProposalID != nil {
		attrs = append(attrs, "proposal_id", *f.ProposalID)
	}
	s.logAudit(ctx, f.FromDomain, audit.EventFaucetOpened, "faucet opened", attrs...)
	return f.clone(), nil
}

func (s *Service) validateOpen(req *OpenRequest) (registry.ResourceType, error) {
	if req.MaxRate <= 0 || math.IsInf(req.MaxRate, 0) || math.IsNaN(req.MaxRate) {
		return registry.ResourceType{}, dErrors.New(dErrors.CodeValidation, "max rate must be positive")
	}
	if req.DurationHours <= 0 || math.IsInf(req.DurationHours, 0) || math.IsNaN(req.DurationHours) {
		return registry.ResourceType{}, dErrors.New(dErrors.CodeValidation, "duration must be positive")
	}
	from, err := s.registry.Get(req.FromDomain)
	if err != nil {
		return registry.ResourceType{}, err
	}
	if _, err := s.registry.Get(req.ToDomain); err != nil {
		return registry.ResourceType{}, err
	}
	req.ResourceType = strings.TrimSpace(req.ResourceType)
	rt, ok := from.Produces(req.ResourceType)
	if !ok {
		return registry.ResourceType{}, dErrors.Newf(dErrors.CodeValidation,
			"domain %s does not produce %q", req.FromDomain, req.ResourceType)
	}
	if req.ClaimedAvailable != nil && *req.ClaimedAvailable < 0 {
		return registry.ResourceType{}, dErrors.New(dErrors.CodeValidation, "claimed availability cannot be negative")
	}
	if req.FromNode == "" {
		req.FromNode = string(req.FromDomain)
	}
	if req.ToNode == "" {
		req.ToNode = string(req.ToDomain)
	}
	return rt, nil
}

func (s *Service) refuse(ctx context.Context, req OpenRequest, reason string, err error) {
	domain := req.FromDomain
	if !domain.IsValid() {
		domain = id.System
	}
	s.metrics.IncrementRefused(string(domain), reason)
	s.logAudit(ctx, domain, audit.EventFaucetRefused, "faucet open refused",
		"to_domain", string(req.ToDomain),
		"resource_type", req.ResourceType,
		"max_rate", req.MaxRate,
		"duration_hours", req.DurationHours,
		"demand", req.Demand(),
		"reason", reason,
		"error", dErrors.MessageOf(err),
	)
}

// Get returns a faucet with lazy expiry applied.
func (s *Service) Get(ctx context.Context, faucetID id.FaucetID) (*Faucet, error) {
	f, err := s.load(ctx, faucetID)
	if err != nil {
		return nil, err
	}
	return f.view(requestcontext.Now(ctx)), nil
}

// List returns faucets matching filter, ordered by open time.
func (s *Service) List(ctx context.Context, filter Filter) ([]*Faucet, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list faucets")
	}
	now := requestcontext.Now(ctx)
	out := make([]*Faucet, 0, len(all))
	for _, f := range all {
		if filter.matches(f, now) {
			out = append(out, f.view(now))
		}
	}
	return out, nil
}

// Scale sets the current rate. It fails when newRate exceeds MaxRate or the
// faucet is closed.
func (s *Service) Scale(ctx context.Context, faucetID id.FaucetID, newRate float64) (*Faucet, error) {
	if newRate < 0 || math.IsNaN(newRate) {
		err := dErrors.New(dErrors.CodeValidation, "rate cannot be negative")
		return nil, s.opRefused(ctx, faucetID, opScale, err)
	}
	return s.mutate(ctx, faucetID, opScale, func(f *Faucet) (bool, error) {
		if newRate > f.MaxRate {
			return false, dErrors.Newf(dErrors.CodeValidation,
				"rate %.2f exceeds max rate %.2f", newRate, f.MaxRate)
		}
		previous := f.CurrentRate
		f.CurrentRate = newRate
		s.retuneLimiter(ctx, f)
		s.logAudit(ctx, f.FromDomain, audit.EventFaucetScaled, "faucet scaled",
			"faucet_id", f.ID,
			"previous_rate", previous,
			"current_rate", newRate,
			"max_rate", f.MaxRate,
		)
		return true, nil
	})
}

// Pause stops draws without releasing the reservation. Pausing a paused
// faucet is a no-op.
func (s *Service) Pause(ctx context.Context, faucetID id.FaucetID) (*Faucet, error) {
	return s.mutate(ctx, faucetID, opPause, func(f *Faucet) (bool, error) {
		if f.Status == StatusPaused {
			return false, nil
		}
		f.Status = StatusPaused
		s.logAudit(ctx, f.FromDomain, audit.EventFaucetPaused, "faucet paused", "faucet_id", f.ID)
		return true, nil
	})
}

// Resume reactivates a paused faucet. Resuming an active faucet is a no-op.
func (s *Service) Resume(ctx context.Context, faucetID id.FaucetID) (*Faucet, error) {
	return s.mutate(ctx, faucetID, opResume, func(f *Faucet) (bool, error) {
		if f.Status == StatusActive {
			return false, nil
		}
		f.Status = StatusActive
		s.logAudit(ctx, f.FromDomain, audit.EventFaucetResumed, "faucet resumed", "faucet_id", f.ID)
		return true, nil
	})
}

// Close sets the faucet closed. Closing a closed faucet is a no-op. A
// rollback close returns the undrawn reservation to stock.
func (s *Service) Close(ctx context.Context, faucetID id.FaucetID, reason string) (*Faucet, error) {
	if reason == "" {
		reason = ReasonClosed
	}
	var out *Faucet
	err := s.locks.RunLocked(ctx, faucetID.String(), func(ctx context.Context) error {
		f, err := s.load(ctx, faucetID)
		if err != nil {
			return err
		}
		if f.Status == StatusClosed {
			out = f
			return nil
		}
		now := requestcontext.Now(ctx)
		if f.IsExpired(now) {
			if err := s.closeExpired(ctx, f); err != nil {
				return err
			}
			out = f
			return nil
		}
		s.markClosed(f, now, reason)
		if err := s.store.Update(ctx, f); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to close faucet")
		}
		s.dropLimiter(f.ID)
		if reason == ReasonRolledBack {
			// A rolled-back allocation hands its undrawn reservation back.
			if err := s.ledger.Release(ctx, f.FromDomain, f.ResourceType, f.Remaining()); err != nil && s.logger != nil {
				s.logger.ErrorContext(ctx, "failed to release reservation of rolled back faucet",
					"faucet_id", f.ID.String(),
					"error", err,
				)
			}
		}
		s.metrics.IncrementClosed(reason)
		s.logAudit(ctx, f.FromDomain, audit.EventFaucetClosed, "faucet closed",
			"faucet_id", f.ID,
			"reason", reason,
			"drawn", f.Drawn,
			"reserved", f.Reserved,
		)
		out = f
		return nil
	})
	if err != nil {
		return nil, s.opRefused(ctx, faucetID, opClose, err)
	}
	return out.clone(), nil
}

// Draw moves amount units through the faucet. Draws are metered at
// CurrentRate units per hour with up to one hour of burst. A draw the ledger
// cannot cover does not use up rate allowance.
func (s *Service) Draw(ctx context.Context, faucetID id.FaucetID, amount float64) (*Faucet, error) {
	if amount <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		err := dErrors.New(dErrors.CodeValidation, "amount must be positive")
		return nil, s.opRefused(ctx, faucetID, opDraw, err)
	}
	return s.mutate(ctx, faucetID, opDraw, func(f *Faucet) (bool, error) {
		if f.Status == StatusPaused {
			return false, dErrors.New(dErrors.CodeConflict, "faucet is paused")
		}
		if !f.Metered && f.Drawn+amount > f.Reserved {
			return false, dErrors.Newf(dErrors.CodeResourceUnavailable,
				"draw of %.2f exceeds remaining reservation %.2f", amount, f.Remaining())
		}
		now := requestcontext.Now(ctx)
		allowance, ok := s.reserveDraw(f, now, amount)
		if !ok {
			return false, dErrors.Newf(dErrors.CodeResourceUnavailable,
				"draw of %.2f exceeds faucet rate of %.2f per hour", amount, f.CurrentRate)
		}
		if f.Metered {
			if err := s.ledger.Reserve(ctx, f.FromDomain, f.ResourceType, amount); err != nil {
				allowance.CancelAt(now)
				return false, err
			}
			f.Reserved += amount
		}
		f.Drawn += amount
		s.metrics.AddDrawn(string(f.FromDomain), f.ResourceType, amount)
		s.logAudit(ctx, f.FromDomain, audit.EventFaucetDrawn, "faucet drawn",
			"faucet_id", f.ID,
			"amount", amount,
			"drawn", f.Drawn,
			"to_domain", string(f.ToDomain),
		)
		return true, nil
	})
}

// SweepExpired closes every open faucet whose scheduled close time has
// passed. Failures are logged and the sweep moves on.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	open, err := s.store.ListOpen(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list open faucets")
	}
	now := requestcontext.Now(ctx)
	closed := 0
	for _, candidate := range open {
		if !candidate.IsExpired(now) {
			continue
		}
		err := s.locks.RunLocked(ctx, candidate.ID.String(), func(ctx context.Context) error {
			f, err := s.load(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if f.Status == StatusClosed {
				return nil
			}
			if err := s.closeExpired(ctx, f); err != nil {
				return err
			}
			closed++
			return nil
		})
		if err != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to expire faucet",
				"faucet_id", candidate.ID.String(),
				"error", err,
			)
		}
	}
	return closed, nil
}

// mutate runs fn on a live faucet under its lock and persists the result
// when fn reports a change. Closed or expired faucets are rejected. Every
// failure is recorded as a refusal of op.
func (s *Service) mutate(ctx context.Context, faucetID id.FaucetID, op string, fn func(f *Faucet) (bool, error)) (*Faucet, error) {
	var out *Faucet
	err := s.locks.RunLocked(ctx, faucetID.String(), func(ctx context.Context) error {
		f, err := s.load(ctx, faucetID)
		if err != nil {
			return err
		}
		if f.Status == StatusClosed {
			return dErrors.New(dErrors.CodeConflict, "faucet is closed")
		}
		if f.IsExpired(requestcontext.Now(ctx)) {
			if err := s.closeExpired(ctx, f); err != nil {
				return err
			}
			return dErrors.New(dErrors.CodeConflict, "faucet is closed")
		}
		changed, err := fn(f)
		if err != nil {
			return err
		}
		if changed {
			if err := s.store.Update(ctx, f); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update faucet")
			}
		}
		out = f
		return nil
	})
	if err != nil {
		return nil, s.opRefused(ctx, faucetID, op, err)
	}
	return out.clone(), nil
}

// opRefused records a rejected operation on an existing faucet and returns
// err. Unknown faucets are tagged system.
func (s *Service) opRefused(ctx context.Context, faucetID id.FaucetID, op string, err error) error {
	domain := id.System
	if f, getErr := s.store.Get(ctx, faucetID); getErr == nil {
		domain = f.FromDomain
	}
	s.logAudit(ctx, domain, audit.EventFaucetOpRefused, "faucet operation refused",
		"faucet_id", faucetID,
		"operation", op,
		"reason", string(dErrors.CodeOf(err)),
		"error", dErrors.MessageOf(err),
	)
	return err
}

// closeExpired persists lazy expiry. Callers hold the faucet lock.
func (s *Service) closeExpired(ctx context.Context, f *Faucet) error {
	s.markClosed(f, f.ClosesAt, ReasonExpired)
	if err := s.store.Update(ctx, f); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire faucet")
	}
	s.dropLimiter(f.ID)
	s.metrics.IncrementClosed(ReasonExpired)
	s.logAudit(ctx, f.FromDomain, audit.EventFaucetExpired, "faucet expired",
		"faucet_id", f.ID,
		"closes_at", f.ClosesAt,
		"drawn", f.Drawn,
	)
	return nil
}

func (s *Service) markClosed(f *Faucet, at time.Time, reason string) {
	f.Status = StatusClosed
	f.CloseReason = reason
	f.ClosedAt = &at
}

func (s *Service) load(ctx context.Context, faucetID id.FaucetID) (*Faucet, error) {
	f, err := s.store.Get(ctx, faucetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "faucet %s not found", faucetID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load faucet")
	}
	return f, nil
}

func (s *Service) logAudit(ctx context.Context, domain id.DomainID, event audit.EventType, msg string, attrs ...any) {
	audit.LogAudit(ctx, s.logger, s.recorder, domain, event, msg, attrs...)
}
