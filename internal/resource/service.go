// Package resource is the ledger of available stock per domain and resource
// type. Reservations are compare-and-reserve operations in the store so two
// concurrent callers can never jointly over-allocate.
package resource

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"concord/internal/registry"
	"concord/internal/resource/metrics"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/platform/audit"
	"concord/pkg/platform/sentinel"
	"concord/pkg/requestcontext"
)

// Store persists stock. Reserve must be atomic: it either decrements by the
// full quantity or returns sentinel.ErrInsufficient without change.
type Store interface {
	Seed(ctx context.Context, domain id.DomainID, resourceType string, qty float64) error
	Deposit(ctx context.Context, domain id.DomainID, resourceType string, qty float64) (float64, error)
	Reserve(ctx context.Context, domain id.DomainID, resourceType string, qty float64, at time.Time) (float64, error)
	Available(ctx context.Context, domain id.DomainID, resourceType string) (float64, error)
	ReservedSince(ctx context.Context, domain id.DomainID, resourceType string, since time.Time) (float64, error)
	ListByDomain(ctx context.Context, domain id.DomainID) ([]Stock, error)
}

// ScarcityConfig holds the demo heuristic: a claim at or below ClaimMax is
// suspicious when real stock is at least Ratio times the larger of the claim
// and recent demand.
type ScarcityConfig struct {
	ClaimMax     float64
	Ratio        float64
	DemandWindow time.Duration
}

// DefaultScarcityConfig mirrors the configuration defaults.
func DefaultScarcityConfig() ScarcityConfig {
	return ScarcityConfig{ClaimMax: 100, Ratio: 10, DemandWindow: 24 * time.Hour}
}

// Service implements the resource ledger.
type Service struct {
	store    Store
	registry *registry.Registry
	scarcity ScarcityConfig
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

func WithScarcityConfig(cfg ScarcityConfig) Option {
	return func(s *Service) {
		s.scarcity = cfg
	}
}

// New constructs the ledger.
func New(store Store, reg *registry.Registry, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: reg,
		scarcity: DefaultScarcityConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SeedFromRegistry loads each domain's configured starting stock. Existing
// rows are left untouched so restarts against a durable store are safe.
func (s *Service) SeedFromRegistry(ctx context.Context) error {
	for _, d := range s.registry.All() {
		for rt, qty := range d.SeedStock {
			if err := s.store.Seed(ctx, d.ID, rt, qty); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seed stock")
			}
		}
	}
	return nil
}

// Deposit adds quantity to a domain's stock of a resource type it produces.
func (s *Service) Deposit(ctx context.Context, domain id.DomainID, resourceType string, qty float64) (float64, error) {
	if err := s.validate(domain, resourceType, qty); err != nil {
		return 0, err
	}
	available, err := s.store.Deposit(ctx, domain, resourceType, qty)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to deposit stock")
	}
	s.metrics.SetAvailable(string(domain), resourceType, available)
	s.logAudit(ctx, domain, audit.EventStockDeposited, "stock deposited",
		"resource_type", resourceType,
		"quantity", qty,
		"available", available,
	)
	return available, nil
}

// Reserve atomically takes qty from stock. It fails with ResourceUnavailable
// and leaves stock unchanged when there is not enough.
func (s *Service) Reserve(ctx context.Context, domain id.DomainID, resourceType string, qty float64) error {
	if err := s.validate(domain, resourceType, qty); err != nil {
		return err
	}
	available, err := s.store.Reserve(ctx, domain, resourceType, qty, requestcontext.Now(ctx))
	if err != nil {
		if errors.Is(err, sentinel.ErrInsufficient) || errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementReservation(string(domain), resourceType, "insufficient")
			current, _ := s.store.Available(ctx, domain, resourceType)
			return dErrors.Newf(dErrors.CodeResourceUnavailable,
				"insufficient %s in %s: requested %.2f, available %.2f", resourceType, domain, qty, current)
		}
		s.metrics.IncrementReservation(string(domain), resourceType, "error")
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve stock")
	}
	s.metrics.IncrementReservation(string(domain), resourceType, "reserved")
	s.metrics.SetAvailable(string(domain), resourceType, available)
	return nil
}

// Release returns previously reserved quantity, used when a later step of
// an all-or-nothing operation fails.
func (s *Service) Release(ctx context.Context, domain id.DomainID, resourceType string, qty float64) error {
	if qty <= 0 {
		return nil
	}
	available, err := s.store.Deposit(ctx, domain, resourceType, qty)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to release stock")
	}
	s.metrics.SetAvailable(string(domain), resourceType, available)
	return nil
}

// Available returns the current stock; unknown rows read as zero.
func (s *Service) Available(ctx context.Context, domain id.DomainID, resourceType string) (float64, error) {
	v, err := s.store.Available(ctx, domain, resourceType)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read stock")
	}
	return v, nil
}

// RecentDemand sums reservations within the configured demand window.
func (s *Service) RecentDemand(ctx context.Context, domain id.DomainID, resourceType string) (float64, error) {
	since := requestcontext.Now(ctx).Add(-s.scarcity.DemandWindow)
	v, err := s.store.ReservedSince(ctx, domain, resourceType, since)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read demand")
	}
	return v, nil
}

// EvaluateScarcity compares a caller's claimed availability with real stock
// and recent demand without side effects.
func (s *Service) EvaluateScarcity(ctx context.Context, domain id.DomainID, resourceType string, claimed float64) (ScarcityCheck, error) {
	available, err := s.Available(ctx, domain, resourceType)
	if err != nil {
		return ScarcityCheck{}, err
	}
	demand, err := s.RecentDemand(ctx, domain, resourceType)
	if err != nil {
		return ScarcityCheck{}, err
	}
	check := ScarcityCheck{Claimed: claimed, Available: available, RecentDemand: demand}
	check.Flagged = IsArtificialScarcity(claimed, available, demand, s.scarcity)
	return check, nil
}

// CheckScarcity fails with ArtificialScarcityDetected when a scarcity claim
// does not hold up against stock.
func (s *Service) CheckScarcity(ctx context.Context, domain id.DomainID, resourceType string, claimed float64) error {
	check, err := s.EvaluateScarcity(ctx, domain, resourceType, claimed)
	if err != nil {
		return err
	}
	if check.Flagged {
		s.metrics.IncrementScarcity(string(domain))
		s.logAudit(ctx, domain, audit.EventScarcityFlagged, "artificial scarcity detected",
			"resource_type", resourceType,
			"claimed_available", claimed,
			"available", check.Available,
			"recent_demand", check.RecentDemand,
			"reason", "claimed availability far below stock",
		)
		return dErrors.Newf(dErrors.CodeArtificialScarcity,
			"%s in %s claimed %.2f available but stock is %.2f", resourceType, domain, claimed, check.Available)
	}
	return nil
}

// IsArtificialScarcity is the pure heuristic behind CheckScarcity.
func IsArtificialScarcity(claimed, available, recentDemand float64, cfg ScarcityConfig) bool {
	if claimed < 0 || claimed > cfg.ClaimMax || available <= 0 {
		return false
	}
	return available >= cfg.Ratio*max(claimed, recentDemand)
}

// List returns a domain's stock rows.
func (s *Service) List(ctx context.Context, domain id.DomainID) ([]Stock, error) {
	stocks, err := s.store.ListByDomain(ctx, domain)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stock")
	}
	return stocks, nil
}

func (s *Service) validate(domain id.DomainID, resourceType string, qty float64) error {
	if qty <= 0 {
		return dErrors.New(dErrors.CodeValidation, "quantity must be positive")
	}
	d, err := s.registry.Get(domain)
	if err != nil {
		return err
	}
	if _, ok := d.Produces(resourceType); !ok {
		return dErrors.Newf(dErrors.CodeValidation, "domain %s does not produce %q", domain, resourceType)
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, domain id.DomainID, event audit.EventType, msg string, attrs ...any) {
	audit.LogAudit(ctx, s.logger, s.recorder, domain, event, msg, attrs...)
}
