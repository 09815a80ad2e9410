// Package sweeper runs the periodic maintenance jobs: lazy expiry of
// proposals and faucets and the system-wide guardrail check.
//
// A failing run is logged and retried on the next tick; it never stops the
// other jobs.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"concord/internal/sweeper/metrics"
)

// Func performs one sweep and reports how many records it changed.
type Func func(ctx context.Context) (int, error)

// Job is a named sweep on a fixed interval. A non-positive interval
// disables the job.
type Job struct {
	Name     string
	Interval time.Duration
	Run      Func
}

// Sweeper drives a set of jobs until its context is cancelled.
type Sweeper struct {
	jobs    []Job
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func New(jobs []Job, opts ...Option) *Sweeper {
	s := &Sweeper{jobs: jobs, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts every enabled job and blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			s.logger.InfoContext(ctx, "sweep disabled", "job", job.Name)
			continue
		}
		job := job
		g.Go(func() error {
			s.loop(ctx, job)
			return nil
		})
	}
	return g.Wait()
}

func (s *Sweeper) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx, job)
		}
	}
}

// RunOnce executes a single sweep and records the outcome.
func (s *Sweeper) RunOnce(ctx context.Context, job Job) {
	start := time.Now()
	n, err := job.Run(ctx)
	s.metrics.ObserveRun(job.Name, time.Since(start), n, err)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep failed",
			"job", job.Name,
			"error", err,
		)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "sweep completed",
			"job", job.Name,
			"affected", n,
		)
	}
}
