package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"concord/internal/coordinator"
	coordinatorHandler "concord/internal/coordinator/handler"
	coordinatorMetrics "concord/internal/coordinator/metrics"
	"concord/internal/eventlog"
	eventlogHandler "concord/internal/eventlog/handler"
	eventlogMetrics "concord/internal/eventlog/metrics"
	"concord/internal/eventlog/publisher"
	eventstore "concord/internal/eventlog/store"
	"concord/internal/faucet"
	faucetHandler "concord/internal/faucet/handler"
	faucetMetrics "concord/internal/faucet/metrics"
	faucetstore "concord/internal/faucet/store"
	"concord/internal/guardrail"
	guardrailMetrics "concord/internal/guardrail/metrics"
	jwttoken "concord/internal/jwt_token"
	"concord/internal/platform/config"
	"concord/internal/platform/database"
	"concord/internal/platform/httpserver"
	"concord/internal/platform/logger"
	httpMetrics "concord/internal/platform/metrics"
	redisClient "concord/internal/platform/redis"
	"concord/internal/proposal"
	proposalHandler "concord/internal/proposal/handler"
	proposalMetrics "concord/internal/proposal/metrics"
	proposalstore "concord/internal/proposal/store"
	"concord/internal/registry"
	"concord/internal/resource"
	resourceHandler "concord/internal/resource/handler"
	resourceMetrics "concord/internal/resource/metrics"
	resourcestore "concord/internal/resource/store"
	"concord/internal/staking"
	stakingHandler "concord/internal/staking/handler"
	stakingMetrics "concord/internal/staking/metrics"
	stakingstore "concord/internal/staking/store"
	"concord/internal/sweeper"
	sweeperMetrics "concord/internal/sweeper/metrics"
	httptransport "concord/internal/transport/http"
)

// main wires configuration, stores and services, exposes the HTTP router and
// runs the background sweeps until a shutdown signal arrives.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Environment, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	events    eventlog.Store
	resources resource.Store
	stakes    staking.Store
	health    map[string]httptransport.HealthChecker
	closers   []func() error
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg, err := registry.Load(cfg.Server.RegistryFile)
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range st.closers {
			if err := c(); err != nil {
				log.Warn("failed to close store", "error", err)
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	eventMetrics := eventlogMetrics.New()
	eventOpts := []eventlog.Option{eventlog.WithLogger(log), eventlog.WithMetrics(eventMetrics)}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := publisher.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer sink.Close()
		forwarder := publisher.NewForwarder(sink, publisher.WithLogger(log), publisher.WithMetrics(eventMetrics))
		eventOpts = append(eventOpts, eventlog.WithPublisher(forwarder))
		g.Go(func() error {
			if err := forwarder.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("event fan-out enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	events := eventlog.New(st.events, eventOpts...)

	ledger := resource.New(st.resources, reg,
		resource.WithLogger(log),
		resource.WithRecorder(events),
		resource.WithMetrics(resourceMetrics.New()),
		resource.WithScarcityConfig(resource.ScarcityConfig{
			ClaimMax:     cfg.Guardrail.ScarcityClaimMax,
			Ratio:        cfg.Guardrail.ScarcityRatio,
			DemandWindow: cfg.Guardrail.DemandWindow,
		}),
	)
	if err := ledger.SeedFromRegistry(ctx); err != nil {
		return err
	}

	faucets := faucet.New(faucetstore.NewInMemoryStore(), ledger, reg,
		faucet.WithLogger(log),
		faucet.WithRecorder(events),
		faucet.WithMetrics(faucetMetrics.New()),
	)
	stakes := staking.New(st.stakes, reg,
		staking.WithLogger(log),
		staking.WithRecorder(events),
		staking.WithMetrics(stakingMetrics.New()),
	)
	proposals := proposal.New(proposalstore.NewInMemoryStore(), reg,
		proposal.WithLogger(log),
		proposal.WithRecorder(events),
		proposal.WithMetrics(proposalMetrics.New()),
	)
	evaluator, err := guardrail.New(guardrail.ThresholdsFromConfig(cfg.Guardrail),
		guardrail.WithLogger(log),
		guardrail.WithMetrics(guardrailMetrics.New()),
	)
	if err != nil {
		return err
	}

	coord := coordinator.New(coordinator.Deps{
		Proposals:  proposals,
		Guardrails: evaluator,
		Faucets:    faucets,
		Resources:  ledger,
		Stakes:     stakes,
		Registry:   reg,
	},
		coordinator.WithLogger(log),
		coordinator.WithRecorder(events),
		coordinator.WithMetrics(coordinatorMetrics.New()),
		coordinator.WithEventCounter(events),
		coordinator.WithGlobalPolicy(cfg.Guardrail.GlobalEcologyWindow, cfg.Guardrail.GlobalThrottle),
	)
	proposals.SetApplier(coord.Applier())

	routerCfg := httptransport.RouterConfig{
		Logger:     log,
		Metrics:    httpMetrics.New(),
		AdminToken: cfg.Server.AdminToken,
		Health:     st.health,

		AllowClockOverride: cfg.Server.AllowClockOverride,
	}
	jwtService := jwttoken.NewJWTService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	routerCfg.Tokens = jwtService
	if cfg.Auth.Required {
		routerCfg.Validator = jwttoken.NewMiddlewareValidator(jwtService)
	}
	router := httptransport.NewRouter(routerCfg,
		proposalHandler.New(coord, log),
		faucetHandler.New(faucets, log),
		stakingHandler.New(stakes, log),
		resourceHandler.New(ledger, log),
		eventlogHandler.New(events, log),
		coordinatorHandler.New(coord, log),
	)

	sweeps := sweeper.New([]sweeper.Job{
		{Name: "proposal_expiry", Interval: cfg.Sweeps.ProposalExpiry, Run: proposals.Expire},
		{Name: "faucet_expiry", Interval: cfg.Sweeps.FaucetExpiry, Run: faucets.SweepExpired},
		{Name: "global_guardrails", Interval: cfg.Sweeps.GlobalGuardrails, Run: func(ctx context.Context) (int, error) {
			escalations, err := coord.EnforceGlobalGuardrails(ctx)
			return len(escalations), err
		}},
	}, sweeper.WithLogger(log), sweeper.WithMetrics(sweeperMetrics.New()))
	g.Go(func() error { return sweeps.Run(gctx) })

	srv := httpserver.New(cfg.Server, router)
	g.Go(func() error {
		log.Info("starting concord", "addr", cfg.Server.Addr, "env", cfg.Server.Environment, "auth_required", cfg.Auth.Required)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout(cfg.Server))
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStores picks SQL stores when a database is configured and Redis for
// stock when a Redis URL is set. Everything else stays in memory.
func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*stores, error) {
	st := &stores{
		events:    eventstore.NewInMemoryStore(),
		resources: resourcestore.NewInMemoryStore(),
		stakes:    stakingstore.NewInMemoryStore(),
		health:    map[string]httptransport.HealthChecker{},
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := database.Migrate(ctx, db, cfg.Database.Driver); err != nil {
			_ = db.Close()
			return nil, err
		}
		st.events = eventstore.NewSQL(db, cfg.Database.Driver)
		st.resources = resourcestore.NewSQL(db, cfg.Database.Driver)
		st.stakes = stakingstore.NewSQL(db, cfg.Database.Driver)
		st.health["database"] = pingDB(db)
		st.closers = append(st.closers, db.Close)
		log.Info("sql stores enabled", "driver", cfg.Database.Driver)
	}

	rc, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		for _, c := range st.closers {
			_ = c()
		}
		return nil, err
	}
	if rc != nil {
		st.resources = resourcestore.NewRedis(rc.Client)
		st.health["redis"] = func(r *http.Request) error { return rc.Health(r.Context()) }
		st.closers = append(st.closers, rc.Close)
		log.Info("redis stock store enabled")
	}
	return st, nil
}

func pingDB(db *sql.DB) httptransport.HealthChecker {
	return func(r *http.Request) error {
		return db.PingContext(r.Context())
	}
}
