package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures process-level configuration. Domain-level tables live in
// the registry and can be overridden from RegistryFile.
type Config struct {
	Server    Server
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Sweeps    SweepConfig
	Guardrail GuardrailConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr         string `env:"CONCORD_ADDR" envDefault:":8080"`
	Environment  string `env:"CONCORD_ENV" envDefault:"dev"`
	RegistryFile string `env:"CONCORD_REGISTRY_FILE"`
	AdminToken   string `env:"CONCORD_ADMIN_TOKEN"`
	LogLevel     string `env:"CONCORD_LOG_LEVEL" envDefault:"info"`
	// AllowClockOverride honours the X-Concord-Time request header. Never
	// enabled in production.
	AllowClockOverride bool `env:"CONCORD_ALLOW_CLOCK_OVERRIDE" envDefault:"false"`

	ReadTimeout     time.Duration `env:"CONCORD_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"CONCORD_HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"CONCORD_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"CONCORD_HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// IsProduction reports whether the server runs with production defaults
// (JSON logs, mandatory auth).
func (s Server) IsProduction() bool {
	return s.Environment == "prod" || s.Environment == "production"
}

// DatabaseConfig selects the SQL backend. An empty URL keeps every store in memory.
type DatabaseConfig struct {
	Driver       string        `env:"CONCORD_DATABASE_DRIVER" envDefault:"postgres"`
	URL          string        `env:"CONCORD_DATABASE_URL"`
	MaxOpenConns int           `env:"CONCORD_DATABASE_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns int           `env:"CONCORD_DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLife  time.Duration `env:"CONCORD_DATABASE_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// RedisConfig configures the optional Redis-backed resource stock store.
type RedisConfig struct {
	URL          string        `env:"CONCORD_REDIS_URL"`
	PoolSize     int           `env:"CONCORD_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"CONCORD_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"CONCORD_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"CONCORD_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"CONCORD_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// KafkaConfig configures event log fan-out. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string `env:"CONCORD_KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"CONCORD_KAFKA_TOPIC" envDefault:"concord.contract-events"`
}

// AuthConfig configures operator bearer tokens.
type AuthConfig struct {
	Required   bool   `env:"CONCORD_AUTH_REQUIRED" envDefault:"false"`
	SigningKey string `env:"CONCORD_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer     string `env:"CONCORD_JWT_ISSUER" envDefault:"concord"`
	Audience   string `env:"CONCORD_JWT_AUDIENCE" envDefault:"concord-operators"`
}

// SweepConfig sets background sweep cadence.
type SweepConfig struct {
	ProposalExpiry   time.Duration `env:"CONCORD_SWEEP_PROPOSAL_EXPIRY" envDefault:"1m"`
	FaucetExpiry     time.Duration `env:"CONCORD_SWEEP_FAUCET_EXPIRY" envDefault:"30s"`
	GlobalGuardrails time.Duration `env:"CONCORD_SWEEP_GLOBAL_GUARDRAILS" envDefault:"5m"`
}

// GuardrailConfig holds the demo thresholds used by the guardrail
// evaluators. They have no derivation beyond being sensible defaults.
type GuardrailConfig struct {
	EcologyCritical     float64       `env:"CONCORD_ECOLOGY_CRITICAL" envDefault:"-3.0"`
	EcologyModerate     float64       `env:"CONCORD_ECOLOGY_MODERATE" envDefault:"-1.0"`
	EcologyMinScale     float64       `env:"CONCORD_ECOLOGY_MIN_SCALE" envDefault:"0.1"`
	EquityCeiling       float64       `env:"CONCORD_EQUITY_GINI_CEILING" envDefault:"0.45"`
	EquitySensitivity   float64       `env:"CONCORD_EQUITY_SENSITIVITY" envDefault:"0.02"`
	ScarcityClaimMax    float64       `env:"CONCORD_SCARCITY_CLAIM_MAX" envDefault:"100"`
	ScarcityRatio       float64       `env:"CONCORD_SCARCITY_RATIO" envDefault:"10"`
	DemandWindow        time.Duration `env:"CONCORD_DEMAND_WINDOW" envDefault:"24h"`
	GlobalEcologyWindow time.Duration `env:"CONCORD_GLOBAL_ECOLOGY_WINDOW" envDefault:"168h"`
	// GlobalThrottle lets the global sweep pause or scale faucets of a
	// domain whose ecology reading is out of bounds instead of only
	// escalating.
	GlobalThrottle bool `env:"CONCORD_GLOBAL_THROTTLE" envDefault:"false"`
}

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations that would make guardrails meaningless.
func (c Config) Validate() error {
	g := c.Guardrail
	if g.EcologyCritical >= g.EcologyModerate {
		return fmt.Errorf("ecology critical threshold (%v) must be below moderate threshold (%v)", g.EcologyCritical, g.EcologyModerate)
	}
	if g.EcologyMinScale <= 0 || g.EcologyMinScale > 1 {
		return fmt.Errorf("ecology min scale must be in (0,1], got %v", g.EcologyMinScale)
	}
	if g.EquityCeiling <= 0 || g.EquityCeiling > 1 {
		return fmt.Errorf("equity ceiling must be in (0,1], got %v", g.EquityCeiling)
	}
	if c.Auth.Required && c.Auth.SigningKey == "" {
		return fmt.Errorf("CONCORD_JWT_SIGNING_KEY is required when auth is enabled")
	}
	if c.Server.IsProduction() && c.Auth.SigningKey == "dev-secret-key-change-in-production" && c.Auth.Required {
		return fmt.Errorf("refusing to start in production with the development signing key")
	}
	if c.Server.IsProduction() && c.Server.AllowClockOverride {
		return fmt.Errorf("CONCORD_ALLOW_CLOCK_OVERRIDE cannot be enabled in production")
	}
	return nil
}
