package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, -3.0, cfg.Guardrail.EcologyCritical)
	assert.Equal(t, -1.0, cfg.Guardrail.EcologyModerate)
	assert.Equal(t, 0.45, cfg.Guardrail.EquityCeiling)
	assert.Equal(t, time.Minute, cfg.Sweeps.ProposalExpiry)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.Auth.Required)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CONCORD_ADDR", ":9090")
	t.Setenv("CONCORD_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CONCORD_ECOLOGY_CRITICAL", "-5")
	t.Setenv("CONCORD_SWEEP_FAUCET_EXPIRY", "10s")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, -5.0, cfg.Guardrail.EcologyCritical)
	assert.Equal(t, 10*time.Second, cfg.Sweeps.FaucetExpiry)
}

func TestValidate(t *testing.T) {
	t.Run("inverted ecology thresholds rejected", func(t *testing.T) {
		t.Setenv("CONCORD_ECOLOGY_CRITICAL", "0")
		t.Setenv("CONCORD_ECOLOGY_MODERATE", "-1")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ecology critical threshold")
	})

	t.Run("production refuses dev key when auth required", func(t *testing.T) {
		t.Setenv("CONCORD_ENV", "production")
		t.Setenv("CONCORD_AUTH_REQUIRED", "true")
		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("production refuses clock override", func(t *testing.T) {
		t.Setenv("CONCORD_ENV", "production")
		t.Setenv("CONCORD_ALLOW_CLOCK_OVERRIDE", "true")
		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CONCORD_ALLOW_CLOCK_OVERRIDE")
	})
}
