package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("SCHEDULER_CAPACITY")
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Scheduler.Capacity)
	assert.NotEmpty(t, cfg.ControlPlane.BaseURL)
	assert.Equal(t, "memory", cfg.Ledger.Backend)
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("SCHEDULER_CAPACITY", "4096")
	defer os.Unsetenv("SCHEDULER_CAPACITY")
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.Scheduler.Capacity)
}

func TestValidateFails(t *testing.T) {
	cfg := defaultConfig()
	cfg.Scheduler.Capacity = 0
	assert.Error(t, Validate(cfg))

	cfg = defaultConfig()
	cfg.Download.PollInterval = 0
	assert.Error(t, Validate(cfg))

	cfg = defaultConfig()
	cfg.Ledger.Backend = "s3"
	assert.Error(t, Validate(cfg))

	cfg = defaultConfig()
	cfg.Ledger.Backend = "redis"
	cfg.Ledger.RedisAddr = ""
	assert.Error(t, Validate(cfg))

	cfg = defaultConfig()
	cfg.Observability.MetricsPort = 70000
	assert.Error(t, Validate(cfg))
}

func TestDefaultConfigPasses(t *testing.T) {
	assert.NoError(t, Validate(defaultConfig()))
}
