package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = envInt("TEST_INT_MISSING", 99)
	require.NoError(t, err)
	assert.Equal(t, 99, v)

	t.Setenv("TEST_INT_BAD", "abc")
	_, err = envInt("TEST_INT_BAD", 0)
	require.EqualError(t, err, `TEST_INT_BAD="abc" is not a valid integer`)
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	v, err := envBool("TEST_BOOL", false)
	require.NoError(t, err)
	assert.True(t, v)

	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err = envBool("TEST_BOOL_BAD", false)
	require.EqualError(t, err, `TEST_BOOL_BAD="maybe" is not a valid boolean`)
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	v, err := envDuration("TEST_DUR", 0)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, v)

	t.Setenv("TEST_DUR_BAD", "five-seconds")
	_, err = envDuration("TEST_DUR_BAD", 0)
	require.EqualError(t, err, `TEST_DUR_BAD="five-seconds" is not a valid duration`)
}

func TestEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "1e-4")
	v, err := envFloat("TEST_FLOAT", 0)
	require.NoError(t, err)
	assert.Equal(t, 1e-4, v)

	t.Setenv("TEST_FLOAT_BAD", "tiny")
	_, err = envFloat("TEST_FLOAT_BAD", 0)
	require.Error(t, err)
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "harvest.db", cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 1e-6, cfg.MassBalanceRelTol)
	assert.Equal(t, "table", cfg.DatasetFormat)
}

func TestLoadReportsEveryInvalidVar(t *testing.T) {
	t.Setenv("HARVEST_PORT", "abc")
	t.Setenv("HARVEST_CACHE_TTL", "forever")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HARVEST_PORT")
	assert.Contains(t, err.Error(), "abc")
	assert.Contains(t, err.Error(), "HARVEST_CACHE_TTL")
}

func TestValidate(t *testing.T) {
	t.Setenv("HARVEST_DATASET_FORMAT", "xlsx")
	_, err := Load()
	assert.ErrorContains(t, err, "HARVEST_DATASET_FORMAT")

	t.Setenv("HARVEST_DATASET_FORMAT", "dnrm")
	t.Setenv("HARVEST_MASS_BALANCE_REL_TOL", "0")
	_, err = Load()
	assert.ErrorContains(t, err, "HARVEST_MASS_BALANCE_REL_TOL")
}

func TestRateLimitSettings(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, 20, cfg.RateLimitBurst)

	t.Setenv("HARVEST_RATE_LIMIT_RPS", "0")
	t.Setenv("HARVEST_RATE_LIMIT_BURST", "0")
	_, err = Load()
	assert.NoError(t, err, "burst is ignored when the limiter is off")

	t.Setenv("HARVEST_RATE_LIMIT_RPS", "2.5")
	_, err = Load()
	assert.ErrorContains(t, err, "HARVEST_RATE_LIMIT_BURST")
}
