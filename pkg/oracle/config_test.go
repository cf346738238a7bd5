package oracle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ValidateConfig(cfg))
	assert.Equal(t, 1500.0, cfg.BaselineRating)
	assert.Equal(t, 20.0, cfg.KFactor)
	assert.Equal(t, 5, cfg.FormWindow)
	assert.Equal(t, 3, cfg.MinFormHistory)
	assert.Equal(t, 7.0, cfg.DefaultRestDays)
}

func TestValidateConfigRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero k", func(c *Config) { c.KFactor = 0 }},
		{"zero scale", func(c *Config) { c.RatingScale = 0 }},
		{"negative rest", func(c *Config) { c.DefaultRestDays = -1 }},
		{"empty window", func(c *Config) { c.FormWindow = 0 }},
		{"history above window", func(c *Config) { c.MinFormHistory = 6 }},
		{"kelly above one", func(c *Config) { c.KellyMultiplier = 1.5 }},
		{"kelly zero", func(c *Config) { c.KellyMultiplier = 0 }},
		{"epsilon", func(c *Config) { c.ProbabilityEpsilon = 0 }},
		{"driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"season month", func(c *Config) { c.SeasonStartMonth = 13 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.True(t, errors.Is(ValidateConfig(cfg), ErrInvalidConfig))
		})
	}
	assert.True(t, errors.Is(ValidateConfig(nil), ErrInvalidConfig))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ELO_K_FACTOR", "32")
	t.Setenv("ORACLE_DB_DRIVER", "postgres")
	t.Setenv("ORACLE_DB_DSN", "postgres://localhost/oracle")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("ORACLE_KELLY_MULTIPLIER", "0.5")
	t.Setenv("ORACLE_SQUAD_FEATURES", "true")

	cfg := DefaultConfig()
	require.NoError(t, LoadConfigFromEnv(cfg))
	assert.Equal(t, 32.0, cfg.KFactor)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 0.5, cfg.KellyMultiplier)
	assert.True(t, cfg.SquadFeatures)
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfigFromEnvBadNumber(t *testing.T) {
	t.Setenv("ELO_K_FACTOR", "twenty")
	err := LoadConfigFromEnv(DefaultConfig())
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
