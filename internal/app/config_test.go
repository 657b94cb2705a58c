package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 183, cfg.RetentionDays)
	assert.Equal(t, 5, cfg.MinCohort)
	assert.Equal(t, 1, cfg.PrivacyNoticeVersion)
	assert.True(t, cfg.ReaperInProcess)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	base := func() Config {
		return Config{JWTSecret: "s", RetentionDays: 183, MinCohort: 5, PrivacyNoticeVersion: 1, ReaperInterval: 1}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero retention", func(c *Config) { c.RetentionDays = 0 }},
		{"zero cohort", func(c *Config) { c.MinCohort = 0 }},
		{"missing notice version", func(c *Config) { c.PrivacyNoticeVersion = 0 }},
		{"zero reaper interval", func(c *Config) { c.ReaperInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())
}
