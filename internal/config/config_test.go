package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:            "test",
		Port:           "8080",
		LogLevel:       "info",
		JWTSecret:      "secret",
		SweepInterval:  time.Minute,
		SessionLockTTL: time.Second,
		SendBuffer:     16,
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Invalid(t *testing.T) {
	cases := map[string]func(*Config){
		"env":      func(c *Config) { c.Env = "staging" },
		"secret":   func(c *Config) { c.JWTSecret = "" },
		"port":     func(c *Config) { c.Port = "http" },
		"level":    func(c *Config) { c.LogLevel = "loud" },
		"interval": func(c *Config) { c.SweepInterval = 0 },
		"ttl":      func(c *Config) { c.SessionLockTTL = -time.Second },
		"buffer":   func(c *Config) { c.SendBuffer = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("SWEEP_INTERVAL", "15s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	assert.Equal(t, "gd-transcripts", cfg.TranscriptStream)
	assert.Equal(t, "gd-group", cfg.TranscriptGroup)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}
