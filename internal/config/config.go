package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"production"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Empty DatabaseURL selects in-memory stores.
	DatabaseURL string `env:"DATABASE_URL"`
	// Empty RedisURL selects the in-process channel and process-local locks.
	RedisURL         string        `env:"REDIS_URL"`
	TranscriptStream string        `env:"TRANSCRIPT_STREAM" envDefault:"gd-transcripts"`
	TranscriptGroup  string        `env:"TRANSCRIPT_GROUP" envDefault:"gd-group"`
	SessionLockTTL   time.Duration `env:"SESSION_LOCK_TTL" envDefault:"30s"`

	JWTSecret   string   `env:"JWT_SECRET"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	AIURL   string `env:"AI_API_URL" envDefault:"https://models.inference.ai.azure.com/chat/completions"`
	AIToken string `env:"AI_API_TOKEN"`
	AIModel string `env:"AI_MODEL" envDefault:"gpt-4o"`

	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"60s"`
	SendBuffer    int           `env:"WS_SEND_BUFFER" envDefault:"256"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Env {
	case "development", "production", "test":
	default:
		return fmt.Errorf("ENV must be development, production or test, got %q", c.Env)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if port, err := strconv.Atoi(c.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("PORT is invalid: %q", c.Port)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL is invalid: %w", err)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.SessionLockTTL <= 0 {
		return fmt.Errorf("SESSION_LOCK_TTL must be positive, got %s", c.SessionLockTTL)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
