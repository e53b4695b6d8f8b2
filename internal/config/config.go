package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the server settings.
// It is read from the environment once at startup and treated as immutable.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`

	// Tokens
	JWTAccessSecret   string `env:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret  string `env:"JWT_REFRESH_SECRET"`
	AccessTTLSeconds  int    `env:"JWT_ACCESS_TTL_SECONDS" envDefault:"900"`
	RefreshTTLSeconds int    `env:"JWT_REFRESH_TTL_SECONDS" envDefault:"604800"`

	// Passwords
	BcryptRounds int `env:"BCRYPT_ROUNDS" envDefault:"12"`

	// Worker
	RefreshSweepInterval time.Duration `env:"REFRESH_SWEEP_INTERVAL" envDefault:"1h"`
	WorkerMetricsPort    string        `env:"WORKER_METRICS_PORT" envDefault:"9091"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:4200"`
}

// AccessTTL returns the access token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLSeconds) * time.Second
}

// RefreshTTL returns the refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLSeconds) * time.Second
}

// Load reads Config from the environment, after merging a .env file from the
// working directory if one exists. Variables already set take precedence.
// It fails when a required variable is unset or a value is out of range.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTAccessSecret == "" {
		missing = append(missing, "JWT_ACCESS_SECRET")
	}
	if cfg.JWTRefreshSecret == "" {
		missing = append(missing, "JWT_REFRESH_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.AccessTTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("JWT_ACCESS_TTL_SECONDS must be positive, got %d", c.AccessTTLSeconds))
	}
	if c.RefreshTTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("JWT_REFRESH_TTL_SECONDS must be positive, got %d", c.RefreshTTLSeconds))
	}
	if c.RefreshSweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("REFRESH_SWEEP_INTERVAL must be positive, got %s", c.RefreshSweepInterval))
	}
	return errors.Join(errs...)
}
