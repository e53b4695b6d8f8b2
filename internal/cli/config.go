package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is read from AMP_* environment variables.
type Config struct {
	APIURL    string `env:"AMP_API_URL" envDefault:"http://localhost:8080"`
	SessionDB string `env:"AMP_SESSION_DB" envDefault:"./amp-session.db"`
}

// LoadConfig parses Config from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}
