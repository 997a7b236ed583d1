package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakTokens = []string{
	"change-me", "dev-token-change-me", "secret", "admin", "password", "token",
}

type Config struct {
	Port                int    `env:"PORT" envDefault:"8080"`
	DatabaseURL         string `env:"DATABASE_URL,required"`
	RedisURL            string `env:"REDIS_URL,required"`
	APIToken            string `env:"API_TOKEN,required"`
	StaleSessionMinutes int    `env:"STALE_SESSION_MINUTES" envDefault:"30"`
	TurnRateLimitPerMin int    `env:"TURN_RATE_LIMIT_PER_MIN" envDefault:"60"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
}

// StaleWindow is how long a session may sit without activity before the
// sweeper abandons it.
func (c *Config) StaleWindow() time.Duration {
	return time.Duration(c.StaleSessionMinutes) * time.Minute
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.StaleSessionMinutes <= 0 {
		return fmt.Errorf("STALE_SESSION_MINUTES must be positive")
	}

	if isProduction {
		if len(c.APIToken) < 32 {
			return fmt.Errorf("API_TOKEN must be at least 32 characters in production (generate with: openssl rand -hex 32)")
		}
		for _, weak := range knownWeakTokens {
			if c.APIToken == weak {
				return fmt.Errorf("API_TOKEN is a known weak default; set a strong token in production")
			}
		}
		if c.RedisURL != "" && len(c.RedisURL) >= 8 && c.RedisURL[:8] == "redis://" {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
