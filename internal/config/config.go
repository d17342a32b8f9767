package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/MikeSquared-Agency/parley/internal/chat"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Port        int    `env:"PARLEY_PORT" envDefault:"8780"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"PARLEY_DB_MAX_CONNS" envDefault:"10"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Provider        string `env:"PARLEY_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey    string `env:"GOOGLE_GENERATIVE_AI_API_KEY"`
	GeminiModel     string `env:"PARLEY_GEMINI_MODEL" envDefault:"gemini-2.0-flash"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `env:"PARLEY_ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-20250514"`
	MaxTokens       int    `env:"PARLEY_MAX_TOKENS" envDefault:"4096"`

	MaxRequestDuration time.Duration `env:"PARLEY_MAX_REQUEST_DURATION" envDefault:"5m"`
	HistoryLimit       int           `env:"PARLEY_HISTORY_LIMIT" envDefault:"20"`

	NatsURL   string `env:"NATS_URL"`
	NatsToken string `env:"NATS_TOKEN"`

	SessionTTL    time.Duration `env:"PARLEY_SESSION_TTL" envDefault:"720h"`
	RatePerMinute int           `env:"PARLEY_RATE_PER_MINUTE" envDefault:"20"`
	RateBurst     int           `env:"PARLEY_RATE_BURST" envDefault:"5"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	switch c.Provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GOOGLE_GENERATIVE_AI_API_KEY is required for the gemini provider"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY is required for the anthropic provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown PARLEY_PROVIDER %q", c.Provider))
	}
	if c.MaxRequestDuration <= 0 {
		errs = append(errs, errors.New("PARLEY_MAX_REQUEST_DURATION must be positive"))
	}
	if c.HistoryLimit <= 0 || c.HistoryLimit > chat.MaxHistory {
		errs = append(errs, fmt.Errorf("PARLEY_HISTORY_LIMIT must be between 1 and %d", chat.MaxHistory))
	}
	if c.RatePerMinute <= 0 || c.RateBurst <= 0 {
		errs = append(errs, errors.New("PARLEY_RATE_PER_MINUTE and PARLEY_RATE_BURST must be positive"))
	}
	return errors.Join(errs...)
}
