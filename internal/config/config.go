package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port         string     `env:"PORT" envDefault:"8080"`
	Environment  string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelName string     `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel     slog.Level `env:"-"`

	// Content cache
	CacheBackend string        `env:"CACHE_BACKEND" envDefault:"sqlite"` // sqlite, redis or memory
	SQLitePath   string        `env:"SQLITE_PATH" envDefault:"pixel-quest.db"`
	RedisURL     string        `env:"REDIS_URL" envDefault:"localhost:6379"`
	CacheTTL     time.Duration `env:"CACHE_TTL"` // redis only, zero keeps entries forever

	// Sessions
	SessionBackend string        `env:"SESSION_BACKEND" envDefault:"memory"` // memory or redis
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Rate limiting
	RateLimitBackend string        `env:"RATE_LIMIT_BACKEND" envDefault:"memory"` // memory or redis
	StoryRateLimit   int           `env:"STORY_RATE_LIMIT" envDefault:"20"`
	StoryRateWindow  time.Duration `env:"STORY_RATE_WINDOW" envDefault:"60s"`
	ImageRateLimit   int           `env:"IMAGE_RATE_LIMIT" envDefault:"4"`
	ImageRateWindow  time.Duration `env:"IMAGE_RATE_WINDOW" envDefault:"60s"`

	// Generation
	Generator         string        `env:"GENERATOR" envDefault:"gemini"` // gemini or mock
	GeminiAPIKey      string        `env:"GEMINI_API_KEY"`
	StoryModel        string        `env:"STORY_MODEL" envDefault:"gemini-2.5-flash"`
	ImageModel        string        `env:"IMAGE_MODEL" envDefault:"gemini-2.5-flash-image"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"60s"`
	RollDelay         time.Duration `env:"ROLL_DELAY" envDefault:"600ms"`
	ConsumeDelay      time.Duration `env:"CONSUME_DELAY" envDefault:"400ms"`
	Illustrations     bool          `env:"ILLUSTRATIONS" envDefault:"true"`

	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	cfg.CacheBackend = strings.ToLower(cfg.CacheBackend)
	cfg.SessionBackend = strings.ToLower(cfg.SessionBackend)
	cfg.RateLimitBackend = strings.ToLower(cfg.RateLimitBackend)
	cfg.Generator = strings.ToLower(cfg.Generator)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	oneOf := func(key, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value))
	}
	oneOf("CACHE_BACKEND", c.CacheBackend, "sqlite", "redis", "memory")
	oneOf("SESSION_BACKEND", c.SessionBackend, "memory", "redis")
	oneOf("RATE_LIMIT_BACKEND", c.RateLimitBackend, "memory", "redis")
	oneOf("GENERATOR", c.Generator, "gemini", "mock")

	if c.StoryRateLimit <= 0 || c.ImageRateLimit <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if c.StoryRateWindow <= 0 || c.ImageRateWindow <= 0 {
		errs = append(errs, errors.New("rate windows must be positive"))
	}
	if c.GenerationTimeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be positive"))
	}
	if c.RollDelay < 0 || c.ConsumeDelay < 0 {
		errs = append(errs, errors.New("delays cannot be negative"))
	}
	if c.CacheTTL < 0 || c.SessionTTL < 0 {
		errs = append(errs, errors.New("TTLs cannot be negative"))
	}
	if c.Generator == "gemini" && strings.TrimSpace(c.GeminiAPIKey) == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required when GENERATOR=gemini"))
	}
	return errors.Join(errs...)
}

// NeedsRedis reports whether any backend is Redis.
func (c *Config) NeedsRedis() bool {
	return c.CacheBackend == "redis" || c.SessionBackend == "redis" || c.RateLimitBackend == "redis"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
