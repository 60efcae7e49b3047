package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("GENERATOR", "mock")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.CacheBackend)
	assert.Equal(t, "pixel-quest.db", cfg.SQLitePath)
	assert.Zero(t, cfg.CacheTTL)
	assert.Equal(t, "memory", cfg.SessionBackend)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 20, cfg.StoryRateLimit)
	assert.Equal(t, time.Minute, cfg.StoryRateWindow)
	assert.Equal(t, 4, cfg.ImageRateLimit)
	assert.Equal(t, time.Minute, cfg.ImageRateWindow)
	assert.Equal(t, 60*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 600*time.Millisecond, cfg.RollDelay)
	assert.Equal(t, 400*time.Millisecond, cfg.ConsumeDelay)
	assert.True(t, cfg.Illustrations)
	assert.False(t, cfg.TrustProxy)
	assert.False(t, cfg.NeedsRedis())
	assert.False(t, cfg.IsProduction())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("CACHE_TTL", "72h")
	t.Setenv("STORY_RATE_LIMIT", "5")
	t.Setenv("ROLL_DELAY", "0s")
	t.Setenv("ILLUSTRATIONS", "false")
	t.Setenv("TRUST_PROXY", "true")
	t.Setenv("GEMINI_API_KEY", "secret")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.Equal(t, 72*time.Hour, cfg.CacheTTL)
	assert.Equal(t, 5, cfg.StoryRateLimit)
	assert.Zero(t, cfg.RollDelay)
	assert.False(t, cfg.Illustrations)
	assert.True(t, cfg.TrustProxy)
	assert.Equal(t, "gemini", cfg.Generator)
	assert.True(t, cfg.NeedsRedis())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing api key", map[string]string{}, "GEMINI_API_KEY"},
		{"unknown cache backend", map[string]string{"GENERATOR": "mock", "CACHE_BACKEND": "postgres"}, "CACHE_BACKEND"},
		{"unknown generator", map[string]string{"GENERATOR": "llama"}, "GENERATOR"},
		{"zero limit", map[string]string{"GENERATOR": "mock", "IMAGE_RATE_LIMIT": "0"}, "rate limits"},
		{"negative delay", map[string]string{"GENERATOR": "mock", "CONSUME_DELAY": "-1s"}, "delays"},
		{"bad duration", map[string]string{"GENERATOR": "mock", "STORY_RATE_WINDOW": "soon"}, "parse env"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}
