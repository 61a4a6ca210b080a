package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clausewise/internal/config"
)

func TestCompletionConfig_PrimaryConfig_LegacyFallback(t *testing.T) {
	cfg := config.CompletionConfig{
		Provider:     "openai",
		APIKey:       "sk-legacy",
		DefaultModel: "gpt-4o",
		BaseURL:      "https://proxy.internal/v1",
		TimeoutSecs:  30,
	}

	primary := cfg.PrimaryConfig()

	assert.Equal(t, "openai", primary.Provider)
	assert.Equal(t, "sk-legacy", primary.APIKey)
	assert.Equal(t, "gpt-4o", primary.DefaultModel)
	assert.Equal(t, "https://proxy.internal/v1", primary.BaseURL)
	assert.Equal(t, 30, primary.TimeoutSecs)
	assert.True(t, cfg.Configured())
}

func TestCompletionConfig_PrimaryConfig_ExplicitPrimary(t *testing.T) {
	cfg := config.CompletionConfig{
		Provider: "legacy-should-be-ignored",
		Primary: config.CompletionProviderConfig{
			Provider:     "claude",
			APIKey:       "sk-primary",
			DefaultModel: "claude-sonnet-4-20250514",
		},
	}

	primary := cfg.PrimaryConfig()

	assert.Equal(t, "claude", primary.Provider)
	assert.Equal(t, "sk-primary", primary.APIKey)
}

func TestCompletionConfig_SecondaryAndTertiary(t *testing.T) {
	cfg := config.CompletionConfig{Provider: "openai", APIKey: "k"}
	assert.Nil(t, cfg.SecondaryConfig())
	assert.Nil(t, cfg.TertiaryConfig())

	cfg.Secondary = config.CompletionProviderConfig{Provider: "gemini", APIKey: "g"}
	cfg.Tertiary = config.CompletionProviderConfig{Provider: "claude", APIKey: "c"}
	require.NotNil(t, cfg.SecondaryConfig())
	require.NotNil(t, cfg.TertiaryConfig())
	assert.Equal(t, "gemini", cfg.SecondaryConfig().Provider)
	assert.Equal(t, "claude", cfg.TertiaryConfig().Provider)
}

func TestCompletionConfig_NotConfiguredWithoutKey(t *testing.T) {
	cfg := config.CompletionConfig{Provider: "openai"}
	assert.False(t, cfg.Configured())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 20000, cfg.Analysis.ChunkTokens)
	assert.Equal(t, 60000, cfg.Analysis.CondenseThreshold)
	assert.Equal(t, 3, cfg.Analysis.MaxAttempts)
	assert.Equal(t, 5, cfg.Analysis.MaxChunkAttempts)
	assert.Equal(t, time.Second, cfg.Analysis.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Analysis.RateLimitCooldown)
	assert.Equal(t, 5*time.Second, cfg.Analysis.PingInterval)
	assert.Equal(t, 60*time.Second, cfg.Analysis.AnalysisTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Analysis.RequestBudget)
	assert.Equal(t, "chars", cfg.Analysis.TokenCounter)
	assert.Equal(t, int64(100), cfg.Upload.MaxSizeMB)
	assert.Equal(t, int64(100<<20), cfg.Upload.MaxBytes())
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CLAUSEWISE_ANALYSIS_CHUNK_TOKENS", "15000")
	t.Setenv("CLAUSEWISE_ANALYSIS_PACING_DELAY", "3s")
	t.Setenv("CLAUSEWISE_COMPLETION_SECONDARY_PROVIDER", "gemini")
	t.Setenv("CLAUSEWISE_COMPLETION_SECONDARY_API_KEY", "g-key")
	t.Setenv("CLAUSEWISE_CORS_ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 15000, cfg.Analysis.ChunkTokens)
	assert.Equal(t, 3*time.Second, cfg.Analysis.PacingDelay)
	require.NotNil(t, cfg.Completion.SecondaryConfig())
	assert.Equal(t, "g-key", cfg.Completion.SecondaryConfig().APIKey)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_PortOverride(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Port)

	t.Setenv("CLAUSEWISE_SERVER_PORT", ":7070")
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Port)
}

func TestDBConfig_DSN(t *testing.T) {
	db := config.DBConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "n", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", db.DSN())
}
