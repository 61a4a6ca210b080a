package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	JWT        JWTConfig
	S3         S3Config
	Log        LogConfig
	Completion CompletionConfig
	Analysis   AnalysisConfig
	CORS       CORSConfig
	Email      EmailConfig
	RateLimit  RateLimitConfig
	Upload     UploadConfig
}

// EmailConfig holds email delivery settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	FrontendURL string `mapstructure:"frontend_url"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig throttles analysis requests per user.
type RateLimitConfig struct {
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	Burst             int     `mapstructure:"burst"`
}

// UploadConfig bounds submitted documents.
type UploadConfig struct {
	MaxSizeMB int64 `mapstructure:"max_size_mb"`
}

// MaxBytes returns the upload ceiling in bytes.
func (u UploadConfig) MaxBytes() int64 {
	return u.MaxSizeMB << 20
}

// CompletionProviderConfig holds settings for a single text-generation provider.
type CompletionProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	BaseURL      string `mapstructure:"base_url"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// CompletionConfig holds text-generation provider settings with multi-provider fallback.
type CompletionConfig struct {
	// Legacy flat fields (single provider)
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	BaseURL      string `mapstructure:"base_url"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`

	// Multi-provider fields
	Primary   CompletionProviderConfig `mapstructure:"primary"`
	Secondary CompletionProviderConfig `mapstructure:"secondary"`
	Tertiary  CompletionProviderConfig `mapstructure:"tertiary"`
}

// PrimaryConfig returns the primary provider config, falling back to legacy flat fields.
func (c *CompletionConfig) PrimaryConfig() *CompletionProviderConfig {
	if c.Primary.Provider != "" {
		return &c.Primary
	}
	return &CompletionProviderConfig{
		Provider:     c.Provider,
		APIKey:       c.APIKey,
		DefaultModel: c.DefaultModel,
		BaseURL:      c.BaseURL,
		TimeoutSecs:  c.TimeoutSecs,
	}
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (c *CompletionConfig) SecondaryConfig() *CompletionProviderConfig {
	if c.Secondary.Provider != "" {
		return &c.Secondary
	}
	return nil
}

// TertiaryConfig returns the tertiary provider config, or nil if not configured.
func (c *CompletionConfig) TertiaryConfig() *CompletionProviderConfig {
	if c.Tertiary.Provider != "" {
		return &c.Tertiary
	}
	return nil
}

// Configured reports whether the primary provider has credentials.
func (c *CompletionConfig) Configured() bool {
	p := c.PrimaryConfig()
	return p.Provider != "" && p.APIKey != ""
}

// AnalysisConfig tunes the summarization pipeline.
type AnalysisConfig struct {
	ChunkTokens          int           `mapstructure:"chunk_tokens"`
	CondenseThreshold    int           `mapstructure:"condense_threshold"`
	CondenseChunkTokens  int           `mapstructure:"condense_chunk_tokens"`
	MaxAttempts          int           `mapstructure:"max_attempts"`
	MaxChunkAttempts     int           `mapstructure:"max_chunk_attempts"`
	BaseDelay            time.Duration `mapstructure:"base_delay"`
	RateLimitCooldown    time.Duration `mapstructure:"rate_limit_cooldown"`
	PacingDelay          time.Duration `mapstructure:"pacing_delay"`
	ChunkRetryDelay      time.Duration `mapstructure:"chunk_retry_delay"`
	CallTimeout          time.Duration `mapstructure:"call_timeout"`
	AnalysisTimeout      time.Duration `mapstructure:"analysis_timeout"`
	PingInterval         time.Duration `mapstructure:"ping_interval"`
	RequestBudget        time.Duration `mapstructure:"request_budget"`
	TokenCounter         string        `mapstructure:"token_counter"`
	SummaryOutputTokens  int           `mapstructure:"summary_output_tokens"`
	AnalysisOutputTokens int           `mapstructure:"analysis_output_tokens"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds JWT signing and expiry settings.
type JWTConfig struct {
	Secret             string        `mapstructure:"secret"`
	AccessTokenExpiry  time.Duration `mapstructure:"access_expiry"`
	RefreshTokenExpiry time.Duration `mapstructure:"refresh_expiry"`
	Issuer             string        `mapstructure:"issuer"`
}

// S3Config holds settings for the original-upload archive.
type S3Config struct {
	Enabled       bool   `mapstructure:"enabled"`
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	KeyPrefix     string `mapstructure:"key_prefix"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var providerTiers = []string{"primary", "secondary", "tertiary"}

var providerFields = []string{"provider", "api_key", "default_model", "base_url", "timeout_secs"}

// Load reads configuration from environment variables with the CLAUSEWISE_ prefix.
// A .env file in the working directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CLAUSEWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults. Streams outlive the usual write timeout, so it is generous.
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "15m")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "clausewise")
	v.SetDefault("db.password", "clausewise_secret")
	v.SetDefault("db.name", "clausewise_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", "15m")
	v.SetDefault("jwt.refresh_expiry", "168h")
	v.SetDefault("jwt.issuer", "clausewise")

	// S3 defaults
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "clausewise-contracts")
	v.SetDefault("s3.key_prefix", "originals")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "us-east-1")
	v.SetDefault("email.from_address", "noreply@clausewise.app")
	v.SetDefault("email.from_name", "Clausewise")
	v.SetDefault("email.frontend_url", "http://localhost:3000")

	// Rate limit defaults
	v.SetDefault("rate_limit.requests_per_minute", 6)
	v.SetDefault("rate_limit.burst", 3)

	// Upload defaults
	v.SetDefault("upload.max_size_mb", 100)

	// Completion defaults (legacy flat)
	v.SetDefault("completion.provider", "openai")
	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.default_model", "gpt-4o")
	v.SetDefault("completion.base_url", "")
	v.SetDefault("completion.timeout_secs", 120)
	for _, tier := range providerTiers {
		v.SetDefault("completion."+tier+".provider", "")
		v.SetDefault("completion."+tier+".api_key", "")
		v.SetDefault("completion."+tier+".default_model", "")
		v.SetDefault("completion."+tier+".base_url", "")
		v.SetDefault("completion."+tier+".timeout_secs", 120)
	}

	// Analysis pipeline defaults
	v.SetDefault("analysis.chunk_tokens", 20000)
	v.SetDefault("analysis.condense_threshold", 60000)
	v.SetDefault("analysis.condense_chunk_tokens", 20000)
	v.SetDefault("analysis.max_attempts", 3)
	v.SetDefault("analysis.max_chunk_attempts", 5)
	v.SetDefault("analysis.base_delay", "1s")
	v.SetDefault("analysis.rate_limit_cooldown", "10s")
	v.SetDefault("analysis.pacing_delay", "2s")
	v.SetDefault("analysis.chunk_retry_delay", "2s")
	v.SetDefault("analysis.call_timeout", "60s")
	v.SetDefault("analysis.analysis_timeout", "60s")
	v.SetDefault("analysis.ping_interval", "5s")
	v.SetDefault("analysis.request_budget", "10m")
	v.SetDefault("analysis.token_counter", "chars")
	v.SetDefault("analysis.summary_output_tokens", 2000)
	v.SetDefault("analysis.analysis_output_tokens", 4000)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                     "CLAUSEWISE_SERVER_PORT",
		"server.read_timeout":             "CLAUSEWISE_SERVER_READ_TIMEOUT",
		"server.write_timeout":            "CLAUSEWISE_SERVER_WRITE_TIMEOUT",
		"server.environment":              "CLAUSEWISE_SERVER_ENVIRONMENT",
		"db.host":                         "CLAUSEWISE_DB_HOST",
		"db.port":                         "CLAUSEWISE_DB_PORT",
		"db.user":                         "CLAUSEWISE_DB_USER",
		"db.password":                     "CLAUSEWISE_DB_PASSWORD",
		"db.name":                         "CLAUSEWISE_DB_NAME",
		"db.sslmode":                      "CLAUSEWISE_DB_SSLMODE",
		"db.max_open":                     "CLAUSEWISE_DB_MAX_OPEN",
		"db.max_idle":                     "CLAUSEWISE_DB_MAX_IDLE",
		"jwt.secret":                      "CLAUSEWISE_JWT_SECRET",
		"jwt.access_expiry":               "CLAUSEWISE_JWT_ACCESS_EXPIRY",
		"jwt.refresh_expiry":              "CLAUSEWISE_JWT_REFRESH_EXPIRY",
		"jwt.issuer":                      "CLAUSEWISE_JWT_ISSUER",
		"s3.enabled":                      "CLAUSEWISE_S3_ENABLED",
		"s3.region":                       "CLAUSEWISE_S3_REGION",
		"s3.bucket":                       "CLAUSEWISE_S3_BUCKET",
		"s3.key_prefix":                   "CLAUSEWISE_S3_KEY_PREFIX",
		"s3.endpoint":                     "CLAUSEWISE_S3_ENDPOINT",
		"s3.access_key":                   "CLAUSEWISE_S3_ACCESS_KEY",
		"s3.secret_key":                   "CLAUSEWISE_S3_SECRET_KEY",
		"s3.presign_expiry":               "CLAUSEWISE_S3_PRESIGN_EXPIRY",
		"log.level":                       "CLAUSEWISE_LOG_LEVEL",
		"log.format":                      "CLAUSEWISE_LOG_FORMAT",
		"cors.allowed_origins":            "CLAUSEWISE_CORS_ALLOWED_ORIGINS",
		"email.provider":                  "CLAUSEWISE_EMAIL_PROVIDER",
		"email.region":                    "CLAUSEWISE_EMAIL_REGION",
		"email.from_address":              "CLAUSEWISE_EMAIL_FROM_ADDRESS",
		"email.from_name":                 "CLAUSEWISE_EMAIL_FROM_NAME",
		"email.frontend_url":              "CLAUSEWISE_EMAIL_FRONTEND_URL",
		"rate_limit.requests_per_minute":  "CLAUSEWISE_RATE_LIMIT_REQUESTS_PER_MINUTE",
		"rate_limit.burst":                "CLAUSEWISE_RATE_LIMIT_BURST",
		"upload.max_size_mb":              "CLAUSEWISE_UPLOAD_MAX_SIZE_MB",
		"completion.provider":             "CLAUSEWISE_COMPLETION_PROVIDER",
		"completion.api_key":              "CLAUSEWISE_COMPLETION_API_KEY",
		"completion.default_model":        "CLAUSEWISE_COMPLETION_DEFAULT_MODEL",
		"completion.base_url":             "CLAUSEWISE_COMPLETION_BASE_URL",
		"completion.timeout_secs":         "CLAUSEWISE_COMPLETION_TIMEOUT_SECS",
		"analysis.chunk_tokens":           "CLAUSEWISE_ANALYSIS_CHUNK_TOKENS",
		"analysis.condense_threshold":     "CLAUSEWISE_ANALYSIS_CONDENSE_THRESHOLD",
		"analysis.condense_chunk_tokens":  "CLAUSEWISE_ANALYSIS_CONDENSE_CHUNK_TOKENS",
		"analysis.max_attempts":           "CLAUSEWISE_ANALYSIS_MAX_ATTEMPTS",
		"analysis.max_chunk_attempts":     "CLAUSEWISE_ANALYSIS_MAX_CHUNK_ATTEMPTS",
		"analysis.base_delay":             "CLAUSEWISE_ANALYSIS_BASE_DELAY",
		"analysis.rate_limit_cooldown":    "CLAUSEWISE_ANALYSIS_RATE_LIMIT_COOLDOWN",
		"analysis.pacing_delay":           "CLAUSEWISE_ANALYSIS_PACING_DELAY",
		"analysis.chunk_retry_delay":      "CLAUSEWISE_ANALYSIS_CHUNK_RETRY_DELAY",
		"analysis.call_timeout":           "CLAUSEWISE_ANALYSIS_CALL_TIMEOUT",
		"analysis.analysis_timeout":       "CLAUSEWISE_ANALYSIS_ANALYSIS_TIMEOUT",
		"analysis.ping_interval":          "CLAUSEWISE_ANALYSIS_PING_INTERVAL",
		"analysis.request_budget":         "CLAUSEWISE_ANALYSIS_REQUEST_BUDGET",
		"analysis.token_counter":          "CLAUSEWISE_ANALYSIS_TOKEN_COUNTER",
		"analysis.summary_output_tokens":  "CLAUSEWISE_ANALYSIS_SUMMARY_OUTPUT_TOKENS",
		"analysis.analysis_output_tokens": "CLAUSEWISE_ANALYSIS_ANALYSIS_OUTPUT_TOKENS",
	}
	for _, tier := range providerTiers {
		for _, field := range providerFields {
			key := "completion." + tier + "." + field
			envBindings[key] = "CLAUSEWISE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		}
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if CLAUSEWISE_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CLAUSEWISE_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret:             v.GetString("jwt.secret"),
		AccessTokenExpiry:  v.GetDuration("jwt.access_expiry"),
		RefreshTokenExpiry: v.GetDuration("jwt.refresh_expiry"),
		Issuer:             v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Enabled:       v.GetBool("s3.enabled"),
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		KeyPrefix:     v.GetString("s3.key_prefix"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	cfg.Completion = CompletionConfig{
		Provider:     v.GetString("completion.provider"),
		APIKey:       v.GetString("completion.api_key"),
		DefaultModel: v.GetString("completion.default_model"),
		BaseURL:      v.GetString("completion.base_url"),
		TimeoutSecs:  v.GetInt("completion.timeout_secs"),
		Primary:      providerConfig(v, "primary"),
		Secondary:    providerConfig(v, "secondary"),
		Tertiary:     providerConfig(v, "tertiary"),
	}

	cfg.Analysis = AnalysisConfig{
		ChunkTokens:          v.GetInt("analysis.chunk_tokens"),
		CondenseThreshold:    v.GetInt("analysis.condense_threshold"),
		CondenseChunkTokens:  v.GetInt("analysis.condense_chunk_tokens"),
		MaxAttempts:          v.GetInt("analysis.max_attempts"),
		MaxChunkAttempts:     v.GetInt("analysis.max_chunk_attempts"),
		BaseDelay:            v.GetDuration("analysis.base_delay"),
		RateLimitCooldown:    v.GetDuration("analysis.rate_limit_cooldown"),
		PacingDelay:          v.GetDuration("analysis.pacing_delay"),
		ChunkRetryDelay:      v.GetDuration("analysis.chunk_retry_delay"),
		CallTimeout:          v.GetDuration("analysis.call_timeout"),
		AnalysisTimeout:      v.GetDuration("analysis.analysis_timeout"),
		PingInterval:         v.GetDuration("analysis.ping_interval"),
		RequestBudget:        v.GetDuration("analysis.request_budget"),
		TokenCounter:         v.GetString("analysis.token_counter"),
		SummaryOutputTokens:  v.GetInt("analysis.summary_output_tokens"),
		AnalysisOutputTokens: v.GetInt("analysis.analysis_output_tokens"),
	}

	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		FrontendURL: v.GetString("email.frontend_url"),
	}

	cfg.RateLimit = RateLimitConfig{
		RequestsPerMinute: v.GetFloat64("rate_limit.requests_per_minute"),
		Burst:             v.GetInt("rate_limit.burst"),
	}

	cfg.Upload = UploadConfig{
		MaxSizeMB: v.GetInt64("upload.max_size_mb"),
	}

	return cfg, nil
}

func providerConfig(v *viper.Viper, tier string) CompletionProviderConfig {
	prefix := "completion." + tier + "."
	return CompletionProviderConfig{
		Provider:     v.GetString(prefix + "provider"),
		APIKey:       v.GetString(prefix + "api_key"),
		DefaultModel: v.GetString(prefix + "default_model"),
		BaseURL:      v.GetString(prefix + "base_url"),
		TimeoutSecs:  v.GetInt(prefix + "timeout_secs"),
	}
}
