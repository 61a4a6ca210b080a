package summarizer

import (
	"time"

	"clausewise/internal/config"
	"clausewise/internal/retry"
	"clausewise/internal/tokens"
)

// Options tunes one Orchestrator. Zero sizes, timeouts and token limits take
// the DefaultOptions value; a zero pacing or chunk retry delay disables the wait.
type Options struct {
	ChunkTokens         int
	CondenseThreshold   int
	CondenseChunkTokens int

	// MaxChunkAttempts bounds how many times a chunk is handed to the retry
	// controller before the whole request fails.
	MaxChunkAttempts int
	ChunkRetryDelay  time.Duration
	// PacingDelay separates consecutive chunk and condense calls.
	PacingDelay time.Duration

	CallTimeout     time.Duration
	AnalysisTimeout time.Duration
	RequestBudget   time.Duration

	SummaryOutputTokens  int
	AnalysisOutputTokens int
	SummaryTemperature   float64
	AnalysisTemperature  float64

	Retry     retry.Policy
	Estimator tokens.Estimator
	// Sleeper drives every wait in the pipeline; tests replace it.
	Sleeper retry.Sleeper
}

// DefaultOptions returns the production tuning.
func DefaultOptions() Options {
	return Options{
		ChunkTokens:          20000,
		CondenseThreshold:    60000,
		CondenseChunkTokens:  20000,
		MaxChunkAttempts:     5,
		ChunkRetryDelay:      2 * time.Second,
		PacingDelay:          2 * time.Second,
		CallTimeout:          60 * time.Second,
		AnalysisTimeout:      60 * time.Second,
		RequestBudget:        10 * time.Minute,
		SummaryOutputTokens:  2000,
		AnalysisOutputTokens: 4000,
		SummaryTemperature:   0.3,
		AnalysisTemperature:  0.2,
		Retry:                retry.DefaultPolicy(),
		Estimator:            tokens.CharEstimator{},
		Sleeper:              retry.ContextSleep,
	}
}

// OptionsFromConfig converts the analysis configuration section.
func OptionsFromConfig(cfg *config.AnalysisConfig) (Options, error) {
	est, err := tokens.FromName(cfg.TokenCounter)
	opts := Options{
		ChunkTokens:          cfg.ChunkTokens,
		CondenseThreshold:    cfg.CondenseThreshold,
		CondenseChunkTokens:  cfg.CondenseChunkTokens,
		MaxChunkAttempts:     cfg.MaxChunkAttempts,
		ChunkRetryDelay:      cfg.ChunkRetryDelay,
		PacingDelay:          cfg.PacingDelay,
		CallTimeout:          cfg.CallTimeout,
		AnalysisTimeout:      cfg.AnalysisTimeout,
		RequestBudget:        cfg.RequestBudget,
		SummaryOutputTokens:  cfg.SummaryOutputTokens,
		AnalysisOutputTokens: cfg.AnalysisOutputTokens,
		Retry: retry.Policy{
			MaxAttempts:       cfg.MaxAttempts,
			BaseDelay:         cfg.BaseDelay,
			RateLimitCooldown: cfg.RateLimitCooldown,
		},
		Estimator: est,
	}
	return opts.withDefaults(), err
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ChunkTokens <= 0 {
		o.ChunkTokens = def.ChunkTokens
	}
	if o.CondenseThreshold <= 0 {
		o.CondenseThreshold = def.CondenseThreshold
	}
	if o.CondenseChunkTokens <= 0 {
		o.CondenseChunkTokens = def.CondenseChunkTokens
	}
	if o.MaxChunkAttempts <= 0 {
		o.MaxChunkAttempts = def.MaxChunkAttempts
	}
	if o.ChunkRetryDelay < 0 {
		o.ChunkRetryDelay = def.ChunkRetryDelay
	}
	if o.PacingDelay < 0 {
		o.PacingDelay = def.PacingDelay
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = def.CallTimeout
	}
	if o.AnalysisTimeout <= 0 {
		o.AnalysisTimeout = def.AnalysisTimeout
	}
	if o.RequestBudget <= 0 {
		o.RequestBudget = def.RequestBudget
	}
	if o.SummaryOutputTokens <= 0 {
		o.SummaryOutputTokens = def.SummaryOutputTokens
	}
	if o.AnalysisOutputTokens <= 0 {
		o.AnalysisOutputTokens = def.AnalysisOutputTokens
	}
	if o.SummaryTemperature <= 0 {
		o.SummaryTemperature = def.SummaryTemperature
	}
	if o.AnalysisTemperature <= 0 {
		o.AnalysisTemperature = def.AnalysisTemperature
	}
	if o.Estimator == nil {
		o.Estimator = def.Estimator
	}
	if o.Sleeper == nil {
		o.Sleeper = def.Sleeper
	}
	return o
}
