package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Health   HealthConfig   `mapstructure:"health"   validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	LogLevel  string `mapstructure:"log_level"  validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json console"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL          string `mapstructure:"url"            validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// QueueConfig contains dispatcher and job store settings.
type QueueConfig struct {
	// BatchSize caps how many jobs one dispatcher tick reserves.
	BatchSize int `mapstructure:"batch_size" validate:"gte=1"`

	// MaxAttempts bounds reservation attempts before a job is archived.
	MaxAttempts int `mapstructure:"max_attempts" validate:"gte=1"`

	// RetryDelay defers a failed job before its next attempt. The delay is
	// fixed; the dispatcher does not apply exponential backoff.
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"gt=0"`

	// JobTimeout bounds a single handler execution.
	JobTimeout time.Duration `mapstructure:"job_timeout" validate:"gt=0"`

	// Workers is the number of goroutines executing jobs within one batch.
	Workers int `mapstructure:"workers" validate:"gte=1"`

	// StuckThreshold is the reservation age past which a job counts as
	// stuck in queue stats.
	StuckThreshold time.Duration `mapstructure:"stuck_threshold" validate:"gt=0"`
}

// HealthConfig contains health aggregator settings.
type HealthConfig struct {
	// ProbeTimeout bounds each external API reachability probe.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" validate:"gt=0"`

	// Providers maps provider names to the URLs probed for reachability.
	Providers map[string]string `mapstructure:"providers"`

	// StuckWarning is the stuck-job count above which a warning is raised.
	StuckWarning int `mapstructure:"stuck_warning" validate:"gte=1"`

	// FailureWarning is the 24h archived-failure count above which a
	// warning is raised.
	FailureWarning int `mapstructure:"failure_warning" validate:"gte=1"`

	// SuccessRateWarning is the 24h content success rate (0..1) below
	// which a warning is raised.
	SuccessRateWarning float64 `mapstructure:"success_rate_warning" validate:"gt=0,lte=1"`
}

// LLMConfig contains all LLM integration related settings. Optional: when no
// API key is configured the content-generation handler is not registered.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name"`

	// MaxRetries bounds API-level retries inside a single generation call.
	// These are provider retries, distinct from queue-level job attempts.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// RetryDelaySeconds is the base delay for API-level retry backoff.
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"gte=1"`
}
