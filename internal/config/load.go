package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for all environment variables read by Load,
// e.g. PRESSWORK_DATABASE_URL maps to the "database.url" key.
const envPrefix = "PRESSWORK"

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file; absence is not an error.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys through Unmarshal,
	// so bind every known key explicitly.
	for _, key := range []string{
		"server.log_level",
		"server.log_format",
		"database.url",
		"database.max_open_conns",
		"database.max_idle_conns",
		"queue.batch_size",
		"queue.max_attempts",
		"queue.retry_delay",
		"queue.job_timeout",
		"queue.workers",
		"queue.stuck_threshold",
		"health.probe_timeout",
		"health.stuck_warning",
		"health.failure_warning",
		"health.success_rate_warning",
		"llm.gemini_api_key",
		"llm.model_name",
		"llm.max_retries",
		"llm.retry_delay_seconds",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults establishes default values for all optional settings. Only
// database.url has no default and must be supplied.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)

	v.SetDefault("queue.batch_size", 50)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.retry_delay", 5*time.Minute)
	v.SetDefault("queue.job_timeout", 2*time.Minute)
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.stuck_threshold", time.Hour)

	v.SetDefault("health.probe_timeout", 10*time.Second)
	v.SetDefault("health.stuck_warning", 10)
	v.SetDefault("health.failure_warning", 50)
	v.SetDefault("health.success_rate_warning", 0.8)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
}

// validate checks the loaded configuration against the struct-level
// validation tags and returns a readable error listing each violation.
func validate(cfg *Config) error {
	validate := validator.New()

	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, fieldErr := range validationErrors {
			messages = append(messages, fmt.Sprintf(
				"%s failed validation: %s",
				fieldErr.Namespace(),
				fieldErr.Tag(),
			))
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
	}

	return fmt.Errorf("configuration validation failed: %w", err)
}
