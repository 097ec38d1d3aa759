package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SUGGEST"

// requiredKeys have no default and must be bound explicitly so that
// viper's Unmarshal sees values coming only from the environment.
var requiredKeys = []string{
	"database.url",
	"auth.jwt_secret",
	"llm.gemini_api_key",
	"redis.password",
	"llm.content_template_path",
	"llm.reasoning_template_path",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("llm.breaker_failure_threshold", 5)
	v.SetDefault("llm.breaker_timeout", 30*time.Second)

	v.SetDefault("queue.name", "suggestions")
	v.SetDefault("queue.attempts", 3)
	v.SetDefault("queue.backoff_base", 2*time.Second)
	v.SetDefault("queue.remove_on_complete", 100)
	v.SetDefault("queue.remove_on_fail", 500)
	v.SetDefault("queue.worker_enabled", true)
	v.SetDefault("queue.worker_count", 2)
	v.SetDefault("queue.poll_interval", time.Second)
	v.SetDefault("queue.lease_duration", 5*time.Minute)
	v.SetDefault("queue.max_stalled_count", 1)
	v.SetDefault("queue.stalled_check_interval", time.Minute)
	v.SetDefault("queue.job_timeout", 2*time.Minute)

	v.SetDefault("dispatcher.enabled", true)
	v.SetDefault("dispatcher.daily_schedule", "0 0 * * *")
	v.SetDefault("dispatcher.weekly_schedule", "0 0 * * 0")
	v.SetDefault("dispatcher.timezone", "UTC")
	v.SetDefault("dispatcher.page_size", 100)
	v.SetDefault("dispatcher.page_delay", 2000*time.Millisecond)
	v.SetDefault("dispatcher.lock_ttl", 30*time.Minute)
	v.SetDefault("dispatcher.max_consecutive_page_failures", 3)

	v.SetDefault("suggestions.per_user", 6)
	v.SetDefault("suggestions.daily_limit", 10)
	v.SetDefault("suggestions.retention_days", 7)
	v.SetDefault("suggestions.weekly_cleanup_days", 30)
	v.SetDefault("suggestions.rate_limit_per_minute", 60)
}

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	configFile := os.Getenv(EnvPrefix + "_CONFIG_FILE")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range requiredKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

// Location resolves the dispatcher timezone. Load has already validated it.
func (c DispatcherConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
