package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"      validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"    validate:"required"`
	Redis       RedisConfig       `mapstructure:"redis"       validate:"required"`
	Auth        AuthConfig        `mapstructure:"auth"        validate:"required"`
	LLM         LLMConfig         `mapstructure:"llm"         validate:"required"`
	Queue       QueueConfig       `mapstructure:"queue"       validate:"required"`
	Dispatcher  DispatcherConfig  `mapstructure:"dispatcher"  validate:"required"`
	Suggestions SuggestionsConfig `mapstructure:"suggestions" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"               validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gt=0"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds the connection settings of the queue and lock store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"     validate:"required,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"       validate:"gte=0"`
}

// AuthConfig contains the settings used to verify bearer tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey          string        `mapstructure:"gemini_api_key"          validate:"required"`
	ModelName             string        `mapstructure:"model_name"              validate:"required"`
	MaxRetries            int           `mapstructure:"max_retries"             validate:"gte=0,lte=10"`
	RetryDelaySeconds     int           `mapstructure:"retry_delay_seconds"     validate:"gte=1,lte=60"`
	ContentTemplatePath   string        `mapstructure:"content_template_path"`
	ReasoningTemplatePath string        `mapstructure:"reasoning_template_path"`
	BreakerFailures       uint32        `mapstructure:"breaker_failure_threshold" validate:"gt=0"`
	BreakerTimeout        time.Duration `mapstructure:"breaker_timeout"         validate:"gt=0"`
}

// QueueConfig controls the durable job queue and its workers.
type QueueConfig struct {
	Name                 string        `mapstructure:"name"                   validate:"required"`
	Attempts             int           `mapstructure:"attempts"               validate:"gte=1"`
	BackoffBase          time.Duration `mapstructure:"backoff_base"           validate:"gt=0"`
	RemoveOnComplete     int64         `mapstructure:"remove_on_complete"     validate:"gte=0"`
	RemoveOnFail         int64         `mapstructure:"remove_on_fail"         validate:"gte=0"`
	WorkerEnabled        bool          `mapstructure:"worker_enabled"`
	WorkerCount          int           `mapstructure:"worker_count"           validate:"gte=1"`
	PollInterval         time.Duration `mapstructure:"poll_interval"          validate:"gt=0"`
	LeaseDuration        time.Duration `mapstructure:"lease_duration"         validate:"gt=0"`
	MaxStalledCount      int           `mapstructure:"max_stalled_count"      validate:"gte=1"`
	StalledCheckInterval time.Duration `mapstructure:"stalled_check_interval" validate:"gt=0"`
	JobTimeout           time.Duration `mapstructure:"job_timeout"            validate:"gt=0"`
}

// DispatcherConfig controls the cron-triggered dispatch runs.
type DispatcherConfig struct {
	Enabled                    bool          `mapstructure:"enabled"`
	DailySchedule              string        `mapstructure:"daily_schedule"                validate:"required"`
	WeeklySchedule             string        `mapstructure:"weekly_schedule"               validate:"required"`
	Timezone                   string        `mapstructure:"timezone"                      validate:"required,timezone"`
	PageSize                   int           `mapstructure:"page_size"                     validate:"gte=1,lte=1000"`
	PageDelay                  time.Duration `mapstructure:"page_delay"                    validate:"gte=0"`
	LockTTL                    time.Duration `mapstructure:"lock_ttl"                      validate:"gt=0"`
	MaxConsecutivePageFailures int           `mapstructure:"max_consecutive_page_failures" validate:"gte=1"`
}

// SuggestionsConfig holds the limits of the suggestion lifecycle.
type SuggestionsConfig struct {
	PerUser            int `mapstructure:"per_user"              validate:"gte=1,lte=20"`
	DailyLimit         int `mapstructure:"daily_limit"           validate:"gte=1"`
	RetentionDays      int `mapstructure:"retention_days"        validate:"gte=1"`
	WeeklyCleanupDays  int `mapstructure:"weekly_cleanup_days"   validate:"gte=1"`
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" validate:"gte=1"`
}
