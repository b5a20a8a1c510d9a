package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server      ServerConfig      `mapstructure:"server" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database" validate:"required"`
	Auth        AuthConfig        `mapstructure:"auth" validate:"required"`
	Translation TranslationConfig `mapstructure:"translation" validate:"required"`
	Queue       QueueConfig       `mapstructure:"queue" validate:"required"`
	Storage     StorageConfig     `mapstructure:"storage" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig selects the task record backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	URL    string `mapstructure:"url" validate:"required_if=Driver postgres"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	// TokenLifetime applies to tokens issued by lingoctl.
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
	// ClockSkew is the leeway allowed when checking exp and iat.
	ClockSkew time.Duration `mapstructure:"clock_skew" validate:"gte=0"`
}

// TranslationConfig selects and configures the translation backend.
type TranslationConfig struct {
	Provider     string        `mapstructure:"provider" validate:"required,oneof=gemini ollama"`
	GeminiAPIKey string        `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	Model        string        `mapstructure:"model" validate:"required"`
	OllamaHost   string        `mapstructure:"ollama_host" validate:"required_if=Provider ollama"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries   uint64        `mapstructure:"max_retries" validate:"lte=10"`
}

// QueueConfig controls the pending set backend and the worker pool.
type QueueConfig struct {
	Backend       string        `mapstructure:"backend" validate:"required,oneof=memory redis"`
	RedisAddr     string        `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
	RedisKey      string        `mapstructure:"redis_key" validate:"required_if=Backend redis"`
	WorkerCount   int           `mapstructure:"worker_count" validate:"gt=0"`
	LeaseDuration time.Duration `mapstructure:"lease_duration" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	PollInterval  time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MaxAttempts   int           `mapstructure:"max_attempts" validate:"gte=1"`
}

// StorageConfig locates the artifact directory.
type StorageConfig struct {
	ArtifactDir string `mapstructure:"artifact_dir" validate:"required"`
}
