package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is prepended to every environment variable, e.g. LINGO_SERVER_PORT.
const envPrefix = "LINGO"

// defaults lists every configuration key. Keys must be registered with viper
// for AutomaticEnv to resolve them during Unmarshal, so required settings
// without a sensible default are registered as empty strings.
var defaults = map[string]any{
	"server.port":             8080,
	"server.log_level":        "info",
	"server.shutdown_timeout": 15 * time.Second,

	"database.driver": "postgres",
	"database.url":    "",

	"auth.jwt_secret":     "",
	"auth.token_lifetime": 24 * time.Hour,
	"auth.clock_skew":     30 * time.Second,

	"translation.provider":       "gemini",
	"translation.gemini_api_key": "",
	"translation.model":          "gemini-2.0-flash",
	"translation.ollama_host":    "",
	"translation.timeout":        2 * time.Minute,
	"translation.max_retries":    3,

	"queue.backend":        "memory",
	"queue.redis_addr":     "",
	"queue.redis_key":      "lingo:pending",
	"queue.worker_count":   2,
	"queue.lease_duration": 10 * time.Minute,
	"queue.sweep_interval": time.Minute,
	"queue.poll_interval":  2 * time.Second,
	"queue.max_attempts":   3,

	"storage.artifact_dir": "./data/artifacts",
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags of a Config.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
