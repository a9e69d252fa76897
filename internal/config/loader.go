// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs.
//  2. Load a .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Validate the struct using go-playground/validator.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
type ConfigError struct {
	Stage   string // "parsing" or "validation"
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Stage, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load loads and validates the engine configuration from the environment.
func Load() (*Config, error) {
	// UTC everywhere; token expiry and recency windows compare instants.
	time.Local = time.UTC

	// .env is a development convenience. godotenv does not override values
	// already present in the environment.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Stage:   "parsing",
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Stage:   "validation",
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}
