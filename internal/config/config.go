// Package config defines the configuration surface for the alert engine.
// Configuration is loaded once at process start and is immutable thereafter,
// strictly separating code from configuration. Values come from the OS
// environment, with a .env file as a development fallback.
package config

import (
	"strings"
	"time"

	"snowalert/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used to keep sensitive values out of logs and config dumps.
type SecretString = types.SecretString

// Config is the top-level configuration struct. Sub-components receive only
// the subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	ISuite   ISuiteConfig
	Workflow WorkflowConfig
	Store    StoreConfig
	Metrics  MetricsConfig
}

// ISuiteConfig holds the SAP Integration Suite credentials and endpoint.
// The four required values are deliberately not tagged required: the engine
// can evaluate without them, and delivery validates them as a unit before
// any network call (a missing value is a configuration error, not a partial
// attempt).
type ISuiteConfig struct {
	TokenURL     string       `envconfig:"ISUITE_OAUTH_TOKEN_URL" validate:"omitempty,url"`
	ClientID     string       `envconfig:"ISUITE_OAUTH_CLIENT_ID"`
	ClientSecret SecretString `envconfig:"ISUITE_OAUTH_CLIENT_SECRET"`
	IFlowURL     string       `envconfig:"ISUITE_IFLOW_URL" validate:"omitempty,url"`

	Timeout   time.Duration `envconfig:"ISUITE_HTTP_TIMEOUT" default:"30s"`
	UserAgent string        `envconfig:"ISUITE_USER_AGENT" default:"SnowAlert/1.0"`
}

// MissingSettings returns the names of required Integration Suite settings
// that are absent, in declaration order.
func (c ISuiteConfig) MissingSettings() []string {
	var missing []string
	if c.TokenURL == "" {
		missing = append(missing, "ISUITE_OAUTH_TOKEN_URL")
	}
	if c.ClientID == "" {
		missing = append(missing, "ISUITE_OAUTH_CLIENT_ID")
	}
	if !c.ClientSecret.IsSet() {
		missing = append(missing, "ISUITE_OAUTH_CLIENT_SECRET")
	}
	if c.IFlowURL == "" {
		missing = append(missing, "ISUITE_IFLOW_URL")
	}
	return missing
}

// Validate checks all four required settings as a single step. It returns a
// configuration AppError naming every missing variable, or nil.
func (c ISuiteConfig) Validate() error {
	missing := c.MissingSettings()
	if len(missing) == 0 {
		return nil
	}
	return types.NewAppError(
		types.ErrCodeConfigMissing,
		"missing environment variables: "+strings.Join(missing, ", "),
		nil,
	)
}

// WorkflowConfig holds the SAP BTP workflow trigger settings. Optional: the
// trigger is only attempted when explicitly requested.
type WorkflowConfig struct {
	URL          string `envconfig:"ISUITE_WORKFLOW_URL" validate:"omitempty,url"`
	DefinitionID string `envconfig:"ISUITE_WORKFLOW_DEFINITION_ID"`
}

// StoreConfig holds the local history database settings.
type StoreConfig struct {
	Path string `envconfig:"STORE_PATH" default:"snowalert.db"`
}

// MetricsConfig holds the Prometheus exposition settings. An empty Addr
// disables the listener.
type MetricsConfig struct {
	Addr string `envconfig:"METRICS_ADDR"`
}
