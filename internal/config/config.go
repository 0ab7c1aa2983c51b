// Package config provides configuration management using the Singleton pattern.
// It loads configuration from environment variables and config.yaml using Viper.
package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/Sol-I/stark-ai/internal/domain"
)

// Configuration holds all application configuration values.
type Configuration struct {
	// Server configuration
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Dispatch configuration (failover, timeouts, history bounds)
	Dispatch DispatchConfig `json:"dispatch" mapstructure:"dispatch"`

	// Providers configuration
	Providers []domain.ProviderConfig `json:"providers" mapstructure:"providers"`

	// Probe configuration for the background availability checker
	Probe ProbeConfig `json:"probe" mapstructure:"probe"`

	// Storage configuration for the request log database
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	// Host is the server bind address.
	Host string `json:"host" mapstructure:"host"`

	// Port is the server port number.
	Port int `json:"port" mapstructure:"port"`

	// ReadTimeoutSeconds is the maximum duration for reading the entire request.
	ReadTimeoutSeconds int `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`

	// WriteTimeoutSeconds is the maximum duration before timing out writes of the response.
	WriteTimeoutSeconds int `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`

	// ShutdownTimeoutSeconds is the maximum duration to wait for active connections to finish.
	ShutdownTimeoutSeconds int `json:"shutdown_timeout_seconds" mapstructure:"shutdown_timeout_seconds"`

	// SessionTTLMinutes is how long an idle conversation is kept in memory.
	SessionTTLMinutes int `json:"session_ttl_minutes" mapstructure:"session_ttl_minutes"`
}

// DispatchConfig holds provider selection and failover configuration.
type DispatchConfig struct {
	// MaxHistoryLength is the number of conversation turns sent per request.
	MaxHistoryLength int `json:"max_history_length" mapstructure:"max_history_length"`

	// RequestTimeoutSeconds bounds a single provider attempt.
	RequestTimeoutSeconds int `json:"request_timeout_seconds" mapstructure:"request_timeout_seconds"`

	// FailureThreshold is the number of consecutive failures that puts a
	// provider into cool-down.
	FailureThreshold int `json:"failure_threshold" mapstructure:"failure_threshold"`

	// CooldownSeconds is the base cool-down duration after the threshold
	// is crossed. Zero disables cool-down exclusion.
	CooldownSeconds int `json:"cooldown_seconds" mapstructure:"cooldown_seconds"`

	// MinRequestIntervalMs is the minimum spacing between outbound
	// provider requests across all callers. Zero disables pacing.
	MinRequestIntervalMs int `json:"min_request_interval_ms" mapstructure:"min_request_interval_ms"`

	// Policy selects candidate ordering (priority, health-aware).
	Policy domain.OrderPolicy `json:"policy" mapstructure:"policy"`
}

// ProbeConfig holds background availability checker configuration.
type ProbeConfig struct {
	// Enabled turns the periodic availability probe on.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Schedule is a cron expression for probe runs.
	Schedule string `json:"schedule" mapstructure:"schedule"`
}

// StorageConfig holds request log database configuration.
type StorageConfig struct {
	// Enabled turns persistent request logging on.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Path is the SQLite database file path.
	Path string `json:"path" mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `json:"level" mapstructure:"level"`

	// Format is the log format (json, text).
	Format string `json:"format" mapstructure:"format"`

	// OutputPath is the file path for log output (empty for stdout).
	OutputPath string `json:"output_path" mapstructure:"output_path"`
}

// RequestTimeout returns the per-attempt timeout as a duration.
func (d DispatchConfig) RequestTimeout() time.Duration {
	return time.Duration(d.RequestTimeoutSeconds) * time.Second
}

// Cooldown returns the base cool-down as a duration.
func (d DispatchConfig) Cooldown() time.Duration {
	return time.Duration(d.CooldownSeconds) * time.Second
}

// MinRequestInterval returns the request pacing interval as a duration.
func (d DispatchConfig) MinRequestInterval() time.Duration {
	return time.Duration(d.MinRequestIntervalMs) * time.Millisecond
}

// SessionTTL returns the idle conversation lifetime as a duration.
func (s ServerConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLMinutes) * time.Minute
}

// configInstance holds the singleton configuration instance.
var (
	configInstance *Configuration
	configOnce     sync.Once
	configErr      error
)

// GetConfig returns the singleton Configuration instance.
// It initializes the configuration on first call using the default config path.
// Returns an error if configuration loading fails.
func GetConfig() (*Configuration, error) {
	configOnce.Do(func() {
		configInstance, configErr = loadConfig("")
	})
	return configInstance, configErr
}

// GetConfigWithPath returns the singleton Configuration instance with a custom config path.
// This should be used when you need to specify a non-default configuration file path.
// Returns an error if configuration loading fails.
func GetConfigWithPath(configPath string) (*Configuration, error) {
	configOnce.Do(func() {
		configInstance, configErr = loadConfig(configPath)
	})
	return configInstance, configErr
}

// MustGetConfig returns the singleton Configuration instance.
// It panics if the configuration cannot be loaded.
func MustGetConfig() *Configuration {
	cfg, err := GetConfig()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// ResetConfig resets the singleton instance.
// This is primarily used for testing purposes.
func ResetConfig() {
	configOnce = sync.Once{}
	configInstance = nil
	configErr = nil
}

// Validate validates the configuration and returns an error if required fields are missing.
func (c *Configuration) Validate() error {
	var validationErrors []string

	// Validate server configuration
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		validationErrors = append(validationErrors, "server.port must be between 1 and 65535")
	}

	// Validate dispatch configuration
	if c.Dispatch.MaxHistoryLength < 0 {
		validationErrors = append(validationErrors, "dispatch.max_history_length cannot be negative")
	}
	if c.Dispatch.RequestTimeoutSeconds <= 0 {
		validationErrors = append(validationErrors, "dispatch.request_timeout_seconds must be positive")
	}
	if c.Dispatch.FailureThreshold <= 0 {
		validationErrors = append(validationErrors, "dispatch.failure_threshold must be positive")
	}
	if c.Dispatch.CooldownSeconds < 0 {
		validationErrors = append(validationErrors, "dispatch.cooldown_seconds cannot be negative")
	}
	if !c.Dispatch.Policy.IsValid() {
		validationErrors = append(validationErrors, fmt.Sprintf(
			"dispatch.policy '%s' is invalid, must be one of: priority, health-aware",
			c.Dispatch.Policy,
		))
	}

	// Validate providers
	if len(c.Providers) == 0 {
		validationErrors = append(validationErrors, "providers cannot be empty, at least one provider is required")
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, provider := range c.Providers {
		if provider.Name == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("providers[%d].name is required", i))
		}
		if seen[provider.Name] {
			validationErrors = append(validationErrors, fmt.Sprintf("providers[%d].name '%s' is duplicated", i, provider.Name))
		}
		seen[provider.Name] = true
		if provider.EndpointBase == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("providers[%d].endpoint_base is required", i))
		}
		if provider.BodyTemplate == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("providers[%d].body_template is required", i))
		}
		if !provider.ResponseParser.IsValid() {
			validationErrors = append(validationErrors, fmt.Sprintf(
				"providers[%d].response_parser '%s' is invalid, must be one of: openai, anthropic, google, huggingface",
				i, provider.ResponseParser,
			))
		}
		if provider.Enabled && provider.NeedsCredential() && provider.Credential == "" {
			validationErrors = append(validationErrors, fmt.Sprintf(
				"providers[%d] '%s' requires a credential, set %s",
				i, provider.Name, credentialEnvVar(provider.Name),
			))
		}
	}

	// Validate probe configuration
	if c.Probe.Enabled && c.Probe.Schedule == "" {
		validationErrors = append(validationErrors, "probe.schedule is required when probe.enabled is true")
	}

	// Validate storage configuration
	if c.Storage.Enabled && c.Storage.Path == "" {
		validationErrors = append(validationErrors, "storage.path is required when storage.enabled is true")
	}

	// Validate logging configuration
	if c.Logging.Level != "" && !isValidLogLevel(c.Logging.Level) {
		validationErrors = append(validationErrors, fmt.Sprintf(
			"logging.level '%s' is invalid, must be one of: debug, info, warn, error",
			c.Logging.Level,
		))
	}

	if len(validationErrors) > 0 {
		return &ValidationError{Errors: validationErrors}
	}

	return nil
}

// isValidLogLevel checks if the log level is valid.
func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// EnabledProviders returns all enabled providers.
func (c *Configuration) EnabledProviders() []domain.ProviderConfig {
	enabled := make([]domain.ProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return enabled
}
