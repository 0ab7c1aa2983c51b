// Package config provides configuration management using the Singleton pattern.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultConfigName = "config"
	defaultConfigType = "yaml"
	envPrefix         = "STARK_AI"

	// credentialEnvPrefix is the prefix for per-provider credential
	// variables, e.g. STARK_AI_CREDENTIAL_OPENROUTER. Credentials are
	// accepted ONLY from the environment, never from the config file.
	credentialEnvPrefix = "STARK_AI_CREDENTIAL_"
)

// loadConfig loads the configuration from environment variables and files.
// Priority order (highest to lowest):
// 1. STARK_AI_CREDENTIAL_<NAME> env vars - the only credential source
// 2. Environment variables (prefixed with STARK_AI_)
// 3. config.yaml
// 4. Default values
func loadConfig(configPath string) (*Configuration, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure Viper
	v.SetConfigName(defaultConfigName)
	v.SetConfigType(defaultConfigType)

	// Add config search paths
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/stark-ai")
		v.AddConfigPath("$HOME/.stark-ai")
	}

	// Enable environment variable override
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Read configuration file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, &ConfigError{
				Op:  "read",
				Err: fmt.Errorf("failed to read config file: %w", err),
			}
		}
		// Config file not found is OK - env vars and defaults still apply.
	}

	// Unmarshal configuration
	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{
			Op:  "unmarshal",
			Err: fmt.Errorf("failed to unmarshal config: %w", err),
		}
	}

	// Inject credentials from the environment. Provider entries in the
	// file never carry secrets.
	injectCredentials(&cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("server.session_ttl_minutes", 60)

	// Dispatch defaults
	v.SetDefault("dispatch.max_history_length", 20)
	v.SetDefault("dispatch.request_timeout_seconds", 30)
	v.SetDefault("dispatch.failure_threshold", 3)
	v.SetDefault("dispatch.cooldown_seconds", 60)
	v.SetDefault("dispatch.min_request_interval_ms", 0)
	v.SetDefault("dispatch.policy", "health-aware")

	// Probe defaults
	v.SetDefault("probe.enabled", false)
	v.SetDefault("probe.schedule", "@every 5m")

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.path", "stark_ai.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "")
}

// credentialEnvVar returns the environment variable name holding the
// credential for the named provider.
func credentialEnvVar(providerName string) string {
	normalized := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(providerName))
	return credentialEnvPrefix + normalized
}

// injectCredentials fills each provider's Credential from its dedicated
// environment variable.
func injectCredentials(cfg *Configuration) {
	for i := range cfg.Providers {
		cfg.Providers[i].Credential = os.Getenv(credentialEnvVar(cfg.Providers[i].Name))
	}
}
