// Package config handles loading and validation of Conductor's
// configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigPath is the default location for the Conductor
// configuration file when none is given on the command line.
const DefaultConfigPath = "conductor.yaml"

// ConductorConfig holds the broker-facing settings under the
// `conductor:` key.
type ConductorConfig struct {
	// Hostname is the address the broker's WebSocket listener binds to.
	Hostname string `mapstructure:"hostname" yaml:"hostname"`

	// PayloadPath is the path to the JavaScript payload template,
	// relative to the directory containing the Conductor executable.
	PayloadPath string `mapstructure:"payload_path" yaml:"payload_path"`

	// ReplaceOtherInstances allows Conductor to remote-kill a previously
	// injected instance instead of exiting when one is detected.
	ReplaceOtherInstances bool `mapstructure:"replace_other_instances" yaml:"replace_other_instances"`
}

// AuthConfig holds the client authentication settings under the
// `auth:` key.
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Tokens  []string `mapstructure:"tokens" yaml:"tokens"`
}

// Config holds all configuration for Conductor.
type Config struct {
	Conductor ConductorConfig `mapstructure:"conductor" yaml:"conductor"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`

	// LogLevel controls the logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// DataDir is the directory Conductor uses for its own state: the
	// PID file.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// Load reads configuration from the given file path, falling back to
// DefaultConfigPath when configPath is empty. Environment variables
// under the CONDUCTOR_ prefix override file values.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("conductor.hostname", "127.0.0.1:7355")
	v.SetDefault("conductor.payload_path", "dist/payload.template.js")
	v.SetDefault("conductor.replace_other_instances", true)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("data_dir", defaultDataDir())

	if configPath == "" {
		configPath = DefaultConfigPath
	}
	v.SetConfigFile(configPath)

	v.SetEnvPrefix("CONDUCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	envBindings := map[string]string{
		"conductor.hostname":                "CONDUCTOR_HOSTNAME",
		"conductor.payload_path":            "CONDUCTOR_PAYLOAD_PATH",
		"conductor.replace_other_instances": "CONDUCTOR_REPLACE_OTHER_INSTANCES",
		"auth.enabled":                      "CONDUCTOR_AUTH_ENABLED",
		"auth.tokens":                       "CONDUCTOR_AUTH_TOKENS",
		"log_level":                         "CONDUCTOR_LOG_LEVEL",
		"data_dir":                          "CONDUCTOR_DATA_DIR",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			// Config file not found; rely on env vars and defaults.
		} else {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required configuration fields are present
// and internally consistent.
func (c *Config) Validate() error {
	if c.Conductor.Hostname == "" {
		return fmt.Errorf("conductor.hostname is required")
	}
	if c.Conductor.PayloadPath == "" {
		return fmt.Errorf("conductor.payload_path is required")
	}
	if c.Auth.Enabled && len(c.Auth.Tokens) == 0 {
		return fmt.Errorf("auth.tokens must be non-empty when auth.enabled is true")
	}

	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data directory %s: %w", c.DataDir, err)
	}

	return nil
}

// AcceptsSecret reports whether secret is one of the configured client
// tokens. Only meaningful when Auth.Enabled is true.
func (c *Config) AcceptsSecret(secret string) bool {
	for _, tok := range c.Auth.Tokens {
		if tok == secret {
			return true
		}
	}
	return false
}

func defaultDataDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".conductor"
	}
	return dir + string(os.PathSeparator) + "conductor"
}
