// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the forwarder.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shineum/ses-forwarder-lite/internal/mapping"
)

// Provider names accepted in PROVIDER.
const (
	ProviderSES    = "ses"
	ProviderStdout = "stdout"
)

// Config holds the complete application configuration.
type Config struct {
	Provider       string            `yaml:"provider"`
	S3             S3Config          `yaml:"s3"`
	SES            SESConfig         `yaml:"ses"`
	Forward        ForwardConfig     `yaml:"forward"`
	ForwardMapping map[string]string `yaml:"forward_mapping"`
	Logging        LoggingConfig     `yaml:"logging"`
}

// S3Config describes where SES stores incoming messages.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
	// MailDir replaces S3 with a local directory of message files.
	MailDir string `yaml:"mail_dir"`
}

// SESConfig holds AWS SES configuration. All fields are optional; the
// Lambda execution role and region are used by default.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// ForwardConfig holds forwarding behavior.
type ForwardConfig struct {
	// VerifiedFrom is a full verified sender address, or a local-part to use
	// at each recipient's domain.
	VerifiedFrom string `yaml:"verified_from"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	var errs []error

	if c.S3.Bucket == "" && c.S3.MailDir == "" {
		errs = append(errs, errors.New("SES_INCOMING_BUCKET is required"))
	}
	if len(c.ForwardMapping) == 0 {
		errs = append(errs, errors.New("FORWARD_MAPPING is required"))
	} else if _, err := mapping.New(c.ForwardMapping); err != nil {
		errs = append(errs, err)
	}
	switch c.Provider {
	case ProviderSES, ProviderStdout:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}

	return errors.Join(errs...)
}

// Mapping builds the forward mapping from the loaded entries.
func (c *Config) Mapping() (mapping.Mapping, error) {
	return mapping.New(c.ForwardMapping)
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.Provider = ProviderSES
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() error {
	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}

	if v := os.Getenv("SES_INCOMING_BUCKET"); v != "" {
		c.S3.Bucket = v
	}
	if v := os.Getenv("S3_PREFIX"); v != "" {
		c.S3.Prefix = v
	}
	if v := os.Getenv("S3_BUCKET_REGION"); v != "" {
		c.S3.Region = v
	}
	if v := os.Getenv("MAIL_DIR"); v != "" {
		c.S3.MailDir = v
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}

	if v := os.Getenv("VERIFIED_FROM_EMAIL"); v != "" {
		c.Forward.VerifiedFrom = v
	}
	if v := os.Getenv("FORWARD_MAPPING"); v != "" {
		m, err := mapping.Parse([]byte(v))
		if err != nil {
			return fmt.Errorf("invalid FORWARD_MAPPING: %w", err)
		}
		c.ForwardMapping = m
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	return nil
}
