// Package config handles chatsync configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config is the root configuration structure for chatsync.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Backend settings
	Backend BackendConfig `yaml:"backend" mapstructure:"backend"`

	// Sync settings
	Sync SyncConfig `yaml:"sync" mapstructure:"sync"`

	// Storage settings for media uploads
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// GlobalConfig contains global chatsync settings.
type GlobalConfig struct {
	// ConfigDir is where config files are stored (default: ~/.config/chatsync).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// BackendConfig contains API connection settings.
type BackendConfig struct {
	// Endpoint is the GraphQL HTTP endpoint.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// LiveEndpoint is the push subscription endpoint. Empty disables
	// the push channel.
	LiveEndpoint string `yaml:"live_endpoint" mapstructure:"live_endpoint"`

	// Token is the bearer credential sent with every request.
	Token string `yaml:"token" mapstructure:"token"`

	// UserID identifies the current user, used for media key prefixes.
	UserID string `yaml:"user_id" mapstructure:"user_id"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// SyncConfig contains timeline synchronization settings.
type SyncConfig struct {
	// PollInterval is how often the fallback poller fetches.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// PageLimit is the page size for history loads and polls.
	PageLimit int `yaml:"page_limit" mapstructure:"page_limit"`

	// ReconnectBaseDelay is the initial push-channel retry delay.
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay" mapstructure:"reconnect_base_delay"`

	// ReconnectMaxDelay caps the push-channel retry delay.
	ReconnectMaxDelay time.Duration `yaml:"reconnect_max_delay" mapstructure:"reconnect_max_delay"`

	// ReconnectMaxAttempts bounds consecutive reconnect attempts.
	ReconnectMaxAttempts int `yaml:"reconnect_max_attempts" mapstructure:"reconnect_max_attempts"`
}

// StorageConfig contains S3 media storage settings.
type StorageConfig struct {
	// Bucket is the media bucket. Empty disables media sends.
	Bucket string `yaml:"bucket" mapstructure:"bucket"`

	// Region is the bucket region.
	Region string `yaml:"region" mapstructure:"region"`

	// AccessKeyID and SecretAccessKey override the ambient AWS
	// credential chain when both are set.
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`

	// PresignExpiry is how long presigned URLs stay valid.
	PresignExpiry time.Duration `yaml:"presign_expiry" mapstructure:"presign_expiry"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			ConfigDir: filepath.Join(homeDir, ".config", "chatsync"),
		},
		Backend: BackendConfig{
			Timeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			PollInterval:         2 * time.Second,
			PageLimit:            50,
			ReconnectBaseDelay:   time.Second,
			ReconnectMaxDelay:    30 * time.Second,
			ReconnectMaxAttempts: 10,
		},
		Storage: StorageConfig{
			Region:        "us-east-1",
			PresignExpiry: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Backend.Endpoint == "" {
		return fmt.Errorf("backend.endpoint is required")
	}

	if c.Sync.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("sync.poll_interval must be at least 100ms")
	}

	if c.Sync.PageLimit < 1 {
		return fmt.Errorf("sync.page_limit must be at least 1")
	}

	if c.Sync.ReconnectMaxAttempts < 1 {
		return fmt.Errorf("sync.reconnect_max_attempts must be at least 1")
	}

	if (c.Storage.AccessKeyID == "") != (c.Storage.SecretAccessKey == "") {
		return fmt.Errorf("storage.access_key_id and storage.secret_access_key must be set together")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Global.ConfigDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", c.Global.ConfigDir, err)
	}
	return nil
}
