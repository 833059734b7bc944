package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ConfigHelpers provides convenient access to global configuration
type ConfigHelpers struct {
	config *GlobalConfig
}

// NewConfigHelpers creates a new config helpers instance
func NewConfigHelpers(config *GlobalConfig) *ConfigHelpers {
	return &ConfigHelpers{config: config}
}

// Workers returns the number of concurrent workers
func (c *ConfigHelpers) Workers() int {
	if c.config.Workers < 1 {
		return 1
	}
	return c.config.Workers
}

// StagingDir returns the absolute path to the staging root
func (c *ConfigHelpers) StagingDir() (string, error) {
	if c.config.StagingDir == "" {
		return c.TempDir(), nil
	}
	return filepath.Abs(c.config.StagingDir)
}

// OutputDir returns the absolute path to the output directory
func (c *ConfigHelpers) OutputDir() (string, error) {
	if c.config.OutputDir == "" {
		return filepath.Abs(".")
	}
	return filepath.Abs(c.config.OutputDir)
}

// TempDir returns the temporary directory path
func (c *ConfigHelpers) TempDir() string {
	if c.config.TempDir == "" {
		return os.TempDir()
	}
	return c.config.TempDir
}

// Applier returns the configured patch backend name
func (c *ConfigHelpers) Applier() string {
	return c.config.Applier
}

// KeepStaging returns true if staging directories should be retained
func (c *ConfigHelpers) KeepStaging() bool {
	return c.config.KeepStaging
}

// Timeout returns the per-operation patch timeout, zero for none
func (c *ConfigHelpers) Timeout() time.Duration {
	return time.Duration(c.config.TimeoutSeconds) * time.Second
}

// SigningKey returns the configured signing key file, if any
func (c *ConfigHelpers) SigningKey() string {
	return c.config.Signing.KeyFile
}

// LogLevel returns the configured log level
func (c *ConfigHelpers) LogLevel() string {
	return c.config.Logging.Level
}

// IsDebugMode returns true if debug logging is enabled
func (c *ConfigHelpers) IsDebugMode() bool {
	return c.config.Logging.Level == "debug"
}

// GetConfig returns the underlying global config (for advanced usage)
func (c *ConfigHelpers) GetConfig() *GlobalConfig {
	return c.config
}

// CreateStagingDir ensures the staging root exists
func (c *ConfigHelpers) CreateStagingDir() (string, error) {
	dir, err := c.StagingDir()
	if err != nil {
		return "", fmt.Errorf("resolving staging directory: %w", err)
	}
	return dir, createDirIfNotExists(dir)
}

// CreateOutputDir ensures the output directory exists
func (c *ConfigHelpers) CreateOutputDir() (string, error) {
	dir, err := c.OutputDir()
	if err != nil {
		return "", fmt.Errorf("resolving output directory: %w", err)
	}
	return dir, createDirIfNotExists(dir)
}

// Helper function to create directories
func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
