package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/autopost/botrunner/internal/config"
)

// ConfigHelpers provides convenient access to global configuration
type ConfigHelpers struct {
	config *config.GlobalConfig
}

// NewConfigHelpers creates a new config helpers instance
func NewConfigHelpers(cfg *config.GlobalConfig) *ConfigHelpers {
	return &ConfigHelpers{config: cfg}
}

// WorkDir returns the absolute path to the work directory
func (c *ConfigHelpers) WorkDir() (string, error) {
	return filepath.Abs(c.config.WorkDir)
}

// StateDir returns the absolute path to the state directory
func (c *ConfigHelpers) StateDir() (string, error) {
	return c.underWorkDir(c.config.StateDir)
}

// ArtifactDir returns the absolute path to the artifact directory
func (c *ConfigHelpers) ArtifactDir() (string, error) {
	return c.underWorkDir(c.config.ArtifactDir)
}

// BotWorkingDir returns the directory the bot command runs in
func (c *ConfigHelpers) BotWorkingDir() (string, error) {
	if c.config.Bot.WorkingDir == "" {
		return c.WorkDir()
	}
	return c.underWorkDir(c.config.Bot.WorkingDir)
}

// LogFile returns the absolute log file path, or "" when file logging is off
func (c *ConfigHelpers) LogFile() (string, error) {
	if c.config.Logging.File == "" {
		return "", nil
	}
	return c.underWorkDir(c.config.Logging.File)
}

// TempDir returns the temporary directory path
func (c *ConfigHelpers) TempDir() string {
	if c.config.TempDir == "" {
		return os.TempDir()
	}
	return c.config.TempDir
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
func (c *ConfigHelpers) GetConfig() *config.GlobalConfig {
	return c.config
}

// CreateStateDir ensures the state directory exists
func (c *ConfigHelpers) CreateStateDir() (string, error) {
	stateDir, err := c.StateDir()
	if err != nil {
		return "", fmt.Errorf("resolving state directory: %w", err)
	}
	return stateDir, createDirIfNotExists(stateDir)
}

// CreateArtifactDir ensures the artifact directory exists
func (c *ConfigHelpers) CreateArtifactDir() (string, error) {
	artifactDir, err := c.ArtifactDir()
	if err != nil {
		return "", fmt.Errorf("resolving artifact directory: %w", err)
	}
	return artifactDir, createDirIfNotExists(artifactDir)
}

// CreateTempDir ensures a temp subdirectory exists
func (c *ConfigHelpers) CreateTempDir(subdir string) (string, error) {
	tempDir := filepath.Join(c.TempDir(), subdir)
	err := createDirIfNotExists(tempDir)
	return tempDir, err
}

// underWorkDir resolves relative paths against the work directory
func (c *ConfigHelpers) underWorkDir(p string) (string, error) {
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	workDir, err := c.WorkDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(workDir, p), nil
}

// Helper function to create directories
func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
