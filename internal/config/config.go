// Package config loads the botrunner configuration file and the job
// environment.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/autopost/botrunner/internal/config/validate"
	"github.com/autopost/botrunner/internal/utils/logger"
	"gopkg.in/yaml.v3"
	k8syaml "sigs.k8s.io/yaml"
)

const (
	DefaultConfigFile = "botrunner.yml"

	DefaultVersionsURL = "https://googlechromelabs.github.io/chrome-for-testing/known-good-versions-with-downloads.json"
	DefaultChannelsURL = "https://googlechromelabs.github.io/chrome-for-testing/last-known-good-versions-with-downloads.json"

	BotModeAPI     = "api"
	BotModeBrowser = "browser"
)

// GlobalConfig is the content of botrunner.yml.
type GlobalConfig struct {
	WorkDir        string         `yaml:"workDir"`
	StateDir       string         `yaml:"stateDir"`
	ArtifactDir    string         `yaml:"artifactDir"`
	TempDir        string         `yaml:"tempDir"`
	ArtifactRetain int            `yaml:"artifactRetain"`
	Logging        LoggingConfig  `yaml:"logging"`
	Driver         DriverConfig   `yaml:"driver"`
	Bot            BotConfig      `yaml:"bot"`
	Schedule       ScheduleConfig `yaml:"schedule"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DriverConfig controls driver resolution and installation.
type DriverConfig struct {
	Name            string `yaml:"name"`
	Product         string `yaml:"product"`
	Platform        string `yaml:"platform"` // empty detects the host
	InstallPath     string `yaml:"installPath"`
	ManifestURL     string `yaml:"manifestURL"` // single document with versions and channels
	VersionsURL     string `yaml:"versionsURL"`
	ChannelsURL     string `yaml:"channelsURL"`
	FallbackChannel string `yaml:"fallbackChannel"`
	AllowFallback   bool   `yaml:"allowFallback"`
	BrowserPath     string `yaml:"browserPath"`
	BrowserVersion  string `yaml:"browserVersion"`
	Timeout         string `yaml:"timeout"`
}

type BotConfig struct {
	Mode       string `yaml:"mode"`
	Command    string `yaml:"command"`
	WorkingDir string `yaml:"workingDir"`
}

type ScheduleConfig struct {
	Times    []string `yaml:"times"`
	Cron     string   `yaml:"cron"`
	Timezone string   `yaml:"timezone"`
	LockTTL  string   `yaml:"lockTTL"`
}

var (
	globalMu     sync.RWMutex
	globalConfig *GlobalConfig
)

// DefaultGlobalConfig returns the built-in configuration.
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		WorkDir:        ".",
		StateDir:       filepath.Join(".botrunner", "state"),
		ArtifactDir:    filepath.Join(".botrunner", "artifacts"),
		ArtifactRetain: 30,
		Logging: LoggingConfig{
			Level: "info",
		},
		Driver: DriverConfig{
			Name:            "chromedriver",
			Product:         "chromedriver",
			InstallPath:     "/usr/local/bin/chromedriver",
			VersionsURL:     DefaultVersionsURL,
			ChannelsURL:     DefaultChannelsURL,
			FallbackChannel: "Stable",
			AllowFallback:   true,
			Timeout:         "60s",
		},
		Bot: BotConfig{
			Mode:    BotModeBrowser,
			Command: "python twitter_bot.py",
		},
		Schedule: ScheduleConfig{
			Times:    []string{"07:00", "13:00", "19:00"},
			Timezone: "UTC",
			LockTTL:  "2h",
		},
	}
}

// Global returns the loaded configuration, or the defaults before any load.
func Global() *GlobalConfig {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalConfig == nil {
		return DefaultGlobalConfig()
	}
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(c *GlobalConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = c
}

// SearchPaths lists the locations tried when no config file is given.
func SearchPaths() []string {
	paths := []string{DefaultConfigFile}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "botrunner", DefaultConfigFile))
	}
	return append(paths, filepath.Join("/etc", "botrunner", DefaultConfigFile))
}

// LoadGlobalConfig reads path, or the first existing search path when path
// is empty. Without any file the defaults are returned.
func LoadGlobalConfig(path string) (*GlobalConfig, error) {
	log := logger.Logger()

	if path == "" {
		for _, candidate := range SearchPaths() {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		log.Debugf("no configuration file found, using defaults")
		return DefaultGlobalConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg, err := parseGlobalConfig(data)
	if err != nil {
		return nil, fmt.Errorf("loading config file %s: %w", path, err)
	}
	log.Debugf("loaded configuration from %s", path)
	return cfg, nil
}

// parseGlobalConfig validates data against the config schema and decodes it
// over the defaults.
func parseGlobalConfig(data []byte) (*GlobalConfig, error) {
	cfg := DefaultGlobalConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	jsonData, err := k8syaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if trimmed := bytes.TrimSpace(jsonData); bytes.Equal(trimmed, []byte("null")) {
		return cfg, nil
	}
	if err := validate.ValidateConfigJSON(jsonData); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	// manifestURL replaces the split documents
	if cfg.Driver.ManifestURL != "" {
		cfg.Driver.VersionsURL = ""
		cfg.Driver.ChannelsURL = ""
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the schema cannot express.
func (c *GlobalConfig) Validate() error {
	if _, err := c.DriverTimeout(); err != nil {
		return err
	}
	if _, err := c.LockTTL(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Bot.Mode {
	case BotModeAPI, BotModeBrowser:
	default:
		return fmt.Errorf("invalid bot mode %q", c.Bot.Mode)
	}
	if strings.TrimSpace(c.Bot.Command) == "" {
		return fmt.Errorf("bot command is required")
	}
	if c.Driver.ManifestURL == "" && c.Driver.VersionsURL == "" {
		return fmt.Errorf("driver manifestURL or versionsURL is required")
	}
	return nil
}

// DriverTimeout is the HTTP timeout for manifest and archive downloads.
func (c *GlobalConfig) DriverTimeout() (time.Duration, error) {
	return parseDuration("driver.timeout", c.Driver.Timeout, 60*time.Second)
}

// LockTTL is the age after which a run lock counts as abandoned.
func (c *GlobalConfig) LockTTL() (time.Duration, error) {
	return parseDuration("schedule.lockTTL", c.Schedule.LockTTL, 2*time.Hour)
}

// Location is the time zone the schedule times are read in.
func (c *GlobalConfig) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule.timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: negative", field, value)
	}
	return d, nil
}

// Marshal renders the configuration as YAML.
func (c *GlobalConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
