package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the tadpoles crawler.
type Config struct {
	// Portal endpoints and browser identity
	Portal PortalConfig `yaml:"portal" json:"portal"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Backoff pacing ranges
	Backoff BackoffConfig `yaml:"backoff" json:"backoff"`

	// State directory (cookie jar)
	State StateConfig `yaml:"state" json:"state"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PortalConfig holds portal-specific configuration.
type PortalConfig struct {
	RootURL   string `yaml:"root_url" json:"root_url"`
	HomeURL   string `yaml:"home_url" json:"home_url"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
	// Headless controls whether the automation browser runs without a window.
	Headless bool `yaml:"headless" json:"headless"`
	// ElementTimeout is the implicit wait applied to every element lookup.
	ElementTimeout time.Duration `yaml:"element_timeout" json:"element_timeout"`
}

// DownloadConfig holds download-specific configuration.
type DownloadConfig struct {
	Directory      string `yaml:"directory" json:"directory"`
	IncludeReports bool   `yaml:"include_reports" json:"include_reports"`
	ChunkSize      int    `yaml:"chunk_size" json:"chunk_size"`
	// FetchTimeout bounds connection setup and response headers on a media
	// fetch. The body read is not time-bounded; a slow stream is allowed to
	// finish and only context cancellation stops it.
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
	// MaxAttempts bounds media fetch retries. 0 retries forever, matching the
	// portal's observed behavior of eventually recovering from 5xx bursts.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// BackoffConfig holds the uniform sleep ranges, in whole seconds.
type BackoffConfig struct {
	MinSleep        int `yaml:"min_sleep" json:"min_sleep"`
	MaxSleep        int `yaml:"max_sleep" json:"max_sleep"`
	FailureMinSleep int `yaml:"failure_min_sleep" json:"failure_min_sleep"`
	FailureMaxSleep int `yaml:"failure_max_sleep" json:"failure_max_sleep"`
	SettleMinSleep  int `yaml:"settle_min_sleep" json:"settle_min_sleep"`
	SettleMaxSleep  int `yaml:"settle_max_sleep" json:"settle_max_sleep"`
}

// StateConfig holds persisted run state locations.
type StateConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// CookieJarPath returns the location of the serialized cookie jar.
func (s StateConfig) CookieJarPath() string {
	return filepath.Join(s.Directory, "cookies.enc")
}

// DefaultConfig returns a Config instance with the portal's known defaults.
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			RootURL:        "https://www.tadpoles.com/",
			HomeURL:        "https://www.tadpoles.com/parents",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			Headless:       false,
			ElementTimeout: 10 * time.Second,
		},
		Download: DownloadConfig{
			Directory:      "download",
			IncludeReports: true,
			ChunkSize:      1024,
			FetchTimeout:   60 * time.Second,
			MaxAttempts:    0,
		},
		Backoff: BackoffConfig{
			MinSleep:        1,
			MaxSleep:        3,
			FailureMinSleep: 1,
			FailureMaxSleep: 5,
			SettleMinSleep:  5,
			SettleMaxSleep:  7,
		},
		State: StateConfig{
			Directory: "state",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration overrides from environment variables.
func (c *Config) LoadFromEnv() error {
	if dir := os.Getenv("TADCATCH_DOWNLOAD_DIR"); dir != "" {
		c.Download.Directory = dir
	}
	if reports := os.Getenv("TADCATCH_INCLUDE_REPORTS"); reports != "" {
		c.Download.IncludeReports = strings.ToLower(reports) == "true"
	}
	if attempts := os.Getenv("TADCATCH_MAX_ATTEMPTS"); attempts != "" {
		if val, err := strconv.Atoi(attempts); err == nil && val >= 0 {
			c.Download.MaxAttempts = val
		}
	}
	if stateDir := os.Getenv("TADCATCH_STATE_DIR"); stateDir != "" {
		c.State.Directory = stateDir
	}
	if level := os.Getenv("TADCATCH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if headless := os.Getenv("TADCATCH_HEADLESS"); headless != "" {
		c.Portal.Headless = strings.ToLower(headless) == "true"
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. An empty path falls back
// to the standard locations; a missing file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations.
func findConfigFile() string {
	locations := []string{
		".tadcatch.yaml",
		".tadcatch.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "tadcatch", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".tadcatch.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Portal.HomeURL == "" {
		errs = append(errs, errors.New("portal home URL is required"))
	}
	if c.Portal.ElementTimeout <= 0 {
		errs = append(errs, errors.New("element timeout must be positive"))
	}
	if c.Download.Directory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Download.ChunkSize <= 0 {
		errs = append(errs, errors.New("chunk size must be positive"))
	}
	if c.Download.MaxAttempts < 0 {
		errs = append(errs, errors.New("max attempts cannot be negative"))
	}
	if c.Backoff.MinSleep < 0 || c.Backoff.MaxSleep < c.Backoff.MinSleep {
		errs = append(errs, errors.New("backoff sleep range is invalid"))
	}
	if c.Backoff.FailureMinSleep < 0 || c.Backoff.FailureMaxSleep < c.Backoff.FailureMinSleep {
		errs = append(errs, errors.New("failure sleep range is invalid"))
	}
	if c.Backoff.SettleMinSleep < 0 || c.Backoff.SettleMaxSleep < c.Backoff.SettleMinSleep {
		errs = append(errs, errors.New("settle sleep range is invalid"))
	}
	if c.State.Directory == "" {
		errs = append(errs, errors.New("state directory is required"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges command line flag values into the configuration.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dir, ok := flags["download-dir"].(string); ok && dir != "" {
		c.Download.Directory = dir
	}
	if reports, ok := flags["include-reports"].(bool); ok {
		c.Download.IncludeReports = reports
	}
	if attempts, ok := flags["max-attempts"].(int); ok && attempts >= 0 {
		c.Download.MaxAttempts = attempts
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Portal.Headless = headless
	}
	if stateDir, ok := flags["state-dir"].(string); ok && stateDir != "" {
		c.State.Directory = stateDir
	}
	if level, ok := flags["log-level"].(string); ok && level != "" {
		c.Logging.Level = level
	}
}

// Load loads configuration from all sources with proper precedence:
// command line flags > environment variables > .env file > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".tadcatch.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
