package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the portal scraper.
type Config struct {
	// Canvas holds portal connection settings
	Canvas CanvasConfig `yaml:"canvas" json:"canvas"`

	// Browser holds browser automation settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Download holds download and mirror settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// RateLimit holds portal request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// CanvasConfig holds portal-specific configuration.
type CanvasConfig struct {
	BaseURL  string `yaml:"base_url" json:"base_url"`
	Username string `yaml:"username" json:"username"`
	// AuthProvider forces a specific sign-in flow (microsoft, google,
	// canvas, generic). Empty means detect from the login page.
	AuthProvider string `yaml:"auth_provider" json:"auth_provider"`
}

// BrowserConfig holds browser automation behavior.
type BrowserConfig struct {
	Headless bool `yaml:"headless" json:"headless"`
	// NavDelay is the fixed visibility delay after every navigation.
	NavDelay time.Duration `yaml:"nav_delay" json:"nav_delay"`
	// WaitTimeout bounds every condition-wait for a page marker.
	WaitTimeout time.Duration `yaml:"wait_timeout" json:"wait_timeout"`
	// ShortWaitTimeout bounds the secondary waits (alternate download
	// button signatures and back-navigation re-confirmation).
	ShortWaitTimeout time.Duration `yaml:"short_wait_timeout" json:"short_wait_timeout"`
	ScreenshotDir    string        `yaml:"screenshot_dir" json:"screenshot_dir"`
}

// DownloadConfig holds download and local mirror settings.
type DownloadConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	// SkipExisting treats a non-zero-size file at the target path as
	// already downloaded.
	SkipExisting        bool          `yaml:"skip_existing" json:"skip_existing"`
	TransferTimeout     time.Duration `yaml:"transfer_timeout" json:"transfer_timeout"`
	ConcurrentTransfers int           `yaml:"concurrent_transfers" json:"concurrent_transfers"`
}

// RateLimitConfig paces requests against the portal.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	MaxRetries        int `yaml:"max_retries" json:"max_retries"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:         false,
			NavDelay:         2 * time.Second,
			WaitTimeout:      15 * time.Second,
			ShortWaitTimeout: 10 * time.Second,
			ScreenshotDir:    "screenshots",
		},
		Download: DownloadConfig{
			BaseDirectory:       "Canvas_Downloads",
			SkipExisting:        true,
			TransferTimeout:     60 * time.Second,
			ConcurrentTransfers: 3,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			MaxRetries:        3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	if baseURL := os.Getenv("CANVASFETCH_BASE_URL"); baseURL != "" {
		c.Canvas.BaseURL = baseURL
	}
	if username := os.Getenv("CANVASFETCH_USERNAME"); username != "" {
		c.Canvas.Username = username
	}
	if provider := os.Getenv("CANVASFETCH_AUTH_PROVIDER"); provider != "" {
		c.Canvas.AuthProvider = provider
	}

	if dir := os.Getenv("CANVASFETCH_DOWNLOAD_DIR"); dir != "" {
		c.Download.BaseDirectory = dir
	}
	if skip := os.Getenv("CANVASFETCH_SKIP_EXISTING"); skip != "" {
		c.Download.SkipExisting = strings.ToLower(skip) != "false"
	}
	if concurrent := os.Getenv("CANVASFETCH_CONCURRENT_TRANSFERS"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentTransfers = val
		}
	}

	if headless := os.Getenv("CANVASFETCH_HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) == "true"
	}
	if delay := os.Getenv("CANVASFETCH_NAV_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d >= 0 {
			c.Browser.NavDelay = d
		}
	}

	if rpm := os.Getenv("CANVASFETCH_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}

	if logLevel := os.Getenv("CANVASFETCH_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // no config file found, not an error
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
func (c *Config) findConfigFile() string {
	locations := []string{
		".canvasfetch.yaml",
		".canvasfetch.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "canvasfetch", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "canvasfetch", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if c.Canvas.BaseURL == "" {
		errs = append(errs, errors.New("portal base URL is required"))
	} else if !strings.HasPrefix(c.Canvas.BaseURL, "http://") && !strings.HasPrefix(c.Canvas.BaseURL, "https://") {
		errs = append(errs, errors.New("portal base URL must start with http:// or https://"))
	}

	if c.Download.BaseDirectory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Download.ConcurrentTransfers <= 0 {
		errs = append(errs, errors.New("concurrent transfers must be positive"))
	}
	if c.Download.ConcurrentTransfers > 10 {
		errs = append(errs, errors.New("concurrent transfers should not exceed 10"))
	}
	if c.Download.TransferTimeout <= 0 {
		errs = append(errs, errors.New("transfer timeout must be positive"))
	}

	if c.Browser.NavDelay < 0 {
		errs = append(errs, errors.New("navigation delay cannot be negative"))
	}
	if c.Browser.WaitTimeout <= 0 {
		errs = append(errs, errors.New("wait timeout must be positive"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
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

// MergeCommandLineFlags merges parsed command line flags into the
// configuration. Flags take precedence over every other source.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if baseURL, ok := flags["url"].(string); ok && baseURL != "" {
		c.Canvas.BaseURL = baseURL
	}
	if username, ok := flags["username"].(string); ok && username != "" {
		c.Canvas.Username = username
	}
	if dir, ok := flags["dir"].(string); ok && dir != "" {
		c.Download.BaseDirectory = dir
	}
	if noSkip, ok := flags["no-skip"].(bool); ok && noSkip {
		c.Download.SkipExisting = false
	}
	if headless, ok := flags["headless"].(bool); ok && headless {
		c.Browser.Headless = true
	}
	if delay, ok := flags["delay"].(time.Duration); ok && delay > 0 {
		c.Browser.NavDelay = delay
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentTransfers = concurrent
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence:
// command line flags > environment variables > .env file > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".canvasfetch.env"))

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
