package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the exporter reads.
const EnvPrefix = "KNEXPORT_"

// Config holds all configuration options for the exporter
type Config struct {
	Service   ServiceConfig   `yaml:"service" json:"service"`
	Export    ExportConfig    `yaml:"export" json:"export"`
	Discovery DiscoveryConfig `yaml:"discovery" json:"discovery"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry" json:"retry"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	UI        UIConfig        `yaml:"ui" json:"ui"`
}

// ServiceConfig describes the remote childcare service and the session used against it
type ServiceConfig struct {
	BaseURL   string        `yaml:"base_url" json:"base_url"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Timezone  string        `yaml:"timezone" json:"timezone"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	SessionID string        `yaml:"session_id" json:"session_id"`
	CSRFToken string        `yaml:"csrf_token" json:"csrf_token"`
}

// ExportConfig tunes the pagination walk
type ExportConfig struct {
	PageSize         int           `yaml:"page_size" json:"page_size"`
	MaxPages         int           `yaml:"max_pages" json:"max_pages"`
	ItemDelay        time.Duration `yaml:"item_delay" json:"item_delay"`
	AssetDelay       time.Duration `yaml:"asset_delay" json:"asset_delay"`
	TrustNewestFirst bool          `yaml:"trust_newest_first" json:"trust_newest_first"`
}

// DiscoveryConfig tunes the child-id heuristic used when no request was observed
type DiscoveryConfig struct {
	ChildFieldHint string `yaml:"child_field_hint" json:"child_field_hint"`
	MinChildID     int64  `yaml:"min_child_id" json:"min_child_id"`
	MaxScanDepth   int    `yaml:"max_scan_depth" json:"max_scan_depth"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	MaxNameLength int    `yaml:"max_name_length" json:"max_name_length"`
	SaveMetadata  bool   `yaml:"save_metadata" json:"save_metadata"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig controls retries of API requests that failed in transport
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// UIConfig holds terminal presentation preferences
type UIConfig struct {
	Notifications bool `yaml:"notifications" json:"notifications"`
	Color         bool `yaml:"color" json:"color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:   "https://www.kidsnote.com",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			Timezone:  "Asia/Seoul",
			Timeout:   60 * time.Second,
		},
		Export: ExportConfig{
			PageSize:         100,
			MaxPages:         5000,
			ItemDelay:        300 * time.Millisecond,
			AssetDelay:       150 * time.Millisecond,
			TrustNewestFirst: true,
		},
		Discovery: DiscoveryConfig{
			ChildFieldHint: "child",
			MinChildID:     1000,
			MaxScanDepth:   8,
		},
		Output: OutputConfig{
			BaseDirectory: "./kidsnote-export",
			MaxNameLength: 80,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     10 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			Notifications: true,
			Color:         true,
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
	setBool := func(name string, dst *bool) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = b
	}
	setDuration := func(name string, dst *time.Duration) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = d
	}

	setString("BASE_URL", &c.Service.BaseURL)
	setString("USER_AGENT", &c.Service.UserAgent)
	setString("TIMEZONE", &c.Service.Timezone)
	setString("SESSION_ID", &c.Service.SessionID)
	setString("CSRF_TOKEN", &c.Service.CSRFToken)
	setInt("PAGE_SIZE", &c.Export.PageSize)
	setInt("MAX_PAGES", &c.Export.MaxPages)
	setDuration("ITEM_DELAY", &c.Export.ItemDelay)
	setDuration("ASSET_DELAY", &c.Export.AssetDelay)
	setBool("TRUST_NEWEST_FIRST", &c.Export.TrustNewestFirst)
	setString("OUTPUT_DIR", &c.Output.BaseDirectory)
	setBool("SAVE_METADATA", &c.Output.SaveMetadata)
	setInt("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	setInt("RETRY_ATTEMPTS", &c.Retry.MaxAttempts)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FILE", &c.Logging.File)
	setBool("NOTIFICATIONS", &c.UI.Notifications)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
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

// FindConfigFile searches the standard locations and returns the first existing file.
func FindConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".knexport.yaml",
		".knexport.yml",
		filepath.Join(home, ".config", "knexport", "config.yaml"),
		filepath.Join(home, ".config", "knexport", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultConfigPath is where `config init` writes when no path is given.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "knexport", "config.yaml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Service.BaseURL)
	if err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid service base URL %q", c.Service.BaseURL))
	} else if u.Scheme != "https" {
		errs = append(errs, errors.New("service base URL must use https"))
	}
	if _, err := time.LoadLocation(c.Service.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q", c.Service.Timezone))
	}
	if c.Service.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	if c.Export.PageSize <= 0 {
		errs = append(errs, errors.New("page size must be positive"))
	}
	if c.Export.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}
	if c.Export.ItemDelay < 0 || c.Export.AssetDelay < 0 {
		errs = append(errs, errors.New("delays cannot be negative"))
	}

	if c.Discovery.MaxScanDepth <= 0 {
		errs = append(errs, errors.New("discovery scan depth must be positive"))
	}
	if c.Discovery.MinChildID < 0 {
		errs = append(errs, errors.New("minimum child id cannot be negative"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Output.MaxNameLength < 8 {
		errs = append(errs, errors.New("max name length must be at least 8"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	return c.SaveWithHeader(path, "")
}

// SaveWithHeader writes header, normally a YAML comment block, above the config.
func (c *Config) SaveWithHeader(path, header string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append([]byte(header), data...)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.Service.BaseURL = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["page-size"].(int); ok && v > 0 {
		c.Export.PageSize = v
	}
	if v, ok := flags["save-metadata"].(bool); ok {
		c.Output.SaveMetadata = v
	}
	if v, ok := flags["trust-order"].(bool); ok {
		c.Export.TrustNewestFirst = v
	}
	if v, ok := flags["notify"].(bool); ok {
		c.UI.Notifications = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: command line flags > environment (.env included) > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".knexport.env"))
	}

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

// Host returns the host part of the configured service base URL.
func (c *Config) Host() string {
	u, err := url.Parse(c.Service.BaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}
