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

	errs "boorudl/pkg/errors"
	"boorudl/pkg/ratio"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv
const EnvPrefix = "BOORUDL_"

// MaxConcurrentDownloads caps download.concurrent_downloads
const MaxConcurrentDownloads = 16

// Config holds all configuration options for a download run
type Config struct {
	// Site to download from and how to talk to it
	Source SourceConfig `yaml:"source" json:"source"`

	// Tag query and post filters
	Query QueryConfig `yaml:"query" json:"query"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SourceConfig describes the booru site
type SourceConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	// APIType is auto, paginated, offset, danbooru or dapi
	APIType  string `yaml:"api_type" json:"api_type"`
	Username string `yaml:"username" json:"username"`
	APIKey   string `yaml:"api_key" json:"api_key"`
	// UserAgent overrides the built-in agent when set
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
	Proxy     string        `yaml:"proxy" json:"proxy"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
}

// QueryConfig holds the tag query and filter thresholds
type QueryConfig struct {
	IncludeTags string   `yaml:"include_tags" json:"include_tags"`
	ExcludeTags string   `yaml:"exclude_tags" json:"exclude_tags"`
	Ratios      []string `yaml:"ratios" json:"ratios"`
	MinWidth    int      `yaml:"min_width" json:"min_width"`
	MinHeight   int      `yaml:"min_height" json:"min_height"`
	// MinScore is nil when the score filter is disabled
	MinScore *int `yaml:"min_score,omitempty" json:"min_score,omitempty"`
	PerPage  int  `yaml:"per_page" json:"per_page"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
	MaxImages     int    `yaml:"max_images" json:"max_images"`
	// TagFormat is plain or detailed
	TagFormat string `yaml:"tag_format" json:"tag_format"`
}

// RateLimitConfig holds rate limiting configuration for page requests
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	// MaxPerSecond throttles image downloads; 0 means unlimited
	MaxPerSecond float64 `yaml:"max_per_second" json:"max_per_second"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	File    string `yaml:"file" json:"file"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			APIType: "auto",
			Timeout: 30 * time.Second,
		},
		Query: QueryConfig{
			PerPage: 100,
		},
		Output: OutputConfig{
			BaseDirectory: "./downloads",
			MaxImages:     100,
			TagFormat:     "plain",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 1.0,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 1,
			MaxPerSecond:        0,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from BOORUDL_* environment variables
func (c *Config) LoadFromEnv() error {
	var problems []error

	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				problems = append(problems, fmt.Errorf("%s%s: %q is not an integer", EnvPrefix, name, v))
				return
			}
			*dst = n
		}
	}
	float := func(name string, dst *float64) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s%s: %q is not a number", EnvPrefix, name, v))
				return
			}
			*dst = f
		}
	}

	// Source
	str("BASE_URL", &c.Source.BaseURL)
	str("API_TYPE", &c.Source.APIType)
	str("USERNAME", &c.Source.Username)
	str("API_KEY", &c.Source.APIKey)
	str("USER_AGENT", &c.Source.UserAgent)
	str("PROXY", &c.Source.Proxy)
	if v := os.Getenv(EnvPrefix + "TIMEOUT"); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			problems = append(problems, fmt.Errorf("%sTIMEOUT: %w", EnvPrefix, err))
		} else {
			c.Source.Timeout = d
		}
	}

	// Query
	str("INCLUDE_TAGS", &c.Query.IncludeTags)
	str("EXCLUDE_TAGS", &c.Query.ExcludeTags)
	if v := os.Getenv(EnvPrefix + "RATIO"); v != "" {
		c.Query.Ratios = strings.Fields(v)
	}
	num("MIN_WIDTH", &c.Query.MinWidth)
	num("MIN_HEIGHT", &c.Query.MinHeight)
	if v := os.Getenv(EnvPrefix + "MIN_SCORE"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			problems = append(problems, fmt.Errorf("%sMIN_SCORE: %q is not an integer", EnvPrefix, v))
		} else {
			c.Query.MinScore = &n
		}
	}
	num("PER_PAGE", &c.Query.PerPage)

	// Output
	str("OUTPUT_DIR", &c.Output.BaseDirectory)
	num("MAX_IMAGES", &c.Output.MaxImages)
	str("TAG_FORMAT", &c.Output.TagFormat)

	// Rate limiting
	float("RPS", &c.RateLimit.RequestsPerSecond)

	// Downloads
	num("CONCURRENT_DOWNLOADS", &c.Download.ConcurrentDownloads)
	float("DOWNLOAD_RPS", &c.Download.MaxPerSecond)

	// Logging
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FILE", &c.Logging.File)
	if v := os.Getenv("NO_COLOR"); v != "" {
		c.Logging.NoColor = true
	}

	return errors.Join(problems...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
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

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home, _ := os.UserHomeDir()

	// Check in order of precedence
	locations := []string{
		".boorudl.yaml",
		".boorudl.yml",
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".config", "boorudl", "config.yaml"),
			filepath.Join(home, ".config", "boorudl", "config.yml"),
			filepath.Join(home, ".boorudl.yaml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultConfigPath is where `config init` writes when no path is given
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".boorudl.yaml"
	}
	return filepath.Join(home, ".config", "boorudl", "config.yaml")
}

var (
	validAPITypes   = map[string]bool{"auto": true, "paginated": true, "offset": true, "danbooru": true, "dapi": true}
	validTagFormats = map[string]bool{"plain": true, "detailed": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validProxies    = map[string]bool{"http": true, "https": true, "socks5": true, "socks5h": true}
)

// Validate checks if the configuration is valid. Ratio problems carry the
// InvalidRatio kind so callers can abort before any network activity.
func (c *Config) Validate() error {
	var problems []error

	// Source
	if c.Source.BaseURL == "" {
		problems = append(problems, errs.InvalidConfig("base URL is required"))
	} else if u, err := url.Parse(c.Source.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, errs.InvalidConfig(fmt.Sprintf("base URL %q must be an absolute http(s) URL", c.Source.BaseURL)))
	}
	if !validAPITypes[strings.ToLower(c.Source.APIType)] {
		problems = append(problems, errs.InvalidConfig(fmt.Sprintf("invalid api type %q", c.Source.APIType)))
	}
	if c.Source.Proxy != "" {
		if u, err := url.Parse(c.Source.Proxy); err != nil || !validProxies[u.Scheme] || u.Host == "" {
			problems = append(problems, errs.InvalidConfig(fmt.Sprintf("invalid proxy %q", c.Source.Proxy)))
		}
	}
	if c.Source.Timeout <= 0 {
		problems = append(problems, errs.InvalidConfig("timeout must be positive"))
	}

	// Query
	if _, err := c.ParsedRatios(); err != nil {
		problems = append(problems, err)
	}
	if c.Query.MinWidth < 0 {
		problems = append(problems, errs.InvalidConfig("min width cannot be negative"))
	}
	if c.Query.MinHeight < 0 {
		problems = append(problems, errs.InvalidConfig("min height cannot be negative"))
	}
	if c.Query.PerPage <= 0 {
		problems = append(problems, errs.InvalidConfig("per page must be positive"))
	}

	// Output
	if c.Output.BaseDirectory == "" {
		problems = append(problems, errs.InvalidConfig("output directory is required"))
	}
	if c.Output.MaxImages <= 0 {
		problems = append(problems, errs.InvalidConfig("max images must be positive"))
	}
	if !validTagFormats[strings.ToLower(c.Output.TagFormat)] {
		problems = append(problems, errs.InvalidConfig(fmt.Sprintf("invalid tag format %q", c.Output.TagFormat)))
	}

	// Rate limiting
	if c.RateLimit.RequestsPerSecond < 0 {
		problems = append(problems, errs.InvalidConfig("requests per second cannot be negative"))
	}

	// Downloads
	if c.Download.ConcurrentDownloads <= 0 {
		problems = append(problems, errs.InvalidConfig("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > MaxConcurrentDownloads {
		problems = append(problems, errs.InvalidConfig(fmt.Sprintf("concurrent downloads should not exceed %d", MaxConcurrentDownloads)))
	}
	if c.Download.MaxPerSecond < 0 {
		problems = append(problems, errs.InvalidConfig("download rate cannot be negative"))
	}

	// Logging
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		problems = append(problems, errs.InvalidConfig(fmt.Sprintf("invalid log level %q", c.Logging.Level)))
	}

	return errors.Join(problems...)
}

// ParsedRatios parses the configured ratio expressions
func (c *Config) ParsedRatios() ([]float64, error) {
	return ratio.ParseAll(c.Query.Ratios)
}

// Redacted returns a copy with the API key masked, for display
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.Source.APIKey != "" {
		cp.Source.APIKey = "********"
	}
	if c.Query.MinScore != nil {
		score := *c.Query.MinScore
		cp.Query.MinScore = &score
	}
	cp.Query.Ratios = append([]string(nil), c.Query.Ratios...)
	return &cp
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges explicitly set command line flags into the
// configuration. Keys are flag names.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.Source.BaseURL = v
	}
	if v, ok := flags["api-type"].(string); ok && v != "" {
		c.Source.APIType = v
	}
	if v, ok := flags["username"].(string); ok && v != "" {
		c.Source.Username = v
	}
	if v, ok := flags["api-key"].(string); ok && v != "" {
		c.Source.APIKey = v
	}
	if v, ok := flags["user-agent"].(string); ok && v != "" {
		c.Source.UserAgent = v
	}
	if v, ok := flags["proxy"].(string); ok && v != "" {
		c.Source.Proxy = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok {
		c.Source.Timeout = v
	}

	if v, ok := flags["include-tags"].(string); ok {
		c.Query.IncludeTags = v
	}
	if v, ok := flags["exclude-tags"].(string); ok {
		c.Query.ExcludeTags = v
	}
	if v, ok := flags["ratio"].([]string); ok {
		c.Query.Ratios = v
	}
	if v, ok := flags["min-width"].(int); ok {
		c.Query.MinWidth = v
	}
	if v, ok := flags["min-height"].(int); ok {
		c.Query.MinHeight = v
	}
	if v, ok := flags["min-score"].(int); ok {
		c.Query.MinScore = &v
	}
	if v, ok := flags["per-page"].(int); ok {
		c.Query.PerPage = v
	}

	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["max-images"].(int); ok {
		c.Output.MaxImages = v
	}
	if v, ok := flags["tag-format"].(string); ok && v != "" {
		c.Output.TagFormat = v
	}

	if v, ok := flags["rps"].(float64); ok {
		c.RateLimit.RequestsPerSecond = v
	}
	if v, ok := flags["concurrent"].(int); ok {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["download-rps"].(float64); ok {
		c.Download.MaxPerSecond = v
	}

	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
	if v, ok := flags["no-color"].(bool); ok && v {
		c.Logging.NoColor = true
	}
}

// Resolve merges all sources without validating.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Resolve(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".boorudl.env"))
	}

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	return config, nil
}

// Load resolves the configuration and validates it
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	config, err := Resolve(configPath, flags)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
