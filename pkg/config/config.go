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

// DateLayout is the layout accepted for pagination.stop_before
const DateLayout = "2006-01-02"

// Config holds all configuration options for the X post harvester
type Config struct {
	// Target account and login credentials
	Account AccountConfig `yaml:"account" json:"account"`

	// Stored session token
	Session SessionConfig `yaml:"session" json:"session"`

	// CSV output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Pagination and termination policy
	Pagination PaginationConfig `yaml:"pagination" json:"pagination"`

	// Cool-down schedule
	Backoff BackoffConfig `yaml:"backoff" json:"backoff"`

	// Soft quota on saved records
	Quota QuotaConfig `yaml:"quota" json:"quota"`

	// Reachability probe
	Connectivity ConnectivityConfig `yaml:"connectivity" json:"connectivity"`

	// Client-side request budget
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// AccountConfig holds the target handle and the credentials used to log in
type AccountConfig struct {
	Handle     string `yaml:"handle" json:"handle"`
	Username   string `yaml:"username" json:"username"`
	Email      string `yaml:"email" json:"email"`
	Password   string `yaml:"password" json:"password"`
	TOTPSecret string `yaml:"totp_secret" json:"totp_secret"`
}

// SessionConfig holds session persistence settings
type SessionConfig struct {
	CookiesFile string        `yaml:"cookies_file" json:"cookies_file"`
	TTL         time.Duration `yaml:"ttl" json:"ttl"`
	UserAgent   string        `yaml:"user_agent" json:"user_agent"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// OutputConfig holds CSV output configuration
type OutputConfig struct {
	File         string `yaml:"file" json:"file"`
	SyncEveryRow bool   `yaml:"sync_every_row" json:"sync_every_row"`
}

// PaginationConfig holds the page loop policy
type PaginationConfig struct {
	PageSize        int    `yaml:"page_size" json:"page_size"`
	StopOnEmpty     bool   `yaml:"stop_on_empty" json:"stop_on_empty"`
	EmptyBatchLimit int    `yaml:"empty_batch_limit" json:"empty_batch_limit"`
	StopBefore      string `yaml:"stop_before" json:"stop_before"`
	MaxPages        int    `yaml:"max_pages" json:"max_pages"`
	Resume          bool   `yaml:"resume" json:"resume"`
}

// BackoffConfig holds the delay schedule for rate limits, empty runs and pacing
type BackoffConfig struct {
	RateLimitSchedule []time.Duration `yaml:"rate_limit_schedule" json:"rate_limit_schedule"`
	UseResetHint      bool            `yaml:"use_reset_hint" json:"use_reset_hint"`
	ResetMargin       time.Duration   `yaml:"reset_margin" json:"reset_margin"`
	EmptyRunCooldown  time.Duration   `yaml:"empty_run_cooldown" json:"empty_run_cooldown"`
	PacingMin         time.Duration   `yaml:"pacing_min" json:"pacing_min"`
	PacingMax         time.Duration   `yaml:"pacing_max" json:"pacing_max"`
	ProgressInterval  time.Duration   `yaml:"progress_interval" json:"progress_interval"`
}

// QuotaConfig holds the soft quota pause settings
type QuotaConfig struct {
	Threshold int           `yaml:"threshold" json:"threshold"`
	Cooldown  time.Duration `yaml:"cooldown" json:"cooldown"`
}

// ConnectivityConfig holds the reachability probe settings
type ConnectivityConfig struct {
	ProbeURL     string        `yaml:"probe_url" json:"probe_url"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	MaxWait      time.Duration `yaml:"max_wait" json:"max_wait"`
}

// RateLimitConfig holds the proactive request budget
type RateLimitConfig struct {
	Requests int           `yaml:"requests" json:"requests"`
	Window   time.Duration `yaml:"window" json:"window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			CookiesFile: "cookies.json",
			TTL:         30 * 24 * time.Hour,
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
			Timeout:     30 * time.Second,
		},
		Output: OutputConfig{
			File:         "tweets_data.csv",
			SyncEveryRow: true,
		},
		Pagination: PaginationConfig{
			PageSize:        20,
			StopOnEmpty:     false,
			EmptyBatchLimit: 3,
			StopBefore:      "",
			MaxPages:        0, // 0 means no limit
			Resume:          false,
		},
		Backoff: BackoffConfig{
			RateLimitSchedule: []time.Duration{1020 * time.Second, 600 * time.Second, 300 * time.Second},
			UseResetHint:      true,
			ResetMargin:       5 * time.Second,
			EmptyRunCooldown:  900 * time.Second,
			PacingMin:         2 * time.Second,
			PacingMax:         5 * time.Second,
			ProgressInterval:  30 * time.Second,
		},
		Quota: QuotaConfig{
			Threshold: 900,
			Cooldown:  1200 * time.Second,
		},
		Connectivity: ConnectivityConfig{
			ProbeURL:     "https://www.google.com",
			ProbeTimeout: 5 * time.Second,
			PollInterval: 5 * time.Minute,
			MaxWait:      0, // 0 waits forever
		},
		RateLimit: RateLimitConfig{
			Requests: 50,
			Window:   15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// firstEnv returns the value of the first set environment variable
func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	// Account; the bare USER_NAME, E-MAIL and PASS_WORD names are still honoured
	if v := firstEnv("XSCRAPER_HANDLE"); v != "" {
		c.Account.Handle = v
	}
	if v := firstEnv("XSCRAPER_USERNAME", "USER_NAME"); v != "" {
		c.Account.Username = v
	}
	if v := firstEnv("XSCRAPER_EMAIL", "E-MAIL"); v != "" {
		c.Account.Email = v
	}
	if v := firstEnv("XSCRAPER_PASSWORD", "PASS_WORD"); v != "" {
		c.Account.Password = v
	}
	if v := os.Getenv("XSCRAPER_TOTP_SECRET"); v != "" {
		c.Account.TOTPSecret = v
	}

	if v := os.Getenv("XSCRAPER_COOKIES_FILE"); v != "" {
		c.Session.CookiesFile = v
	}
	if v := os.Getenv("XSCRAPER_USER_AGENT"); v != "" {
		c.Session.UserAgent = v
	}
	if v := os.Getenv("XSCRAPER_OUTPUT"); v != "" {
		c.Output.File = v
	}

	if v := os.Getenv("XSCRAPER_STOP_ON_EMPTY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("XSCRAPER_STOP_ON_EMPTY: %w", err))
		} else {
			c.Pagination.StopOnEmpty = b
		}
	}
	if v := os.Getenv("XSCRAPER_STOP_BEFORE"); v != "" {
		c.Pagination.StopBefore = v
	}
	if v := os.Getenv("XSCRAPER_MAX_PAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("XSCRAPER_MAX_PAGES: %w", err))
		} else {
			c.Pagination.MaxPages = n
		}
	}

	if v := os.Getenv("XSCRAPER_PROBE_URL"); v != "" {
		c.Connectivity.ProbeURL = v
	}
	if v := os.Getenv("XSCRAPER_CONNECTIVITY_MAX_WAIT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("XSCRAPER_CONNECTIVITY_MAX_WAIT: %w", err))
		} else {
			c.Connectivity.MaxWait = d
		}
	}

	if v := os.Getenv("XSCRAPER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("XSCRAPER_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
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
	home := os.Getenv("HOME")
	locations := []string{
		".xscraper.yaml",
		".xscraper.yml",
		"xscraper.yaml",
		filepath.Join(home, ".config", "xscraper", "config.yaml"),
		filepath.Join(home, ".config", "xscraper", "config.yml"),
		filepath.Join(home, ".xscraper.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// StopBeforeTime parses the early-stop threshold; zero time means disabled
func (c *Config) StopBeforeTime() (time.Time, error) {
	if strings.TrimSpace(c.Pagination.StopBefore) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(c.Pagination.StopBefore))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stop_before %q (want %s): %w", c.Pagination.StopBefore, DateLayout, err)
	}
	return t, nil
}

// HasLoginCredentials reports whether a password login can be attempted
func (c *Config) HasLoginCredentials() bool {
	return c.Account.Username != "" && c.Account.Password != ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Session.CookiesFile == "" {
		errs = append(errs, errors.New("session cookies file is required"))
	}
	if c.Session.Timeout <= 0 {
		errs = append(errs, errors.New("session timeout must be positive"))
	}
	if c.Output.File == "" {
		errs = append(errs, errors.New("output file is required"))
	}

	if c.Pagination.PageSize <= 0 || c.Pagination.PageSize > 100 {
		errs = append(errs, errors.New("page size must be between 1 and 100"))
	}
	if c.Pagination.EmptyBatchLimit <= 0 {
		errs = append(errs, errors.New("empty batch limit must be positive"))
	}
	if c.Pagination.MaxPages < 0 {
		errs = append(errs, errors.New("max pages cannot be negative"))
	}
	if _, err := c.StopBeforeTime(); err != nil {
		errs = append(errs, err)
	}

	if len(c.Backoff.RateLimitSchedule) == 0 {
		errs = append(errs, errors.New("rate limit schedule must have at least one step"))
	}
	for i, d := range c.Backoff.RateLimitSchedule {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("rate limit schedule step %d must be positive", i))
		}
	}
	if c.Backoff.EmptyRunCooldown < 0 || c.Backoff.ResetMargin < 0 {
		errs = append(errs, errors.New("cool-down durations cannot be negative"))
	}
	if c.Backoff.PacingMin < 0 || c.Backoff.PacingMax < c.Backoff.PacingMin {
		errs = append(errs, errors.New("pacing range must satisfy 0 <= min <= max"))
	}
	if c.Backoff.ProgressInterval <= 0 {
		errs = append(errs, errors.New("progress interval must be positive"))
	}

	if c.Quota.Threshold < 0 {
		errs = append(errs, errors.New("quota threshold cannot be negative"))
	}
	if c.Quota.Cooldown < 0 {
		errs = append(errs, errors.New("quota cool-down cannot be negative"))
	}

	if u, err := url.Parse(c.Connectivity.ProbeURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, errors.New("connectivity probe URL must be an absolute URL"))
	}
	if c.Connectivity.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("probe timeout must be positive"))
	}
	if c.Connectivity.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Connectivity.MaxWait < 0 {
		errs = append(errs, errors.New("connectivity max wait cannot be negative"))
	}

	if c.RateLimit.Requests <= 0 {
		errs = append(errs, errors.New("rate limit requests must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
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

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Sanitized returns a copy with secrets masked, for display
func (c *Config) Sanitized() *Config {
	cp := *c
	cp.Backoff.RateLimitSchedule = append([]time.Duration(nil), c.Backoff.RateLimitSchedule...)
	cp.Account.Password = mask(c.Account.Password)
	cp.Account.TOTPSecret = mask(c.Account.TOTPSecret)
	return &cp
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if handle, ok := flags["handle"].(string); ok && handle != "" {
		c.Account.Handle = strings.TrimPrefix(handle, "@")
	}
	if username, ok := flags["username"].(string); ok && username != "" {
		c.Account.Username = username
	}
	if cookies, ok := flags["cookies"].(string); ok && cookies != "" {
		c.Session.CookiesFile = cookies
	}
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Output.File = output
	}
	if stop, ok := flags["stop-on-empty"].(bool); ok {
		c.Pagination.StopOnEmpty = stop
	}
	if before, ok := flags["stop-before"].(string); ok && before != "" {
		c.Pagination.StopBefore = before
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages >= 0 {
		c.Pagination.MaxPages = maxPages
	}
	if resume, ok := flags["resume"].(bool); ok {
		c.Pagination.Resume = resume
	}
	if maxWait, ok := flags["max-offline"].(time.Duration); ok && maxWait >= 0 {
		c.Connectivity.MaxWait = maxWait
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".xscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
