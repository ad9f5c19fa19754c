package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "cookies.json", cfg.Session.CookiesFile)
	assert.Equal(t, "tweets_data.csv", cfg.Output.File)
	assert.False(t, cfg.Pagination.StopOnEmpty)
	assert.Equal(t, 3, cfg.Pagination.EmptyBatchLimit)
	assert.Equal(t, []time.Duration{1020 * time.Second, 600 * time.Second, 300 * time.Second}, cfg.Backoff.RateLimitSchedule)
	assert.Equal(t, 900*time.Second, cfg.Backoff.EmptyRunCooldown)
	assert.Equal(t, 2*time.Second, cfg.Backoff.PacingMin)
	assert.Equal(t, 5*time.Second, cfg.Backoff.PacingMax)
	assert.Equal(t, 900, cfg.Quota.Threshold)
	assert.Equal(t, 1200*time.Second, cfg.Quota.Cooldown)
	assert.Equal(t, 5*time.Second, cfg.Connectivity.ProbeTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Connectivity.PollInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("XSCRAPER_HANDLE", "sample_user")
	t.Setenv("XSCRAPER_USERNAME", "bot_account")
	t.Setenv("XSCRAPER_PASSWORD", "hunter2")
	t.Setenv("XSCRAPER_OUTPUT", "/tmp/out.csv")
	t.Setenv("XSCRAPER_STOP_ON_EMPTY", "true")
	t.Setenv("XSCRAPER_STOP_BEFORE", "2020-01-01")
	t.Setenv("XSCRAPER_MAX_PAGES", "12")
	t.Setenv("XSCRAPER_CONNECTIVITY_MAX_WAIT", "2h")
	t.Setenv("XSCRAPER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "sample_user", cfg.Account.Handle)
	assert.Equal(t, "bot_account", cfg.Account.Username)
	assert.Equal(t, "hunter2", cfg.Account.Password)
	assert.Equal(t, "/tmp/out.csv", cfg.Output.File)
	assert.True(t, cfg.Pagination.StopOnEmpty)
	assert.Equal(t, "2020-01-01", cfg.Pagination.StopBefore)
	assert.Equal(t, 12, cfg.Pagination.MaxPages)
	assert.Equal(t, 2*time.Hour, cfg.Connectivity.MaxWait)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvLegacyNames(t *testing.T) {
	t.Setenv("XSCRAPER_USERNAME", "")
	t.Setenv("USER_NAME", "legacy_user")
	t.Setenv("E-MAIL", "legacy@example.com")
	t.Setenv("PASS_WORD", "legacy_pass")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "legacy_user", cfg.Account.Username)
	assert.Equal(t, "legacy@example.com", cfg.Account.Email)
	assert.Equal(t, "legacy_pass", cfg.Account.Password)
	assert.True(t, cfg.HasLoginCredentials())
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("XSCRAPER_STOP_ON_EMPTY", "sometimes")
	t.Setenv("XSCRAPER_MAX_PAGES", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XSCRAPER_STOP_ON_EMPTY")
	assert.Contains(t, err.Error(), "XSCRAPER_MAX_PAGES")
}

func TestLoadFromFile(t *testing.T) {
	t.Run("valid yaml file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := `
account:
  handle: sample_user
session:
  cookies_file: /var/lib/xscraper/cookies.json
output:
  file: /data/posts.csv
pagination:
  stop_on_empty: true
  empty_batch_limit: 5
  stop_before: "2021-06-30"
backoff:
  rate_limit_schedule: [15m, 10m]
  pacing_min: 1s
  pacing_max: 3s
quota:
  threshold: 500
  cooldown: 10m
connectivity:
  poll_interval: 1m
  max_wait: 6h
logging:
  level: warn
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		cfg := DefaultConfig()
		require.NoError(t, cfg.LoadFromFile(configPath))

		assert.Equal(t, "sample_user", cfg.Account.Handle)
		assert.Equal(t, "/var/lib/xscraper/cookies.json", cfg.Session.CookiesFile)
		assert.Equal(t, "/data/posts.csv", cfg.Output.File)
		assert.True(t, cfg.Pagination.StopOnEmpty)
		assert.Equal(t, 5, cfg.Pagination.EmptyBatchLimit)
		assert.Equal(t, []time.Duration{15 * time.Minute, 10 * time.Minute}, cfg.Backoff.RateLimitSchedule)
		assert.Equal(t, time.Second, cfg.Backoff.PacingMin)
		assert.Equal(t, 500, cfg.Quota.Threshold)
		assert.Equal(t, 10*time.Minute, cfg.Quota.Cooldown)
		assert.Equal(t, 6*time.Hour, cfg.Connectivity.MaxWait)
		assert.Equal(t, "warn", cfg.Logging.Level)

		// untouched sections keep their defaults
		assert.Equal(t, 5*time.Second, cfg.Connectivity.ProbeTimeout)

		stop, err := cfg.StopBeforeTime()
		require.NoError(t, err)
		assert.Equal(t, time.Date(2021, 6, 30, 0, 0, 0, 0, time.UTC), stop)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("pagination: [unclosed"), 0644))

		cfg := DefaultConfig()
		err := cfg.LoadFromFile(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"empty output", func(c *Config) { c.Output.File = "" }, "output file is required"},
		{"zero empty limit", func(c *Config) { c.Pagination.EmptyBatchLimit = 0 }, "empty batch limit"},
		{"bad stop date", func(c *Config) { c.Pagination.StopBefore = "01/01/2020" }, "invalid stop_before"},
		{"empty schedule", func(c *Config) { c.Backoff.RateLimitSchedule = nil }, "at least one step"},
		{"inverted pacing", func(c *Config) { c.Backoff.PacingMin = 10 * time.Second }, "pacing range"},
		{"relative probe", func(c *Config) { c.Connectivity.ProbeURL = "google.com" }, "absolute URL"},
		{"negative max wait", func(c *Config) { c.Connectivity.MaxWait = -time.Second }, "max wait"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.File = ""
	cfg.RateLimit.Requests = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output file is required")
	assert.Contains(t, err.Error(), "rate limit requests must be positive")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	original := DefaultConfig()
	original.Account.Handle = "sample_user"
	original.Pagination.StopOnEmpty = true
	require.NoError(t, original.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, original.Account.Handle, loaded.Account.Handle)
	assert.Equal(t, original.Backoff.RateLimitSchedule, loaded.Backoff.RateLimitSchedule)
	assert.Equal(t, original.Quota.Cooldown, loaded.Quota.Cooldown)
	assert.True(t, loaded.Pagination.StopOnEmpty)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"handle":        "@sample_user",
		"output":        "flag.csv",
		"stop-on-empty": true,
		"stop-before":   "2020-01-01",
		"max-pages":     7,
		"resume":        true,
		"max-offline":   time.Hour,
		"log-level":     "debug",
	})

	assert.Equal(t, "sample_user", cfg.Account.Handle)
	assert.Equal(t, "flag.csv", cfg.Output.File)
	assert.True(t, cfg.Pagination.StopOnEmpty)
	assert.Equal(t, "2020-01-01", cfg.Pagination.StopBefore)
	assert.Equal(t, 7, cfg.Pagination.MaxPages)
	assert.True(t, cfg.Pagination.Resume)
	assert.Equal(t, time.Hour, cfg.Connectivity.MaxWait)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad(t *testing.T) {
	t.Run("precedence order", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.yaml")
		content := `
account:
  handle: file_user
output:
  file: file.csv
logging:
  level: warn
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		t.Setenv("XSCRAPER_OUTPUT", "env.csv")
		t.Setenv("XSCRAPER_LOG_LEVEL", "error")

		cfg, err := Load(configPath, map[string]interface{}{"log-level": "debug"})
		require.NoError(t, err)

		assert.Equal(t, "file_user", cfg.Account.Handle) // file only
		assert.Equal(t, "env.csv", cfg.Output.File)      // env beats file
		assert.Equal(t, "debug", cfg.Logging.Level)      // flag beats env
	})

	t.Run("validation failure", func(t *testing.T) {
		cfg, err := Load("", map[string]interface{}{"log-level": "loud"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration validation failed")
		assert.Nil(t, cfg)
	})

	t.Run("loads .env file", func(t *testing.T) {
		tempDir := t.TempDir()
		oldDir, _ := os.Getwd()
		defer os.Chdir(oldDir)
		require.NoError(t, os.Chdir(tempDir))

		t.Setenv("XSCRAPER_HANDLE", "")
		os.Unsetenv("XSCRAPER_HANDLE")
		require.NoError(t, os.WriteFile(".env", []byte("XSCRAPER_HANDLE=dotenv_user\n"), 0644))
		defer os.Unsetenv("XSCRAPER_HANDLE")

		cfg, err := Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, "dotenv_user", cfg.Account.Handle)
	})
}

func TestSanitized(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Account.Password = "hunter2"
	cfg.Account.TOTPSecret = "JBSWY3DPEHPK3PXP"

	s := cfg.Sanitized()
	assert.Equal(t, "********", s.Account.Password)
	assert.Equal(t, "********", s.Account.TOTPSecret)
	assert.Equal(t, "hunter2", cfg.Account.Password)
}
