package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"xscraper/pkg/config"
	"xscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage xscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (XSCRAPER_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.xscraper.yaml'
unless a different path is specified with the --config flag.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging all sources.

Passwords and TOTP secrets are masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration from all sources and report every invalid value.

This command checks:
  - YAML syntax
  - Value types and ranges
  - The stop_before date format
  - Output and log file directories`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# xscraper configuration file
#
# Every option can also be set with an XSCRAPER_* environment variable,
# for example XSCRAPER_USERNAME, XSCRAPER_PASSWORD or XSCRAPER_OUTPUT.

# Target account and login credentials
account:
  # Handle to harvest, without the @ (usually passed on the command line)
  handle: ""

  # Login used when no stored session exists. Prefer 'xscraper auth login'
  # or environment variables over putting the password here.
  username: ""
  email: ""
  password: ""
  # Base32 secret for accounts with two-factor authentication
  totp_secret: ""

# Stored session
session:
  # Session cookies written after login (mode 0600)
  cookies_file: "cookies.json"
  # Sessions older than this are discarded and a fresh login is made
  ttl: 720h
  # Leave unset to use a current desktop Chrome user agent
  # user_agent: ""
  timeout: 30s

# CSV output
output:
  file: "tweets_data.csv"
  # fsync after every row; slower but loses nothing on power failure
  sync_every_row: true

# Page loop
pagination:
  # Posts requested per page (1-100)
  page_size: 20
  # Stop at the first empty page instead of counting it
  stop_on_empty: false
  # Consecutive empty pages that trigger the empty-run cool-down
  empty_batch_limit: 3
  # Stop after the first post created before this date (YYYY-MM-DD)
  stop_before: ""
  # Stop after this many pages; 0 means no limit
  max_pages: 0
  # Keep a checkpoint and continue from it on the next run
  resume: false

# Cool-downs
backoff:
  # Waits after consecutive rate limit responses; the last step repeats
  rate_limit_schedule: [17m, 10m, 5m]
  # Wait until X's x-rate-limit-reset time when it is sent
  use_reset_hint: true
  reset_margin: 5s
  empty_run_cooldown: 15m
  # Random delay between page requests
  pacing_min: 2s
  pacing_max: 5s
  # How often a countdown line is logged while waiting
  progress_interval: 30s

# Pause after this many saved posts; 0 disables
quota:
  threshold: 900
  cooldown: 20m

# Network reachability probe
connectivity:
  probe_url: "https://www.google.com"
  probe_timeout: 5s
  poll_interval: 5m
  # Give up after being offline this long; 0 waits forever
  max_wait: 0s

# Client-side request budget
rate_limit:
  requests: 50
  window: 15m

# Logging
logging:
  # debug, info, warn, error
  level: "info"
  # Optional JSON log file; console output is always on
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".xscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return reported(fmt.Errorf("%s already exists", configPath))
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ui.PrintError("Failed to create configuration directory", err.Error())
			return reported(err)
		}
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		return reported(err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store login credentials with 'xscraper auth login'")
	fmt.Println("2. Run 'xscraper config validate' to check the configuration")
	fmt.Println("3. Start harvesting with 'xscraper scrape <handle>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return reported(err)
	}

	data, err := yaml.Marshal(cfg.Sanitized())
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		return reported(err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (XSCRAPER_*) and .env files")
	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source != "" {
		fmt.Printf("3. Configuration file: %s\n", source)
	} else {
		fmt.Println("3. Configuration file: (none found)")
	}
	fmt.Println("4. Default values")
	return nil
}

// configWarnings reports settings that load fine but will likely fail a run
func configWarnings(cfg *config.Config) []string {
	var warnings []string

	if _, err := os.Stat(cfg.Session.CookiesFile); err != nil && !cfg.HasLoginCredentials() {
		warnings = append(warnings, "no session file and no login credentials configured (stored credentials may still apply)")
	}
	if cfg.Account.Password != "" {
		warnings = append(warnings, "password is set in plain text; consider 'xscraper auth login'")
	}
	if cfg.Quota.Threshold > 0 && cfg.Quota.Cooldown == 0 {
		warnings = append(warnings, "quota threshold is set but the quota cool-down is zero")
	}
	if cfg.Backoff.PacingMax == 0 {
		warnings = append(warnings, "pacing is disabled; requests will be sent back to back")
	}
	return warnings
}

// configProblems checks that output locations are writable
func configProblems(cfg *config.Config) []string {
	var problems []string
	for label, path := range map[string]string{
		"output": cfg.Output.File,
		"log":    cfg.Logging.File,
	} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create %s directory: %v", label, err))
		}
	}
	return problems
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source != "" {
		ui.PrintInfo("Validating configuration", source)
	} else {
		ui.PrintInfo("Validating configuration", "(defaults and environment only)")
	}

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return reported(err)
	}

	if problems := configProblems(cfg); len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return reported(fmt.Errorf("%d configuration errors", len(problems)))
	}

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output file: %s\n", cfg.Output.File)
	fmt.Printf("  Session file: %s\n", cfg.Session.CookiesFile)
	fmt.Printf("  Page size: %d\n", cfg.Pagination.PageSize)
	fmt.Printf("  Rate limit schedule: %v\n", cfg.Backoff.RateLimitSchedule)
	fmt.Printf("  Request budget: %d per %s\n", cfg.RateLimit.Requests, cfg.RateLimit.Window)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
