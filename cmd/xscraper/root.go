package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"xscraper/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	logFile       string
	noColor       bool
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xscraper",
	Short: "Harvest an X account's post history into a CSV file",
	Long: `xscraper pages through one X (Twitter) account's post history and appends
every post to a CSV file, one row at a time.

Features:
  - Rate limit cool-downs that follow X's reset header or a fixed ladder
  - Empty-run and soft quota pauses with a visible countdown
  - Waits out network outages instead of burning retries
  - Crash-safe appends; restart with --resume to continue from the last page
  - Stored sessions and credentials (system keychain or encrypted file)

Run 'xscraper <handle>' as a shortcut for 'xscraper scrape <handle>'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and exits with the
// code the outcome maps to
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !isReported(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization cycle
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.Output = io.Discard
			if logLevel == "info" {
				logLevel = "error"
			}
		}
		if verbose && logLevel == "info" {
			logLevel = "debug"
		}
		if noColor {
			ui.DisableColor()
		}

		// Logo only for harvest runs
		if cmd.Name() == "scrape" || cmd == rootCmd {
			ui.PrintLogo()
		}
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.xscraper.yaml or ~/.config/xscraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send a desktop notification when a run ends")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	// Version template
	rootCmd.SetVersionTemplate(`xscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	// Disable default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
