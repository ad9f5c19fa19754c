package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"xscraper/pkg/auth"
	"xscraper/pkg/backoff"
	"xscraper/pkg/checkpoint"
	"xscraper/pkg/config"
	"xscraper/pkg/connectivity"
	"xscraper/pkg/harvest"
	"xscraper/pkg/logger"
	"xscraper/pkg/ratelimit"
	"xscraper/pkg/sink"
	"xscraper/pkg/ui"
	"xscraper/pkg/x"
)

var (
	// Scrape command flags
	outputFile   string
	cookiesFile  string
	accountName  string
	stopOnEmpty  bool
	stopBefore   string
	maxPages     int
	maxOffline   time.Duration
	resumeRun    bool
	forceRestart bool
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape <handle>",
	Short: "Append an account's post history to a CSV file",
	Long: `Page through an X account's post history, newest first, and append every
post to the output CSV as soon as it arrives.

A session is needed. It is read from the cookies file when present; otherwise
xscraper logs in with credentials from:
  - Flags or environment variables (XSCRAPER_USERNAME, XSCRAPER_PASSWORD, ...)
  - Stored credentials (use 'xscraper auth login' to store)
  - Configuration file

The run ends when the timeline is exhausted, a stop condition holds, or you
press Ctrl+C. Everything fetched before an interrupt is already on disk.`,
	Example: `  # Harvest with default settings into tweets_data.csv
  xscraper scrape nasa

  # Custom output file, stop at the first empty page
  xscraper scrape nasa --output nasa.csv --stop-on-empty

  # Stop once posts older than 2024-01-01 are reached
  xscraper scrape nasa --stop-before 2024-01-01

  # Use a specific stored account
  xscraper scrape nasa --account mybot

  # Continue an interrupted run from its last page
  xscraper scrape nasa --resume`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	registerScrapeFlags(scrapeCmd)
	// Also add these flags to root command so 'xscraper <handle>' works
	registerScrapeFlags(rootCmd)

	// Make scrape the default command when the first argument is not a subcommand
	rootCmd.Args = cobra.ArbitraryArgs
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 && !isKnownCommand(args[0]) {
			return runScrape(cmd, args[:1])
		}
		return cmd.Help()
	}
}

func registerScrapeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "CSV output file (default tweets_data.csv)")
	cmd.Flags().StringVar(&cookiesFile, "cookies", "", "session file (default cookies.json)")
	cmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account for login")
	cmd.Flags().BoolVar(&stopOnEmpty, "stop-on-empty", false, "stop at the first empty page instead of cooling down")
	cmd.Flags().StringVar(&stopBefore, "stop-before", "", "stop after the first post created before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 = no limit)")
	cmd.Flags().DurationVar(&maxOffline, "max-offline", 0, "give up after being offline this long (0 = wait forever)")
	cmd.Flags().BoolVar(&resumeRun, "resume", false, "resume from the last checkpoint and keep one while running")
	cmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard an existing checkpoint before starting")
}

func isKnownCommand(arg string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == arg || cmd.HasAlias(arg) {
			return true
		}
	}
	return arg == "help"
}

// scrapeFlags builds the flag overrides for config.Load; only flags the user
// set take precedence over env and file values
func scrapeFlags(cmd *cobra.Command, handle string) map[string]interface{} {
	flags := map[string]interface{}{"handle": handle}
	changed := cmd.Flags().Changed

	if changed("output") {
		flags["output"] = outputFile
	}
	if changed("cookies") {
		flags["cookies"] = cookiesFile
	}
	if changed("stop-on-empty") {
		flags["stop-on-empty"] = stopOnEmpty
	}
	if changed("stop-before") {
		flags["stop-before"] = stopBefore
	}
	if changed("max-pages") {
		flags["max-pages"] = maxPages
	}
	if changed("max-offline") {
		flags["max-offline"] = maxOffline
	}
	if changed("resume") {
		flags["resume"] = resumeRun
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	return flags
}

// credentialSource is the part of auth.Manager used to find login credentials
type credentialSource interface {
	Retrieve(username string) (*auth.Account, error)
	RetrieveDefault() (*auth.Account, error)
}

// resolveCredentials prefers credentials from flags, env and config, then a
// named stored account, then the newest stored account
func resolveCredentials(cfg *config.Config, account string, src credentialSource, log logger.Logger) x.Credentials {
	creds := x.Credentials{
		Username:   cfg.Account.Username,
		Email:      cfg.Account.Email,
		Password:   cfg.Account.Password,
		TOTPSecret: cfg.Account.TOTPSecret,
	}
	if account == "" && cfg.HasLoginCredentials() {
		return creds
	}
	if src == nil {
		return creds
	}

	var (
		stored *auth.Account
		err    error
	)
	if account != "" {
		stored, err = src.Retrieve(account)
	} else {
		stored, err = src.RetrieveDefault()
	}
	if err != nil || stored == nil {
		log.WithError(err).DebugWithFields("No stored credentials", map[string]interface{}{"account": account})
		return creds
	}

	return x.Credentials{
		Username:   stored.Username,
		Email:      stored.Email,
		Password:   stored.Password,
		TOTPSecret: stored.TOTPSecret,
	}
}

// resumeFrom prepares checkpointing for a run. With resume set, a checkpoint
// for the same output file seeds the run config and returns the saved count;
// anything else starts a fresh checkpoint
func resumeFrom(m *checkpoint.Manager, rc *harvest.RunConfig, output string, log logger.Logger) (int, error) {
	cp, err := m.Load()
	if err != nil {
		log.WithError(err).Warn("Ignoring unreadable checkpoint")
		cp = nil
	}
	if cp != nil && cp.OutputFile == output && cp.Cursor != "" {
		rc.StartCursor = cp.Cursor
		rc.StartPages = cp.Pages
		log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
			"pages":       cp.Pages,
			"total_saved": cp.TotalSaved,
		})
		return cp.TotalSaved, nil
	}
	if cp != nil {
		log.InfoWithFields("Checkpoint does not match this run, starting over", map[string]interface{}{
			"checkpoint_output": cp.OutputFile,
			"output":            output,
		})
	}
	if _, err := m.Start(rc.Handle, output); err != nil {
		return 0, err
	}
	return 0, nil
}

func runScrape(cmd *cobra.Command, args []string) error {
	handle := strings.TrimPrefix(strings.TrimSpace(args[0]), "@")

	cfg, err := config.Load(configFile, scrapeFlags(cmd, handle))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return reported(err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		return reported(err)
	}
	log := logger.GetLogger()

	rc, err := harvest.RunConfigFromConfig(cfg)
	if err != nil {
		ui.PrintError("Invalid run configuration", err.Error())
		return reported(err)
	}

	ui.PrintInfo("Target Account", "@"+rc.Handle)
	ui.PrintInfo("Output", cfg.Output.File)

	var creds x.Credentials
	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Credential manager unavailable")
		creds = resolveCredentials(cfg, accountName, nil, log)
	} else {
		creds = resolveCredentials(cfg, accountName, manager, log)
	}

	waiter := backoff.NewTimedWaiter(cfg.Backoff.ProgressInterval, log)
	controller := backoff.NewController(backoff.FromConfig(cfg.Backoff, cfg.Quota))
	monitor := connectivity.New(cfg.Connectivity, waiter, log)

	sessions := x.NewSessionStore(cfg.Session.CookiesFile, cfg.Session.TTL)
	prov := x.NewProvider(sessions, creds, x.Options{
		UserAgent: cfg.Session.UserAgent,
		Timeout:   cfg.Session.Timeout,
		PageSize:  cfg.Pagination.PageSize,
		Budget:    ratelimit.NewTokenBucket(cfg.RateLimit.Requests, cfg.RateLimit.Window),
		Logger:    log,
	})

	var checkpoints *checkpoint.Manager
	if cfg.Pagination.Resume || forceRestart {
		checkpoints, err = checkpoint.NewManager(rc.Handle, log)
		if err != nil {
			ui.PrintError("Failed to open checkpoint", err.Error())
			return reported(err)
		}
		if forceRestart {
			if err := checkpoints.Delete(); err != nil {
				log.WithError(err).Warn("Failed to discard checkpoint")
			}
		}
	}

	initialTotal := 0
	if cfg.Pagination.Resume {
		initialTotal, err = resumeFrom(checkpoints, &rc, cfg.Output.File, log)
		if err != nil {
			ui.PrintError("Failed to start checkpoint", err.Error())
			return reported(err)
		}
	}

	out, err := sink.Open(cfg.Output.File, sink.Options{
		SyncEveryRow:   cfg.Output.SyncEveryRow,
		QuotaThreshold: cfg.Quota.Threshold,
		QuotaCooldown:  cfg.Quota.Cooldown,
		InitialTotal:   initialTotal,
	}, waiter, log)
	if err != nil {
		ui.PrintError("Failed to open output file", err.Error())
		return reported(err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil {
			log.WithError(cerr).Error("Failed to close output file")
		}
	}()

	driver := harvest.New(rc, prov, monitor, controller, waiter, out, log)
	if cfg.Pagination.Resume {
		driver.WithCheckpointer(checkpoints)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintHighlight("[HARVEST STARTED]")
	res, err := driver.Run(ctx)

	if res != nil {
		ui.PrintSummary(ui.Summary{
			Handle:         rc.Handle,
			Output:         out.Path(),
			Pages:          res.Pages,
			TotalSaved:     res.TotalSaved,
			Skipped:        res.Skipped,
			RateLimitHits:  res.RateLimitHits,
			EmptyCooldowns: res.EmptyCooldowns,
			Reason:         res.Reason,
			Elapsed:        res.Duration,
		})
	}

	notifier := ui.NewNotifier(notifications)
	switch {
	case err == nil:
		if checkpoints != nil && cfg.Pagination.Resume && res.Reason == harvest.ReasonExhausted {
			if derr := checkpoints.Delete(); derr != nil {
				log.WithError(derr).Warn("Failed to remove finished checkpoint")
			}
		}
		notifier.SendSuccess("Harvest complete", fmt.Sprintf("@%s: %d posts saved", rc.Handle, res.TotalSaved))
		return nil
	case exitCode(err) == 0:
		ui.PrintWarning("Interrupted; rerun with --resume to continue")
		return reported(err)
	default:
		notifier.SendError("Harvest failed", err.Error())
		return reported(err)
	}
}
