package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"xscraper/pkg/auth"
	"xscraper/pkg/config"
	"xscraper/pkg/logger"
	"xscraper/pkg/ui"
	"xscraper/pkg/x"
)

var (
	// auth flags
	verifyLogin   bool
	removeSession bool
	importToken   string
	importCT0     string
	importUser    string
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage X credentials and sessions",
	Long: `Manage stored X login credentials and the session file.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your credentials, session file or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store X login credentials securely",
	Long: `Store X login credentials in the system keychain or encrypted file.

You will be prompted for:
  - X username (if not provided)
  - Email (optional, used when X asks to confirm the account)
  - Password
  - TOTP secret (optional, needed when two-factor authentication is on)

With --verify the credentials are used to log in right away and the resulting
session is written to the cookies file.`,
	Example: `  # Interactive login
  xscraper auth login

  # Store and log in immediately
  xscraper auth login mybot --verify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored credentials",
	Example: `  # Remove credentials and the saved session
  xscraper auth logout mybot --session`,
	Args: cobra.ExactArgs(1),
	RunE: runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored X accounts with sanitized credential information.`,
	RunE:  runList,
}

// importSessionCmd represents the auth import-session command
var importSessionCmd = &cobra.Command{
	Use:   "import-session",
	Short: "Save browser session cookies as the session file",
	Long: `Write the auth_token and ct0 cookies of a logged-in browser session to the
cookies file. Use this when a password login is blocked by extra verification.

Run without flags to see where to find the cookies.`,
	Example: `  xscraper auth import-session --auth-token 0123abcd... --ct0 9f8e7d...`,
	RunE:    runImportSession,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(importSessionCmd)

	authCmd.PersistentFlags().StringVar(&cookiesFile, "cookies", "", "session file (default cookies.json)")
	loginCmd.Flags().BoolVar(&verifyLogin, "verify", false, "log in now and save the session")
	logoutCmd.Flags().BoolVar(&removeSession, "session", false, "also delete the session file")
	importSessionCmd.Flags().StringVar(&importToken, "auth-token", "", "auth_token cookie value")
	importSessionCmd.Flags().StringVar(&importCT0, "ct0", "", "ct0 cookie value")
	importSessionCmd.Flags().StringVar(&importUser, "username", "", "account the session belongs to (informational)")
}

// loadSessionConfig loads the config sections auth commands need
func loadSessionConfig() (*config.Config, error) {
	flags := map[string]interface{}{}
	if cookiesFile != "" {
		flags["cookies"] = cookiesFile
	}
	return config.Load(configFile, flags)
}

func readPassword() (string, error) {
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return reported(err)
	}

	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) > 0 {
		username = strings.TrimPrefix(args[0], "@")
	} else {
		username = strings.TrimPrefix(prompt(reader, "X username: "), "@")
	}
	if username == "" {
		ui.PrintError("Username is required")
		return reported(fmt.Errorf("username is required"))
	}

	if existing, _ := manager.Retrieve(username); existing != nil {
		answer := prompt(reader, fmt.Sprintf("Account '%s' already exists. Update credentials? (y/N): ", username))
		if !strings.HasPrefix(strings.ToLower(answer), "y") {
			return nil
		}
	}

	email := prompt(reader, "Email (optional): ")

	fmt.Print("Password: ")
	password, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read password", err.Error())
		return reported(err)
	}

	fmt.Print("TOTP secret (optional, press Enter to skip): ")
	totpSecret, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read TOTP secret", err.Error())
		return reported(err)
	}

	account := &auth.Account{
		Username:     username,
		Email:        email,
		Password:     password,
		TOTPSecret:   strings.ReplaceAll(totpSecret, " ", ""),
		LastModified: time.Now(),
	}
	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		return reported(err)
	}
	ui.PrintSuccess(fmt.Sprintf("Account saved: %s", username))

	if !verifyLogin {
		fmt.Println("\nHarvest with this account:")
		fmt.Printf("   $ xscraper scrape <handle> --account %s\n", username)
		return nil
	}
	return verifyAndSave(account)
}

// verifyAndSave logs in with account and writes the session file
func verifyAndSave(account *auth.Account) error {
	cfg, err := loadSessionConfig()
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return reported(err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		return reported(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := x.Login(ctx, x.Credentials{
		Username:   account.Username,
		Email:      account.Email,
		Password:   account.Password,
		TOTPSecret: account.TOTPSecret,
	}, x.Options{
		UserAgent: cfg.Session.UserAgent,
		Timeout:   cfg.Session.Timeout,
		Logger:    logger.GetLogger(),
	})
	if err != nil {
		ui.PrintError("Login failed", err.Error())
		auth.ShowSessionImportGuide(os.Stdout)
		return reported(err)
	}

	store := x.NewSessionStore(cfg.Session.CookiesFile, cfg.Session.TTL)
	if err := store.Save(token); err != nil {
		ui.PrintError("Failed to save session", err.Error())
		return reported(err)
	}
	ui.PrintSuccess("Logged in; session saved to " + store.Path())
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return reported(err)
	}

	username := strings.TrimPrefix(args[0], "@")
	if err := manager.Delete(username); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		return reported(err)
	}
	ui.PrintSuccess("Account removed: " + username)

	if !removeSession {
		return nil
	}
	cfg, err := loadSessionConfig()
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return reported(err)
	}
	store := x.NewSessionStore(cfg.Session.CookiesFile, cfg.Session.TTL)
	if err := store.Delete(); err != nil {
		ui.PrintError("Failed to remove session file", err.Error())
		return reported(err)
	}
	ui.PrintSuccess("Session removed: " + store.Path())
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		return reported(err)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		return reported(err)
	}

	if len(accounts) == 0 {
		ui.PrintInfo("No stored accounts", "Use 'xscraper auth login' to add an account")
		return nil
	}

	ui.PrintHighlight("Stored Accounts")
	fmt.Println()

	for i, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("%d. Username: %s\n", i+1, sanitized.Username)
		if sanitized.Email != "" {
			fmt.Printf("   Email: %s\n", sanitized.Email)
		}
		fmt.Printf("   Password: %s\n", sanitized.Password)
		if sanitized.TOTPSecret != "" {
			fmt.Printf("   TOTP: %s\n", sanitized.TOTPSecret)
		}
		fmt.Printf("   Last Modified: %s\n", sanitized.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
	return nil
}

func runImportSession(cmd *cobra.Command, args []string) error {
	if importToken == "" || importCT0 == "" {
		auth.ShowSessionImportGuide(os.Stdout)
		if importToken == "" && importCT0 == "" {
			return nil
		}
		ui.PrintError("Both --auth-token and --ct0 are required")
		return reported(fmt.Errorf("incomplete session cookies"))
	}

	cfg, err := loadSessionConfig()
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return reported(err)
	}

	store := x.NewSessionStore(cfg.Session.CookiesFile, cfg.Session.TTL)
	token := &x.Token{
		AuthToken: strings.TrimSpace(importToken),
		CT0:       strings.TrimSpace(importCT0),
		Username:  strings.TrimPrefix(importUser, "@"),
	}
	if err := store.Save(token); err != nil {
		ui.PrintError("Failed to save session", err.Error())
		return reported(err)
	}
	ui.PrintSuccess("Session saved to " + store.Path())
	return nil
}
