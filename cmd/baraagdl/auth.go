package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"baraagdl/pkg/auth"
	"baraagdl/pkg/logger"
	"baraagdl/pkg/mastodon"
	"baraagdl/pkg/ui"
)

var loginBaseURL string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage instance credentials",
	Long: `Manage stored instance credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (BARAAGDL_ACCESS_TOKEN)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Log into the instance and store credentials",
	Long: `Log into the instance with your account email and password.

The tool registers itself as an OAuth application, obtains a read-scoped
access token, and stores it in the system keychain or an encrypted file.
Your password is used once for the token exchange and never persisted.`,
	Example: `  # Interactive login
  baraagdl auth login

  # Login with email
  baraagdl auth login me@example.com

  # Login against a different instance
  baraagdl auth login --base-url https://other.instance`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [handle]",
	Short: "Remove stored credentials",
	Args:  cobra.MaximumNArgs(1),
	Run:   runLogout,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored accounts",
	Long:  `Show all stored accounts with their secrets masked.`,
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)

	loginCmd.Flags().StringVar(&loginBaseURL, "base-url", mastodon.DefaultBaseURL, "instance base URL")
}

func runLogin(cmd *cobra.Command, args []string) {
	reader := bufio.NewReader(os.Stdin)

	var email string
	if len(args) == 1 {
		email = strings.TrimSpace(args[0])
	} else {
		fmt.Print("Account email: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read email", err.Error())
			os.Exit(1)
		}
		email = strings.TrimSpace(input)
	}
	if email == "" {
		ui.PrintError("Email is required")
		os.Exit(1)
	}

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		ui.PrintError("Failed to read password", err.Error())
		os.Exit(1)
	}
	password := string(passwordBytes)
	if password == "" {
		ui.PrintError("Password is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client := mastodon.NewClient(loginBaseURL, 30*time.Second, nil, 3, logger.NewNopLogger())

	ui.PrintInfo("Registering application with", loginBaseURL)
	app, err := client.RegisterApp(ctx, "baraagdl")
	if err != nil {
		ui.PrintError("App registration failed", err.Error())
		os.Exit(1)
	}

	token, err := client.ObtainToken(ctx, app, email, password)
	if err != nil {
		ui.PrintError("Login failed", err.Error())
		os.Exit(1)
	}

	client.SetAccessToken(token.AccessToken)
	self, err := client.VerifyCredentials(ctx)
	if err != nil {
		ui.PrintError("Token verification failed", err.Error())
		os.Exit(1)
	}

	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	account := &auth.Account{
		Handle:       self.Acct,
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		AccessToken:  token.AccessToken,
		LastModified: time.Now(),
	}
	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Logged in as " + self.Acct)
	fmt.Println("\nNext step:")
	fmt.Println("  $ baraagdl archive")
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var handle string
	if len(args) == 1 {
		handle = strings.TrimSpace(args[0])
	} else {
		accounts, err := manager.List()
		if err != nil || len(accounts) == 0 {
			ui.PrintError("No stored accounts found")
			return
		}
		if len(accounts) > 1 {
			ui.PrintError("Multiple accounts stored, specify a handle")
			for _, account := range accounts {
				fmt.Println("  " + account.Handle)
			}
			os.Exit(1)
		}
		handle = accounts[0].Handle
	}

	if err := manager.Delete(handle); err != nil {
		ui.PrintError("Failed to remove account", err.Error())
		os.Exit(1)
	}
	ui.PrintSuccess("Account removed: " + handle)
}

func runStatus(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintWarning("No stored accounts")
		return
	}

	for _, account := range accounts {
		masked := auth.SanitizeAccount(account)
		fmt.Printf("%s\n", ui.Cyan(masked.Handle))
		fmt.Printf("  access token: %s\n", masked.AccessToken)
		fmt.Printf("  client id:    %s\n", masked.ClientID)
		fmt.Printf("  last updated: %s\n", masked.LastModified.Format(time.RFC3339))
	}
}
