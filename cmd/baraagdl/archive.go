package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"baraagdl/pkg/archiver"
	"baraagdl/pkg/auth"
	"baraagdl/pkg/config"
	"baraagdl/pkg/logger"
	"baraagdl/pkg/mastodon"
	"baraagdl/pkg/ratelimit"
	"baraagdl/pkg/ui"
)

var (
	// Archive command flags
	outputDir       string
	baseURL         string
	rateLimit       int
	accountName     string
	searchUser      string
	continueOnError bool
)

// archiveCmd represents the archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive media from every account you follow",
	Long: `Archive media from every account the logged-in user follows.

Each account gets its own folder named {handle}_{account_id}. The full
post history is walked and every attachment downloaded; files that are
already on disk are skipped, so re-running continues where the previous
run left off.

With --user, a single account is searched by name and archived instead
of the whole follow list.`,
	Example: `  # Archive everyone you follow
  baraagdl archive

  # Archive a single account found by search
  baraagdl archive --user alice

  # Archive into a specific directory, skipping failed downloads
  baraagdl archive --output ./archive --continue-on-error`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		runArchive()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for downloads (default: current directory)")
	archiveCmd.Flags().StringVar(&baseURL, "base-url", "", "instance base URL (default: https://baraag.net)")
	archiveCmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "requests per minute")
	archiveCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	archiveCmd.Flags().StringVarP(&searchUser, "user", "u", "", "archive a single account found by search instead of the follow list")

	rootCmd.PersistentFlags().BoolVar(&continueOnError, "continue-on-error", false, "skip failed downloads instead of aborting")
}

func runArchive() {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if baseURL != "" {
		flags["base-url"] = baseURL
	}
	if rateLimit > 0 {
		flags["rate-limit"] = rateLimit
	}
	if continueOnError {
		flags["continue-on-error"] = true
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()

	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var credentials *auth.Account
	if accountName != "" {
		credentials, err = manager.Retrieve(accountName)
	} else {
		credentials, err = manager.RetrieveDefault()
	}
	if err != nil {
		ui.PrintError("No credentials available", err.Error())
		os.Exit(1)
	}

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)
	client := mastodon.NewClient(cfg.API.BaseURL, cfg.Download.Timeout, limiter, cfg.RateLimit.MaxRetries, log)
	client.SetHeader("User-Agent", cfg.API.UserAgent)
	client.SetAccessToken(credentials.AccessToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := archiver.New(client, cfg, log)

	if searchUser != "" {
		err = archiveSearchedAccount(ctx, client, a, searchUser)
	} else {
		err = archiveFollowing(ctx, client, a)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Interrupted by the user, leave quietly
			ui.PrintWarning("Interrupted, exiting")
			return
		}
		log.WithError(err).Error("archive run failed")
		ui.PrintError("Archive failed", err.Error())
		printErrorLogNotice()
		os.Exit(1)
	}

	ui.PrintSuccess("Archive complete")
	printErrorLogNotice()
}

// archiveFollowing archives every account the logged-in user follows
func archiveFollowing(ctx context.Context, client *mastodon.Client, a *archiver.Archiver) error {
	self, err := client.VerifyCredentials(ctx)
	if err != nil {
		return fmt.Errorf("verifying credentials: %w", err)
	}
	ui.PrintInfo("Logged in as", self.Acct)

	followed, err := client.FetchAllFollowing(ctx, self.ID)
	if err != nil {
		return fmt.Errorf("fetching follow list: %w", err)
	}
	following := mastodon.ParseFollowing(followed)
	ui.PrintInfo("Accounts to archive", fmt.Sprintf("%d", len(following)))

	return a.ProcessAccounts(ctx, following)
}

// archiveSearchedAccount searches for a single account by name, lets the
// user pick from the results, and archives the chosen account
func archiveSearchedAccount(ctx context.Context, client *mastodon.Client, a *archiver.Archiver, query string) error {
	accounts, err := client.SearchAccounts(ctx, query)
	if err != nil {
		return fmt.Errorf("searching accounts: %w", err)
	}
	if len(accounts) == 0 {
		return fmt.Errorf("no accounts matched %q", query)
	}

	account := accounts[0]
	if len(accounts) > 1 {
		chosen, err := chooseAccount(accounts)
		if err != nil {
			return err
		}
		account = chosen
	}

	ui.PrintInfo("Archiving", account.Acct)
	return a.ProcessAccount(ctx, account)
}

// chooseAccount shows a numbered menu of search results and reads the
// user's selection from stdin
func chooseAccount(accounts []mastodon.Account) (mastodon.Account, error) {
	fmt.Println("Multiple accounts matched:")
	for i, account := range accounts {
		name := account.Acct
		if account.DisplayName != "" {
			name = fmt.Sprintf("%s (%s)", account.Acct, account.DisplayName)
		}
		fmt.Printf("  %d. %s\n", i+1, name)
	}
	fmt.Print("Choice: ")

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return mastodon.Account{}, fmt.Errorf("reading selection: %w", err)
	}

	choice, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || choice < 1 || choice > len(accounts) {
		return mastodon.Account{}, fmt.Errorf("invalid selection %q", strings.TrimSpace(input))
	}

	return accounts[choice-1], nil
}

// printErrorLogNotice tells the user where errors were recorded, if any
// were. The log file only exists when an error-level event was written.
func printErrorLogNotice() {
	if path := logger.ErrorLogPath(); path != "" {
		ui.PrintWarning("Some errors occurred, check " + path)
	}
}
