package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"boorudl/pkg/auth"
	"boorudl/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginUsername string
	loginGuide    bool
	logoutYes     bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored API keys",
	Long: `Manage API keys stored per booru site.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (BOORUDL_USERNAME, BOORUDL_API_KEY; read only)

'boorudl fetch' uses the stored key for the site's host when no
--username or --api-key is given.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login <base-url>",
	Short: "Store an API key for a site",
	Long: `Store a username and API key for a site.

The API key is read without echo. Run with --guide to see where each
kind of site shows its key.`,
	Example: `  boorudl auth login https://danbooru.donmai.us
  boorudl auth login gelbooru.com --username 123456 --guide`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:     "logout <base-url>",
	Short:   "Remove the stored API key for a site",
	Example: `  boorudl auth logout https://danbooru.donmai.us`,
	Args:    cobra.ExactArgs(1),
	RunE:    runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sites with stored credentials",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().StringVar(&loginUsername, "username", "", "account name (Danbooru) or user id (DAPI)")
	loginCmd.Flags().BoolVar(&loginGuide, "guide", false, "show where to find the API key first")
	logoutCmd.Flags().BoolVarP(&logoutYes, "yes", "y", false, "do not ask for confirmation")
}

func runLogin(cmd *cobra.Command, args []string) error {
	site, err := auth.SiteKey(args[0])
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if loginGuide {
		auth.ShowAPIKeyGuide(os.Stdout)
		fmt.Println()
	}

	reader := bufio.NewReader(os.Stdin)

	if existing, _ := manager.Retrieve(site); existing != nil {
		fmt.Printf("Credentials for %s already exist (%s). Replace them? (y/N): ", site, existing.Username)
		if !confirmed(reader) {
			return nil
		}
	}

	username := loginUsername
	if username == "" {
		fmt.Printf("Username for %s: ", site)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(input)
	}
	if username == "" {
		return errors.New("username is required")
	}

	fmt.Print("API key (hidden): ")
	apiKey, err := readPassword(reader)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	if apiKey == "" {
		return errors.New("API key is required")
	}

	account := &auth.Account{
		Site:     site,
		Username: username,
		APIKey:   apiKey,
	}
	if err := manager.Store(account); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Credentials saved for %s", site))
	fmt.Printf("\n  $ boorudl fetch --base-url https://%s --include-tags \"...\"\n", site)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	site, err := auth.SiteKey(args[0])
	if err != nil {
		return err
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	account, err := manager.Retrieve(site)
	if err != nil {
		return err
	}

	if !logoutYes {
		fmt.Printf("Remove credentials for %s (%s)? (y/N): ", site, account.Username)
		if !confirmed(bufio.NewReader(os.Stdin)) {
			return nil
		}
	}

	if err := manager.Delete(site); err != nil {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}

	ui.PrintSuccess(fmt.Sprintf("Credentials removed for %s", site))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No stored credentials", "run 'boorudl auth login <base-url>'")
		return nil
	}

	ui.PrintHighlight("Stored credentials")
	for _, account := range accounts {
		safe := auth.SanitizeAccount(account)
		modified := "unknown"
		if !safe.LastModified.IsZero() {
			modified = safe.LastModified.Format("2006-01-02 15:04")
		}
		fmt.Printf("  %-28s %-20s %-14s %s\n", safe.Site, safe.Username, safe.APIKey, modified)
	}
	return nil
}

func confirmed(reader *bufio.Reader) bool {
	input, _ := reader.ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y")
}

// readPassword reads a line without echo, falling back to a plain read when
// stdin is not a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return "", err
		}
		return strings.TrimSpace(input), nil
	}

	b, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
