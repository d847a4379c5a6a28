package main

import (
	"fmt"
	"os"
	"path/filepath"

	"boorudl/pkg/config"
	errs "boorudl/pkg/errors"
	"boorudl/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage boorudl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (BOORUDL_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to ~/.config/boorudl/config.yaml unless a different
path is given with --config. An existing file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

The API key is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the effective configuration.

This command checks:
  - YAML syntax
  - Base URL, API type and proxy scheme
  - Aspect ratio expressions
  - Value ranges`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# boorudl configuration file
#
# Every option can also be set with an environment variable prefixed with
# BOORUDL_, for example BOORUDL_BASE_URL or BOORUDL_API_KEY.

source:
  # Site base URL (required)
  base_url: "https://safebooru.org"

  # auto, paginated (Danbooru) or offset (Gelbooru, Safebooru)
  # auto picks paginated when the URL mentions danbooru or donmai
  api_type: "auto"

  # Account name (Danbooru) or user id (DAPI), with its API key
  # Prefer 'boorudl auth login' over storing the key here
  username: ""
  api_key: ""

  # Leave empty for the built-in agent
  user_agent: ""

  # http://, https:// or socks5:// proxy used for every request
  proxy: ""

  # Bounds connecting, waiting for headers and each gap between reads
  timeout: 30s

query:
  # Space separated tags
  include_tags: "landscape scenery"
  exclude_tags: "text watermark"

  # Accepted aspect ratios: 16:9, 4/3 or 1.7778 (2% tolerance)
  ratios:
    - "16:9"

  # 0 disables the check
  min_width: 0
  min_height: 0

  # Uncomment to drop posts scoring below this value
  # min_score: 10

  # Posts per request, capped at 100 (paginated) or 1000 (offset)
  per_page: 100

output:
  # images/ and tags/ are created below this directory
  base_directory: "./downloads"

  # Images to collect, including ones already on disk
  max_images: 100

  # plain: tags only
  # detailed: a header with id, score, size and url, then the tags
  tag_format: "plain"

rate_limit:
  # Page requests per second (0 disables the delay)
  requests_per_second: 1.0

download:
  # Parallel image downloads
  concurrent_downloads: 1

  # Image downloads per second (0 means unlimited)
  max_per_second: 0

logging:
  # debug, info, warn or error
  level: "info"

  # Optional JSON log file
  file: ""

  no_color: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first to start over)", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the file and set source.base_url and your query")
	fmt.Println("2. Run 'boorudl config validate' to check the configuration")
	fmt.Println("3. Start downloading with 'boorudl fetch'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Resolve(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (BOORUDL_*)")
	fmt.Println("3. .env and ~/.boorudl.env")
	fmt.Printf("4. Configuration file: %s\n", displayConfigPath())
	fmt.Println("5. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	ui.PrintInfo("Validating configuration", displayConfigPath())

	cfg, err := config.Resolve(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		ui.PrintError("Configuration has errors:")
		problems := unjoin(err)
		for _, problem := range problems {
			fmt.Printf("  - %v\n", problem)
		}
		return errs.InvalidConfig(fmt.Sprintf("%d problem(s) found", len(problems)))
	}

	var warnings []string
	if cfg.Source.APIKey != "" && cfg.Source.Username == "" {
		warnings = append(warnings, "api_key is set without a username and will be ignored")
	}
	if cfg.RateLimit.RequestsPerSecond == 0 {
		warnings = append(warnings, "page requests are not delayed (requests_per_second is 0)")
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  - %s\n", warn)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Site: %s (%s)\n", cfg.Source.BaseURL, cfg.Source.APIType)
	fmt.Printf("  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Max images: %d\n", cfg.Output.MaxImages)
	fmt.Printf("  Page rate: %.2f requests/second\n", cfg.RateLimit.RequestsPerSecond)
	fmt.Printf("  Concurrent downloads: %d\n", cfg.Download.ConcurrentDownloads)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

func displayConfigPath() string {
	if configFile != "" {
		return configFile
	}
	if found := config.FindConfigFile(); found != "" {
		return found
	}
	return "(none found)"
}

// unjoin splits an errors.Join result back into its parts
func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
