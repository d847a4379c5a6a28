package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"boorudl/pkg/auth"
	"boorudl/pkg/config"
	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/scraper"
	"boorudl/pkg/ui"
	"boorudl/pkg/ui/tui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// errCancelled marks a run interrupted by a signal
var errCancelled = errors.New("interrupted")

var (
	// Fetch command flags
	baseURL      string
	apiType      string
	username     string
	apiKey       string
	userAgent    string
	proxy        string
	timeout      time.Duration
	includeTags  string
	excludeTags  string
	ratios       []string
	minWidth     int
	minHeight    int
	minScore     int
	perPage      int
	outputDir    string
	maxImages    int
	tagFormat    string
	rps          float64
	concurrent   int
	downloadRPS  float64
	logFile      string
	notify       bool
	useTUI       bool
	noStoredAuth bool
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download images and tags matching a query",
	Long: `Walk a booru listing page by page and save every post that passes the
filters as images/<id><ext> with its tags in tags/<id>.txt.

Posts already on disk count toward --max-images without being downloaded
again, so rerunning the same command resumes where the last run stopped.

Videos and animations (.mp4 .webm .avi .mov .wmv .flv .mkv .gifv .gif) are
always skipped.`,
	Example: `  # 50 widescreen landscapes from Safebooru
  boorudl fetch --base-url https://safebooru.org --include-tags "landscape scenery" \
    --exclude-tags "text" --ratio 16:9 --max-images 50

  # Danbooru with an API key, two ratios, at least 1920 pixels wide
  boorudl fetch --base-url https://danbooru.donmai.us --username me --api-key KEY \
    --ratio "16:9 21:9" --min-width 1920 --output ./wallpapers

  # Several sites at once through a SOCKS proxy
  boorudl fetch --base-url https://gelbooru.com --proxy socks5://127.0.0.1:9050`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	f := fetchCmd.Flags()
	f.StringVarP(&baseURL, "base-url", "u", "", "site base URL, e.g. https://danbooru.donmai.us")
	f.StringVar(&apiType, "api-type", "auto", "API dialect: auto, paginated, offset, danbooru or dapi")
	f.StringVar(&username, "username", "", "account name (Danbooru) or user id (DAPI)")
	f.StringVar(&apiKey, "api-key", "", "API key for the site")
	f.StringVar(&userAgent, "user-agent", "", "override the User-Agent header")
	f.StringVar(&proxy, "proxy", "", "proxy URL (http, https or socks5)")
	f.DurationVar(&timeout, "timeout", 30*time.Second, "connect, response header and read-gap timeout")

	f.StringVarP(&includeTags, "include-tags", "t", "", "space separated tags to search for")
	f.StringVarP(&excludeTags, "exclude-tags", "x", "", "space separated tags to exclude")
	f.StringSliceVarP(&ratios, "ratio", "r", nil, "accepted aspect ratios (16:9, 4/3, 1.5); repeatable")
	f.IntVar(&minWidth, "min-width", 0, "minimum image width in pixels")
	f.IntVar(&minHeight, "min-height", 0, "minimum image height in pixels")
	f.IntVar(&minScore, "min-score", 0, "minimum post score (disabled unless set)")
	f.IntVar(&perPage, "per-page", 100, "posts per page request (capped at 100 paginated, 1000 DAPI)")

	f.StringVarP(&outputDir, "output", "o", "./downloads", "output directory")
	f.IntVarP(&maxImages, "max-images", "n", 100, "number of images to collect")
	f.StringVar(&tagFormat, "tag-format", "plain", "tag file format: plain or detailed")

	f.Float64Var(&rps, "rps", 1.0, "page requests per second (0 disables the delay)")
	f.IntVar(&concurrent, "concurrent", 1, "number of concurrent downloads")
	f.Float64Var(&downloadRPS, "download-rps", 0, "image downloads per second (0 means unlimited)")

	f.StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	f.BoolVar(&notify, "notify", false, "send a desktop notification when the run ends")
	f.BoolVar(&useTUI, "tui", false, "show a full-screen dashboard instead of the progress line")
	f.BoolVar(&noStoredAuth, "no-stored-auth", false, "do not look up stored credentials for the site")
}

// fetchFlags builds the override map from the flags the user set explicitly
func fetchFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags(cmd)
	changed := cmd.Flags().Changed

	strs := map[string]*string{
		"base-url":     &baseURL,
		"api-type":     &apiType,
		"username":     &username,
		"api-key":      &apiKey,
		"user-agent":   &userAgent,
		"proxy":        &proxy,
		"include-tags": &includeTags,
		"exclude-tags": &excludeTags,
		"output":       &outputDir,
		"tag-format":   &tagFormat,
		"log-file":     &logFile,
	}
	for name, v := range strs {
		if changed(name) {
			flags[name] = *v
		}
	}

	ints := map[string]*int{
		"min-width":  &minWidth,
		"min-height": &minHeight,
		"min-score":  &minScore,
		"per-page":   &perPage,
		"max-images": &maxImages,
		"concurrent": &concurrent,
	}
	for name, v := range ints {
		if changed(name) {
			flags[name] = *v
		}
	}

	if changed("rps") {
		flags["rps"] = rps
	}
	if changed("download-rps") {
		flags["download-rps"] = downloadRPS
	}
	if changed("timeout") {
		flags["timeout"] = timeout
	}
	if changed("ratio") {
		flags["ratio"] = ratios
	}

	return flags
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, fetchFlags(cmd))
	if err != nil {
		return err
	}

	if useTUI && !term.IsTerminal(int(os.Stdout.Fd())) {
		ui.PrintWarning("--tui needs a terminal, using the progress line")
		useTUI = false
	}

	// keep the progress display readable unless more output was asked for
	if !verbose && !cmd.Flags().Changed("log-level") && strings.EqualFold(cfg.Logging.Level, "info") {
		cfg.Logging.Level = "warn"
		if useTUI {
			cfg.Logging.Level = "error"
		}
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()
	log.WithField("version", version).Info("boorudl starting")

	if !noStoredAuth {
		applyStoredCredentials(cfg, log)
	}

	s, err := scraper.New(cfg)
	if err != nil {
		return err
	}

	ui.PrintInfo("Site", cfg.Source.BaseURL)
	if tags := s.Tags(); tags != "" {
		ui.PrintInfo("Tags", tags)
	}
	if len(cfg.Query.Ratios) > 0 {
		ui.PrintInfo("Ratios", strings.Join(cfg.Query.Ratios, " "))
	}
	ui.PrintInfo("Output", cfg.Output.BaseDirectory)

	label := cfg.Source.BaseURL
	if site, err := auth.SiteKey(cfg.Source.BaseURL); err == nil {
		label = site
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var finish func()
	if useTUI {
		dashboard := tui.NewDashboard(label, cfg.Output.MaxImages, stop)
		s.SetReporter(dashboard)
		dashboard.Start()
		finish = func() {
			if err := dashboard.Finish(); err != nil {
				log.WithError(err).Warn("dashboard exited with an error")
			}
		}
	} else {
		progress := ui.NewProgressDisplay(label, cfg.Output.MaxImages, verbose)
		s.SetReporter(progress)
		finish = progress.Finish
	}

	result, err := s.Run(ctx)
	finish()
	if err != nil {
		return err
	}

	summary := ui.Summary{
		Downloaded:     result.Downloaded,
		AlreadyPresent: result.AlreadyPresent,
		Failed:         result.Failed,
		Filtered:       result.Filtered,
		Pages:          result.Pages,
		Budget:         result.MaxImages,
		StopReason:     string(result.StopReason),
		ImagesDir:      result.ImagesDir,
		TagsDir:        result.TagsDir,
		Elapsed:        result.Elapsed,
	}
	ui.PrintSummary(summary)

	if result.FetchError != nil {
		ui.PrintWarning("Listing ended early", result.FetchError)
	}
	if notify {
		ui.NewNotifier().RunFinished(summary)
	}

	if result.StopReason == scraper.StopCancelled {
		return errCancelled
	}
	return nil
}

// applyStoredCredentials fills in the stored account for the site when no
// credentials were configured
func applyStoredCredentials(cfg *config.Config, log logger.Logger) {
	if cfg.Source.Username != "" || cfg.Source.APIKey != "" {
		return
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("credential store unavailable")
		return
	}

	account, err := manager.RetrieveForURL(cfg.Source.BaseURL)
	if err != nil {
		log.DebugWithFields("no stored credentials", map[string]interface{}{
			"site": cfg.Source.BaseURL,
		})
		return
	}

	cfg.Source.Username = account.Username
	cfg.Source.APIKey = account.APIKey
	log.WithField("site", account.Site).Info("Using stored credentials")
	ui.PrintInfo("Account", account.Username)
}

// exitCode maps a command error to the process exit status
func exitCode(err error) int {
	switch {
	case errors.Is(err, errCancelled):
		return 130
	case errs.IsFatal(errs.KindOf(err)):
		return 2
	default:
		return 1
	}
}
