package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"mediagrab/internal/downloader"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/metrics"
	"mediagrab/pkg/models"
	"mediagrab/pkg/parser"
	"mediagrab/pkg/router"
	"mediagrab/pkg/ui"
	"mediagrab/pkg/ui/tui"
)

var (
	// Download command flags
	outputDir    string
	workers      int
	useTUI       bool
	saveMetadata bool
	ytdlpPath    string
	gallerydl    string
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download <url>...",
	Short: "Download media from Instagram or YouTube URLs",
	Long: `Download every URL given on the command line.

Instagram reels and video posts work without an account. Photo posts and
full carousels need at least one account, configured either through:
  - Saved accounts (use 'mediagrab auth login' and set use_credential_store)
  - Environment variables (INSTAGRAM_USERNAME/INSTAGRAM_PASSWORD or INSTAGRAM_ACCOUNTS)
  - Configuration file

Files land in <output>/<identifier>/ and a post that was already
downloaded is served from disk without touching the network.`,
	Example: `  # Download a reel
  mediagrab download https://www.instagram.com/reel/C1a2B3c4D5e/

  # Several URLs, four at a time, with the dashboard
  mediagrab download --tui --workers 4 URL1 URL2 URL3

  # YouTube into a specific directory
  mediagrab download -o ./videos https://youtu.be/dQw4w9WgXcQ`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&outputDir, "output", "o", "", "download directory (default ./downloads)")
	downloadCmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of concurrent downloads (default from config)")
	downloadCmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
	downloadCmd.Flags().BoolVar(&saveMetadata, "save-metadata", true, "write a .metadata.json sidecar per post")
	downloadCmd.Flags().StringVar(&ytdlpPath, "ytdlp", "", "path to the yt-dlp binary")
	downloadCmd.Flags().StringVar(&gallerydl, "gallerydl", "", "path to the gallery-dl binary")
}

func runDownload(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if outputDir != "" {
		flags["output"] = outputDir
	}
	if workers > 0 {
		flags["concurrency"] = workers
	}
	if cmd.Flags().Changed("save-metadata") {
		flags["save-metadata"] = saveMetadata
	}
	if ytdlpPath != "" {
		flags["ytdlp"] = ytdlpPath
	}
	if gallerydl != "" {
		flags["gallerydl"] = gallerydl
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	urls := cleanURLs(args)
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.GetLogger()
	var (
		reporter ui.Reporter
		dash     *tui.TUI
		observer router.Observer
	)
	if useTUI {
		dash = tui.NewTUI(cfg.Download.Concurrency)
		reporter = dash
		observer = dash.Observer()
		// console logs would tear the dashboard
		if cfg.Logging.File == "" {
			log = logger.NewNopLogger()
			logger.SetLogger(log)
		}
	} else {
		var out io.Writer = ui.Output
		if quiet {
			out = io.Discard
		}
		reporter = ui.NewProgressDisplay(out, verbose)
	}

	a, err := newApp(cfg, log, appOptions{observer: observer, metrics: metrics.New()})
	if err != nil {
		return err
	}
	logger.LogComponentStart(log, "download", map[string]interface{}{
		"urls":     len(urls),
		"workers":  cfg.Download.Concurrency,
		"accounts": a.pool.Len(),
	})

	var results []downloader.Result
	if dash == nil {
		results = a.runBatch(ctx, urls, reporter)
	} else {
		results, err = a.runWithDashboard(ctx, dash, urls)
		if err != nil {
			return err
		}
	}

	summary := downloader.Summarize(results)
	logger.LogComponentStop(log, "download", fmt.Sprintf("%d succeeded, %d failed", summary.Succeeded, summary.Failed))

	if dash != nil && !quiet {
		printSummary(results)
	}
	if notifications {
		notifier := ui.NewNotifier()
		msg := fmt.Sprintf("%d of %d URLs downloaded", summary.Succeeded, len(results))
		if summary.Failed > 0 {
			notifier.SendError("mediagrab batch finished with errors", msg)
		} else {
			notifier.SendSuccess("mediagrab batch complete", msg)
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", summary.Failed, len(results))
	}
	return nil
}

// runWithDashboard runs the batch behind the TUI. Quitting the TUI cancels
// whatever is still downloading.
func (a *app) runWithDashboard(ctx context.Context, dash *tui.TUI, urls []string) ([]downloader.Result, error) {
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan []downloader.Result, 1)
	go func() {
		dash.LogInfo("Downloading %d URLs with %d workers", len(urls), a.cfg.Download.Concurrency)
		if a.pool.Len() == 0 {
			dash.LogWarning("No Instagram accounts configured, photo posts and full carousels will fail")
		}
		results := a.runBatch(batchCtx, urls, dash)
		dash.Stop()
		done <- results
	}()

	if err := dash.Run(ctx); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("terminal UI failed: %w", err)
	}
	cancel()
	return <-done, nil
}

// runBatch queues urls on reporter and downloads them with the worker pool
func (a *app) runBatch(ctx context.Context, urls []string, reporter ui.Reporter) []downloader.Result {
	for i, u := range urls {
		name, identifier := a.describe(u)
		reporter.Queue(strconv.Itoa(i), u, identifier, name)
	}
	reporter.UpdateAccounts(a.pool.AvailableCount(), a.pool.Len())

	reported := make(map[int]bool, len(urls))
	report := func(r downloader.Result) {
		reported[r.Job.Index] = true
		id := strconv.Itoa(r.Job.Index)
		if r.Success() {
			reporter.Complete(id, r.Outcome.Strategy, len(r.Outcome.MediaPaths), outcomeSize(r.Outcome), r.Duration)
		} else {
			reporter.Fail(id, r.Err, r.Duration)
		}
		reporter.UpdateAccounts(a.pool.AvailableCount(), a.pool.Len())
	}

	results := downloader.Run(ctx, urls, a.cfg.Download.Concurrency, a.registry, nil, a.logger, report)
	for _, r := range results {
		if !reported[r.Job.Index] {
			report(r)
		}
	}
	reporter.Done()
	return results
}

// describe returns the platform name and, for Instagram, the shortcode the
// router reports its state under
func (a *app) describe(rawURL string) (name, identifier string) {
	p := a.registry.Detect(rawURL)
	if p == nil {
		return "", ""
	}
	name = p.Name()
	if name == models.PlatformInstagram {
		identifier, _ = parser.InstagramParser{}.ExtractShortcode(rawURL)
	}
	return name, identifier
}

// outcomeSize sums the size of the media files on disk
func outcomeSize(o *models.Outcome) int64 {
	if o.Metadata.SizeBytes != nil && len(o.MediaPaths) == 1 {
		return *o.Metadata.SizeBytes
	}
	var total int64
	for _, path := range o.MediaPaths {
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	return total
}

// cleanURLs trims arguments and drops blanks and duplicates
func cleanURLs(args []string) []string {
	seen := make(map[string]bool, len(args))
	urls := make([]string, 0, len(args))
	for _, arg := range args {
		u := strings.TrimSpace(arg)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

func printSummary(results []downloader.Result) {
	summary := downloader.Summarize(results)
	for _, r := range results {
		if !r.Success() {
			ui.PrintError(r.Job.URL, fmt.Sprintf("%v", r.Err))
		}
	}
	ui.PrintSuccess(fmt.Sprintf("Downloaded %d of %d URLs", summary.Succeeded, len(results)))
}
