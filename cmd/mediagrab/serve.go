package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mediagrab/internal/server"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/metrics"
	"mediagrab/pkg/ratelimit"
	"mediagrab/pkg/storage"
)

var (
	// Serve command flags
	serveHost string
	servePort int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve the download API:

  POST /api/download      {"url": "..."}
  POST /api/probe         {"url": "..."}
  GET  /api/capabilities
  GET  /api/platforms
  GET  /api/accounts/stats
  GET  /health
  GET  /metrics
  GET  /downloads/...     downloaded files (server.serve_files)

Download and probe calls are limited per client IP to
rate_limit.requests_per_minute.`,
	Example: `  mediagrab serve
  mediagrab serve --host 0.0.0.0 --port 9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen address (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	serveCmd.Flags().StringVarP(&outputDir, "output", "o", "", "download directory (default ./downloads)")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{
		"host":   serveHost,
		"port":   servePort,
		"output": outputDir,
	}
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	a, err := newApp(cfg, log, appOptions{metrics: metrics.New()})
	if err != nil {
		return err
	}

	temp, err := storage.NewTempStore(cfg.TempDirectory(), cfg.Temp.MaxAge, log)
	if err != nil {
		return err
	}
	if removed, err := temp.CleanupOld(cfg.Temp.MaxAge); err != nil {
		log.WithError(err).Warn("Initial temp cleanup failed")
	} else if removed > 0 {
		log.WithField("removed", removed).Info("Removed stale temp entries")
	}
	if cfg.Temp.CleanupInterval > 0 {
		temp.StartJanitor(cfg.Temp.CleanupInterval)
		defer temp.Stop()
	}

	var limiter *ratelimit.KeyedLimiter
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter = ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
	}

	srv := server.New(server.Deps{
		Registry:     a.registry,
		Store:        a.store,
		Capabilities: a.instagram,
		Pool:         a.pool,
		Metrics:      a.metrics,
		Limiter:      limiter,
		Logger:       log,
	}, server.Options{
		Version:      version,
		ServeFiles:   cfg.Server.ServeFiles,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if limiter != nil {
		go pruneLimiter(ctx.Done(), limiter, time.Minute)
	}

	caps := a.instagram.Capabilities()
	log.WithFields(map[string]interface{}{
		"address":       cfg.Server.Address(),
		"download_dir":  a.store.GetOutputDir(),
		"accounts":      caps.Accounts,
		"photo_posts":   caps.PhotoPosts,
		"carousel_full": caps.CarouselFull,
	}).Info("Starting mediagrab API")

	return srv.ListenAndServe(ctx, cfg.Server.Address())
}

// pruneLimiter drops idle client windows so the limiter does not grow
// with every address ever seen
func pruneLimiter(done <-chan struct{}, limiter *ratelimit.KeyedLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			limiter.Prune()
		case <-done:
			return
		}
	}
}
