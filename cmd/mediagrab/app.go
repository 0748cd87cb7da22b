package main

import (
	"fmt"
	"time"

	"mediagrab/pkg/accounts"
	"mediagrab/pkg/auth"
	"mediagrab/pkg/config"
	"mediagrab/pkg/extractor"
	"mediagrab/pkg/instagram"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/metadata"
	"mediagrab/pkg/metrics"
	"mediagrab/pkg/platform"
	"mediagrab/pkg/probe"
	"mediagrab/pkg/ratelimit"
	"mediagrab/pkg/retry"
	"mediagrab/pkg/router"
	"mediagrab/pkg/storage"
	"mediagrab/pkg/strategy"
)

// app is the wired download core shared by every command
type app struct {
	cfg       *config.Config
	store     *storage.Manager
	pool      *accounts.Pool
	metrics   *metrics.Metrics
	instagram *platform.Instagram
	registry  *platform.Registry
	logger    logger.Logger
}

// appOptions carries the pieces that differ between commands
type appOptions struct {
	// observer receives router state transitions, may be nil
	observer router.Observer
	// runner replaces os/exec for yt-dlp and gallery-dl
	runner extractor.Runner
	// creds overrides the credential store lookup
	creds credentialSource
	metrics *metrics.Metrics
}

// credentialSource lists saved accounts
type credentialSource interface {
	Credentials() ([]accounts.Credentials, error)
}

func newApp(cfg *config.Config, log logger.Logger, opts appOptions) (*app, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	store, err := storage.NewManager(cfg.Download.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare download directory: %w", err)
	}

	creds, err := poolCredentials(cfg, opts.creds, log)
	if err != nil {
		return nil, err
	}

	// the router records quarantines and availability on m as it works
	m := opts.metrics
	pool := accounts.NewPool(creds,
		accounts.WithFailureThreshold(cfg.Instagram.FailureThreshold),
		accounts.WithBlockDuration(cfg.Instagram.BlockDuration),
		accounts.WithLogger(log.WithField("component", "accounts")),
	)
	m.SetAccountsAvailable(pool.AvailableCount())

	maxBytes := cfg.Download.MaxFileSizeBytes()
	ytdlp := extractor.NewYtDlp(cfg.Tools.YtDlpPath, opts.runner, cfg.Instagram.RequestTimeout, cfg.Download.MaxRetries)
	gallery := extractor.NewGalleryDl(cfg.Tools.GalleryDlPath, opts.runner)

	client := instagram.NewClient(cfg.Instagram.RequestTimeout, cfg.Instagram.UserAgent, log)
	client.SetRetrier(retry.NewHTTPRetrier(cfg.Download.MaxRetries+1, log))
	if limiter := instagramLimiter(cfg); limiter != nil {
		client.SetLimiter(limiter)
	}

	policy := probe.AuthPolicy{
		Video:    cfg.Probe.VideoRequiresAuth,
		Photo:    cfg.Probe.PhotoRequiresAuth,
		Carousel: cfg.Probe.CarouselRequiresAuth,
	}
	prober := probe.New(ytdlp, pool, policy, cfg.Instagram.UserAgent, log)

	var meta *metadata.Store
	if cfg.Metadata.Save {
		meta = metadata.NewStore(cfg.Download.Directory, log)
	}

	routerOpts := []router.Option{
		router.WithProxy(strategy.NewProxy(client, maxBytes, log)),
		router.WithAuthenticated(
			strategy.NewYtDlp(ytdlp, client, maxBytes, log),
			strategy.NewGalleryDl(gallery, maxBytes, log),
		),
		router.WithMetadataStore(meta),
		router.WithMetrics(m),
		router.WithTimeout(cfg.Download.Timeout),
		router.WithLogger(log),
	}
	if opts.observer != nil {
		routerOpts = append(routerOpts, router.WithObserver(opts.observer))
	}
	r := router.New(store, prober, pool, routerOpts...)

	ig := platform.NewInstagram(r, prober)
	yt := platform.NewYouTube(store, ytdlp, platform.YouTubeOptions{
		MaxFileSize: maxBytes,
		UserAgent:   cfg.Instagram.UserAgent,
		Metadata:    meta,
		Metrics:     m,
		Logger:      log,
	})

	return &app{
		cfg:       cfg,
		store:     store,
		pool:      pool,
		metrics:   m,
		instagram: ig,
		registry:  platform.NewRegistry(log, ig, yt),
		logger:    log,
	}, nil
}

// poolCredentials merges configured accounts with the saved ones. Config
// entries win on duplicate usernames.
func poolCredentials(cfg *config.Config, source credentialSource, log logger.Logger) ([]accounts.Credentials, error) {
	creds := make([]accounts.Credentials, 0, len(cfg.Instagram.Accounts))
	for _, acc := range cfg.Instagram.Accounts {
		creds = append(creds, accounts.Credentials{Username: acc.Username, Password: acc.Password})
	}

	if !cfg.Instagram.UseCredentialStore {
		return creds, nil
	}
	if source == nil {
		dir, err := auth.DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		mgr, err := auth.NewManager(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open credential store: %w", err)
		}
		source = mgr
	}

	saved, err := source.Credentials()
	if err != nil {
		log.WithError(err).Warn("Could not read saved accounts")
		return creds, nil
	}
	log.WithField("accounts", len(saved)).Debug("Loaded saved accounts")
	// accounts.NewPool drops later duplicates
	return append(creds, saved...), nil
}

// instagramLimiter paces the public client, nil when pacing is disabled
func instagramLimiter(cfg *config.Config) *ratelimit.TokenBucket {
	if cfg.Instagram.RequestsPerMinute <= 0 {
		return nil
	}
	return ratelimit.NewTokenBucket(cfg.Instagram.RequestsPerMinute, time.Minute)
}
