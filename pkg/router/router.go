package router

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"mediagrab/pkg/accounts"
	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/extractor"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/metadata"
	"mediagrab/pkg/metrics"
	"mediagrab/pkg/models"
	"mediagrab/pkg/parser"
	"mediagrab/pkg/storage"
	"mediagrab/pkg/strategy"
)

// DefaultTimeout bounds a single download run
const DefaultTimeout = 10 * time.Minute

const (
	carouselCredentialsMessage = "This is a carousel post with multiple items. " +
		"yt-dlp can only download the first item. " +
		"To download all items, configure Instagram credentials in .env file:\n" +
		"INSTAGRAM_USERNAME=your_username\n" +
		"INSTAGRAM_PASSWORD=your_password"
	photoCredentialsMessage = "This is a photo post. yt-dlp does not support Instagram photos. " +
		"To download photos, configure Instagram credentials in .env file:\n" +
		"INSTAGRAM_USERNAME=your_username\n" +
		"INSTAGRAM_PASSWORD=your_password\n" +
		"Warning: Use a test account, not your main account."
	credentialsSolution = "Configure INSTAGRAM_USERNAME and INSTAGRAM_PASSWORD in .env file"
)

// Router drives one post through probe, credentialed strategies and the
// public fallback, and normalizes whatever succeeds into an Outcome
type Router struct {
	store    *storage.Manager
	prober   Prober
	pool     *accounts.Pool
	proxy    strategy.Strategy
	authed   []strategy.Strategy
	meta     *metadata.Store
	metrics  *metrics.Metrics
	observer Observer
	platform string
	postURL  func(identifier string) string
	timeout  time.Duration
	now      func() time.Time
	logger   logger.Logger

	group singleflight.Group
}

// Option configures a Router
type Option func(*Router)

// WithProxy sets the strategy used without credentials
func WithProxy(s strategy.Strategy) Option {
	return func(r *Router) { r.proxy = s }
}

// WithAuthenticated sets the credentialed strategies in preference order
func WithAuthenticated(s ...strategy.Strategy) Option {
	return func(r *Router) { r.authed = s }
}

// WithMetadataStore enables sidecar writing
func WithMetadataStore(m *metadata.Store) Option {
	return func(r *Router) { r.meta = m }
}

// WithMetrics records outcomes and attempts
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithObserver registers a state transition callback
func WithObserver(o Observer) Option {
	return func(r *Router) { r.observer = o }
}

// WithPlatform tags outcomes with name and builds post URLs with postURL
func WithPlatform(name string, postURL func(string) string) Option {
	return func(r *Router) {
		r.platform = name
		r.postURL = postURL
	}
}

// WithTimeout bounds each run
func WithTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a router. pool may be nil when no accounts are configured.
func New(store *storage.Manager, prober Prober, pool *accounts.Pool, opts ...Option) *Router {
	r := &Router{
		store:    store,
		prober:   prober,
		pool:     pool,
		platform: models.PlatformInstagram,
		postURL:  parser.InstagramPostURL,
		timeout:  DefaultTimeout,
		now:      time.Now,
		logger:   logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithField("component", "router")
	return r
}

// HasCredentials reports whether any account is configured
func (r *Router) HasCredentials() bool {
	return r.pool != nil && r.pool.Len() > 0
}

// Pool returns the account pool, which may be nil
func (r *Router) Pool() *accounts.Pool {
	return r.pool
}

// Download fetches the post identified by identifier. Concurrent calls for
// the same identifier share one run; every caller still returns as soon
// as its own context is done.
func (r *Router) Download(ctx context.Context, identifier string) (*models.Outcome, error) {
	for attempt := 0; ; attempt++ {
		ch := r.group.DoChan(identifier, func() (interface{}, error) {
			runCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			return r.run(runCtx, identifier)
		})

		select {
		case <-ctx.Done():
			return nil, cancelled(identifier, ctx.Err())
		case res := <-ch:
			if res.Err != nil {
				// The caller that started a shared run went away; run again
				// under this caller's context.
				if res.Shared && attempt == 0 && ctx.Err() == nil && isCancellation(res.Err) {
					continue
				}
				return nil, res.Err
			}
			return copyOutcome(res.Val.(*models.Outcome)), nil
		}
	}
}

func (r *Router) run(ctx context.Context, identifier string) (*models.Outcome, error) {
	start := r.now()
	r.emit(Event{Identifier: identifier, State: StateIdle})

	outcome, err := r.route(ctx, identifier)
	elapsed := r.now().Sub(start)

	if err != nil {
		r.emit(Event{Identifier: identifier, State: StateFailed, Err: err})
		r.metrics.ObserveDownload(r.platform, "", err, elapsed)
		logger.LogDownload(r.logger, identifier, r.platform, "", 0, elapsed, err)
		return nil, err
	}

	r.emit(Event{Identifier: identifier, State: StateSuccess, Strategy: outcome.Strategy})
	r.metrics.ObserveDownload(r.platform, outcome.Strategy, nil, elapsed)
	logger.LogDownload(r.logger, identifier, r.platform, outcome.Strategy, len(outcome.MediaPaths), elapsed, nil)
	return outcome, nil
}

// plan is what the router knows about a post after probing
type plan struct {
	kind         models.Kind
	itemCount    int
	requiresAuth bool
	info         *extractor.Info
	// degraded is set when the probe failed for a non-terminal reason
	degraded bool
	probeErr error
}

func (r *Router) route(ctx context.Context, identifier string) (*models.Outcome, error) {
	r.emit(Event{Identifier: identifier, State: StateCheckExisting})
	existing, err := r.store.FindExisting(identifier)
	if err != nil {
		r.logger.WithError(err).WarnWithFields("Existing file check failed", map[string]interface{}{
			"identifier": identifier,
		})
	}
	if existing != nil {
		existing.Platform = r.platform
		r.logger.InfoWithFields("Serving existing download", map[string]interface{}{
			"identifier": identifier,
			"files":      len(existing.MediaPaths),
		})
		return existing, nil
	}

	targetDir, err := r.store.EnsureDir(identifier)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDownloadFailed, "Failed to create download directory", err).
			WithDetail("identifier", identifier)
	}

	r.emit(Event{Identifier: identifier, State: StateProbe})
	p, err := r.probe(ctx, identifier)
	if err != nil {
		return nil, err
	}
	worst := p.probeErr
	if err := r.checkCredentials(identifier, p); err != nil {
		return nil, err
	}

	req := &strategy.Request{
		Identifier: identifier,
		URL:        r.postURL(identifier),
		TargetDir:  targetDir,
		Kind:       p.kind,
		ItemCount:  p.itemCount,
		Info:       p.info,
		Date:       storage.DateStamp(r.now()),
	}

	if r.shouldTryAuthenticated(p) {
		out, err := r.tryAuthenticated(ctx, req, p, &worst)
		if out != nil || err != nil {
			return out, err
		}
	}

	if r.shouldTryUnauthenticated(p) {
		req.Credentials = nil
		name := r.proxy.Name()
		r.emit(Event{Identifier: identifier, State: StateTryUnauthenticated, Strategy: name})
		logger.LogStrategyAttempt(r.logger, identifier, name, "")

		res, err := r.proxy.Fetch(ctx, req)
		r.metrics.ObserveAttempt(name, err)
		if err == nil {
			return r.finish(req, p, name, res)
		}
		logger.LogStrategyFailure(r.logger, identifier, name, "", string(errs.TypeOf(err)), err)
		worst = errs.MoreSpecific(worst, err)
	}

	return nil, r.failure(identifier, p, worst)
}

// probe classifies the post. A non-terminal probe failure does not stop the
// request: the router continues as for a video and keeps the failure as
// the initial worst error.
func (r *Router) probe(ctx context.Context, identifier string) (*plan, error) {
	res, err := r.prober.ProbeURL(ctx, identifier, r.postURL(identifier))
	if r.pool != nil {
		// the probe may have blocked the account it borrowed
		r.metrics.SetAccountsAvailable(r.pool.AvailableCount())
	}
	if err == nil {
		return &plan{
			kind:         res.Kind,
			itemCount:    res.ItemCount,
			requiresAuth: res.RequiresAuth,
			info:         res.Info,
		}, nil
	}
	if errs.IsTerminal(err) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, cancelled(identifier, ctx.Err())
	}

	r.logger.WithError(err).WarnWithFields("Probe failed, continuing without classification", map[string]interface{}{
		"identifier": identifier,
	})
	return &plan{kind: models.KindVideo, itemCount: 1, degraded: true, probeErr: err}, nil
}

// checkCredentials fails fast for posts that only a login can fetch when no
// account is configured at all
func (r *Router) checkCredentials(identifier string, p *plan) error {
	if p.degraded || !p.requiresAuth || p.kind == models.KindVideo || r.HasCredentials() {
		return nil
	}

	msg := photoCredentialsMessage
	if p.kind == models.KindCarousel {
		msg = carouselCredentialsMessage
	}
	r.logger.WarnWithFields("Download blocked, no credentials configured", map[string]interface{}{
		"identifier": identifier,
		"kind":       string(p.kind),
	})
	return errs.AuthenticationFailed(msg).
		WithDetail("identifier", identifier).
		WithDetail("media_type", string(p.kind)).
		WithDetail("is_carousel", p.kind == models.KindCarousel).
		WithDetail("item_count", p.itemCount).
		WithDetail("solution", credentialsSolution)
}

// candidates lists the credentialed strategies able to fetch kind
func (r *Router) candidates(kind models.Kind) []strategy.Strategy {
	var out []strategy.Strategy
	for _, s := range r.authed {
		if s.Supports(kind) {
			out = append(out, s)
		}
	}
	return out
}

func (r *Router) shouldTryAuthenticated(p *plan) bool {
	if r.pool == nil || !r.pool.HasAnyAvailable() {
		return false
	}
	if !p.requiresAuth && p.kind != models.KindVideo {
		return false
	}
	return len(r.candidates(p.kind)) > 0
}

func (r *Router) shouldTryUnauthenticated(p *plan) bool {
	if r.proxy == nil || !r.proxy.Supports(p.kind) {
		return false
	}
	// no partial results for posts that need a login
	return !(p.requiresAuth && p.kind != models.KindVideo)
}

// tryAuthenticated tries each available account once, running every
// supporting strategy with it. It returns (nil, nil) when all accounts
// failed with errors that allow falling through.
func (r *Router) tryAuthenticated(ctx context.Context, req *strategy.Request, p *plan, worst *error) (*models.Outcome, error) {
	tried := make(map[string]bool)
	for {
		acc := r.pool.SelectRandomExcept(tried)
		if acc == nil {
			return nil, nil
		}
		tried[acc.Username] = true
		req.Credentials = acc.Credentials()

		for _, s := range r.candidates(p.kind) {
			name := s.Name()
			r.emit(Event{Identifier: req.Identifier, State: StateTryAuthenticated, Strategy: name, Account: acc.Username})
			logger.LogStrategyAttempt(r.logger, req.Identifier, name, acc.Username)

			res, err := s.Fetch(ctx, req)
			r.metrics.ObserveAttempt(name, err)
			if err == nil {
				r.pool.RecordSuccess(acc.Username)
				r.metrics.SetAccountsAvailable(r.pool.AvailableCount())
				return r.finish(req, p, name, res)
			}

			logger.LogStrategyFailure(r.logger, req.Identifier, name, acc.Username, string(errs.TypeOf(err)), err)
			*worst = errs.MoreSpecific(*worst, err)

			switch {
			case ctx.Err() != nil:
				return nil, cancelled(req.Identifier, ctx.Err())
			case errs.IsTerminal(err):
				return nil, err
			case isSizeExceeded(err):
				return nil, err
			}
		}

		if r.pool.RecordFailure(acc.Username) {
			r.metrics.AccountQuarantined()
		}
		r.metrics.SetAccountsAvailable(r.pool.AvailableCount())
	}
}

// finish turns a strategy result into an Outcome and writes the sidecar
func (r *Router) finish(req *strategy.Request, p *plan, strategyName string, res *strategy.Result) (*models.Outcome, error) {
	kind := p.kind
	if p.degraded || len(res.MediaPaths) > 1 || (kind == models.KindCarousel && len(res.MediaPaths) == 1) {
		kind = storage.InferKind(res.MediaPaths)
	}

	out := &models.Outcome{
		MediaPaths:    res.MediaPaths,
		ThumbnailPath: res.ThumbnailPath,
		Kind:          kind,
		Platform:      r.platform,
		Strategy:      strategyName,
		Metadata: models.OutcomeMetadata{
			Identifier:  req.Identifier,
			RetrievedAt: r.now().UTC(),
		},
	}

	info := res.Info
	if info == nil {
		info = p.info
	}
	if info != nil {
		if info.Duration > 0 {
			d := info.Duration
			out.Metadata.DurationSeconds = &d
		}
		if info.Width > 0 && info.Height > 0 {
			w, h := info.Width, info.Height
			out.Metadata.Width = &w
			out.Metadata.Height = &h
		}
	}
	if len(out.MediaPaths) == 1 {
		if st, err := os.Stat(out.MediaPaths[0]); err == nil {
			size := st.Size()
			out.Metadata.SizeBytes = &size
		}
	}

	out.NormalizeThumbnail()
	if err := out.Validate(); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDownloadFailed, "Strategy returned an invalid result", err).
			WithDetail("identifier", req.Identifier).
			WithDetail("strategy", strategyName)
	}

	r.writeSidecar(req.Identifier, kind, strategyName, res, info)
	return out, nil
}

func (r *Router) writeSidecar(identifier string, kind models.Kind, strategyName string, res *strategy.Result, info *extractor.Info) {
	if r.meta == nil {
		return
	}

	var sc *metadata.Sidecar
	if res.GalleryMeta != nil {
		sc = metadata.FromGalleryMeta(res.GalleryMeta, identifier, kind)
	} else {
		sc = metadata.FromInfo(info, identifier, strategyName)
		sc.Post.Type = string(kind)
	}
	if _, err := r.meta.Save(identifier, sc); err != nil {
		r.logger.WithError(err).WarnWithFields("Failed to write metadata sidecar", map[string]interface{}{
			"identifier": identifier,
		})
	}
}

// failure builds the error that ends a request after every applicable
// method failed
func (r *Router) failure(identifier string, p *plan, worst error) error {
	if worst == nil {
		if p.requiresAuth && p.kind != models.KindVideo && r.HasCredentials() {
			return errs.AuthenticationFailed("All configured Instagram accounts are temporarily blocked").
				WithDetail("identifier", identifier).
				WithDetail("media_type", string(p.kind))
		}
		return errs.DownloadFailed("No download method available for this content").
			WithDetail("identifier", identifier).
			WithDetail("media_type", string(p.kind))
	}

	e, ok := errs.As(worst)
	if !ok {
		return errs.Wrap(errs.ErrorTypeDownloadFailed, "All download methods failed", worst).
			WithDetail("identifier", identifier)
	}
	if e.Type == errs.ErrorTypeDownloadFailed && !isSizeExceeded(e) {
		e.Message = "All download methods failed: " + e.Message
	}
	return e.WithDetail("identifier", identifier)
}

func (r *Router) emit(e Event) {
	if r.observer == nil {
		return
	}
	e.At = r.now()
	r.observer(e)
}

func cancelled(identifier string, err error) error {
	return errs.Wrap(errs.ErrorTypeDownloadFailed, "Download cancelled", err).
		WithDetail("identifier", identifier)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isSizeExceeded(err error) bool {
	e, ok := errs.As(err)
	return ok && e.Details["reason"] == "size_exceeded"
}

func copyOutcome(o *models.Outcome) *models.Outcome {
	cp := *o
	cp.MediaPaths = append([]string(nil), o.MediaPaths...)
	return &cp
}
