// Package probe classifies a post as video, photo or carousel before any
// media is downloaded.
package probe

import (
	"context"

	"mediagrab/pkg/accounts"
	"mediagrab/pkg/errors"
	"mediagrab/pkg/extractor"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/parser"
)

// AuthPolicy decides which kinds can only be fetched with an account
type AuthPolicy struct {
	Video    bool
	Photo    bool
	Carousel bool
}

// DefaultAuthPolicy treats photos and carousels as login-only
func DefaultAuthPolicy() AuthPolicy {
	return AuthPolicy{Video: false, Photo: true, Carousel: true}
}

// Requires reports whether kind needs credentials under the policy
func (p AuthPolicy) Requires(kind models.Kind) bool {
	switch kind {
	case models.KindVideo:
		return p.Video
	case models.KindPhoto:
		return p.Photo
	case models.KindCarousel:
		return p.Carousel
	default:
		return true
	}
}

// Result is the classification of a post
type Result struct {
	Kind         models.Kind     `json:"media_type"`
	ItemCount    int             `json:"item_count"`
	RequiresAuth bool            `json:"requires_auth"`
	Info         *extractor.Info `json:"-"`
}

// InfoFetcher is the part of yt-dlp the prober needs
type InfoFetcher interface {
	DumpJSON(ctx context.Context, url string, auth extractor.Auth) (*extractor.Info, error)
}

// Prober inspects posts with yt-dlp
type Prober struct {
	fetcher InfoFetcher
	pool    *accounts.Pool
	policy  AuthPolicy
	ua      string
	logger  logger.Logger
}

// New creates a Prober. pool may be nil or empty.
func New(fetcher InfoFetcher, pool *accounts.Pool, policy AuthPolicy, userAgent string, log logger.Logger) *Prober {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Prober{
		fetcher: fetcher,
		pool:    pool,
		policy:  policy,
		ua:      userAgent,
		logger:  log.WithField("component", "probe"),
	}
}

// Policy returns the auth policy in use
func (p *Prober) Policy() AuthPolicy {
	return p.policy
}

// Probe classifies the Instagram post with the given shortcode
func (p *Prober) Probe(ctx context.Context, identifier string) (*Result, error) {
	return p.ProbeURL(ctx, identifier, parser.InstagramPostURL(identifier))
}

// ProbeURL classifies the post at url, reporting errors against identifier
func (p *Prober) ProbeURL(ctx context.Context, identifier, url string) (*Result, error) {
	auth := extractor.Auth{UserAgent: p.ua}
	if p.pool != nil {
		if acc := p.pool.SelectRandom(); acc != nil {
			auth.Username = acc.Username
			auth.Password = acc.Password
		}
	}

	p.logger.DebugWithFields("Probing content", map[string]interface{}{
		"identifier": identifier,
		"with_login": auth.Username != "",
	})

	info, err := p.fetcher.DumpJSON(ctx, url, auth)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrorTypeDownloadFailed, "Probe cancelled", ctx.Err()).
				WithDetail("identifier", identifier)
		}
		perr := classifyProbeError(identifier, err)
		// private or missing posts say nothing about the account
		if auth.Username != "" && !errors.IsTerminal(perr) {
			p.pool.RecordFailure(auth.Username)
		}
		return nil, perr
	}
	if auth.Username != "" {
		p.pool.RecordSuccess(auth.Username)
	}

	result := Classify(info, p.policy)
	p.logger.InfoWithFields("Content classified", map[string]interface{}{
		"identifier":    identifier,
		"kind":          string(result.Kind),
		"item_count":    result.ItemCount,
		"requires_auth": result.RequiresAuth,
	})
	return result, nil
}

// Classify turns extractor info into a Result
func Classify(info *extractor.Info, policy AuthPolicy) *Result {
	r := &Result{Info: info, ItemCount: 1}
	switch {
	case info.IsPlaylist():
		r.Kind = models.KindCarousel
		if n := len(info.Entries); n > 0 {
			r.ItemCount = n
		}
	case info.LooksLikeVideo():
		r.Kind = models.KindVideo
	default:
		r.Kind = models.KindPhoto
	}
	r.RequiresAuth = policy.Requires(r.Kind)
	return r
}

// classifyProbeError narrows probe failures to three outcomes. Anything
// that is not clearly private or missing is reported as a generic failure
// so the router can still try its strategies.
func classifyProbeError(identifier string, err error) *errors.Error {
	c := errors.Classify(extractor.ErrorText(err), map[string]interface{}{"identifier": identifier})
	switch c.Type {
	case errors.ErrorTypePrivateAccount, errors.ErrorTypeContentNotFound:
		c.Err = err
		return c
	default:
		return errors.Wrap(errors.ErrorTypeDownloadFailed, "Failed to inspect content", err).
			WithDetail("identifier", identifier).
			WithDetail("error", extractor.ErrorText(err))
	}
}
