package strategy

import (
	"context"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/instagram"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/storage"
)

// PublicClient is the part of instagram.Client the proxy strategy uses
type PublicClient interface {
	Fetcher
	OEmbed(ctx context.Context, shortcode string) (*instagram.OEmbedResponse, error)
	EmbedMediaURLs(ctx context.Context, shortcode string) ([]string, error)
	PostJSON(ctx context.Context, shortcode string) (*instagram.PostMedia, error)
}

// Proxy downloads through Instagram's public endpoints without logging in.
// It only ever returns the first item of a carousel.
type Proxy struct {
	client   PublicClient
	maxBytes int64
	logger   logger.Logger
}

// NewProxy creates the credential-free strategy
func NewProxy(client PublicClient, maxBytes int64, log logger.Logger) *Proxy {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Proxy{client: client, maxBytes: maxBytes, logger: log.WithField("strategy", NameProxy)}
}

func (p *Proxy) Name() string                   { return NameProxy }
func (p *Proxy) NeedsCredentials() bool         { return false }
func (p *Proxy) Supports(kind models.Kind) bool { return true }

// Fetch tries oEmbed, the embed page and the JSON view in turn
func (p *Proxy) Fetch(ctx context.Context, req *Request) (*Result, error) {
	var worst error
	note := func(step string, err error) error {
		if errs.IsType(err, errs.ErrorTypeContentNotFound) || ctx.Err() != nil {
			return err
		}
		p.logger.WithError(err).WarnWithFields("Proxy step failed", map[string]interface{}{
			"identifier": req.Identifier,
			"step":       step,
		})
		worst = errs.MoreSpecific(worst, err)
		return nil
	}

	var thumbURL string
	if oembed, err := p.client.OEmbed(ctx, req.Identifier); err != nil {
		if err := note("oembed", err); err != nil {
			return nil, p.fail(ctx, req, err)
		}
	} else if oembed != nil {
		thumbURL = oembed.ThumbnailURL
	}

	urls, err := p.client.EmbedMediaURLs(ctx, req.Identifier)
	if err != nil {
		if err := note("embed", err); err != nil {
			return nil, p.fail(ctx, req, err)
		}
	}

	if len(urls) == 0 {
		media, err := p.client.PostJSON(ctx, req.Identifier)
		if err != nil {
			if err := note("json", err); err != nil {
				return nil, p.fail(ctx, req, err)
			}
		}
		urls = media.URLs()
	}

	if len(urls) == 0 && req.Kind == models.KindPhoto && thumbURL != "" {
		urls = []string{thumbURL}
	}

	if len(urls) == 0 {
		if errs.IsType(worst, errs.ErrorTypeRateLimitExceeded) || errs.IsType(worst, errs.ErrorTypeAuthentication) {
			return nil, p.fail(ctx, req, worst)
		}
		return nil, errs.APIChanged("All proxy methods failed - Instagram may require authentication").
			WithDetail("identifier", req.Identifier)
	}

	mediaURL := instagram.PreferVideo(urls)
	date := req.date()
	ext := extensionFromURL(mediaURL)
	dest := filepath.Join(req.TargetDir, storage.MediaName(date, req.Identifier, 1, 1, ext))

	if _, err := p.client.DownloadFile(ctx, mediaURL, dest, p.maxBytes); err != nil {
		return nil, p.fail(ctx, req, err)
	}

	result := &Result{MediaPaths: []string{dest}, Info: req.Info}

	if storage.IsVideoFile(dest) {
		if thumbURL == "" {
			for _, u := range urls {
				if u != mediaURL && !strings.Contains(u, ".mp4") {
					thumbURL = u
					break
				}
			}
		}
		if thumbURL != "" {
			thumbPath := filepath.Join(req.TargetDir, storage.ThumbnailName(date, req.Identifier, "jpg"))
			if _, err := p.client.DownloadFile(ctx, thumbURL, thumbPath, p.maxBytes); err != nil {
				p.logger.WithError(err).Warn("Thumbnail download failed")
			} else {
				result.ThumbnailPath = thumbPath
			}
		}
	}

	p.logger.InfoWithFields("Proxy download complete", map[string]interface{}{
		"identifier": req.Identifier,
		"file":       filepath.Base(dest),
	})
	return result, nil
}

func (p *Proxy) fail(ctx context.Context, req *Request, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errs.Wrap(errs.ErrorTypeDownloadFailed, "Download cancelled", ctxErr).
			WithDetail("identifier", req.Identifier)
	}
	if e, ok := errs.As(err); ok {
		return e.WithDetail("identifier", req.Identifier).WithDetail("strategy", NameProxy)
	}
	return errs.Wrap(errs.ErrorTypeDownloadFailed, "Proxy download failed", err).
		WithDetail("identifier", req.Identifier)
}

// extensionFromURL reads the file extension from a CDN URL path
func extensionFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "jpg"
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	switch ext {
	case "mp4", "jpg", "jpeg", "png", "webp", "webm", "mov":
		return ext
	default:
		return "jpg"
	}
}
