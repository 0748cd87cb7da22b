// Package platform detects which social platform a URL belongs to and
// dispatches it to that platform's downloader.
package platform

import (
	"context"
	"net/url"
	"strings"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/probe"
)

// Platform is a downloader for one social platform
type Platform interface {
	Name() string
	CanHandle(url string) bool
	Download(ctx context.Context, url string) (*models.Outcome, error)
	Probe(ctx context.Context, url string) (*probe.Result, error)
	Info() Info
}

// Info describes a platform and what it can fetch
type Info struct {
	Platform       string   `json:"platform"`
	SupportedTypes []string `json:"supported_types"`
	RequiresAuth   bool     `json:"requires_auth"`
	MaxQuality     string   `json:"max_quality,omitempty"`
}

// Registry holds the platforms in detection order
type Registry struct {
	platforms []Platform
	logger    logger.Logger
}

// NewRegistry creates a registry. Platforms are asked in the order given.
func NewRegistry(log logger.Logger, platforms ...Platform) *Registry {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Registry{
		platforms: platforms,
		logger:    log.WithField("component", "platform"),
	}
}

// Detect returns the first platform that accepts url, or nil
func (r *Registry) Detect(rawURL string) Platform {
	for _, p := range r.platforms {
		if p.CanHandle(rawURL) {
			r.logger.DebugWithFields("Detected platform", map[string]interface{}{
				"platform": p.Name(),
			})
			return p
		}
	}
	r.logger.WarnWithFields("No platform found for URL", map[string]interface{}{
		"url": rawURL,
	})
	return nil
}

// Lookup returns the platform registered under name
func (r *Registry) Lookup(name string) Platform {
	for _, p := range r.platforms {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// IsSupported reports whether any platform accepts url
func (r *Registry) IsSupported(rawURL string) bool {
	for _, p := range r.platforms {
		if p.CanHandle(rawURL) {
			return true
		}
	}
	return false
}

// Dispatch downloads url with the platform that accepts it
func (r *Registry) Dispatch(ctx context.Context, rawURL string) (*models.Outcome, error) {
	p := r.Detect(rawURL)
	if p == nil {
		return nil, Unsupported(rawURL)
	}

	r.logger.InfoWithFields("Routing download", map[string]interface{}{
		"platform": p.Name(),
		"url":      rawURL,
	})
	out, err := p.Download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	out.Platform = p.Name()
	return out, nil
}

// Probe classifies url with the platform that accepts it
func (r *Registry) Probe(ctx context.Context, rawURL string) (*probe.Result, error) {
	p := r.Detect(rawURL)
	if p == nil {
		return nil, Unsupported(rawURL)
	}
	return p.Probe(ctx, rawURL)
}

// Platforms describes every registered platform
func (r *Registry) Platforms() []Info {
	out := make([]Info, 0, len(r.platforms))
	for _, p := range r.platforms {
		out = append(out, p.Info())
	}
	return out
}

// Unsupported is the error for a URL no platform accepts. The hint names
// the likely problem when the host is recognizable.
func Unsupported(rawURL string) *errs.Error {
	return errs.InvalidURL("Unsupported URL or platform. "+unsupportedHint(rawURL)).
		WithDetail("url", rawURL)
}

func unsupportedHint(rawURL string) string {
	host := hostOf(rawURL)
	switch {
	case hostIs(host, "instagram.com"):
		return "URL might be malformed. Check Instagram URL format."
	case hostIs(host, "youtube.com", "youtu.be"):
		return "URL might be malformed. Check YouTube URL format."
	case hostIs(host, "tiktok.com"):
		return "TikTok support not yet available"
	case hostIs(host, "twitter.com", "x.com"):
		return "Twitter/X support not yet available"
	default:
		return "Supported platforms: Instagram, YouTube"
	}
}

func hostOf(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func hostIs(host string, domains ...string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
