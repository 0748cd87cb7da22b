package platform

import (
	"context"

	"mediagrab/pkg/models"
	"mediagrab/pkg/parser"
	"mediagrab/pkg/probe"
	"mediagrab/pkg/router"
)

// Instagram downloads reels, posts and IGTV through the router
type Instagram struct {
	router *router.Router
	prober router.Prober
	parser parser.InstagramParser
}

// NewInstagram creates the Instagram platform. prober answers Probe calls
// and is normally the same one the router uses.
func NewInstagram(r *router.Router, prober router.Prober) *Instagram {
	return &Instagram{router: r, prober: prober}
}

func (p *Instagram) Name() string { return models.PlatformInstagram }

// CanHandle accepts URLs a shortcode can be extracted from
func (p *Instagram) CanHandle(url string) bool {
	return p.parser.IsValid(url)
}

// Download fetches the post behind url
func (p *Instagram) Download(ctx context.Context, url string) (*models.Outcome, error) {
	code, err := p.parser.ExtractShortcode(url)
	if err != nil {
		return nil, err
	}
	return p.router.Download(ctx, code)
}

// Probe classifies the post behind url without downloading it
func (p *Instagram) Probe(ctx context.Context, url string) (*probe.Result, error) {
	code, err := p.parser.ExtractShortcode(url)
	if err != nil {
		return nil, err
	}
	return p.prober.ProbeURL(ctx, code, parser.InstagramPostURL(code))
}

// Capabilities reports what the router can fetch with the configured accounts
func (p *Instagram) Capabilities() router.Capabilities {
	return p.router.Capabilities()
}

func (p *Instagram) Info() Info {
	caps := p.router.Capabilities()
	types := []string{"video", "reel", "carousel_first_item"}
	if caps.PhotoPosts {
		types = append(types, "photo")
	}
	if caps.CarouselFull {
		types = append(types, "carousel")
	}
	return Info{
		Platform:       models.PlatformInstagram,
		SupportedTypes: types,
		RequiresAuth:   caps.RequiresAuthentication,
	}
}
