package router

import (
	"context"

	"mediagrab/pkg/probe"
)

// Prober classifies a post before any media is fetched
type Prober interface {
	ProbeURL(ctx context.Context, identifier, url string) (*probe.Result, error)
}
