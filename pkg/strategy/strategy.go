// Package strategy holds the interchangeable ways of fetching one post:
// Instagram's public endpoints, yt-dlp and gallery-dl. Every strategy
// translates its failures into pkg/errors before returning, so callers
// never see a raw exec or HTTP error.
package strategy

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"mediagrab/pkg/accounts"
	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/extractor"
	"mediagrab/pkg/models"
	"mediagrab/pkg/storage"
)

// Strategy names
const (
	NameProxy     = "proxy"
	NameYtDlp     = "yt-dlp"
	NameGalleryDl = "gallery-dl"
)

// Strategy fetches the media of one post into a target directory
type Strategy interface {
	Name() string
	NeedsCredentials() bool
	Supports(kind models.Kind) bool
	Fetch(ctx context.Context, req *Request) (*Result, error)
}

// Request describes one fetch attempt
type Request struct {
	Identifier  string
	URL         string
	TargetDir   string
	Kind        models.Kind
	ItemCount   int
	Credentials *accounts.Credentials
	// Info is the probe output, when the probe succeeded
	Info *extractor.Info
	// Date prefixes file names; empty means today
	Date string
}

func (r *Request) date() string {
	if r.Date != "" {
		return r.Date
	}
	return storage.DateStamp(time.Now())
}

func (r *Request) details() map[string]interface{} {
	return map[string]interface{}{"identifier": r.Identifier}
}

// Result lists the files a strategy produced
type Result struct {
	MediaPaths    []string
	ThumbnailPath string
	Info          *extractor.Info
	// GalleryMeta is gallery-dl's metadata for the first item, if written
	GalleryMeta map[string]interface{}
}

// Fetcher downloads a URL to a local file with a size ceiling
type Fetcher interface {
	DownloadFile(ctx context.Context, url, dest string, maxBytes int64) (int64, error)
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
}

// RandomUserAgent picks one of the built-in browser user agents
func RandomUserAgent(intn func(int) int) string {
	if intn == nil {
		intn = rand.IntN
	}
	return userAgents[intn(len(userAgents))]
}

// classifyExecError turns a runner failure into a typed error
func classifyExecError(ctx context.Context, strategy string, req *Request, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errs.Wrap(errs.ErrorTypeDownloadFailed, "Download cancelled", ctxErr).
			WithDetail("identifier", req.Identifier).
			WithDetail("strategy", strategy)
	}
	c := errs.Classify(extractor.ErrorText(err), req.details())
	c.Err = err
	return c.WithDetail("strategy", strategy)
}

// sizeExceeded is the failure for a file over the byte ceiling
func sizeExceeded(req *Request, path string, size, limit int64) *errs.Error {
	return errs.DownloadFailed("Downloaded file exceeds the maximum allowed size").
		WithDetail("identifier", req.Identifier).
		WithDetail("reason", "size_exceeded").
		WithDetail("file", filepath.Base(path)).
		WithDetail("size_bytes", size).
		WithDetail("max_bytes", limit)
}

// checkSize deletes path and fails when it is larger than limit
func checkSize(req *Request, path string, limit int64) error {
	if limit <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeDownloadFailed, "Downloaded file disappeared", err).
			WithDetail("identifier", req.Identifier)
	}
	if info.Size() > limit {
		os.Remove(path)
		return sizeExceeded(req, path, info.Size(), limit)
	}
	return nil
}
