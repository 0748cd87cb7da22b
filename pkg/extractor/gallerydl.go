package extractor

import (
	"context"
	"fmt"
	"strings"
)

// GalleryDl drives the gallery-dl binary
type GalleryDl struct {
	path   string
	runner Runner
}

// NewGalleryDl creates a gallery-dl wrapper. An empty path means "gallery-dl" on PATH.
func NewGalleryDl(path string, runner Runner) *GalleryDl {
	if path == "" {
		path = "gallery-dl"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &GalleryDl{path: path, runner: runner}
}

// GalleryOptions controls a gallery-dl download
type GalleryOptions struct {
	Username      string
	Password      string
	Directory     string
	WriteMetadata bool
}

// GalleryFilename names files by their position in the post so a plain
// lexical sort restores gallery-dl's ordering
const GalleryFilename = "{num:>03}.{extension}"

// Download fetches every item of a post into Directory
func (g *GalleryDl) Download(ctx context.Context, url string, opts GalleryOptions) ([]byte, error) {
	args := []string{
		"-D", opts.Directory,
		"-f", GalleryFilename,
		"--no-part",
	}
	if opts.WriteMetadata {
		args = append(args, "--write-metadata")
	}
	if opts.Username != "" && opts.Password != "" {
		contents, err := galleryConfig(opts.Username, opts.Password)
		if err != nil {
			return nil, err
		}
		path, cleanup, err := credentialFile("mediagrab-gallerydl-*.json", contents)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		args = append(args, "--config", path)
	}
	args = append(args, url)

	return g.runner.Run(ctx, g.path, args...)
}

// Version returns the installed gallery-dl version
func (g *GalleryDl) Version(ctx context.Context) (string, error) {
	out, err := g.runner.Run(ctx, g.path, "--version")
	if err != nil {
		return "", fmt.Errorf("gallery-dl not found: %w (install: pip install gallery-dl)", err)
	}
	return strings.TrimSpace(string(out)), nil
}
