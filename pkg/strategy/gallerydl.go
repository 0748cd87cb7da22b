package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/extractor"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/storage"
)

// GalleryDl downloads every item of a post with gallery-dl. It always
// logs in.
type GalleryDl struct {
	gallery  *extractor.GalleryDl
	maxBytes int64
	logger   logger.Logger
}

// NewGalleryDl creates the gallery-dl strategy
func NewGalleryDl(gallery *extractor.GalleryDl, maxBytes int64, log logger.Logger) *GalleryDl {
	if log == nil {
		log = logger.GetLogger()
	}
	return &GalleryDl{gallery: gallery, maxBytes: maxBytes, logger: log.WithField("strategy", NameGalleryDl)}
}

func (s *GalleryDl) Name() string                   { return NameGalleryDl }
func (s *GalleryDl) NeedsCredentials() bool         { return true }
func (s *GalleryDl) Supports(kind models.Kind) bool { return true }

// Fetch downloads into a scratch directory and renames the items into place
func (s *GalleryDl) Fetch(ctx context.Context, req *Request) (*Result, error) {
	if req.Credentials == nil || req.Credentials.Username == "" || req.Credentials.Password == "" {
		return nil, errs.AuthenticationFailed("gallery-dl requires Instagram credentials").
			WithDetail("identifier", req.Identifier)
	}

	scratch := filepath.Join(req.TargetDir, ".gallery-dl-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDownloadFailed, "Failed to create scratch directory", err).
			WithDetail("identifier", req.Identifier)
	}
	defer os.RemoveAll(scratch)

	out, err := s.gallery.Download(ctx, req.URL, extractor.GalleryOptions{
		Username:      req.Credentials.Username,
		Password:      req.Credentials.Password,
		Directory:     scratch,
		WriteMetadata: true,
	})
	if err != nil {
		return nil, classifyExecError(ctx, NameGalleryDl, req, err)
	}

	items, err := collectItems(scratch)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDownloadFailed, "Failed to read gallery-dl output", err).
			WithDetail("identifier", req.Identifier)
	}
	if len(items) == 0 {
		if text := strings.TrimSpace(string(out)); text != "" {
			if c := errs.Classify(text, req.details()); c.Type != errs.ErrorTypeDownloadFailed {
				return nil, c.WithDetail("strategy", NameGalleryDl)
			}
		}
		return nil, errs.DownloadFailed("gallery-dl produced no media files").
			WithDetail("identifier", req.Identifier).
			WithDetail("strategy", NameGalleryDl)
	}

	for _, item := range items {
		if err := checkSize(req, item, s.maxBytes); err != nil {
			return nil, err
		}
	}

	result := &Result{Info: req.Info, GalleryMeta: readGalleryMeta(items[0])}
	date := req.date()
	for i, item := range items {
		ext := strings.TrimPrefix(filepath.Ext(item), ".")
		dest := filepath.Join(req.TargetDir, storage.MediaName(date, req.Identifier, i+1, len(items), ext))
		if err := os.Rename(item, dest); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeDownloadFailed, "Failed to move downloaded item", err).
				WithDetail("identifier", req.Identifier)
		}
		result.MediaPaths = append(result.MediaPaths, dest)
	}

	s.logger.InfoWithFields("gallery-dl download complete", map[string]interface{}{
		"identifier": req.Identifier,
		"items":      len(result.MediaPaths),
	})
	return result, nil
}

// collectItems lists media files below dir in gallery-dl's numbering order
func collectItems(dir string) ([]string, error) {
	var items []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".json", ".txt", ".part":
			return nil
		}
		if strings.Contains(name, storage.ThumbSuffix) || !storage.IsMediaFile(name) {
			return nil
		}
		items = append(items, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(items)
	return items, nil
}

// readGalleryMeta loads the {file}.json sidecar gallery-dl writes next to an item
func readGalleryMeta(item string) map[string]interface{} {
	data, err := os.ReadFile(item + ".json")
	if err != nil {
		return nil
	}
	var meta map[string]interface{}
	if json.Unmarshal(data, &meta) != nil {
		return nil
	}
	return meta
}
