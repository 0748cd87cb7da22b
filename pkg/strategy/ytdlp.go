package strategy

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"mediagrab/pkg/accounts"
	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/extractor"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/storage"
)

// YtDlp downloads with yt-dlp using a pooled login. yt-dlp cannot fetch
// Instagram photos and only sees the first item of a carousel, so it is
// limited to videos.
type YtDlp struct {
	ytdlp    *extractor.YtDlp
	fetcher  Fetcher
	maxBytes int64
	intn     func(int) int
	logger   logger.Logger
}

// NewYtDlp creates the yt-dlp strategy. fetcher downloads thumbnails and
// may be nil.
func NewYtDlp(ytdlp *extractor.YtDlp, fetcher Fetcher, maxBytes int64, log logger.Logger) *YtDlp {
	if log == nil {
		log = logger.GetLogger()
	}
	return &YtDlp{
		ytdlp:    ytdlp,
		fetcher:  fetcher,
		maxBytes: maxBytes,
		logger:   log.WithField("strategy", NameYtDlp),
	}
}

func (s *YtDlp) Name() string                   { return NameYtDlp }
func (s *YtDlp) NeedsCredentials() bool         { return true }
func (s *YtDlp) Supports(kind models.Kind) bool { return kind == models.KindVideo }

// mediaExtensions are tried in order when looking for yt-dlp's output
var mediaExtensions = []string{"mp4", "webm", "mov", "jpg", "jpeg", "png"}

// Fetch downloads the post into req.TargetDir
func (s *YtDlp) Fetch(ctx context.Context, req *Request) (*Result, error) {
	date := req.date()
	base := date + "_" + req.Identifier

	opts := extractor.DownloadOptions{
		Auth:           s.auth(req.Credentials),
		OutputTemplate: filepath.Join(req.TargetDir, base+".%(ext)s"),
		MaxFileSize:    s.maxBytes,
	}

	out, err := s.ytdlp.Download(ctx, req.URL, opts)
	if err != nil {
		return nil, classifyExecError(ctx, NameYtDlp, req, err)
	}

	mediaPath := findDownloaded(req.TargetDir, base, req.Identifier)
	if mediaPath == "" {
		if strings.Contains(strings.ToLower(string(out)), "max-filesize") {
			return nil, sizeExceeded(req, base, 0, s.maxBytes)
		}
		return nil, errs.DownloadFailed("Media file not found after download").
			WithDetail("identifier", req.Identifier).
			WithDetail("directory", req.TargetDir)
	}
	if err := checkSize(req, mediaPath, s.maxBytes); err != nil {
		return nil, err
	}

	result := &Result{MediaPaths: []string{mediaPath}, Info: req.Info}
	if storage.IsVideoFile(mediaPath) {
		result.ThumbnailPath = s.thumbnail(ctx, req, date)
	}

	s.logger.InfoWithFields("yt-dlp download complete", map[string]interface{}{
		"identifier": req.Identifier,
		"file":       filepath.Base(mediaPath),
	})
	return result, nil
}

func (s *YtDlp) auth(creds *accounts.Credentials) extractor.Auth {
	auth := extractor.Auth{UserAgent: RandomUserAgent(s.intn)}
	if creds != nil {
		auth.Username = creds.Username
		auth.Password = creds.Password
	}
	return auth
}

// thumbnail fetches the probe's thumbnail; failures only cost the thumbnail
func (s *YtDlp) thumbnail(ctx context.Context, req *Request, date string) string {
	if s.fetcher == nil || req.Info == nil {
		return ""
	}
	thumbURL := req.Info.ThumbnailURL()
	if thumbURL == "" {
		return ""
	}
	dest := filepath.Join(req.TargetDir, storage.ThumbnailName(date, req.Identifier, "jpg"))
	if _, err := s.fetcher.DownloadFile(ctx, thumbURL, dest, s.maxBytes); err != nil {
		s.logger.WithError(err).WarnWithFields("Thumbnail download failed", map[string]interface{}{
			"identifier": req.Identifier,
		})
		return ""
	}
	return dest
}

// findDownloaded locates yt-dlp's output: the expected name with a known
// extension first, then anything mentioning the identifier
func findDownloaded(dir, base, identifier string) string {
	for _, ext := range mediaExtensions {
		p := filepath.Join(dir, base+"."+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*"+identifier+"*"))
	for _, m := range matches {
		if storage.IsMediaFile(m) {
			return m
		}
	}
	return ""
}
