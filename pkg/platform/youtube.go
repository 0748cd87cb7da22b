package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/extractor"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/metadata"
	"mediagrab/pkg/metrics"
	"mediagrab/pkg/models"
	"mediagrab/pkg/parser"
	"mediagrab/pkg/probe"
	"mediagrab/pkg/storage"
	"mediagrab/pkg/strategy"
)

// youtubeFormat prefers a single mp4 file so no merge step is needed
const youtubeFormat = "best[ext=mp4]/best"

var thumbnailExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}

// YouTubeOptions configures the YouTube platform
type YouTubeOptions struct {
	MaxFileSize int64
	UserAgent   string
	Metadata    *metadata.Store
	Metrics     *metrics.Metrics
	Now         func() time.Time
	Logger      logger.Logger
}

// YouTube downloads videos, shorts and finished live streams with yt-dlp.
// Files live under youtube_{id} so they never collide with Instagram
// shortcodes of the same length.
type YouTube struct {
	store  *storage.Manager
	ytdlp  *extractor.YtDlp
	opts   YouTubeOptions
	parser parser.YouTubeParser
	logger logger.Logger
}

// NewYouTube creates the YouTube platform
func NewYouTube(store *storage.Manager, ytdlp *extractor.YtDlp, opts YouTubeOptions) *YouTube {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	return &YouTube{
		store:  store,
		ytdlp:  ytdlp,
		opts:   opts,
		logger: opts.Logger.WithField("platform", models.PlatformYouTube),
	}
}

// StorageKey is the per-video directory name and file name stem
func StorageKey(videoID string) string {
	return "youtube_" + videoID
}

func (p *YouTube) Name() string { return models.PlatformYouTube }

// CanHandle accepts watch, youtu.be, shorts and mobile URLs
func (p *YouTube) CanHandle(url string) bool {
	return p.parser.IsValid(url)
}

func (p *YouTube) Info() Info {
	return Info{
		Platform:       models.PlatformYouTube,
		SupportedTypes: []string{"video", "shorts", "live_vod"},
		RequiresAuth:   false,
		MaxQuality:     "best available",
	}
}

// Probe reads the video's metadata. YouTube content never needs a login.
func (p *YouTube) Probe(ctx context.Context, url string) (*probe.Result, error) {
	id, err := p.parser.ExtractVideoID(url)
	if err != nil {
		return nil, err
	}
	info, err := p.ytdlp.DumpJSON(ctx, parser.YouTubeURL(id), extractor.Auth{UserAgent: p.opts.UserAgent})
	if err != nil {
		return nil, p.classify(ctx, id, err)
	}
	return probe.Classify(info, probe.AuthPolicy{}), nil
}

// Download fetches the video behind url
func (p *YouTube) Download(ctx context.Context, url string) (*models.Outcome, error) {
	id, err := p.parser.ExtractVideoID(url)
	if err != nil {
		return nil, err
	}

	start := p.opts.Now()
	out, err := p.download(ctx, id)
	elapsed := p.opts.Now().Sub(start)

	name, files := "", 0
	if err == nil {
		name, files = out.Strategy, len(out.MediaPaths)
	}
	p.opts.Metrics.ObserveDownload(models.PlatformYouTube, name, err, elapsed)
	logger.LogDownload(p.logger, id, models.PlatformYouTube, name, files, elapsed, err)
	return out, err
}

func (p *YouTube) download(ctx context.Context, id string) (*models.Outcome, error) {
	key := StorageKey(id)

	existing, err := p.store.FindExisting(key)
	if err != nil {
		p.logger.WithError(err).WarnWithFields("Existing file check failed", map[string]interface{}{
			"video_id": id,
		})
	}
	if existing != nil {
		existing.Platform = models.PlatformYouTube
		existing.Metadata.Identifier = id
		return existing, nil
	}

	dir, err := p.store.EnsureDir(key)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDownloadFailed, "Failed to create download directory", err).
			WithDetail("video_id", id)
	}

	watchURL := parser.YouTubeURL(id)
	auth := extractor.Auth{UserAgent: p.opts.UserAgent}

	p.logger.InfoWithFields("Extracting video information", map[string]interface{}{"video_id": id})
	info, err := p.ytdlp.DumpJSON(ctx, watchURL, auth)
	if err != nil {
		return nil, p.classify(ctx, id, err)
	}
	if info.IsUpcomingOrLive() {
		return nil, errs.DownloadFailed("Cannot download live streams").
			WithDetail("video_id", id)
	}

	date := storage.DateStamp(p.opts.Now())
	base := date + "_" + key
	output, err := p.ytdlp.Download(ctx, watchURL, extractor.DownloadOptions{
		Auth:           auth,
		OutputTemplate: filepath.Join(dir, base+".%(ext)s"),
		Format:         youtubeFormat,
		MaxFileSize:    p.opts.MaxFileSize,
		WriteThumbnail: true,
	})
	if err != nil {
		return nil, p.classify(ctx, id, err)
	}

	video, thumb := p.collect(dir, base, date, key)
	if video == "" {
		if strings.Contains(strings.ToLower(string(output)), "max-filesize") {
			return nil, p.sizeExceeded(id, 0)
		}
		return nil, errs.DownloadFailed("Video file not found after download").
			WithDetail("video_id", id).
			WithDetail("target_dir", dir)
	}

	st, err := os.Stat(video)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeDownloadFailed, "Downloaded file disappeared", err).
			WithDetail("video_id", id)
	}
	if p.opts.MaxFileSize > 0 && st.Size() > p.opts.MaxFileSize {
		os.Remove(video)
		return nil, p.sizeExceeded(id, st.Size())
	}

	size := st.Size()
	outcome := &models.Outcome{
		MediaPaths:    []string{video},
		ThumbnailPath: thumb,
		Kind:          models.KindVideo,
		Platform:      models.PlatformYouTube,
		Strategy:      strategy.NameYtDlp,
		Metadata: models.OutcomeMetadata{
			Identifier:  id,
			SizeBytes:   &size,
			RetrievedAt: p.opts.Now().UTC(),
		},
	}
	if info.Duration > 0 {
		d := info.Duration
		outcome.Metadata.DurationSeconds = &d
	}
	if info.Width > 0 && info.Height > 0 {
		w, h := info.Width, info.Height
		outcome.Metadata.Width = &w
		outcome.Metadata.Height = &h
	}
	outcome.NormalizeThumbnail()

	p.logger.InfoWithFields("YouTube download successful", map[string]interface{}{
		"video_id": id,
		"file":     filepath.Base(video),
		"size":     humanize.Bytes(uint64(size)),
		"duration": info.Duration,
	})
	p.writeSidecar(key, id, info)
	return outcome, nil
}

// collect finds the video yt-dlp wrote and renames its thumbnail to the
// _thumb name so it is never mistaken for media
func (p *YouTube) collect(dir, base, date, key string) (video, thumb string) {
	matches, _ := filepath.Glob(filepath.Join(dir, base+".*"))
	for _, m := range matches {
		ext := strings.ToLower(filepath.Ext(m))
		switch {
		case storage.IsVideoFile(m):
			if video == "" {
				video = m
			}
		case thumbnailExts[ext] && thumb == "":
			dest := filepath.Join(dir, storage.ThumbnailName(date, key, ext))
			if err := os.Rename(m, dest); err != nil {
				p.logger.WithError(err).Warn("Failed to rename thumbnail")
				continue
			}
			thumb = dest
		}
	}
	return video, thumb
}

func (p *YouTube) writeSidecar(key, id string, info *extractor.Info) {
	if p.opts.Metadata == nil {
		return
	}
	sc := metadata.FromInfo(info, key, metadata.SourceYtDlp)
	sc.Post.Type = string(models.KindVideo)
	if info.WebpageURL == "" {
		sc.Post.URL = parser.YouTubeURL(id)
	}
	if _, err := p.opts.Metadata.Save(key, sc); err != nil {
		p.logger.WithError(err).WarnWithFields("Failed to write metadata sidecar", map[string]interface{}{
			"video_id": id,
		})
	}
}

func (p *YouTube) sizeExceeded(id string, size int64) *errs.Error {
	e := errs.DownloadFailed(fmt.Sprintf("Video exceeds the maximum allowed size of %s",
		humanize.Bytes(uint64(p.opts.MaxFileSize)))).
		WithDetail("video_id", id).
		WithDetail("reason", "size_exceeded").
		WithDetail("max_bytes", p.opts.MaxFileSize)
	if size > 0 {
		e = e.WithDetail("size_bytes", size)
	}
	return e
}

// classify maps yt-dlp failures for YouTube. Unavailable and private
// videos are reported as missing; everything else is a download failure.
func (p *YouTube) classify(ctx context.Context, id string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errs.Wrap(errs.ErrorTypeDownloadFailed, "Download cancelled", ctxErr).
			WithDetail("video_id", id)
	}
	msg := extractor.ErrorText(err)
	if strings.Contains(msg, "Video unavailable") || strings.Contains(msg, "Private video") {
		e := errs.ContentNotFound("Video not found, private, or unavailable").
			WithDetail("video_id", id).
			WithDetail("error", msg)
		e.Err = err
		return e
	}
	return errs.Wrap(errs.ErrorTypeDownloadFailed, "YouTube download failed: "+msg, err).
		WithDetail("video_id", id)
}
