package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"mediagrab/pkg/models"
)

// DateLayout is the date prefix of every stored file
const DateLayout = "2006-01-02"

// ThumbSuffix marks a thumbnail next to its media file
const ThumbSuffix = "_thumb"

var videoExts = map[string]bool{".mp4": true, ".webm": true, ".mov": true, ".mkv": true}

var mediaExts = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true, ".mkv": true,
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true,
}

// DateStamp formats t the way stored files are prefixed
func DateStamp(t time.Time) string {
	return t.Format(DateLayout)
}

// MediaName builds {date}_{id}[_{index}].{ext}. The index is 1-based and
// only added when total is greater than one.
func MediaName(date, identifier string, index, total int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if total > 1 {
		return fmt.Sprintf("%s_%s_%d.%s", date, identifier, index, ext)
	}
	return fmt.Sprintf("%s_%s.%s", date, identifier, ext)
}

// ThumbnailName builds {date}_{id}_thumb.{ext}
func ThumbnailName(date, identifier, ext string) string {
	return fmt.Sprintf("%s_%s%s.%s", date, identifier, ThumbSuffix, strings.TrimPrefix(ext, "."))
}

// IsThumbnail reports whether a file name is a stored thumbnail
func IsThumbnail(name string) bool {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return strings.HasSuffix(base, ThumbSuffix)
}

// IsMediaFile reports whether name has a media extension and is not a thumbnail
func IsMediaFile(name string) bool {
	return mediaExts[strings.ToLower(filepath.Ext(name))] && !IsThumbnail(name)
}

// IsVideoFile reports whether name has a video extension
func IsVideoFile(name string) bool {
	return videoExts[strings.ToLower(filepath.Ext(name))]
}

// InferKind derives a kind from stored files: several files are a
// carousel, otherwise the extension decides
func InferKind(paths []string) models.Kind {
	switch {
	case len(paths) > 1:
		return models.KindCarousel
	case len(paths) == 1 && IsVideoFile(paths[0]):
		return models.KindVideo
	default:
		return models.KindPhoto
	}
}
