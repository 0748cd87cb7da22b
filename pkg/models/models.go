// Package models holds the types shared by every layer of the download
// pipeline: the content kind produced by the probe and the outcome
// returned to callers.
package models

import (
	"fmt"
	"time"
)

// Kind is the classification of a post
type Kind string

const (
	KindVideo    Kind = "video"
	KindPhoto    Kind = "photo"
	KindCarousel Kind = "carousel"
)

// ParseKind converts a string into a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindVideo, KindPhoto, KindCarousel:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown media kind %q", s)
	}
}

// Platform names
const (
	PlatformInstagram = "instagram"
	PlatformYouTube   = "youtube"
)

// StrategyCache marks an outcome served from files already on disk
const StrategyCache = "cache"

// OutcomeMetadata carries the technical facts about retrieved media
type OutcomeMetadata struct {
	Identifier      string    `json:"identifier"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
	Width           *int      `json:"width,omitempty"`
	Height          *int      `json:"height,omitempty"`
	SizeBytes       *int64    `json:"size_bytes,omitempty"`
	RetrievedAt     time.Time `json:"retrieved_at"`
}

// Outcome is the normalized result of a successful download
type Outcome struct {
	MediaPaths    []string        `json:"media_paths"`
	ThumbnailPath string          `json:"thumbnail_path,omitempty"`
	Kind          Kind            `json:"kind"`
	Platform      string          `json:"platform"`
	Strategy      string          `json:"strategy"`
	Metadata      OutcomeMetadata `json:"metadata"`
}

// PrimaryPath returns the first media path
func (o *Outcome) PrimaryPath() string {
	if len(o.MediaPaths) == 0 {
		return ""
	}
	return o.MediaPaths[0]
}

// NormalizeThumbnail drops the thumbnail unless the outcome is a single video
func (o *Outcome) NormalizeThumbnail() {
	if o.Kind != KindVideo || len(o.MediaPaths) != 1 {
		o.ThumbnailPath = ""
	}
}

// Validate checks the structural invariants of an outcome
func (o *Outcome) Validate() error {
	if len(o.MediaPaths) == 0 {
		return fmt.Errorf("outcome for %s has no media paths", o.Metadata.Identifier)
	}
	if o.ThumbnailPath != "" && (o.Kind != KindVideo || len(o.MediaPaths) != 1) {
		return fmt.Errorf("outcome for %s carries a thumbnail for a %s with %d items",
			o.Metadata.Identifier, o.Kind, len(o.MediaPaths))
	}
	return nil
}
