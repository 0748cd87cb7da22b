package extractor

import "strings"

// Info is the subset of yt-dlp's --dump-json output used by mediagrab
type Info struct {
	ID           string  `json:"id"`
	Type         string  `json:"_type,omitempty"`
	Entries      []Info  `json:"entries,omitempty"`
	Title        string  `json:"title,omitempty"`
	Description  string  `json:"description,omitempty"`
	Ext          string  `json:"ext,omitempty"`
	VCodec       string  `json:"vcodec,omitempty"`
	Format       string  `json:"format,omitempty"`
	Duration     float64 `json:"duration,omitempty"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	Thumbnail    string  `json:"thumbnail,omitempty"`
	URL          string  `json:"url,omitempty"`
	WebpageURL   string  `json:"webpage_url,omitempty"`
	LikeCount    *int64  `json:"like_count,omitempty"`
	CommentCount *int64  `json:"comment_count,omitempty"`
	ViewCount    *int64  `json:"view_count,omitempty"`
	Uploader     string  `json:"uploader,omitempty"`
	UploaderID   string  `json:"uploader_id,omitempty"`
	UploaderURL  string  `json:"uploader_url,omitempty"`
	Channel      string  `json:"channel,omitempty"`
	ChannelURL   string  `json:"channel_url,omitempty"`
	Timestamp    *int64  `json:"timestamp,omitempty"`
	UploadDate   string  `json:"upload_date,omitempty"`
	IsLive       bool    `json:"is_live,omitempty"`
	LiveStatus   string  `json:"live_status,omitempty"`
	Filesize     int64   `json:"filesize,omitempty"`
}

// IsPlaylist reports whether the info describes a multi-item post
func (i *Info) IsPlaylist() bool {
	return i.Type == "playlist" || len(i.Entries) > 0
}

// LooksLikeVideo applies the extension, codec and duration heuristics
func (i *Info) LooksLikeVideo() bool {
	switch strings.ToLower(i.Ext) {
	case "mp4", "webm", "mov":
		return true
	}
	if i.VCodec != "" && i.VCodec != "none" {
		return true
	}
	return i.Duration > 0
}

// IsUpcomingOrLive reports a stream that has not finished airing
func (i *Info) IsUpcomingOrLive() bool {
	if i.IsLive {
		return true
	}
	switch i.LiveStatus {
	case "is_live", "is_upcoming":
		return true
	}
	return false
}

// ThumbnailURL returns the thumbnail of the post or of its first entry
func (i *Info) ThumbnailURL() string {
	if i.Thumbnail != "" {
		return i.Thumbnail
	}
	for _, e := range i.Entries {
		if e.Thumbnail != "" {
			return e.Thumbnail
		}
	}
	return ""
}
