package metadata

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"mediagrab/pkg/extractor"
	"mediagrab/pkg/models"
)

// Version is written into every sidecar
const Version = "1.0"

// Sources of sidecar data
const (
	SourceYtDlp     = "yt-dlp"
	SourceGalleryDl = "gallery-dl"
)

// Sidecar is the text metadata stored next to downloaded media
type Sidecar struct {
	Version        string     `json:"version"`
	SourceStrategy string     `json:"source_strategy"`
	Identifier     string     `json:"identifier"`
	CollectedAt    string     `json:"collected_at"`
	Post           Post       `json:"post"`
	Engagement     Engagement `json:"engagement"`
	Author         Author     `json:"author"`
	Comments       []Comment  `json:"comments"`
	RawInfo        *RawInfo   `json:"raw_info,omitempty"`
}

// Post describes the post itself
type Post struct {
	Type      string   `json:"type"`
	URL       string   `json:"url"`
	Caption   string   `json:"caption"`
	Hashtags  []string `json:"hashtags"`
	Mentions  []string `json:"mentions"`
	CreatedAt *string  `json:"created_at"`
}

// Engagement holds the public counters at collection time
type Engagement struct {
	Likes         int64 `json:"likes"`
	CommentsCount int64 `json:"comments_count"`
	Views         int64 `json:"views"`
}

// Author identifies who published the post
type Author struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	ProfileURL  string `json:"profile_url"`
}

// Comment is a single comment. None of the current sources provide them,
// so the list is always written empty.
type Comment struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Likes     int64  `json:"likes"`
	CreatedAt string `json:"created_at,omitempty"`
}

// RawInfo keeps a few technical fields from the extractor
type RawInfo struct {
	Duration float64 `json:"duration,omitempty"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Format   string  `json:"format,omitempty"`
}

var (
	hashtagPattern = regexp.MustCompile(`#([a-zA-Z0-9가-힣_]+)`)
	mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9._]+)`)
)

// ParseHashtags returns the hashtags in text without the leading '#'
func ParseHashtags(text string) []string {
	return uniqueMatches(hashtagPattern, text)
}

// ParseMentions returns the @usernames in text without the '@'
func ParseMentions(text string) []string {
	return uniqueMatches(mentionPattern, text)
}

func uniqueMatches(re *regexp.Regexp, text string) []string {
	out := []string{}
	if text == "" {
		return out
	}
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// PostURL is the canonical Instagram URL of a shortcode
func PostURL(identifier string) string {
	return fmt.Sprintf("https://instagram.com/p/%s/", identifier)
}

func newSidecar(source, identifier string) *Sidecar {
	return &Sidecar{
		Version:        Version,
		SourceStrategy: source,
		Identifier:     identifier,
		CollectedAt:    time.Now().UTC().Format(time.RFC3339),
		Post:           Post{URL: PostURL(identifier), Hashtags: []string{}, Mentions: []string{}},
		Comments:       []Comment{},
	}
}

func (s *Sidecar) setCaption(caption string) {
	s.Post.Caption = caption
	s.Post.Hashtags = ParseHashtags(caption)
	s.Post.Mentions = ParseMentions(caption)
}

// FromInfo builds a sidecar from yt-dlp's JSON
func FromInfo(info *extractor.Info, identifier, source string) *Sidecar {
	s := newSidecar(source, identifier)
	if info == nil {
		return s
	}

	caption := info.Description
	if info.Title != info.Description {
		caption = strings.TrimSpace(info.Title + "\n" + info.Description)
	}
	s.setCaption(caption)

	switch {
	case info.IsPlaylist():
		s.Post.Type = string(models.KindCarousel)
	case info.LooksLikeVideo():
		s.Post.Type = string(models.KindVideo)
	default:
		s.Post.Type = string(models.KindPhoto)
	}
	if info.WebpageURL != "" {
		s.Post.URL = info.WebpageURL
	}
	if info.Timestamp != nil {
		created := time.Unix(*info.Timestamp, 0).UTC().Format(time.RFC3339)
		s.Post.CreatedAt = &created
	}

	s.Engagement = Engagement{
		Likes:         deref(info.LikeCount),
		CommentsCount: deref(info.CommentCount),
		Views:         deref(info.ViewCount),
	}

	username := info.UploaderID
	if username == "" {
		username = info.Uploader
	}
	s.Author = Author{
		Username:    username,
		DisplayName: info.Uploader,
		ProfileURL:  info.UploaderURL,
	}
	if s.Author.DisplayName == "" && info.Channel != "" {
		s.Author.DisplayName = info.Channel
		s.Author.ProfileURL = info.ChannelURL
	}

	s.RawInfo = &RawInfo{
		Duration: info.Duration,
		Width:    info.Width,
		Height:   info.Height,
		Format:   info.Format,
	}
	return s
}

// galleryDateLayout is how gallery-dl formats the "date" field
const galleryDateLayout = "2006-01-02 15:04:05"

// FromGalleryMeta builds a sidecar from the JSON gallery-dl writes per item
func FromGalleryMeta(meta map[string]interface{}, identifier string, kind models.Kind) *Sidecar {
	s := newSidecar(SourceGalleryDl, identifier)
	s.Post.Type = string(kind)
	if meta == nil {
		return s
	}

	s.setCaption(stringField(meta, "description"))
	if u := stringField(meta, "post_url"); u != "" {
		s.Post.URL = u
	}
	if d := stringField(meta, "date"); d != "" {
		if t, err := time.Parse(galleryDateLayout, d); err == nil {
			created := t.UTC().Format(time.RFC3339)
			s.Post.CreatedAt = &created
		}
	}

	s.Engagement.Likes = intField(meta, "likes")
	s.Engagement.CommentsCount = intField(meta, "comments")
	s.Engagement.Views = intField(meta, "video_view_count")

	username := stringField(meta, "username")
	s.Author = Author{
		Username:    username,
		DisplayName: stringField(meta, "fullname"),
	}
	if username != "" {
		s.Author.ProfileURL = fmt.Sprintf("https://instagram.com/%s/", username)
	}
	return s
}

func deref(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}

func stringField(meta map[string]interface{}, key string) string {
	s, _ := meta[key].(string)
	return s
}

func intField(meta map[string]interface{}, key string) int64 {
	switch v := meta[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	default:
		return 0
	}
}
