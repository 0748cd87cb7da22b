// Package parser extracts platform identifiers from post URLs.
package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"mediagrab/pkg/errors"
)

var (
	shortcodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

	instagramPatterns = []*regexp.Regexp{
		regexp.MustCompile(`instagram\.com/reel/([A-Za-z0-9_-]+)`),
		regexp.MustCompile(`instagram\.com/p/([A-Za-z0-9_-]+)`),
		regexp.MustCompile(`instagram\.com/tv/([A-Za-z0-9_-]+)`),
		regexp.MustCompile(`instagram\.com/[^/]+/reel/([A-Za-z0-9_-]+)`),
	}

	videoIDPattern = regexp.MustCompile(`^[\w-]{11}$`)
)

// Parser is implemented by every platform URL parser
type Parser interface {
	Extract(rawURL string) (string, error)
	Normalize(rawURL string) (string, error)
	IsValid(rawURL string) bool
}

// splitURL parses a URL, tolerating a missing scheme
func splitURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.InvalidURL("URL must be a non-empty string")
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeInvalidURL, "URL could not be parsed", err).
			WithDetail("url", rawURL)
	}
	return u, nil
}

func hostMatches(host string, domains ...string) bool {
	host = strings.ToLower(host)
	if i := strings.LastIndex(host, ":"); i >= 0 {
		host = host[:i]
	}
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// InstagramParser handles /reel/, /p/, /tv/ and /{user}/reel/ URLs
type InstagramParser struct{}

// ExtractShortcode returns the 11 character shortcode of a post URL
func (InstagramParser) ExtractShortcode(rawURL string) (string, error) {
	u, err := splitURL(rawURL)
	if err != nil {
		return "", err
	}

	unsupported := errors.InvalidURL("URL does not match any supported Instagram format").
		WithDetail("url", rawURL).
		WithDetail("supported_formats", []string{"/reel/", "/p/", "/tv/"})

	if !hostMatches(u.Host, "instagram.com") {
		return "", unsupported
	}

	clean := strings.ToLower(u.Host) + u.Path
	for _, pattern := range instagramPatterns {
		m := pattern.FindStringSubmatch(clean)
		if m == nil {
			continue
		}
		code := m[1]
		if !shortcodePattern.MatchString(code) {
			return "", errors.InvalidURL(fmt.Sprintf("Invalid shortcode format: %s", code)).
				WithDetail("shortcode", code).
				WithDetail("url", rawURL)
		}
		return code, nil
	}
	return "", unsupported
}

// Extract implements Parser
func (p InstagramParser) Extract(rawURL string) (string, error) {
	return p.ExtractShortcode(rawURL)
}

// Normalize returns the canonical reel URL
func (p InstagramParser) Normalize(rawURL string) (string, error) {
	code, err := p.ExtractShortcode(rawURL)
	if err != nil {
		return "", err
	}
	return InstagramURL(code), nil
}

// IsValid reports whether a shortcode can be extracted
func (p InstagramParser) IsValid(rawURL string) bool {
	_, err := p.ExtractShortcode(rawURL)
	return err == nil
}

// InstagramURL builds the canonical URL for a shortcode
func InstagramURL(shortcode string) string {
	return fmt.Sprintf("https://www.instagram.com/reel/%s/", shortcode)
}

// InstagramPostURL builds the /p/ URL extractors are pointed at
func InstagramPostURL(shortcode string) string {
	return fmt.Sprintf("https://www.instagram.com/p/%s/", shortcode)
}

// YouTubeParser handles watch, youtu.be, shorts and mobile URLs
type YouTubeParser struct{}

// ExtractVideoID returns the 11 character video id
func (YouTubeParser) ExtractVideoID(rawURL string) (string, error) {
	u, err := splitURL(rawURL)
	if err != nil {
		return "", err
	}

	var candidate string
	switch {
	case hostMatches(u.Host, "youtu.be"):
		candidate = firstSegment(u.Path)
	case hostMatches(u.Host, "youtube.com"):
		path := strings.TrimSuffix(u.Path, "/")
		switch {
		case path == "/watch":
			candidate = u.Query().Get("v")
		case strings.HasPrefix(path, "/shorts/"):
			candidate = firstSegment(strings.TrimPrefix(path, "/shorts"))
		}
	default:
		return "", errors.InvalidURL("URL does not match any supported YouTube format").
			WithDetail("url", rawURL)
	}

	if candidate == "" {
		return "", errors.InvalidURL("URL does not match any supported YouTube format").
			WithDetail("url", rawURL).
			WithDetail("supported_formats", []string{"watch?v=", "youtu.be/", "shorts/"})
	}
	// longer candidates keep their first 11 characters
	if len(candidate) > 11 && videoIDPattern.MatchString(candidate[:11]) {
		candidate = candidate[:11]
	}
	if !videoIDPattern.MatchString(candidate) {
		return "", errors.InvalidURL(fmt.Sprintf("Invalid video id format: %s", candidate)).
			WithDetail("video_id", candidate).
			WithDetail("url", rawURL)
	}
	return candidate, nil
}

// Extract implements Parser
func (p YouTubeParser) Extract(rawURL string) (string, error) {
	return p.ExtractVideoID(rawURL)
}

// Normalize returns the canonical watch URL
func (p YouTubeParser) Normalize(rawURL string) (string, error) {
	id, err := p.ExtractVideoID(rawURL)
	if err != nil {
		return "", err
	}
	return YouTubeURL(id), nil
}

// IsValid reports whether a video id can be extracted
func (p YouTubeParser) IsValid(rawURL string) bool {
	_, err := p.ExtractVideoID(rawURL)
	return err == nil
}

// YouTubeURL builds the canonical URL for a video id
func YouTubeURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[:i]
	}
	return path
}
