package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mediagrab/pkg/errors"
)

func TestInstagramExtractShortcode(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr string
	}{
		{"reel", "https://www.instagram.com/reel/ABC_123-xyz/", "ABC_123-xyz", ""},
		{"post", "https://instagram.com/p/ABC_123-xyz/", "ABC_123-xyz", ""},
		{"tv", "https://www.instagram.com/tv/ABC_123-xyz/", "ABC_123-xyz", ""},
		{"user reel", "https://www.instagram.com/someone/reel/ABC_123-xyz/", "ABC_123-xyz", ""},
		{"query params", "https://instagram.com/reel/ABC_123-xyz/?utm_source=test", "ABC_123-xyz", ""},
		{"fragment", "https://instagram.com/reel/ABC_123-xyz#comments", "ABC_123-xyz", ""},
		{"no trailing slash", "https://instagram.com/reel/ABC_123-xyz", "ABC_123-xyz", ""},
		{"no scheme", "instagram.com/p/ABC_123-xyz/", "ABC_123-xyz", ""},
		{"mobile host", "https://m.instagram.com/p/ABC_123-xyz/", "ABC_123-xyz", ""},
		{"mixed case host", "https://WWW.Instagram.com/p/ABC_123-xyz/", "ABC_123-xyz", ""},
		{"empty", "", "", "non-empty string"},
		{"wrong domain", "https://youtube.com/watch?v=abc123", "", "does not match"},
		{"lookalike domain", "https://notinstagram.com/reel/ABC_123-xyz/", "", "does not match"},
		{"wrong path", "https://instagram.com/user/profile/", "", "does not match"},
		{"too short", "https://instagram.com/reel/ABC/", "", "Invalid shortcode format"},
		{"too long", "https://instagram.com/reel/ABC_123-xyz99/", "", "Invalid shortcode format"},
	}

	p := InstagramParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ExtractShortcode(tt.url)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidURL))
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.False(t, p.IsValid(tt.url))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, p.IsValid(tt.url))
		})
	}
}

func TestInstagramNormalize(t *testing.T) {
	p := InstagramParser{}
	got, err := p.Normalize("https://instagram.com/p/ABC_123-xyz/?utm=test")
	require.NoError(t, err)
	assert.Equal(t, "https://www.instagram.com/reel/ABC_123-xyz/", got)

	_, err = p.Normalize("https://example.com/")
	assert.Error(t, err)
}

func TestYouTubeExtractVideoID(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"watch", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"watch extra params", "https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=10", "dQw4w9WgXcQ", false},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"short link with query", "https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", false},
		{"shorts", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"mobile", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"no scheme", "youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"short id", "https://www.youtube.com/watch?v=abc", "", true},
		{"channel page", "https://www.youtube.com/@someone", "", true},
		{"other host", "https://vimeo.com/12345", "", true},
		{"empty", "", "", true},
	}

	p := YouTubeParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.ExtractVideoID(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidURL))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractNormalizeRoundTrip(t *testing.T) {
	cases := []struct {
		parser Parser
		urls   []string
	}{
		{InstagramParser{}, []string{
			"https://instagram.com/p/ABC_123-xyz/?utm=test",
			"https://www.instagram.com/tv/ABC_123-xyz",
			"https://www.instagram.com/someone/reel/ABC_123-xyz/",
		}},
		{YouTubeParser{}, []string{
			"https://youtu.be/dQw4w9WgXcQ",
			"https://www.youtube.com/shorts/dQw4w9WgXcQ",
			"https://m.youtube.com/watch?v=dQw4w9WgXcQ",
		}},
	}

	for _, c := range cases {
		for _, u := range c.urls {
			t.Run(u, func(t *testing.T) {
				id, err := c.parser.Extract(u)
				require.NoError(t, err)
				normalized, err := c.parser.Normalize(u)
				require.NoError(t, err)
				again, err := c.parser.Extract(normalized)
				require.NoError(t, err)
				assert.Equal(t, id, again)
			})
		}
	}
}
