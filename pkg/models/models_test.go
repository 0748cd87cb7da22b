package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("carousel")
	require.NoError(t, err)
	assert.Equal(t, KindCarousel, k)

	_, err = ParseKind("story")
	assert.Error(t, err)
}

func TestNormalizeThumbnail(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		keep    bool
	}{
		{"single video keeps thumbnail", Outcome{Kind: KindVideo, MediaPaths: []string{"a.mp4"}, ThumbnailPath: "a_thumb.jpg"}, true},
		{"photo drops thumbnail", Outcome{Kind: KindPhoto, MediaPaths: []string{"a.jpg"}, ThumbnailPath: "a_thumb.jpg"}, false},
		{"carousel drops thumbnail", Outcome{Kind: KindCarousel, MediaPaths: []string{"a.jpg", "b.jpg"}, ThumbnailPath: "t.jpg"}, false},
		{"video with two files drops thumbnail", Outcome{Kind: KindVideo, MediaPaths: []string{"a.mp4", "b.mp4"}, ThumbnailPath: "t.jpg"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := tt.outcome
			o.NormalizeThumbnail()
			if tt.keep {
				assert.NotEmpty(t, o.ThumbnailPath)
			} else {
				assert.Empty(t, o.ThumbnailPath)
			}
			assert.NoError(t, o.Validate())
		})
	}
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Outcome{Kind: KindVideo}).Validate())
	assert.Error(t, (&Outcome{Kind: KindPhoto, MediaPaths: []string{"a.jpg"}, ThumbnailPath: "t.jpg"}).Validate())
	assert.Equal(t, "a.jpg", (&Outcome{MediaPaths: []string{"a.jpg", "b.jpg"}}).PrimaryPath())
	assert.Equal(t, "", (&Outcome{}).PrimaryPath())
}
