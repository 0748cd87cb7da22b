package instagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const embedPage = `<html><body>
<div class="EmbeddedMedia">
  <video src="https://scontent-lax3-1.cdninstagram.com/v/t50/clip.mp4?efg=abc&amp;oh=1"></video>
  <img class="EmbeddedMediaImage" src="https://scontent-lax3-1.cdninstagram.com/v/t51/cover.jpg?stp=dst">
  <img class="Avatar" src="https://scontent-lax3-1.cdninstagram.com/v/t51/avatar.jpg?x=1">
</div>
<script>var u = "https://video-lax3-1.xx.fbcdn.net/o1/v/clip2.mp4";</script>
</body></html>`

func TestExtractMediaURLs(t *testing.T) {
	urls := ExtractMediaURLs(embedPage)

	assert.Equal(t, []string{
		"https://scontent-lax3-1.cdninstagram.com/v/t50/clip.mp4?efg=abc&oh=1",
		"https://scontent-lax3-1.cdninstagram.com/v/t51/cover.jpg?stp=dst",
		"https://scontent-lax3-1.cdninstagram.com/v/t50/clip.mp4",
		"https://scontent-lax3-1.cdninstagram.com/v/t51/cover.jpg",
		"https://scontent-lax3-1.cdninstagram.com/v/t51/avatar.jpg",
		"https://video-lax3-1.xx.fbcdn.net/o1/v/clip2.mp4",
	}, urls)
}

func TestExtractMediaURLsEmpty(t *testing.T) {
	assert.Empty(t, ExtractMediaURLs("<html><body>Log in to see this post</body></html>"))
	assert.Empty(t, ExtractMediaURLs(""))
}

func TestPreferVideo(t *testing.T) {
	assert.Equal(t, "https://x/b.mp4", PreferVideo([]string{"https://x/a.jpg", "https://x/b.mp4"}))
	assert.Equal(t, "https://x/a.jpg", PreferVideo([]string{"https://x/a.jpg"}))
	assert.Empty(t, PreferVideo(nil))
}

func TestPostMediaURLs(t *testing.T) {
	m := &PostMedia{IsVideo: true, VideoURL: "v.mp4", DisplayURL: "d.jpg"}
	assert.Equal(t, []string{"v.mp4", "d.jpg"}, m.URLs())

	assert.Equal(t, []string{"d.jpg"}, (&PostMedia{DisplayURL: "d.jpg"}).URLs())
	assert.Nil(t, (*PostMedia)(nil).URLs())
}
