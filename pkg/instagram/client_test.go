package instagram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/ratelimit"
	"mediagrab/pkg/retry"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server, *logger.TestLogger) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logger.NewTestLogger()
	client := NewClient(5*time.Second, "test-agent", log)
	client.SetBaseURL(server.URL)
	client.SetOEmbedURL(server.URL + "/oembed")
	client.SetRetrier(retry.NewRetrier(&retry.Config{
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     retry.DefaultRetryIf,
	}))
	return client, server, log
}

func TestNewClientHeaders(t *testing.T) {
	var got http.Header
	client, server, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "test-agent", got.Get("User-Agent"))
	assert.Equal(t, "*/*", got.Get("Accept"))
	assert.Equal(t, "en-US,en;q=0.9", got.Get("Accept-Language"))
	assert.Equal(t, "https://www.instagram.com/", got.Get("Referer"))
	assert.Equal(t, "https://www.instagram.com", got.Get("Origin"))
}

func TestCheckResponseStatus(t *testing.T) {
	tests := []struct {
		status int
		want   errs.ErrorType
	}{
		{http.StatusNotFound, errs.ErrorTypeContentNotFound},
		{http.StatusUnauthorized, errs.ErrorTypeAuthentication},
		{http.StatusForbidden, errs.ErrorTypeAuthentication},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimitExceeded},
		{http.StatusBadGateway, errs.ErrorTypeDownloadFailed},
		{http.StatusTeapot, errs.ErrorTypeInstagramAPIChanged},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client, server, log := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			_, err := client.Get(context.Background(), server.URL)
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.TypeOf(err))

			apiErr, ok := errs.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, apiErr.Details["status_code"])
			assert.NotEmpty(t, log.GetMessagesByLevel("WARN"))
		})
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls int32
	client, server, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetDoesNotRetryNotFoundOrRateLimit(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusTooManyRequests} {
		var calls int32
		client, server, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(status)
		}))

		_, err := client.Get(context.Background(), server.URL)
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "status %d", status)
	}
}

func TestGetJSONParseFailureLogsPreview(t *testing.T) {
	client, server, log := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>" + strings.Repeat("x", 300)))
	}))

	var target map[string]interface{}
	err := client.GetJSON(context.Background(), server.URL, &target)
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeInstagramAPIChanged, errs.TypeOf(err))

	msg, ok := log.FindMessage("failed to parse JSON response")
	require.True(t, ok)
	preview, _ := msg.Field("body_preview").(string)
	assert.Len(t, preview, 203)
}

func TestOEmbed(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oembed", r.URL.Path)
		assert.Equal(t, "https://www.instagram.com/p/ABC123/", r.URL.Query().Get("url"))
		w.Write([]byte(`{"title":"hello","author_name":"alice","thumbnail_url":"https://cdn/thumb.jpg","thumbnail_width":640}`))
	}))

	resp, err := client.OEmbed(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/thumb.jpg", resp.ThumbnailURL)
	assert.Equal(t, "alice", resp.AuthorName)
	assert.Equal(t, 640, resp.ThumbnailWidth)
}

func TestEmbedMediaURLs(t *testing.T) {
	client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/p/ABC123/embed/", r.URL.Path)
		w.Write([]byte(embedPage))
	}))

	urls, err := client.EmbedMediaURLs(context.Background(), "ABC123")
	require.NoError(t, err)
	require.NotEmpty(t, urls)
	assert.Contains(t, urls[0], "clip.mp4")
}

func TestEmbedMediaURLsNotFound(t *testing.T) {
	client, _, _ := newTestClient(t, http.NotFoundHandler())

	_, err := client.EmbedMediaURLs(context.Background(), "ABC123")
	assert.True(t, errs.IsType(err, errs.ErrorTypeContentNotFound))
}

func TestPostJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *PostMedia
	}{
		{
			name: "graphql shape",
			body: `{"graphql":{"shortcode_media":{"__typename":"GraphVideo","is_video":true,"video_url":"https://cdn/v.mp4","display_url":"https://cdn/d.jpg"}}}`,
			want: &PostMedia{Typename: "GraphVideo", IsVideo: true, VideoURL: "https://cdn/v.mp4", DisplayURL: "https://cdn/d.jpg"},
		},
		{
			name: "items shape",
			body: `{"items":[{"display_url":"https://cdn/a.jpg"},{"display_url":"https://cdn/b.jpg"}]}`,
			want: &PostMedia{DisplayURL: "https://cdn/a.jpg"},
		},
		{
			name: "neither shape",
			body: `{"status":"ok"}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "1", r.URL.Query().Get("__a"))
				w.Write([]byte(tt.body))
			}))

			got, err := client.PostJSON(context.Background(), "ABC123")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostJSONLoginRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/p/ABC123/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/accounts/login/?next=/p/ABC123/", http.StatusFound)
	})
	mux.HandleFunc("/accounts/login/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>login</html>"))
	})
	client, _, log := newTestClient(t, mux)

	got, err := client.PostJSON(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.True(t, log.HasMessage("redirected to login page"))
}

func TestDownloadFile(t *testing.T) {
	payload := strings.Repeat("a", 1024)
	client, server, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))

	dest := filepath.Join(t.TempDir(), "out.mp4")
	n, err := client.DownloadFile(context.Background(), server.URL+"/clip.mp4", dest, 4096)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), n)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))
	assert.NoFileExists(t, dest+".part")
}

func TestDownloadFileSizeExceeded(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "declared length",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(strings.Repeat("a", 2048)))
			},
		},
		{
			name: "streamed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				flusher := w.(http.Flusher)
				for i := 0; i < 4; i++ {
					w.Write([]byte(strings.Repeat("a", 512)))
					flusher.Flush()
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server, _ := newTestClient(t, tt.handler)

			dest := filepath.Join(t.TempDir(), "out.mp4")
			_, err := client.DownloadFile(context.Background(), server.URL, dest, 1000)
			require.Error(t, err)

			apiErr, ok := errs.As(err)
			require.True(t, ok)
			assert.Equal(t, errs.ErrorTypeDownloadFailed, apiErr.Type)
			assert.Equal(t, "size_exceeded", apiErr.Details["reason"])
			assert.NoFileExists(t, dest)
			assert.NoFileExists(t, dest+".part")
		})
	}
}

func TestGetCancelledContext(t *testing.T) {
	var calls int32
	client, server, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestLimiterPacesRequests(t *testing.T) {
	var calls int32
	client, server, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	client.SetLimiter(ratelimit.NewTokenBucket(1, time.Hour))

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Get(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
