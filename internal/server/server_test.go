package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/pkg/accounts"
	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/metrics"
	"mediagrab/pkg/models"
	"mediagrab/pkg/platform"
	"mediagrab/pkg/probe"
	"mediagrab/pkg/ratelimit"
	"mediagrab/pkg/router"
	"mediagrab/pkg/storage"
)

// filePlatform writes real files into the store so URLs can be served back
type filePlatform struct {
	store *storage.Manager
	names []string
	thumb string
	err   error
}

func (p *filePlatform) Name() string { return "instagram" }

func (p *filePlatform) CanHandle(u string) bool { return strings.Contains(u, "instagram.com") }

func (p *filePlatform) Info() platform.Info {
	return platform.Info{Platform: "instagram", SupportedTypes: []string{"video"}}
}

func (p *filePlatform) Probe(ctx context.Context, u string) (*probe.Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &probe.Result{Kind: models.KindCarousel, ItemCount: 3, RequiresAuth: true}, nil
}

func (p *filePlatform) Download(ctx context.Context, u string) (*models.Outcome, error) {
	if p.err != nil {
		return nil, p.err
	}
	dir, err := p.store.EnsureDir("ABC")
	if err != nil {
		return nil, err
	}
	out := &models.Outcome{Kind: models.KindVideo, Strategy: "proxy", Metadata: models.OutcomeMetadata{Identifier: "ABC"}}
	for _, name := range p.names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("media:"+name), 0644); err != nil {
			return nil, err
		}
		out.MediaPaths = append(out.MediaPaths, path)
	}
	if p.thumb != "" {
		out.ThumbnailPath = filepath.Join(dir, p.thumb)
		if err := os.WriteFile(out.ThumbnailPath, []byte("thumb"), 0644); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type fixedCaps router.Capabilities

func (c fixedCaps) Capabilities() router.Capabilities { return router.Capabilities(c) }

type testServer struct {
	*Server
	store    *storage.Manager
	platform *filePlatform
	metrics  *metrics.Metrics
}

func newTestServer(t *testing.T, mutate func(*Deps)) *testServer {
	t.Helper()
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)

	p := &filePlatform{store: store, names: []string{"20240101_ABC.mp4"}, thumb: "20240101_ABC_thumb.jpg"}
	m := metrics.New()
	deps := Deps{
		Registry: platform.NewRegistry(logger.NewNopLogger(), p),
		Store:    store,
		Capabilities: fixedCaps{
			VideoReels: true, VideoPosts: true, CarouselFirstItem: true,
		},
		Metrics: m,
		Logger:  logger.NewNopLogger(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	s := New(deps, Options{Version: "1.2.3", ServeFiles: true})
	return &testServer{Server: s, store: store, platform: p, metrics: m}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestDownloadSuccess(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/download", `{"url":"https://www.instagram.com/reel/ABC/"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp DownloadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "/downloads/ABC/20240101_ABC.mp4", resp.MediaURL)
	assert.Nil(t, resp.MediaURLs)
	assert.Equal(t, models.KindVideo, resp.MediaType)
	require.NotNil(t, resp.ThumbnailURL)
	assert.Equal(t, "/downloads/ABC/20240101_ABC_thumb.jpg", *resp.ThumbnailURL)
	assert.Equal(t, "instagram", resp.Platform)
	assert.Equal(t, "proxy", resp.Strategy)
	assert.Equal(t, "ABC", resp.Metadata.Identifier)

	file := ts.do(t, http.MethodGet, resp.MediaURL, "")
	require.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, "media:20240101_ABC.mp4", file.Body.String())
}

func TestDownloadCarouselListsEveryItem(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.platform.names = []string{"20240101_ABC_1.jpg", "20240101_ABC_2.mp4"}
	ts.platform.thumb = ""

	rec := ts.do(t, http.MethodPost, "/api/download", `{"url":"https://instagram.com/p/ABC"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "/downloads/ABC/20240101_ABC_1.jpg", body["media_url"])
	assert.Equal(t, []interface{}{
		"/downloads/ABC/20240101_ABC_1.jpg",
		"/downloads/ABC/20240101_ABC_2.mp4",
	}, body["media_urls"])
	assert.Contains(t, body, "thumbnail_url")
	assert.Nil(t, body["thumbnail_url"])
}

func TestDownloadErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
		wantType string
	}{
		{"malformed body", `{"url":`, nil, http.StatusBadRequest, "invalid_url"},
		{"missing url", `{"url":"  "}`, nil, http.StatusBadRequest, "invalid_url"},
		{"unsupported platform", `{"url":"https://vimeo.com/1"}`, nil, http.StatusBadRequest, "invalid_url"},
		{"private", `{"url":"https://instagram.com/p/ABC"}`, errs.PrivateAccount("This account is private"), http.StatusForbidden, "private_account"},
		{"not found", `{"url":"https://instagram.com/p/ABC"}`, errs.ContentNotFound("gone"), http.StatusNotFound, "content_not_found"},
		{"needs login", `{"url":"https://instagram.com/p/ABC"}`, errs.AuthenticationFailed("login required"), http.StatusUnauthorized, "authentication_failed"},
		{"rate limited", `{"url":"https://instagram.com/p/ABC"}`, errs.RateLimited("slow down"), http.StatusTooManyRequests, "rate_limit_exceeded"},
		{"untyped", `{"url":"https://instagram.com/p/ABC"}`, io.ErrUnexpectedEOF, http.StatusInternalServerError, "download_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.platform.err = tt.err

			rec := ts.do(t, http.MethodPost, "/api/download", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)

			body := decode(t, rec)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.wantType, body["error_type"])
			assert.NotEmpty(t, body["message"])
			assert.IsType(t, map[string]interface{}{}, body["details"])
		})
	}
}

func TestProbe(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/probe", `{"url":"https://instagram.com/p/ABC"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProbeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, ProbeResponse{
		Status: "success", Platform: "instagram", MediaType: models.KindCarousel, ItemCount: 3, RequiresAuth: true,
	}, resp)

	rec = ts.do(t, http.MethodPost, "/api/probe", `{"url":"https://example.com/x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitPerClient(t *testing.T) {
	ts := newTestServer(t, func(d *Deps) { d.Limiter = ratelimit.PerMinute(1) })

	first := ts.do(t, http.MethodPost, "/api/download", `{"url":"https://instagram.com/p/ABC"}`)
	require.Equal(t, http.StatusOK, first.Code)

	second := ts.do(t, http.MethodPost, "/api/probe", `{"url":"https://instagram.com/p/ABC"}`)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decode(t, second)["error_type"])

	// other routes are not throttled
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/platforms", "").Code)

	req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(`{"url":"https://instagram.com/p/ABC"}`))
	req.RemoteAddr = "198.51.100.1:4000"
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.2.3", body["version"])
	assert.Equal(t, map[string]interface{}{
		"download_dir_writable":  true,
		"downloader_initialized": true,
	}, body["checks"])

	require.NoError(t, os.RemoveAll(ts.store.GetOutputDir()))
	rec = ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode(t, rec)["status"])
}

func TestCapabilities(t *testing.T) {
	ts := newTestServer(t, nil)

	body := decode(t, ts.do(t, http.MethodGet, "/api/capabilities", ""))
	caps, ok := body["capabilities"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, caps["video_reels"])
	assert.Equal(t, false, caps["photo_posts"])
	assert.Equal(t, false, caps["carousel_full"])
	assert.Equal(t, capabilitiesNote, body["note"])
}

func TestPlatforms(t *testing.T) {
	ts := newTestServer(t, nil)

	body := decode(t, ts.do(t, http.MethodGet, "/api/platforms", ""))
	list, ok := body["platforms"].([]interface{})
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, "instagram", list[0].(map[string]interface{})["platform"])
}

func TestAccountStatsHidePasswords(t *testing.T) {
	pool := accounts.NewPool([]accounts.Credentials{{Username: "alice", Password: "very-secret-pw"}})
	ts := newTestServer(t, func(d *Deps) { d.Pool = pool })

	rec := ts.do(t, http.MethodGet, "/api/accounts/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "very-secret-pw")

	body := decode(t, rec)
	assert.EqualValues(t, 1, body["total_accounts"])
	assert.EqualValues(t, 1, body["available_accounts"])

	empty := decode(t, newTestServer(t, nil).do(t, http.MethodGet, "/api/accounts/stats", ""))
	assert.EqualValues(t, 0, empty["total_accounts"])
	assert.Equal(t, []interface{}{}, empty["accounts"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodGet, "/api/platforms", "")

	rec := ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mediagrab_http_requests_total")
}

func TestFileServerHidesDirectories(t *testing.T) {
	ts := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/download", `{"url":"https://instagram.com/p/ABC"}`).Code)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/downloads/ABC/", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/downloads/ABC", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/downloads/missing.mp4", "").Code)
}

func TestServeFilesDisabled(t *testing.T) {
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	s := New(Deps{Registry: platform.NewRegistry(logger.NewNopLogger()), Store: store, Logger: logger.NewNopLogger()}, Options{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/downloads/x.mp4", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDAndCORS(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	ts.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = ts.do(t, http.MethodGet, "/health", "")
	assert.Len(t, rec.Header().Get(requestIDHeader), 36)

	rec = ts.do(t, http.MethodOptions, "/api/download", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoverer(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.platform.store = nil // EnsureDir on a nil manager panics

	rec := ts.do(t, http.MethodPost, "/api/download", `{"url":"https://instagram.com/p/ABC"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "download_failed", decode(t, rec)["error_type"])
}
