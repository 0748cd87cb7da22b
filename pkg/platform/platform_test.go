package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/pkg/accounts"
	errs "mediagrab/pkg/errors"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
	"mediagrab/pkg/probe"
	"mediagrab/pkg/router"
	"mediagrab/pkg/storage"
	"mediagrab/pkg/strategy"
)

type stubPlatform struct {
	name    string
	handles func(string) bool
	outcome *models.Outcome
	err     error
	calls   int
}

func (s *stubPlatform) Name() string            { return s.name }
func (s *stubPlatform) CanHandle(u string) bool { return s.handles(u) }
func (s *stubPlatform) Info() Info              { return Info{Platform: s.name} }

func (s *stubPlatform) Download(ctx context.Context, u string) (*models.Outcome, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	cp := *s.outcome
	return &cp, nil
}

func (s *stubPlatform) Probe(ctx context.Context, u string) (*probe.Result, error) {
	return &probe.Result{Kind: models.KindVideo, ItemCount: 1}, nil
}

func always(string) bool { return true }
func never(string) bool  { return false }

func TestUnsupportedHints(t *testing.T) {
	tests := []struct {
		url  string
		hint string
	}{
		{"https://www.instagram.com/stories/someone/", "URL might be malformed. Check Instagram URL format."},
		{"https://www.youtube.com/channel/UC123", "URL might be malformed. Check YouTube URL format."},
		{"youtu.be/", "URL might be malformed. Check YouTube URL format."},
		{"https://www.tiktok.com/@user/video/123", "TikTok support not yet available"},
		{"https://twitter.com/user/status/1", "Twitter/X support not yet available"},
		{"https://x.com/user/status/1", "Twitter/X support not yet available"},
		{"https://dropbox.com/s/abc", "Supported platforms: Instagram, YouTube"},
		{"not a url", "Supported platforms: Instagram, YouTube"},
	}

	reg := NewRegistry(logger.NewNopLogger())
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := reg.Dispatch(context.Background(), tt.url)
			require.Error(t, err)
			e, ok := errs.As(err)
			require.True(t, ok)
			assert.Equal(t, errs.ErrorTypeInvalidURL, e.Type)
			assert.Equal(t, "Unsupported URL or platform. "+tt.hint, e.Message)
			assert.Equal(t, tt.url, e.Details["url"])
		})
	}
}

func TestRegistryDetectionOrder(t *testing.T) {
	first := &stubPlatform{name: "first", handles: always, outcome: &models.Outcome{MediaPaths: []string{"a.mp4"}}}
	second := &stubPlatform{name: "second", handles: always, outcome: &models.Outcome{MediaPaths: []string{"b.mp4"}}}
	reg := NewRegistry(logger.NewNopLogger(), first, second)

	assert.Equal(t, first, reg.Detect("https://example.com"))
	out, err := reg.Dispatch(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "first", out.Platform)
	assert.Equal(t, 1, first.calls)
	assert.Zero(t, second.calls)
}

func TestRegistryDispatchErrorsPassThrough(t *testing.T) {
	p := &stubPlatform{name: "p", handles: always, err: errs.RateLimited("slow down")}
	reg := NewRegistry(logger.NewNopLogger(), p)

	_, err := reg.Dispatch(context.Background(), "https://example.com")
	assert.True(t, errs.IsType(err, errs.ErrorTypeRateLimitExceeded))
}

func TestRegistryLookupAndPlatforms(t *testing.T) {
	a := &stubPlatform{name: "a", handles: never}
	b := &stubPlatform{name: "b", handles: always}
	reg := NewRegistry(logger.NewNopLogger(), a, b)

	assert.Equal(t, b, reg.Lookup("b"))
	assert.Nil(t, reg.Lookup("c"))
	assert.True(t, reg.IsSupported("anything"))
	assert.Equal(t, []Info{{Platform: "a"}, {Platform: "b"}}, reg.Platforms())

	res, err := reg.Probe(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, models.KindVideo, res.Kind)
}

// Instagram through a real router

type fixedProber struct{ result *probe.Result }

func (p fixedProber) ProbeURL(ctx context.Context, identifier, url string) (*probe.Result, error) {
	return p.result, nil
}

type writeStrategy struct{ ext string }

func (s writeStrategy) Name() string                   { return strategy.NameProxy }
func (s writeStrategy) NeedsCredentials() bool         { return false }
func (s writeStrategy) Supports(kind models.Kind) bool { return kind == models.KindVideo }

func (s writeStrategy) Fetch(ctx context.Context, req *strategy.Request) (*strategy.Result, error) {
	p := filepath.Join(req.TargetDir, storage.MediaName(req.Date, req.Identifier, 1, 1, s.ext))
	if err := os.WriteFile(p, []byte("media"), 0644); err != nil {
		return nil, err
	}
	return &strategy.Result{MediaPaths: []string{p}}, nil
}

func newInstagram(t *testing.T, result *probe.Result, creds []accounts.Credentials) *Instagram {
	t.Helper()
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	prober := fixedProber{result: result}
	r := router.New(store, prober, accounts.NewPool(creds),
		router.WithProxy(writeStrategy{ext: "mp4"}),
		router.WithClock(func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }),
		router.WithLogger(logger.NewNopLogger()),
	)
	return NewInstagram(r, prober)
}

func TestInstagramPlatform(t *testing.T) {
	ig := newInstagram(t, &probe.Result{Kind: models.KindVideo, ItemCount: 1}, nil)
	reg := NewRegistry(logger.NewNopLogger(), ig, &stubPlatform{name: "youtube", handles: never})

	assert.True(t, ig.CanHandle("https://www.instagram.com/reel/C9xYz123AbC/"))
	assert.False(t, ig.CanHandle("https://www.instagram.com/reel/short/"))
	assert.False(t, ig.CanHandle("https://youtu.be/dQw4w9WgXcQ"))

	out, err := reg.Dispatch(context.Background(), "https://www.instagram.com/p/C9xYz123AbC/?igsh=abc")
	require.NoError(t, err)
	assert.Equal(t, models.PlatformInstagram, out.Platform)
	assert.Equal(t, "C9xYz123AbC", out.Metadata.Identifier)
	assert.Equal(t, models.KindVideo, out.Kind)
	assert.Equal(t, "2024-05-01_C9xYz123AbC.mp4", filepath.Base(out.PrimaryPath()))

	res, err := reg.Probe(context.Background(), "instagram.com/tv/C9xYz123AbC")
	require.NoError(t, err)
	assert.Equal(t, models.KindVideo, res.Kind)
}

func TestInstagramInfoFollowsCredentials(t *testing.T) {
	video := &probe.Result{Kind: models.KindVideo, ItemCount: 1}

	without := newInstagram(t, video, nil).Info()
	assert.True(t, without.RequiresAuth)
	assert.NotContains(t, without.SupportedTypes, "photo")
	assert.Contains(t, without.SupportedTypes, "carousel_first_item")

	with := newInstagram(t, video, []accounts.Credentials{{Username: "alice", Password: "pa"}}).Info()
	assert.False(t, with.RequiresAuth)
	assert.Contains(t, with.SupportedTypes, "photo")
	assert.Contains(t, with.SupportedTypes, "carousel")
}

func TestInstagramPhotoWithoutAccountsNeedsLogin(t *testing.T) {
	ig := newInstagram(t, &probe.Result{Kind: models.KindPhoto, ItemCount: 1, RequiresAuth: true}, nil)

	_, err := ig.Download(context.Background(), "https://www.instagram.com/p/C9xYz123AbC/")
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeAuthentication))
}
