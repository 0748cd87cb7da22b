package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediagrab/pkg/accounts"
	"mediagrab/pkg/errors"
	"mediagrab/pkg/extractor"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/models"
)

func newProber(handler func(extractor.Call) ([]byte, error), pool *accounts.Pool) (*Prober, *extractor.FakeRunner) {
	runner := &extractor.FakeRunner{Handler: handler}
	y := extractor.NewYtDlp("", runner, 0, 0)
	return New(y, pool, DefaultAuthPolicy(), "UA", logger.NewNopLogger()), runner
}

func jsonReply(body string) func(extractor.Call) ([]byte, error) {
	return func(extractor.Call) ([]byte, error) { return []byte(body), nil }
}

func failReply(stderr string) func(extractor.Call) ([]byte, error) {
	return func(extractor.Call) ([]byte, error) {
		return nil, &extractor.CommandError{Name: "yt-dlp", Stderr: stderr, Err: assert.AnError}
	}
}

func TestProbeClassification(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		kind         models.Kind
		items        int
		requiresAuth bool
	}{
		{"playlist type", `{"id":"x","_type":"playlist","entries":[{"ext":"jpg"},{"ext":"jpg"},{"ext":"mp4"}]}`, models.KindCarousel, 3, true},
		{"entries only", `{"id":"x","entries":[{"ext":"jpg"},{"ext":"jpg"}]}`, models.KindCarousel, 2, true},
		{"empty playlist", `{"id":"x","_type":"playlist"}`, models.KindCarousel, 1, true},
		{"mp4", `{"id":"x","ext":"mp4"}`, models.KindVideo, 1, false},
		{"vcodec", `{"id":"x","ext":"unknown","vcodec":"avc1"}`, models.KindVideo, 1, false},
		{"duration", `{"id":"x","duration":12.5}`, models.KindVideo, 1, false},
		{"photo", `{"id":"x","ext":"jpg","vcodec":"none"}`, models.KindPhoto, 1, true},
		{"bare", `{"id":"x"}`, models.KindPhoto, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newProber(jsonReply(tt.body), nil)
			res, err := p.Probe(context.Background(), "ABC_123-xyz")
			require.NoError(t, err)
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.items, res.ItemCount)
			assert.Equal(t, tt.requiresAuth, res.RequiresAuth)
			assert.NotNil(t, res.Info)
		})
	}
}

func TestProbeErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   errors.ErrorType
	}{
		{"private", "ERROR: This account is private", errors.ErrorTypePrivateAccount},
		{"unavailable", "ERROR: content unavailable", errors.ErrorTypePrivateAccount},
		{"not found", "ERROR: HTTP Error 404: Not Found", errors.ErrorTypeContentNotFound},
		{"rate limited collapses", "ERROR: HTTP Error 429: Too Many Requests", errors.ErrorTypeDownloadFailed},
		{"api change collapses", "ERROR: Unable to extract shared data", errors.ErrorTypeDownloadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newProber(failReply(tt.stderr), nil)
			_, err := p.Probe(context.Background(), "ABC_123-xyz")
			require.Error(t, err)
			assert.Equal(t, tt.want, errors.TypeOf(err))

			e, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, "ABC_123-xyz", e.Details["identifier"])
		})
	}
}

func TestProbeUsesPooledCredentials(t *testing.T) {
	pool := accounts.NewPool([]accounts.Credentials{{Username: "alice", Password: "pw"}})
	p, runner := newProber(jsonReply(`{"id":"x","ext":"mp4"}`), pool)

	_, err := p.Probe(context.Background(), "ABC_123-xyz")
	require.NoError(t, err)

	call := runner.Calls()[0]
	user, _ := call.Login()
	assert.Equal(t, "alice", user)
	assert.Equal(t, "UA", call.ArgAfter("--user-agent"))
	assert.Equal(t, "https://www.instagram.com/p/ABC_123-xyz/", call.Args[len(call.Args)-1])
}

func TestProbeRecordsAccountResults(t *testing.T) {
	creds := []accounts.Credentials{{Username: "alice", Password: "pw"}}

	pool := accounts.NewPool(creds, accounts.WithFailureThreshold(2))
	p, _ := newProber(failReply("ERROR: login required, checkpoint"), pool)
	for i := 0; i < 2; i++ {
		_, err := p.Probe(context.Background(), "ABC_123-xyz")
		require.Error(t, err)
	}
	stats := pool.Stats()
	assert.Equal(t, 2, stats.Accounts[0].FailedRequests)
	assert.True(t, stats.Accounts[0].Blocked)
	assert.False(t, pool.HasAnyAvailable())

	pool = accounts.NewPool(creds, accounts.WithFailureThreshold(1))
	p, _ = newProber(failReply("ERROR: This account is private"), pool)
	_, err := p.Probe(context.Background(), "ABC_123-xyz")
	require.Error(t, err)
	assert.Zero(t, pool.Stats().Accounts[0].FailedRequests)
	assert.True(t, pool.HasAnyAvailable())

	pool = accounts.NewPool(creds)
	p, _ = newProber(jsonReply(`{"id":"x","ext":"mp4"}`), pool)
	_, err = p.Probe(context.Background(), "ABC_123-xyz")
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Stats().TotalRequests)
	assert.Zero(t, pool.Stats().Accounts[0].FailedRequests)
}

func TestProbeWithoutAccountsOmitsLogin(t *testing.T) {
	p, runner := newProber(jsonReply(`{"id":"x","ext":"mp4"}`), accounts.NewPool(nil))
	_, err := p.Probe(context.Background(), "ABC_123-xyz")
	require.NoError(t, err)
	assert.False(t, runner.Calls()[0].HasArg("--netrc"))
}

func TestAuthPolicy(t *testing.T) {
	custom := AuthPolicy{Video: true}
	assert.True(t, custom.Requires(models.KindVideo))
	assert.False(t, custom.Requires(models.KindPhoto))

	info := &extractor.Info{Ext: "jpg"}
	assert.False(t, Classify(info, custom).RequiresAuth)
	assert.True(t, Classify(info, DefaultAuthPolicy()).RequiresAuth)
}

func TestProbeCancelled(t *testing.T) {
	p, _ := newProber(jsonReply(`{}`), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Probe(ctx, "ABC_123-xyz")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
