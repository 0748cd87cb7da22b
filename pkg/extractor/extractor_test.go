package extractor

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpJSONParsesInfo(t *testing.T) {
	runner := &FakeRunner{Handler: func(call Call) ([]byte, error) {
		return []byte(`{"id":"ABC","_type":"playlist","entries":[{"id":"1","ext":"jpg"},{"id":"2","ext":"mp4"}],"like_count":12,"uploader":"someone"}`), nil
	}}
	y := NewYtDlp("", runner, 30*time.Second, 3)

	info, err := y.DumpJSON(context.Background(), "https://www.instagram.com/reel/ABC/", Auth{Username: "u", Password: "p"})
	require.NoError(t, err)

	assert.True(t, info.IsPlaylist())
	assert.Len(t, info.Entries, 2)
	require.NotNil(t, info.LikeCount)
	assert.Equal(t, int64(12), *info.LikeCount)
	assert.Nil(t, info.ViewCount)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "yt-dlp", calls[0].Name)
	assert.True(t, calls[0].HasArg("--skip-download"))
	assert.True(t, calls[0].HasArg("--netrc"))
	user, pass := calls[0].Login()
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
	assert.NotContains(t, calls[0].Args, "p")
	assert.NoFileExists(t, calls[0].ArgAfter("--netrc-location"), "credential file is removed after the run")
	assert.Equal(t, "30", calls[0].ArgAfter("--socket-timeout"))
	assert.Equal(t, "3", calls[0].ArgAfter("--retries"))
}

func TestDumpJSONWithoutCredentialsOmitsLogin(t *testing.T) {
	runner := &FakeRunner{Handler: func(Call) ([]byte, error) { return []byte(`{"id":"x"}`), nil }}
	y := NewYtDlp("/opt/yt-dlp", runner, 0, 0)

	_, err := y.DumpJSON(context.Background(), "u", Auth{Username: "only-user"})
	require.NoError(t, err)

	call := runner.Calls()[0]
	assert.Equal(t, "/opt/yt-dlp", call.Name)
	assert.False(t, call.HasArg("--netrc"))
	assert.False(t, call.HasArg("--socket-timeout"))
}

func TestDumpJSONBadOutput(t *testing.T) {
	runner := &FakeRunner{Handler: func(Call) ([]byte, error) { return []byte("not json"), nil }}
	_, err := NewYtDlp("", runner, 0, 0).DumpJSON(context.Background(), "u", Auth{})
	assert.Error(t, err)
}

func TestDownloadArgs(t *testing.T) {
	runner := &FakeRunner{}
	y := NewYtDlp("", runner, 0, 0)

	_, err := y.Download(context.Background(), "https://x", DownloadOptions{
		Auth:           Auth{UserAgent: "UA/1.0"},
		OutputTemplate: "/tmp/out/%(ext)s",
		Format:         "best",
		MaxFileSize:    1024,
		WriteThumbnail: true,
	})
	require.NoError(t, err)

	call := runner.Calls()[0]
	assert.Equal(t, "/tmp/out/%(ext)s", call.ArgAfter("-o"))
	assert.Equal(t, "best", call.ArgAfter("-f"))
	assert.Equal(t, "1024", call.ArgAfter("--max-filesize"))
	assert.Equal(t, "UA/1.0", call.ArgAfter("--user-agent"))
	assert.True(t, call.HasArg("--write-thumbnail"))
	assert.Equal(t, "https://x", call.Args[len(call.Args)-1])
}

func TestGalleryDlArgs(t *testing.T) {
	runner := &FakeRunner{}
	g := NewGalleryDl("", runner)

	_, err := g.Download(context.Background(), "https://www.instagram.com/p/ABC/", GalleryOptions{
		Username: "u", Password: "p", Directory: "/tmp/scratch", WriteMetadata: true,
	})
	require.NoError(t, err)

	call := runner.Calls()[0]
	assert.Equal(t, "gallery-dl", call.Name)
	assert.Equal(t, "/tmp/scratch", call.ArgAfter("-D"))
	assert.Equal(t, GalleryFilename, call.ArgAfter("-f"))
	assert.True(t, call.HasArg("--write-metadata"))
	assert.NotContains(t, call.Args, "p")
	user, pass := call.Login()
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
	assert.NoFileExists(t, call.ArgAfter("--config"))
}

func TestInfoClassificationHelpers(t *testing.T) {
	tests := []struct {
		name  string
		info  Info
		video bool
	}{
		{"mp4", Info{Ext: "mp4"}, true},
		{"codec", Info{Ext: "unknown_video", VCodec: "h264"}, true},
		{"codec none", Info{Ext: "jpg", VCodec: "none"}, false},
		{"duration", Info{Duration: 3.5}, true},
		{"jpg", Info{Ext: "jpg"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.video, tt.info.LooksLikeVideo())
		})
	}

	assert.True(t, (&Info{LiveStatus: "is_live"}).IsUpcomingOrLive())
	assert.False(t, (&Info{LiveStatus: "was_live"}).IsUpcomingOrLive())
	assert.Equal(t, "t2", (&Info{Entries: []Info{{}, {Thumbnail: "t2"}}}).ThumbnailURL())
}

func TestCommandErrorText(t *testing.T) {
	err := &CommandError{Name: "yt-dlp", Stderr: "ERROR: HTTP Error 404: Not Found\n", Err: errors.New("exit status 1")}
	assert.Equal(t, "ERROR: HTTP Error 404: Not Found", ErrorText(err))
	assert.Contains(t, err.Error(), "exit status 1")
	assert.Equal(t, "plain", ErrorText(errors.New("plain")))
	assert.Equal(t, "", ErrorText(nil))
}

func TestCredentialFile(t *testing.T) {
	path, cleanup, err := credentialFile("netrc-*", netrcEntry("alice", "two words"))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "machine instagram login alice password \"two words\"\n", string(data))

	cleanup()
	assert.NoFileExists(t, path)
}

func TestGalleryConfigLogin(t *testing.T) {
	data, err := galleryConfig("alice", "s3cret")
	require.NoError(t, err)
	user, pass := parseLogin(data)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "s3cret", pass)

	user, pass = parseLogin(netrcEntry("bob", "pw"))
	assert.Equal(t, "bob", user)
	assert.Equal(t, "pw", pass)
}

func TestExecRunnerReportsFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	_, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo boom 1>&2; exit 3")
	require.Error(t, err)

	var ce *CommandError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "boom", ErrorText(err))
}

func TestExecRunnerStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}
	out, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo hello; echo noise 1>&2")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestFakeRunnerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&FakeRunner{}).Run(ctx, "yt-dlp")
	assert.ErrorIs(t, err, context.Canceled)
}
