package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// YtDlp drives the yt-dlp binary
type YtDlp struct {
	path          string
	runner        Runner
	socketTimeout time.Duration
	retries       int
}

// NewYtDlp creates a yt-dlp wrapper. An empty path means "yt-dlp" on PATH.
func NewYtDlp(path string, runner Runner, socketTimeout time.Duration, retries int) *YtDlp {
	if path == "" {
		path = "yt-dlp"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &YtDlp{path: path, runner: runner, socketTimeout: socketTimeout, retries: retries}
}

// Auth carries optional login arguments
type Auth struct {
	Username  string
	Password  string
	UserAgent string
}

// args returns the login and user agent arguments. The password goes into a
// private netrc file so it never shows up in the process table.
func (a Auth) args() ([]string, func(), error) {
	var args []string
	cleanup := func() {}
	if a.Username != "" && a.Password != "" {
		path, remove, err := credentialFile("mediagrab-netrc-*", netrcEntry(a.Username, a.Password))
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = remove
		args = append(args, "--netrc", "--netrc-location", path)
	}
	if a.UserAgent != "" {
		args = append(args, "--user-agent", a.UserAgent)
	}
	return args, cleanup, nil
}

func (y *YtDlp) commonArgs() []string {
	args := []string{"--no-warnings", "--no-progress"}
	if y.socketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(int(y.socketTimeout.Seconds())))
	}
	if y.retries > 0 {
		args = append(args, "--retries", strconv.Itoa(y.retries))
	}
	return args
}

// DumpJSON fetches metadata without downloading anything
func (y *YtDlp) DumpJSON(ctx context.Context, url string, auth Auth) (*Info, error) {
	authArgs, cleanup, err := auth.args()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	args := append(y.commonArgs(), "--dump-single-json", "--skip-download")
	args = append(args, authArgs...)
	args = append(args, url)

	out, err := y.runner.Run(ctx, y.path, args...)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	return &info, nil
}

// DownloadOptions controls a yt-dlp download
type DownloadOptions struct {
	Auth
	OutputTemplate string
	Format         string
	MaxFileSize    int64
	WriteThumbnail bool
}

// Download fetches media to OutputTemplate and returns the command output
func (y *YtDlp) Download(ctx context.Context, url string, opts DownloadOptions) ([]byte, error) {
	authArgs, cleanup, err := opts.Auth.args()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	args := y.commonArgs()
	args = append(args, "-o", opts.OutputTemplate, "--no-playlist")
	if opts.Format != "" {
		args = append(args, "-f", opts.Format)
	}
	if opts.MaxFileSize > 0 {
		args = append(args, "--max-filesize", strconv.FormatInt(opts.MaxFileSize, 10))
	}
	if opts.WriteThumbnail {
		args = append(args, "--write-thumbnail", "--convert-thumbnails", "jpg")
	}
	args = append(args, authArgs...)
	args = append(args, url)

	return y.runner.Run(ctx, y.path, args...)
}

// Version returns the installed yt-dlp version
func (y *YtDlp) Version(ctx context.Context) (string, error) {
	out, err := y.runner.Run(ctx, y.path, "--version")
	if err != nil {
		return "", fmt.Errorf("yt-dlp not found: %w (install: pip install yt-dlp)", err)
	}
	return strings.TrimSpace(string(out)), nil
}
