package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)

	// Server defaults
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Address())

	// Download defaults
	assert.Equal(t, "./downloads", cfg.Download.Directory)
	assert.Equal(t, 100, cfg.Download.MaxFileSizeMB)
	assert.Equal(t, int64(100*1024*1024), cfg.Download.MaxFileSizeBytes())
	assert.Equal(t, 3, cfg.Download.MaxRetries)

	// Instagram defaults
	assert.Equal(t, DefaultUserAgent, cfg.Instagram.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.Instagram.RequestTimeout)
	assert.Equal(t, 3, cfg.Instagram.FailureThreshold)
	assert.Equal(t, time.Hour, cfg.Instagram.BlockDuration)
	assert.Empty(t, cfg.Instagram.Accounts)
	assert.False(t, cfg.HasCredentials())

	// Probe policy
	assert.False(t, cfg.Probe.VideoRequiresAuth)
	assert.True(t, cfg.Probe.PhotoRequiresAuth)
	assert.True(t, cfg.Probe.CarouselRequiresAuth)

	assert.Equal(t, 10, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 60, cfg.Instagram.RequestsPerMinute)
	assert.True(t, cfg.Metadata.Save)
	assert.Equal(t, filepath.Join("./downloads", "temp"), cfg.TempDirectory())

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MEDIAGRAB_PORT", "9001")
	t.Setenv("MEDIAGRAB_DOWNLOAD_DIR", "/tmp/media")
	t.Setenv("MEDIAGRAB_MAX_FILE_SIZE_MB", "25")
	t.Setenv("MEDIAGRAB_RATE_LIMIT_PER_MINUTE", "30")
	t.Setenv("MEDIAGRAB_INSTAGRAM_RPM", "0")
	t.Setenv("MEDIAGRAB_SAVE_METADATA", "false")
	t.Setenv("MEDIAGRAB_LOG_LEVEL", "debug")
	t.Setenv("INSTAGRAM_USERNAME", "alice")
	t.Setenv("INSTAGRAM_PASSWORD", "secret")
	t.Setenv("INSTAGRAM_ACCOUNTS", "bob:pw1, carol:pa:ss")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "/tmp/media", cfg.Download.Directory)
	assert.Equal(t, 25, cfg.Download.MaxFileSizeMB)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Zero(t, cfg.Instagram.RequestsPerMinute)
	assert.False(t, cfg.Metadata.Save)
	assert.Equal(t, "debug", cfg.Logging.Level)

	require.Len(t, cfg.Instagram.Accounts, 3)
	assert.Equal(t, AccountCredential{Username: "alice", Password: "secret"}, cfg.Instagram.Accounts[0])
	assert.Equal(t, AccountCredential{Username: "bob", Password: "pw1"}, cfg.Instagram.Accounts[1])
	assert.Equal(t, AccountCredential{Username: "carol", Password: "pa:ss"}, cfg.Instagram.Accounts[2])
	assert.True(t, cfg.HasCredentials())
}

func TestLoadFromEnvInvalidValues(t *testing.T) {
	t.Setenv("MEDIAGRAB_PORT", "not-a-port")
	t.Setenv("INSTAGRAM_ACCOUNTS", "missingpassword")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEDIAGRAB_PORT")
	assert.Contains(t, err.Error(), "INSTAGRAM_ACCOUNTS")
}

func TestLoadFromEnvDuplicateAccountOverridesPassword(t *testing.T) {
	t.Setenv("INSTAGRAM_USERNAME", "alice")
	t.Setenv("INSTAGRAM_PASSWORD", "old")
	t.Setenv("INSTAGRAM_ACCOUNTS", "alice:new")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	require.Len(t, cfg.Instagram.Accounts, 1)
	assert.Equal(t, "new", cfg.Instagram.Accounts[0].Password)
}

func TestParseAccountList(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"single", "u:p", 1, false},
		{"several with spaces", " u1:p1 , u2:p2 ", 2, false},
		{"trailing comma", "u1:p1,", 1, false},
		{"missing password", "u1:", 0, true},
		{"no separator", "u1", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAccountList(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  port: 8080
download:
  directory: /data/media
  max_file_size_mb: 50
instagram:
  accounts:
    - username: dave
      password: hunter2
probe:
  video_requires_auth: true
logging:
  level: warn
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/data/media", cfg.Download.Directory)
	assert.Equal(t, 50, cfg.Download.MaxFileSizeMB)
	require.Len(t, cfg.Instagram.Accounts, 1)
	assert.Equal(t, "dave", cfg.Instagram.Accounts[0].Username)
	assert.True(t, cfg.Probe.VideoRequiresAuth)
	assert.Equal(t, "warn", cfg.Logging.Level)
	// untouched sections keep their defaults
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty directory", func(c *Config) { c.Download.Directory = "" }, "download directory is required"},
		{"negative size", func(c *Config) { c.Download.MaxFileSizeMB = -1 }, "max file size cannot be negative"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"zero threshold", func(c *Config) { c.Instagram.FailureThreshold = 0 }, "failure threshold"},
		{"half account", func(c *Config) {
			c.Instagram.Accounts = []AccountCredential{{Username: "x"}}
		}, "needs both username and password"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
		{"concurrency", func(c *Config) { c.Download.Concurrency = 0 }, "concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":        "/out",
		"concurrency":   5,
		"port":          9999,
		"log-level":     "error",
		"save-metadata": false,
		"ytdlp":         "/usr/local/bin/yt-dlp",
	})

	assert.Equal(t, "/out", cfg.Download.Directory)
	assert.Equal(t, 5, cfg.Download.Concurrency)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.False(t, cfg.Metadata.Save)
	assert.Equal(t, "/usr/local/bin/yt-dlp", cfg.Tools.YtDlpPath)
}

func TestSaveOmitsNothingNeededToReload(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Instagram.Accounts = []AccountCredential{{Username: "erin", Password: "pw"}}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, cfg.Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded Config
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, cfg.Instagram.Accounts, loaded.Instagram.Accounts)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8100\ndownload:\n  directory: /from/file\n"), 0600))

	t.Setenv("MEDIAGRAB_PORT", "8200")

	cfg, err := Load(path, map[string]interface{}{"output": "/from/flag"})
	require.NoError(t, err)

	assert.Equal(t, 8200, cfg.Server.Port)
	assert.Equal(t, "/from/flag", cfg.Download.Directory)
}
