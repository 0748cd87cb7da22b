package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for mediagrab
type Config struct {
	// HTTP API settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Where and how media is written
	Download DownloadConfig `yaml:"download" json:"download"`

	// Instagram accounts and request settings
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// External extractor binaries
	Tools ToolsConfig `yaml:"tools" json:"tools"`

	// Content classification policy
	Probe ProbeConfig `yaml:"probe" json:"probe"`

	// Sidecar metadata collection
	Metadata MetadataConfig `yaml:"metadata" json:"metadata"`

	// Temporary storage janitor
	Temp TempConfig `yaml:"temp" json:"temp"`

	// Inbound API rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host" json:"host"`
	Port         int           `yaml:"port" json:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	// ServeFiles exposes the download directory under /downloads/
	ServeFiles bool `yaml:"serve_files" json:"serve_files"`
}

// Address returns the server address in host:port format
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	Directory      string        `yaml:"directory" json:"directory"`
	MaxFileSizeMB  int           `yaml:"max_file_size_mb" json:"max_file_size_mb"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	Concurrency    int           `yaml:"concurrency" json:"concurrency"`
	PreferAccounts bool          `yaml:"prefer_accounts" json:"prefer_accounts"`
}

// MaxFileSizeBytes returns the byte ceiling, 0 meaning unlimited
func (d DownloadConfig) MaxFileSizeBytes() int64 {
	if d.MaxFileSizeMB <= 0 {
		return 0
	}
	return int64(d.MaxFileSizeMB) * 1024 * 1024
}

// AccountCredential is a single Instagram login
type AccountCredential struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// InstagramConfig holds Instagram-specific configuration
type InstagramConfig struct {
	Accounts         []AccountCredential `yaml:"accounts" json:"accounts"`
	UserAgent        string              `yaml:"user_agent" json:"user_agent"`
	RequestTimeout   time.Duration       `yaml:"request_timeout" json:"request_timeout"`
	FailureThreshold int                 `yaml:"failure_threshold" json:"failure_threshold"`
	BlockDuration    time.Duration       `yaml:"block_duration" json:"block_duration"`
	// RequestsPerMinute paces calls to Instagram's public endpoints, 0 disables
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	// UseCredentialStore merges accounts saved with `mediagrab auth login`
	UseCredentialStore bool `yaml:"use_credential_store" json:"use_credential_store"`
}

// ToolsConfig points at the external extractor binaries
type ToolsConfig struct {
	YtDlpPath     string `yaml:"ytdlp_path" json:"ytdlp_path"`
	GalleryDlPath string `yaml:"gallerydl_path" json:"gallerydl_path"`
}

// ProbeConfig decides which content kinds need a credentialed strategy
type ProbeConfig struct {
	VideoRequiresAuth    bool `yaml:"video_requires_auth" json:"video_requires_auth"`
	PhotoRequiresAuth    bool `yaml:"photo_requires_auth" json:"photo_requires_auth"`
	CarouselRequiresAuth bool `yaml:"carousel_requires_auth" json:"carousel_requires_auth"`
}

// MetadataConfig holds sidecar metadata preferences
type MetadataConfig struct {
	Save            bool `yaml:"save" json:"save"`
	IncludeComments bool `yaml:"include_comments" json:"include_comments"`
	MaxComments     int  `yaml:"max_comments" json:"max_comments"`
}

// TempConfig holds temporary storage configuration
type TempConfig struct {
	Directory       string        `yaml:"directory" json:"directory"`
	MaxAge          time.Duration `yaml:"max_age" json:"max_age"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// RateLimitConfig holds inbound rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	JSON  bool   `yaml:"json" json:"json"`
}

// DefaultUserAgent is sent to Instagram when nothing else is configured
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         8000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			ServeFiles:   true,
		},
		Download: DownloadConfig{
			Directory:      "./downloads",
			MaxFileSizeMB:  100,
			Timeout:        5 * time.Minute,
			MaxRetries:     3,
			Concurrency:    3,
			PreferAccounts: true,
		},
		Instagram: InstagramConfig{
			UserAgent:          DefaultUserAgent,
			RequestTimeout:     30 * time.Second,
			FailureThreshold:   3,
			BlockDuration:      time.Hour,
			RequestsPerMinute:  60,
			UseCredentialStore: false,
		},
		Tools: ToolsConfig{
			YtDlpPath:     "yt-dlp",
			GalleryDlPath: "gallery-dl",
		},
		Probe: ProbeConfig{
			VideoRequiresAuth:    false,
			PhotoRequiresAuth:    true,
			CarouselRequiresAuth: true,
		},
		Metadata: MetadataConfig{
			Save:            true,
			IncludeComments: false,
			MaxComments:     50,
		},
		Temp: TempConfig{
			Directory:       "",
			MaxAge:          time.Hour,
			CleanupInterval: 30 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 10,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// TempDirectory returns the configured temp directory or <download>/temp
func (c *Config) TempDirectory() string {
	if c.Temp.Directory != "" {
		return c.Temp.Directory
	}
	return filepath.Join(c.Download.Directory, "temp")
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("MEDIAGRAB_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("MEDIAGRAB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MEDIAGRAB_PORT: %w", err))
		} else {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("MEDIAGRAB_DOWNLOAD_DIR"); v != "" {
		c.Download.Directory = v
	}
	if v := os.Getenv("MEDIAGRAB_MAX_FILE_SIZE_MB"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MEDIAGRAB_MAX_FILE_SIZE_MB: %w", err))
		} else {
			c.Download.MaxFileSizeMB = size
		}
	}
	if v := os.Getenv("MEDIAGRAB_MAX_RETRIES"); v != "" {
		retries, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MEDIAGRAB_MAX_RETRIES: %w", err))
		} else {
			c.Download.MaxRetries = retries
		}
	}
	if v := os.Getenv("MEDIAGRAB_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MEDIAGRAB_REQUEST_TIMEOUT: %w", err))
		} else {
			c.Instagram.RequestTimeout = d
		}
	}
	if v := os.Getenv("MEDIAGRAB_RATE_LIMIT_PER_MINUTE"); v != "" {
		rpm, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MEDIAGRAB_RATE_LIMIT_PER_MINUTE: %w", err))
		} else {
			c.RateLimit.RequestsPerMinute = rpm
		}
	}
	if v := os.Getenv("MEDIAGRAB_INSTAGRAM_RPM"); v != "" {
		rpm, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MEDIAGRAB_INSTAGRAM_RPM: %w", err))
		} else {
			c.Instagram.RequestsPerMinute = rpm
		}
	}
	if v := os.Getenv("MEDIAGRAB_USER_AGENT"); v != "" {
		c.Instagram.UserAgent = v
	}
	if v := os.Getenv("MEDIAGRAB_YTDLP_PATH"); v != "" {
		c.Tools.YtDlpPath = v
	}
	if v := os.Getenv("MEDIAGRAB_GALLERYDL_PATH"); v != "" {
		c.Tools.GalleryDlPath = v
	}
	if v := os.Getenv("MEDIAGRAB_SAVE_METADATA"); v != "" {
		c.Metadata.Save = parseBool(v)
	}
	if v := os.Getenv("MEDIAGRAB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}

	// Accounts: a single pair plus an optional list of user:pass pairs
	username := os.Getenv("INSTAGRAM_USERNAME")
	password := os.Getenv("INSTAGRAM_PASSWORD")
	if username != "" && password != "" {
		c.addAccount(AccountCredential{Username: username, Password: password})
	}
	if list := os.Getenv("INSTAGRAM_ACCOUNTS"); list != "" {
		accounts, err := ParseAccountList(list)
		if err != nil {
			errs = append(errs, fmt.Errorf("INSTAGRAM_ACCOUNTS: %w", err))
		}
		for _, acc := range accounts {
			c.addAccount(acc)
		}
	}

	return errors.Join(errs...)
}

// ParseAccountList parses "user1:pass1,user2:pass2". Passwords may contain ':'.
func ParseAccountList(list string) ([]AccountCredential, error) {
	var accounts []AccountCredential
	for _, pair := range strings.Split(list, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		username, password, ok := strings.Cut(pair, ":")
		if !ok || username == "" || password == "" {
			return accounts, fmt.Errorf("malformed account entry %q, expected user:password", pair)
		}
		accounts = append(accounts, AccountCredential{Username: username, Password: password})
	}
	return accounts, nil
}

// addAccount appends an account unless the username is already present
func (c *Config) addAccount(acc AccountCredential) {
	for i, existing := range c.Instagram.Accounts {
		if existing.Username == acc.Username {
			c.Instagram.Accounts[i].Password = acc.Password
			return
		}
	}
	c.Instagram.Accounts = append(c.Instagram.Accounts, acc)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".mediagrab.yaml",
		".mediagrab.yml",
		filepath.Join(home, ".config", "mediagrab", "config.yaml"),
		filepath.Join(home, ".config", "mediagrab", "config.yml"),
		filepath.Join(home, ".mediagrab.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Download.Directory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	if c.Download.MaxFileSizeMB < 0 {
		errs = append(errs, errors.New("max file size cannot be negative"))
	}
	if c.Download.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.Concurrency <= 0 || c.Download.Concurrency > 16 {
		errs = append(errs, errors.New("download concurrency must be between 1 and 16"))
	}

	if c.Instagram.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Instagram.FailureThreshold <= 0 {
		errs = append(errs, errors.New("account failure threshold must be positive"))
	}
	if c.Instagram.BlockDuration <= 0 {
		errs = append(errs, errors.New("account block duration must be positive"))
	}
	if c.Instagram.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("instagram requests per minute cannot be negative"))
	}
	for i, acc := range c.Instagram.Accounts {
		if acc.Username == "" || acc.Password == "" {
			errs = append(errs, fmt.Errorf("instagram account #%d needs both username and password", i+1))
		}
	}

	if c.Tools.YtDlpPath == "" {
		errs = append(errs, errors.New("yt-dlp path is required"))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, errors.New("server port must be between 1 and 65535"))
	}
	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	if c.Metadata.MaxComments < 0 {
		errs = append(errs, errors.New("max comments cannot be negative"))
	}
	if c.Temp.MaxAge <= 0 {
		errs = append(errs, errors.New("temp max age must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	return errors.Join(errs...)
}

// HasCredentials reports whether at least one Instagram account is configured
func (c *Config) HasCredentials() bool {
	return len(c.Instagram.Accounts) > 0
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if dir, ok := flags["output"].(string); ok && dir != "" {
		c.Download.Directory = dir
	}
	if concurrency, ok := flags["concurrency"].(int); ok && concurrency > 0 {
		c.Download.Concurrency = concurrency
	}
	if host, ok := flags["host"].(string); ok && host != "" {
		c.Server.Host = host
	}
	if port, ok := flags["port"].(int); ok && port > 0 {
		c.Server.Port = port
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if save, ok := flags["save-metadata"].(bool); ok {
		c.Metadata.Save = save
	}
	if ytdlp, ok := flags["ytdlp"].(string); ok && ytdlp != "" {
		c.Tools.YtDlpPath = ytdlp
	}
	if gallerydl, ok := flags["gallerydl"].(string); ok && gallerydl != "" {
		c.Tools.GalleryDlPath = gallerydl
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".mediagrab.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
