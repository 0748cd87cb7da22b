package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mediagrab/pkg/config"
	"mediagrab/pkg/storage"
	"mediagrab/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage mediagrab configuration.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (MEDIAGRAB_*, INSTAGRAM_*)
  - .env file
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.mediagrab.yaml'
unless a different path is specified with the --config flag.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging every source.

Account passwords are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and external tools",
	Long: `Validate the configuration and check the environment.

This command checks:
  - YAML syntax
  - Value types and ranges
  - The download directory is writable
  - yt-dlp and gallery-dl can be found`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# mediagrab configuration
#
# Every option can also be set with environment variables, e.g.
# MEDIAGRAB_DOWNLOAD_DIR, MEDIAGRAB_PORT, INSTAGRAM_ACCOUNTS=user1:pass1,user2:pass2

# HTTP API (mediagrab serve)
server:
  host: "127.0.0.1"
  port: 8000
  read_timeout: 30s
  write_timeout: 5m
  # Expose downloaded files under /downloads/
  serve_files: true

download:
  directory: "./downloads"
  # 0 disables the limit
  max_file_size_mb: 100
  timeout: 5m
  max_retries: 3
  # Batch workers, 1-16
  concurrency: 3
  prefer_accounts: true

instagram:
  # Accounts for yt-dlp and gallery-dl. Use throwaway accounts.
  accounts: []
  #  - username: "your_username"
  #    password: "your_password"
  # user_agent: "Mozilla/5.0 ..."
  request_timeout: 30s
  # Consecutive failures before an account is set aside
  failure_threshold: 3
  block_duration: 1h
  # Outgoing requests to Instagram's public endpoints, 0 disables
  requests_per_minute: 60
  # Add accounts saved with 'mediagrab auth login'
  use_credential_store: false

tools:
  ytdlp_path: "yt-dlp"
  gallerydl_path: "gallery-dl"

# Which content kinds go to account-backed strategies first
probe:
  video_requires_auth: false
  photo_requires_auth: true
  carousel_requires_auth: true

metadata:
  save: true
  include_comments: false
  max_comments: 50

temp:
  # Defaults to <download.directory>/temp
  directory: ""
  max_age: 1h
  cleanup_interval: 30m

rate_limit:
  # Per client IP for /api/download and /api/probe, 0 disables
  requests_per_minute: 10

logging:
  # debug, info, warn, error
  level: "info"
  # Also append JSON lines to this file
  file: ""
  json: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".mediagrab.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists: %s (remove it first to start over)", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Add Instagram accounts, or run 'mediagrab auth login'")
	fmt.Fprintln(out, "2. Run 'mediagrab config validate' to check the configuration")
	fmt.Fprintln(out, "3. Start downloading with 'mediagrab download <url>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(maskedConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

// maskedConfig returns a copy safe to print
func maskedConfig(cfg *config.Config) *config.Config {
	display := *cfg
	display.Instagram.Accounts = make([]config.AccountCredential, len(cfg.Instagram.Accounts))
	for i, acc := range cfg.Instagram.Accounts {
		display.Instagram.Accounts[i] = config.AccountCredential{Username: acc.Username, Password: "********"}
	}
	return &display
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	var problems []error
	if store, err := storage.NewManager(cfg.Download.Directory); err != nil {
		problems = append(problems, err)
	} else if err := store.Writable(); err != nil {
		problems = append(problems, fmt.Errorf("download directory is not writable: %w", err))
	}
	if _, err := exec.LookPath(cfg.Tools.YtDlpPath); err != nil {
		problems = append(problems, fmt.Errorf("yt-dlp not found at %q (install: pip install yt-dlp)", cfg.Tools.YtDlpPath))
	}
	if _, err := exec.LookPath(cfg.Tools.GalleryDlPath); err != nil {
		ui.PrintWarning("gallery-dl not found, carousels and photos will fall back to the other strategies", cfg.Tools.GalleryDlPath)
	}
	if !cfg.HasCredentials() && !cfg.Instagram.UseCredentialStore {
		ui.PrintWarning("No Instagram accounts configured, photo posts and full carousels are unavailable")
	}

	if err := errors.Join(problems...); err != nil {
		return err
	}
	ui.PrintSuccess("Configuration is valid")
	return nil
}
