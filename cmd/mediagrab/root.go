package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"mediagrab/pkg/config"
	"mediagrab/pkg/logger"
	"mediagrab/pkg/ui"
)

var (
	// Version information, set with -ldflags at build time
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	notifications bool
	quiet         bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mediagrab",
	Short: "Download Instagram and YouTube media",
	Long: `mediagrab downloads reels, posts, carousels and YouTube videos.

Instagram posts are classified first, then fetched with yt-dlp or
gallery-dl using a rotating pool of accounts, falling back to Instagram's
public endpoints when no account can serve the post.

Run it as a one-shot batch downloader or as an HTTP API with 'serve'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose && !quiet && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.mediagrab.yaml or ~/.config/mediagrab/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send a desktop notification when a batch finishes")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print one line per download and the logo")

	rootCmd.SetVersionTemplate(`mediagrab {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads configuration with the global flags merged in and
// initializes the global logger from it
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	switch {
	case logLevel != "":
		flags["log-level"] = logLevel
	case quiet:
		flags["log-level"] = "error"
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	logger.Version = version
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
