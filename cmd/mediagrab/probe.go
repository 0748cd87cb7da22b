package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mediagrab/pkg/platform"
	"mediagrab/pkg/ui"
)

var jsonOutput bool

// probeCmd represents the probe command
var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Classify a post without downloading it",
	Long: `Ask the platform what kind of media a URL points to and whether an
account is needed to download all of it.`,
	Example: `  mediagrab probe https://www.instagram.com/p/C1a2B3c4D5e/
  mediagrab probe --json https://youtu.be/dQw4w9WgXcQ`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

// platformsCmd represents the platforms command
var platformsCmd = &cobra.Command{
	Use:   "platforms",
	Short: "List supported platforms and current capabilities",
	Args:  cobra.NoArgs,
	RunE:  runPlatforms,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(platformsCmd)

	probeCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	platformsCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, nil, appOptions{})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	rawURL := strings.TrimSpace(args[0])
	p := a.registry.Detect(rawURL)
	if p == nil {
		return platform.Unsupported(rawURL)
	}
	result, err := p.Probe(ctx, rawURL)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]interface{}{
			"platform":      p.Name(),
			"media_type":    result.Kind,
			"item_count":    result.ItemCount,
			"requires_auth": result.RequiresAuth,
		})
	}
	ui.PrintInfo("Platform", p.Name())
	ui.PrintInfo("Media type", string(result.Kind))
	ui.PrintInfo("Items", strconv.Itoa(result.ItemCount))
	ui.PrintInfo("Requires account", strconv.FormatBool(result.RequiresAuth))
	return nil
}

func runPlatforms(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, nil, appOptions{})
	if err != nil {
		return err
	}

	caps := a.instagram.Capabilities()
	if jsonOutput {
		return printJSON(map[string]interface{}{
			"platforms":    a.registry.Platforms(),
			"capabilities": caps,
		})
	}

	for _, info := range a.registry.Platforms() {
		fmt.Fprintf(ui.Output, "%s\n", ui.Cyan(info.Platform))
		fmt.Fprintf(ui.Output, "  types:         %s\n", strings.Join(info.SupportedTypes, ", "))
		fmt.Fprintf(ui.Output, "  requires auth: %t\n", info.RequiresAuth)
		if info.MaxQuality != "" {
			fmt.Fprintf(ui.Output, "  max quality:   %s\n", info.MaxQuality)
		}
	}
	fmt.Fprintln(ui.Output)
	ui.PrintInfo("Instagram accounts", fmt.Sprintf("%d/%d available", caps.AccountsAvailable, caps.Accounts))
	if caps.RequiresAuthentication {
		ui.PrintWarning("Photo posts and full carousels need an account. Run 'mediagrab auth login' or set INSTAGRAM_ACCOUNTS")
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(ui.Output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
