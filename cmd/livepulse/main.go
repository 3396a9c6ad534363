// Package main is the entry point for the livepulse CLI.
//
// livepulse can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	livepulse serve -c config.yaml            # Watch channels and notify
//	livepulse status -c config.yaml [--notify] # Print a snapshot
//	livepulse validate -c config.yaml         # Validate configuration
//	livepulse version                         # Show version info
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "livepulse",
	Short: "Announce when live-stream channels go live",
	Long: `livepulse watches a roster of live-streaming channels and announces
each offline-to-live transition exactly once.

It polls the channel status API at a fixed interval and delivers
announcements to a Discord-compatible webhook, an MQTT broker, a NATS
subject or the log.

Quick start:
  1. Create a config file (livepulse.yaml)
  2. Run: livepulse serve -c livepulse.yaml
  3. Check http://localhost:8080/api/status

Example config:
  poll_interval: 60s
  channels:
    - name: Streamer X
      id: 0123456789abcdef0123456789abcdef
  notifiers:
    webhook:
      url: ${DISCORD_WEBHOOK_URL}`,
	SilenceUsage: true,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this livepulse binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "livepulse %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}

// newLogger creates a JSON logger for CLI use at the level given by the
// --log-level flag.
func newLogger(cmd *cobra.Command, w io.Writer) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString("log-level")

	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", levelName, err)
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})), nil
}

// userAgent is sent upstream unless the config overrides it.
func userAgent() string {
	return "livepulse/" + version
}
