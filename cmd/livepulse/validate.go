package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/livepulse/config"
)

// validateCmd validates a config file without starting the monitor.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a livepulse configuration file without starting the monitor.

This command parses the YAML, expands environment variables, and validates
all fields. It does not connect to any notifier. It's useful for CI/CD
pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  livepulse validate -c config.yaml
  livepulse validate --config /etc/livepulse/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// catch errors only the SDK constructors report
	if _, err := config.BuildChannels(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	notifiers := "none"
	if enabled := cfg.Notifiers.Enabled(); len(enabled) > 0 {
		notifiers = strings.Join(enabled, ", ")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Channels:      %d\n", len(cfg.Channels))
	fmt.Fprintf(out, "  Notifiers:     %s\n", notifiers)

	return nil
}
