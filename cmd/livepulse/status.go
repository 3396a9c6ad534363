package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/livepulse"
	"github.com/jpalmerr/livepulse/config"
	"github.com/jpalmerr/livepulse/notify"
)

// statusTimeout bounds a one-shot snapshot including delivery.
const statusTimeout = time.Minute

// statusCmd fetches every channel once and prints the result.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current status of every channel",
	Long: `Fetch every configured channel once and print its status.

Channels whose status cannot be fetched are shown as unavailable.
With --notify the snapshot is also sent to every configured notifier.
Transition state is not affected, so no announcements are made.

Example:
  livepulse status -c config.yaml
  livepulse status -c config.yaml --notify`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	statusCmd.Flags().Bool("notify", false, "send the snapshot to the configured notifiers")
	_ = statusCmd.MarkFlagRequired("config")
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	sendNotify, _ := cmd.Flags().GetBool("notify")

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build channels: %w", err)
	}
	opts = append(opts, livepulse.WithLogger(logger), livepulse.WithoutHTTP())
	if cfg.API.UserAgent == "" {
		opts = append(opts, livepulse.WithUserAgent(userAgent()))
	}

	if sendNotify {
		notifiers, err := buildNotifiers(cfg.Notifiers, logger)
		if err != nil {
			return fmt.Errorf("failed to connect notifiers: %w", err)
		}
		defer func() {
			if err := notifiers.Close(); err != nil {
				logger.Warn("failed to close notifiers", "error", err.Error())
			}
		}()
		if len(notifiers.notifiers) == 0 {
			return fmt.Errorf("--notify requires at least one notifier in the config")
		}
		opts = append(opts, notifiers.options()...)
	}

	m, err := livepulse.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
	defer cancel()

	var statuses []livepulse.ChannelStatus
	var notifyErr error
	if sendNotify {
		statuses, notifyErr = m.SendSnapshot(ctx)
	} else {
		statuses = m.Snapshot(ctx)
	}

	fmt.Fprintln(cmd.OutOrStdout(), notify.SnapshotText(statuses))

	if notifyErr != nil {
		return fmt.Errorf("snapshot delivery failed: %w", notifyErr)
	}
	return nil
}
