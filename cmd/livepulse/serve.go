package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/livepulse"
	"github.com/jpalmerr/livepulse/config"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts watching the configured channels.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch channels and send notifications",
	Long: `Watch the configured channels and send notifications.

The server will:
  - Load configuration from the specified YAML file
  - Connect every configured notifier
  - Poll all channels at the configured interval
  - Announce each offline-to-live transition once
  - Serve the status API on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  livepulse serve -c config.yaml
  livepulse serve --config /etc/livepulse/config.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"channels", len(cfg.Channels),
		"notifiers", cfg.Notifiers.Enabled(),
	)

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build channels: %w", err)
	}

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
		logger.Warn("no notifiers configured, announcements are only visible in the status API")
	}

	opts = append(opts, notifiers.options()...)
	opts = append(opts, livepulse.WithLogger(logger))
	if cfg.API.UserAgent == "" {
		opts = append(opts, livepulse.WithUserAgent(userAgent()))
	}

	m, err := livepulse.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start monitor - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- m.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("monitor error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("monitor error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
