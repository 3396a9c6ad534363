// Package livepulse watches a roster of live-streaming channels and reports
// each offline-to-live transition exactly once.
//
// A [Monitor] polls the upstream status API on a fixed interval. Every cycle
// fetches all channels concurrently, with bounded retries for transient
// network failures, then feeds the results in roster order to a transition
// tracker. A channel that was offline (or not yet seen) and is now live
// produces an [Announcement], which is delivered to every configured
// [Notifier]. A failed fetch never changes a channel's tracked state, so an
// upstream hiccup can neither hide nor duplicate an announcement.
//
// # Quick Start
//
//	x, _ := livepulse.NewChannel("Streamer X", "0123456789abcdef")
//	m, _ := livepulse.New(
//	    livepulse.WithChannel(x),
//	    livepulse.WithNotifier(notify.NewLogNotifier(slog.Default())),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx) // blocks until the context is cancelled
//
// # Snapshots
//
// [Monitor.Snapshot] fetches every channel on demand and reports channels
// whose fetch failed as unavailable. [Monitor.SendSnapshot] also delivers the
// snapshot to the notifiers. Snapshots do not affect transition tracking.
//
// # Status API
//
// Unless disabled with [WithoutHTTP], Start serves /api/status, /api/sse,
// /api/snapshot, /metrics and /healthz on the configured port.
//
// Notifier implementations for webhooks, MQTT, NATS and logs live in the
// notify package. For YAML-based configuration, see the config package and
// the livepulse command.
package livepulse
