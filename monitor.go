package livepulse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/livepulse/internal/metrics"
	"github.com/jpalmerr/livepulse/internal/poller"
	"github.com/jpalmerr/livepulse/internal/server"
	"github.com/jpalmerr/livepulse/internal/store"
	"github.com/jpalmerr/livepulse/internal/tracker"
)

const (
	defaultPollingInterval = poller.DefaultInterval
	defaultPort            = 8080

	// notifyTimeout bounds a single notifier call.
	notifyTimeout = 10 * time.Second

	// failureAlertThreshold is the number of consecutive failed fetches after
	// which a channel is logged as persistently unavailable.
	failureAlertThreshold = 5
)

// Monitor watches a roster of channels and reports offline-to-live
// transitions to its notifiers.
//
// A Monitor is created with [New] and run with [Monitor.Start]:
//
//	m, err := livepulse.New(
//	    livepulse.WithChannels(x, y),
//	    livepulse.WithNotifier(n),
//	)
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until context cancelled
//
// Transition state lives in memory only and starts empty on every process
// start.
type Monitor struct {
	channels     []Channel
	channelsByID map[string]Channel

	pollingInterval time.Duration
	pollOnStart     bool
	port            int
	httpDisabled    bool

	logger    *slog.Logger
	notifiers []Notifier
	callbacks []func(Announcement)

	client   *poller.Client
	tracker  *tracker.Tracker
	runner   *poller.Runner
	store    *store.MemoryStore
	registry *prometheus.Registry
	metrics  metrics.Collector

	mu      sync.Mutex
	started bool
	addr    net.Addr
}

// New creates a [Monitor] with the given options.
//
// At least one channel is required and channel ids must be unique. Defaults:
//   - Polling interval: 60 seconds, first cycle after one interval
//   - Port: 8080
//   - Upstream: 3 attempts per fetch, 7s per attempt, 800ms linear backoff
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{
		pollingInterval: defaultPollingInterval,
		port:            defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.channels) == 0 {
		return nil, errors.New("at least one channel is required")
	}

	byID := make(map[string]Channel, len(cfg.channels))
	for _, ch := range cfg.channels {
		if ch.id == "" {
			return nil, errors.New("channels must be created with NewChannel")
		}
		if _, dup := byID[ch.id]; dup {
			return nil, fmt.Errorf("duplicate channel id: %q", ch.id)
		}
		byID[ch.id] = ch
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	collector := metrics.NewPrometheus(registry, "")

	trackerOpts := []tracker.Option{
		tracker.WithFailureHook(func(channelID string, consecutive int) {
			if consecutive == failureAlertThreshold {
				logger.Error("channel persistently unavailable",
					"channel", byID[channelID].name,
					"channel_id", channelID,
					"consecutive_failures", consecutive,
				)
			}
		}),
	}
	if cfg.baseline {
		trackerOpts = append(trackerOpts, tracker.WithBaseline())
	}
	tr := tracker.New(trackerOpts...)

	retry := poller.DefaultRetryPolicy()
	if cfg.maxAttempts > 0 {
		retry.MaxAttempts = cfg.maxAttempts
		retry.Backoff = poller.LinearBackoff(cfg.backoffStep)
	}

	client := poller.NewClient()
	fetcher := poller.NewFetcher(client, poller.FetcherConfig{
		BaseURL:   cfg.apiBaseURL,
		Token:     cfg.apiToken,
		UserAgent: cfg.userAgent,
		Timeout:   cfg.requestTimeout,
		Retry:     &retry,
	})

	return &Monitor{
		channels:        cfg.channels,
		channelsByID:    byID,
		pollingInterval: cfg.pollingInterval,
		pollOnStart:     cfg.pollOnStart,
		port:            cfg.port,
		httpDisabled:    cfg.httpDisabled,
		logger:          logger,
		notifiers:       cfg.notifiers,
		callbacks:       cfg.announcementCallbacks,
		client:          client,
		tracker:         tr,
		runner:          poller.NewRunner(fetcher, tr, cfg.maxConcurrency, logger, collector),
		store:           store.NewMemoryStore(),
		registry:        registry,
		metrics:         collector,
	}, nil
}

// Start polls the roster on the configured interval and serves the status
// API until ctx is cancelled.
//
// Start blocks. It returns nil on graceful shutdown and an error if the HTTP
// server cannot start or Start was already called.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("monitor already started")
	}
	m.started = true
	m.mu.Unlock()

	if ctx.Err() != nil {
		return nil
	}

	m.logger.Info("livepulse starting",
		"channel_count", len(m.channels),
		"interval", m.pollingInterval.String(),
		"notifier_count", len(m.notifiers),
	)

	scheduler := poller.NewScheduler(m.runner, m.pollerChannels(), poller.SchedulerConfig{
		Interval:    m.pollingInterval,
		PollOnStart: m.pollOnStart,
	}, m.logger, m.metrics)
	scheduler.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range scheduler.Results() {
			m.handleCycle(ctx, result)
		}
	}()

	cleanup := func() {
		scheduler.Stop() // closes results channel
		wg.Wait()
		m.client.Close()
	}

	if !m.httpDisabled {
		srv := server.NewServer(m.store, m.port, m.logger,
			server.WithSnapshot(m.serveSnapshot),
			server.WithMetricsHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})),
		)
		if err := srv.Start(ctx); err != nil {
			cleanup()
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		m.mu.Lock()
		m.addr = srv.Addr()
		m.mu.Unlock()
	}

	<-ctx.Done()
	cleanup()
	m.logger.Info("livepulse stopped")
	return nil
}

// handleCycle records a completed cycle and dispatches its announcements.
func (m *Monitor) handleCycle(ctx context.Context, result poller.CycleResult) {
	for _, o := range result.Outcomes {
		m.store.Update(m.toRecord(o, result.StartedAt))
	}

	for _, a := range result.Announcements {
		announcement := m.toAnnouncement(a)
		m.metrics.IncrementAnnouncement(a.Channel.ID)
		m.logger.Info("channel went live",
			"channel", a.Channel.Name,
			"channel_id", a.Channel.ID,
		)

		for _, n := range m.notifiers {
			m.deliver(ctx, "announce", a.Channel.ID, func(ctx context.Context) error {
				return n.Announce(ctx, announcement)
			})
		}
		for _, cb := range m.callbacks {
			invokeCallbackSafe(cb, announcement, m.logger)
		}
	}

	m.logger.Debug("poll cycle completed",
		"duration_ms", result.Duration.Milliseconds(),
		"channels", len(result.Outcomes),
		"failures", result.Failures(),
		"announcements", len(result.Announcements),
	)
}

// deliver runs one notifier call with a timeout and panic recovery.
// Failures are logged and counted; delivery is never retried.
func (m *Monitor) deliver(ctx context.Context, stage, channelID string, send func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			m.logger.Error("notifier panicked",
				"correlation_id", correlationID,
				"stage", stage,
				"channel_id", channelID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("notifier panicked (correlation_id: %s)", correlationID)
		}
		if err != nil {
			m.metrics.IncrementNotifyError(stage)
		}
	}()

	if err = send(ctx); err != nil {
		m.logger.Warn("notification failed",
			"stage", stage,
			"channel_id", channelID,
			"error", err.Error(),
		)
	}
	return err
}

// Snapshot fetches every channel now and returns their statuses in roster
// order. Channels whose fetch failed are reported as unavailable.
//
// Snapshot does not affect transition tracking.
func (m *Monitor) Snapshot(ctx context.Context) []ChannelStatus {
	outcomes := m.runner.FetchAll(ctx, m.pollerChannels())

	statuses := make([]ChannelStatus, len(outcomes))
	for i, o := range outcomes {
		statuses[i] = m.toStatus(o)
	}
	return statuses
}

// SendSnapshot takes a [Monitor.Snapshot] and delivers it to every notifier.
//
// The statuses are returned even when delivery fails. The error joins the
// failures of all notifiers.
func (m *Monitor) SendSnapshot(ctx context.Context) ([]ChannelStatus, error) {
	statuses := m.Snapshot(ctx)

	var errs []error
	for _, n := range m.notifiers {
		if err := m.deliver(ctx, "snapshot", "", func(ctx context.Context) error {
			return n.Snapshot(ctx, statuses)
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return statuses, errors.Join(errs...)
}

// serveSnapshot backs GET /api/snapshot.
func (m *Monitor) serveSnapshot(ctx context.Context, notify bool) server.SnapshotResponse {
	var (
		statuses []ChannelStatus
		err      error
	)
	if notify {
		statuses, err = m.SendSnapshot(ctx)
	} else {
		statuses = m.Snapshot(ctx)
	}

	resp := server.SnapshotResponse{
		Channels: make([]store.ChannelRecord, len(statuses)),
		Notified: notify && err == nil,
	}
	for i, s := range statuses {
		resp.Channels[i] = statusToRecord(s)
	}
	if err != nil {
		msg := err.Error()
		resp.NotifyError = &msg
	}
	return resp
}

// State returns the tracked state of a channel: [StateUnknown],
// [StateOffline] or [StateLive].
func (m *Monitor) State(channelID string) State {
	switch m.tracker.State(channelID) {
	case tracker.StateLive:
		return StateLive
	case tracker.StateOffline:
		return StateOffline
	default:
		return StateUnknown
	}
}

// Channels returns a copy of the roster.
func (m *Monitor) Channels() []Channel {
	cp := make([]Channel, len(m.channels))
	copy(cp, m.channels)
	return cp
}

// Port returns the configured HTTP port.
func (m *Monitor) Port() int {
	return m.port
}

// Addr returns the bound address of the status API, or nil if it is not
// running.
func (m *Monitor) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// PollingInterval returns the interval between poll cycles.
func (m *Monitor) PollingInterval() time.Duration {
	return m.pollingInterval
}

func (m *Monitor) pollerChannels() []poller.ChannelInfo {
	result := make([]poller.ChannelInfo, len(m.channels))
	for i, ch := range m.channels {
		result[i] = poller.ChannelInfo{Name: ch.name, ID: ch.id}
	}
	return result
}

func (m *Monitor) toAnnouncement(a poller.Announcement) Announcement {
	return Announcement{
		Channel:     m.channelsByID[a.Channel.ID],
		Observation: toObservation(a.Observation),
	}
}

func (m *Monitor) toStatus(o poller.Outcome) ChannelStatus {
	s := ChannelStatus{
		Channel:  m.channelsByID[o.Channel.ID],
		Attempts: o.Attempts,
	}
	if o.Err != nil {
		s.Err = o.Err
		return s
	}
	s.Observation = toObservation(o.Observation)
	return s
}

func (m *Monitor) toRecord(o poller.Outcome, cycleStart time.Time) store.ChannelRecord {
	r := statusToRecord(m.toStatus(o))
	r.LatencyMs = o.Latency.Milliseconds()
	if o.Err != nil {
		r.CheckedAt = cycleStart.Add(o.Latency)
	}
	return r
}

// statusToRecord converts a snapshot entry to its API representation.
func statusToRecord(s ChannelStatus) store.ChannelRecord {
	r := store.ChannelRecord{
		ChannelID: s.Channel.id,
		Name:      s.Channel.name,
		Link:      s.Channel.link,
		Labels:    copyMap(s.Channel.labels),
		State:     s.State().String(),
		Attempts:  s.Attempts,
	}
	if s.Err != nil {
		msg := s.Err.Error()
		r.Error = &msg
		r.CheckedAt = time.Now()
		return r
	}
	r.Title = s.Observation.Title
	r.ViewerCount = s.Observation.ViewerCount
	r.Category = s.Observation.Category
	r.CheckedAt = s.Observation.ObservedAt
	return r
}

func toObservation(o poller.Observation) Observation {
	return Observation{
		Live:        o.Live,
		Title:       o.Title,
		ViewerCount: o.ViewerCount,
		Category:    o.Category,
		ObservedAt:  o.ObservedAt,
	}
}

// invokeCallbackSafe calls an announcement callback with panic recovery.
func invokeCallbackSafe(cb func(Announcement), a Announcement, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("announcement callback panicked",
				"panic", r,
				"channel_id", a.Channel.id,
			)
		}
	}()
	cb(a)
}
