package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/livepulse/internal/metrics"
)

// StatusFetcher fetches the status of one channel. [*Fetcher] implements it.
type StatusFetcher interface {
	Fetch(ctx context.Context, ch ChannelInfo) Outcome
}

// TransitionTracker reduces observations into rising edges.
// *tracker.Tracker implements it.
type TransitionTracker interface {
	Observe(channelID string, live bool) bool
	MarkFailed(channelID string)
}

// Runner performs one polling sweep over a roster.
//
// Fetches run concurrently, one task per channel (bounded by maxConcurrency
// when positive). The runner waits for every fetch before reducing; one
// channel's failure never cancels or delays the others.
type Runner struct {
	fetcher        StatusFetcher
	tracker        TransitionTracker
	maxConcurrency int
	logger         *slog.Logger
	metrics        metrics.Collector
}

// NewRunner creates a [Runner].
//
// maxConcurrency <= 0 means one concurrent fetch per channel. A nil collector
// discards metrics.
func NewRunner(fetcher StatusFetcher, tracker TransitionTracker, maxConcurrency int, logger *slog.Logger, collector metrics.Collector) *Runner {
	if collector == nil {
		collector = metrics.NewNop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		fetcher:        fetcher,
		tracker:        tracker,
		maxConcurrency: maxConcurrency,
		logger:         logger,
		metrics:        collector,
	}
}

// RunCycle fetches every channel and reduces the outcomes into announcements.
func (r *Runner) RunCycle(ctx context.Context, channels []ChannelInfo) CycleResult {
	start := time.Now()
	outcomes := r.FetchAll(ctx, channels)
	announcements := r.Reduce(outcomes)

	result := CycleResult{
		StartedAt:     start,
		Duration:      time.Since(start),
		Outcomes:      outcomes,
		Announcements: announcements,
	}
	r.metrics.RecordCycle(result.Duration.Seconds(), result.Failures(), len(announcements))
	return result
}

// FetchAll fetches every channel concurrently and returns the outcomes in
// roster order. It does not touch the tracker, so it also serves snapshots.
func (r *Runner) FetchAll(ctx context.Context, channels []ChannelInfo) []Outcome {
	outcomes := make([]Outcome, len(channels))
	if len(channels) == 0 {
		return outcomes
	}

	workers := r.maxConcurrency
	if workers <= 0 || workers > len(channels) {
		workers = len(channels)
	}

	jobs := make(chan int, len(channels))
	for i := range channels {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// each index is written by exactly one worker
				outcomes[i] = r.safeFetch(ctx, channels[i])
			}
		}()
	}
	wg.Wait()

	for _, o := range outcomes {
		kind := metrics.FetchOK
		if o.Err != nil {
			kind = o.Err.Kind.String()
		}
		r.metrics.RecordFetch(o.Channel.ID, o.Attempts, kind)
	}
	return outcomes
}

// Reduce feeds outcomes to the tracker in order and collects the rising edges.
//
// Given fixed tracker state, the result depends only on outcomes.
func (r *Runner) Reduce(outcomes []Outcome) []Announcement {
	var announcements []Announcement
	for _, o := range outcomes {
		if !o.OK() {
			r.tracker.MarkFailed(o.Channel.ID)
			r.logger.Warn("channel fetch failed",
				"channel", o.Channel.Name,
				"channel_id", o.Channel.ID,
				"attempts", o.Attempts,
				"kind", o.Err.Kind.String(),
				"error", o.Err.Err.Error(),
			)
			continue
		}

		r.metrics.SetChannelLive(o.Channel.ID, o.Observation.Live)
		if r.tracker.Observe(o.Channel.ID, o.Observation.Live) {
			announcements = append(announcements, Announcement{
				Channel:     o.Channel,
				Observation: o.Observation,
			})
		}
	}
	return announcements
}

// safeFetch calls the fetcher with panic recovery.
// A panic becomes a permanent failure carrying a correlation ID; the full
// stack trace is logged server-side.
func (r *Runner) safeFetch(ctx context.Context, ch ChannelInfo) (out Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			correlationID := uuid.NewString()
			r.logger.Error("fetch panic",
				"correlation_id", correlationID,
				"channel", ch.Name,
				"channel_id", ch.ID,
				"panic", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
			)
			out = Outcome{
				Channel: ch,
				Err: &FetchError{
					Kind: KindPermanent,
					Err:  fmt.Errorf("%w (correlation_id: %s)", ErrFetchPanic, correlationID),
				},
			}
		}
	}()
	return r.fetcher.Fetch(ctx, ch)
}
