package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/livepulse/internal/metrics"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 60 * time.Second

// tickerFunc creates a tick source and its stop function.
type tickerFunc func(d time.Duration) (<-chan time.Time, func())

func newTimeTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// SchedulerConfig configures a [Scheduler].
type SchedulerConfig struct {
	// Interval is the fixed wall-clock period between ticks.
	Interval time.Duration

	// PollOnStart runs one cycle immediately instead of waiting for the
	// first tick.
	PollOnStart bool
}

// Scheduler drives a [Runner] on a fixed interval.
//
// Ticks fire on a fixed cadence regardless of how long cycles take. A tick
// that fires while the previous cycle is still in flight is skipped, so
// cycles never overlap and tracker updates for a channel stay ordered.
// Completed cycles are emitted on [Scheduler.Results].
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	runner      *Runner
	channels    []ChannelInfo
	interval    time.Duration
	pollOnStart bool
	logger      *slog.Logger
	metrics     metrics.Collector
	newTicker   tickerFunc

	results chan CycleResult
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	inFlight atomic.Bool

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once
}

// NewScheduler creates a new [Scheduler] for the given roster.
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. A non-positive interval falls back to [DefaultInterval].
func NewScheduler(runner *Runner, channels []ChannelInfo, cfg SchedulerConfig, logger *slog.Logger, collector metrics.Collector) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if collector == nil {
		collector = metrics.NewNop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:      runner,
		channels:    channels,
		interval:    cfg.Interval,
		pollOnStart: cfg.PollOnStart,
		logger:      logger,
		metrics:     collector,
		newTicker:   newTimeTicker,
		results:     make(chan CycleResult, 1),
	}
}

// Results returns a receive-only channel that emits one [CycleResult] per
// completed cycle.
//
// The channel is closed by [Scheduler.Stop]. Consumers should read from it
// until it is closed; a consumer that stops reading stalls the scheduler,
// which then skips ticks.
func (s *Scheduler) Results() <-chan CycleResult {
	return s.results
}

// Start begins the tick loop in a background goroutine.
//
// Start is non-blocking and idempotent. If Stop was called before Start,
// Start is a no-op. If ctx is nil, context.Background() is used.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	loopCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		ticks, stop := s.newTicker(s.interval)
		defer stop()

		if s.pollOnStart {
			s.trigger(loopCtx)
		}

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticks:
				s.trigger(loopCtx)
			}
		}
	}()
}

// Stop halts the scheduler and waits for the loop and any in-flight cycle.
//
// Stop cancels the scheduler's context, so an in-flight cycle's remaining
// fetches fail fast. It then closes the results channel. Stop is idempotent
// and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.closeOnce.Do(func() { close(s.results) })
}

// trigger starts a cycle unless one is already running.
// It reports whether a cycle was started.
func (s *Scheduler) trigger(ctx context.Context) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.metrics.IncrementSkippedTick()
		s.logger.Warn("poll cycle still running, skipping tick",
			"interval", s.interval.String(),
		)
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)

		result, ok := s.runCycleSafe(ctx)
		if !ok {
			return
		}
		select {
		case s.results <- result:
		case <-ctx.Done():
		}
	}()
	return true
}

// runCycleSafe runs one cycle with panic recovery.
// A panicking cycle is logged with a correlation ID and dropped; the next
// tick proceeds normally.
func (s *Scheduler) runCycleSafe(ctx context.Context) (result CycleResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.metrics.IncrementCyclePanic()
			s.logger.Error("poll cycle panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			ok = false
		}
	}()
	return s.runner.RunCycle(ctx, s.channels), true
}
