package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/livepulse/internal/metrics"
	"github.com/jpalmerr/livepulse/internal/tracker"
)

// countingMetrics counts scheduler events and discards everything else.
type countingMetrics struct {
	*metrics.NopMetrics
	skipped atomic.Int32
	panics  atomic.Int32
}

func (m *countingMetrics) IncrementSkippedTick() { m.skipped.Add(1) }
func (m *countingMetrics) IncrementCyclePanic()  { m.panics.Add(1) }

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{NopMetrics: metrics.NewNop()}
}

// manualTicker replaces the scheduler's ticker with a channel the test drives.
func manualTicker(s *Scheduler) chan time.Time {
	ticks := make(chan time.Time)
	s.newTicker = func(time.Duration) (<-chan time.Time, func()) {
		return ticks, func() {}
	}
	return ticks
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receiveResult(t *testing.T, s *Scheduler) CycleResult {
	t.Helper()
	select {
	case r, ok := <-s.Results():
		if !ok {
			t.Fatal("results channel closed")
		}
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for cycle result")
	}
	return CycleResult{}
}

func TestScheduler_TicksRunCycles(t *testing.T) {
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		return success(ch, true)
	})
	runner := NewRunner(fetcher, tracker.New(), 0, testLogger(), nil)
	s := NewScheduler(runner, []ChannelInfo{chanX, chanY}, SchedulerConfig{Interval: time.Minute}, testLogger(), nil)
	ticks := manualTicker(s)

	s.Start(context.Background())
	defer s.Stop()

	ticks <- time.Now()
	first := receiveResult(t, s)
	if got := announcedIDs(first.Announcements); !equalIDs(got, []string{"x", "y"}) {
		t.Errorf("first cycle announcements = %v, want [x y]", got)
	}

	waitFor(t, "cycle to finish", func() bool { return !s.inFlight.Load() })
	ticks <- time.Now()
	second := receiveResult(t, s)
	if len(second.Announcements) != 0 {
		t.Errorf("second cycle announcements = %v, want none", announcedIDs(second.Announcements))
	}
}

func TestScheduler_NoPollBeforeFirstTick(t *testing.T) {
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		return success(ch, false)
	})
	runner := NewRunner(fetcher, tracker.New(), 0, testLogger(), nil)
	s := NewScheduler(runner, []ChannelInfo{chanX}, SchedulerConfig{Interval: time.Minute}, testLogger(), nil)
	manualTicker(s)

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if got := fetcher.Calls("x"); got != 0 {
		t.Errorf("fetch calls = %d, want 0", got)
	}
}

func TestScheduler_PollOnStart(t *testing.T) {
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		return success(ch, true)
	})
	runner := NewRunner(fetcher, tracker.New(), 0, testLogger(), nil)
	s := NewScheduler(runner, []ChannelInfo{chanX}, SchedulerConfig{Interval: time.Minute, PollOnStart: true}, testLogger(), nil)
	manualTicker(s)

	s.Start(context.Background())
	defer s.Stop()

	result := receiveResult(t, s)
	if got := announcedIDs(result.Announcements); !equalIDs(got, []string{"x"}) {
		t.Errorf("announcements = %v, want [x]", got)
	}
}

func TestScheduler_SkipsTicksWhileCycleInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 10)
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		started <- struct{}{}
		<-release
		return success(ch, true)
	})
	collector := newCountingMetrics()
	runner := NewRunner(fetcher, tracker.New(), 0, testLogger(), nil)
	s := NewScheduler(runner, []ChannelInfo{chanX}, SchedulerConfig{Interval: time.Minute}, testLogger(), collector)
	ticks := manualTicker(s)

	s.Start(context.Background())
	defer s.Stop()

	ticks <- time.Now()
	<-started

	ticks <- time.Now()
	ticks <- time.Now()
	waitFor(t, "two skipped ticks", func() bool { return collector.skipped.Load() == 2 })

	close(release)
	result := receiveResult(t, s)
	if got := announcedIDs(result.Announcements); !equalIDs(got, []string{"x"}) {
		t.Errorf("announcements = %v, want [x]", got)
	}
	if got := fetcher.Calls("x"); got != 1 {
		t.Errorf("fetch calls = %d, want 1 (ticks must not overlap)", got)
	}

	waitFor(t, "cycle to finish", func() bool { return !s.inFlight.Load() })
	ticks <- time.Now()
	receiveResult(t, s)
	if got := fetcher.Calls("x"); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
}

// panickingTracker blows up on the first Observe.
type panickingTracker struct {
	calls atomic.Int32
	inner *tracker.Tracker
}

func (p *panickingTracker) Observe(id string, live bool) bool {
	if p.calls.Add(1) == 1 {
		panic("tracker corrupted")
	}
	return p.inner.Observe(id, live)
}

func (p *panickingTracker) MarkFailed(id string) { p.inner.MarkFailed(id) }

func TestScheduler_RecoversFromCyclePanic(t *testing.T) {
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		return success(ch, true)
	})
	collector := newCountingMetrics()
	runner := NewRunner(fetcher, &panickingTracker{inner: tracker.New()}, 0, testLogger(), nil)
	s := NewScheduler(runner, []ChannelInfo{chanX}, SchedulerConfig{Interval: time.Minute}, testLogger(), collector)
	ticks := manualTicker(s)

	s.Start(context.Background())
	defer s.Stop()

	ticks <- time.Now()
	waitFor(t, "cycle panic", func() bool { return collector.panics.Load() == 1 })
	waitFor(t, "cycle to finish", func() bool { return !s.inFlight.Load() })

	ticks <- time.Now()
	result := receiveResult(t, s)
	if got := announcedIDs(result.Announcements); !equalIDs(got, []string{"x"}) {
		t.Errorf("announcements after panic = %v, want [x]", got)
	}
}

func TestScheduler_StopCancelsInFlightCycle(t *testing.T) {
	fetcher := newScriptedFetcher(func(ctx context.Context, ch ChannelInfo, _ int) Outcome {
		<-ctx.Done()
		return failure(ch, KindPermanent)
	})
	runner := NewRunner(fetcher, tracker.New(), 0, testLogger(), nil)
	s := NewScheduler(runner, []ChannelInfo{chanX}, SchedulerConfig{Interval: time.Minute, PollOnStart: true}, testLogger(), nil)
	manualTicker(s)

	s.Start(context.Background())
	waitFor(t, "fetch to start", func() bool { return fetcher.Calls("x") == 1 })

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}

	for range s.Results() {
		// drain until closed
	}
}

func TestScheduler_ParentContextCancel(t *testing.T) {
	runner := NewRunner(newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		return success(ch, false)
	}), tracker.New(), 0, testLogger(), nil)
	s := NewScheduler(runner, []ChannelInfo{chanX}, SchedulerConfig{Interval: time.Minute}, testLogger(), nil)
	manualTicker(s)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after parent cancel")
	}
}

func TestScheduler_StopBeforeStart(t *testing.T) {
	runner := NewRunner(newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		return success(ch, false)
	}), tracker.New(), 0, testLogger(), nil)
	s := NewScheduler(runner, []ChannelInfo{chanX}, SchedulerConfig{}, testLogger(), nil)

	s.Stop()
	s.Start(context.Background())
	s.Stop()

	if _, ok := <-s.Results(); ok {
		t.Error("results channel should be closed")
	}
}

func TestScheduler_StartTwiceAndDoubleStop(t *testing.T) {
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		return success(ch, false)
	})
	runner := NewRunner(fetcher, tracker.New(), 0, testLogger(), nil)
	s := NewScheduler(runner, []ChannelInfo{chanX}, SchedulerConfig{Interval: time.Minute, PollOnStart: true}, testLogger(), nil)
	manualTicker(s)

	s.Start(context.Background())
	s.Start(context.Background())
	receiveResult(t, s)

	s.Stop()
	s.Stop()

	if got := fetcher.Calls("x"); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
}

func TestNewScheduler_DefaultInterval(t *testing.T) {
	s := NewScheduler(nil, nil, SchedulerConfig{}, nil, nil)

	if s.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultInterval)
	}
}

func TestScheduler_RealTicker(t *testing.T) {
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		return success(ch, true)
	})
	runner := NewRunner(fetcher, tracker.New(), 0, testLogger(), nil)
	s := NewScheduler(runner, []ChannelInfo{chanX}, SchedulerConfig{Interval: 20 * time.Millisecond}, testLogger(), nil)

	s.Start(context.Background())
	defer s.Stop()

	receiveResult(t, s)
	receiveResult(t, s)
	if got := fetcher.Calls("x"); got < 2 {
		t.Errorf("fetch calls = %d, want >= 2", got)
	}
}
