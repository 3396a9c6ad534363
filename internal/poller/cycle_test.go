package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/livepulse/internal/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedFetcher returns outcomes from fn, keyed by channel and 1-based call
// number for that channel.
type scriptedFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(ctx context.Context, ch ChannelInfo, call int) Outcome
}

func newScriptedFetcher(fn func(ctx context.Context, ch ChannelInfo, call int) Outcome) *scriptedFetcher {
	return &scriptedFetcher{calls: make(map[string]int), fn: fn}
}

func (f *scriptedFetcher) Fetch(ctx context.Context, ch ChannelInfo) Outcome {
	f.mu.Lock()
	f.calls[ch.ID]++
	call := f.calls[ch.ID]
	f.mu.Unlock()
	return f.fn(ctx, ch, call)
}

func (f *scriptedFetcher) Calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func success(ch ChannelInfo, live bool) Outcome {
	return Outcome{
		Channel:     ch,
		Observation: Observation{ChannelID: ch.ID, Live: live, ObservedAt: time.Now()},
		Attempts:    1,
	}
}

func failure(ch ChannelInfo, kind ErrorKind) Outcome {
	attempts := 1
	if kind == KindTransient {
		attempts = 3
	}
	return Outcome{
		Channel:  ch,
		Err:      &FetchError{Kind: kind, Attempts: attempts, Err: errors.New("upstream unavailable")},
		Attempts: attempts,
	}
}

func announcedIDs(anns []Announcement) []string {
	ids := make([]string, 0, len(anns))
	for _, a := range anns {
		ids = append(ids, a.Channel.ID)
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var (
	chanX = ChannelInfo{Name: "X", ID: "x"}
	chanY = ChannelInfo{Name: "Y", ID: "y"}
)

func TestRunner_EndToEndScenario(t *testing.T) {
	script := map[int]map[string]func(ChannelInfo) Outcome{
		1: {
			"x": func(ch ChannelInfo) Outcome { return success(ch, true) },
			"y": func(ch ChannelInfo) Outcome { return success(ch, false) },
		},
		2: {
			"x": func(ch ChannelInfo) Outcome { return success(ch, true) },
			"y": func(ch ChannelInfo) Outcome { return success(ch, true) },
		},
		3: {
			"x": func(ch ChannelInfo) Outcome { return failure(ch, KindTransient) },
			"y": func(ch ChannelInfo) Outcome { return success(ch, false) },
		},
	}
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, call int) Outcome {
		return script[call][ch.ID](ch)
	})
	tr := tracker.New()
	runner := NewRunner(fetcher, tr, 0, testLogger(), nil)
	roster := []ChannelInfo{chanX, chanY}

	want := [][]string{{"x"}, {"y"}, {}}
	for cycle, wantIDs := range want {
		result := runner.RunCycle(context.Background(), roster)
		if got := announcedIDs(result.Announcements); !equalIDs(got, wantIDs) {
			t.Errorf("cycle %d announcements = %v, want %v", cycle+1, got, wantIDs)
		}
		if len(result.Outcomes) != 2 {
			t.Fatalf("cycle %d outcomes = %d, want 2", cycle+1, len(result.Outcomes))
		}
	}

	if got := tr.State("x"); got != tracker.StateLive {
		t.Errorf("State(x) = %v, want live (failure must not change state)", got)
	}
	if got := tr.State("y"); got != tracker.StateOffline {
		t.Errorf("State(y) = %v, want offline", got)
	}
	if got := tr.Failures("x"); got != 1 {
		t.Errorf("Failures(x) = %d, want 1", got)
	}
}

func TestRunner_OutcomesInRosterOrder(t *testing.T) {
	roster := make([]ChannelInfo, 0, 10)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		roster = append(roster, ChannelInfo{Name: id, ID: id})
	}
	// earlier channels finish later
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		time.Sleep(time.Duration('k'-ch.ID[0]) * time.Millisecond)
		return success(ch, true)
	})
	runner := NewRunner(fetcher, tracker.New(), 0, testLogger(), nil)

	result := runner.RunCycle(context.Background(), roster)

	for i, o := range result.Outcomes {
		if o.Channel.ID != roster[i].ID {
			t.Errorf("Outcomes[%d] = %q, want %q", i, o.Channel.ID, roster[i].ID)
		}
	}
	for i, a := range result.Announcements {
		if a.Channel.ID != roster[i].ID {
			t.Errorf("Announcements[%d] = %q, want %q", i, a.Channel.ID, roster[i].ID)
		}
	}
	if len(result.Announcements) != len(roster) {
		t.Errorf("announcements = %d, want %d", len(result.Announcements), len(roster))
	}
}

func TestRunner_StuckChannelDoesNotBlockOthers(t *testing.T) {
	fetcher := newScriptedFetcher(func(ctx context.Context, ch ChannelInfo, _ int) Outcome {
		if ch.ID == "x" {
			<-ctx.Done()
			return Outcome{
				Channel:  ch,
				Err:      &FetchError{Kind: KindTransient, Attempts: 1, Err: ctx.Err()},
				Attempts: 1,
			}
		}
		return success(ch, true)
	})
	tr := tracker.New()
	runner := NewRunner(fetcher, tr, 0, testLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	result := runner.RunCycle(ctx, []ChannelInfo{chanX, chanY})

	if result.Outcomes[0].OK() {
		t.Error("stuck channel should fail")
	}
	if !result.Outcomes[1].OK() {
		t.Errorf("healthy channel failed: %v", result.Outcomes[1].Err)
	}
	if got := announcedIDs(result.Announcements); !equalIDs(got, []string{"y"}) {
		t.Errorf("announcements = %v, want [y]", got)
	}
	if tr.State("x") != tracker.StateUnknown {
		t.Errorf("State(x) = %v, want unknown", tr.State("x"))
	}
}

func TestRunner_PanickingFetchBecomesFailure(t *testing.T) {
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		if ch.ID == "x" {
			panic("decoder exploded")
		}
		return success(ch, true)
	})
	runner := NewRunner(fetcher, tracker.New(), 0, testLogger(), nil)

	result := runner.RunCycle(context.Background(), []ChannelInfo{chanX, chanY})

	x := result.Outcomes[0]
	if x.OK() {
		t.Fatal("panicking fetch should produce a failure")
	}
	if x.Channel.ID != "x" {
		t.Errorf("failure channel = %q, want x", x.Channel.ID)
	}
	if x.Err.Kind != KindPermanent {
		t.Errorf("Kind = %v, want permanent", x.Err.Kind)
	}
	if !errors.Is(x.Err, ErrFetchPanic) {
		t.Errorf("Err = %v, want ErrFetchPanic", x.Err)
	}
	if got := announcedIDs(result.Announcements); !equalIDs(got, []string{"y"}) {
		t.Errorf("announcements = %v, want [y]", got)
	}
	if result.Failures() != 1 {
		t.Errorf("Failures() = %d, want 1", result.Failures())
	}
}

func TestRunner_MaxConcurrency(t *testing.T) {
	var current, peak atomic.Int32
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return success(ch, false)
	})
	runner := NewRunner(fetcher, tracker.New(), 2, testLogger(), nil)

	roster := make([]ChannelInfo, 8)
	for i := range roster {
		id := string(rune('a' + i))
		roster[i] = ChannelInfo{Name: id, ID: id}
	}
	result := runner.RunCycle(context.Background(), roster)

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
	if len(result.Outcomes) != len(roster) {
		t.Errorf("outcomes = %d, want %d", len(result.Outcomes), len(roster))
	}
}

func TestRunner_FetchAllDoesNotTouchTracker(t *testing.T) {
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		return success(ch, true)
	})
	tr := tracker.New()
	runner := NewRunner(fetcher, tr, 0, testLogger(), nil)

	outcomes := runner.FetchAll(context.Background(), []ChannelInfo{chanX, chanY})

	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	if tr.State("x") != tracker.StateUnknown || tr.State("y") != tracker.StateUnknown {
		t.Error("FetchAll must not update tracker state")
	}
}

func TestRunner_EmptyRoster(t *testing.T) {
	fetcher := newScriptedFetcher(func(_ context.Context, ch ChannelInfo, _ int) Outcome {
		t.Error("fetch called for empty roster")
		return success(ch, false)
	})
	runner := NewRunner(fetcher, tracker.New(), 0, testLogger(), nil)

	result := runner.RunCycle(context.Background(), nil)

	if len(result.Outcomes) != 0 || len(result.Announcements) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

func TestRunner_ReduceIsDeterministic(t *testing.T) {
	outcomes := []Outcome{
		success(chanX, true),
		failure(chanY, KindPermanent),
	}

	for i := 0; i < 3; i++ {
		runner := NewRunner(nil, tracker.New(), 0, testLogger(), nil)
		if got := announcedIDs(runner.Reduce(outcomes)); !equalIDs(got, []string{"x"}) {
			t.Errorf("run %d: announcements = %v, want [x]", i, got)
		}
	}
}
