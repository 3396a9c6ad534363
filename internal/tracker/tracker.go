// Package tracker holds per-channel live state and detects rising edges.
//
// A [Tracker] owns one [State] per channel identifier. State only moves when a
// successful observation is fed to [Tracker.Observe]; failed fetches are
// reported through [Tracker.MarkFailed], which never touches state. Channels
// are independent keys, so observations for different channels may be applied
// concurrently.
package tracker

import (
	"github.com/puzpuzpuz/xsync/v4"
)

// State is the last known live state of a channel.
type State int

const (
	// StateUnknown is the state before any successful observation.
	StateUnknown State = iota

	// StateOffline means the last successful observation was not live.
	StateOffline

	// StateLive means the last successful observation was live.
	StateLive
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// FailureHook is called after a failed fetch with the channel's number of
// consecutive failures, including this one.
type FailureHook func(channelID string, consecutive int)

// Option configures a [Tracker].
type Option func(*Tracker)

// WithBaseline makes the first successful observation of each channel a
// silent baseline: it records the state but never reports a rising edge.
func WithBaseline() Option {
	return func(t *Tracker) {
		t.baseline = true
	}
}

// WithFailureHook registers a hook invoked by [Tracker.MarkFailed].
// Nil hooks are ignored.
func WithFailureHook(hook FailureHook) Option {
	return func(t *Tracker) {
		if hook != nil {
			t.onFailure = hook
		}
	}
}

// Tracker computes offline-to-live transitions per channel.
//
// Tracker is safe for concurrent use. Each key is updated atomically; no lock
// is shared between channels.
type Tracker struct {
	states    *xsync.Map[string, State]
	failures  *xsync.Map[string, int]
	baseline  bool
	onFailure FailureHook
}

// New creates an empty [Tracker]. Every channel starts in [StateUnknown].
func New(opts ...Option) *Tracker {
	t := &Tracker{
		states:   xsync.NewMap[string, State](),
		failures: xsync.NewMap[string, int](),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe records a successful observation and reports whether it is a
// rising edge worth announcing.
//
// A rising edge is live == true while the previous state was anything but
// [StateLive]. Continued-live, continued-offline and live-to-offline
// observations return false. With [WithBaseline], an observation of a channel
// still in [StateUnknown] also returns false.
func (t *Tracker) Observe(channelID string, live bool) bool {
	next := StateOffline
	if live {
		next = StateLive
	}

	var edge bool
	t.states.Compute(channelID, func(prev State, loaded bool) (State, xsync.ComputeOp) {
		if !loaded {
			prev = StateUnknown
		}
		edge = live && prev != StateLive
		if prev == StateUnknown && t.baseline {
			edge = false
		}
		return next, xsync.UpdateOp
	})

	t.failures.Delete(channelID)
	return edge
}

// MarkFailed records a failed fetch for the channel. State is left untouched
// so a transient error can neither fabricate nor suppress a transition.
func (t *Tracker) MarkFailed(channelID string) {
	consecutive, _ := t.failures.Compute(channelID, func(n int, _ bool) (int, xsync.ComputeOp) {
		return n + 1, xsync.UpdateOp
	})
	if t.onFailure != nil {
		t.onFailure(channelID, consecutive)
	}
}

// State returns the current state of the channel.
func (t *Tracker) State(channelID string) State {
	s, ok := t.states.Load(channelID)
	if !ok {
		return StateUnknown
	}
	return s
}

// Failures returns the number of consecutive failed fetches for the channel
// since its last successful observation.
func (t *Tracker) Failures(channelID string) int {
	n, _ := t.failures.Load(channelID)
	return n
}

// States returns a copy of every known channel state.
// Channels that were never observed successfully are absent.
func (t *Tracker) States() map[string]State {
	out := make(map[string]State, t.states.Size())
	t.states.Range(func(id string, s State) bool {
		out[id] = s
		return true
	})
	return out
}
