package livepulse

import (
	"context"
	"time"
)

// State is the status of a channel as reported by a [Monitor].
type State string

const (
	// StateUnknown means no successful observation has been made yet.
	StateUnknown State = "unknown"

	// StateOffline means the last successful observation was not live.
	StateOffline State = "offline"

	// StateLive means the last successful observation was live.
	StateLive State = "live"

	// StateUnavailable means the status could not be fetched.
	// It only appears in snapshots; the tracked state of a channel never
	// becomes unavailable.
	StateUnavailable State = "unavailable"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Observation is the normalised status of one channel at one point in time.
//
// Nil optional fields mean the upstream API omitted them.
type Observation struct {
	// Live reports whether the channel is on air.
	Live bool

	// Title is the broadcast title.
	Title *string

	// ViewerCount is the number of concurrent viewers.
	ViewerCount *int

	// Category is the broadcast category.
	Category *string

	// ObservedAt is when the observation was made.
	ObservedAt time.Time
}

// Announcement reports that a channel went live.
//
// Exactly one Announcement is produced per offline-to-live transition.
type Announcement struct {
	Channel     Channel
	Observation Observation
}

// ChannelStatus is one channel's entry in a snapshot.
type ChannelStatus struct {
	// Channel is the snapshotted channel.
	Channel Channel

	// Observation is valid only when Err is nil.
	Observation Observation

	// Err is the fetch failure, nil when the status is available.
	Err error

	// Attempts is the number of HTTP attempts made.
	Attempts int
}

// Available reports whether the channel's status was fetched.
func (s ChannelStatus) Available() bool {
	return s.Err == nil
}

// State returns [StateLive], [StateOffline] or [StateUnavailable].
func (s ChannelStatus) State() State {
	switch {
	case s.Err != nil:
		return StateUnavailable
	case s.Observation.Live:
		return StateLive
	default:
		return StateOffline
	}
}

// Notifier delivers announcements and snapshots to a messaging destination.
//
// Implementations must be safe for concurrent use. Delivery is best-effort:
// a returned error is logged and counted, never retried.
type Notifier interface {
	// Announce reports a channel that just went live.
	Announce(ctx context.Context, a Announcement) error

	// Snapshot reports the current status of every channel, in roster order.
	Snapshot(ctx context.Context, statuses []ChannelStatus) error
}
