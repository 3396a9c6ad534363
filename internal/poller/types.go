package poller

import "time"

// ChannelInfo identifies a channel to poll.
//
// This is the poller-internal representation of a channel, decoupled from
// the main livepulse.Channel type to avoid circular dependencies.
type ChannelInfo struct {
	// Name is the display name of the channel.
	Name string

	// ID is the opaque upstream channel identifier.
	ID string
}

// Observation is the normalised status of one channel at one point in time.
//
// Nil optional fields mean the upstream API omitted them (or sent a value of
// the wrong type), not that the channel is inactive.
type Observation struct {
	ChannelID   string
	Live        bool
	Title       *string
	ViewerCount *int
	Category    *string
	ObservedAt  time.Time
}

// Outcome is the result of fetching one channel in one cycle: either an
// Observation (Err == nil) or a failure.
type Outcome struct {
	// Channel is the polled channel.
	Channel ChannelInfo

	// Observation is valid only when Err is nil.
	Observation Observation

	// Err describes the failure, nil on success.
	Err *FetchError

	// Attempts is the number of HTTP attempts made.
	Attempts int

	// Latency is the time spent in the fetch, retries and backoff included.
	Latency time.Duration
}

// OK reports whether the fetch produced an observation.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Announcement is a confirmed offline-to-live transition.
type Announcement struct {
	Channel     ChannelInfo
	Observation Observation
}

// CycleResult holds everything produced by one poll cycle.
type CycleResult struct {
	// StartedAt is when the cycle began.
	StartedAt time.Time

	// Duration is the wall-clock length of the cycle.
	Duration time.Duration

	// Outcomes holds one entry per channel, in roster order.
	Outcomes []Outcome

	// Announcements holds the rising edges of the cycle, in roster order.
	Announcements []Announcement
}

// Failures returns the number of failed outcomes in the cycle.
func (r CycleResult) Failures() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}
