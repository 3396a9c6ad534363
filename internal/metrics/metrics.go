// Package metrics defines the instrumentation surface of the polling engine.
//
// The engine reports through the [Collector] interface. [NopMetrics] discards
// everything and is the default; [PrometheusCollector] exports the same
// signals to a Prometheus registry.
package metrics

// Fetch failure kinds passed to [Collector.RecordFetch].
const (
	FetchOK        = "ok"
	FetchTransient = "transient"
	FetchPermanent = "permanent"
)

// Collector receives engine events.
//
// Implementations must be safe for concurrent use; fetch events arrive from
// many goroutines during a cycle.
type Collector interface {
	// RecordFetch records one completed fetch with the number of attempts it
	// took and its result kind (FetchOK, FetchTransient or FetchPermanent).
	RecordFetch(channelID string, attempts int, kind string)

	// RecordCycle records a completed poll cycle.
	RecordCycle(seconds float64, failures, announcements int)

	// IncrementSkippedTick counts ticks skipped because a cycle was in flight.
	IncrementSkippedTick()

	// IncrementCyclePanic counts cycles aborted by a recovered panic.
	IncrementCyclePanic()

	// SetChannelLive exports the last known live state of a channel.
	SetChannelLive(channelID string, live bool)

	// IncrementAnnouncement counts a rising edge handed to notifiers.
	IncrementAnnouncement(channelID string)

	// IncrementNotifyError counts a failed notifier call. Stage is
	// "announce" or "snapshot".
	IncrementNotifyError(stage string)
}
