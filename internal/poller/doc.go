// Package poller implements the status-polling engine of LivePulse.
//
// This package is internal to LivePulse. It queries the upstream status API
// for every channel on the roster, turns responses into observations, feeds
// them to the transition tracker and yields the announcements of each cycle.
//
// The main components are:
//
//   - [Client]: pooled HTTP client with per-request timeouts and size limits
//   - [RetryPolicy]: bounded retry with a transient-error classifier and backoff
//   - [Fetcher]: one bounded-retry status query per channel, producing an [Outcome]
//   - [Runner]: one polling sweep (concurrent fan-out, ordered reduction)
//   - [Scheduler]: drives the runner on a fixed interval without overlapping cycles
//
// Users of the livepulse library should not need to interact with this
// package directly. Configuration is done through the main livepulse package.
package poller
