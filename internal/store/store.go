package store

import "time"

// Channel states as rendered by the status API.
const (
	StateLive        = "live"
	StateOffline     = "offline"
	StateUnavailable = "unavailable"
)

// ChannelRecord is the latest known status of one channel.
//
// It is decoupled from the poller's types and shaped for the REST API and
// SSE stream.
type ChannelRecord struct {
	// ChannelID is the upstream channel identifier and the store key.
	ChannelID string `json:"channel_id"`

	// Name is the channel's display name.
	Name string `json:"name"`

	// Link is the public watch URL of the channel.
	Link string `json:"link"`

	// Labels contains key-value metadata for grouping and filtering.
	Labels map[string]string `json:"labels,omitempty"`

	// State is "live", "offline" or "unavailable" (last fetch failed).
	State string `json:"state"`

	// Title, ViewerCount and Category are nil when the upstream omitted them.
	Title       *string `json:"title"`
	ViewerCount *int    `json:"viewer_count"`
	Category    *string `json:"category"`

	// Attempts is the number of HTTP attempts of the last fetch.
	Attempts int `json:"attempts"`

	// LatencyMs is the duration of the last fetch including retries.
	LatencyMs int64 `json:"latency_ms"`

	// CheckedAt is when the last fetch completed.
	CheckedAt time.Time `json:"checked_at"`

	// LiveSince is when the current live session was first seen.
	// nil unless State is "live".
	LiveSince *time.Time `json:"live_since,omitempty"`

	// Error contains the failure message when State is "unavailable".
	Error *string `json:"error"`
}

// Store defines storage and subscription for channel records.
//
// Implementations must be safe for concurrent access.
type Store interface {
	// Update stores a record and notifies all subscribers.
	// Records are keyed by ChannelID.
	Update(record ChannelRecord)

	// Get returns the record for a channel.
	Get(channelID string) (ChannelRecord, bool)

	// GetAll returns all records in the order channels were first stored.
	GetAll() []ChannelRecord

	// Subscribe returns a channel that receives record updates.
	// Caller must call Unsubscribe when done.
	Subscribe() <-chan ChannelRecord

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan ChannelRecord)
}
