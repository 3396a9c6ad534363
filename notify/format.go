package notify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/livepulse"
)

const (
	noTitle    = "(no title)"
	noCategory = "N/A"
)

// statusText returns the headline marker for a state.
func statusText(s livepulse.State) string {
	switch s {
	case livepulse.StateLive:
		return "LIVE 🔴"
	case livepulse.StateOffline:
		return "offline ⚪️"
	default:
		return "unavailable ⚠️"
	}
}

// StatusLine renders one channel's status as a multi-line message block.
//
// Missing fields fall back to "(no title)", 0 viewers and "N/A". A channel
// whose fetch failed is rendered as unavailable with its attempt count.
func StatusLine(s livepulse.ChannelStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", statusText(s.State()), s.Channel.Name())

	if !s.Available() {
		fmt.Fprintf(&b, "Status could not be fetched (%d attempt(s))\n", s.Attempts)
		fmt.Fprintf(&b, "Link: %s", s.Channel.Link())
		return b.String()
	}

	writeDetails(&b, s.Observation)
	fmt.Fprintf(&b, "Link: %s", s.Channel.Link())
	return b.String()
}

func writeDetails(b *strings.Builder, o livepulse.Observation) {
	title := noTitle
	if o.Title != nil && *o.Title != "" {
		title = *o.Title
	}
	viewers := 0
	if o.ViewerCount != nil {
		viewers = *o.ViewerCount
	}
	category := noCategory
	if o.Category != nil && *o.Category != "" {
		category = *o.Category
	}

	fmt.Fprintf(b, "Title: %s\n", title)
	fmt.Fprintf(b, "Viewers: %d\n", viewers)
	fmt.Fprintf(b, "Category: %s\n", category)
}

// AnnouncementText renders a go-live message. A non-empty mentionRoleID
// prefixes the message with a Discord role mention.
func AnnouncementText(a livepulse.Announcement, mentionRoleID string) string {
	var b strings.Builder
	if mentionRoleID != "" {
		fmt.Fprintf(&b, "<@&%s> ", mentionRoleID)
	}
	fmt.Fprintf(&b, "🔴 %s is live!\n", a.Channel.Name())
	b.WriteString(StatusLine(livepulse.ChannelStatus{
		Channel:     a.Channel,
		Observation: a.Observation,
	}))
	return b.String()
}

// SnapshotText renders every status, separated by blank lines.
func SnapshotText(statuses []livepulse.ChannelStatus) string {
	blocks := make([]string, len(statuses))
	for i, s := range statuses {
		blocks[i] = StatusLine(s)
	}
	return strings.Join(blocks, "\n\n")
}

// Event types carried in [Event.Type].
const (
	EventLive     = "live"
	EventSnapshot = "snapshot"
)

// Event is the JSON document published by the MQTT and NATS notifiers.
type Event struct {
	Type      string           `json:"type"`
	Timestamp string           `json:"timestamp"`
	Channels  []ChannelPayload `json:"channels"`
}

// ChannelPayload is one channel inside an [Event].
type ChannelPayload struct {
	ChannelID   string  `json:"channel_id"`
	Name        string  `json:"name"`
	Link        string  `json:"link"`
	State       string  `json:"state"`
	Title       *string `json:"title,omitempty"`
	ViewerCount *int    `json:"viewer_count,omitempty"`
	Category    *string `json:"category,omitempty"`
	ObservedAt  string  `json:"observed_at,omitempty"`
	Attempts    int     `json:"attempts,omitempty"`
	Error       string  `json:"error,omitempty"`
}

func channelPayload(s livepulse.ChannelStatus) ChannelPayload {
	p := ChannelPayload{
		ChannelID: s.Channel.ID(),
		Name:      s.Channel.Name(),
		Link:      s.Channel.Link(),
		State:     s.State().String(),
		Attempts:  s.Attempts,
	}
	if s.Err != nil {
		p.Error = s.Err.Error()
		return p
	}
	p.Title = s.Observation.Title
	p.ViewerCount = s.Observation.ViewerCount
	p.Category = s.Observation.Category
	if !s.Observation.ObservedAt.IsZero() {
		p.ObservedAt = s.Observation.ObservedAt.UTC().Format(time.RFC3339)
	}
	return p
}

// FormatAnnouncement creates the JSON event for a go-live announcement.
func FormatAnnouncement(a livepulse.Announcement, now time.Time) ([]byte, error) {
	return json.Marshal(Event{
		Type:      EventLive,
		Timestamp: now.UTC().Format(time.RFC3339),
		Channels: []ChannelPayload{channelPayload(livepulse.ChannelStatus{
			Channel:     a.Channel,
			Observation: a.Observation,
		})},
	})
}

// FormatSnapshot creates the JSON event for a snapshot.
func FormatSnapshot(statuses []livepulse.ChannelStatus, now time.Time) ([]byte, error) {
	channels := make([]ChannelPayload, len(statuses))
	for i, s := range statuses {
		channels[i] = channelPayload(s)
	}
	return json.Marshal(Event{
		Type:      EventSnapshot,
		Timestamp: now.UTC().Format(time.RFC3339),
		Channels:  channels,
	})
}

// viewersAttr renders an optional viewer count for log records.
func viewersAttr(n *int) string {
	if n == nil {
		return "unknown"
	}
	return strconv.Itoa(*n)
}
