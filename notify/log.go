package notify

import (
	"context"
	"log/slog"

	"github.com/jpalmerr/livepulse"
)

// LogNotifier writes announcements and snapshots as structured log records.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a [LogNotifier]. A nil logger uses [slog.Default].
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Announce logs the go-live event at info level.
func (n *LogNotifier) Announce(ctx context.Context, a livepulse.Announcement) error {
	title := noTitle
	if a.Observation.Title != nil {
		title = *a.Observation.Title
	}
	n.logger.InfoContext(ctx, "channel is live",
		"channel", a.Channel.Name(),
		"channel_id", a.Channel.ID(),
		"title", title,
		"viewers", viewersAttr(a.Observation.ViewerCount),
		"link", a.Channel.Link(),
	)
	return nil
}

// Snapshot logs one record per channel.
func (n *LogNotifier) Snapshot(ctx context.Context, statuses []livepulse.ChannelStatus) error {
	for _, s := range statuses {
		attrs := []any{
			"channel", s.Channel.Name(),
			"channel_id", s.Channel.ID(),
			"state", s.State().String(),
		}
		if s.Err != nil {
			attrs = append(attrs, "attempts", s.Attempts, "error", s.Err.Error())
		} else {
			attrs = append(attrs, "viewers", viewersAttr(s.Observation.ViewerCount))
		}
		n.logger.InfoContext(ctx, "channel status", attrs...)
	}
	return nil
}
