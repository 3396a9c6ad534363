package livepulse

import (
	"errors"
	"net/url"
	"strings"
)

// DefaultLinkBase is the watch page prefix used when a channel has no
// explicit link.
const DefaultLinkBase = "https://chzzk.naver.com/live/"

// Channel is a live-streaming channel to watch.
//
// Channel is immutable after creation via [NewChannel]. Getters return
// copies of mutable data.
type Channel struct {
	name   string
	id     string
	link   string
	labels map[string]string
}

// Name returns the channel's display name.
func (c Channel) Name() string {
	return c.name
}

// ID returns the opaque upstream channel identifier.
func (c Channel) ID() string {
	return c.id
}

// Link returns the public watch URL of the channel.
func (c Channel) Link() string {
	return c.link
}

// Labels returns a copy of the channel's labels, or nil if none are set.
func (c Channel) Labels() map[string]string {
	return copyMap(c.labels)
}

// channelConfig holds mutable state during channel construction.
type channelConfig struct {
	link   string
	labels map[string]string
}

// ChannelOption configures a [Channel] during construction.
type ChannelOption func(*channelConfig) error

// WithLink overrides the watch URL shown in notifications.
//
// Returns an error if the URL has no http or https scheme.
func WithLink(rawURL string) ChannelOption {
	return func(cfg *channelConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return errors.New("invalid link: " + err.Error())
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("link must have a scheme (http:// or https://)")
		}
		cfg.link = rawURL
		return nil
	}
}

// WithLabels adds metadata labels to the channel.
//
// Accepts variadic key-value pairs:
//
//	ch, err := livepulse.NewChannel("X", id,
//	    livepulse.WithLabels("team", "red", "lang", "ko"),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithLabels(keyValues ...string) ChannelOption {
	return func(cfg *channelConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithLabels requires an even number of arguments (key-value pairs)")
		}
		if cfg.labels == nil {
			cfg.labels = make(map[string]string, len(keyValues)/2)
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.labels[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// NewChannel creates a [Channel] with the given display name and upstream id.
//
// The link defaults to [DefaultLinkBase] followed by the id.
//
// Returns an error if the name or id is empty, or the id contains whitespace
// or a slash.
//
// Example:
//
//	ch, err := livepulse.NewChannel("Streamer X", "0123456789abcdef",
//	    livepulse.WithLabels("team", "red"),
//	)
func NewChannel(name, id string, opts ...ChannelOption) (Channel, error) {
	if strings.TrimSpace(name) == "" {
		return Channel{}, errors.New("channel name cannot be empty")
	}
	if id == "" {
		return Channel{}, errors.New("channel id cannot be empty")
	}
	if strings.ContainsAny(id, " \t\r\n/") {
		return Channel{}, errors.New("channel id cannot contain whitespace or '/'")
	}

	cfg := &channelConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Channel{}, err
		}
	}

	link := cfg.link
	if link == "" {
		link = DefaultLinkBase + url.PathEscape(id)
	}

	return Channel{
		name:   name,
		id:     id,
		link:   link,
		labels: cfg.labels,
	}, nil
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
