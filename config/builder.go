package config

import (
	"fmt"
	"sort"

	"github.com/jpalmerr/livepulse"
)

// BuildChannels converts parsed configuration into SDK Channel objects,
// preserving roster order.
func BuildChannels(cfg *Config) ([]livepulse.Channel, error) {
	channels := make([]livepulse.Channel, 0, len(cfg.Channels))
	for i, cc := range cfg.Channels {
		ch, err := buildChannel(cc)
		if err != nil {
			return nil, fmt.Errorf("channels[%d] (%s): %w", i, cc.Name, err)
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// buildChannel converts a single ChannelConfig to an SDK Channel.
func buildChannel(cc ChannelConfig) (livepulse.Channel, error) {
	var opts []livepulse.ChannelOption

	if cc.Link != "" {
		opts = append(opts, livepulse.WithLink(cc.Link))
	}

	if len(cc.Labels) > 0 {
		opts = append(opts, livepulse.WithLabels(mapToKeyValuePairs(cc.Labels)...))
	}

	return livepulse.NewChannel(cc.Name, cc.ID, opts...)
}

// BuildOptions converts parsed configuration into Monitor options, excluding
// notifiers, which own network connections and are built by the caller.
func BuildOptions(cfg *Config) ([]livepulse.Option, error) {
	channels, err := BuildChannels(cfg)
	if err != nil {
		return nil, err
	}

	backoff := defaultBackoffStep
	if cfg.API.BackoffStep != nil {
		backoff = cfg.API.BackoffStep.Duration()
	}

	opts := []livepulse.Option{
		livepulse.WithChannels(channels...),
		livepulse.WithPollingInterval(cfg.PollInterval.Duration()),
		livepulse.WithRequestTimeout(cfg.API.Timeout.Duration()),
		livepulse.WithRetry(cfg.API.MaxAttempts, backoff),
	}

	if cfg.DisableHTTP {
		opts = append(opts, livepulse.WithoutHTTP())
	} else {
		opts = append(opts, livepulse.WithPort(cfg.Port))
	}
	if cfg.MaxConcurrency > 0 {
		opts = append(opts, livepulse.WithMaxConcurrency(cfg.MaxConcurrency))
	}
	if cfg.API.BaseURL != "" {
		opts = append(opts, livepulse.WithAPIBaseURL(cfg.API.BaseURL))
	}
	if cfg.API.Token != "" {
		opts = append(opts, livepulse.WithAPIToken(cfg.API.Token))
	}
	if cfg.API.UserAgent != "" {
		opts = append(opts, livepulse.WithUserAgent(cfg.API.UserAgent))
	}
	if cfg.BaselineOnStartup {
		opts = append(opts, livepulse.WithBaseline())
	}
	if cfg.PollOnStart {
		opts = append(opts, livepulse.WithPollOnStart())
	}

	return opts, nil
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
