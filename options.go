package livepulse

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// monitorConfig holds mutable state during Monitor construction.
type monitorConfig struct {
	channels              []Channel
	pollingInterval       time.Duration
	port                  int
	httpDisabled          bool
	maxConcurrency        int
	logger                *slog.Logger
	notifiers             []Notifier
	announcementCallbacks []func(Announcement)

	apiBaseURL     string
	apiToken       string
	userAgent      string
	requestTimeout time.Duration
	maxAttempts    int
	backoffStep    time.Duration

	baseline    bool
	pollOnStart bool
	registry    *prometheus.Registry
}

// Option configures a [Monitor] during construction.
//
// Options return an error if validation fails, which [New] passes through.
type Option func(*monitorConfig) error

// WithChannel adds a single [Channel] to the roster.
//
// Channels are polled and reported in the order they were added.
func WithChannel(c Channel) Option {
	return func(cfg *monitorConfig) error {
		cfg.channels = append(cfg.channels, c)
		return nil
	}
}

// WithChannels adds multiple channels to the roster.
func WithChannels(channels ...Channel) Option {
	return func(cfg *monitorConfig) error {
		cfg.channels = append(cfg.channels, channels...)
		return nil
	}
}

// WithPollingInterval sets the fixed period between poll cycles.
// Defaults to 60 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithPort sets the HTTP port of the status API. Defaults to 8080.
// Port 0 lets the OS choose; see [Monitor.Addr].
//
// Returns an error if the port is outside 0-65535.
func WithPort(port int) Option {
	return func(cfg *monitorConfig) error {
		if port < 0 || port > 65535 {
			return errors.New("port must be between 0 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithoutHTTP disables the status API server.
func WithoutHTTP() Option {
	return func(cfg *monitorConfig) error {
		cfg.httpDisabled = true
		return nil
	}
}

// WithMaxConcurrency bounds the number of concurrent fetches per cycle.
// By default every channel is fetched concurrently.
//
// Returns an error if the value is zero or negative.
func WithMaxConcurrency(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. Defaults to [slog.Default].
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithNotifier adds a destination for announcements and snapshots.
//
// Multiple notifiers receive every message in registration order.
//
// Returns an error if the notifier is nil.
func WithNotifier(n Notifier) Option {
	return func(cfg *monitorConfig) error {
		if n == nil {
			return errors.New("notifier cannot be nil")
		}
		cfg.notifiers = append(cfg.notifiers, n)
		return nil
	}
}

// WithAnnouncementCallback registers a function called for every
// announcement, after the notifiers.
//
// Callbacks run synchronously on the poll result goroutine and must not
// block. Panics are recovered and logged. Nil callbacks are ignored.
func WithAnnouncementCallback(cb func(Announcement)) Option {
	return func(cfg *monitorConfig) error {
		if cb == nil {
			return nil
		}
		cfg.announcementCallbacks = append(cfg.announcementCallbacks, cb)
		return nil
	}
}

// WithAPIBaseURL overrides the upstream status API root.
// Requests go to baseURL + "/channels/" + id.
//
// Returns an error if the URL has no http or https scheme.
func WithAPIBaseURL(baseURL string) Option {
	return func(cfg *monitorConfig) error {
		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("invalid API base URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("API base URL must have a scheme (http:// or https://)")
		}
		cfg.apiBaseURL = baseURL
		return nil
	}
}

// WithAPIToken sends token as a bearer credential on every upstream request.
func WithAPIToken(token string) Option {
	return func(cfg *monitorConfig) error {
		cfg.apiToken = token
		return nil
	}
}

// WithUserAgent overrides the User-Agent of upstream requests.
// Defaults to "livepulse/dev".
func WithUserAgent(ua string) Option {
	return func(cfg *monitorConfig) error {
		if ua == "" {
			return errors.New("user agent cannot be empty")
		}
		cfg.userAgent = ua
		return nil
	}
}

// WithRequestTimeout bounds each upstream HTTP attempt. Defaults to 7 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithRetry sets the attempt budget and linear backoff step for transient
// fetch failures. Defaults to 3 attempts and 800ms (delays 800ms, 1600ms).
//
// Returns an error if maxAttempts < 1 or backoffStep is negative.
func WithRetry(maxAttempts int, backoffStep time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if maxAttempts < 1 {
			return errors.New("max attempts must be at least 1")
		}
		if backoffStep < 0 {
			return errors.New("backoff step cannot be negative")
		}
		cfg.maxAttempts = maxAttempts
		cfg.backoffStep = backoffStep
		return nil
	}
}

// WithBaseline makes the first successful observation of each channel a
// silent baseline: a channel already live when monitoring starts is not
// announced.
func WithBaseline() Option {
	return func(cfg *monitorConfig) error {
		cfg.baseline = true
		return nil
	}
}

// WithPollOnStart runs one cycle as soon as [Monitor.Start] is called instead
// of waiting for the first interval to elapse.
func WithPollOnStart() Option {
	return func(cfg *monitorConfig) error {
		cfg.pollOnStart = true
		return nil
	}
}

// WithMetricsRegistry registers the monitor's Prometheus metrics with reg
// and serves reg at /metrics. By default each Monitor uses its own registry.
//
// Returns an error if reg is nil.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(cfg *monitorConfig) error {
		if reg == nil {
			return errors.New("metrics registry cannot be nil")
		}
		cfg.registry = reg
		return nil
	}
}
