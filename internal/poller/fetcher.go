package poller

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the upstream channel status API.
	DefaultBaseURL = "https://api.chzzk.naver.com/service/v1"

	// DefaultRequestTimeout bounds each HTTP attempt.
	DefaultRequestTimeout = 7 * time.Second

	defaultUserAgent = "livepulse/dev"
)

// FetcherConfig configures a [Fetcher]. Zero fields take defaults.
type FetcherConfig struct {
	// BaseURL is the API root; requests go to BaseURL + "/channels/" + id.
	BaseURL string

	// Token is sent as a bearer credential when non-empty.
	Token string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds each attempt. Defaults to 7s.
	Timeout time.Duration

	// Retry is the retry discipline. Defaults to [DefaultRetryPolicy].
	Retry *RetryPolicy

	// Now returns the observation timestamp. Defaults to time.Now.
	Now func() time.Time
}

// Fetcher performs bounded-retry status queries.
//
// Fetcher holds no mutable state and is safe for concurrent use.
type Fetcher struct {
	client  *Client
	baseURL string
	headers map[string]string
	timeout time.Duration
	retry   RetryPolicy
	now     func() time.Time
}

// NewFetcher creates a [Fetcher] that issues requests through client.
func NewFetcher(client *Client, cfg FetcherConfig) *Fetcher {
	f := &Fetcher{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		retry:   DefaultRetryPolicy(),
		now:     cfg.Now,
		headers: map[string]string{"User-Agent": defaultUserAgent},
	}
	if f.baseURL == "" {
		f.baseURL = DefaultBaseURL
	}
	if f.timeout <= 0 {
		f.timeout = DefaultRequestTimeout
	}
	if cfg.Retry != nil {
		f.retry = *cfg.Retry
	}
	if f.now == nil {
		f.now = time.Now
	}
	if cfg.UserAgent != "" {
		f.headers["User-Agent"] = cfg.UserAgent
	}
	if cfg.Token != "" {
		f.headers["Authorization"] = "Bearer " + cfg.Token
	}
	return f
}

// ChannelURL returns the status URL for a channel.
func (f *Fetcher) ChannelURL(channelID string) string {
	return f.baseURL + "/channels/" + url.PathEscape(channelID)
}

// Fetch queries the status of one channel.
//
// Fetch never returns a raw error: every failure is folded into the returned
// [Outcome]. Transient errors are retried according to the retry policy;
// permanent ones end the loop at once.
func (f *Fetcher) Fetch(ctx context.Context, ch ChannelInfo) Outcome {
	start := time.Now()
	req := Request{
		URL:     f.ChannelURL(ch.ID),
		Headers: f.headers,
		Timeout: f.timeout,
	}

	var obs Observation
	attempts, err := f.retry.Do(ctx, func(ctx context.Context, _ int) error {
		resp, err := f.client.Get(ctx, req)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &StatusError{Code: resp.StatusCode}
		}
		obs, err = decodeObservation(ch.ID, resp.Body, f.now())
		return err
	})

	out := Outcome{
		Channel:  ch,
		Attempts: attempts,
		Latency:  time.Since(start),
	}
	if err != nil {
		kind := classify(err)
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			// retries were cut short by the caller
			kind = KindPermanent
		}
		out.Err = &FetchError{Kind: kind, Attempts: attempts, Err: err}
		return out
	}
	out.Observation = obs
	return out
}
