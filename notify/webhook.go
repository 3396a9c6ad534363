package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jpalmerr/livepulse"
)

const (
	defaultWebhookTimeout = 10 * time.Second

	// maxMessageLength is the Discord content limit.
	maxMessageLength = 2000
)

// ErrWebhookStatus is returned when the webhook answers with a non-2xx status.
var ErrWebhookStatus = errors.New("webhook returned non-success status")

// WebhookNotifier posts messages to a Discord-compatible webhook URL.
type WebhookNotifier struct {
	url           string
	mentionRoleID string
	username      string
	client        *http.Client
}

type webhookConfig struct {
	mentionRoleID string
	username      string
	client        *http.Client
}

// WebhookOption configures a [WebhookNotifier].
type WebhookOption func(*webhookConfig) error

// WithMentionRole prefixes announcements with a mention of the given role.
func WithMentionRole(roleID string) WebhookOption {
	return func(c *webhookConfig) error {
		for _, r := range roleID {
			if r < '0' || r > '9' {
				return fmt.Errorf("mention role id must be numeric, got %q", roleID)
			}
		}
		c.mentionRoleID = roleID
		return nil
	}
}

// WithUsername overrides the webhook's display name.
func WithUsername(name string) WebhookOption {
	return func(c *webhookConfig) error {
		c.username = name
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for posting.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(c *webhookConfig) error {
		if client == nil {
			return errors.New("http client cannot be nil")
		}
		c.client = client
		return nil
	}
}

// NewWebhookNotifier creates a notifier posting to webhookURL.
func NewWebhookNotifier(webhookURL string, opts ...WebhookOption) (*WebhookNotifier, error) {
	if webhookURL == "" {
		return nil, errors.New("webhook url cannot be empty")
	}
	u, err := url.Parse(webhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook url must use http or https, got %q", u.Scheme)
	}

	cfg := &webhookConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.client == nil {
		cfg.client = &http.Client{Timeout: defaultWebhookTimeout}
	}

	return &WebhookNotifier{
		url:           webhookURL,
		mentionRoleID: cfg.mentionRoleID,
		username:      cfg.username,
		client:        cfg.client,
	}, nil
}

type allowedMentions struct {
	Parse []string `json:"parse"`
	Roles []string `json:"roles,omitempty"`
}

type webhookMessage struct {
	Content         string          `json:"content"`
	Username        string          `json:"username,omitempty"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

// Announce posts a go-live message, mentioning the configured role.
// Content over the length limit is truncated.
func (n *WebhookNotifier) Announce(ctx context.Context, a livepulse.Announcement) error {
	msg := webhookMessage{
		Content:         truncate(AnnouncementText(a, n.mentionRoleID), maxMessageLength),
		Username:        n.username,
		AllowedMentions: allowedMentions{Parse: []string{}},
	}
	if n.mentionRoleID != "" {
		msg.AllowedMentions.Roles = []string{n.mentionRoleID}
	}
	return n.post(ctx, msg)
}

// Snapshot posts the status of every channel. Messages longer than the
// content limit are split on channel boundaries.
func (n *WebhookNotifier) Snapshot(ctx context.Context, statuses []livepulse.ChannelStatus) error {
	for _, content := range splitMessages(statuses) {
		msg := webhookMessage{
			Content:         content,
			Username:        n.username,
			AllowedMentions: allowedMentions{Parse: []string{}},
		}
		if err := n.post(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// splitMessages groups status blocks into messages within maxMessageLength.
// A single oversized block is truncated.
func splitMessages(statuses []livepulse.ChannelStatus) []string {
	if len(statuses) == 0 {
		return []string{"No channels configured."}
	}

	var messages []string
	var current string
	for _, s := range statuses {
		block := truncate(StatusLine(s), maxMessageLength)
		switch {
		case current == "":
			current = block
		case len(current)+2+len(block) <= maxMessageLength:
			current += "\n\n" + block
		default:
			messages = append(messages, current)
			current = block
		}
	}
	return append(messages, current)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(string(runes))+len("…") > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

func (n *WebhookNotifier) post(ctx context.Context, msg webhookMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", ErrWebhookStatus, resp.StatusCode)
	}
	return nil
}
