// Package config provides YAML configuration parsing for livepulse.
//
// This package enables running livepulse as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	port: 8080
//	poll_interval: 60s
//
//	api:
//	  token: ${CHZZK_TOKEN:-}
//
//	channels:
//	  - name: Streamer X
//	    id: 0123456789abcdef0123456789abcdef
//	    labels:
//	      team: red
//
//	notifiers:
//	  webhook:
//	    url: ${DISCORD_WEBHOOK_URL}
//	    mention_role_id: "123456789"
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval.
// This prevents accidental hammering of the upstream API.
const minPollInterval = 1 * time.Second

const (
	defaultPort         = 8080
	defaultPollInterval = 60 * time.Second
	defaultTimeout      = 7 * time.Second
	defaultMaxAttempts  = 3
	defaultBackoffStep  = 800 * time.Millisecond

	defaultMQTTClientID = "livepulse"
	defaultNATSName     = "livepulse"
)

// Config is the root configuration structure for livepulse.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// DisableHTTP turns off the status API.
	DisableHTTP bool `yaml:"disable_http"`

	// PollInterval is the time between polling cycles.
	// Accepts duration strings like "30s", "1m". Defaults to 60s.
	PollInterval Duration `yaml:"poll_interval"`

	// PollOnStart runs one cycle immediately at startup.
	PollOnStart bool `yaml:"poll_on_start"`

	// BaselineOnStartup suppresses announcements for channels already live
	// at the first successful observation.
	BaselineOnStartup bool `yaml:"baseline_on_startup"`

	// MaxConcurrency bounds concurrent fetches. Zero means one per channel.
	MaxConcurrency int `yaml:"max_concurrency"`

	// API configures the upstream status API.
	API APIConfig `yaml:"api"`

	// Channels is the roster, in notification order.
	Channels []ChannelConfig `yaml:"channels"`

	// Notifiers configures notification destinations.
	Notifiers NotifiersConfig `yaml:"notifiers"`
}

// APIConfig configures the upstream status API client.
type APIConfig struct {
	// BaseURL is the API root. Defaults to the public CHZZK API.
	// Supports environment variable substitution.
	BaseURL string `yaml:"base_url"`

	// Token is sent as a bearer credential when set.
	// Supports environment variable substitution.
	Token string `yaml:"token"`

	// UserAgent overrides the request User-Agent.
	UserAgent string `yaml:"user_agent"`

	// Timeout bounds each attempt. Defaults to 7s.
	Timeout Duration `yaml:"timeout"`

	// MaxAttempts is the attempt budget per channel per cycle. Defaults to 3.
	MaxAttempts int `yaml:"max_attempts"`

	// BackoffStep is multiplied by the attempt number between retries.
	// Defaults to 800ms; an explicit 0s retries without delay.
	BackoffStep *Duration `yaml:"backoff_step"`
}

// ChannelConfig defines a single watched channel.
type ChannelConfig struct {
	// Name is the display name used in notifications.
	Name string `yaml:"name"`

	// ID is the upstream channel identifier.
	ID string `yaml:"id"`

	// Link overrides the watch URL shown in notifications.
	Link string `yaml:"link"`

	// Labels are metadata key-value pairs exposed by the status API.
	Labels map[string]string `yaml:"labels"`
}

// NotifiersConfig enables notification destinations. Every configured
// destination receives every announcement and snapshot.
type NotifiersConfig struct {
	// Log writes notifications to the structured log.
	Log bool `yaml:"log"`

	Webhook *WebhookConfig `yaml:"webhook"`
	MQTT    *MQTTConfig    `yaml:"mqtt"`
	NATS    *NATSConfig    `yaml:"nats"`
}

// WebhookConfig configures a Discord-compatible webhook.
type WebhookConfig struct {
	// URL supports environment variable substitution.
	URL string `yaml:"url"`

	// MentionRoleID is mentioned in go-live announcements.
	MentionRoleID string `yaml:"mention_role_id"`

	// Username overrides the webhook display name.
	Username string `yaml:"username"`
}

// MQTTConfig configures an MQTT broker destination.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	Broker string `yaml:"broker"`

	// Topic is the topic prefix. Events go to <topic>/live and <topic>/snapshot.
	Topic string `yaml:"topic"`

	// ClientID defaults to "livepulse".
	ClientID string `yaml:"client_id"`

	// QoS is 0, 1 or 2. Defaults to 0.
	QoS int `yaml:"qos"`
}

// NATSConfig configures a NATS destination.
type NATSConfig struct {
	// URL is the server URL, e.g. nats://localhost:4222.
	URL string `yaml:"url"`

	// Subject is the subject prefix. Events go to <subject>.live and <subject>.snapshot.
	Subject string `yaml:"subject"`

	// Name is the connection name. Defaults to "livepulse".
	Name string `yaml:"name"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the API base URL and token, and in
// notifier URLs. Defaults are applied for Port (8080), PollInterval (60s)
// and the API retry settings.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.PollInterval == 0 {
		c.PollInterval = Duration(defaultPollInterval)
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = Duration(defaultTimeout)
	}
	if c.API.MaxAttempts == 0 {
		c.API.MaxAttempts = defaultMaxAttempts
	}
	if c.API.BackoffStep == nil {
		step := Duration(defaultBackoffStep)
		c.API.BackoffStep = &step
	}
	if c.Notifiers.MQTT != nil && c.Notifiers.MQTT.ClientID == "" {
		c.Notifiers.MQTT.ClientID = defaultMQTTClientID
	}
	if c.Notifiers.NATS != nil && c.Notifiers.NATS.Name == "" {
		c.Notifiers.NATS.Name = defaultNATSName
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	}

	if err := c.API.expandAndValidate(); err != nil {
		return err
	}

	if len(c.Channels) == 0 {
		return errors.New("at least one channel must be defined")
	}

	seen := make(map[string]int, len(c.Channels))
	for i := range c.Channels {
		ch := &c.Channels[i]

		if strings.TrimSpace(ch.Name) == "" {
			return fmt.Errorf("channels[%d]: name is required", i)
		}
		if ch.ID == "" {
			return fmt.Errorf("channels[%d] (%s): id is required", i, ch.Name)
		}
		if strings.ContainsAny(ch.ID, " \t\r\n/") {
			return fmt.Errorf("channels[%d] (%s): id cannot contain whitespace or '/'", i, ch.Name)
		}
		if prev, dup := seen[ch.ID]; dup {
			return fmt.Errorf("channels[%d] (%s): duplicate id %q (also channels[%d])", i, ch.Name, ch.ID, prev)
		}
		seen[ch.ID] = i

		if ch.Link != "" {
			if err := validateHTTPURL(ch.Link); err != nil {
				return fmt.Errorf("channels[%d] (%s): link: %w", i, ch.Name, err)
			}
		}
	}

	return c.Notifiers.expandAndValidate()
}

func (a *APIConfig) expandAndValidate() error {
	if a.BaseURL != "" {
		expanded, err := expandEnvVars(a.BaseURL)
		if err != nil {
			return fmt.Errorf("api.base_url: %w", err)
		}
		a.BaseURL = expanded
		if err := validateHTTPURL(a.BaseURL); err != nil {
			return fmt.Errorf("api.base_url: %w", err)
		}
	}

	token, err := expandEnvVars(a.Token)
	if err != nil {
		return fmt.Errorf("api.token: %w", err)
	}
	a.Token = token

	if a.Timeout.Duration() < 0 {
		return fmt.Errorf("api.timeout cannot be negative, got %s", a.Timeout.Duration())
	}
	if a.MaxAttempts < 1 {
		return fmt.Errorf("api.max_attempts must be at least 1, got %d", a.MaxAttempts)
	}
	if a.BackoffStep != nil && a.BackoffStep.Duration() < 0 {
		return fmt.Errorf("api.backoff_step cannot be negative, got %s", a.BackoffStep.Duration())
	}
	return nil
}

func (n *NotifiersConfig) expandAndValidate() error {
	if w := n.Webhook; w != nil {
		expanded, err := expandEnvVars(w.URL)
		if err != nil {
			return fmt.Errorf("notifiers.webhook.url: %w", err)
		}
		w.URL = expanded
		if w.URL == "" {
			return errors.New("notifiers.webhook.url is required")
		}
		if err := validateHTTPURL(w.URL); err != nil {
			return fmt.Errorf("notifiers.webhook.url: %w", err)
		}
		for _, r := range w.MentionRoleID {
			if r < '0' || r > '9' {
				return fmt.Errorf("notifiers.webhook.mention_role_id must be numeric, got %q", w.MentionRoleID)
			}
		}
	}

	if m := n.MQTT; m != nil {
		expanded, err := expandEnvVars(m.Broker)
		if err != nil {
			return fmt.Errorf("notifiers.mqtt.broker: %w", err)
		}
		m.Broker = expanded
		if m.Broker == "" {
			return errors.New("notifiers.mqtt.broker is required")
		}
		if m.Topic == "" {
			return errors.New("notifiers.mqtt.topic is required")
		}
		if m.QoS < 0 || m.QoS > 2 {
			return fmt.Errorf("notifiers.mqtt.qos must be 0, 1 or 2, got %d", m.QoS)
		}
	}

	if s := n.NATS; s != nil {
		expanded, err := expandEnvVars(s.URL)
		if err != nil {
			return fmt.Errorf("notifiers.nats.url: %w", err)
		}
		s.URL = expanded
		if s.URL == "" {
			return errors.New("notifiers.nats.url is required")
		}
		if s.Subject == "" {
			return errors.New("notifiers.nats.subject is required")
		}
	}

	return nil
}

// Enabled returns the names of configured notifiers, in construction order.
func (n NotifiersConfig) Enabled() []string {
	var names []string
	if n.Log {
		names = append(names, "log")
	}
	if n.Webhook != nil {
		names = append(names, "webhook")
	}
	if n.MQTT != nil {
		names = append(names, "mqtt")
	}
	if n.NATS != nil {
		names = append(names, "nats")
	}
	return names
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}
