package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jpalmerr/livepulse"
	"github.com/jpalmerr/livepulse/config"
	"github.com/jpalmerr/livepulse/notify"
)

// closer is implemented by notifiers holding a connection.
type closer interface {
	Close() error
}

// notifierSet holds the notifiers built from config.
type notifierSet struct {
	notifiers []livepulse.Notifier
	closers   []closer
}

// buildNotifiers connects every configured notifier. On error, notifiers
// already connected are closed.
func buildNotifiers(cfg config.NotifiersConfig, logger *slog.Logger) (*notifierSet, error) {
	set := &notifierSet{}

	if cfg.Log {
		set.add(notify.NewLogNotifier(logger))
	}

	if w := cfg.Webhook; w != nil {
		var opts []notify.WebhookOption
		if w.MentionRoleID != "" {
			opts = append(opts, notify.WithMentionRole(w.MentionRoleID))
		}
		if w.Username != "" {
			opts = append(opts, notify.WithUsername(w.Username))
		}
		n, err := notify.NewWebhookNotifier(w.URL, opts...)
		if err != nil {
			return nil, set.fail(fmt.Errorf("webhook notifier: %w", err))
		}
		set.add(n)
	}

	if m := cfg.MQTT; m != nil {
		n, err := notify.DialMQTT(m.Broker, m.ClientID, m.Topic, byte(m.QoS))
		if err != nil {
			return nil, set.fail(fmt.Errorf("mqtt notifier: %w", err))
		}
		logger.Info("mqtt connected", "broker", m.Broker, "topic", m.Topic)
		set.add(n)
	}

	if s := cfg.NATS; s != nil {
		n, err := notify.DialNATS(s.URL, s.Subject, s.Name)
		if err != nil {
			return nil, set.fail(fmt.Errorf("nats notifier: %w", err))
		}
		logger.Info("nats connected", "url", s.URL, "subject", s.Subject)
		set.add(n)
	}

	return set, nil
}

func (s *notifierSet) add(n livepulse.Notifier) {
	s.notifiers = append(s.notifiers, n)
	if c, ok := n.(closer); ok {
		s.closers = append(s.closers, c)
	}
}

// options returns one WithNotifier option per notifier.
func (s *notifierSet) options() []livepulse.Option {
	opts := make([]livepulse.Option, len(s.notifiers))
	for i, n := range s.notifiers {
		opts[i] = livepulse.WithNotifier(n)
	}
	return opts
}

// Close closes every notifier holding a connection.
func (s *notifierSet) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *notifierSet) fail(err error) error {
	_ = s.Close()
	return err
}
