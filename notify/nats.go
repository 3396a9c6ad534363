package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jpalmerr/livepulse"
)

const (
	natsReconnectWait = 2 * time.Second

	// natsFlushTimeout bounds a flush when the caller's context has no deadline.
	natsFlushTimeout = 5 * time.Second
)

// NATSPublisher is the subset of *nats.Conn used by [NATSNotifier].
type NATSPublisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSNotifier publishes JSON events to NATS subjects.
//
// Announcements go to <subject>.live, snapshots to <subject>.snapshot.
type NATSNotifier struct {
	conn    NATSPublisher
	subject string
	now     func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// NewNATSNotifier creates a notifier publishing through an existing connection.
func NewNATSNotifier(conn NATSPublisher, subject string) (*NATSNotifier, error) {
	if conn == nil {
		return nil, errors.New("nats connection cannot be nil")
	}
	if subject == "" {
		return nil, errors.New("nats subject cannot be empty")
	}
	return &NATSNotifier{conn: conn, subject: subject, now: time.Now}, nil
}

// DialNATS connects to url and returns a notifier using the connection.
// The connection reconnects indefinitely.
func DialNATS(url, subject, name string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect to %s: %w", url, err)
	}

	n, err := NewNATSNotifier(conn, subject)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return n, nil
}

// Announce publishes a live event and waits for the server to acknowledge it.
func (n *NATSNotifier) Announce(ctx context.Context, a livepulse.Announcement) error {
	payload, err := FormatAnnouncement(a, n.now())
	if err != nil {
		return fmt.Errorf("encoding announcement: %w", err)
	}
	return n.publish(ctx, n.subject+"."+EventLive, payload)
}

// Snapshot publishes a snapshot event.
func (n *NATSNotifier) Snapshot(ctx context.Context, statuses []livepulse.ChannelStatus) error {
	payload, err := FormatSnapshot(statuses, n.now())
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return n.publish(ctx, n.subject+"."+EventSnapshot, payload)
}

func (n *NATSNotifier) publish(ctx context.Context, subject string, payload []byte) error {
	if err := n.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("nats publish to %s: %w", subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, natsFlushTimeout)
		defer cancel()
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush after %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection. It is safe to call more than once.
func (n *NATSNotifier) Close() error {
	n.closeOnce.Do(func() {
		n.closeErr = n.conn.Drain()
	})
	return n.closeErr
}
