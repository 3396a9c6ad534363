package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/livepulse"
)

type natsMsg struct {
	subject string
	data    []byte
}

type fakeNATSConn struct {
	mu          sync.Mutex
	msgs        []natsMsg
	publishErr  error
	flushErr    error
	hadDeadline []bool
	drains      int
}

func (c *fakeNATSConn) Publish(subj string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.msgs = append(c.msgs, natsMsg{subj, data})
	return nil
}

func (c *fakeNATSConn) FlushWithContext(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := ctx.Deadline()
	c.hadDeadline = append(c.hadDeadline, ok)
	return c.flushErr
}

func (c *fakeNATSConn) Drain() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drains++
	return nil
}

func TestNewNATSNotifier_Errors(t *testing.T) {
	_, err := NewNATSNotifier(nil, "livepulse")
	assert.ErrorContains(t, err, "connection cannot be nil")

	_, err = NewNATSNotifier(&fakeNATSConn{}, "")
	assert.ErrorContains(t, err, "subject cannot be empty")
}

func TestNATSNotifier_Subjects(t *testing.T) {
	conn := &fakeNATSConn{}
	n, err := NewNATSNotifier(conn, "livepulse.streams")
	require.NoError(t, err)

	s := liveStatus(t)
	require.NoError(t, n.Announce(context.Background(), livepulse.Announcement{Channel: s.Channel, Observation: s.Observation}))
	require.NoError(t, n.Snapshot(context.Background(), []livepulse.ChannelStatus{s}))

	require.Len(t, conn.msgs, 2)
	assert.Equal(t, "livepulse.streams.live", conn.msgs[0].subject)
	assert.Equal(t, "livepulse.streams.snapshot", conn.msgs[1].subject)

	var ev Event
	require.NoError(t, json.Unmarshal(conn.msgs[1].data, &ev))
	assert.Equal(t, EventSnapshot, ev.Type)
	require.Len(t, ev.Channels, 1)
	assert.Equal(t, "live", ev.Channels[0].State)
}

func TestNATSNotifier_FlushAlwaysHasDeadline(t *testing.T) {
	conn := &fakeNATSConn{}
	n, err := NewNATSNotifier(conn, "livepulse")
	require.NoError(t, err)

	require.NoError(t, n.Snapshot(context.Background(), nil))
	assert.Equal(t, []bool{true}, conn.hadDeadline)
}

func TestNATSNotifier_Errors(t *testing.T) {
	t.Run("publish", func(t *testing.T) {
		n, err := NewNATSNotifier(&fakeNATSConn{publishErr: errors.New("connection closed")}, "livepulse")
		require.NoError(t, err)
		err = n.Snapshot(context.Background(), nil)
		assert.ErrorContains(t, err, "nats publish to livepulse.snapshot: connection closed")
	})

	t.Run("flush", func(t *testing.T) {
		n, err := NewNATSNotifier(&fakeNATSConn{flushErr: context.DeadlineExceeded}, "livepulse")
		require.NoError(t, err)
		err = n.Snapshot(context.Background(), nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNATSNotifier_CloseIdempotent(t *testing.T) {
	conn := &fakeNATSConn{}
	n, err := NewNATSNotifier(conn, "livepulse")
	require.NoError(t, err)

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
	assert.Equal(t, 1, conn.drains)
}
