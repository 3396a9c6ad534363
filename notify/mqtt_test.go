package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/livepulse"
)

// fakeToken is a paho.Token that completes when done is closed.
type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type publishedMsg struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeMQTTClient struct {
	mu           sync.Mutex
	published    []publishedMsg
	disconnects  int
	publishErr   error
	pendingToken *fakeToken
}

func (c *fakeMQTTClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, publishedMsg{topic, qos, retained, payload.([]byte)})
	if c.pendingToken != nil {
		return c.pendingToken
	}
	return completedToken(c.publishErr)
}

func (c *fakeMQTTClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
}

func (c *fakeMQTTClient) messages() []publishedMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publishedMsg(nil), c.published...)
}

func TestNewMQTTNotifier_Errors(t *testing.T) {
	_, err := NewMQTTNotifier(nil, "livepulse", 1)
	assert.ErrorContains(t, err, "client cannot be nil")

	_, err = NewMQTTNotifier(&fakeMQTTClient{}, "", 1)
	assert.ErrorContains(t, err, "topic cannot be empty")

	_, err = NewMQTTNotifier(&fakeMQTTClient{}, "livepulse", 3)
	assert.ErrorContains(t, err, "qos must be 0, 1 or 2")
}

func TestMQTTNotifier_Announce(t *testing.T) {
	client := &fakeMQTTClient{}
	n, err := NewMQTTNotifier(client, "livepulse", 1)
	require.NoError(t, err)
	n.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	s := liveStatus(t)
	require.NoError(t, n.Announce(context.Background(), livepulse.Announcement{Channel: s.Channel, Observation: s.Observation}))

	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "livepulse/live", msgs[0].topic)
	assert.Equal(t, byte(1), msgs[0].qos)
	assert.False(t, msgs[0].retained)

	var ev Event
	require.NoError(t, json.Unmarshal(msgs[0].payload, &ev))
	assert.Equal(t, EventLive, ev.Type)
	assert.Equal(t, "2026-01-01T00:00:00Z", ev.Timestamp)
	require.Len(t, ev.Channels, 1)
	assert.Equal(t, "abc123", ev.Channels[0].ChannelID)
}

func TestMQTTNotifier_SnapshotRetained(t *testing.T) {
	client := &fakeMQTTClient{}
	n, err := NewMQTTNotifier(client, "home/streams", 0)
	require.NoError(t, err)

	require.NoError(t, n.Snapshot(context.Background(), []livepulse.ChannelStatus{liveStatus(t)}))

	msgs := client.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "home/streams/snapshot", msgs[0].topic)
	assert.True(t, msgs[0].retained)
}

func TestMQTTNotifier_PublishError(t *testing.T) {
	client := &fakeMQTTClient{publishErr: errors.New("not connected")}
	n, err := NewMQTTNotifier(client, "livepulse", 1)
	require.NoError(t, err)

	err = n.Snapshot(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt publish to livepulse/snapshot")
	assert.Contains(t, err.Error(), "not connected")
}

func TestMQTTNotifier_ContextCancelledWhilePending(t *testing.T) {
	client := &fakeMQTTClient{pendingToken: &fakeToken{done: make(chan struct{})}}
	n, err := NewMQTTNotifier(client, "livepulse", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	s := liveStatus(t)
	err = n.Announce(ctx, livepulse.Announcement{Channel: s.Channel, Observation: s.Observation})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMQTTNotifier_CloseIdempotent(t *testing.T) {
	client := &fakeMQTTClient{}
	n, err := NewMQTTNotifier(client, "livepulse", 1)
	require.NoError(t, err)

	require.NoError(t, n.Close())
	require.NoError(t, n.Close())
	assert.Equal(t, 1, client.disconnects)
}

// dialClient is a fake mqttClient whose Connect returns a fixed token.
type dialClient struct {
	fakeMQTTClient
	connectToken *fakeToken
}

func (c *dialClient) Connect() paho.Token { return c.connectToken }

func stubMQTTClient(t *testing.T, c *dialClient) {
	t.Helper()
	prevNew, prevTimeout := newMQTTClient, mqttConnectTimeout
	newMQTTClient = func(*paho.ClientOptions) mqttClient { return c }
	mqttConnectTimeout = 20 * time.Millisecond
	t.Cleanup(func() {
		newMQTTClient, mqttConnectTimeout = prevNew, prevTimeout
	})
}

func TestDialMQTT_TimeoutDisconnects(t *testing.T) {
	c := &dialClient{connectToken: &fakeToken{done: make(chan struct{})}}
	stubMQTTClient(t, c)

	_, err := DialMQTT("tcp://127.0.0.1:1", "livepulse", "livepulse", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, 1, c.disconnects, "pending connect retry must be stopped")
}

func TestDialMQTT_ConnectErrorDisconnects(t *testing.T) {
	c := &dialClient{connectToken: completedToken(errors.New("refused"))}
	stubMQTTClient(t, c)

	_, err := DialMQTT("tcp://127.0.0.1:1", "livepulse", "livepulse", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
	assert.Equal(t, 1, c.disconnects)
}

func TestDialMQTT_Success(t *testing.T) {
	c := &dialClient{connectToken: completedToken(nil)}
	stubMQTTClient(t, c)

	n, err := DialMQTT("tcp://127.0.0.1:1883", "livepulse", "streams", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, c.disconnects)

	require.NoError(t, n.Snapshot(context.Background(), nil))
	msgs := c.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "streams/snapshot", msgs[0].topic)
}

