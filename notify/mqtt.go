package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/jpalmerr/livepulse"
)

var (
	mqttConnectTimeout = 10 * time.Second

	// newMQTTClient is replaced in tests.
	newMQTTClient = func(opts *paho.ClientOptions) mqttClient { return paho.NewClient(opts) }
)

const (
	mqttRetryInterval = 5 * time.Second
	mqttQuiesceMillis = 1000

	mqttLiveSuffix     = "/live"
	mqttSnapshotSuffix = "/snapshot"
)

// MQTTPublisher is the subset of paho.Client used by [MQTTNotifier].
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// mqttClient is the subset of paho.Client used by [DialMQTT].
type mqttClient interface {
	MQTTPublisher
	Connect() paho.Token
}

// MQTTNotifier publishes JSON events to an MQTT broker.
//
// Announcements go to <topic>/live, snapshots to <topic>/snapshot (retained).
type MQTTNotifier struct {
	client MQTTPublisher
	topic  string
	qos    byte
	now    func() time.Time

	closeOnce sync.Once
}

// NewMQTTNotifier creates a notifier publishing through an existing client.
func NewMQTTNotifier(client MQTTPublisher, topic string, qos byte) (*MQTTNotifier, error) {
	if client == nil {
		return nil, errors.New("mqtt client cannot be nil")
	}
	if topic == "" {
		return nil, errors.New("mqtt topic cannot be empty")
	}
	if qos > 2 {
		return nil, fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", qos)
	}
	return &MQTTNotifier{
		client: client,
		topic:  topic,
		qos:    qos,
		now:    time.Now,
	}, nil
}

// DialMQTT connects to broker and returns a notifier using the connection.
// The client reconnects automatically after the initial connection.
func DialMQTT(broker, clientID, topic string, qos byte) (*MQTTNotifier, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(mqttRetryInterval)

	client := newMQTTClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		// stops the background connect retry
		client.Disconnect(mqttQuiesceMillis)
		return nil, fmt.Errorf("mqtt connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(mqttQuiesceMillis)
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}

	n, err := NewMQTTNotifier(client, topic, qos)
	if err != nil {
		client.Disconnect(mqttQuiesceMillis)
		return nil, err
	}
	return n, nil
}

// Announce publishes a live event.
func (n *MQTTNotifier) Announce(ctx context.Context, a livepulse.Announcement) error {
	payload, err := FormatAnnouncement(a, n.now())
	if err != nil {
		return fmt.Errorf("encoding announcement: %w", err)
	}
	return n.publish(ctx, n.topic+mqttLiveSuffix, false, payload)
}

// Snapshot publishes a retained snapshot event.
func (n *MQTTNotifier) Snapshot(ctx context.Context, statuses []livepulse.ChannelStatus) error {
	payload, err := FormatSnapshot(statuses, n.now())
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return n.publish(ctx, n.topic+mqttSnapshotSuffix, true, payload)
}

func (n *MQTTNotifier) publish(ctx context.Context, topic string, retained bool, payload []byte) error {
	token := n.client.Publish(topic, n.qos, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the broker. It is safe to call more than once.
func (n *MQTTNotifier) Close() error {
	n.closeOnce.Do(func() {
		n.client.Disconnect(mqttQuiesceMillis)
	})
	return nil
}
