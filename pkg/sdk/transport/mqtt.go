package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/nicktill/thermonest/pkg/config"
	"github.com/nicktill/thermonest/pkg/ingest"
)

// MQTTOptions configures a publishing connection. Topic uses the same
// pattern the server subscribes to; its single-level wildcard is replaced
// by each reading's source.
type MQTTOptions struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
}

// MQTTTransport publishes each reading as a JSON message at QoS 1
type MQTTTransport struct {
	client *paho.Client
	topic  string
}

// DialMQTT connects to the broker
func DialMQTT(ctx context.Context, opts MQTTOptions) (*MQTTTransport, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("broker address is required")
	}
	if opts.Topic == "" {
		opts.Topic = config.DefaultMQTTTopic
	}
	if opts.ClientID == "" {
		opts.ClientID = "thermonest-sensor"
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", opts.Broker)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.Broker, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: fmt.Sprintf("%s-%s", opts.ClientID, uuid.NewString()[:8]),
		Conn:     conn,
	})

	connect := &paho.Connect{
		ClientID:     client.ClientID(),
		CleanStart:   true,
		KeepAlive:    config.MQTTKeepAlive,
		Username:     opts.Username,
		UsernameFlag: opts.Username != "",
		Password:     []byte(opts.Password),
		PasswordFlag: opts.Password != "",
	}
	if _, err := client.Connect(ctx, connect); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect: %w", err)
	}

	return &MQTTTransport{client: client, topic: opts.Topic}, nil
}

// TopicFor returns the topic a reading from source is published on
func (t *MQTTTransport) TopicFor(source string) string {
	return strings.Replace(t.topic, "+", source, 1)
}

// Send publishes readings one message each, stopping at the first failure
func (t *MQTTTransport) Send(ctx context.Context, readings []ingest.Reading) error {
	for _, r := range readings {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal reading: %w", err)
		}

		_, err = t.client.Publish(ctx, &paho.Publish{
			Topic:   t.TopicFor(r.Source),
			QoS:     1,
			Payload: payload,
		})
		if err != nil {
			return fmt.Errorf("publish %s: %w", t.TopicFor(r.Source), err)
		}
	}
	return nil
}

// Close disconnects from the broker
func (t *MQTTTransport) Close() error {
	return t.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
