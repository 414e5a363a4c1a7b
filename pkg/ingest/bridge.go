package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
	"github.com/nicktill/thermonest/pkg/config"
	"github.com/nicktill/thermonest/pkg/storage"
)

// Bridge subscribes to sensor readings on an MQTT broker and writes them
// into the store.
type Bridge struct {
	store   storage.Storage
	checker StorageChecker
	cfg     config.MQTTConfig
	now     func() time.Time

	initialBackoff time.Duration
	maxBackoff     time.Duration

	written  atomic.Int64
	rejected atomic.Int64
}

// BridgeStats counts what the bridge has done since start.
type BridgeStats struct {
	Written  int64 `json:"written"`
	Rejected int64 `json:"rejected"`
}

// NewBridge creates a bridge for the given broker settings.
func NewBridge(store storage.Storage, cfg config.MQTTConfig) *Bridge {
	if cfg.Topic == "" {
		cfg.Topic = config.DefaultMQTTTopic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = config.DefaultMQTTClientID
	}
	return &Bridge{
		store:          store,
		cfg:            cfg,
		now:            time.Now,
		initialBackoff: config.IngestInitialBackoff,
		maxBackoff:     config.IngestMaxBackoff,
	}
}

// SetStorageChecker enables disk limit enforcement.
func (b *Bridge) SetStorageChecker(c StorageChecker) {
	b.checker = c
}

// Stats returns the bridge counters.
func (b *Bridge) Stats() BridgeStats {
	return BridgeStats{Written: b.written.Load(), Rejected: b.rejected.Load()}
}

// Run keeps a subscription open until ctx is cancelled, reconnecting with
// exponential backoff whenever the connection drops.
func (b *Bridge) Run(ctx context.Context) {
	log.Printf("MQTT bridge started (broker: %s, topic: %s)", b.cfg.Broker, b.cfg.Topic)
	defer log.Println("MQTT bridge stopped")

	backoff := b.initialBackoff
	for {
		connected, err := b.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = b.initialBackoff
		}

		log.Printf("MQTT connection lost: %v (retrying in %v)", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, b.maxBackoff)
	}
}

// session runs one connection. It reports whether the subscription was
// established before the connection ended.
func (b *Bridge) session(ctx context.Context) (bool, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", b.cfg.Broker)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", b.cfg.Broker, err)
	}

	lost := make(chan error, 1)
	signal := func(err error) {
		select {
		case lost <- err:
		default:
		}
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: fmt.Sprintf("%s-%s", b.cfg.ClientID, uuid.NewString()[:8]),
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				b.handle(ctx, pr.Packet.Topic, pr.Packet.Payload)
				return true, nil
			},
		},
		OnClientError: signal,
		OnServerDisconnect: func(d *paho.Disconnect) {
			signal(fmt.Errorf("server disconnected (reason %d)", d.ReasonCode))
		},
	})

	connect := &paho.Connect{
		ClientID:     client.ClientID(),
		CleanStart:   true,
		KeepAlive:    config.MQTTKeepAlive,
		Username:     b.cfg.Username,
		UsernameFlag: b.cfg.Username != "",
		Password:     []byte(b.cfg.Password),
		PasswordFlag: b.cfg.Password != "",
	}
	if _, err := client.Connect(ctx, connect); err != nil {
		conn.Close()
		return false, fmt.Errorf("connect: %w", err)
	}

	if _, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: b.cfg.Topic, QoS: 1}},
	}); err != nil {
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return false, fmt.Errorf("subscribe %s: %w", b.cfg.Topic, err)
	}
	log.Printf("MQTT bridge subscribed to %s", b.cfg.Topic)

	select {
	case <-ctx.Done():
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
		return true, nil
	case err := <-lost:
		conn.Close()
		return true, err
	}
}

func (b *Bridge) handle(ctx context.Context, topic string, payload []byte) {
	r, err := ParsePayload(topic, b.cfg.Topic, payload, b.now())
	if err != nil {
		b.rejected.Add(1)
		log.Printf("Rejected reading on %s: %v", topic, err)
		return
	}

	if b.checker != nil {
		if err := b.checker.CheckLimit(); err != nil {
			b.rejected.Add(1)
			log.Printf("Dropped reading from %s: %v", r.Source, err)
			return
		}
	}

	writeCtx, cancel := context.WithTimeout(ctx, config.IngestWriteTimeout)
	defer cancel()

	if err := b.store.Write(writeCtx, r.Observations()); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("Failed to store reading from %s: %v", r.Source, err)
		}
		return
	}
	b.written.Add(1)
}
