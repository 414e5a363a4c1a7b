package ingest

import (
	"context"
	"net"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/nicktill/thermonest/pkg/config"
	"github.com/nicktill/thermonest/pkg/sensor"
	"github.com/nicktill/thermonest/pkg/storage"
	"github.com/nicktill/thermonest/pkg/storage/memory"
	"github.com/stretchr/testify/require"
)

// freeAddr reserves a local port for an in-process broker.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

// startBroker spins up an in-process MQTT broker on addr.
func startBroker(t *testing.T, addr string) *mochi.Server {
	t.Helper()
	broker := mochi.New(&mochi.Options{InlineClient: true})

	err := broker.AddHook(new(auth.AllowHook), nil)
	require.NoError(t, err)

	err = broker.AddListener(listeners.NewTCP(listeners.Config{
		ID:      "test",
		Type:    "tcp",
		Address: addr,
	}))
	require.NoError(t, err)

	require.NoError(t, broker.Serve())
	return broker
}

func newTestBridge(store storage.Storage, addr string) *Bridge {
	b := NewBridge(store, config.MQTTConfig{
		Broker: addr,
		Topic:  config.DefaultMQTTTopic,
	})
	b.initialBackoff = 10 * time.Millisecond
	b.maxBackoff = 50 * time.Millisecond
	return b
}

func waitSubscribed(t *testing.T, broker *mochi.Server, topic string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(broker.Topics.Subscribers(topic).Subscriptions) > 0
	}, 5*time.Second, 10*time.Millisecond)
}

func countObservations(t *testing.T, store storage.Storage) uint64 {
	t.Helper()
	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	return stats.TotalObservations
}

func TestBridge_WritesReadings(t *testing.T) {
	addr := freeAddr(t)
	broker := startBroker(t, addr)
	defer broker.Close()

	store := memory.New()
	bridge := newTestBridge(store, addr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bridge.Run(ctx)
		close(done)
	}()

	topic := "thermonest/kitchen/readings"
	waitSubscribed(t, broker, topic)

	require.NoError(t, broker.Publish(topic, []byte("22.5,41.0"), false, 1))

	require.Eventually(t, func() bool {
		return countObservations(t, store) == 2
	}, 5*time.Second, 10*time.Millisecond)

	obs, err := store.Query(context.Background(), storage.QueryRequest{Window: sensor.Window1h})
	require.NoError(t, err)
	require.Len(t, obs, 2)
	require.Equal(t, "kitchen", obs[0].Source)
	require.Equal(t, 22.5, obs[0].Value)
	require.Equal(t, 41.0, obs[1].Value)
	require.Equal(t, int64(1), bridge.Stats().Written)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop after cancellation")
	}
}

func TestBridge_RejectsInvalidPayload(t *testing.T) {
	addr := freeAddr(t)
	broker := startBroker(t, addr)
	defer broker.Close()

	store := memory.New()
	bridge := newTestBridge(store, addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)

	topic := "thermonest/kitchen/readings"
	waitSubscribed(t, broker, topic)

	require.NoError(t, broker.Publish(topic, []byte("hot,humid"), false, 1))
	require.NoError(t, broker.Publish(topic, []byte("20,101"), false, 1))

	require.Eventually(t, func() bool {
		return bridge.Stats().Rejected == 2
	}, 5*time.Second, 10*time.Millisecond)
	require.Zero(t, countObservations(t, store))
}

func TestBridge_RetriesUntilBrokerAvailable(t *testing.T) {
	addr := freeAddr(t)
	store := memory.New()
	bridge := newTestBridge(store, addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)

	// Let a few dial attempts fail first
	time.Sleep(100 * time.Millisecond)

	broker := startBroker(t, addr)
	defer broker.Close()

	topic := "thermonest/attic/readings"
	waitSubscribed(t, broker, topic)

	require.NoError(t, broker.Publish(topic, []byte(`{"temperature":18,"humidity":60}`), false, 1))
	require.Eventually(t, func() bool {
		return countObservations(t, store) == 2
	}, 5*time.Second, 10*time.Millisecond)
}
