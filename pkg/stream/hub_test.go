package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newHubClient(hub *Hub) *Client {
	c := newClient(nil)
	c.session = NewSession(comfortable(), c, Options{Stats: hub.Stats()})
	return c
}

// A client that disconnects before the hub loop runs must not stay counted.
func TestHub_UnregisterBeforeRunLeavesNoClient(t *testing.T) {
	hub := NewHub(NewStats())
	t.Cleanup(hub.Stats().Stop)

	for i := 0; i < 200; i++ {
		c := newHubClient(hub)
		require.True(t, hub.Register(c))
		hub.Unregister(c)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	require.Zero(t, hub.Count())
	require.Zero(t, hub.Stats().Snapshot().Sessions)
}

func TestHub_RunClosesClientsAndRefusesNewOnes(t *testing.T) {
	hub := NewHub(NewStats())
	t.Cleanup(hub.Stats().Stop)

	c := newHubClient(hub)
	require.True(t, hub.Register(c))
	require.Equal(t, 1, hub.Count())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	require.Zero(t, hub.Count())
	select {
	case <-c.done:
	default:
		t.Fatal("client was not closed on shutdown")
	}
	require.False(t, hub.Register(newHubClient(hub)))
}

func TestHub_UnregisterTwiceIsSafe(t *testing.T) {
	hub := NewHub(NewStats())
	t.Cleanup(hub.Stats().Stop)

	c := newHubClient(hub)
	require.True(t, hub.Register(c))
	hub.Unregister(c)
	hub.Unregister(c)

	require.Zero(t, hub.Count())
	require.Zero(t, hub.Stats().Snapshot().Sessions)
}
