package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistry_TTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	reg := NewRegistry(60*time.Second, clock.Now)

	t0 := clock.Now()
	reg.Upsert("u1", Record{DisplayName: "Ada", Latitude: 45.07, Longitude: 7.69})

	require.Len(t, reg.ListActive(t0.Add(59*time.Second)), 1)
	require.Empty(t, reg.ListActive(t0.Add(60*time.Second)))
	require.Empty(t, reg.ListActive(t0.Add(61*time.Second)))

	// Listing never deletes
	require.Equal(t, 1, reg.Len())
}

func TestRegistry_UpsertLastWriteWins(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	reg := NewRegistry(60*time.Second, clock.Now)

	reg.Upsert("u1", Record{DisplayName: "Ada", Latitude: 1})
	clock.Advance(30 * time.Second)
	rec := reg.Upsert("u1", Record{DisplayName: "Ada L.", Latitude: 2})

	require.Equal(t, "u1", rec.UserID)
	require.Equal(t, clock.Now(), rec.LastSeen)

	active := reg.ListActive(clock.Now())
	require.Len(t, active, 1)
	require.Equal(t, "Ada L.", active[0].DisplayName)
	require.Equal(t, 2.0, active[0].Latitude)

	// The refresh extends the record past the first write's expiry
	require.Len(t, reg.ListActive(clock.Now().Add(45*time.Second)), 1)
}

func TestRegistry_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	reg := NewRegistry(60*time.Second, clock.Now)

	reg.Upsert("old", Record{})
	clock.Advance(45 * time.Second)
	reg.Upsert("new", Record{})

	require.Zero(t, reg.Sweep(clock.Now()))
	require.Equal(t, 1, reg.Sweep(clock.Now().Add(20*time.Second)))
	require.Equal(t, 1, reg.Len())
	require.Equal(t, "new", reg.ListActive(clock.Now())[0].UserID)
}

func TestRegistry_Concurrent(t *testing.T) {
	reg := NewRegistry(time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			reg.Upsert(string(rune('a'+i)), Record{Latitude: float64(i)})
		}(i)
		go func() {
			defer wg.Done()
			reg.ListActive(time.Now())
		}()
		go func() {
			defer wg.Done()
			reg.Sweep(time.Now())
		}()
	}
	wg.Wait()

	require.Equal(t, 20, reg.Len())
}

func TestSweeper_RemovesExpired(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	reg := NewRegistry(60*time.Second, clock.Now)
	reg.Upsert("u1", Record{})

	// Move the registry clock past the TTL
	clock.Advance(2 * time.Minute)

	s := NewSweeper(reg, 100*time.Millisecond)
	require.NoError(t, s.Start())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return reg.Len() == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNear(t *testing.T) {
	records := []Record{
		{UserID: "turin", Latitude: 45.0703, Longitude: 7.6869},
		{UserID: "milan", Latitude: 45.4642, Longitude: 9.1900},
		{UserID: "rome", Latitude: 41.9028, Longitude: 12.4964},
	}

	near := Near(records, 45.0703, 7.6869, 150)
	require.Len(t, near, 2)

	require.InDelta(t, 126, DistanceKm(45.0703, 7.6869, 45.4642, 9.1900), 5)
}
