package badger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nicktill/thermonest/pkg/sensor"
	"github.com/nicktill/thermonest/pkg/storage"
)

func newTestStore(t *testing.T) *Storage {
	t.Helper()
	store, err := New(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBadgerStorage_WriteAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	err := store.Write(ctx, []sensor.Observation{
		{Time: now.Add(-time.Minute), Value: 21.5, Measurement: sensor.Temperature, Source: "living-room"},
		{Time: now.Add(-time.Minute), Value: 19.0, Measurement: sensor.Temperature, Source: "bedroom"},
		{Time: now.Add(-time.Minute), Value: 45, Measurement: sensor.Humidity, Source: "living-room"},
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	results, err := store.Query(ctx, storage.QueryRequest{Window: sensor.Window1h, Now: now})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Expected 3 observations, got %d", len(results))
	}

	temps, err := store.Query(ctx, storage.QueryRequest{
		Window:       sensor.Window1h,
		Measurements: []sensor.Measurement{sensor.Temperature},
		Now:          now,
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(temps) != 2 {
		t.Errorf("Expected 2 temperature observations, got %d", len(temps))
	}
}

func TestBadgerStorage_QueryAscendingWithinWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// Written out of order on purpose
	store.Write(ctx, []sensor.Observation{
		{Time: now.Add(-10 * time.Minute), Value: 3, Measurement: sensor.Humidity},
		{Time: now.Add(-50 * time.Minute), Value: 1, Measurement: sensor.Humidity},
		{Time: now.Add(-2 * time.Hour), Value: 0, Measurement: sensor.Humidity},
		{Time: now.Add(-30 * time.Minute), Value: 2, Measurement: sensor.Humidity},
		{Time: now.Add(5 * time.Minute), Value: 4, Measurement: sensor.Humidity},
	})

	results, err := store.Query(ctx, storage.QueryRequest{Window: sensor.Window1h, Now: now})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 observations in the last hour, got %d", len(results))
	}
	for i, want := range []float64{1, 2, 3} {
		if results[i].Value != want {
			t.Errorf("results[%d] = %v, expected %v", i, results[i].Value, want)
		}
	}
}

func TestBadgerStorage_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	now := time.Now()

	{
		store, err := New(Config{Path: dir})
		if err != nil {
			t.Fatalf("Failed to create storage: %v", err)
		}
		if err := store.Write(ctx, []sensor.Observation{
			{Time: now.Add(-time.Minute), Value: 22.25, Measurement: sensor.Temperature},
		}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		store.Close()
	}

	store, err := New(Config{Path: dir})
	if err != nil {
		t.Fatalf("Failed to reopen storage: %v", err)
	}
	defer store.Close()

	results, err := store.Query(ctx, storage.QueryRequest{Window: sensor.Window1h, Now: now})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 persisted observation, got %d", len(results))
	}
	if results[0].Value != 22.25 || results[0].Measurement != sensor.Temperature {
		t.Errorf("Unexpected observation %+v", results[0])
	}
}

func TestBadgerStorage_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	store.Write(ctx, []sensor.Observation{
		{Time: now.Add(-40 * 24 * time.Hour), Value: 1, Measurement: sensor.Temperature},
		{Time: now.Add(-35 * 24 * time.Hour), Value: 2, Measurement: sensor.Humidity},
		{Time: now.Add(-time.Hour), Value: 3, Measurement: sensor.Temperature},
	})

	if err := store.Delete(ctx, now.Add(-30*24*time.Hour)); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalObservations != 1 {
		t.Errorf("Expected 1 observation after delete, got %d", stats.TotalObservations)
	}
}

func TestBadgerStorage_Stats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	store.Write(ctx, []sensor.Observation{
		{Time: now.Add(-time.Hour), Value: 20, Measurement: sensor.Temperature, Source: "a"},
		{Time: now, Value: 21, Measurement: sensor.Temperature, Source: "a"},
		{Time: now, Value: 40, Measurement: sensor.Humidity, Source: "a"},
		{Time: now, Value: 19, Measurement: sensor.Temperature, Source: "b"},
	})

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalObservations != 4 {
		t.Errorf("Expected 4 observations, got %d", stats.TotalObservations)
	}
	if stats.TotalSeries != 3 {
		t.Errorf("Expected 3 series, got %d", stats.TotalSeries)
	}
	if stats.Oldest.UnixNano() != now.Add(-time.Hour).UnixNano() {
		t.Errorf("Expected oldest %v, got %v", now.Add(-time.Hour), stats.Oldest)
	}
}

func TestBadgerStorage_ConcurrentOperations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				store.Write(ctx, []sensor.Observation{{
					Time:        now.Add(-time.Duration(id*20+j) * time.Second),
					Value:       float64(j),
					Measurement: sensor.Temperature,
				}})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if _, err := store.Query(ctx, storage.QueryRequest{Window: sensor.Window1h, Now: now}); err != nil {
					t.Errorf("Concurrent query failed: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	results, err := store.Query(ctx, storage.QueryRequest{Window: sensor.Window1h, Now: now})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 100 {
		t.Errorf("Expected 100 observations, got %d", len(results))
	}
}

func TestBadgerStorage_CancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Write(ctx, []sensor.Observation{{Time: time.Now(), Measurement: sensor.Humidity}}); err == nil {
		t.Error("Expected write to fail with cancelled context")
	}
	if _, err := store.Query(ctx, storage.QueryRequest{Window: sensor.Window1h}); err == nil {
		t.Error("Expected query to fail with cancelled context")
	}
}

// The server opens the store on disk with its configured memory budget;
// that configuration must be one badger accepts.
func TestBadgerStorage_OpensOnDiskWithServerOptions(t *testing.T) {
	store, err := New(Config{Path: t.TempDir(), MaxMemoryMB: 48})
	if err != nil {
		t.Fatalf("Failed to open on-disk storage: %v", err)
	}
	defer store.Close()

	obs := []sensor.Observation{{Time: time.Now(), Value: 21, Measurement: sensor.Temperature, Source: "lab"}}
	if err := store.Write(context.Background(), obs); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := store.RunGC(0.5); err != nil && !errors.Is(err, ErrNoRewrite) {
		t.Errorf("RunGC on a fresh store = %v, want nil or ErrNoRewrite", err)
	}
}
