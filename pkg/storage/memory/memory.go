package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nicktill/thermonest/pkg/sensor"
	"github.com/nicktill/thermonest/pkg/storage"
)

// Storage stores observations in memory. Data is lost on restart.
// Useful for testing and development.
type Storage struct {
	obs []sensor.Observation
	mu  sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		obs: make([]sensor.Observation, 0, 10000),
	}
}

// Write stores observations in memory
func (s *Storage) Write(ctx context.Context, obs []sensor.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.obs = append(s.obs, obs...)
	return nil
}

// Query retrieves observations matching the request, in insertion order
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]sensor.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []sensor.Observation
	for _, o := range s.obs {
		if !req.Matches(o) {
			continue
		}
		results = append(results, o)

		if req.Limit > 0 && len(results) >= req.Limit {
			break
		}
	}

	return results, nil
}

// Delete removes observations older than the given time
func (s *Storage) Delete(ctx context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]sensor.Observation, 0, len(s.obs))
	for _, o := range s.obs {
		if !o.Time.Before(before) {
			filtered = append(filtered, o)
		}
	}

	s.obs = filtered
	return nil
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{
		TotalObservations: uint64(len(s.obs)),
	}

	if len(s.obs) == 0 {
		return stats, nil
	}

	series := make(map[string]bool)
	oldest := s.obs[0].Time
	newest := s.obs[0].Time

	for _, o := range s.obs {
		series[string(o.Measurement)+","+o.Source] = true

		if o.Time.Before(oldest) {
			oldest = o.Time
		}
		if o.Time.After(newest) {
			newest = o.Time
		}
	}

	stats.TotalSeries = uint64(len(series))
	stats.Oldest = oldest
	stats.Newest = newest

	// Rough size estimate (each observation ~64 bytes)
	stats.SizeBytes = uint64(len(s.obs)) * 64

	return stats, nil
}
