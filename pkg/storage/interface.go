package storage

import (
	"context"
	"time"

	"github.com/nicktill/thermonest/pkg/sensor"
)

// Storage defines the interface for observation storage backends.
// Implementations: memory (testing), badger (embedded), influx (production)
type Storage interface {
	// Write stores observations
	Write(ctx context.Context, obs []sensor.Observation) error

	// Query retrieves observations for the request's window
	Query(ctx context.Context, req QueryRequest) ([]sensor.Observation, error)

	// Delete removes observations older than the given time
	Delete(ctx context.Context, before time.Time) error

	// Close cleanly shuts down the storage
	Close() error

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)
}

// Pivoter is implemented by backends that can join both measurements on
// timestamp server-side.
type Pivoter interface {
	QueryPivot(ctx context.Context, req QueryRequest) ([]sensor.Row, error)
}

// QueryRequest specifies what observations to retrieve. The range is always
// derived from a validated Window, never from caller-supplied text.
type QueryRequest struct {
	Window sensor.Window

	// Filter by measurement (empty = all)
	Measurements []sensor.Measurement

	// Reference time for the window end; zero means time.Now()
	Now time.Time

	// Limit number of results (0 = no limit)
	Limit int
}

// Bounds returns the inclusive [start, end] interval the request covers.
func (r QueryRequest) Bounds() (time.Time, time.Time) {
	now := r.Now
	if now.IsZero() {
		now = time.Now()
	}
	return r.Window.Start(now), now
}

// Matches reports whether o falls inside the request.
func (r QueryRequest) Matches(o sensor.Observation) bool {
	start, end := r.Bounds()
	if o.Time.Before(start) || o.Time.After(end) {
		return false
	}
	if len(r.Measurements) == 0 {
		return true
	}
	for _, m := range r.Measurements {
		if o.Measurement == m {
			return true
		}
	}
	return false
}

// Stats provides storage health and usage info
type Stats struct {
	// Total observations stored
	TotalObservations uint64 `json:"total_observations"`

	// Unique series (measurement + source combinations)
	TotalSeries uint64 `json:"total_series"`

	// Storage size in bytes
	SizeBytes uint64 `json:"size_bytes"`

	Oldest time.Time `json:"oldest,omitempty"`
	Newest time.Time `json:"newest,omitempty"`
}
