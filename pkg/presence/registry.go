// Package presence tracks which users are currently sharing a location.
// State is in memory only and is rebuilt by the next location share after
// a restart.
package presence

import (
	"sync"
	"time"
)

// Record is one user's shared location.
type Record struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"name"`
	Email       string    `json:"email,omitempty"`
	AvatarURL   string    `json:"picture"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	LastSeen    time.Time `json:"lastSeen"`
}

// Coords returns [lat, lon], the shape map clients expect.
func (r Record) Coords() [2]float64 {
	return [2]float64{r.Latitude, r.Longitude}
}

// Registry is an expiring map of userId to Record. A record is active while
// now - LastSeen < TTL. All methods are safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	records map[string]Record
	ttl     time.Duration
	clock   func() time.Time
}

// NewRegistry creates a registry. clock stamps LastSeen on upsert; nil
// means time.Now.
func NewRegistry(ttl time.Duration, clock func() time.Time) *Registry {
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		records: make(map[string]Record),
		ttl:     ttl,
		clock:   clock,
	}
}

// Upsert overwrites any existing record for userID and stamps LastSeen.
func (r *Registry) Upsert(userID string, rec Record) Record {
	rec.UserID = userID
	rec.LastSeen = r.clock()

	r.mu.Lock()
	r.records[userID] = rec
	r.mu.Unlock()

	return rec
}

// ListActive returns records seen less than TTL before now, in no
// particular order.
func (r *Registry) ListActive(now time.Time) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if r.active(rec, now) {
			active = append(active, rec)
		}
	}
	return active
}

// Sweep deletes expired records and returns how many were removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, rec := range r.records {
		if !r.active(rec, now) {
			delete(r.records, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored records, expired or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Now returns the registry clock's current time.
func (r *Registry) Now() time.Time {
	return r.clock()
}

func (r *Registry) active(rec Record, now time.Time) bool {
	return now.Sub(rec.LastSeen) < r.ttl
}
