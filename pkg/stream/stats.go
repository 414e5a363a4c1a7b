package stream

import (
	"github.com/rcrowley/go-metrics"
)

// Stats counts live stream activity across all sessions.
type Stats struct {
	registry metrics.Registry

	sessions     metrics.Counter
	activeTimers metrics.Counter
	pushes       metrics.Meter
	tickFailures metrics.Counter
	alerts       metrics.Counter
}

// StatsSnapshot is the JSON form of Stats.
type StatsSnapshot struct {
	Sessions     int64   `json:"sessions"`
	ActiveTimers int64   `json:"active_timers"`
	Pushes       int64   `json:"pushes"`
	PushRate1m   float64 `json:"push_rate_1m"`
	TickFailures int64   `json:"tick_failures"`
	Alerts       int64   `json:"alerts"`
}

// NewStats creates stats backed by their own registry.
func NewStats() *Stats {
	r := metrics.NewRegistry()
	return &Stats{
		registry:     r,
		sessions:     metrics.GetOrRegisterCounter("stream.sessions", r),
		activeTimers: metrics.GetOrRegisterCounter("stream.active_timers", r),
		pushes:       metrics.GetOrRegisterMeter("stream.pushes", r),
		tickFailures: metrics.GetOrRegisterCounter("stream.tick_failures", r),
		alerts:       metrics.GetOrRegisterCounter("stream.alerts", r),
	}
}

// ActiveTimers returns the number of live poll timers across sessions.
func (s *Stats) ActiveTimers() int64 {
	return s.activeTimers.Count()
}

// Snapshot returns the current values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Sessions:     s.sessions.Count(),
		ActiveTimers: s.activeTimers.Count(),
		Pushes:       s.pushes.Count(),
		PushRate1m:   s.pushes.Rate1(),
		TickFailures: s.tickFailures.Count(),
		Alerts:       s.alerts.Count(),
	}
}

// Stop releases the meter's background ticker.
func (s *Stats) Stop() {
	s.pushes.Stop()
}
