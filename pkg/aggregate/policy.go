package aggregate

import (
	"strconv"
	"time"

	"github.com/nicktill/thermonest/pkg/sensor"
)

// Label layouts
const (
	LayoutShort = "15:04:05"
	LayoutMid   = "15:04"
	LayoutLong  = "02-01"
)

// Policy describes how one window is bucketed for display.
type Policy struct {
	// Bucket is the bucket width for mid windows; zero for pass-through
	// and calendar-day policies.
	Bucket time.Duration

	// Layout formats a bucket start into its label.
	Layout string

	// Daily buckets by calendar day in the viewer's zone.
	Daily bool

	// Fallback accepts the raw single-value field when the pivoted
	// field of a row is absent.
	Fallback bool
}

// PolicyFor returns the bucketing policy for w.
func PolicyFor(w sensor.Window) Policy {
	switch w {
	case sensor.Window1h:
		return Policy{Layout: LayoutShort, Fallback: true}
	case sensor.Window6h:
		return Policy{Bucket: 5 * time.Minute, Layout: LayoutMid, Fallback: true}
	case sensor.Window12h:
		return Policy{Bucket: 10 * time.Minute, Layout: LayoutMid, Fallback: true}
	case sensor.Window24h:
		return Policy{Bucket: 15 * time.Minute, Layout: LayoutMid, Fallback: true}
	default:
		return Policy{Layout: LayoutLong, Daily: true}
	}
}

// Resolution names the policy for chart consumers, e.g. "raw", "5m", "1d".
func (p Policy) Resolution() string {
	switch {
	case p.Daily:
		return "1d"
	case p.Bucket > 0:
		return shortDuration(p.Bucket)
	default:
		return "raw"
	}
}

// BucketStart rounds t down to the start of its bucket in loc.
func (p Policy) BucketStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	switch {
	case p.Daily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	case p.Bucket > 0:
		step := int(p.Bucket / time.Minute)
		minutes := (t.Minute() / step) * step
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minutes, 0, 0, loc)
	default:
		return t
	}
}

func shortDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return strconv.Itoa(int(d/time.Hour)) + "h"
	}
	return strconv.Itoa(int(d/time.Minute)) + "m"
}
