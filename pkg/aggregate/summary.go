package aggregate

import (
	"time"

	"github.com/nicktill/thermonest/pkg/sensor"
	"gonum.org/v1/gonum/floats"
)

// Summary is the latest and highest reading of one series.
type Summary struct {
	Latest   float64   `json:"latest"`
	LatestAt time.Time `json:"latest_at"`
	Max      float64   `json:"max"`
	Count    int       `json:"count"`
}

// Summarize returns the summary of points, which must be in ascending time
// order. ok is false when points is empty.
func Summarize(points []sensor.Point) (Summary, bool) {
	if len(points) == 0 {
		return Summary{}, false
	}

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}

	last := points[len(points)-1]
	return Summary{
		Latest:   last.Value,
		LatestAt: last.Time,
		Max:      floats.Max(values),
		Count:    len(points),
	}, true
}
