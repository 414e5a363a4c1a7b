package sensor

import (
	"fmt"
	"time"

	"github.com/nicktill/thermonest/pkg/errdefs"
)

// Measurement names a series of observations.
type Measurement string

const (
	Temperature Measurement = "temperature"
	Humidity    Measurement = "humidity"
)

// Measurements lists every series the dashboard knows about, in push order.
var Measurements = []Measurement{Temperature, Humidity}

// ParseMeasurement converts a path or payload value into a Measurement.
func ParseMeasurement(s string) (Measurement, error) {
	switch Measurement(s) {
	case Temperature, Humidity:
		return Measurement(s), nil
	}
	return "", fmt.Errorf("%w: unknown measurement %q", errdefs.ErrValidation, s)
}

// Observation is a single reading produced by the store. Observations are
// never mutated, only aggregated.
type Observation struct {
	Time        time.Time   `json:"_time"`
	Value       float64     `json:"_value"`
	Measurement Measurement `json:"_measurement"`
	Source      string      `json:"source,omitempty"`
}

// Point returns the push representation of the observation.
func (o Observation) Point() Point {
	return Point{Time: o.Time, Value: o.Value}
}

// Point is the element of a live push payload.
type Point struct {
	Time  time.Time `json:"_time"`
	Value float64   `json:"_value"`
}

// Points converts observations into push payload points, preserving order.
func Points(obs []Observation) []Point {
	points := make([]Point, len(obs))
	for i, o := range obs {
		points[i] = o.Point()
	}
	return points
}

// Row is one timestamp of the pivoted historical view. Temperature and
// Humidity are nil when the store had no reading for that instant. Value
// carries a raw single-series reading for rows that were never pivoted.
type Row struct {
	Time        time.Time `json:"_time"`
	Temperature *float64  `json:"temperature,omitempty"`
	Humidity    *float64  `json:"humidity,omitempty"`
	Value       *float64  `json:"_value,omitempty"`
}

// Field returns the pivoted value for m.
func (r Row) Field(m Measurement) *float64 {
	switch m {
	case Temperature:
		return r.Temperature
	case Humidity:
		return r.Humidity
	}
	return nil
}

// FieldOrValue returns the pivoted value for m, falling back to the raw
// single-value field when the pivoted one is absent.
func (r Row) FieldOrValue(m Measurement) *float64 {
	if v := r.Field(m); v != nil {
		return v
	}
	return r.Value
}

// Set stores v in the pivoted field for m.
func (r *Row) Set(m Measurement, v float64) {
	switch m {
	case Temperature:
		r.Temperature = Float(v)
	case Humidity:
		r.Humidity = Float(v)
	}
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}
