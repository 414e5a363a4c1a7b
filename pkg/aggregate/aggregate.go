// Package aggregate turns raw sensor rows into chart series for a window.
package aggregate

import (
	"time"

	"github.com/nicktill/thermonest/pkg/sensor"
	"gonum.org/v1/gonum/stat"
)

// Chart is the display form of one window. Temperature and Humidity are
// parallel to Labels; a nil entry means the bucket had no reading of that
// measurement.
type Chart struct {
	Window      sensor.Window `json:"window"`
	Resolution  string        `json:"resolution"`
	Labels      []string      `json:"labels"`
	Temperature []*float64    `json:"temperature"`
	Humidity    []*float64    `json:"humidity"`
}

// Series returns the values for m.
func (c Chart) Series(m sensor.Measurement) []*float64 {
	switch m {
	case sensor.Temperature:
		return c.Temperature
	case sensor.Humidity:
		return c.Humidity
	}
	return nil
}

type bucket struct {
	label  string
	values map[sensor.Measurement][]float64
}

// Aggregate buckets rows according to the window's policy. Buckets are keyed
// by their start instant, so a 24h window holds yesterday's 10:00 and today's
// 10:00 apart even though both carry the same label. They are emitted in
// first-seen order; rows are expected in ascending
// time order and are never re-sorted here. loc is the viewer's zone.
func Aggregate(rows []sensor.Row, w sensor.Window, loc *time.Location) Chart {
	if loc == nil {
		loc = time.Local
	}
	policy := PolicyFor(w)

	chart := Chart{
		Window:      w,
		Resolution:  policy.Resolution(),
		Labels:      []string{},
		Temperature: []*float64{},
		Humidity:    []*float64{},
	}

	if policy.Bucket == 0 && !policy.Daily {
		for _, r := range rows {
			chart.Labels = append(chart.Labels, r.Time.In(loc).Format(policy.Layout))
			chart.Temperature = append(chart.Temperature, copyFloat(r.FieldOrValue(sensor.Temperature)))
			chart.Humidity = append(chart.Humidity, copyFloat(r.FieldOrValue(sensor.Humidity)))
		}
		return chart
	}

	var order []*bucket
	index := make(map[int64]*bucket)

	for _, r := range rows {
		start := policy.BucketStart(r.Time, loc)
		key := start.Unix()

		b, exists := index[key]
		if !exists {
			b = &bucket{label: start.Format(policy.Layout), values: make(map[sensor.Measurement][]float64)}
			index[key] = b
			order = append(order, b)
		}

		for _, m := range sensor.Measurements {
			v := r.Field(m)
			if v == nil && policy.Fallback {
				v = r.FieldOrValue(m)
			}
			if v != nil {
				b.values[m] = append(b.values[m], *v)
			}
		}
	}

	for _, b := range order {
		chart.Labels = append(chart.Labels, b.label)
		chart.Temperature = append(chart.Temperature, mean(b.values[sensor.Temperature]))
		chart.Humidity = append(chart.Humidity, mean(b.values[sensor.Humidity]))
	}

	return chart
}

// mean returns nil for an empty bucket, never zero.
func mean(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	return sensor.Float(stat.Mean(values, nil))
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return sensor.Float(*v)
}
