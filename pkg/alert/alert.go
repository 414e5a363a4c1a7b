// Package alert decides when an out-of-band sensor reading should be shown
// to a viewer.
package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/nicktill/thermonest/pkg/sensor"
)

// Debounce is the minimum gap between two alerts for the same metric.
const Debounce = time.Hour

// Band is the inclusive safe range of a metric.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v is inside the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// DefaultBands are the indoor comfort ranges. Temperature is in Celsius.
var DefaultBands = map[sensor.Measurement]Band{
	sensor.Humidity:    {Min: 30, Max: 50},
	sensor.Temperature: {Min: 18, Max: 26},
}

var messages = map[sensor.Measurement]string{
	sensor.Humidity:    "Humidity Alert: The ideal humidity is between 30% and 50%.",
	sensor.Temperature: "Temperature Alert: Recommended indoor temperature is between 18°C and 26°C.",
}

// ShouldAlert reports whether value is outside the metric's safe band and the
// last alert for it (zero = never) is at least Debounce old.
func ShouldAlert(metric sensor.Measurement, value float64, lastAlertedAt, now time.Time) bool {
	band, ok := DefaultBands[metric]
	if !ok || band.Contains(value) {
		return false
	}
	return lastAlertedAt.IsZero() || now.Sub(lastAlertedAt) >= Debounce
}

// Alert is the notification pushed to a viewer.
type Alert struct {
	Metric  sensor.Measurement `json:"metric"`
	Value   float64            `json:"value"`
	Min     float64            `json:"min"`
	Max     float64            `json:"max"`
	Message string             `json:"message"`
	At      time.Time          `json:"at"`
}

func newAlert(metric sensor.Measurement, value float64, now time.Time) Alert {
	band := DefaultBands[metric]
	msg, ok := messages[metric]
	if !ok {
		msg = fmt.Sprintf("%s out of range", metric)
	}
	return Alert{
		Metric:  metric,
		Value:   value,
		Min:     band.Min,
		Max:     band.Max,
		Message: msg,
		At:      now,
	}
}

// Debouncer holds the last-alerted time per metric for one session.
// It is never persisted.
type Debouncer struct {
	mu   sync.Mutex
	last map[sensor.Measurement]time.Time
}

// NewDebouncer creates an empty debouncer
func NewDebouncer() *Debouncer {
	return &Debouncer{last: make(map[sensor.Measurement]time.Time)}
}

// Evaluate returns an alert when ShouldAlert is true, recording now as the
// metric's last-alerted time before returning.
func (d *Debouncer) Evaluate(metric sensor.Measurement, value float64, now time.Time) (Alert, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !ShouldAlert(metric, value, d.last[metric], now) {
		return Alert{}, false
	}
	d.last[metric] = now
	return newAlert(metric, value, now), true
}

// LastAlerted returns the last-alerted time for metric (zero if never).
func (d *Debouncer) LastAlerted(metric sensor.Measurement) time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last[metric]
}
