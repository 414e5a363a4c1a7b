package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nicktill/thermonest/pkg/errdefs"
	"github.com/nicktill/thermonest/pkg/sensor"
	"github.com/relvacode/iso8601"
)

// Reading is one sample from a sensor: both values taken at the same instant.
type Reading struct {
	Source      string    `json:"source"`
	Time        time.Time `json:"time"`
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
}

// Observations splits the reading into one observation per measurement.
func (r Reading) Observations() []sensor.Observation {
	return []sensor.Observation{
		{Time: r.Time, Value: *r.Temperature, Measurement: sensor.Temperature, Source: r.Source},
		{Time: r.Time, Value: *r.Humidity, Measurement: sensor.Humidity, Source: r.Source},
	}
}

// jsonReading is the wire form. Time is free-form ISO 8601 so that devices
// without a full RFC 3339 formatter can still stamp readings.
type jsonReading struct {
	Source      string   `json:"source"`
	Time        string   `json:"time"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
}

func (j jsonReading) reading(now time.Time) (Reading, error) {
	r := Reading{
		Source:      strings.TrimSpace(j.Source),
		Time:        now,
		Temperature: j.Temperature,
		Humidity:    j.Humidity,
	}
	if j.Time != "" {
		ts, err := iso8601.ParseString(j.Time)
		if err != nil {
			return Reading{}, fmt.Errorf("%w: bad time %q: %v", errdefs.ErrValidation, j.Time, err)
		}
		r.Time = ts
	}
	return r, nil
}

// UnmarshalJSON accepts ISO 8601 timestamps in any of the forms iso8601 parses.
func (r *Reading) UnmarshalJSON(b []byte) error {
	var j jsonReading
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	parsed, err := j.reading(time.Time{})
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParsePayload decodes an MQTT payload. Two forms are accepted: the serial
// line "<temperature>,<humidity>" and a JSON object. The source defaults to
// the topic's wildcard segment and readings without a time get now.
func ParsePayload(topic, pattern string, payload []byte, now time.Time) (Reading, error) {
	if len(payload) > MaxPayloadBytes {
		return Reading{}, ErrPayloadTooLarge
	}

	text := strings.TrimSpace(string(payload))
	var r Reading

	if strings.HasPrefix(text, "{") {
		var j jsonReading
		if err := json.Unmarshal([]byte(text), &j); err != nil {
			return Reading{}, fmt.Errorf("%w: invalid JSON payload: %v", errdefs.ErrValidation, err)
		}
		var err error
		if r, err = j.reading(now); err != nil {
			return Reading{}, err
		}
	} else {
		fields := strings.Split(text, ",")
		if len(fields) != 2 {
			return Reading{}, fmt.Errorf("%w: expected \"temperature,humidity\", got %q", errdefs.ErrValidation, text)
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return Reading{}, fmt.Errorf("%w: bad temperature %q", errdefs.ErrValidation, fields[0])
		}
		h, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return Reading{}, fmt.Errorf("%w: bad humidity %q", errdefs.ErrValidation, fields[1])
		}
		r = Reading{Time: now, Temperature: &t, Humidity: &h}
	}

	if r.Source == "" {
		r.Source = SourceFromTopic(pattern, topic)
	}
	return r, ValidateReading(r, now)
}

// SourceFromTopic returns the topic level matched by the first single-level
// wildcard in pattern, or "" when the pattern has none.
func SourceFromTopic(pattern, topic string) string {
	pl := strings.Split(pattern, "/")
	tl := strings.Split(topic, "/")
	for i, level := range pl {
		if level == "+" && i < len(tl) {
			return tl[i]
		}
	}
	return ""
}
