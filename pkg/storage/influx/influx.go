package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/nicktill/thermonest/pkg/sensor"
	"github.com/nicktill/thermonest/pkg/storage"
)

// Storage implements storage.Storage and storage.Pivoter on an InfluxDB
// v2 bucket. Each reading is a point `<measurement>,source=<src> value=<v>`.
type Storage struct {
	client influxdb2.Client
	org    string
	bucket string
}

// Config holds InfluxDB connection settings
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// HTTP request timeout for every API call
	Timeout time.Duration
}

// New creates an InfluxDB storage backend. The connection is lazy; use
// Ping to check reachability.
func New(cfg Config) *Storage {
	opts := influxdb2.DefaultOptions()
	if cfg.Timeout > 0 {
		opts = opts.SetHTTPRequestTimeout(uint(cfg.Timeout / time.Second))
	}

	return &Storage{
		client: influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts),
		org:    cfg.Org,
		bucket: cfg.Bucket,
	}
}

// Ping reports whether the server is reachable
func (s *Storage) Ping(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("influxdb at %s is not ready", s.client.ServerURL())
	}
	return nil
}

// Write stores observations as points in the bucket
func (s *Storage) Write(ctx context.Context, obs []sensor.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	points := make([]*write.Point, 0, len(obs))
	for _, o := range obs {
		tags := map[string]string{}
		if o.Source != "" {
			tags["source"] = o.Source
		}
		points = append(points, influxdb2.NewPoint(
			string(o.Measurement),
			tags,
			map[string]interface{}{valueField: o.Value},
			o.Time,
		))
	}

	if err := s.client.WriteAPIBlocking(s.org, s.bucket).WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("failed to write points: %w", err)
	}
	return nil
}

// Query retrieves observations for the request's window, sorted by time
func (s *Storage) Query(ctx context.Context, req storage.QueryRequest) ([]sensor.Observation, error) {
	params, err := newFluxParams(s.bucket, req.Window, req.Measurements, req.Limit)
	if err != nil {
		return nil, err
	}
	flux, err := renderFlux("range", params)
	if err != nil {
		return nil, err
	}

	result, err := s.client.QueryAPI(s.org).Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer result.Close()

	var obs []sensor.Observation
	for result.Next() {
		rec := result.Record()
		o, ok := observationFromRecord(rec.Time(), rec.Measurement(), rec.Value(), rec.ValueByKey("source"))
		if !ok {
			continue
		}
		obs = append(obs, o)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("query result error: %w", err)
	}

	return obs, nil
}

// QueryPivot joins both measurements on timestamp server-side
func (s *Storage) QueryPivot(ctx context.Context, req storage.QueryRequest) ([]sensor.Row, error) {
	params, err := newFluxParams(s.bucket, req.Window, req.Measurements, 0)
	if err != nil {
		return nil, err
	}
	flux, err := renderFlux("pivot", params)
	if err != nil {
		return nil, err
	}

	result, err := s.client.QueryAPI(s.org).Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer result.Close()

	var rows []sensor.Row
	for result.Next() {
		rows = append(rows, rowFromValues(result.Record().Values()))
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("query result error: %w", err)
	}

	return rows, nil
}

// Delete removes sensor points older than the given time
func (s *Storage) Delete(ctx context.Context, before time.Time) error {
	for _, m := range sensor.Measurements {
		predicate := fmt.Sprintf("_measurement=%q", string(m))
		if err := s.client.DeleteAPI().DeleteWithName(ctx, s.org, s.bucket, time.Unix(0, 0), before, predicate); err != nil {
			return fmt.Errorf("failed to delete %s points: %w", m, err)
		}
	}
	return nil
}

// Close releases the client's HTTP resources
func (s *Storage) Close() error {
	s.client.Close()
	return nil
}

// Stats counts readings over the longest window
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	params, err := newFluxParams(s.bucket, sensor.Window30d, nil, 0)
	if err != nil {
		return nil, err
	}
	flux, err := renderFlux("count", params)
	if err != nil {
		return nil, err
	}

	result, err := s.client.QueryAPI(s.org).Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("stats query failed: %w", err)
	}
	defer result.Close()

	stats := &storage.Stats{}
	for result.Next() {
		if n, ok := result.Record().Value().(int64); ok {
			stats.TotalObservations += uint64(n)
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("stats result error: %w", err)
	}
	stats.TotalSeries = uint64(len(sensor.Measurements))

	return stats, nil
}

func observationFromRecord(ts time.Time, measurement string, value, source interface{}) (sensor.Observation, bool) {
	m, err := sensor.ParseMeasurement(measurement)
	if err != nil {
		return sensor.Observation{}, false
	}
	v, ok := toFloat(value)
	if !ok {
		return sensor.Observation{}, false
	}
	o := sensor.Observation{Time: ts, Value: v, Measurement: m}
	if src, ok := source.(string); ok {
		o.Source = src
	}
	return o, true
}

// rowFromValues converts a pivoted record. Columns missing from the record
// (no reading of that measurement at the instant) stay nil.
func rowFromValues(values map[string]interface{}) sensor.Row {
	var row sensor.Row
	if ts, ok := values["_time"].(time.Time); ok {
		row.Time = ts
	}
	for _, m := range sensor.Measurements {
		if v, ok := toFloat(values[string(m)]); ok {
			row.Set(m, v)
		}
	}
	if v, ok := toFloat(values["_value"]); ok {
		row.Value = sensor.Float(v)
	}
	return row
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
