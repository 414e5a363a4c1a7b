// Package query is the read path from the observation store to HTTP and
// the live stream: window validation, breaker-guarded store access, and
// the sensor REST handlers.
package query

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/nicktill/thermonest/pkg/config"
	"github.com/nicktill/thermonest/pkg/errdefs"
	"github.com/nicktill/thermonest/pkg/sensor"
	"github.com/nicktill/thermonest/pkg/storage"
	"github.com/sony/gobreaker"
)

// Fetcher is the read contract used by the live stream and the REST handlers.
type Fetcher interface {
	FetchRange(ctx context.Context, m sensor.Measurement, w sensor.Window) ([]sensor.Observation, error)
	FetchCombinedRange(ctx context.Context, w sensor.Window) ([]sensor.Row, error)
}

// Adapter translates (measurement, window) requests into store queries.
// Every store failure surfaces as errdefs.ErrUpstreamQuery; results are
// never partial.
type Adapter struct {
	store   storage.Storage
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	now     func() time.Time
}

// NewAdapter creates an adapter over store
func NewAdapter(store storage.Storage) *Adapter {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sensor-store",
		MaxRequests: config.BreakerMaxRequests,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailureTrigger
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
		// A caller going away says nothing about the store's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Adapter{
		store:   store,
		breaker: cb,
		timeout: config.QueryTimeout,
		now:     time.Now,
	}
}

// FetchRange returns the observations of m over w in ascending time order.
func (a *Adapter) FetchRange(ctx context.Context, m sensor.Measurement, w sensor.Window) ([]sensor.Observation, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrInvalidRange, w)
	}
	if _, err := sensor.ParseMeasurement(string(m)); err != nil {
		return nil, err
	}

	req := storage.QueryRequest{
		Window:       w,
		Measurements: []sensor.Measurement{m},
		Now:          a.now(),
	}

	res, err := a.execute(ctx, func(ctx context.Context) (interface{}, error) {
		return a.store.Query(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	obs := res.([]sensor.Observation)
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Time.Before(obs[j].Time)
	})
	return obs, nil
}

// FetchCombinedRange returns one row per timestamp with both measurements
// joined, in ascending time order.
func (a *Adapter) FetchCombinedRange(ctx context.Context, w sensor.Window) ([]sensor.Row, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrInvalidRange, w)
	}

	req := storage.QueryRequest{
		Window:       w,
		Measurements: sensor.Measurements,
		Now:          a.now(),
	}

	res, err := a.execute(ctx, func(ctx context.Context) (interface{}, error) {
		if p, ok := a.store.(storage.Pivoter); ok {
			return p.QueryPivot(ctx, req)
		}
		obs, err := a.store.Query(ctx, req)
		if err != nil {
			return nil, err
		}
		return Pivot(obs), nil
	})
	if err != nil {
		return nil, err
	}

	rows := res.([]sensor.Row)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Time.Before(rows[j].Time)
	})
	return rows, nil
}

// execute runs fn under the breaker with the query timeout applied.
func (a *Adapter) execute(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := a.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errdefs.ErrUpstreamQuery, err)
	}
	return res, nil
}

// Pivot merges observations sharing a timestamp into one row. Later
// readings of the same measurement at the same instant win.
func Pivot(obs []sensor.Observation) []sensor.Row {
	index := make(map[int64]int, len(obs))
	rows := make([]sensor.Row, 0, len(obs))

	for _, o := range obs {
		key := o.Time.UnixNano()
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, sensor.Row{Time: o.Time})
		}
		rows[i].Set(o.Measurement, o.Value)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Time.Before(rows[j].Time)
	})
	return rows
}

// State reports the breaker state, for health checks.
func (a *Adapter) State() string {
	return a.breaker.State().String()
}
