package sdk

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nicktill/thermonest/pkg/ingest"
	"github.com/nicktill/thermonest/pkg/sdk/batch"
	"github.com/nicktill/thermonest/pkg/sdk/transport"
)

// DefaultEndpoint is the readings endpoint of a local server
const DefaultEndpoint = "http://localhost:5000/api/sensors/readings"

// ClientConfig holds configuration for a sensor client
type ClientConfig struct {
	Source     string        `json:"source"`
	Token      string        `json:"token"`
	Endpoint   string        `json:"endpoint"`
	FlushEvery time.Duration `json:"flush_every"`

	// Transport overrides the HTTP transport built from Endpoint and Token
	Transport transport.Transport `json:"-"`
}

// Client records readings for one sensor and ships them in batches
type Client struct {
	config  ClientConfig
	batcher *batch.Batcher
	now     func() time.Time

	mu      sync.Mutex
	started bool
}

// New creates a sensor client
func New(cfg ClientConfig) (*Client, error) {
	cfg.Source = strings.TrimSpace(cfg.Source)
	if cfg.Source == "" {
		return nil, fmt.Errorf("source name is required")
	}
	if len(cfg.Source) > ingest.MaxSourceLength {
		return nil, fmt.Errorf("source name longer than %d characters", ingest.MaxSourceLength)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.FlushEvery == 0 {
		cfg.FlushEvery = 5 * time.Second
	}

	trans := cfg.Transport
	if trans == nil {
		httpTransport, err := transport.NewHTTP(cfg.Endpoint, cfg.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		trans = httpTransport
	}

	return &Client{
		config: cfg,
		batcher: batch.New(trans, batch.Config{
			MaxBatchSize: ingest.MaxReadingsPerRequest,
			FlushEvery:   cfg.FlushEvery,
		}),
		now: time.Now,
	}, nil
}

// Record queues a reading stamped with the current time
func (c *Client) Record(temperature, humidity float64) error {
	return c.RecordAt(c.now(), temperature, humidity)
}

// RecordAt queues a reading taken at ts. Readings the server would reject
// are refused here instead of being dropped with the whole batch.
func (c *Client) RecordAt(ts time.Time, temperature, humidity float64) error {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return fmt.Errorf("client not started")
	}

	r := ingest.Reading{
		Source:      c.config.Source,
		Time:        ts.UTC(),
		Temperature: &temperature,
		Humidity:    &humidity,
	}
	if err := ingest.ValidateReading(r, c.now()); err != nil {
		return err
	}

	c.batcher.Add(r)
	return nil
}

// Start starts the background flush loop
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("client already started")
	}

	if err := c.batcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start batcher: %w", err)
	}
	c.started = true
	return nil
}

// Stop stops the client and flushes remaining readings
func (c *Client) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	c.mu.Unlock()

	if err := c.batcher.Stop(); err != nil {
		return fmt.Errorf("failed to flush readings: %w", err)
	}
	return nil
}

// Dropped returns how many readings were lost to failed sends
func (c *Client) Dropped() int64 {
	return c.batcher.Failed()
}
