package batch

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nicktill/thermonest/pkg/ingest"
	"github.com/nicktill/thermonest/pkg/sdk/transport"
)

// Config holds configuration for the batcher
type Config struct {
	MaxBatchSize int
	FlushEvery   time.Duration
}

// Batcher buffers readings and sends them periodically
type Batcher struct {
	config    Config
	transport transport.Transport

	readings []ingest.Reading
	mu       sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	flushing atomic.Bool // at most one flush in flight
	failed   atomic.Int64
}

// New creates a new batcher. MaxBatchSize is capped at the server's
// per-request limit.
func New(transport transport.Transport, config Config) *Batcher {
	if config.MaxBatchSize <= 0 || config.MaxBatchSize > ingest.MaxReadingsPerRequest {
		config.MaxBatchSize = ingest.MaxReadingsPerRequest
	}
	return &Batcher{
		config:    config,
		transport: transport,
		readings:  make([]ingest.Reading, 0, config.MaxBatchSize),
		ctx:       context.Background(),
		done:      make(chan struct{}),
	}
}

// Start starts the flush loop
func (b *Batcher) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	go b.flushLoop()
	return nil
}

// Add queues a reading. A full batch is flushed in the background.
func (b *Batcher) Add(r ingest.Reading) {
	b.mu.Lock()
	b.readings = append(b.readings, r)
	shouldFlush := len(b.readings) >= b.config.MaxBatchSize
	b.mu.Unlock()

	if shouldFlush && b.flushing.CompareAndSwap(false, true) {
		go func() {
			b.flush()
			b.flushing.Store(false)
		}()
	}
}

// Pending returns the number of queued readings
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readings)
}

// Failed returns the number of readings dropped after a failed send
func (b *Batcher) Failed() int64 {
	return b.failed.Load()
}

// Flush sends all pending readings and returns the transport's error
func (b *Batcher) Flush() error {
	batch := b.take()
	if len(batch) == 0 {
		return nil
	}
	return b.send(context.Background(), batch)
}

// Stop stops the batcher and flushes what is left
func (b *Batcher) Stop() error {
	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	return b.Flush()
}

func (b *Batcher) flushLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.config.FlushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			if b.flushing.CompareAndSwap(false, true) {
				b.flush()
				b.flushing.Store(false)
			}
		}
	}
}

// flush sends in the caller's goroutine; the flushing flag keeps it single.
func (b *Batcher) flush() {
	batch := b.take()
	if len(batch) == 0 {
		return
	}
	if err := b.send(b.ctx, batch); err != nil {
		log.Printf("Dropped %d readings: %v", len(batch), err)
	}
}

func (b *Batcher) take() []ingest.Reading {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.readings) == 0 {
		return nil
	}
	batch := make([]ingest.Reading, len(b.readings))
	copy(batch, b.readings)
	b.readings = b.readings[:0]
	return batch
}

func (b *Batcher) send(parent context.Context, batch []ingest.Reading) error {
	ctx, cancel := context.WithTimeout(parent, 5*time.Second)
	defer cancel()

	err := b.transport.Send(ctx, batch)
	if err != nil {
		b.failed.Add(int64(len(batch)))
	}
	return err
}
