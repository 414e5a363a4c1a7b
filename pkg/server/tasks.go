package server

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/nicktill/thermonest/pkg/config"
	"github.com/nicktill/thermonest/pkg/server/monitor"
	"github.com/nicktill/thermonest/pkg/storage"
	"github.com/nicktill/thermonest/pkg/storage/badger"
)

// retention retry policy
const (
	retentionRetries   = 3
	retentionBaseDelay = 30 * time.Second
)

// Maintenance runs the store's background jobs: retention for stores that
// keep data forever otherwise, and value log GC for badger.
type Maintenance struct {
	store     storage.Storage
	monitor   *monitor.RetentionMonitor
	scheduler *gocron.Scheduler
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	baseDelay time.Duration
}

// NewMaintenance creates the job runner. A nil monitor disables retention.
func NewMaintenance(store storage.Storage, mon *monitor.RetentionMonitor) *Maintenance {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Maintenance{
		store:     store,
		monitor:   mon,
		scheduler: s,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		baseDelay: retentionBaseDelay,
	}
}

// Start schedules the jobs. Retention runs once immediately, then every
// RetentionInterval; GC waits for its first interval.
func (m *Maintenance) Start() error {
	if m.monitor != nil {
		if _, err := m.scheduler.Every(config.RetentionInterval).Do(m.RunRetention); err != nil {
			return err
		}
		log.Printf("Retention scheduler started (keeps %v, runs every %v)", config.RetentionWindow, config.RetentionInterval)
	}

	if bs, ok := m.store.(*badger.Storage); ok {
		_, err := m.scheduler.Every(config.BadgerGCInterval).WaitForSchedule().Do(func() {
			_ = runBadgerGC(bs)
		})
		if err != nil {
			return err
		}
		log.Printf("BadgerDB GC scheduler started (runs every %v)", config.BadgerGCInterval)
	}

	m.scheduler.StartAsync()
	return nil
}

// Stop cancels any running job and stops the scheduler.
func (m *Maintenance) Stop() {
	m.cancel()
	m.scheduler.Stop()
	log.Println("Stopped maintenance scheduler")
}

// RunRetention deletes observations older than the longest window, retrying
// with exponential backoff before giving up until the next run.
func (m *Maintenance) RunRetention() {
	for attempt := 0; attempt <= retentionRetries; attempt++ {
		if attempt > 0 {
			delay := m.baseDelay * time.Duration(1<<(attempt-1)) // 30s, 60s, 120s
			log.Printf("Retrying retention in %v (attempt %d/%d)...", delay, attempt+1, retentionRetries+1)
			select {
			case <-time.After(delay):
			case <-m.ctx.Done():
				return
			}
		}

		start := time.Now()
		cutoff := m.now().Add(-config.RetentionWindow)
		err := m.store.Delete(m.ctx, cutoff)

		if err == nil {
			m.monitor.RecordSuccess(cutoff)
			log.Printf("Retention completed in %v (removed data before %s)",
				time.Since(start).Round(time.Millisecond), cutoff.Format(time.RFC3339))
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}

		m.monitor.RecordFailure(err)
		log.Printf("Retention failed (attempt %d/%d): %v", attempt+1, retentionRetries+1, err)

		if n := m.monitor.ConsecutiveErrors(); n > 3 {
			log.Printf("ALERT: Retention has been failing! Consecutive errors: %d", n)
		}
	}

	log.Printf("Retention failed after %d attempts, will retry on next schedule", retentionRetries+1)
}

// valueLogCollector is the part of the badger store the GC job needs.
type valueLogCollector interface {
	RunGC(discardRatio float64) error
}

// runBadgerGC reclaims value log space. BadgerDB's LSM tree keeps deleted
// entries in the value log until GC rewrites the file. Nothing to rewrite is
// a normal outcome; any other error is returned.
func runBadgerGC(store valueLogCollector) error {
	start := time.Now()

	// 0.5: rewrite a file once half of it is garbage
	err := store.RunGC(0.5)
	switch {
	case err == nil:
		log.Printf("GC completed in %v (disk space reclaimed)", time.Since(start).Round(time.Millisecond))
		return nil
	case errors.Is(err, badger.ErrNoRewrite):
		log.Printf("GC completed in %v (no rewrite needed)", time.Since(start).Round(time.Millisecond))
		return nil
	default:
		log.Printf("GC failed after %v: %v", time.Since(start).Round(time.Millisecond), err)
		return err
	}
}
