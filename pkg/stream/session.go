package stream

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nicktill/thermonest/pkg/aggregate"
	"github.com/nicktill/thermonest/pkg/alert"
	"github.com/nicktill/thermonest/pkg/config"
	"github.com/nicktill/thermonest/pkg/query"
	"github.com/nicktill/thermonest/pkg/sensor"
	"golang.org/x/sync/errgroup"
)

// Event names on the push channel
const (
	EventTemperature  = "temperature"
	EventHumidity     = "humidity"
	EventAlert        = "alert"
	EventSetTimeRange = "setTimeRange"
)

// ErrSessionClosed is returned by SetWindow after Close.
var ErrSessionClosed = errors.New("session closed")

// Sink delivers one event to one connection.
type Sink interface {
	Send(event string, data interface{}) error
}

// Options tune a Session. Zero values take the config defaults.
type Options struct {
	Interval     time.Duration
	QueryTimeout time.Duration
	Clock        func() time.Time
	Stats        *Stats

	// Alerts enables the alert event after each push.
	Alerts bool
}

// Session is one connection's live subscription. It owns at most one poll
// timer: SetWindow stops the previous timer before installing a new one,
// and only the live window gets a timer at all.
type Session struct {
	ID string

	fetcher query.Fetcher
	sink    Sink
	opts    Options
	alerts  *alert.Debouncer

	// ctl serializes SetWindow, Cancel and Close
	ctl sync.Mutex

	mu     sync.Mutex
	window sensor.Window
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewSession creates an idle session pushing to sink.
func NewSession(fetcher query.Fetcher, sink Sink, opts Options) *Session {
	if opts.Interval <= 0 {
		opts.Interval = config.LiveInterval
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = config.LiveQueryTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Stats == nil {
		opts.Stats = NewStats()
	}

	s := &Session{
		ID:      uuid.NewString(),
		fetcher: fetcher,
		sink:    sink,
		opts:    opts,
	}
	if opts.Alerts {
		s.alerts = alert.NewDebouncer()
	}
	return s
}

// SetWindow cancels any running timer and, if w is the live window,
// installs a new one. The first push happens immediately.
func (s *Session) SetWindow(w sensor.Window) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}

	s.stop()

	s.mu.Lock()
	s.window = w
	s.mu.Unlock()

	if w.Live() {
		s.start()
	}
	return nil
}

// Cancel stops the timer, leaving the session open and idle.
func (s *Session) Cancel() {
	s.ctl.Lock()
	defer s.ctl.Unlock()
	s.stop()
}

// Close stops the timer for good. It is safe to call more than once.
func (s *Session) Close() {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.stop()
}

// Window returns the last requested window (zero if none).
func (s *Session) Window() sensor.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// Polling reports whether a timer is installed.
func (s *Session) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// start installs the timer goroutine. Caller holds ctl.
func (s *Session) start() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.opts.Stats.activeTimers.Inc(1)
	go s.run(ctx, done)
}

// stop cancels the timer and waits for its goroutine to exit, so no push
// can happen after it returns. Caller holds ctl.
func (s *Session) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.opts.Stats.activeTimers.Dec(1)
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	var consecutiveErrors int
	var lastErrorTime time.Time

	for {
		if err := s.tick(ctx); err != nil && ctx.Err() == nil {
			consecutiveErrors++
			s.opts.Stats.tickFailures.Inc(1)

			// Log with exponential backoff so an outage does not spam
			now := time.Now()
			backoff := time.Duration(1<<uint(min(consecutiveErrors-1, 8))) * time.Second
			if lastErrorTime.IsZero() || now.Sub(lastErrorTime) >= backoff {
				log.Printf("Live tick failed for session %s (error #%d): %v", s.ID, consecutiveErrors, err)
				lastErrorTime = now
			}
		} else if err == nil && consecutiveErrors > 0 {
			log.Printf("Live updates for session %s recovered after %d errors", s.ID, consecutiveErrors)
			consecutiveErrors = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick fetches both measurements over the live window and pushes them.
// Nothing is pushed unless both fetches succeed, and results arriving
// after cancellation are discarded.
func (s *Session) tick(ctx context.Context) error {
	tctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	results := make([][]sensor.Observation, len(sensor.Measurements))
	g, gctx := errgroup.WithContext(tctx)
	for i, m := range sensor.Measurements {
		i, m := i, m
		g.Go(func() error {
			obs, err := s.fetcher.FetchRange(gctx, m, sensor.LiveWindow)
			if err != nil {
				return err
			}
			results[i] = obs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return nil
	}

	for i, m := range sensor.Measurements {
		points := sensor.Points(results[i])
		if err := s.sink.Send(string(m), points); err != nil {
			return err
		}
		s.opts.Stats.pushes.Mark(1)
	}

	if s.alerts == nil {
		return nil
	}
	now := s.opts.Clock()
	for i, m := range sensor.Measurements {
		summary, ok := aggregate.Summarize(sensor.Points(results[i]))
		if !ok {
			continue
		}
		if a, fire := s.alerts.Evaluate(m, summary.Latest, now); fire {
			if err := s.sink.Send(EventAlert, a); err != nil {
				return err
			}
			s.opts.Stats.alerts.Inc(1)
		}
	}
	return nil
}
