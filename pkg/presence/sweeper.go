package presence

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Sweeper periodically evicts expired records from a Registry.
type Sweeper struct {
	scheduler *gocron.Scheduler
	registry  *Registry
	interval  time.Duration
}

// NewSweeper creates a sweeper; call Start to begin.
func NewSweeper(registry *Registry, interval time.Duration) *Sweeper {
	return &Sweeper{
		scheduler: gocron.NewScheduler(time.UTC),
		registry:  registry,
		interval:  interval,
	}
}

// Start schedules the sweep and starts the underlying scheduler.
func (s *Sweeper) Start() error {
	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(func() {
		if n := s.registry.Sweep(s.registry.Now()); n > 0 {
			log.Printf("Presence sweep removed %d expired users", n)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	log.Printf("Presence sweeper started (every %v)", s.interval)
	return nil
}

// Stop stops the scheduler.
func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
