// Package scheduler provides periodic execution of correlation runs.
package scheduler

import (
	"context"
	"time"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/correlator"
	"github.com/victortong-git/soc-lite-aws-sub002/internal/logging"
)

// Scheduler periodically triggers task generation. Generation is
// idempotent, so the schedule can overlap with manual API triggers
// without coordination.
type Scheduler struct {
	correlator *correlator.Correlator
	interval   time.Duration
	log        *logging.Logger
	stop       chan struct{}
	stopped    chan struct{}
}

// New creates a new correlation scheduler.
func New(c *correlator.Correlator, interval time.Duration, log *logging.Logger) *Scheduler {
	return &Scheduler{
		correlator: c,
		interval:   interval,
		log:        log,
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

// Start begins the scheduler loop. This should be called in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	defer close(s.stopped)

	s.log.Info("correlation scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.run(ctx)

	for {
		select {
		case <-ticker.C:
			s.run(ctx)
		case <-s.stop:
			s.log.Info("correlation scheduler stopped")
			return
		case <-ctx.Done():
			s.log.Info("correlation scheduler context cancelled")
			return
		}
	}
}

// Stop signals the scheduler to stop and waits for it to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.stopped
}

func (s *Scheduler) run(ctx context.Context) {
	if _, err := s.correlator.GenerateTasks(ctx); err != nil {
		s.log.Error("scheduled correlation run failed", logging.Err(err))
	}
}
