package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eth-reserves/internal/logging"
	"github.com/eth-reserves/internal/types"
)

// DailyRunner executes one daily run
type DailyRunner interface {
	Run(ctx context.Context, day types.SnapshotDay) (*DailyRunResult, error)
}

// SnapshotScheduler triggers the daily run once per day at a fixed UTC hour
type SnapshotScheduler struct {
	runner  DailyRunner
	hourUTC int
	now     func() time.Time

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	running  bool
}

// NewSnapshotScheduler creates a scheduler that fires at hourUTC every day
func NewSnapshotScheduler(runner DailyRunner, hourUTC int) *SnapshotScheduler {
	return &SnapshotScheduler{
		runner:  runner,
		hourUTC: hourUTC,
		now:     time.Now,
	}
}

// NextRun returns the first trigger time strictly after t
func (s *SnapshotScheduler) NextRun(t time.Time) time.Time {
	u := t.UTC()
	next := time.Date(u.Year(), u.Month(), u.Day(), s.hourUTC, 0, 0, 0, time.UTC)
	if !next.After(u) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start begins the scheduling loop in the background
func (s *SnapshotScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("snapshot scheduler is already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(ctx, s.stopChan, s.done)
	return nil
}

func (s *SnapshotScheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	logger := logging.FromContext(ctx).WithField("component", "snapshot_scheduler")

	for {
		next := s.NextRun(s.now())
		wait := next.Sub(s.now())
		logger.WithField("nextRun", next.Format(time.RFC3339)).Infof("next snapshot in %s", wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			day := types.DayOf(next)
			if _, err := s.runner.Run(ctx, day); err != nil {
				logger.WithField("day", day.String()).WithError(err).Error("scheduled snapshot run failed")
			}
		case <-stop:
			timer.Stop()
			logger.Info("snapshot scheduler stopped")
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// Stop stops the scheduler and waits for an in-flight run to finish
func (s *SnapshotScheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("snapshot scheduler is not running")
	}
	s.running = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	return nil
}
