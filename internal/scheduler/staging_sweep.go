// Package scheduler runs periodic maintenance jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// StagingSweeper is implemented by blob backends that leave staging files
// behind when the process dies mid-write.
type StagingSweeper interface {
	SweepStaging(maxAge time.Duration) (int, error)
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := scheduleParser.Parse(schedule)
	return err
}

// StagingSweepScheduler periodically removes abandoned staging files.
type StagingSweepScheduler struct {
	sweeper  StagingSweeper
	schedule string
	maxAge   time.Duration

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewStagingSweepScheduler creates a new scheduler instance
func NewStagingSweepScheduler(sweeper StagingSweeper, schedule string, maxAge time.Duration) *StagingSweepScheduler {
	return &StagingSweepScheduler{
		sweeper:  sweeper,
		schedule: schedule,
		maxAge:   maxAge,
		cron:     cron.New(cron.WithParser(scheduleParser)),
	}
}

// Start begins the scheduler. An empty schedule disables it.
func (s *StagingSweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if s.schedule == "" {
		log.Printf("Staging sweep scheduler: disabled")
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.runSweep()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule staging sweep: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Staging sweep scheduler: started with schedule '%s', max age %v", s.schedule, s.maxAge)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler
func (s *StagingSweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	// Stop accepting new jobs and wait for running jobs to complete
	ctx := s.cron.Stop()
	<-ctx.Done()

	if s.cancelFunc != nil {
		s.cancelFunc()
	}
	s.isRunning = false
	s.cancelFunc = nil

	log.Printf("Staging sweep scheduler: stopped")
}

// RunNow performs a sweep synchronously and returns how many files were removed.
func (s *StagingSweepScheduler) RunNow() (int, error) {
	return s.sweeper.SweepStaging(s.maxAge)
}

// IsRunning returns whether the scheduler is active
func (s *StagingSweepScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next sweep will occur
func (s *StagingSweepScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *StagingSweepScheduler) runSweep() {
	removed, err := s.sweeper.SweepStaging(s.maxAge)
	if err != nil {
		log.Printf("Staging sweep: failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("Staging sweep: removed %d abandoned staging files", removed)
	}
}
