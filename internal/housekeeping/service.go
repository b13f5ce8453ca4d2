// filepath: internal/housekeeping/service.go
// Package housekeeping keeps backups and archives within their retention
// limits, on a timer or whenever new files appear.
package housekeeping

import (
	"sync"
	"time"

	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/logging"
	"github.com/nerdpraxis/VTS-ParameterControlPanel/internal/models"
)

const (
	// DefaultCheckInterval is used when no valid interval is configured.
	DefaultCheckInterval = 1 * time.Hour
	// MinCheckInterval is the minimum time between checks to prevent busy-looping.
	MinCheckInterval = 1 * time.Minute
)

// Service provides the background worker for automated housekeeping.
type Service struct {
	Deps Dependencies
	// OnRun, when set, receives the report of every run.
	OnRun func(*models.HousekeepingReport)

	timer    *time.Timer
	stopCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	lastRun time.Time
	now     func() time.Time
}

// NewService creates a new housekeeping service instance.
func NewService(deps Dependencies) *Service {
	return &Service{
		Deps:   deps,
		stopCh: make(chan struct{}),
		now:    time.Now,
	}
}

// Start kicks off the background housekeeping service.
func (s *Service) Start() {
	logging.Log.Info("Starting background housekeeping service.")
	s.timer = time.NewTimer(0) // Fire immediately on start

	go func() {
		for {
			select {
			case <-s.timer.C:
				s.runChecks()
				nextRun := s.scheduleNextRun()
				s.timer.Reset(nextRun)
				logging.Log.Infof("Next housekeeping check scheduled in %v.", nextRun)
			case <-s.stopCh:
				s.timer.Stop()
				return
			}
		}
	}()
}

// Stop terminates the background housekeeping service.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		logging.Log.Info("Stopping background housekeeping service.")
		close(s.stopCh)
	})
}

// LastRun returns when housekeeping last ran.
func (s *Service) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// RunNow runs every task immediately and resets the schedule.
func (s *Service) RunNow() (*models.HousekeepingReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := Run(s.Deps)
	s.lastRun = s.now()
	if err != nil {
		return nil, err
	}
	logging.Log.Infof("Housekeeping run finished: %s", report.Message)
	if s.OnRun != nil {
		s.OnRun(report)
	}
	return report, nil
}

// scheduleNextRun calculates the duration until the next housekeeping event.
func (s *Service) scheduleNextRun() time.Duration {
	interval := s.Deps.Policy.Interval
	if interval <= 0 {
		return DefaultCheckInterval
	}

	next := s.LastRun().Add(interval).Sub(s.now())
	if next < MinCheckInterval {
		return MinCheckInterval
	}
	return next
}

// runChecks runs housekeeping when the interval has elapsed.
func (s *Service) runChecks() {
	interval := s.Deps.Policy.Interval
	if interval <= 0 {
		logging.Log.Debug("Housekeeping service: interval is 0, skipping.")
		return
	}
	if !s.LastRun().Add(interval).Before(s.now()) {
		return
	}

	logging.Log.Info("Housekeeping interval elapsed. Running cleanup...")
	if _, err := s.RunNow(); err != nil {
		logging.Log.Errorf("Housekeeping run failed: %v", err)
	}
}
