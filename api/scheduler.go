/*
scheduler.go - Time-based auto-approval scheduler

PURPOSE:
  Periodically resolves workflow steps whose delayed auto-approval is due.
  Each tick calls Engine.ProcessPendingTimeBasedApprovals; the engine
  takes care of not advancing a request twice when a tick overlaps a
  manual run from the admin endpoint.

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 minute)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewApprovalScheduler(engine)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunTimeBasedApprovals endpoint (manual sweep)
  - leave/workflow.go: the sweep itself
*/
package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/warp/leave-engine/leave"
)

// ApprovalScheduler runs the time-based auto-approval sweep on a ticker.
type ApprovalScheduler struct {
	Engine        *leave.Engine
	CheckInterval time.Duration
	Enabled       bool
	Log           *log.Entry

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewApprovalScheduler(engine *leave.Engine) *ApprovalScheduler {
	return &ApprovalScheduler{
		Engine:        engine,
		CheckInterval: time.Minute,
		Enabled:       true,
		Log:           log.WithField("component", "scheduler"),
		stop:          make(chan bool),
	}
}

// Start begins the scheduler. The first sweep runs immediately.
func (s *ApprovalScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Log.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)
	go s.run()

	s.Log.WithField("interval", s.CheckInterval).Info("started")
}

// Stop stops the scheduler and waits for an in-flight sweep.
func (s *ApprovalScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.ticker = nil
		s.Log.Info("stopped")
	}
}

func (s *ApprovalScheduler) run() {
	defer s.wg.Done()

	s.RunNow(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.RunNow(context.Background())
		case <-s.stop:
			return
		}
	}
}

// RunNow performs one sweep and logs what it did.
func (s *ApprovalScheduler) RunNow(ctx context.Context) leave.SweepResult {
	result, err := s.Engine.ProcessPendingTimeBasedApprovals(ctx)
	if err != nil {
		s.Log.WithError(err).Error("time-based approval sweep failed")
		return result
	}
	if result.Due > 0 {
		s.Log.WithField("due", result.Due).
			WithField("advanced", result.Advanced).
			WithField("approved", result.Approved).
			WithField("skipped", result.Skipped).
			WithField("errors", result.Errors).
			Info("time-based approval sweep completed")
	}
	return result
}

// NextRunTime is when the ticker fires next, approximately.
func (s *ApprovalScheduler) NextRunTime() time.Time {
	return time.Now().Add(s.CheckInterval)
}
