package gallery

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultRefreshInterval is the reference refresh cadence.
const DefaultRefreshInterval = 3 * time.Second

// ErrSchedulerRunning is returned by Start when a task is already scheduled.
var ErrSchedulerRunning = errors.New("scheduler already running")

// Task is one scheduled cycle. It must return promptly once ctx is done.
type Task func(ctx context.Context)

// Scheduler runs a Task on a fixed interval from a single goroutine,
// so cycles never overlap. A cycle that overruns the interval delays the next one.
type Scheduler struct {
	interval time.Duration

	opMu sync.Mutex // serializes Start, Stop and Replace

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	cycles uint64
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Scheduler{interval: interval}
}

// Interval returns the tick interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start schedules task. The first cycle runs one interval after Start.
func (s *Scheduler) Start(ctx context.Context, task Task) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrSchedulerRunning
	}
	s.startLocked(ctx, task)
	return nil
}

// Replace stops the current task, waiting for an in-flight cycle, and schedules task.
func (s *Scheduler) Replace(ctx context.Context, task Task) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.startLocked(ctx, task)
}

// Stop cancels the in-flight cycle and waits for the loop to exit.
// It must not be called from within a Task.
func (s *Scheduler) Stop() {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.stop()
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a task is scheduled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Cycles returns the number of cycles run since creation.
func (s *Scheduler) Cycles() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

func (s *Scheduler) startLocked(ctx context.Context, task Task) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go s.loop(ctx, task, done)
}

func (s *Scheduler) loop(ctx context.Context, task Task, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// A tick and cancellation may be ready together
		if ctx.Err() != nil {
			return
		}
		task(ctx)

		s.mu.Lock()
		s.cycles++
		s.mu.Unlock()
	}
}
