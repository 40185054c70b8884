package sync

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// jitterFraction spreads job ticks by up to ±10% of the interval so that
// multiple instances do not hit the source API simultaneously.
const jitterFraction = 0.1

// Job is a named periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	// RunOnStart triggers one immediate run when the scheduler starts.
	RunOnStart bool
}

// Scheduler owns a set of periodic jobs and their lifecycle.
type Scheduler struct {
	mu   sync.Mutex
	jobs []Job

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Register adds a job. Jobs must be registered before Start.
func (s *Scheduler) Register(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run function is required", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.jobs {
		if existing.Name == job.Name {
			return fmt.Errorf("job %s already registered", job.Name)
		}
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start launches one loop per registered job.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(runCtx, job)
	}

	slog.Info("Scheduler started", "jobs", len(s.jobs))
}

// Stop cancels all job loops and waits for them to finish. A job in the
// middle of a run completes its current run first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

// RunNow executes one registered job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var found *Job
	for i := range s.jobs {
		if s.jobs[i].Name == name {
			found = &s.jobs[i]
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return fmt.Errorf("unknown job %s", name)
	}
	return found.Run(ctx)
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	defer s.wg.Done()

	if job.RunOnStart {
		s.runJob(ctx, job)
	}

	ticker := time.NewTicker(jitteredInterval(job.Interval))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runJob(ctx, job)
			ticker.Reset(jitteredInterval(job.Interval))
		case <-ctx.Done():
			slog.Debug("Job loop stopping", "job", job.Name)
			return
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		slog.Error("Scheduled job failed",
			"job", job.Name,
			"duration", time.Since(start),
			"error", err)
		return
	}
	slog.Debug("Scheduled job finished", "job", job.Name, "duration", time.Since(start))
}

func jitteredInterval(interval time.Duration) time.Duration {
	maxOffset := int64(float64(interval) * jitterFraction)
	if maxOffset <= 0 {
		return interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	offset := rand.Int64N(2*maxOffset) - maxOffset
	return interval + time.Duration(offset)
}
