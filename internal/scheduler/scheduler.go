// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"sync"
	"time"

	"nudge-engine/internal/common/logger"
	"nudge-engine/internal/common/observability"
)

// Task is one named periodic job. Run receives a context cancelled on
// shutdown and returns the task's own error; the scheduler logs failures and
// keeps ticking.
type Task struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Scheduler drives each registered task on its own ticker goroutine. Tasks
// never overlap with themselves: the next tick waits for the previous run to
// return.
type Scheduler struct {
	logger logger.Logger
	obs    *observability.Observability
	tasks  []Task

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(log logger.Logger, obs *observability.Observability) *Scheduler {
	return &Scheduler{
		logger: log,
		obs:    obs,
	}
}

// Register adds a task. Must be called before Start.
func (s *Scheduler) Register(t Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.logger.Warn("task registered after start, ignoring", map[string]interface{}{
			"task": t.Name,
		})
		return
	}
	s.tasks = append(s.tasks, t)
}

// Start launches every registered task and returns immediately. Each task
// runs once at startup, then on its interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(runCtx, t)
	}

	s.logger.Info("scheduler started", map[string]interface{}{
		"tasks": len(s.tasks),
	})
}

// Stop cancels all task contexts and blocks until in-flight runs finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped", nil)
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(t.Every)
	defer ticker.Stop()

	s.runOnce(ctx, t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, t Task) {
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := t.Run(ctx)
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		s.logger.WithError(err).Error("scheduled task failed", map[string]interface{}{
			"task":        t.Name,
			"duration_ms": elapsed.Milliseconds(),
		})
	} else {
		s.logger.Info("scheduled task completed", map[string]interface{}{
			"task":        t.Name,
			"duration_ms": elapsed.Milliseconds(),
		})
	}

	if s.obs != nil {
		s.obs.RecordTaskRun(ctx, t.Name, status)
		s.obs.RecordTaskDuration(ctx, t.Name, elapsed, status)
	}
}
