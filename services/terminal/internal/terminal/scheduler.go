package terminal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
)

var ErrSchedulerRunning = errors.New("scheduler already running")

// Task is one periodic reload. Run is called once at start, then on every
// tick and whenever the task is triggered.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs one goroutine per task. Stop cancels them and waits.
type Scheduler struct {
	tasks    []Task
	triggers map[string]chan struct{}
	logger   aqm.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(logger aqm.Logger, tasks ...Task) *Scheduler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	triggers := make(map[string]chan struct{}, len(tasks))
	for _, t := range tasks {
		triggers[t.Name] = make(chan struct{}, 1)
	}
	return &Scheduler{
		tasks:    tasks,
		triggers: triggers,
		logger:   logger.With("component", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrSchedulerRunning
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(runCtx, t)
	}
	s.logger.Info("scheduler started", "tasks", len(s.tasks))
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger makes the named task run as soon as it is free. Triggers that
// arrive while one is pending collapse into it.
func (s *Scheduler) Trigger(name string) {
	ch, ok := s.triggers[name]
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context, t Task) {
	defer s.wg.Done()

	interval := t.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.run(ctx, t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.triggers[t.Name]:
			ticker.Reset(interval)
		}
		s.run(ctx, t)
	}
}

func (s *Scheduler) run(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "task", t.Name, "panic", r)
		}
	}()
	if err := t.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Debug("task failed", "task", t.Name, "error", err)
	}
}
