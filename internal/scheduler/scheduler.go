// Package scheduler runs the periodic maintenance jobs of the worker
// process: availability refresh and donor index sync.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/common/metrics"
)

// JobFunc is one scheduled run. ctx carries the per-run timeout.
type JobFunc func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  logger.Logger

	mu   sync.Mutex
	jobs map[string]JobFunc
}

// New builds a scheduler whose jobs never overlap with themselves and
// never take the process down with a panic.
func New(timeout time.Duration, log logger.Logger) *Scheduler {
	log = log.WithFields(map[string]interface{}{"component": "scheduler"})
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		timeout: timeout,
		logger:  log,
		jobs:    make(map[string]JobFunc),
	}
}

// Add registers fn under name on a standard cron spec or a descriptor
// such as "@daily" or "@every 30m".
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("scheduler job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.RunJob(context.Background(), name) }); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.jobs[name] = fn

	s.logger.Info("job scheduled", map[string]interface{}{"job": name, "spec": spec})
	return nil
}

// RunJob runs a registered job immediately, outside its schedule.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	s.mu.Lock()
	fn, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("scheduler job %q not registered", name)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	err := fn(ctx)
	fields := map[string]interface{}{
		"job":      name,
		"duration": time.Since(started).String(),
	}
	if err != nil {
		metrics.ScheduledRuns.WithLabelValues(name, "failure").Inc()
		s.logger.WithError(err).Error("scheduled job failed", fields)
		return err
	}

	metrics.ScheduledRuns.WithLabelValues(name, "success").Inc()
	s.logger.Info("scheduled job finished", fields)
	return nil
}

func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stopped with jobs still running", nil)
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, kv(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).Error(msg, kv(keysAndValues))
}

func kv(pairs []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		fields[fmt.Sprint(pairs[i])] = pairs[i+1]
	}
	return fields
}
