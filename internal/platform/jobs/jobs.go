// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Func is one unit of scheduled work. The context is cancelled when the
// scheduler stops or the job's timeout elapses.
type Func func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	logger  zerolog.Logger
	timeout time.Duration

	mu     sync.Mutex
	names  map[string]cron.EntryID
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler builds a scheduler using the standard five-field cron format.
// Runs of the same job never overlap.
func NewScheduler(logger zerolog.Logger, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		logger:  logger.With().Str("component", "jobs").Logger(),
		timeout: timeout,
		names:   make(map[string]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers fn under name. Names are unique.
func (s *Scheduler) Add(name, spec string, fn Func) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("jobs: %q already registered", name)
	}
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		_ = s.run(name, fn)
	}))
	id, err := s.cron.AddJob(spec, job)
	if err != nil {
		return fmt.Errorf("jobs: schedule %q: %w", name, err)
	}
	s.names[name] = id
	s.logger.Info().Str("job", name).Str("schedule", spec).Msg("job registered")
	return nil
}

// RunNow executes a registered job synchronously, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	id, ok := s.names[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("jobs: %q not registered", name)
	}
	entry := s.cron.Entry(id)
	if entry.Job == nil {
		return fmt.Errorf("jobs: %q has no entry", name)
	}
	entry.Job.Run()
	return nil
}

func (s *Scheduler) run(name string, fn Func) (err error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		evt := s.logger.Info()
		if err != nil {
			evt = s.logger.Error().Err(err)
		}
		evt.Str("job", name).Dur("duration", time.Since(start)).Msg("job finished")
	}()
	return fn(ctx)
}

// Next returns the next scheduled run of a job.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.names[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SessionPruner is satisfied by auth.SessionManager.
type SessionPruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

const PruneSessionsJob = "prune-sessions"

// PruneSessions deletes expired login sessions.
func PruneSessions(p SessionPruner, logger zerolog.Logger) Func {
	return func(ctx context.Context) error {
		n, err := p.PruneExpired(ctx)
		if err != nil {
			return fmt.Errorf("prune sessions: %w", err)
		}
		logger.Info().Int64("deleted", n).Msg("expired sessions pruned")
		return nil
	}
}
