// Package scheduler triggers jobs on cron schedules evaluated in the market timezone.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Scheduler manages background jobs. A job whose previous run is still in
// progress is skipped rather than started twice.
type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
	ctx  context.Context
	log  zerolog.Logger

	mu      sync.Mutex
	running map[string]bool
}

// New creates a scheduler. Standard five-field specs are interpreted in loc.
func New(ctx context.Context, loc *time.Location, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		loc:     loc,
		ctx:     ctx,
		log:     log.With().Str("component", "scheduler").Logger(),
		running: make(map[string]bool),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule, e.g. "15 15 * * 1-5"
func (s *Scheduler) AddJob(schedule string, job Job) error {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return err
	}
	s.cron.Schedule(sched, cron.FuncJob(func() { s.execute(job) }))

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Time("next", sched.Next(time.Now().In(s.loc))).
		Msg("Job registered")
	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return job.Run(s.ctx)
}

func (s *Scheduler) execute(job Job) {
	name := job.Name()
	if !s.acquire(name) {
		s.log.Warn().Str("job", name).Msg("Previous run still in progress, skipping")
		return
	}
	defer s.release(name)

	s.log.Info().Str("job", name).Msg("Running job")
	start := time.Now()
	if err := job.Run(s.ctx); err != nil {
		s.log.Error().Err(err).Str("job", name).Msg("Job failed")
		return
	}
	s.log.Info().Str("job", name).Dur("duration", time.Since(start)).Msg("Job completed")
}

func (s *Scheduler) acquire(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[name] {
		return false
	}
	s.running[name] = true
	return true
}

func (s *Scheduler) release(name string) {
	s.mu.Lock()
	delete(s.running, name)
	s.mu.Unlock()
}

// FuncJob adapts a function to the Job interface
type FuncJob struct {
	JobName string
	Fn      func(ctx context.Context) error
}

// Name returns the job name
func (j FuncJob) Name() string { return j.JobName }

// Run calls the function
func (j FuncJob) Run(ctx context.Context) error { return j.Fn(ctx) }
