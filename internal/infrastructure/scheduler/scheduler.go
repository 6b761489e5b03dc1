// Package scheduler runs the tutor's periodic maintenance jobs:
// closing idle lessons and warming admin statistics.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled on shutdown
	// or when the job timeout expires.
	Run(ctx context.Context) error
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next run time after t. Zero means never.
	Next(t time.Time) time.Time

	String() string
}

// JobOptions tune a single registration.
type JobOptions struct {
	// Timeout bounds one run. Zero uses the scheduler default.
	Timeout time.Duration

	// RunOnStart runs the job once right after Start.
	RunOnStart bool
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName   string
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// Success reports whether the run finished without error.
func (r JobResult) Success() bool { return r.Err == nil }

// JobInfo is a snapshot of a registered job.
type JobInfo struct {
	Name      string
	Schedule  string
	NextRun   time.Time
	Running   bool
	RunCount  int64
	FailCount int64
	Skipped   int64
	Last      *JobResult
}

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrJobRunning              = errors.New("job is already running")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *slog.Logger

	// Location for schedule calculations (default: UTC).
	Location *time.Location

	// DefaultTimeout bounds a run when JobOptions.Timeout is zero (default: 5m).
	DefaultTimeout time.Duration

	// TickInterval is how often due jobs are checked (default: 1s).
	TickInterval time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Scheduler manages and executes scheduled jobs.
// Один запуск задачи за раз: если предыдущий ещё идёт, тик пропускается.
type Scheduler struct {
	mu sync.Mutex

	logger         *slog.Logger
	location       *time.Location
	defaultTimeout time.Duration
	tick           time.Duration
	now            func() time.Time

	jobs    map[string]*scheduledJob
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type scheduledJob struct {
	job      Job
	schedule Schedule
	opts     JobOptions

	nextRun   time.Time
	active    bool
	runCount  int64
	failCount int64
	skipped   int64
	last      *JobResult
}

// New creates a new Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Scheduler{
		logger:         cfg.Logger.With("component", "scheduler"),
		location:       cfg.Location,
		defaultTimeout: cfg.DefaultTimeout,
		tick:           cfg.TickInterval,
		now:            cfg.Now,
		jobs:           make(map[string]*scheduledJob),
	}
}

// Register adds a job with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule, opts JobOptions) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	sj := &scheduledJob{
		job:      job,
		schedule: schedule,
		opts:     opts,
		nextRun:  schedule.Next(s.now().In(s.location)),
	}
	s.jobs[name] = sj

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", sj.nextRun.Format(time.RFC3339),
		"run_on_start", opts.RunOnStart,
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, sj := range s.jobs {
		if sj.opts.RunOnStart {
			s.launchLocked(runCtx, sj)
		}
	}

	s.wg.Add(1)
	go s.loop(runCtx)

	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue launches every job whose next run time has passed.
func (s *Scheduler) runDue(ctx context.Context) {
	now := s.now().In(s.location)

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, sj := range s.jobs {
		if sj.nextRun.IsZero() || now.Before(sj.nextRun) {
			continue
		}
		sj.nextRun = sj.schedule.Next(now)
		if sj.active {
			sj.skipped++
			s.logger.Warn("job still running, skipping tick", "job", name)
			continue
		}
		s.launchLocked(ctx, sj)
	}
}

// launchLocked starts sj in its own goroutine. Caller holds s.mu.
func (s *Scheduler) launchLocked(ctx context.Context, sj *scheduledJob) {
	sj.active = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, sj)
	}()
}

// execute runs the job under its timeout and records the result.
func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob) JobResult {
	name := sj.job.Name()
	timeout := sj.opts.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := JobResult{JobName: name, StartedAt: s.now()}
	s.logger.Debug("job started", "job", name)

	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Err = fmt.Errorf("job panicked: %v", r)
			}
		}()
		result.Err = sj.job.Run(runCtx)
	}()
	result.Duration = s.now().Sub(result.StartedAt)

	s.mu.Lock()
	sj.active = false
	sj.runCount++
	if result.Err != nil {
		sj.failCount++
	}
	last := result
	sj.last = &last
	s.mu.Unlock()

	if result.Err != nil {
		s.logger.Error("job failed", "job", name, "duration", result.Duration.String(), "error", result.Err)
	} else {
		s.logger.Info("job completed", "job", name, "duration", result.Duration.String())
	}
	return result
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL EXECUTION & STATUS
// ══════════════════════════════════════════════════════════════════════════════

// RunNow executes a job synchronously, ignoring its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if sj.active {
		s.mu.Unlock()
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	sj.active = true
	s.mu.Unlock()

	result := s.execute(ctx, sj)
	return result, result.Err
}

// Jobs returns a snapshot of all registered jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		info := JobInfo{
			Name:      name,
			Schedule:  sj.schedule.String(),
			NextRun:   sj.nextRun,
			Running:   sj.active,
			RunCount:  sj.runCount,
			FailCount: sj.failCount,
			Skipped:   sj.skipped,
		}
		if sj.last != nil {
			last := *sj.last
			info.Last = &last
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
