// Package scheduler runs sync jobs on fixed intervals.
//
// Each job is guarded so that at most one execution is in flight at a time;
// a tick that finds the job busy is skipped. Different jobs are independent
// and may run concurrently. Jobs can also be started on demand with Trigger,
// which goes through the same guard.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/iot-portal/internal/syncjob"
)

var (
	// ErrUnknownJob is returned for a job name that was never added.
	ErrUnknownJob = errors.New("scheduler: unknown job")

	// ErrJobRunning is returned by Trigger when the job is already executing.
	ErrJobRunning = errors.New("scheduler: job already running")

	// ErrDuplicateJob is returned when adding a job name twice.
	ErrDuplicateJob = errors.New("scheduler: job already added")

	// ErrStopped is returned by Trigger after Stop.
	ErrStopped = errors.New("scheduler: stopped")
)

// Job states reported by Status.
const (
	StateIdle    = "idle"
	StateRunning = "running"
)

// Trigger sources, recorded in logs.
const (
	sourceSchedule = "schedule"
	sourceManual   = "manual"
)

// Executor runs one job to completion and reports its result.
// *syncjob.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, job syncjob.Job) syncjob.Result
}

// Logger is the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// JobStatus is a snapshot of one job's state.
type JobStatus struct {
	Name         string          `json:"name"`
	State        string          `json:"state"`
	Interval     string          `json:"interval"`
	NextRun      *time.Time      `json:"next_run,omitempty"`
	LastStarted  *time.Time      `json:"last_started,omitempty"`
	LastFinished *time.Time      `json:"last_finished,omitempty"`
	LastResult   *syncjob.Result `json:"last_result,omitempty"`
}

type entry struct {
	job      syncjob.Job
	interval time.Duration
	cronID   cron.EntryID
	running  atomic.Bool

	mu           sync.Mutex
	lastStarted  time.Time
	lastFinished time.Time
	lastResult   *syncjob.Result
}

// Scheduler owns a cron instance and the per-job guards.
type Scheduler struct {
	cron   *cron.Cron
	exec   Executor
	logger Logger

	mu      sync.Mutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// New creates a Scheduler. A nil logger discards output.
func New(exec Executor, logger Logger) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		exec:    exec,
		logger:  logger,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add registers job to run every interval. Jobs must be added before Start.
func (s *Scheduler) Add(job syncjob.Job, interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("scheduling %s: interval %v is below 1s", job.Name(), interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[job.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name())
	}

	e := &entry{job: job, interval: interval}
	id, err := s.cron.AddFunc("@every "+interval.String(), func() {
		s.run(e, sourceSchedule)
	})
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", job.Name(), err)
	}
	e.cronID = id
	s.entries[job.Name()] = e

	s.logger.Info("sync job scheduled", "job", job.Name(), "interval", interval.String())
	return nil
}

// Start begins firing scheduled ticks. ctx bounds every job execution;
// cancelling it has the same effect on running jobs as Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	prev := s.cancel
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()
	prev()

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.Jobs()))
}

// Stop cancels the execution context, halts scheduling and waits for
// in-flight jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Trigger starts job name immediately in the background.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	stopped := s.stopped
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if stopped {
		return ErrStopped
	}
	if !e.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}

	if !s.track() {
		e.running.Store(false)
		return ErrStopped
	}
	go func() {
		defer s.wg.Done()
		defer e.running.Store(false)
		s.execute(e, sourceManual)
	}()
	return nil
}

// Jobs returns the registered job names in sorted order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Status reports every job, sorted by name.
func (s *Scheduler) Status() []JobStatus {
	names := s.Jobs()
	out := make([]JobStatus, 0, len(names))
	for _, name := range names {
		s.mu.Lock()
		e := s.entries[name]
		s.mu.Unlock()
		out = append(out, s.status(e))
	}
	return out
}

func (s *Scheduler) status(e *entry) JobStatus {
	st := JobStatus{
		Name:     e.job.Name(),
		State:    StateIdle,
		Interval: e.interval.String(),
	}
	if e.running.Load() {
		st.State = StateRunning
	}
	if next := s.cron.Entry(e.cronID).Next; !next.IsZero() {
		st.NextRun = &next
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.lastStarted.IsZero() {
		t := e.lastStarted
		st.LastStarted = &t
	}
	if !e.lastFinished.IsZero() {
		t := e.lastFinished
		st.LastFinished = &t
	}
	if e.lastResult != nil {
		r := *e.lastResult
		st.LastResult = &r
	}
	return st
}

// run is the cron callback: it skips the tick if the job is busy.
func (s *Scheduler) run(e *entry, source string) {
	if !e.running.CompareAndSwap(false, true) {
		s.logger.Warn("sync job still running, skipping tick", "job", e.job.Name())
		return
	}
	defer e.running.Store(false)

	if !s.track() {
		return
	}
	defer s.wg.Done()
	s.execute(e, source)
}

// track registers an in-flight execution unless the scheduler is stopping.
func (s *Scheduler) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Scheduler) execute(e *entry, source string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	e.mu.Lock()
	e.lastStarted = time.Now().UTC()
	e.mu.Unlock()

	s.logger.Debug("running sync job", "job", e.job.Name(), "source", source)
	res := s.exec.Execute(ctx, e.job)

	e.mu.Lock()
	e.lastFinished = time.Now().UTC()
	e.lastResult = &res
	e.mu.Unlock()
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	logger Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
