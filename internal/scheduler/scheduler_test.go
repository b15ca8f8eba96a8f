package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/iot-portal/internal/syncjob"
)

type stubJob struct{ name string }

func (j stubJob) Name() string { return j.name }
func (j stubJob) Run(context.Context) (syncjob.Result, error) {
	return syncjob.Result{}, nil
}

// blockingExecutor records executions and blocks each one until released.
type blockingExecutor struct {
	mu      sync.Mutex
	calls   map[string]int
	started chan string
	release chan struct{}
}

func newBlockingExecutor() *blockingExecutor {
	return &blockingExecutor{
		calls:   make(map[string]int),
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (b *blockingExecutor) Execute(ctx context.Context, job syncjob.Job) syncjob.Result {
	b.mu.Lock()
	b.calls[job.Name()]++
	b.mu.Unlock()

	b.started <- job.Name()
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return syncjob.Result{Job: job.Name(), Status: syncjob.StatusSuccess, Fetched: 7}
}

func (b *blockingExecutor) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[name]
}

func waitStarted(t *testing.T, b *blockingExecutor, want string) {
	t.Helper()
	select {
	case got := <-b.started:
		if got != want {
			t.Fatalf("started job %q, want %q", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("job %q did not start", want)
	}
}

func waitIdle(t *testing.T, s *Scheduler, name string) JobStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		for _, st := range s.Status() {
			if st.Name == name && st.State == StateIdle && st.LastResult != nil {
				return st
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %q did not become idle", name)
	return JobStatus{}
}

func TestScheduler_Add(t *testing.T) {
	s := New(newBlockingExecutor(), nil)

	if err := s.Add(stubJob{"a"}, time.Minute); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add(stubJob{"a"}, time.Minute); !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("Add() duplicate error = %v, want %v", err, ErrDuplicateJob)
	}
	if err := s.Add(stubJob{"b"}, 10*time.Millisecond); err == nil {
		t.Error("Add() expected error for sub-second interval")
	}
	if got := s.Jobs(); len(got) != 1 || got[0] != "a" {
		t.Errorf("Jobs() = %v, want [a]", got)
	}
}

func TestScheduler_TriggerGuard(t *testing.T) {
	exec := newBlockingExecutor()
	s := New(exec, nil)
	if err := s.Add(stubJob{syncjob.NameDevices}, time.Hour); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add(stubJob{syncjob.NameConcentrators}, time.Hour); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Start(context.Background())
	defer s.Stop()

	if err := s.Trigger("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("Trigger(nope) error = %v, want %v", err, ErrUnknownJob)
	}

	if err := s.Trigger(syncjob.NameDevices); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	waitStarted(t, exec, syncjob.NameDevices)

	if err := s.Trigger(syncjob.NameDevices); !errors.Is(err, ErrJobRunning) {
		t.Errorf("second Trigger() error = %v, want %v", err, ErrJobRunning)
	}

	// A different job is not blocked by the running one.
	if err := s.Trigger(syncjob.NameConcentrators); err != nil {
		t.Errorf("Trigger(concentrators) error = %v", err)
	}
	waitStarted(t, exec, syncjob.NameConcentrators)

	running := 0
	for _, st := range s.Status() {
		if st.State == StateRunning {
			running++
		}
	}
	if running != 2 {
		t.Errorf("running jobs = %d, want 2", running)
	}

	close(exec.release)
	st := waitIdle(t, s, syncjob.NameDevices)
	if st.LastStarted == nil || st.LastFinished == nil || st.LastResult.Fetched != 7 {
		t.Errorf("Status() = %+v", st)
	}
	if st.Interval != "1h0m0s" {
		t.Errorf("Interval = %q, want 1h0m0s", st.Interval)
	}
	if st.NextRun == nil {
		t.Error("NextRun should be set once started")
	}
	if exec.count(syncjob.NameDevices) != 1 {
		t.Errorf("devices executions = %d, want 1", exec.count(syncjob.NameDevices))
	}
}

func TestScheduler_ScheduledTick(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for a real cron tick")
	}

	exec := newBlockingExecutor()
	close(exec.release)

	s := New(exec, nil)
	if err := s.Add(stubJob{"tick"}, time.Second); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Start(context.Background())
	defer s.Stop()

	waitStarted(t, exec, "tick")
}

func TestScheduler_SkipsBusyTick(t *testing.T) {
	exec := newBlockingExecutor()
	s := New(exec, nil)
	if err := s.Add(stubJob{"busy"}, time.Hour); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	e := s.entries["busy"]
	e.running.Store(true)

	s.run(e, sourceSchedule)
	if exec.count("busy") != 0 {
		t.Errorf("executions = %d, want 0 while running", exec.count("busy"))
	}
}

func TestScheduler_StopCancelsRunningJobs(t *testing.T) {
	exec := newBlockingExecutor()
	s := New(exec, nil)
	if err := s.Add(stubJob{"long"}, time.Hour); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Start(context.Background())

	if err := s.Trigger("long"); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	waitStarted(t, exec, "long")

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not return")
	}

	if err := s.Trigger("long"); !errors.Is(err, ErrStopped) {
		t.Errorf("Trigger() after Stop error = %v, want %v", err, ErrStopped)
	}
	s.Stop()
}
