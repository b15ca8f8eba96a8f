package syncjob

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Job names, also used as scheduler keys, metric labels and MQTT topic segments.
const (
	NameDevices       = "sync_devices"
	NameConcentrators = "sync_concentrators"
	NameEdgeDevices   = "sync_edge_devices"
	NameGatewayIDs    = "sync_gateway_ids"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Job is one synchronization pass for an entity category.
type Job interface {
	Name() string

	// Run performs a full pass. Counts in the returned Result are only
	// meaningful when err is nil.
	Run(ctx context.Context) (Result, error)
}

// Result summarises one execution.
type Result struct {
	RunID     string        `json:"run_id"`
	Job       string        `json:"job"`
	Status    string        `json:"status"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Fetched   int           `json:"fetched"`
	Inserted  int           `json:"inserted"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
}

func (r *Result) count(o Outcome) {
	switch o {
	case Inserted:
		r.Inserted++
	case Updated:
		r.Updated++
	default:
		r.Unchanged++
	}
}

// Logger is the logging interface used by jobs.
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

// Recorder receives the Result of every execution, successful or not.
// Implementations must not block for long; they run on the job goroutine.
type Recorder interface {
	RecordRun(ctx context.Context, r Result)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, r Result)

// RecordRun calls f.
func (f RecorderFunc) RecordRun(ctx context.Context, r Result) { f(ctx, r) }

// Executor runs jobs and contains their failures.
type Executor struct {
	logger    Logger
	recorders []Recorder
}

// NewExecutor creates an Executor. A nil logger discards output; nil
// recorders are ignored.
func NewExecutor(logger Logger, recorders ...Recorder) *Executor {
	if logger == nil {
		logger = noopLogger{}
	}
	e := &Executor{logger: logger}
	for _, r := range recorders {
		if r != nil {
			e.recorders = append(e.recorders, r)
		}
	}
	return e
}

// Execute runs job once. It never returns an error and never panics:
// failures are logged, reported with StatusFailed and otherwise dropped.
func (e *Executor) Execute(ctx context.Context, job Job) Result {
	runID := uuid.NewString()
	started := time.Now()
	log := e.logger

	log.Info("sync job started", "job", job.Name(), "run_id", runID)

	res, err := e.run(ctx, job)
	res.RunID = runID
	res.Job = job.Name()
	res.StartedAt = started.UTC()
	res.Duration = time.Since(started)

	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		log.Error("sync job failed",
			"job", res.Job,
			"run_id", runID,
			"duration", res.Duration,
			"error", err,
		)
	} else {
		res.Status = StatusSuccess
		log.Info("sync job finished",
			"job", res.Job,
			"run_id", runID,
			"duration", res.Duration,
			"fetched", res.Fetched,
			"inserted", res.Inserted,
			"updated", res.Updated,
			"unchanged", res.Unchanged,
		)
	}

	for _, r := range e.recorders {
		r.RecordRun(ctx, res)
	}
	return res
}

func (e *Executor) run(ctx context.Context, job Job) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			e.logger.Error("sync job panicked", "job", job.Name(), "panic", p, "stack", string(debug.Stack()))
			res = Result{}
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	res, err = job.Run(ctx)
	if err != nil {
		// Nothing was committed, so per-record counts would be misleading.
		res = Result{Fetched: res.Fetched}
	}
	return res, err
}
