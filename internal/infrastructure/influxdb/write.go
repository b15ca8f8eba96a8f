package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementSyncRuns is the measurement holding one point per sync execution.
const MeasurementSyncRuns = "sync_runs"

// SyncRun is the data written for one sync job execution.
type SyncRun struct {
	Job       string
	Status    string
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Fetched   int
	Inserted  int
	Updated   int
	Unchanged int
}

// WriteSyncRun queues a sync_runs point. It is a no-op when disconnected.
func (c *Client) WriteSyncRun(run SyncRun) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(syncRunPoint(run))
}

// syncRunPoint builds the point for run. The run ID is a field, not a tag,
// to keep series cardinality bounded.
func syncRunPoint(run SyncRun) *write.Point {
	ts := run.StartedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		MeasurementSyncRuns,
		map[string]string{
			"job":    run.Job,
			"status": run.Status,
		},
		map[string]any{
			"run_id":           run.RunID,
			"duration_seconds": run.Duration.Seconds(),
			"fetched":          run.Fetched,
			"inserted":         run.Inserted,
			"updated":          run.Updated,
			"unchanged":        run.Unchanged,
		},
		ts,
	)
}
