package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/iot-portal/internal/audit"
	"github.com/nerrad567/iot-portal/internal/infrastructure/influxdb"
	"github.com/nerrad567/iot-portal/internal/infrastructure/logging"
	"github.com/nerrad567/iot-portal/internal/infrastructure/mqtt"
	"github.com/nerrad567/iot-portal/internal/syncjob"
)

// influxRecorder writes one sync_runs point per execution.
type influxRecorder struct {
	client *influxdb.Client
}

func (r influxRecorder) RecordRun(_ context.Context, res syncjob.Result) {
	r.client.WriteSyncRun(toSyncRun(res))
}

func toSyncRun(res syncjob.Result) influxdb.SyncRun {
	return influxdb.SyncRun{
		Job:       res.Job,
		Status:    res.Status,
		RunID:     res.RunID,
		StartedAt: res.StartedAt,
		Duration:  res.Duration,
		Fetched:   res.Fetched,
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
	}
}

// resultPublisher is the part of *mqtt.Client used to publish results.
type resultPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// mqttRecorder publishes each result to portal/sync/{job}/result.
type mqttRecorder struct {
	client resultPublisher
	logger *logging.Logger
}

func (r mqttRecorder) RecordRun(_ context.Context, res syncjob.Result) {
	if err := r.client.PublishJSON(mqtt.Topics{}.SyncResult(res.Job), res, false); err != nil {
		r.logger.Warn("publishing sync result", "job", res.Job, "run_id", res.RunID, "error", err)
	}
}

// jobTrigger is the part of the scheduler used by the command handler.
type jobTrigger interface {
	Trigger(name string) error
}

// syncCommandHandler triggers the job named by a portal/command/sync/{job}
// topic and audits accepted triggers. The payload is ignored.
func syncCommandHandler(sched jobTrigger, trail audit.Repository, log *logging.Logger) mqtt.MessageHandler {
	return func(topic string, _ []byte) error {
		job, ok := mqtt.Topics{}.ParseSyncCommand(topic)
		if !ok {
			return fmt.Errorf("malformed sync command topic %q", topic)
		}
		if err := sched.Trigger(job); err != nil {
			return fmt.Errorf("triggering %s: %w", job, err)
		}
		log.Info("sync job triggered via MQTT", "job", job)
		audit.Log(context.Background(), trail, log, audit.Entry{
			Action:     audit.ActionSyncTrigger,
			EntityType: audit.EntitySyncJob,
			EntityID:   job,
			Source:     audit.SourceMQTT,
			Details:    map[string]any{"topic": topic},
		})
		return nil
	}
}
