package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nerrad567/iot-portal/internal/audit"
	"github.com/nerrad567/iot-portal/internal/infrastructure/database/dbtest"
	"github.com/nerrad567/iot-portal/internal/infrastructure/logging"
	"github.com/nerrad567/iot-portal/internal/scheduler"
	"github.com/nerrad567/iot-portal/internal/syncjob"
)

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("PORTAL_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("PORTAL_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("PORTAL_CONFIG", "/etc/portal/config.yaml")
	if got := getConfigPath(); got != "/etc/portal/config.yaml" {
		t.Errorf("getConfigPath() = %q, want env value", got)
	}
}

func TestToSyncRun(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := syncjob.Result{
		RunID:     "run-1",
		Job:       syncjob.NameDevices,
		Status:    syncjob.StatusSuccess,
		StartedAt: started,
		Duration:  3 * time.Second,
		Fetched:   7,
		Inserted:  2,
		Updated:   1,
		Unchanged: 4,
	}

	got := toSyncRun(res)
	if got.Job != res.Job || got.Status != res.Status || got.RunID != res.RunID ||
		!got.StartedAt.Equal(started) || got.Duration != res.Duration ||
		got.Fetched != 7 || got.Inserted != 2 || got.Updated != 1 || got.Unchanged != 4 {
		t.Errorf("toSyncRun() = %+v", got)
	}
}

type publishCall struct {
	topic    string
	v        any
	retained bool
}

type fakePublisher struct {
	calls []publishCall
	err   error
}

func (f *fakePublisher) PublishJSON(topic string, v any, retained bool) error {
	f.calls = append(f.calls, publishCall{topic: topic, v: v, retained: retained})
	return f.err
}

func TestMQTTRecorder(t *testing.T) {
	pub := &fakePublisher{}
	rec := mqttRecorder{client: pub, logger: logging.Discard()}

	res := syncjob.Result{Job: syncjob.NameConcentrators, Status: syncjob.StatusFailed}
	rec.RecordRun(context.Background(), res)

	if len(pub.calls) != 1 {
		t.Fatalf("PublishJSON calls = %d, want 1", len(pub.calls))
	}
	if pub.calls[0].topic != "portal/sync/sync_concentrators/result" || pub.calls[0].retained {
		t.Errorf("publish = %+v", pub.calls[0])
	}

	// Publish failures are logged only.
	pub.err = errors.New("mqtt: client not connected")
	rec.RecordRun(context.Background(), res)
	if len(pub.calls) != 2 {
		t.Errorf("PublishJSON calls = %d, want 2", len(pub.calls))
	}
}

type fakeTrigger struct {
	known     map[string]bool
	triggered []string
}

func (f *fakeTrigger) Trigger(name string) error {
	if !f.known[name] {
		return fmt.Errorf("%w: %s", scheduler.ErrUnknownJob, name)
	}
	f.triggered = append(f.triggered, name)
	return nil
}

func TestSyncCommandHandler(t *testing.T) {
	trig := &fakeTrigger{known: map[string]bool{syncjob.NameDevices: true}}
	repo := audit.NewSQLiteRepository(dbtest.Open(t))
	handler := syncCommandHandler(trig, repo, logging.Discard())

	if err := handler("portal/command/sync/sync_devices", nil); err != nil {
		t.Errorf("handler() error = %v", err)
	}
	if err := handler("portal/command/sync/unknown", nil); !errors.Is(err, scheduler.ErrUnknownJob) {
		t.Errorf("unknown job error = %v, want ErrUnknownJob", err)
	}
	if err := handler("portal/command/other", nil); err == nil {
		t.Error("malformed topic should fail")
	}
	if len(trig.triggered) != 1 || trig.triggered[0] != syncjob.NameDevices {
		t.Errorf("triggered = %v", trig.triggered)
	}

	page, err := repo.List(context.Background(), audit.Filter{Action: audit.ActionSyncTrigger})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 1 || page.Entries[0].EntityID != syncjob.NameDevices || page.Entries[0].Source != audit.SourceMQTT {
		t.Errorf("audit entries = %+v, want one mqtt trigger for %s", page.Entries, syncjob.NameDevices)
	}
}
