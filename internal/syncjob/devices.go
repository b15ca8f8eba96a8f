package syncjob

import (
	"context"
	"errors"
	"fmt"

	"github.com/nerrad567/iot-portal/internal/device"
	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
	"github.com/nerrad567/iot-portal/internal/twin"
)

// DevicesJob mirrors ordinary (non-edge, non-concentrator) devices.
type DevicesJob struct {
	db       *database.DB
	registry twin.Registry
	pageSize int
	logger   Logger
}

// NewDevicesJob creates the device sync job.
func NewDevicesJob(db *database.DB, registry twin.Registry, pageSize int, logger Logger) *DevicesJob {
	if logger == nil {
		logger = noopLogger{}
	}
	return &DevicesJob{db: db, registry: registry, pageSize: pageSize, logger: logger}
}

// Name implements Job.
func (j *DevicesJob) Name() string { return NameDevices }

// Run implements Job. Each twin's modelId is resolved against the device
// model table in the same session; LoRaWAN settings are mirrored only for
// models that support LoRaWAN.
func (j *DevicesJob) Run(ctx context.Context) (Result, error) {
	twins, err := FetchAll(ctx, j.registry, twin.FilterDevices, j.pageSize, j.logger)
	if err != nil {
		return Result{}, err
	}
	res := Result{Fetched: len(twins)}

	sess, err := j.db.NewSession(ctx)
	if err != nil {
		return res, err
	}
	defer sess.Close() //nolint:errcheck // rollback after a failed pass

	models := newModelLookup(device.NewSQLiteModelRepository(sess.Querier()))
	devices := make([]*device.Device, 0, len(twins))
	for i := range twins {
		tw := &twins[i]
		model, err := models.get(ctx, tw.Tag(twin.TagModelID))
		if err != nil {
			return res, err
		}
		if model == nil {
			j.logger.Debug("device model not found, mirroring as standard device",
				"device_id", tw.DeviceID, "model_id", tw.Tag(twin.TagModelID))
		}
		devices = append(devices, device.FromTwin(tw, model))
	}

	store := device.NewSQLiteRepository(sess.Querier())
	if err := upsertAll[*device.Device](ctx, store, devices, NewerVersion, &res); err != nil {
		return res, err
	}
	if err := sess.SaveChanges(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// modelLookup memoises model reads for the duration of one pass.
type modelLookup struct {
	repo  device.ModelRepository
	cache map[string]*device.Model
}

func newModelLookup(repo device.ModelRepository) *modelLookup {
	return &modelLookup{repo: repo, cache: make(map[string]*device.Model)}
}

// get returns nil without error for an empty or unknown model ID.
func (l *modelLookup) get(ctx context.Context, id string) (*device.Model, error) {
	if id == "" {
		return nil, nil
	}
	if m, ok := l.cache[id]; ok {
		return m, nil
	}

	m, err := l.repo.GetByID(ctx, id)
	if err != nil && !errors.Is(err, device.ErrModelNotFound) {
		return nil, fmt.Errorf("loading device model %s: %w", id, err)
	}
	l.cache[id] = m
	return m, nil
}
