package syncjob

import (
	"context"

	"github.com/nerrad567/iot-portal/internal/edgedevice"
	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
	"github.com/nerrad567/iot-portal/internal/twin"
)

// EdgeDevicesJob mirrors IoT Edge devices.
type EdgeDevicesJob struct {
	db       *database.DB
	registry twin.Registry
	pageSize int
	logger   Logger
}

// NewEdgeDevicesJob creates the edge device sync job.
func NewEdgeDevicesJob(db *database.DB, registry twin.Registry, pageSize int, logger Logger) *EdgeDevicesJob {
	if logger == nil {
		logger = noopLogger{}
	}
	return &EdgeDevicesJob{db: db, registry: registry, pageSize: pageSize, logger: logger}
}

// Name implements Job.
func (j *EdgeDevicesJob) Name() string { return NameEdgeDevices }

// Run implements Job.
func (j *EdgeDevicesJob) Run(ctx context.Context) (Result, error) {
	twins, err := FetchAll(ctx, j.registry, twin.FilterEdgeDevices, j.pageSize, j.logger)
	if err != nil {
		return Result{}, err
	}
	res := Result{Fetched: len(twins)}

	items := make([]*edgedevice.EdgeDevice, 0, len(twins))
	for i := range twins {
		items = append(items, edgedevice.FromTwin(&twins[i]))
	}

	sess, err := j.db.NewSession(ctx)
	if err != nil {
		return res, err
	}
	defer sess.Close() //nolint:errcheck // rollback after a failed pass

	store := edgedevice.NewSQLiteRepository(sess.Querier())
	if err := upsertAll[*edgedevice.EdgeDevice](ctx, store, items, NewerVersion, &res); err != nil {
		return res, err
	}
	if err := sess.SaveChanges(ctx); err != nil {
		return res, err
	}
	return res, nil
}
