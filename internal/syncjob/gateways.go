package syncjob

import (
	"context"

	"github.com/nerrad567/iot-portal/internal/gateway"
	"github.com/nerrad567/iot-portal/internal/twin"
)

// GatewayIDJob refreshes the in-memory list of concentrator IDs.
// It writes nothing to the database.
type GatewayIDJob struct {
	registry twin.Registry
	pageSize int
	ids      *gateway.IDList
	logger   Logger
}

// NewGatewayIDJob creates the gateway ID sync job writing into ids.
func NewGatewayIDJob(registry twin.Registry, pageSize int, ids *gateway.IDList, logger Logger) *GatewayIDJob {
	if logger == nil {
		logger = noopLogger{}
	}
	return &GatewayIDJob{registry: registry, pageSize: pageSize, ids: ids, logger: logger}
}

// Name implements Job.
func (j *GatewayIDJob) Name() string { return NameGatewayIDs }

// Run implements Job. The list is left untouched when fetching fails.
func (j *GatewayIDJob) Run(ctx context.Context) (Result, error) {
	twins, err := FetchAll(ctx, j.registry, twin.FilterConcentrators, j.pageSize, j.logger)
	if err != nil {
		return Result{}, err
	}

	ids := make([]string, 0, len(twins))
	for i := range twins {
		ids = append(ids, twins[i].DeviceID)
	}
	j.ids.Replace(ids)

	return Result{Fetched: len(twins), Updated: len(ids)}, nil
}
