package syncjob

import (
	"context"

	"github.com/nerrad567/iot-portal/internal/concentrator"
	"github.com/nerrad567/iot-portal/internal/infrastructure/database"
	"github.com/nerrad567/iot-portal/internal/twin"
)

// ConcentratorsJob mirrors LoRaWAN concentrators.
type ConcentratorsJob struct {
	db       *database.DB
	registry twin.Registry
	pageSize int
	guard    Guard
	logger   Logger
}

// NewConcentratorsJob creates the concentrator sync job. A nil guard
// selects NewerVersion.
func NewConcentratorsJob(db *database.DB, registry twin.Registry, pageSize int, guard Guard, logger Logger) *ConcentratorsJob {
	if guard == nil {
		guard = NewerVersion
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &ConcentratorsJob{db: db, registry: registry, pageSize: pageSize, guard: guard, logger: logger}
}

// Name implements Job.
func (j *ConcentratorsJob) Name() string { return NameConcentrators }

// Run implements Job.
func (j *ConcentratorsJob) Run(ctx context.Context) (Result, error) {
	twins, err := FetchAll(ctx, j.registry, twin.FilterConcentrators, j.pageSize, j.logger)
	if err != nil {
		return Result{}, err
	}
	res := Result{Fetched: len(twins)}

	items := make([]*concentrator.Concentrator, 0, len(twins))
	for i := range twins {
		items = append(items, concentrator.FromTwin(&twins[i]))
	}

	sess, err := j.db.NewSession(ctx)
	if err != nil {
		return res, err
	}
	defer sess.Close() //nolint:errcheck // rollback after a failed pass

	store := concentrator.NewSQLiteRepository(sess.Querier())
	if err := upsertAll[*concentrator.Concentrator](ctx, store, items, j.guard, &res); err != nil {
		return res, err
	}
	if err := sess.SaveChanges(ctx); err != nil {
		return res, err
	}
	return res, nil
}
