// Package syncjob mirrors the external device registry into the local store.
//
// Each job pages through the registry with FetchAll, maps every twin to a
// local entity and upserts it inside one database session, committing once
// at the end. A row is overwritten only when its Guard allows it; the
// default Guard, NewerVersion, requires a strictly greater registry version.
//
// Jobs are run through an Executor, which stamps a run ID, times the run,
// reports the Result to its Recorders and swallows every error and panic so
// the next scheduled run starts from scratch:
//
//	exec := syncjob.NewExecutor(logger, metricsRecorder, mqttRecorder)
//	res := exec.Execute(ctx, syncjob.NewDevicesJob(db, hub, 100, logger))
//	fmt.Println(res.Status, res.Inserted, res.Updated)
package syncjob
