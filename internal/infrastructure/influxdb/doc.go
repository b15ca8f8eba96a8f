// Package influxdb records sync run history in InfluxDB.
//
// It wraps the influxdb-client-go v2 non-blocking write API. Every sync job
// execution becomes one point in the "sync_runs" measurement, tagged with the
// job name and outcome, so run durations and record counts can be charted
// over time.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSyncRun(influxdb.SyncRun{Job: "sync_devices", Status: "success", Inserted: 3})
//
// Writes are batched according to batch_size and flush_interval; failures
// surface asynchronously through SetOnError.
package influxdb
