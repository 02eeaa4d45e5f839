// Package influxdb records scene engine telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Each finished scene
// job becomes one scene_execution point tagged by scene selector and
// status, which makes run counts and durations queryable over time.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteSceneExecution(influxdb.SceneExecutionPoint{Selector: "cinema", Status: "completed"})
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Batch failures are reported through SetOnError.
package influxdb
