package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementSceneExecution = "scene_execution"
	measurementDeviceCommand  = "scene_device_command"
)

// SceneExecutionPoint is the telemetry recorded for one finished scene job.
type SceneExecutionPoint struct {
	Selector      string
	Status        string
	StagesTotal   int
	StagesRun     int
	ActionsRun    int
	ActionsFailed int
	Duration      time.Duration
	CompletedAt   time.Time
}

// WriteSceneExecution records one scene execution. Selector and status are
// tags; counts and duration are fields.
//
// Example:
//
//	client.WriteSceneExecution(influxdb.SceneExecutionPoint{
//	    Selector: "cinema", Status: "completed", StagesRun: 2, Duration: 40 * time.Millisecond,
//	})
func (c *Client) WriteSceneExecution(p SceneExecutionPoint) {
	if !c.IsConnected() {
		return
	}

	ts := p.CompletedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	c.writer.WritePoint(write.NewPoint(
		measurementSceneExecution,
		map[string]string{
			"scene":  p.Selector,
			"status": p.Status,
		},
		map[string]any{
			"stages_total":   p.StagesTotal,
			"stages_run":     p.StagesRun,
			"actions_run":    p.ActionsRun,
			"actions_failed": p.ActionsFailed,
			"duration_ms":    p.Duration.Milliseconds(),
		},
		ts,
	))
}

// WriteDeviceCommand records a single device command issued by a scene.
func (c *Client) WriteDeviceCommand(device, feature string, value float64, ok bool) {
	if !c.IsConnected() {
		return
	}

	c.writer.WritePoint(write.NewPoint(
		measurementDeviceCommand,
		map[string]string{
			"device":  device,
			"feature": feature,
		},
		map[string]any{
			"value": value,
			"ok":    ok,
		},
		time.Now(),
	))
}
