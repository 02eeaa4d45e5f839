package automation

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-scenes/internal/infrastructure/mqtt"
)

// ExecutionObserver is told about every finished scene job. Observers run
// on the queue worker, so they must return promptly.
type ExecutionObserver interface {
	ObserveExecution(ctx context.Context, exec *SceneExecution)
}

// ExecutionObserverFunc adapts a function to ExecutionObserver.
type ExecutionObserverFunc func(ctx context.Context, exec *SceneExecution)

// ObserveExecution calls f.
func (f ExecutionObserverFunc) ObserveExecution(ctx context.Context, exec *SceneExecution) {
	f(ctx, exec)
}

// ExecutionWriter persists execution records.
type ExecutionWriter interface {
	CreateExecution(ctx context.Context, exec *SceneExecution) error
}

type executionLog struct {
	repo   ExecutionWriter
	logger Logger
}

// NewExecutionLog returns an observer that stores each record in repo.
// Storage failures are logged and do not affect the engine.
func NewExecutionLog(repo ExecutionWriter, logger Logger) ExecutionObserver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &executionLog{repo: repo, logger: logger}
}

func (l *executionLog) ObserveExecution(ctx context.Context, exec *SceneExecution) {
	if err := l.repo.CreateExecution(ctx, exec); err != nil {
		l.logger.Error("failed to store execution record",
			"execution_id", exec.ID,
			"scene", exec.SceneSelector,
			"error", err,
		)
	}
}

// Broadcaster publishes presentation events. It is kept apart from the
// state ingestion path; *mqtt.Client satisfies it.
type Broadcaster interface {
	Broadcast(channel string, payload any)
}

type broadcastObserver struct {
	hub Broadcaster
}

// NewBroadcastObserver returns an observer that announces each execution
// on graylogic/core/scene/{selector}/executed.
func NewBroadcastObserver(hub Broadcaster) ExecutionObserver {
	return &broadcastObserver{hub: hub}
}

func (b *broadcastObserver) ObserveExecution(_ context.Context, exec *SceneExecution) {
	b.hub.Broadcast(mqtt.Topics{}.SceneExecuted(exec.SceneSelector), map[string]any{
		"scene":          exec.SceneSelector,
		"execution_id":   exec.ID,
		"root_id":        exec.RootID,
		"status":         string(exec.Status),
		"stages_run":     exec.StagesRun,
		"actions_failed": exec.ActionsFailed,
		"duration_ms":    exec.DurationMS,
		"completed_at":   exec.CompletedAt.Format(time.RFC3339Nano),
	})
}

// TelemetryWriter records execution telemetry. *influxdb.Client satisfies it.
type TelemetryWriter interface {
	WriteSceneExecution(p influxdb.SceneExecutionPoint)
}

type telemetryObserver struct {
	writer TelemetryWriter
}

// NewTelemetryObserver returns an observer that writes one time-series
// point per execution.
func NewTelemetryObserver(writer TelemetryWriter) ExecutionObserver {
	return &telemetryObserver{writer: writer}
}

func (t *telemetryObserver) ObserveExecution(_ context.Context, exec *SceneExecution) {
	t.writer.WriteSceneExecution(influxdb.SceneExecutionPoint{
		Selector:      exec.SceneSelector,
		Status:        string(exec.Status),
		StagesTotal:   exec.StagesTotal,
		StagesRun:     exec.StagesRun,
		ActionsRun:    exec.ActionsRun,
		ActionsFailed: exec.ActionsFailed,
		Duration:      time.Duration(exec.DurationMS) * time.Millisecond,
		CompletedAt:   exec.CompletedAt,
	})
}
