package automation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-scenes/internal/device"
)

// observerTimeout bounds the observers of a single execution record. They
// run detached from engine shutdown so the final records are still stored.
const observerTimeout = 5 * time.Second

// EngineOptions wires the engine's collaborators.
type EngineOptions struct {
	// States is read by device.get-value and device.set-value actions.
	States StateReader

	// Commander sends device commands.
	Commander device.Commander

	// StageConcurrency caps concurrently running actions per stage (0 = no cap).
	StageConcurrency int

	// CommandTimeout bounds a single SetValue call (0 = no timeout).
	CommandTimeout time.Duration

	// Observers receive every execution record.
	Observers []ExecutionObserver

	// Metrics may be nil.
	Metrics *Metrics

	Logger Logger
}

// Engine executes scenes.
//
// Execute enqueues a job on a single FIFO queue; jobs run one at a time.
// A scene.start action re-enters the queue with the caller's Scope, and
// the Scope's guard set ensures each selector runs at most once per root
// execution, which makes chains and cycles terminate.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	registry   *Registry
	dispatcher *Dispatcher
	runner     *Runner
	queue      *Queue
	metrics    *Metrics
	logger     Logger

	observers []ExecutionObserver

	// ctx is cancelled by Close to interrupt delays and device commands.
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
}

// NewEngine creates an engine executing scenes from registry.
func NewEngine(registry *Registry, opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		registry:  registry,
		metrics:   opts.Metrics,
		logger:    logger,
		observers: append([]ExecutionObserver(nil), opts.Observers...),
		ctx:       ctx,
		cancel:    cancel,
	}

	e.queue = NewQueue(e.process, logger, opts.Metrics)
	e.dispatcher = NewDispatcher(opts.States, opts.Commander, e.queue, opts.CommandTimeout, logger)
	e.dispatcher.metrics = opts.Metrics
	e.runner = NewRunner(e.dispatcher, opts.StageConcurrency, logger)

	return e
}

// AddScene validates scene and registers it, replacing any scene with the
// same selector. It does not persist the scene.
func (e *Engine) AddScene(scene *Scene) error {
	if err := ValidateScene(scene); err != nil {
		return err
	}
	e.registry.Put(scene)
	return nil
}

// Execute schedules the scene registered under selector.
//
// scope may be nil, which starts a new root execution. Passing the Scope of
// a running execution joins it: the scene's results land in that scope and
// the scene is skipped if the scope has already dispatched it.
//
// Execute returns once the job is queued; use OnDrain or Wait to observe
// completion. A missing scene, an unknown action type or a failing device
// command never produce an error. Errors are returned only for an empty
// selector, a cancelled ctx or a closed engine.
func (e *Engine) Execute(ctx context.Context, selector string, scope *Scope) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if selector == "" {
		return fmt.Errorf("%w: selector cannot be empty", ErrInvalidScene)
	}
	if scope == nil {
		scope = NewScope()
	}

	if e.queue.Enqueue(selector, scope) {
		e.logger.Debug("scene queued", "scene", selector, "root_id", scope.ID())
	}
	return nil
}

// OnDrain calls fn once no job is pending or running. If the engine is
// already idle, fn runs immediately on the caller's goroutine.
func (e *Engine) OnDrain(fn func()) {
	e.queue.StartDrainListener(fn)
}

// Wait blocks until the queue drains or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	return e.queue.Wait(ctx)
}

// Pending returns the number of queued jobs, excluding the running one.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// Idle reports whether no job is queued or running.
func (e *Engine) Idle() bool {
	return e.queue.Idle()
}

// Registry returns the engine's scene registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Close stops accepting work, interrupts delays and device commands of the
// running job and waits for the queue worker to exit. Jobs still queued
// finish as failed.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.cancel()
	e.queue.Close()
	return nil
}

// process runs one dequeued job and reports its record to the observers.
func (e *Engine) process(job Job) {
	started := time.Now().UTC()
	exec := &SceneExecution{
		ID:            GenerateID(),
		SceneSelector: job.Selector,
		RootID:        job.Scope.ID(),
		StartedAt:     started,
	}

	scene, err := e.registry.GetScene(job.Selector)
	switch {
	case errors.Is(err, ErrSceneNotFound):
		e.logger.Warn("scene not found, skipping", "scene", job.Selector, "root_id", exec.RootID)
		exec.Status = StatusNotFound

	case err != nil:
		msg := err.Error()
		exec.Status, exec.Error = StatusFailed, &msg

	default:
		e.logger.Info("scene execution started",
			"scene", scene.Selector,
			"execution_id", exec.ID,
			"root_id", exec.RootID,
			"stages", len(scene.Actions),
		)

		ctx := device.WithOrigin(e.ctx, device.Origin{Scene: scene.Selector, ExecutionID: exec.ID})
		result := e.runner.Run(ctx, scene, job.Scope)
		applyResult(exec, len(scene.Actions), result)
	}

	completed := time.Now().UTC()
	exec.CompletedAt = completed
	exec.DurationMS = completed.Sub(started).Milliseconds()

	if exec.Status != StatusNotFound {
		e.logger.Info("scene execution finished",
			"scene", exec.SceneSelector,
			"execution_id", exec.ID,
			"status", string(exec.Status),
			"stages_run", exec.StagesRun,
			"actions_failed", exec.ActionsFailed,
			"duration_ms", exec.DurationMS,
		)
	}

	e.notify(exec)
}

func applyResult(exec *SceneExecution, stages int, result RunResult) {
	exec.StagesTotal = stages
	exec.StagesRun = result.StagesRun
	exec.ActionsRun = result.ActionsRun
	exec.ActionsFailed = result.ActionsFailed

	switch result.Phase {
	case PhaseAborted:
		exec.Status = StatusAborted
		stage := result.Stage
		exec.AbortStage = &stage
	case PhaseCancelled:
		exec.Status = StatusFailed
		stage := result.Stage
		exec.AbortStage = &stage
		msg := ErrEngineClosed.Error()
		exec.Error = &msg
	default:
		exec.Status = StatusCompleted
	}
}

func (e *Engine) notify(exec *SceneExecution) {
	e.metrics.ObserveExecution(e.ctx, exec)

	if len(e.observers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), observerTimeout)
	defer cancel()

	for _, o := range e.observers {
		e.observe(ctx, o, exec)
	}
}

func (e *Engine) observe(ctx context.Context, o ExecutionObserver, exec *SceneExecution) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("execution observer panicked", "execution_id", exec.ID, "panic", rec)
		}
	}()
	o.ObserveExecution(ctx, exec)
}
