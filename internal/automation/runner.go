package automation

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Phase is a state of the scene runner.
type Phase int

// Runner phases. A run moves Pending → Running(0..n-1) → Completed or
// Aborted. Cancelled is entered only when the engine shuts down mid-run.
const (
	PhasePending Phase = iota
	PhaseRunning
	PhaseCompleted
	PhaseAborted
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseRunning:
		return "running"
	case PhaseCompleted:
		return "completed"
	case PhaseAborted:
		return "aborted"
	case PhaseCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// RunResult summarises one scene run.
type RunResult struct {
	Phase         Phase
	StagesRun     int
	ActionsRun    int
	ActionsFailed int

	// Stage is the stage that aborted or was interrupted; -1 otherwise.
	Stage int
}

// Runner drives a scene's stages through the dispatcher.
type Runner struct {
	dispatcher  *Dispatcher
	concurrency int
	logger      Logger
}

// NewRunner creates a runner. concurrency caps the actions of one stage
// running at once; 0 means no cap.
func NewRunner(dispatcher *Dispatcher, concurrency int, logger Logger) *Runner {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Runner{dispatcher: dispatcher, concurrency: concurrency, logger: logger}
}

// Run executes scene against scope. It never returns an error: action
// failures are logged and counted, and a false condition gate ends the run
// in PhaseAborted.
func (r *Runner) Run(ctx context.Context, scene *Scene, scope *Scope) RunResult {
	result := RunResult{Phase: PhasePending, Stage: -1}
	stage := 0

	for {
		switch result.Phase {
		case PhasePending:
			if len(scene.Actions) == 0 {
				result.Phase = PhaseCompleted
				continue
			}
			result.Phase = PhaseRunning

		case PhaseRunning:
			if ctx.Err() != nil {
				result.Phase = PhaseCancelled
				result.Stage = stage
				continue
			}

			outcome := r.runStage(ctx, scene, scope, stage)
			result.StagesRun++
			result.ActionsRun += len(scene.Actions[stage])
			result.ActionsFailed += outcome.failed

			switch {
			case outcome.abort:
				result.Phase = PhaseAborted
				result.Stage = stage
			case stage == len(scene.Actions)-1:
				result.Phase = PhaseCompleted
			default:
				stage++
			}

		default:
			return result
		}
	}
}

type stageOutcome struct {
	abort  bool
	failed int
}

// runStage runs every action of a stage concurrently and waits for all of
// them to settle.
func (r *Runner) runStage(ctx context.Context, scene *Scene, scope *Scope, stage int) stageOutcome {
	actions := scene.Actions[stage]
	signals := make([]Signal, len(actions))
	failed := make([]bool, len(actions))

	var g errgroup.Group
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}

	for i, spec := range actions {
		g.Go(func() error {
			signals[i], failed[i] = r.runAction(ctx, scene.Selector, spec, scope, stage, i)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // actions never return errors to the group

	var outcome stageOutcome
	for i := range actions {
		if signals[i] == Abort {
			outcome.abort = true
		}
		if failed[i] {
			outcome.failed++
		}
	}
	return outcome
}

// runAction executes one action, converting errors and panics into a
// logged failure that lets the stage continue.
func (r *Runner) runAction(ctx context.Context, selector string, spec ActionSpec, scope *Scope, stage, action int) (signal Signal, failed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("scene action panicked",
				"scene", selector,
				"type", string(spec.Type),
				"stage", stage,
				"action", action,
				"panic", rec,
			)
			signal, failed = Continue, true
		}
	}()

	signal, err := r.dispatcher.Execute(ctx, spec, scope, stage, action)
	if err != nil {
		r.logger.Warn("scene action failed",
			"scene", selector,
			"type", string(spec.Type),
			"stage", stage,
			"action", action,
			"error", err,
		)
		r.dispatcher.metrics.actionFailed(spec.Type)
		return signal, true
	}

	r.logger.Debug("scene action done",
		"scene", selector,
		"type", string(spec.Type),
		"stage", stage,
		"action", action,
		"signal", signal.String(),
	)
	return signal, false
}
