package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-scenes/internal/device"
	"github.com/nerrad567/gray-logic-scenes/internal/state"
)

// Signal tells the runner whether the current scene may continue.
type Signal int

// Control signals.
const (
	Continue Signal = iota
	Abort
)

func (s Signal) String() string {
	if s == Abort {
		return "abort"
	}
	return "continue"
}

// StateReader is the read side of the state store. *state.Store
// satisfies it.
type StateReader interface {
	Get(entityType state.EntityType, key string) (any, bool)
	Feature(selector string) (state.FeatureSnapshot, bool)
}

// SceneStarter schedules a chained scene against a shared scope. It reports
// false when the request was collapsed by the scope's guard or dropped.
// *Queue satisfies it.
type SceneStarter interface {
	Enqueue(selector string, scope *Scope) bool
}

// Dispatcher executes single actions against the scope, the state store
// and the device commander.
type Dispatcher struct {
	states         StateReader
	commander      device.Commander
	scenes         SceneStarter
	commandTimeout time.Duration
	logger         Logger
	metrics        *Metrics

	// sleep waits for d or until ctx is done.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a dispatcher. scenes receives scene.start requests.
func NewDispatcher(states StateReader, commander device.Commander, scenes SceneStarter, commandTimeout time.Duration, logger Logger) *Dispatcher {
	if logger == nil {
		logger = noopLogger{}
	}
	if states == nil {
		states = state.NewStore()
	}
	return &Dispatcher{
		states:         states,
		commander:      commander,
		scenes:         scenes,
		commandTimeout: commandTimeout,
		logger:         logger,
		sleep:          sleepContext,
	}
}

// Execute runs one action. The error reports a failed action; it never
// means the scene should stop. Only a false condition gate returns Abort.
func (d *Dispatcher) Execute(ctx context.Context, spec ActionSpec, scope *Scope, stage, action int) (Signal, error) {
	switch spec.Type.Kind() {
	case KindDeviceCommand:
		return Continue, d.deviceCommand(ctx, spec)

	case KindSetValue:
		return Continue, d.setValue(ctx, spec)

	case KindReadFeatureValue:
		scope.Set(stage, action, d.readFeature(spec.DeviceFeature))
		return Continue, nil

	case KindConditionGate:
		return d.conditionGate(spec, scope, stage, action), nil

	case KindStartScene:
		if !d.scenes.Enqueue(spec.Scene, scope) {
			d.logger.Debug("chained scene not scheduled",
				"scene", spec.Scene,
				"root_id", scope.ID(),
			)
		}
		return Continue, nil

	case KindDelay:
		return Continue, d.delay(ctx, spec)

	default:
		d.logger.Warn("unknown action type, skipping",
			"type", string(spec.Type),
			"stage", stage,
			"action", action,
		)
		d.metrics.unknownAction()
		return Continue, nil
	}
}

// deviceCommand sets the binary feature of every listed device and waits
// for all of them to settle.
func (d *Dispatcher) deviceCommand(ctx context.Context, spec ActionSpec) error {
	feature, value, err := device.ParseCommand(string(spec.Type))
	if err != nil {
		return err
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, id := range spec.Devices {
		g.Go(func() error {
			if err := d.setDevice(ctx, id, feature, value); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("device %q: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines collect errors themselves

	return errors.Join(errs...)
}

// setValue writes spec.Value to a named feature, resolving its device from
// the feature snapshot in the state store.
func (d *Dispatcher) setValue(ctx context.Context, spec ActionSpec) error {
	snapshot, ok := d.states.Feature(spec.DeviceFeature)
	if !ok || snapshot.Device == "" {
		return fmt.Errorf("%w: %q", ErrFeatureNotFound, spec.DeviceFeature)
	}

	feature := device.Feature{
		Selector: spec.DeviceFeature,
		Category: snapshot.Category,
		Type:     snapshot.Type,
	}
	return d.setDevice(ctx, snapshot.Device, feature, spec.Value)
}

func (d *Dispatcher) setDevice(ctx context.Context, id string, feature device.Feature, value any) (err error) {
	// Commands run on their own goroutines, out of reach of the runner's recover.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("command panicked: %v", rec)
		}
	}()

	if d.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.commandTimeout)
		defer cancel()
	}
	return d.commander.SetValue(ctx, id, feature, value)
}

// readFeature returns the feature's snapshot as a map, or an empty map
// when the store has never seen the feature. Values of other shapes are
// normalised through JSON so condition paths can address their fields.
func (d *Dispatcher) readFeature(selector string) any {
	raw, ok := d.states.Get(state.EntityDeviceFeature, selector)
	if !ok || raw == nil {
		return map[string]any{}
	}
	switch v := raw.(type) {
	case state.FeatureSnapshot:
		return v.Map()
	case map[string]any:
		return deepCopyMap(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			d.logger.Warn("feature value not representable, storing as-is",
				"feature", selector,
				"error", err,
			)
			return v
		}
		var normalised any
		if err := json.Unmarshal(data, &normalised); err != nil {
			return v
		}
		return normalised
	}
}

// conditionGate returns Abort unless every condition holds.
func (d *Dispatcher) conditionGate(spec ActionSpec, scope *Scope, stage, action int) Signal {
	for i, c := range spec.Conditions {
		ok, err := c.Evaluate(scope)
		if ok {
			continue
		}
		args := []any{
			"root_id", scope.ID(),
			"stage", stage,
			"action", action,
			"condition", i,
			"variable", c.Variable,
			"operator", string(c.Operator),
		}
		if err != nil {
			args = append(args, "reason", err.Error())
		}
		d.logger.Info("condition not met, stopping scene", args...)
		return Abort
	}
	return Continue
}

func (d *Dispatcher) delay(ctx context.Context, spec ActionSpec) error {
	duration, err := delayDuration(spec)
	if err != nil {
		return err
	}
	return d.sleep(ctx, duration)
}

// delayDuration converts a delay action's value and unit.
func delayDuration(spec ActionSpec) (time.Duration, error) {
	n, ok := toFloat(spec.Value)
	if !ok || math.IsNaN(n) || n < 0 {
		return 0, fmt.Errorf("%w: delay value must be a non-negative number", ErrInvalidAction)
	}

	var unit time.Duration
	switch spec.Unit {
	case "", UnitMilliseconds:
		unit = time.Millisecond
	case UnitSeconds:
		unit = time.Second
	case UnitMinutes:
		unit = time.Minute
	default:
		return 0, fmt.Errorf("%w: unknown delay unit %q", ErrInvalidAction, spec.Unit)
	}

	// Compared as float so huge values cannot overflow into a negative Duration.
	if n*float64(unit) > float64(maxDelay) {
		return 0, fmt.Errorf("%w: delay exceeds %v", ErrInvalidAction, maxDelay)
	}
	return time.Duration(n * float64(unit)), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("delay interrupted: %w", ctx.Err())
	}
}
