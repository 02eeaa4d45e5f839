package device

import (
	"context"
	"sync"
)

// Call is one recorded SetValue invocation.
type Call struct {
	Device  string
	Feature Feature
	Value   any
}

// DryRunCommander records and logs commands without sending them.
type DryRunCommander struct {
	mu     sync.Mutex
	calls  []Call
	logger Logger
}

// NewDryRunCommander creates a DryRunCommander. logger may be nil.
func NewDryRunCommander(logger Logger) *DryRunCommander {
	if logger == nil {
		logger = noopLogger{}
	}
	return &DryRunCommander{logger: logger}
}

// SetValue records the call.
func (d *DryRunCommander) SetValue(ctx context.Context, device string, feature Feature, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	d.calls = append(d.calls, Call{Device: device, Feature: feature, Value: value})
	d.mu.Unlock()

	d.logger.Info("dry run: device command",
		"device", device,
		"feature", feature.String(),
		"value", value,
	)
	return nil
}

// Calls returns a copy of the recorded calls in arrival order.
func (d *DryRunCommander) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}
