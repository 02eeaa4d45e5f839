package automation

import (
	"time"
)

// Scene is a named automation made of ordered stages of actions.
//
// Stages run one after another; the actions inside a stage run
// concurrently and all settle before the next stage starts. Triggers are
// carried for the scheduler that decides when to fire the scene and are
// never interpreted by the engine.
type Scene struct {
	Selector    string           `json:"selector" yaml:"selector"`
	Name        string           `json:"name" yaml:"name"`
	Description *string          `json:"description,omitempty" yaml:"description,omitempty"`
	Triggers    []map[string]any `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Actions     [][]ActionSpec   `json:"actions" yaml:"actions"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// ActionType is the wire "type" of an action.
type ActionType string

// Known action types.
const (
	ActionLightTurnOn   ActionType = "light.turn-on"
	ActionLightTurnOff  ActionType = "light.turn-off"
	ActionSwitchTurnOn  ActionType = "switch.turn-on"
	ActionSwitchTurnOff ActionType = "switch.turn-off"

	ActionDeviceSetValue ActionType = "device.set-value"
	ActionDeviceGetValue ActionType = "device.get-value"

	ActionConditionOnlyContinueIf ActionType = "condition.only-continue-if"
	ActionSceneStart              ActionType = "scene.start"
	ActionDelay                   ActionType = "delay"
)

// ActionKind is the closed set of behaviours an ActionType maps onto.
type ActionKind int

// Action kinds.
const (
	KindUnknown ActionKind = iota
	KindDeviceCommand
	KindSetValue
	KindReadFeatureValue
	KindConditionGate
	KindStartScene
	KindDelay
)

// Kind classifies the action type. Anything not listed is KindUnknown.
func (t ActionType) Kind() ActionKind {
	switch t {
	case ActionLightTurnOn, ActionLightTurnOff, ActionSwitchTurnOn, ActionSwitchTurnOff:
		return KindDeviceCommand
	case ActionDeviceSetValue:
		return KindSetValue
	case ActionDeviceGetValue:
		return KindReadFeatureValue
	case ActionConditionOnlyContinueIf:
		return KindConditionGate
	case ActionSceneStart:
		return KindStartScene
	case ActionDelay:
		return KindDelay
	default:
		return KindUnknown
	}
}

// ActionSpec is one action of a stage. Which fields are meaningful depends
// on Type:
//
//	light.*/switch.*             Devices
//	device.set-value             DeviceFeature, Value
//	device.get-value             DeviceFeature
//	condition.only-continue-if   Conditions
//	scene.start                  Scene
//	delay                        Value, Unit
type ActionSpec struct {
	Type          ActionType  `json:"type" yaml:"type"`
	Devices       []string    `json:"devices,omitempty" yaml:"devices,omitempty"`
	DeviceFeature string      `json:"device_feature,omitempty" yaml:"device_feature,omitempty"`
	Conditions    []Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Scene         string      `json:"scene,omitempty" yaml:"scene,omitempty"`
	Value         any         `json:"value,omitempty" yaml:"value,omitempty"`
	Unit          DelayUnit   `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Condition compares the scope value at Variable (a dot path such as
// "0.0.last_value") with Value.
type Condition struct {
	Variable string   `json:"variable" yaml:"variable"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`
}

// Operator is a comparison operator.
type Operator string

// Comparison operators.
const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpGreaterEqual Operator = ">="
)

// DelayUnit is the unit of a delay action's Value.
type DelayUnit string

// Delay units. An empty unit means milliseconds.
const (
	UnitMilliseconds DelayUnit = "milliseconds"
	UnitSeconds      DelayUnit = "seconds"
	UnitMinutes      DelayUnit = "minutes"
)

// SceneExecution records one job taken off the dispatch queue.
type SceneExecution struct {
	ID            string          `json:"id"`
	SceneSelector string          `json:"scene_selector"`
	RootID        string          `json:"root_id"`
	Status        ExecutionStatus `json:"status"`

	StagesTotal   int  `json:"stages_total"`
	StagesRun     int  `json:"stages_run"`
	ActionsRun    int  `json:"actions_run"`
	ActionsFailed int  `json:"actions_failed"`
	AbortStage    *int `json:"abort_stage,omitempty"`

	Error *string `json:"error,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`
}

// ExecutionStatus is the outcome of a scene job.
type ExecutionStatus string

const (
	// StatusCompleted means every stage ran.
	StatusCompleted ExecutionStatus = "completed"
	// StatusAborted means a condition gate stopped the remaining stages.
	StatusAborted ExecutionStatus = "aborted"
	// StatusNotFound means no scene was registered under the selector.
	StatusNotFound ExecutionStatus = "not_found"
	// StatusFailed means the engine shut down mid-run.
	StatusFailed ExecutionStatus = "failed"
)

// DeepCopy returns an independent copy of the scene.
func (s *Scene) DeepCopy() *Scene {
	if s == nil {
		return nil
	}
	cpy := *s

	if s.Description != nil {
		d := *s.Description
		cpy.Description = &d
	}

	if s.Triggers != nil {
		cpy.Triggers = make([]map[string]any, len(s.Triggers))
		for i, trigger := range s.Triggers {
			cpy.Triggers[i] = deepCopyMap(trigger)
		}
	}

	if s.Actions != nil {
		cpy.Actions = make([][]ActionSpec, len(s.Actions))
		for i, stage := range s.Actions {
			if stage == nil {
				continue
			}
			cpy.Actions[i] = make([]ActionSpec, len(stage))
			for j, action := range stage {
				cpy.Actions[i][j] = action.deepCopy()
			}
		}
	}

	return &cpy
}

func (a ActionSpec) deepCopy() ActionSpec {
	cpy := a
	if a.Devices != nil {
		cpy.Devices = append([]string(nil), a.Devices...)
	}
	if a.Conditions != nil {
		cpy.Conditions = make([]Condition, len(a.Conditions))
		for i, c := range a.Conditions {
			cpy.Conditions[i] = Condition{Variable: c.Variable, Operator: c.Operator, Value: deepCopyValue(c.Value)}
		}
	}
	cpy.Value = deepCopyValue(a.Value)
	return cpy
}

// ActionCount returns the number of actions across all stages.
func (s *Scene) ActionCount() int {
	n := 0
	for _, stage := range s.Actions {
		n += len(stage)
	}
	return n
}

// deepCopyMap creates a deep copy of a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}
