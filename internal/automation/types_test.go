package automation

import (
	"reflect"
	"testing"
)

func TestActionType_Kind(t *testing.T) {
	tests := map[ActionType]ActionKind{
		ActionLightTurnOn:             KindDeviceCommand,
		ActionLightTurnOff:            KindDeviceCommand,
		ActionSwitchTurnOn:            KindDeviceCommand,
		ActionSwitchTurnOff:           KindDeviceCommand,
		ActionDeviceSetValue:          KindSetValue,
		ActionDeviceGetValue:          KindReadFeatureValue,
		ActionConditionOnlyContinueIf: KindConditionGate,
		ActionSceneStart:              KindStartScene,
		ActionDelay:                   KindDelay,
		"":                            KindUnknown,
		"light.dance":                 KindUnknown,
	}
	for typ, want := range tests {
		if got := typ.Kind(); got != want {
			t.Errorf("%q.Kind() = %v, want %v", typ, got, want)
		}
	}
}

func TestScene_DeepCopy(t *testing.T) {
	original := sampleScene("evening")
	original.Triggers[0]["days"] = []any{"mon", map[string]any{"x": 1}}
	original.Actions[1][0].Conditions[0].Value = map[string]any{"nested": true}

	cpy := original.DeepCopy()
	if !reflect.DeepEqual(cpy, original) {
		t.Fatalf("DeepCopy() = %+v, want equal to original", cpy)
	}

	cpy.Triggers[0]["days"].([]any)[1].(map[string]any)["x"] = 2
	cpy.Actions[0][0].Devices[0] = "other"
	cpy.Actions[1][0].Conditions[0].Value.(map[string]any)["nested"] = false
	*cpy.Description = "changed"

	if original.Triggers[0]["days"].([]any)[1].(map[string]any)["x"] != 1 {
		t.Error("trigger maps are shared")
	}
	if original.Actions[0][0].Devices[0] != "light-1" {
		t.Error("device slices are shared")
	}
	if original.Actions[1][0].Conditions[0].Value.(map[string]any)["nested"] != true {
		t.Error("condition values are shared")
	}
	if *original.Description != "test scene" {
		t.Error("description is shared")
	}

	var nilScene *Scene
	if nilScene.DeepCopy() != nil {
		t.Error("DeepCopy() of nil should be nil")
	}
}

func TestScene_ActionCount(t *testing.T) {
	s := &Scene{Actions: [][]ActionSpec{{turnOn("a"), turnOn("b")}, {}, {turnOn("c")}}}
	if got := s.ActionCount(); got != 3 {
		t.Errorf("ActionCount() = %d, want 3", got)
	}
}
