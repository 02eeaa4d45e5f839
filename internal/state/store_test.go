package state

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestStore_SetGet(t *testing.T) {
	s := NewStore()

	if _, ok := s.Get(EntityDeviceFeature, "missing"); ok {
		t.Error("Get() on empty store should report absent")
	}

	s.Set(EntityDeviceFeature, "f1", 1)
	s.Set(EntityDeviceFeature, "f1", 2)
	s.Set(EntityDevice, "f1", "device")

	got, ok := s.Get(EntityDeviceFeature, "f1")
	if !ok || got != 2 {
		t.Errorf("Get() = (%v, %v), want last write 2", got, ok)
	}

	got, ok = s.Get(EntityDevice, "f1")
	if !ok || got != "device" {
		t.Errorf("entity types should be separate namespaces, got %v", got)
	}
}

func TestStore_Keys(t *testing.T) {
	s := NewStore()
	s.Set(EntityDevice, "b", nil)
	s.Set(EntityDevice, "a", nil)
	s.Set(EntityDeviceFeature, "z", nil)

	if got := s.Keys(EntityDevice); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Keys() = %v", got)
	}
	if got := s.Keys("unknown"); len(got) != 0 {
		t.Errorf("Keys(unknown) = %v, want empty", got)
	}
}

func TestStore_TypedAccessors(t *testing.T) {
	s := NewStore()
	s.Set(EntityDeviceFeature, "f", FeatureSnapshot{Category: "light", Type: "binary", LastValue: 1})
	s.Set(EntityDeviceFeature, "raw", "not a snapshot")
	s.Set(EntityDevice, "d", DeviceRecord{ID: "d", Protocol: "knx"})

	if f, ok := s.Feature("f"); !ok || f.Category != "light" {
		t.Errorf("Feature() = (%+v, %v)", f, ok)
	}
	if _, ok := s.Feature("raw"); ok {
		t.Error("Feature() should reject non-snapshot values")
	}
	if _, ok := s.Feature("missing"); ok {
		t.Error("Feature() should report missing")
	}
	if d, ok := s.Device("d"); !ok || d.Protocol != "knx" {
		t.Errorf("Device() = (%+v, %v)", d, ok)
	}
}

func TestFeatureSnapshot_Map(t *testing.T) {
	tests := []struct {
		name string
		in   FeatureSnapshot
		want map[string]any
	}{
		{
			name: "without device",
			in:   FeatureSnapshot{Category: "light", Type: "binary", LastValue: 15},
			want: map[string]any{"category": "light", "type": "binary", "last_value": 15},
		},
		{
			name: "with device",
			in:   FeatureSnapshot{Device: "light-1", Category: "light", Type: "binary", LastValue: 0},
			want: map[string]any{"device": "light-1", "category": "light", "type": "binary", "last_value": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Map(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Map() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	for w := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 200 {
				s.Set(EntityDeviceFeature, fmt.Sprintf("f-%d", i%10), w*i)
			}
		}()
		go func() {
			defer wg.Done()
			for i := range 200 {
				s.Get(EntityDeviceFeature, fmt.Sprintf("f-%d", i%10))
				s.Keys(EntityDeviceFeature)
			}
		}()
	}
	wg.Wait()

	if got := len(s.Keys(EntityDeviceFeature)); got != 10 {
		t.Errorf("keys = %d, want 10", got)
	}
}
