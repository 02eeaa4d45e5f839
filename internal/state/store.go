package state

import (
	"sort"
	"sync"
	"time"
)

// EntityType namespaces keys in the Store.
type EntityType string

// Entity types known to the engine.
const (
	EntityDeviceFeature EntityType = "deviceFeature"
	EntityDevice        EntityType = "device"
)

// FeatureSnapshot is the last-known state of one device feature.
type FeatureSnapshot struct {
	Device    string `json:"device,omitempty"`
	Category  string `json:"category"`
	Type      string `json:"type"`
	LastValue any    `json:"last_value"`
}

// Map returns the snapshot as a plain map so scope path lookups can walk
// into it. Device is omitted when empty.
func (f FeatureSnapshot) Map() map[string]any {
	m := map[string]any{
		"category":   f.Category,
		"type":       f.Type,
		"last_value": f.LastValue,
	}
	if f.Device != "" {
		m["device"] = f.Device
	}
	return m
}

// DeviceRecord is the last-known routing information for a device.
type DeviceRecord struct {
	ID        string    `json:"id"`
	Protocol  string    `json:"protocol"`
	Online    bool      `json:"online"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the shared last-write-wins state cache.
//
// Values are stored as given; callers must treat returned maps and slices
// as read-only.
type Store struct {
	mu      sync.RWMutex
	entries map[EntityType]map[string]any
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[EntityType]map[string]any)}
}

// Set overwrites the value for (entityType, key).
func (s *Store) Set(entityType EntityType, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.entries[entityType]
	if !ok {
		bucket = make(map[string]any)
		s.entries[entityType] = bucket
	}
	bucket[key] = value
}

// Get returns the value for (entityType, key) and whether it was present.
func (s *Store) Get(entityType EntityType, key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.entries[entityType][key]
	return value, ok
}

// Keys returns the keys stored under entityType, sorted.
func (s *Store) Keys(entityType EntityType) []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.entries[entityType]))
	for k := range s.entries[entityType] {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Feature returns the typed snapshot for a feature selector.
func (s *Store) Feature(selector string) (FeatureSnapshot, bool) {
	value, ok := s.Get(EntityDeviceFeature, selector)
	if !ok {
		return FeatureSnapshot{}, false
	}
	snapshot, ok := value.(FeatureSnapshot)
	return snapshot, ok
}

// Device returns the routing record for a device.
func (s *Store) Device(id string) (DeviceRecord, bool) {
	value, ok := s.Get(EntityDevice, id)
	if !ok {
		return DeviceRecord{}, false
	}
	record, ok := value.(DeviceRecord)
	return record, ok
}
