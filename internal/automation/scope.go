package automation

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Scope is the result accumulator shared by one root execution and every
// scene it chains into.
//
// Results are keyed by stringified stage and action index, so the value
// written by action 1 of stage 0 is reachable at path "0.1". A Scope is
// passed by pointer; its identity scopes the dedup guard, so a scene
// selector is dispatched at most once per Scope.
type Scope struct {
	id string

	mu     sync.RWMutex
	values map[string]map[string]any

	guardMu sync.Mutex
	claimed map[string]struct{}
}

// NewScope creates an empty scope with a fresh guard set.
func NewScope() *Scope {
	return &Scope{
		id:      GenerateID(),
		values:  make(map[string]map[string]any),
		claimed: make(map[string]struct{}),
	}
}

// ID identifies the root execution this scope belongs to.
func (s *Scope) ID() string {
	return s.id
}

// Set writes an action's result into its slot.
func (s *Scope) Set(stage, action int, value any) {
	stageKey, actionKey := strconv.Itoa(stage), strconv.Itoa(action)

	s.mu.Lock()
	defer s.mu.Unlock()

	slots, ok := s.values[stageKey]
	if !ok {
		slots = make(map[string]any)
		s.values[stageKey] = slots
	}
	slots[actionKey] = value
}

// Get returns the result written by (stage, action).
func (s *Scope) Get(stage, action int) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[strconv.Itoa(stage)][strconv.Itoa(action)]
	return value, ok
}

// Lookup resolves a dot-separated path such as "0.0.last_value". The first
// two segments select the stage and action slot; the rest walk nested maps
// and, by numeric index, slices.
func (s *Scope) Lookup(path string) (any, error) {
	segments := strings.Split(path, ".")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return nil, fmt.Errorf("%w: %q", ErrPathNotFound, path)
	}

	s.mu.RLock()
	current, ok := s.values[segments[0]][segments[1]]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPathNotFound, path)
	}

	for _, segment := range segments[2:] {
		next, ok := step(current, segment)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrPathNotFound, path)
		}
		current = next
	}
	return current, nil
}

// step descends one path segment into value.
func step(value any, segment string) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		next, ok := v[segment]
		return next, ok
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}

// Snapshot returns a deep copy of every recorded result.
func (s *Scope) Snapshot() map[string]map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]map[string]any, len(s.values))
	for stage, slots := range s.values {
		cpy := make(map[string]any, len(slots))
		for action, value := range slots {
			cpy[action] = deepCopyValue(value)
		}
		out[stage] = cpy
	}
	return out
}

// claim adds selector to the guard set. It reports false when selector was
// already claimed within this scope.
func (s *Scope) claim(selector string) bool {
	s.guardMu.Lock()
	defer s.guardMu.Unlock()

	if _, seen := s.claimed[selector]; seen {
		return false
	}
	s.claimed[selector] = struct{}{}
	return true
}

// dispatched reports whether selector has been claimed within this scope.
func (s *Scope) dispatched(selector string) bool {
	s.guardMu.Lock()
	defer s.guardMu.Unlock()

	_, seen := s.claimed[selector]
	return seen
}
