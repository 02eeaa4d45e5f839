package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-scenes/internal/device"
)

// ─── Mock Dependencies ──────────────────────────────────────────────────────

type commandCall struct {
	Device  string
	Feature device.Feature
	Value   any
	Origin  device.Origin
}

// mockCommander records SetValue calls. Devices listed in failOn return an
// error after being recorded.
type mockCommander struct {
	mu     sync.Mutex
	calls  []commandCall
	failOn map[string]bool
}

func newMockCommander(failOn ...string) *mockCommander {
	m := &mockCommander{failOn: make(map[string]bool)}
	for _, d := range failOn {
		m.failOn[d] = true
	}
	return m
}

func (m *mockCommander) SetValue(ctx context.Context, id string, feature device.Feature, value any) error {
	origin, _ := device.OriginFrom(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, commandCall{Device: id, Feature: feature, Value: value, Origin: origin})
	if m.failOn[id] {
		return fmt.Errorf("%w: %s", device.ErrNotConnected, id)
	}
	return nil
}

func (m *mockCommander) getCalls() []commandCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := make([]commandCall, len(m.calls))
	copy(cpy, m.calls)
	return cpy
}

func (m *mockCommander) callsFor(id string) int {
	n := 0
	for _, c := range m.getCalls() {
		if c.Device == id {
			n++
		}
	}
	return n
}

// mockRepository is an in-memory Repository.
type mockRepository struct {
	mu         sync.Mutex
	scenes     map[string]*Scene
	executions []SceneExecution
	saveErr    error
}

func newMockRepository() *mockRepository {
	return &mockRepository{scenes: make(map[string]*Scene)}
}

func (m *mockRepository) GetBySelector(_ context.Context, selector string) (*Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scenes[selector]
	if !ok {
		return nil, ErrSceneNotFound
	}
	return s.DeepCopy(), nil
}

func (m *mockRepository) List(_ context.Context) ([]Scene, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Scene, 0, len(m.scenes))
	for _, s := range m.scenes {
		out = append(out, *s.DeepCopy())
	}
	return out, nil
}

func (m *mockRepository) Save(_ context.Context, scene *Scene) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.scenes[scene.Selector] = scene.DeepCopy()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, selector string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scenes[selector]; !ok {
		return ErrSceneNotFound
	}
	delete(m.scenes, selector)
	return nil
}

func (m *mockRepository) CreateExecution(_ context.Context, exec *SceneExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions = append(m.executions, *exec)
	return nil
}

func (m *mockRepository) ListExecutions(_ context.Context, selector string, _ int) ([]SceneExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SceneExecution
	for _, e := range m.executions {
		if e.SceneSelector == selector {
			out = append(out, e)
		}
	}
	return out, nil
}

// recordingLogger captures log calls by level.
type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

type logEntry struct {
	Level string
	Msg   string
	Args  []any
}

func (l *recordingLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{Level: level, Msg: msg, Args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

func (l *recordingLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Level == level && e.Msg == msg {
			return true
		}
	}
	return false
}

// executionRecorder is an ExecutionObserver that keeps every record.
type executionRecorder struct {
	mu      sync.Mutex
	records []SceneExecution
}

func (r *executionRecorder) ObserveExecution(_ context.Context, exec *SceneExecution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *exec)
}

func (r *executionRecorder) forScene(selector string) []SceneExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SceneExecution
	for _, e := range r.records {
		if e.SceneSelector == selector {
			out = append(out, e)
		}
	}
	return out
}

func (r *executionRecorder) all() []SceneExecution {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SceneExecution(nil), r.records...)
}

var errBoom = errors.New("boom")
