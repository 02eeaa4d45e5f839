package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Logger defines the logging interface used throughout the package.
// *logging.Logger and *slog.Logger both satisfy it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the engine's selector → Scene mapping.
//
// It is populated from a Repository on startup via RefreshCache and by
// Put for scenes that are never persisted (scene files, tests). Scenes go
// in and come out as deep copies, so a running job never observes an
// edit made after it was dequeued.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository // may be nil
	cache   map[string]*Scene
	cacheMu sync.RWMutex
	logger  Logger
}

// NewRegistry creates a registry. repo may be nil for an in-memory registry.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Scene),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache replaces the cache with every scene in the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}

	scenes, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading scenes: %w", err)
	}

	cache := make(map[string]*Scene, len(scenes))
	for i := range scenes {
		cache[scenes[i].Selector] = scenes[i].DeepCopy()
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.cacheMu.Unlock()

	r.logger.Info("scene cache refreshed", "count", len(scenes))
	return nil
}

// Put registers or replaces a scene in the cache only.
func (r *Registry) Put(scene *Scene) {
	cpy := scene.DeepCopy()

	r.cacheMu.Lock()
	r.cache[cpy.Selector] = cpy
	r.cacheMu.Unlock()
}

// Remove drops a scene from the cache only.
func (r *Registry) Remove(selector string) {
	r.cacheMu.Lock()
	delete(r.cache, selector)
	r.cacheMu.Unlock()
}

// GetScene returns a deep copy of the scene registered under selector.
func (r *Registry) GetScene(selector string) (*Scene, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[selector]
	r.cacheMu.RUnlock()

	if !ok {
		return nil, ErrSceneNotFound
	}
	return cached.DeepCopy(), nil
}

// ListScenes returns deep copies of every scene, sorted by selector.
func (r *Registry) ListScenes() []Scene {
	r.cacheMu.RLock()
	scenes := make([]Scene, 0, len(r.cache))
	for _, s := range r.cache {
		scenes = append(scenes, *s.DeepCopy())
	}
	r.cacheMu.RUnlock()

	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Selector < scenes[j].Selector })
	return scenes
}

// Count returns the number of registered scenes.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// SaveScene validates, persists and caches a scene.
func (r *Registry) SaveScene(ctx context.Context, scene *Scene) error {
	if err := ValidateScene(scene); err != nil {
		return err
	}
	if r.repo != nil {
		if err := r.repo.Save(ctx, scene); err != nil {
			return err
		}
	}
	r.Put(scene)

	r.logger.Info("scene saved", "scene", scene.Selector, "stages", len(scene.Actions))
	return nil
}

// DeleteScene removes a scene from the repository and the cache.
func (r *Registry) DeleteScene(ctx context.Context, selector string) error {
	if r.repo != nil {
		if err := r.repo.Delete(ctx, selector); err != nil {
			return err
		}
	} else if _, err := r.GetScene(selector); err != nil {
		return err
	}
	r.Remove(selector)

	r.logger.Info("scene deleted", "scene", selector)
	return nil
}
