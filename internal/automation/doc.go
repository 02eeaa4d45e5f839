// Package automation provides the scene engine for Gray Logic.
//
// A scene is a selector-addressed list of stages. Stages run strictly in
// order; the actions inside one stage run concurrently and all settle before
// the next stage starts. Every action's result is written to the execution
// Scope at (stage, action), where later condition gates read it by dot path.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                    Engine (engine.go)                     │
//	│  Execute ──▶ Queue (queue.go) ── one job at a time ──┐    │
//	│                 ▲                                    ▼    │
//	│                 │ scene.start            Runner (runner.go)
//	│                 │                            │            │
//	│                 └──── Dispatcher (dispatcher.go) ◀──┘     │
//	│                          │         │                      │
//	│                 device.Commander  StateReader             │
//	│                                                           │
//	│  Registry (registry.go) ──▶ Repository (repository.go)    │
//	│  Observers (observers.go): execution log, MQTT, InfluxDB  │
//	└──────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Scene: selector, name, triggers and stages of ActionSpec
//   - Scope: per root execution results plus the dispatched-selector guard
//   - SceneExecution: record of one job taken off the queue
//   - Engine: queue, runner and observers behind Execute
//   - Registry: thread-safe cache wrapping a Repository
//
// # Deduplication
//
// A selector is dispatched at most once per Scope. Starting a scene from
// inside another scene shares the caller's Scope, so chains run once each
// and cycles terminate.
//
// # Thread Safety
//
// Registry, Scope and Engine are safe for concurrent use.
//
// # Usage
//
//	registry := automation.NewRegistry(automation.NewSQLiteRepository(db.DB))
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	engine := automation.NewEngine(registry, automation.EngineOptions{
//	    States:    store,
//	    Commander: commander,
//	    Logger:    log,
//	})
//	defer engine.Close()
//
//	if err := engine.Execute(ctx, "evening", nil); err != nil {
//	    return err
//	}
//	engine.OnDrain(func() { log.Info("all scenes settled") })
package automation
