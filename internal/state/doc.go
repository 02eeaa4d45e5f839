// Package state holds the last-known state of devices and their features.
//
// The Store is a process-wide (entity type, key) → value cache. Set is its
// only mutator and overwrites unconditionally; Get never blocks on a
// missing key. The scene engine reads it synchronously while the
// Subscriber folds bridge state updates into it from MQTT delivery
// goroutines, so both sides go through a single RWMutex.
//
// The Store keeps no history and does not survive a restart.
package state
