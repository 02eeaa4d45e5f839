// Package device sends device commands on behalf of the scene engine.
//
// A Commander sets one feature of one device to a value. The MQTT
// implementation publishes a command document to the owning bridge on
// graylogic/command/{protocol}/{device}; the bridge is responsible for
// delivery and retries. DryRunCommander records and logs commands
// without sending them, for one-shot CLI runs.
//
// ParseCommand maps the engine's device command action types (for example
// light.turn-on) onto the feature and value they imply.
package device
