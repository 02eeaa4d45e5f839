package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes. Bridge topics use the flat scheme
// graylogic/{category}/{protocol}/{address}.
const (
	// TopicPrefixBridge is the base for all bridge topics.
	TopicPrefixBridge = "graylogic"

	// TopicPrefixCore is the base for events published by the scene engine.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for Gray Logic MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("knx", "light-living-main")
//	// Returns: "graylogic/state/knx/light-living-main"
type Topics struct{}

// =============================================================================
// Bridge Topics
// =============================================================================

// DeviceState returns the topic a bridge publishes device state on.
//
// Example: graylogic/state/knx/light-living-main
func (Topics) DeviceState(protocol, device string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, device)
}

// DeviceCommand returns the topic the engine publishes device commands on.
//
// Example: graylogic/command/knx/light-living-main
func (Topics) DeviceCommand(protocol, device string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefixBridge, protocol, device)
}

// =============================================================================
// Core Topics
// =============================================================================

// SceneExecuted returns the topic for scene execution events.
//
// Example: graylogic/core/scene/cinema-mode/executed
func (Topics) SceneExecuted(selector string) string {
	return fmt.Sprintf("%s/scene/%s/executed", TopicPrefixCore, selector)
}

// SceneExecute returns the topic other services publish on to request a
// scene run.
//
// Example: graylogic/core/scene/cinema-mode/execute
func (Topics) SceneExecute(selector string) string {
	return fmt.Sprintf("%s/scene/%s/execute", TopicPrefixCore, selector)
}

// EngineStatus returns the retained online/offline status topic.
func (Topics) EngineStatus() string {
	return TopicPrefixSystem + "/scenes/status"
}

// =============================================================================
// Wildcard Subscriptions
// =============================================================================

// AllDeviceStates returns a wildcard for every bridge state update.
func (Topics) AllDeviceStates() string {
	return TopicPrefixBridge + "/state/+/+"
}

// AllSceneEvents returns a wildcard for every scene execution event.
func (Topics) AllSceneEvents() string {
	return TopicPrefixCore + "/scene/+/executed"
}

// AllSceneExecuteRequests returns a wildcard for every scene run request.
func (Topics) AllSceneExecuteRequests() string {
	return TopicPrefixCore + "/scene/+/execute"
}

// ParseSceneExecute extracts the selector from a scene run request topic.
func ParseSceneExecute(topic string) (selector string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0]+"/"+parts[1] != TopicPrefixCore || parts[2] != "scene" || parts[4] != "execute" {
		return "", false
	}
	if parts[3] == "" {
		return "", false
	}
	return parts[3], true
}

// ParseDeviceState splits a device state topic into protocol and device.
// ok is false when topic does not have the graylogic/state/{protocol}/{device} shape.
func ParseDeviceState(topic string) (protocol, device string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefixBridge || parts[1] != "state" {
		return "", "", false
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}
