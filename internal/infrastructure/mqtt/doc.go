// Package mqtt provides MQTT client connectivity for the Gray Logic scene engine.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions restored after reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The engine sits on the same bus as the protocol bridges. Bridges publish
// device state which the engine folds into its state store; the engine
// publishes device commands back to the bridges and broadcasts a scene
// execution event for every run.
//
//	Protocol Bridges ↔ MQTT Broker ↔ Scene Engine
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceStates(), 1, handler)
package mqtt
