// Package mqtt provides the broker connection used to publish bike state.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and retained flags
//   - Subscriptions, restored after reconnect
//   - A Last Will on ponbike/status so consumers see the bridge go offline
//
// # Topics
//
//	ponbike/status                  bridge process online/offline (retained, LWT)
//	ponbike/health                  coordinator health (retained)
//	ponbike/device/{bike}           device document (retained)
//	ponbike/entity/{bike}/{key}     entity metadata (retained)
//	ponbike/state/{bike}/{key}      entity value (retained)
//	ponbike/command/refresh         inbound: request a refresh
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Hooks{Logger: log})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(mqtt.Topics{}.Health(), payload, 1, true)
package mqtt
