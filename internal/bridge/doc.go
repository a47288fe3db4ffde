// Package bridge publishes the coordinator's snapshots to MQTT.
//
// The bridge is a coordinator subscriber: it never fetches on its own. On
// every successful cycle it writes retained messages that downstream
// consumers (dashboards, home automation, loggers) can read at any time:
//
//	ponbike/entity/{bike}/{key}   entity metadata, republished on change
//	ponbike/device/{bike}         device document, republished on change
//	ponbike/state/{bike}/{key}    entity value, every cycle
//	ponbike/health                starting / ready / degraded / stopping
//
// A message on ponbike/command/refresh requests an immediate refresh. It
// joins any cycle already in flight.
package bridge
