// Package entity turns a coordinator snapshot into presentation entities.
//
// Every bike with an id gets three entities: an odometer sensor (km), a
// module charge sensor (%) and a location tracker. Entities are identity
// only; Render re-reads the snapshot each time it is called, so consumers
// such as the MQTT bridge and the HTTP API always show the last good data.
package entity
