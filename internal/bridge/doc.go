// Package bridge exposes KWL units to Home Assistant over MQTT.
//
// Each unit is announced with retained discovery configs under
//
//	<discovery prefix>/<component>/<serial>/<key>/config
//
// and its state is published to <topic prefix>/<serial>/<key>/state. Writable
// entities (operating mode, fan speeds, intensive duration and power) listen on
// <topic prefix>/<serial>/<key>/set. Entities are available only while both the
// bridge status topic and the unit availability topic read "online".
package bridge
