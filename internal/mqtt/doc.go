// Package mqtt publishes the light state and the observed presence to an
// MQTT broker so home automation can follow along.
//
// The publisher uses Eclipse Paho v2's [autopaho] package for connection
// management with automatic reconnection. On every (re-)connect it
// publishes a birth message ("online") to the availability topic; a will
// message flips it to "offline" on unexpected disconnects. Light and
// presence states are retained so late subscribers see the current value.
package mqtt
