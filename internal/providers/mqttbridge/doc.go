// Package mqttbridge is the vendor integration for MQTT-attached
// devices. It registers itself as the "mqtt" provider in the capability
// registry, publishes commands to set topics, and records observed state
// from state topics into the event log.
package mqttbridge
