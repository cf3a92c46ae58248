// Package mqtt wraps paho.mqtt.golang for the device bridge: connection
// management with auto-reconnect, retained hub status with a Last Will,
// tracked subscriptions restored on reconnect, and the karen topic
// hierarchy.
//
// Device state flows in on karen/device/{id}/state/{property} topics and
// commands flow out on karen/device/{id}/set/{property}; the providers
// package builds the actual bridge on top of this client.
package mqtt
