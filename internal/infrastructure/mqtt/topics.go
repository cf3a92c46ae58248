package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout:
//
//	karen/system/status                     retained hub online/offline
//	karen/device/{device}/state/{property}  observed state from devices
//	karen/device/{device}/set/{property}    commands to devices
//
// State topics carry what a device reports; set topics carry what we ask
// of it. The two never share a topic, mirroring the command/observation
// split in the capability layer.
const topicPrefix = "karen"

// Topics builds and parses the karen topic hierarchy.
type Topics struct{}

// SystemStatus returns the retained hub status topic.
func (Topics) SystemStatus() string {
	return topicPrefix + "/system/status"
}

// DeviceState returns the state topic for one device property.
func (Topics) DeviceState(deviceID, property string) string {
	return fmt.Sprintf("%s/device/%s/state/%s", topicPrefix, deviceID, property)
}

// DeviceCommand returns the command topic for one device property.
func (Topics) DeviceCommand(deviceID, property string) string {
	return fmt.Sprintf("%s/device/%s/set/%s", topicPrefix, deviceID, property)
}

// AllDeviceStates returns the wildcard pattern matching every device
// state topic.
func (Topics) AllDeviceStates() string {
	return topicPrefix + "/device/+/state/+"
}

// ParseDeviceState extracts the device id and property from a state
// topic. ok is false when the topic is not a device state topic.
func (Topics) ParseDeviceState(topic string) (deviceID, property string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != topicPrefix || parts[1] != "device" || parts[3] != "state" {
		return "", "", false
	}
	if parts[2] == "" || parts[4] == "" {
		return "", "", false
	}
	return parts[2], parts[4], true
}
