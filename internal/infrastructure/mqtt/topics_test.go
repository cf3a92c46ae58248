package mqtt

import "testing"

func TestDeviceTopics(t *testing.T) {
	topics := Topics{}

	if got := topics.DeviceState("light-1", "on"); got != "karen/device/light-1/state/on" {
		t.Errorf("DeviceState() = %q", got)
	}
	if got := topics.DeviceCommand("light-1", "brightness"); got != "karen/device/light-1/set/brightness" {
		t.Errorf("DeviceCommand() = %q", got)
	}
	if got := topics.SystemStatus(); got != "karen/system/status" {
		t.Errorf("SystemStatus() = %q", got)
	}
}

func TestParseDeviceState(t *testing.T) {
	tests := []struct {
		name       string
		topic      string
		wantDevice string
		wantProp   string
		wantOK     bool
	}{
		{"valid", "karen/device/light-1/state/on", "light-1", "on", true},
		{"command topic", "karen/device/light-1/set/on", "", "", false},
		{"wrong prefix", "other/device/light-1/state/on", "", "", false},
		{"too short", "karen/device/light-1/state", "", "", false},
		{"too long", "karen/device/light-1/state/on/extra", "", "", false},
		{"empty device", "karen/device//state/on", "", "", false},
		{"empty property", "karen/device/light-1/state/", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device, prop, ok := Topics{}.ParseDeviceState(tt.topic)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if device != tt.wantDevice || prop != tt.wantProp {
				t.Errorf("parsed (%q, %q), want (%q, %q)", device, prop, tt.wantDevice, tt.wantProp)
			}
		})
	}
}
