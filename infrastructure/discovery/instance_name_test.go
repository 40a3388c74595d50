package discovery

import "testing"

func TestCreateInstanceName(t *testing.T) {
	tests := []struct {
		name, deviceID, want string
	}{
		{"My Phone", "abc123", "My Phone--abc123"},
		{"My--Device", "xyz", "My-Device--xyz"},
	}
	for _, tt := range tests {
		if got := createInstanceName(tt.name, tt.deviceID); got != tt.want {
			t.Errorf("createInstanceName(%q, %q) = %q, want %q", tt.name, tt.deviceID, got, tt.want)
		}
	}
}

func TestParseInstanceName(t *testing.T) {
	tests := []struct {
		instance     string
		wantName     string
		wantDeviceID string
		wantOK       bool
	}{
		{"My-Device--abc123", "My-Device", "abc123", true},
		{"laptop--550e8400-e29b-41d4-a716-446655440000", "laptop", "550e8400-e29b-41d4-a716-446655440000", true},
		{"NoSeparator", "", "", false},
		{"--OnlyId", "", "", false},
		{"OnlyName--", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		name, deviceID, ok := parseInstanceName(tt.instance)
		if ok != tt.wantOK || name != tt.wantName || deviceID != tt.wantDeviceID {
			t.Errorf("parseInstanceName(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.instance, name, deviceID, ok, tt.wantName, tt.wantDeviceID, tt.wantOK)
		}
	}
}
