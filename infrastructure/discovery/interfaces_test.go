package discovery

import "testing"

func TestIsVirtualInterface(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"eth0", false},
		{"wlan0", false},
		{"en0", false},
		{"docker0", true},
		{"br-3a2f1c", true},
		{"veth1234", true},
		{"utun3", true},
		{"WireGuard", true},
		{"ProtonVPN", true},
		{"vboxnet0", true},
	}
	for _, tt := range tests {
		if got := isVirtualInterface(tt.name); got != tt.want {
			t.Errorf("isVirtualInterface(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
