package trust

import "testing"

func TestStatus_String(t *testing.T) {
	cases := map[Status]string{
		StatusUnpaired:  "unpaired",
		StatusTrusted:   "trusted",
		StatusForgotten: "forgotten",
		StatusBlocked:   "blocked",
		StatusUnknown:   "unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Fatalf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}

func TestPeerInfo_NeedsPairingRequest(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   bool
	}{
		{"unpaired needs request", StatusUnpaired, true},
		{"forgotten needs request", StatusForgotten, true},
		{"unknown needs request", StatusUnknown, true},
		{"trusted does not", StatusTrusted, false},
		{"blocked does not", StatusBlocked, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PeerInfo{Status: tt.status}
			if got := p.NeedsPairingRequest(); got != tt.want {
				t.Fatalf("NeedsPairingRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPeerInfo_IsTrustedAndIsBlocked(t *testing.T) {
	trusted := PeerInfo{Status: StatusTrusted}
	blocked := PeerInfo{Status: StatusBlocked}

	if !trusted.IsTrusted() || trusted.IsBlocked() {
		t.Fatalf("trusted peer classified incorrectly")
	}
	if blocked.IsBlocked() == false || blocked.IsTrusted() {
		t.Fatalf("blocked peer classified incorrectly")
	}
}
