package device

import "testing"

func TestKind_StringAndParse_RoundTrip(t *testing.T) {
	for _, k := range []Kind{KindLinux, KindMacOS, KindWindows, KindAndroid} {
		if got := ParseKind(k.String()); got != k {
			t.Fatalf("round trip mismatch: %v -> %q -> %v", k, k.String(), got)
		}
	}
}

func TestParseKind_UnknownStringDoesNotError(t *testing.T) {
	if got := ParseKind("atari-st"); got != KindUnknown {
		t.Fatalf("expected KindUnknown for unrecognized string, got %v", got)
	}
}

func TestDevice_Equal_ComparesByID(t *testing.T) {
	a := Device{ID: "abc", Name: "phone"}
	b := Device{ID: "abc", Name: "renamed-phone"}
	c := Device{ID: "xyz", Name: "phone"}

	if !a.Equal(b) {
		t.Fatalf("expected devices with same ID to be equal regardless of name")
	}
	if a.Equal(c) {
		t.Fatalf("expected devices with different IDs to be unequal")
	}
}
