package discovery

import "testing"

func TestParseTXT(t *testing.T) {
	got := parseTXT([]string{"id=abc123", "name=My Phone", "type=android", "version=1"})
	want := map[string]string{"id": "abc123", "name": "My Phone", "type": "android", "version": "1"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("parseTXT()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestParseTXT_IgnoresMalformedEntries(t *testing.T) {
	got := parseTXT([]string{"novalue", "id=abc"})
	if got["id"] != "abc" {
		t.Errorf("expected well-formed entry to still parse, got %v", got)
	}
	if _, ok := got["novalue"]; ok {
		t.Errorf("expected entry without '=' to be skipped, got %v", got)
	}
}
