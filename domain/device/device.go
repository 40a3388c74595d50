// Package device holds the pure data types describing a peer on the LAN.
package device

import "net/netip"

// Kind identifies the platform a peer is running on. It is informational —
// unrecognized strings decode to KindUnknown rather than an error, since a
// newer peer may advertise a type this build has never heard of.
type Kind int

const (
	KindUnknown Kind = iota
	KindLinux
	KindMacOS
	KindWindows
	KindAndroid
)

// String renders the kind the way it is advertised over mDNS TXT records.
func (k Kind) String() string {
	switch k {
	case KindLinux:
		return "linux"
	case KindMacOS:
		return "macos"
	case KindWindows:
		return "windows"
	case KindAndroid:
		return "android"
	default:
		return "unknown"
	}
}

// ParseKind maps an advertised type string back to a Kind. It never fails:
// anything it doesn't recognize becomes KindUnknown.
func ParseKind(s string) Kind {
	switch s {
	case "linux":
		return KindLinux
	case "macos":
		return KindMacOS
	case "windows":
		return KindWindows
	case "android":
		return KindAndroid
	default:
		return KindUnknown
	}
}

// Device is a peer as seen by discovery or by an active connection. ID is
// the stable identifier derived from the peer's certificate; it, not the
// address, is what trust and transfer state are keyed on.
type Device struct {
	ID   string
	Name string
	Addr netip.AddrPort
	Kind Kind
}

// Equal compares devices by identity, not by current address — two
// observations of the same peer from different endpoints are still the same
// Device for reconciliation purposes.
func (d Device) Equal(other Device) bool {
	return d.ID == other.ID
}
