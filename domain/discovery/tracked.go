// Package discovery holds the pure data types for the discovery reconciler:
// the two-source tracked-device table and the events it emits on
// transition.
package discovery

import (
	"time"

	"connected/domain/device"
)

// Source identifies which discovery channel last reported an endpoint.
// Connected (proximity/active-connection sourced) takes priority over
// Discovered (mDNS-sourced) when both are present for the same device.
type Source int

const (
	SourceUnknown Source = iota
	SourceDiscovered
	SourceConnected
)

// Endpoint is one observation of a device from a single discovery source.
type Endpoint struct {
	Device   device.Device
	Source   Source
	LastSeen time.Time
}

// Tracked is the fused view of a device across both discovery sources. A
// device can be present via mDNS, via an active/proximity connection, or
// both; the active endpoint is whichever is non-nil with Connected
// preferred.
type Tracked struct {
	Connected  *Endpoint
	Discovered *Endpoint
}

// Active returns the endpoint that should currently represent this device,
// preferring a Connected source over a Discovered one.
func (t Tracked) Active() *Endpoint {
	if t.Connected != nil {
		return t.Connected
	}
	return t.Discovered
}

// IsEmpty reports whether both sources have gone stale/absent, meaning the
// whole tracked entry should be dropped from the table.
func (t Tracked) IsEmpty() bool {
	return t.Connected == nil && t.Discovered == nil
}

// EventKind discriminates the events the reconciler emits as the tracked
// table changes.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventDeviceFound
	EventDeviceLost
)

// Event is a single reconciler transition: a device newly considered
// present (Found, carrying the full Device) or newly considered gone
// (Lost, carrying just the device id).
type Event struct {
	Kind     EventKind
	Device   device.Device
	DeviceID string
}
