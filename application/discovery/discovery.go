// Package discovery defines the port for the discovery reconciler: mDNS
// advertisement/browsing fused with proximity/connection-sourced sightings
// into a single tracked-device table.
package discovery

import (
	"context"

	"connected/domain/device"
	domaindiscovery "connected/domain/discovery"
)

// Reconciler announces this device over mDNS, browses for peers, fuses
// sightings from both mDNS and active connections into a tracked-device
// table, and emits DeviceFound/DeviceLost transitions.
type Reconciler interface {
	// Start begins advertising and browsing. It returns once the service
	// is registered; browsing and the staleness sweep continue in the
	// background until ctx is cancelled or Shutdown is called.
	Start(ctx context.Context, self device.Device) error

	// Events returns the channel DeviceFound/DeviceLost transitions are
	// published on. Closed when the reconciler shuts down.
	Events() <-chan domaindiscovery.Event

	// NoteConnected records a proximity/active-connection sighting of a
	// peer, independent of mDNS. This is how an inbound QUIC connection
	// feeds the same tracked-device table mDNS browsing does.
	NoteConnected(d device.Device)

	// ClearConnected removes a proximity sighting, e.g. on session close.
	ClearConnected(deviceID string)

	// Snapshot returns every currently tracked device's active view.
	Snapshot() []device.Device

	// Lookup returns a single tracked device by id.
	Lookup(deviceID string) (device.Device, bool)

	// Shutdown stops advertising/browsing and releases mDNS resources.
	Shutdown(ctx context.Context) error
}
