package discovery

import (
	"sync"
	"time"

	"connected/domain/device"
	domaindiscovery "connected/domain/discovery"
)

// staleTimeout is how long an endpoint may go without a fresh sighting
// before it's considered gone, matching discovery.rs's DEVICE_STALE_TIMEOUT.
const staleTimeout = 15 * time.Second

// table is the two-source tracked-device fusion table. It is pure,
// network-independent logic: reconciler wires mDNS/proximity sightings
// into it and turns the resulting events into application/discovery.Reconciler
// behavior. Grounded on discovery.rs's DiscoveryService endpoint map.
type table struct {
	mu      sync.Mutex
	devices map[string]domaindiscovery.Tracked
}

func newTable() *table {
	return &table{devices: make(map[string]domaindiscovery.Tracked)}
}

// upsert records a sighting of d from source, returning the transition
// events it produced, in order. A discovered sighting whose address is
// already owned by a different device_id is treated as that device having
// restarted with a new id: the old entry is evicted and a DeviceLost for
// it is returned ahead of whatever event the new sighting itself produces,
// matching handle_service_discovered's old_id_with_same_ip eviction.
func (t *table) upsert(d device.Device, source domaindiscovery.Source, now time.Time) []domaindiscovery.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []domaindiscovery.Event

	if source == domaindiscovery.SourceDiscovered && hasValidAddr(d) {
		for id, tracked := range t.devices {
			if id == d.ID {
				continue
			}
			if tracked.Discovered == nil || tracked.Discovered.Device.Addr.Addr() != d.Addr.Addr() {
				continue
			}
			delete(t.devices, id)
			events = append(events, domaindiscovery.Event{Kind: domaindiscovery.EventDeviceLost, DeviceID: id})
			break
		}
	}

	before := t.devices[d.ID]
	after := before

	endpoint := &domaindiscovery.Endpoint{Device: d, Source: source, LastSeen: now}

	switch source {
	case domaindiscovery.SourceConnected:
		// A live connection sighting always replaces whatever was there.
		after.Connected = endpoint
	case domaindiscovery.SourceDiscovered:
		// An mDNS re-announce with an unspecified address (0.0.0.0 / ::)
		// shouldn't clobber a previously-known good address — it only
		// refreshes LastSeen, matching upsert_endpoint_locked.
		if before.Discovered != nil && hasValidAddr(before.Discovered.Device) && !hasValidAddr(d) {
			refreshed := *before.Discovered
			refreshed.LastSeen = now
			after.Discovered = &refreshed
		} else {
			after.Discovered = endpoint
		}
	}

	t.devices[d.ID] = after
	if e := transitionEvent(before, after); e != nil {
		events = append(events, *e)
	}
	return events
}

// remove clears the endpoint from source for deviceID, returning the
// transition event it produced, if any.
func (t *table) remove(deviceID string, source domaindiscovery.Source) *domaindiscovery.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	before, ok := t.devices[deviceID]
	if !ok {
		return nil
	}
	after := before
	switch source {
	case domaindiscovery.SourceConnected:
		after.Connected = nil
	case domaindiscovery.SourceDiscovered:
		after.Discovered = nil
	}

	if after.IsEmpty() {
		delete(t.devices, deviceID)
	} else {
		t.devices[deviceID] = after
	}
	return transitionEvent(before, after)
}

// sweepStale clears any endpoint that hasn't been refreshed within
// staleTimeout, returning the events the sweep produced.
func (t *table) sweepStale(now time.Time) []domaindiscovery.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []domaindiscovery.Event
	for id, before := range t.devices {
		after := before
		if after.Connected != nil && now.Sub(after.Connected.LastSeen) > staleTimeout {
			after.Connected = nil
		}
		if after.Discovered != nil && now.Sub(after.Discovered.LastSeen) > staleTimeout {
			after.Discovered = nil
		}
		if after == before {
			continue
		}
		if after.IsEmpty() {
			delete(t.devices, id)
		} else {
			t.devices[id] = after
		}
		if e := transitionEvent(before, after); e != nil {
			events = append(events, *e)
		}
	}
	return events
}

func (t *table) snapshot() []device.Device {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]device.Device, 0, len(t.devices))
	for _, tracked := range t.devices {
		if active := tracked.Active(); active != nil {
			out = append(out, active.Device)
		}
	}
	return out
}

func (t *table) lookup(deviceID string) (device.Device, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tracked, ok := t.devices[deviceID]
	if !ok {
		return device.Device{}, false
	}
	active := tracked.Active()
	if active == nil {
		return device.Device{}, false
	}
	return active.Device, true
}

// transitionEvent compares before/after and decides what event, if any,
// the change represents: nil->some is Found, some->nil is Lost, and
// some->some is Found again only if the active source or device changed —
// matching discovery.rs::transition_event.
func transitionEvent(before, after domaindiscovery.Tracked) *domaindiscovery.Event {
	beforeActive := before.Active()
	afterActive := after.Active()

	switch {
	case beforeActive == nil && afterActive != nil:
		return &domaindiscovery.Event{Kind: domaindiscovery.EventDeviceFound, Device: afterActive.Device}
	case beforeActive != nil && afterActive == nil:
		return &domaindiscovery.Event{Kind: domaindiscovery.EventDeviceLost, DeviceID: beforeActive.Device.ID}
	case beforeActive != nil && afterActive != nil:
		if beforeActive.Source != afterActive.Source || beforeActive.Device != afterActive.Device {
			return &domaindiscovery.Event{Kind: domaindiscovery.EventDeviceFound, Device: afterActive.Device}
		}
		return nil
	default:
		return nil
	}
}

func hasValidAddr(d device.Device) bool {
	return d.Addr.IsValid() && !d.Addr.Addr().IsUnspecified()
}
