package discovery

import (
	"net/netip"
	"testing"
	"time"

	"connected/domain/device"
	domaindiscovery "connected/domain/discovery"
)

func TestTable_Upsert_FirstSightingEmitsFound(t *testing.T) {
	tb := newTable()
	d := device.Device{ID: "a", Name: "phone", Addr: netip.MustParseAddrPort("192.168.1.5:9000")}

	events := tb.upsert(d, domaindiscovery.SourceDiscovered, time.Now())
	if len(events) != 1 || events[0].Kind != domaindiscovery.EventDeviceFound {
		t.Fatalf("expected DeviceFound event, got %+v", events)
	}
}

func TestTable_Upsert_RepeatedIdenticalSightingEmitsNoEvent(t *testing.T) {
	tb := newTable()
	d := device.Device{ID: "a", Name: "phone", Addr: netip.MustParseAddrPort("192.168.1.5:9000")}
	now := time.Now()

	tb.upsert(d, domaindiscovery.SourceDiscovered, now)
	events := tb.upsert(d, domaindiscovery.SourceDiscovered, now.Add(time.Second))
	if len(events) != 0 {
		t.Fatalf("expected no event for an unchanged repeat sighting, got %+v", events)
	}
}

func TestTable_Upsert_ConnectedTakesPriorityOverDiscovered(t *testing.T) {
	tb := newTable()
	now := time.Now()
	discovered := device.Device{ID: "a", Name: "phone", Addr: netip.MustParseAddrPort("192.168.1.5:9000")}
	connected := device.Device{ID: "a", Name: "phone", Addr: netip.MustParseAddrPort("192.168.1.5:5000")}

	tb.upsert(discovered, domaindiscovery.SourceDiscovered, now)
	events := tb.upsert(connected, domaindiscovery.SourceConnected, now)
	if len(events) != 1 || events[0].Kind != domaindiscovery.EventDeviceFound || events[0].Device.Addr != connected.Addr {
		t.Fatalf("expected Found event for the connected endpoint, got %+v", events)
	}

	got, ok := tb.lookup("a")
	if !ok || got.Addr != connected.Addr {
		t.Fatalf("expected active endpoint to be the connected one, got %+v", got)
	}
}

func TestTable_Upsert_UnspecifiedAddrDoesNotClobberValidOne(t *testing.T) {
	tb := newTable()
	now := time.Now()
	valid := device.Device{ID: "a", Name: "phone", Addr: netip.MustParseAddrPort("192.168.1.5:9000")}
	unspecified := device.Device{ID: "a", Name: "phone", Addr: netip.MustParseAddrPort("0.0.0.0:9000")}

	tb.upsert(valid, domaindiscovery.SourceDiscovered, now)
	tb.upsert(unspecified, domaindiscovery.SourceDiscovered, now.Add(time.Second))

	got, ok := tb.lookup("a")
	if !ok || got.Addr != valid.Addr {
		t.Fatalf("expected valid address to survive an unspecified re-announce, got %+v", got)
	}
}

func TestTable_Upsert_SameIPDifferentIDEvictsOldAndEmitsLostThenFound(t *testing.T) {
	tb := newTable()
	now := time.Now()
	old := device.Device{ID: "old-uuid", Name: "phone", Addr: netip.MustParseAddrPort("192.168.1.5:9000")}
	tb.upsert(old, domaindiscovery.SourceDiscovered, now)

	restarted := device.Device{ID: "new-uuid", Name: "phone", Addr: netip.MustParseAddrPort("192.168.1.5:9001")}
	events := tb.upsert(restarted, domaindiscovery.SourceDiscovered, now.Add(time.Second))

	if len(events) != 2 {
		t.Fatalf("expected a Lost and a Found event, got %+v", events)
	}
	if events[0].Kind != domaindiscovery.EventDeviceLost || events[0].DeviceID != "old-uuid" {
		t.Fatalf("expected DeviceLost(old-uuid) first, got %+v", events[0])
	}
	if events[1].Kind != domaindiscovery.EventDeviceFound || events[1].Device.ID != "new-uuid" {
		t.Fatalf("expected DeviceFound(new-uuid) second, got %+v", events[1])
	}

	if _, ok := tb.lookup("old-uuid"); ok {
		t.Fatal("expected the stale same-IP entry to be evicted")
	}
	got, ok := tb.lookup("new-uuid")
	if !ok || got.Addr != restarted.Addr {
		t.Fatalf("expected the new device to be tracked at its own address, got %+v", got)
	}
}

func TestTable_Upsert_SameIDSameIPDoesNotSelfEvict(t *testing.T) {
	tb := newTable()
	now := time.Now()
	d := device.Device{ID: "a", Name: "phone", Addr: netip.MustParseAddrPort("192.168.1.5:9000")}

	tb.upsert(d, domaindiscovery.SourceDiscovered, now)
	events := tb.upsert(d, domaindiscovery.SourceDiscovered, now.Add(time.Second))

	for _, e := range events {
		if e.Kind == domaindiscovery.EventDeviceLost {
			t.Fatalf("re-announcing the same device must not evict itself, got %+v", events)
		}
	}
}

func TestTable_Remove_LastEndpointEmitsLostAndDrops(t *testing.T) {
	tb := newTable()
	d := device.Device{ID: "a", Name: "phone"}
	tb.upsert(d, domaindiscovery.SourceDiscovered, time.Now())

	e := tb.remove("a", domaindiscovery.SourceDiscovered)
	if e == nil || e.Kind != domaindiscovery.EventDeviceLost || e.DeviceID != "a" {
		t.Fatalf("expected DeviceLost event, got %+v", e)
	}
	if _, ok := tb.lookup("a"); ok {
		t.Fatal("expected device to be gone from the table")
	}
}

func TestTable_Remove_FallsBackToOtherSourceWithoutLostEvent(t *testing.T) {
	tb := newTable()
	now := time.Now()
	tb.upsert(device.Device{ID: "a"}, domaindiscovery.SourceDiscovered, now)
	tb.upsert(device.Device{ID: "a"}, domaindiscovery.SourceConnected, now)

	e := tb.remove("a", domaindiscovery.SourceConnected)
	if e != nil && e.Kind == domaindiscovery.EventDeviceLost {
		t.Fatalf("expected no Lost event while the discovered endpoint remains, got %+v", e)
	}
	if _, ok := tb.lookup("a"); !ok {
		t.Fatal("expected device to still be tracked via the discovered endpoint")
	}
}

func TestTable_SweepStale_DropsExpiredEndpointsAndEmitsLost(t *testing.T) {
	tb := newTable()
	past := time.Now().Add(-staleTimeout - time.Second)
	tb.upsert(device.Device{ID: "a"}, domaindiscovery.SourceDiscovered, past)

	events := tb.sweepStale(time.Now())
	if len(events) != 1 || events[0].Kind != domaindiscovery.EventDeviceLost || events[0].DeviceID != "a" {
		t.Fatalf("expected one DeviceLost event, got %+v", events)
	}
	if _, ok := tb.lookup("a"); ok {
		t.Fatal("expected stale device to be dropped")
	}
}

func TestTable_SweepStale_LeavesFreshEndpointsAlone(t *testing.T) {
	tb := newTable()
	tb.upsert(device.Device{ID: "a"}, domaindiscovery.SourceDiscovered, time.Now())

	events := tb.sweepStale(time.Now())
	if len(events) != 0 {
		t.Fatalf("expected no events for a fresh endpoint, got %+v", events)
	}
	if _, ok := tb.lookup("a"); !ok {
		t.Fatal("expected fresh device to remain tracked")
	}
}

func TestTable_Snapshot_ReturnsActiveDevices(t *testing.T) {
	tb := newTable()
	tb.upsert(device.Device{ID: "a"}, domaindiscovery.SourceDiscovered, time.Now())
	tb.upsert(device.Device{ID: "b"}, domaindiscovery.SourceConnected, time.Now())

	snap := tb.snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 tracked devices, got %d", len(snap))
	}
}
