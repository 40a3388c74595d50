package transport

import (
	"net/netip"
	"testing"
	"time"
)

func TestConnectionCache_GetMissReturnsNil(t *testing.T) {
	c := newConnectionCache()
	if c.get(netip.MustParseAddrPort("127.0.0.1:1234")) != nil {
		t.Fatal("expected nil for a never-inserted address")
	}
}

func TestConnectionCache_InsertThenGet(t *testing.T) {
	c := newConnectionCache()
	addr := netip.MustParseAddrPort("127.0.0.1:1234")
	s := &session{}
	c.insert(addr, s)

	if got := c.get(addr); got != s {
		t.Fatalf("expected cached session back, got %v", got)
	}
}

func TestConnectionCache_EvictsIdleEntries(t *testing.T) {
	c := newConnectionCache()
	addr := netip.MustParseAddrPort("127.0.0.1:1234")
	s := &session{}
	c.entries[addr] = &cacheEntry{session: s, lastUsed: time.Now().Add(-cacheIdleEviction - time.Second)}

	if got := c.get(addr); got != nil {
		t.Fatalf("expected idle-expired entry to be evicted, got %v", got)
	}
}

func TestConnectionCache_EvictsClosedSession(t *testing.T) {
	c := newConnectionCache()
	addr := netip.MustParseAddrPort("127.0.0.1:1234")
	s := &session{}
	s.closed.Store(true)
	c.insert(addr, s)

	if got := c.get(addr); got != nil {
		t.Fatalf("expected closed session to be evicted, got %v", got)
	}
}

func TestConnectionCache_Remove(t *testing.T) {
	c := newConnectionCache()
	addr := netip.MustParseAddrPort("127.0.0.1:1234")
	c.insert(addr, &session{})
	c.remove(addr)

	if c.get(addr) != nil {
		t.Fatal("expected entry to be gone after remove")
	}
}
