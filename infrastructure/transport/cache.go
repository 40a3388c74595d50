package transport

import (
	"net/netip"
	"sync"
	"time"
)

// cacheIdleEviction matches transport.rs's ConnectionCache: an entry that
// hasn't been reused in 5 minutes is dropped so a long-running agent
// doesn't accumulate sessions to peers it no longer talks to.
const cacheIdleEviction = 5 * time.Minute

type cacheEntry struct {
	session  *session
	lastUsed time.Time
}

// connectionCache lets Dial reuse a healthy existing session instead of
// opening a new QUIC connection for every call.
type connectionCache struct {
	mu      sync.Mutex
	entries map[netip.AddrPort]*cacheEntry
}

func newConnectionCache() *connectionCache {
	return &connectionCache{entries: make(map[netip.AddrPort]*cacheEntry)}
}

// get returns a cached, still-open session for addr, if any. Closed or
// idle-expired entries are evicted rather than returned.
func (c *connectionCache) get(addr netip.AddrPort) *session {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[addr]
	if !ok {
		return nil
	}
	if e.session.closedFlag() || time.Since(e.lastUsed) > cacheIdleEviction {
		delete(c.entries, addr)
		return nil
	}
	e.lastUsed = time.Now()
	return e.session
}

func (c *connectionCache) insert(addr netip.AddrPort, s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for a, e := range c.entries {
		if now.Sub(e.lastUsed) > cacheIdleEviction {
			delete(c.entries, a)
		}
	}
	c.entries[addr] = &cacheEntry{session: s, lastUsed: now}
}

func (c *connectionCache) remove(addr netip.AddrPort) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, addr)
}

func (c *connectionCache) closeAll() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[netip.AddrPort]*cacheEntry)
	c.mu.Unlock()

	for _, e := range entries {
		_ = e.session.Close()
	}
}
