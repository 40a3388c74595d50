// Package discovery implements application/discovery.Reconciler on top of
// mDNS service discovery, fusing it with proximity/connection sightings.
// Grounded on original_source/core/src/discovery.rs.
package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"strconv"
	"sync"
	"time"

	appdiscovery "connected/application/discovery"
	"connected/domain/device"
	domaindiscovery "connected/domain/discovery"
	"connected/infrastructure/logging"

	"github.com/libp2p/zeroconf/v2"
)

const (
	serviceType        = "_connected._udp"
	serviceDomain      = "local."
	reannounceInterval = 5 * time.Second
	browseTimeout      = 100 * time.Millisecond
	cleanupInterval    = 2 * time.Second
	protocolVersion    = "1"
	minCompatVersion   = 1
)

var _ appdiscovery.Reconciler = (*Reconciler)(nil)

// Reconciler is the mDNS-backed implementation of application/discovery.Reconciler.
type Reconciler struct {
	log logging.Logger

	mu       sync.Mutex
	self     device.Device
	server   *zeroconf.Server
	cancel   context.CancelFunc
	shutdown sync.Once

	table   *table
	events  chan domaindiscovery.Event
}

// New returns a Reconciler that logs through log.
func New(log logging.Logger) *Reconciler {
	return &Reconciler{
		log:    log,
		table:  newTable(),
		events: make(chan domaindiscovery.Event, 64),
	}
}

func (r *Reconciler) Start(ctx context.Context, self device.Device) error {
	r.mu.Lock()
	r.self = self
	r.mu.Unlock()

	if err := r.announce(self); err != nil {
		return fmt.Errorf("discovery: announce: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go r.browseLoop(runCtx)
	go r.reannounceLoop(runCtx)
	go r.cleanupLoop(runCtx)

	return nil
}

func (r *Reconciler) announce(self device.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !self.Addr.Addr().IsValid() || self.Addr.Addr().IsUnspecified() {
		// Nothing usable to advertise yet; original do_announce skips in
		// this case too rather than publishing a bogus record.
		return nil
	}

	if r.server != nil {
		r.server.Shutdown()
		r.server = nil
	}

	instance := createInstanceName(self.Name, self.ID)
	txt := []string{
		"id=" + self.ID,
		"name=" + self.Name,
		"type=" + self.Kind.String(),
		"version=" + protocolVersion,
	}

	server, err := zeroconf.Register(instance, serviceType, serviceDomain, int(self.Addr.Port()), txt, usableInterfaces())
	if err != nil {
		return err
	}
	r.server = server
	return nil
}

func (r *Reconciler) reannounceLoop(ctx context.Context) {
	timer := time.NewTimer(reannounceInterval / 2)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			r.mu.Lock()
			self := r.self
			r.mu.Unlock()
			if err := r.announce(self); err != nil {
				r.log.WithError(err).Warnf("discovery: re-announce failed")
			}
			timer.Reset(reannounceInterval)
		}
	}
}

func (r *Reconciler) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, e := range r.table.sweepStale(time.Now()) {
				r.publish(e)
			}
		}
	}
}

func (r *Reconciler) browseLoop(ctx context.Context) {
	resolver, err := zeroconf.NewResolver(zeroconf.SelectIfaces(usableInterfaces()))
	if err != nil {
		r.log.WithError(err).Errorf("discovery: create resolver failed")
		return
	}

	entries := make(chan *zeroconf.ServiceEntry, 16)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				r.handleEntry(entry)
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		browseCtx, cancel := context.WithTimeout(ctx, browseTimeout)
		_ = resolver.Browse(browseCtx, serviceType, serviceDomain, entries)
		<-browseCtx.Done()
		cancel()
	}
}

func (r *Reconciler) handleEntry(entry *zeroconf.ServiceEntry) {
	fields := parseTXT(entry.Text)

	version, _ := strconv.Atoi(fields["version"])
	if version != 0 && version < minCompatVersion {
		r.log.WithField("instance", entry.Instance).Debugf("discovery: ignoring incompatible peer version")
		return
	}

	deviceID := fields["id"]
	name := fields["name"]
	if deviceID == "" || name == "" {
		if parsedName, parsedID, ok := parseInstanceName(entry.Instance); ok {
			if name == "" {
				name = parsedName
			}
			if deviceID == "" {
				deviceID = parsedID
			}
		}
	}
	if deviceID == "" {
		return
	}

	r.mu.Lock()
	isSelf := deviceID == r.self.ID
	r.mu.Unlock()
	if isSelf {
		return
	}

	addr := pickAddr(entry)
	d := device.Device{
		ID:   deviceID,
		Name: name,
		Addr: addr,
		Kind: device.ParseKind(fields["type"]),
	}

	if entry.TTL == 0 {
		if e := r.table.remove(deviceID, domaindiscovery.SourceDiscovered); e != nil {
			r.publish(*e)
		}
		return
	}

	for _, e := range r.table.upsert(d, domaindiscovery.SourceDiscovered, time.Now()) {
		r.publish(e)
	}
}

func (r *Reconciler) NoteConnected(d device.Device) {
	for _, e := range r.table.upsert(d, domaindiscovery.SourceConnected, time.Now()) {
		r.publish(e)
	}
}

func (r *Reconciler) ClearConnected(deviceID string) {
	if e := r.table.remove(deviceID, domaindiscovery.SourceConnected); e != nil {
		r.publish(*e)
	}
}

func (r *Reconciler) Snapshot() []device.Device { return r.table.snapshot() }

func (r *Reconciler) Lookup(deviceID string) (device.Device, bool) { return r.table.lookup(deviceID) }

func (r *Reconciler) Events() <-chan domaindiscovery.Event { return r.events }

func (r *Reconciler) Shutdown(ctx context.Context) error {
	r.shutdown.Do(func() {
		r.mu.Lock()
		if r.cancel != nil {
			r.cancel()
		}
		if r.server != nil {
			r.server.Shutdown()
		}
		r.mu.Unlock()
		close(r.events)
	})
	return nil
}

func (r *Reconciler) publish(e domaindiscovery.Event) {
	select {
	case r.events <- e:
	default:
		r.log.Warnf("discovery: event channel full, dropping %v event", e.Kind)
	}
}

func parseTXT(entries []string) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		for i := 0; i < len(e); i++ {
			if e[i] == '=' {
				out[e[:i]] = e[i+1:]
				break
			}
		}
	}
	return out
}

func pickAddr(entry *zeroconf.ServiceEntry) netip.AddrPort {
	for _, ip := range entry.AddrIPv4 {
		if addr, ok := netip.AddrFromSlice(ip.To4()); ok {
			return netip.AddrPortFrom(addr, uint16(entry.Port))
		}
	}
	for _, ip := range entry.AddrIPv6 {
		if addr, ok := netip.AddrFromSlice(ip.To16()); ok {
			return netip.AddrPortFrom(addr, uint16(entry.Port))
		}
	}
	return netip.AddrPort{}
}
