package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	apptransport "connected/application/transport"
	"connected/domain/network"

	"github.com/quic-go/quic-go"
)

// Transport implements application/transport.Transport over a single UDP
// socket shared for both dialing and listening — the same symmetric
// arrangement original_source/core/src/transport.rs uses for a
// peer-to-peer connection rather than a client/server split.
type Transport struct {
	cert tls.Certificate

	mu        sync.Mutex
	quicTr    *quic.Transport
	listener  *quic.Listener
	localAddr netip.AddrPort
	cache     *connectionCache
	closed    bool
}

// New returns a Transport that will present cert on every handshake.
func New(cert tls.Certificate) *Transport {
	return &Transport{cert: cert, cache: newConnectionCache()}
}

func (t *Transport) Bind(ctx context.Context, addr netip.AddrPort) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	udpAddr := net.UDPAddrFromAddrPort(addr)
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("transport: listen udp: %w", err)
	}

	qtr := &quic.Transport{Conn: conn}
	ln, err := qtr.Listen(tlsServerConfig(t.cert), quicConfig())
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("transport: listen quic: %w", err)
	}

	local, ok := netip.AddrFromSlice(conn.LocalAddr().(*net.UDPAddr).IP)
	if !ok {
		local = netip.IPv4Unspecified()
	}
	t.quicTr = qtr
	t.listener = ln
	t.localAddr = netip.AddrPortFrom(local.Unmap(), uint16(conn.LocalAddr().(*net.UDPAddr).Port))
	return nil
}

func (t *Transport) LocalAddr() netip.AddrPort {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.localAddr
}

func (t *Transport) Dial(ctx context.Context, addr netip.AddrPort) (apptransport.Session, error) {
	if s := t.cache.get(addr); s != nil {
		return s, nil
	}

	t.mu.Lock()
	qtr := t.quicTr
	t.mu.Unlock()
	if qtr == nil {
		return nil, fmt.Errorf("transport: Dial called before Bind")
	}

	deadline, err := network.DeadlineFromTime(time.Now().Add(connectTimeout))
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := context.WithDeadline(ctx, deadline.ExpiresAt())
	defer cancel()

	conn, err := qtr.Dial(dialCtx, net.UDPAddrFromAddrPort(addr), tlsClientConfig(t.cert), quicConfig())
	if err != nil {
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return nil, network.NewErrTimeout(fmt.Errorf("transport: dial %s: %w", addr, err))
		}
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}

	sess, err := newSession(conn, addr, t.cache)
	if err != nil {
		_ = conn.CloseWithError(0, "handshake rejected")
		return nil, err
	}
	t.cache.insert(addr, sess)
	return sess, nil
}

func (t *Transport) Accept(ctx context.Context) (apptransport.Session, error) {
	t.mu.Lock()
	ln := t.listener
	t.mu.Unlock()
	if ln == nil {
		return nil, fmt.Errorf("transport: Accept called before Bind")
	}

	conn, err := ln.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: accept: %w", err)
	}

	remote := conn.RemoteAddr().(*net.UDPAddr)
	addr, ok := netip.AddrFromSlice(remote.IP)
	if !ok {
		return nil, fmt.Errorf("transport: unparseable remote address %v", remote)
	}
	addrPort := netip.AddrPortFrom(addr.Unmap(), uint16(remote.Port))

	sess, err := newSession(conn, addrPort, t.cache)
	if err != nil {
		_ = conn.CloseWithError(0, "handshake rejected")
		return nil, err
	}
	t.cache.insert(addrPort, sess)
	return sess, nil
}

func (t *Transport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	t.cache.closeAll()

	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	if t.quicTr != nil {
		_ = t.quicTr.Close()
	}
	return err
}
