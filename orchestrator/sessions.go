package orchestrator

import (
	"context"
	"net/netip"
	"sync"

	apptransport "connected/application/transport"
	"connected/domain/trust"
)

// sessionSet tracks live sessions by peer address so Shutdown can close
// them all, and so outbound operations can reuse an already-open session
// instead of dialing again.
type sessionSet struct {
	mu     sync.Mutex
	byAddr map[netip.AddrPort]apptransport.Session
}

func newSessionSet() *sessionSet {
	return &sessionSet{byAddr: make(map[netip.AddrPort]apptransport.Session)}
}

// add records sess and reports whether it is new for this address. A
// session already tracked at the same address (the transport's own
// connection cache returned a reused session) is left alone — it already
// has a serveSession loop running for it.
func (s *sessionSet) add(sess apptransport.Session) (isNew bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byAddr[sess.PeerAddr()]; exists {
		return false
	}
	s.byAddr[sess.PeerAddr()] = sess
	return true
}

func (s *sessionSet) remove(addr netip.AddrPort) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byAddr, addr)
}

func (s *sessionSet) closeAll() {
	s.mu.Lock()
	sessions := make([]apptransport.Session, 0, len(s.byAddr))
	for _, sess := range s.byAddr {
		sessions = append(sessions, sess)
	}
	s.byAddr = make(map[netip.AddrPort]apptransport.Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		_ = sess.Close()
	}
}

// dialSession dials addr, registers the resulting session, and — if it is
// newly established rather than reused from the transport's own connection
// cache — starts serving inbound streams on it for the lifetime of the
// agent. Without this, a reply the peer sends back on the same QUIC
// connection (e.g. a HandshakeAck to our Handshake) would never be read,
// since only the side that accepted a connection was otherwise looping on
// AcceptStream.
func (a *Agent) dialSession(ctx context.Context, addr netip.AddrPort) (apptransport.Session, trust.Fingerprint, error) {
	sess, err := a.cfg.Transport.Dial(ctx, addr)
	if err != nil {
		return nil, "", err
	}

	fp := a.cfg.Identity.Fingerprint(sess.PeerLeafCert())
	if a.sessions.add(sess) {
		a.wg.Add(1)
		go a.serveSession(a.runCtx, sess, fp)
	}
	return sess, fp, nil
}

// acceptLoop accepts inbound sessions, immediately closing any from a
// blocked peer before any protocol-level exchange happens, matching
// client.rs's "strict drop" stance for untrusted peers on the file path
// and extending it to the connection itself for blocked peers.
func (a *Agent) acceptLoop(ctx context.Context) error {
	for {
		sess, err := a.cfg.Transport.Accept(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				a.log.WithError(err).Warnf("accept failed")
				return err
			}
		}

		fp := a.cfg.Identity.Fingerprint(sess.PeerLeafCert())
		if peer, ok := a.cfg.Identity.Lookup(fp); ok && peer.IsBlocked() {
			a.log.WithField("fingerprint", string(fp)).Infof("rejecting session from blocked peer")
			_ = sess.Close()
			continue
		}

		a.sessions.add(sess)
		a.wg.Add(1)
		go a.serveSession(a.runCtx, sess, fp)
	}
}

// serveSession accepts streams on one session until it closes, dispatching
// each by its StreamKind.
func (a *Agent) serveSession(ctx context.Context, sess apptransport.Session, fp trust.Fingerprint) {
	defer a.wg.Done()
	defer a.sessions.remove(sess.PeerAddr())
	defer func() {
		if peer, ok := a.cfg.Identity.Lookup(fp); ok && peer.DeviceID != "" {
			a.cfg.Discovery.ClearConnected(peer.DeviceID)
		}
	}()

	for {
		st, err := sess.AcceptStream(ctx)
		if err != nil {
			return
		}

		switch st.Kind() {
		case apptransport.StreamControl:
			a.wg.Add(1)
			go a.handleControlStream(ctx, sess, st, fp)
		case apptransport.StreamFile:
			a.wg.Add(1)
			go a.handleFileStream(ctx, sess, st, fp)
		default:
			_ = st.Close()
		}
	}
}
