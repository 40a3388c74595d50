package transport

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	apptransport "connected/application/transport"
	"connected/domain/control"
	"connected/domain/network"
	infracontrol "connected/infrastructure/control"

	"github.com/quic-go/quic-go"
)

// session adapts a quic.Connection to application/transport.Session.
type session struct {
	conn   quic.Connection
	addr   netip.AddrPort
	leaf   []byte
	cache  *connectionCache
	closed atomic.Bool
}

func newSession(conn quic.Connection, addr netip.AddrPort, cache *connectionCache) (*session, error) {
	state := conn.ConnectionState()
	if len(state.TLS.PeerCertificates) == 0 {
		return nil, fmt.Errorf("transport: peer presented no certificate")
	}
	return &session{
		conn:  conn,
		addr:  addr,
		leaf:  state.TLS.PeerCertificates[0].Raw,
		cache: cache,
	}, nil
}

func (s *session) PeerAddr() netip.AddrPort { return s.addr }
func (s *session) PeerLeafCert() []byte     { return s.leaf }

func (s *session) OpenStream(ctx context.Context, kind apptransport.StreamKind) (apptransport.Stream, error) {
	st, err := s.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("transport: open stream: %w", err)
	}
	if _, err := st.Write([]byte{byte(kind)}); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("transport: write stream kind: %w", err)
	}
	return &stream{Stream: st, kind: kind}, nil
}

// AcceptStream reads the leading stream-type byte off every newly accepted
// stream. A control stream is peeked at immediately: a Ping is answered
// and consumed here so it never reaches a caller (matching "Ping/Pong are
// handled inside Transport and never surface" at the orchestration layer);
// any other control message is replayed back onto the returned Stream so
// the one read the caller performs sees exactly the bytes that were
// peeked.
func (s *session) AcceptStream(ctx context.Context) (apptransport.Stream, error) {
	for {
		st, err := s.conn.AcceptStream(ctx)
		if err != nil {
			return nil, fmt.Errorf("transport: accept stream: %w", err)
		}
		var kindBuf [1]byte
		if _, err := readFull(ctx, st, kindBuf[:]); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("transport: read stream kind: %w", err)
		}
		kind := apptransport.StreamKind(kindBuf[0])

		if kind != apptransport.StreamControl {
			return &stream{Stream: st, kind: kind}, nil
		}

		peeked := &stream{Stream: st, kind: kind}
		msg, raw, err := infracontrol.ReadFrame(ctx, peeked)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("transport: peek control stream: %w", err)
		}
		if msg.Kind == control.MessagePing {
			go answerPing(st, msg)
			continue
		}
		peeked.replay = raw
		return peeked, nil
	}
}

// Ping opens its own control stream, sends a Ping carrying fromID and the
// current wall-clock milliseconds, and awaits a Pong echoing the same
// timestamp within pingTimeout. Any timeout or a mismatched reply
// evicts this session from the dial-side connection cache, matching "any
// timeout or mismatch invalidates the cached session".
func (s *session) Ping(ctx context.Context, fromID string) (time.Duration, error) {
	deadline, err := network.DeadlineFromTime(time.Now().Add(pingTimeout))
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithDeadline(ctx, deadline.ExpiresAt())
	defer cancel()

	start := time.Now()
	st, err := s.conn.OpenStreamSync(ctx)
	if err != nil {
		s.invalidate()
		return 0, fmt.Errorf("transport: ping open stream: %w", err)
	}
	defer st.Close()

	if _, err := st.Write([]byte{byte(apptransport.StreamControl)}); err != nil {
		s.invalidate()
		return 0, fmt.Errorf("transport: ping write stream kind: %w", err)
	}

	w := &stream{Stream: st, kind: apptransport.StreamControl}
	sentMS := time.Now().UnixMilli()
	if err := infracontrol.WriteMessage(w, control.Message{Kind: control.MessagePing, FromID: fromID, TimestampMS: sentMS}); err != nil {
		s.invalidate()
		return 0, fmt.Errorf("transport: ping write: %w", err)
	}

	reply, err := infracontrol.ReadMessage(ctx, w)
	if err != nil {
		s.invalidate()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, network.NewErrTimeout(fmt.Errorf("transport: ping: %w", ctx.Err()))
		}
		return 0, fmt.Errorf("transport: ping read: %w", err)
	}
	if reply.Kind != control.MessagePong || reply.TimestampMS != sentMS {
		s.invalidate()
		return 0, fmt.Errorf("transport: ping reply %q does not match probe", reply.Kind)
	}
	return time.Since(start), nil
}

// invalidate drops this session from the dial-side cache so the next Dial
// to the same address opens a fresh connection instead of reusing one a
// failed ping has shown to be unhealthy.
func (s *session) invalidate() {
	if s.cache != nil {
		s.cache.remove(s.addr)
	}
}

// answerPing replies to a single Ping control message with a Pong echoing
// the same fromID/timestamp, and closes the stream.
func answerPing(st quic.Stream, msg control.Message) {
	defer st.Close()
	w := &stream{Stream: st, kind: apptransport.StreamControl}
	reply := control.Message{Kind: control.MessagePong, FromID: msg.FromID, TimestampMS: msg.TimestampMS}
	_ = infracontrol.WriteMessage(w, reply)
}

func (s *session) Close() error {
	s.closed.Store(true)
	return s.conn.CloseWithError(0, "closed")
}

func (s *session) closedFlag() bool { return s.closed.Load() }

// stream adapts a quic.Stream to application/transport.Stream. replay, if
// non-empty, is served before falling through to the underlying
// quic.Stream — used to hand a peeked control frame back to its real
// reader untouched.
type stream struct {
	quic.Stream
	kind   apptransport.StreamKind
	replay []byte
}

func (s *stream) Kind() apptransport.StreamKind { return s.kind }

func (s *stream) Read(p []byte) (int, error) {
	if len(s.replay) > 0 {
		n := copy(p, s.replay)
		s.replay = s.replay[n:]
		return n, nil
	}
	return s.Stream.Read(p)
}

func readFull(ctx context.Context, st quic.Stream, buf []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n := 0
		for n < len(buf) {
			m, err := st.Read(buf[n:])
			n += m
			if err != nil {
				done <- result{n, err}
				return
			}
		}
		done <- result{n, nil}
	}()

	select {
	case r := <-done:
		return r.n, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, network.NewErrTimeout(ctx.Err())
		}
		return 0, ctx.Err()
	}
}
