// Package transport defines the ports for the secure, multiplexed,
// connection-oriented transport. The concrete implementation in
// infrastructure/transport is built on QUIC; this package only describes
// the shape a transport must have, mirroring the connection/session/crypto
// split of a handshake-based tunnel transport generalized to a peer-to-peer
// multi-stream connection.
package transport

import (
	"context"
	"net/netip"
	"time"
)

// StreamKind is the single leading byte every stream opens with, letting a
// single connection multiplex control traffic, file-transfer traffic, and
// (reserved) filesystem-browsing traffic.
type StreamKind byte

const (
	StreamUnknown    StreamKind = 0
	StreamControl    StreamKind = 1
	StreamFile       StreamKind = 2
	StreamFilesystem StreamKind = 3 // reserved, unused
)

// MaxControlMessageSize bounds a single control-stream frame.
const MaxControlMessageSize = 64 * 1024

// Stream is a single bidirectional byte stream within a Session. It is an
// io.Reader/io.Writer plus a Close, matching the teacher's Transport port
// shape (Write/Read/Close) generalized from "the one encrypted tunnel
// socket" to "one of many multiplexed streams".
type Stream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error

	// Kind is the StreamKind this stream was opened/accepted with.
	Kind() StreamKind
}

// Session is one established, authenticated connection to a peer. All
// stream-transport encryption is handled by the underlying QUIC/TLS layer —
// there is no separate application-level Crypto port, since the spec's
// transport is "QUIC-family with TLS 1.3", not a hand-rolled AEAD tunnel.
type Session interface {
	// PeerAddr is the remote endpoint's address.
	PeerAddr() netip.AddrPort

	// PeerLeafCert returns the DER bytes of the peer's leaf certificate,
	// the value the trust store fingerprints peers by.
	PeerLeafCert() []byte

	// OpenStream opens a new stream of the given kind.
	OpenStream(ctx context.Context, kind StreamKind) (Stream, error)

	// AcceptStream blocks until the peer opens a new stream.
	AcceptStream(ctx context.Context) (Stream, error)

	// Ping round-trips a Ping/Pong control message carrying fromID and
	// returns the observed RTT. A timeout or a Pong that doesn't echo
	// back the timestamp it was sent with invalidates the session.
	Ping(ctx context.Context, fromID string) (time.Duration, error)

	// Close tears down the session and all of its streams.
	Close() error
}

// Transport is the port for binding a local endpoint, dialing peers, and
// accepting inbound sessions. It generalizes the teacher's connection
// Factory (EstablishConnection) to a bidirectional listen+dial transport,
// since peers in this system are symmetric rather than client/server.
type Transport interface {
	// Bind starts listening on the given local address. addr with a zero
	// port lets the OS pick one; callers read the actual bound address
	// back from LocalAddr.
	Bind(ctx context.Context, addr netip.AddrPort) error

	// LocalAddr returns the address Bind actually bound to.
	LocalAddr() netip.AddrPort

	// Dial establishes a session to a peer, reusing a cached connection
	// to the same address if one is still healthy.
	Dial(ctx context.Context, addr netip.AddrPort) (Session, error)

	// Accept blocks until a peer dials in, returning the new session.
	Accept(ctx context.Context) (Session, error)

	// Shutdown closes all sessions and releases the bound socket.
	Shutdown(ctx context.Context) error
}
