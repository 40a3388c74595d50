// Package transport implements application/transport.Transport on top of
// QUIC. Constants and config shape are grounded on
// original_source/core/src/transport.rs::create_transport_config.
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN is the protocol identifier negotiated during the TLS handshake.
const ALPN = "connected/1"

const (
	pingTimeout    = 5 * time.Second
	connectTimeout = 10 * time.Second

	initialRTT     = 10 * time.Millisecond
	maxIdleTimeout = 60 * time.Second
	keepAlive      = 15 * time.Second

	maxConcurrentStreams = 128

	streamReceiveWindow     = 16 * 1024 * 1024
	connectionReceiveWindow = 64 * 1024 * 1024
	sendWindow              = 16 * 1024 * 1024
)

// quicConfig builds the quic.Config shared by dial and listen: generous
// idle/keepalive so a sleeping phone doesn't get dropped mid-pairing, high
// stream concurrency, and wide receive windows since transfers can be large
// files. The initialRTT and sendWindow constants are not set on this config,
// and no minimum MTU is configured beyond the 1400-byte initial packet size.
func quicConfig() *quic.Config {
	return &quic.Config{
		HandshakeIdleTimeout:           connectTimeout,
		MaxIdleTimeout:                 maxIdleTimeout,
		KeepAlivePeriod:                keepAlive,
		MaxIncomingStreams:             maxConcurrentStreams,
		MaxIncomingUniStreams:          maxConcurrentStreams,
		InitialStreamReceiveWindow:     streamReceiveWindow / 4,
		MaxStreamReceiveWindow:         streamReceiveWindow,
		InitialConnectionReceiveWindow: connectionReceiveWindow / 4,
		MaxConnectionReceiveWindow:     connectionReceiveWindow,
		Allow0RTT:                      true,
		DisablePathMTUDiscovery:        false,
		InitialPacketSize:              1400,
	}
}

// tlsServerConfig builds the server-side TLS config: our self-signed
// identity, ALPN negotiation, and acceptance of any client certificate —
// peer trust is decided above the transport layer, by fingerprint, not by
// a certificate chain of trust.
func tlsServerConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates:          []tls.Certificate{cert},
		ClientAuth:            tls.RequireAnyClientCert,
		InsecureSkipVerify:    true,
		NextProtos:            []string{ALPN},
		MinVersion:            tls.VersionTLS13,
		VerifyPeerCertificate: acceptAnyPeerCertificate,
	}
}

// tlsClientConfig builds the client-side TLS config, presenting our own
// self-signed certificate so the server side can fingerprint us too, and
// skipping chain verification for the same reason as the server side.
func tlsClientConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates:          []tls.Certificate{cert},
		InsecureSkipVerify:    true,
		NextProtos:            []string{ALPN},
		MinVersion:            tls.VersionTLS13,
		ClientSessionCache:    tls.NewLRUClientSessionCache(32),
		VerifyPeerCertificate: acceptAnyPeerCertificate,
	}
}

// acceptAnyPeerCertificate skips Go's default chain verification (already
// disabled via InsecureSkipVerify) and performs no additional checks here:
// trust is a post-handshake decision made by the orchestrator against the
// fingerprint store, not a TLS-layer decision.
func acceptAnyPeerCertificate(_ [][]byte, _ [][]*x509.Certificate) error {
	return nil
}
