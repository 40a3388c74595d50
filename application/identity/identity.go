// Package identity defines the ports for local identity and peer trust
// storage. The concrete implementation lives in infrastructure/identity.
package identity

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"

	"connected/domain/trust"
)

// Identity is this device's long-lived keypair/certificate and derived id.
type Identity struct {
	DeviceID string
	Cert     tls.Certificate
}

// Fingerprint returns the lowercase hex SHA-256 digest of the identity's
// leaf certificate, the value peers are keyed on in the trust store.
func (i Identity) Fingerprint() trust.Fingerprint {
	return fingerprintOf(i.Cert)
}

// Store is the port for local identity and known-peer persistence. All
// methods are safe for concurrent use.
type Store interface {
	// LocalIdentity returns this device's identity, generating and
	// persisting one on first use.
	LocalIdentity(ctx context.Context) (Identity, error)

	// Fingerprint returns the lowercase hex SHA-256 digest of a leaf
	// certificate's DER bytes.
	Fingerprint(leaf []byte) trust.Fingerprint

	// Lookup returns the known-peer record for a fingerprint, if any.
	Lookup(fp trust.Fingerprint) (trust.PeerInfo, bool)

	// Upsert records or updates a peer's observed name/device id and
	// bumps LastSeen, without changing Status.
	Upsert(fp trust.Fingerprint, deviceID, name string) (trust.PeerInfo, error)

	// Trust transitions a peer to Trusted (pairing accepted).
	Trust(fp trust.Fingerprint) (trust.PeerInfo, error)

	// Unpair transitions a Trusted peer back to Unpaired.
	Unpair(fp trust.Fingerprint) (trust.PeerInfo, error)

	// Block transitions a peer to Blocked, refusing future connections at
	// the transport layer.
	Block(fp trust.Fingerprint) (trust.PeerInfo, error)

	// Unblock transitions a Blocked peer to Forgotten.
	Unblock(fp trust.Fingerprint) (trust.PeerInfo, error)

	// Forget marks a peer Forgotten (creating its record if none exists),
	// a state that requires a fresh pairing request.
	Forget(fp trust.Fingerprint) error

	// Peers returns every known peer, optionally filtered by status.
	Peers(status ...trust.Status) ([]trust.PeerInfo, error)

	// SetPairingMode toggles whether unpaired/forgotten peers raise a
	// PairingRequest on connect. It never auto-expires.
	SetPairingMode(enabled bool)

	// PairingMode reports the current pairing-mode flag.
	PairingMode() bool
}

func fingerprintOf(cert tls.Certificate) trust.Fingerprint {
	if len(cert.Certificate) == 0 {
		return ""
	}
	sum := sha256.Sum256(cert.Certificate[0])
	return trust.Fingerprint(hex.EncodeToString(sum[:]))
}
