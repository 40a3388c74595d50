// Package identity implements application/identity.Store: local keypair
// generation/persistence and the known-peers trust table, both as
// atomically-written JSON files under a per-user storage directory.
//
// Grounded on original_source/core/src/security.rs (KeyStore): storage
// directory resolution, atomic write-temp/fsync/rename, corrupt-file
// quarantine, and the peer transition operations.
package identity

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	appidentity "connected/application/identity"
	"connected/domain/trust"

	"github.com/google/uuid"
)

// ErrUnknownPeer is returned by trust transitions for a fingerprint that
// has no known-peer record.
var ErrUnknownPeer = errors.New("identity: unknown peer")

// ErrInvalidTransition is returned when a trust transition doesn't apply to
// a peer's current status (e.g. unblocking a peer that is not Blocked).
var ErrInvalidTransition = errors.New("identity: invalid status transition")

const (
	identityFileName   = "identity.json"
	knownPeersFileName = "known_peers.json"
	dirPerm            = 0o700
	filePerm           = 0o600
)

// persistedIdentity is the on-disk shape of identity.json.
type persistedIdentity struct {
	CertDER  []byte `json:"cert_der"`
	KeyDER   []byte `json:"key_der"`
	DeviceID string `json:"device_id,omitempty"`
}

// persistedPeer is the on-disk shape of one known_peers.json entry.
type persistedPeer struct {
	Fingerprint string    `json:"fingerprint"`
	DeviceID    string    `json:"device_id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// Store is the filesystem-backed implementation of application/identity.Store.
type Store struct {
	dir string

	mu           sync.Mutex
	identity     *appidentity.Identity
	peers        map[trust.Fingerprint]trust.PeerInfo
	pairingMode  bool
}

// New returns a Store rooted at dir. If dir is empty, the OS user config
// directory joined with "connected" is used, matching KeyStore::new.
func New(dir string) (*Store, error) {
	if dir == "" {
		cfg, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("identity: resolve config dir: %w", err)
		}
		dir = filepath.Join(cfg, "connected")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("identity: create storage dir: %w", err)
	}
	// Best effort: tighten permissions even if MkdirAll reused an
	// existing, more permissive directory.
	_ = os.Chmod(dir, dirPerm)

	s := &Store{dir: dir, peers: make(map[trust.Fingerprint]trust.PeerInfo)}
	if err := s.loadKnownPeers(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) LocalIdentity(ctx context.Context) (appidentity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.identity != nil {
		return *s.identity, nil
	}

	path := filepath.Join(s.dir, identityFileName)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var p persistedIdentity
		if jerr := json.Unmarshal(raw, &p); jerr != nil {
			return appidentity.Identity{}, fmt.Errorf("identity: parse %s: %w", path, jerr)
		}
		cert, cerr := tls.X509KeyPair(pemEncodeCert(p.CertDER), pemEncodeKey(p.KeyDER))
		if cerr != nil {
			return appidentity.Identity{}, fmt.Errorf("identity: rebuild keypair: %w", cerr)
		}
		deviceID := p.DeviceID
		if deviceID == "" {
			// Legacy record written before device ids were persisted.
			deviceID = deterministicDeviceID(p.CertDER)
		}
		id := appidentity.Identity{DeviceID: deviceID, Cert: cert}
		s.identity = &id
		return id, nil

	case os.IsNotExist(err):
		certDER, keyDER, cert, err := generateSelfSigned()
		if err != nil {
			return appidentity.Identity{}, fmt.Errorf("identity: generate identity: %w", err)
		}
		deviceID := deterministicDeviceID(certDER)
		p := persistedIdentity{CertDER: certDER, KeyDER: keyDER, DeviceID: deviceID}
		data, merr := json.Marshal(p)
		if merr != nil {
			return appidentity.Identity{}, fmt.Errorf("identity: marshal identity: %w", merr)
		}
		if werr := atomicWriteFile(path, data, filePerm); werr != nil {
			return appidentity.Identity{}, werr
		}
		id := appidentity.Identity{DeviceID: deviceID, Cert: cert}
		s.identity = &id
		return id, nil

	default:
		return appidentity.Identity{}, fmt.Errorf("identity: read %s: %w", path, err)
	}
}

func (s *Store) Fingerprint(leaf []byte) trust.Fingerprint {
	sum := sha256.Sum256(leaf)
	return trust.Fingerprint(hex.EncodeToString(sum[:]))
}

func (s *Store) Lookup(fp trust.Fingerprint) (trust.PeerInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.peers[fp]
	return p, ok
}

func (s *Store) Upsert(fp trust.Fingerprint, deviceID, name string) (trust.PeerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	p, ok := s.peers[fp]
	if !ok {
		p = trust.PeerInfo{
			Fingerprint: fp,
			Status:      trust.StatusUnpaired,
			FirstSeen:   now,
		}
	}
	p.DeviceID = deviceID
	p.Name = name
	p.LastSeen = now
	s.peers[fp] = p
	return p, s.saveKnownPeersLocked()
}

func (s *Store) Trust(fp trust.Fingerprint) (trust.PeerInfo, error) {
	return s.transition(fp, trust.StatusTrusted)
}

func (s *Store) Unpair(fp trust.Fingerprint) (trust.PeerInfo, error) {
	return s.transition(fp, trust.StatusUnpaired)
}

func (s *Store) Block(fp trust.Fingerprint) (trust.PeerInfo, error) {
	return s.transition(fp, trust.StatusBlocked)
}

// Unblock requires the peer's current status to be Blocked — it returns a
// peer to Forgotten (not Trusted), so a fresh pairing request is required
// before it is trusted again. Any other current status is rejected with
// ErrInvalidTransition: the valid ways out of Trusted/Unpaired/Forgotten
// are unpair/forget/block, not unblock.
func (s *Store) Unblock(fp trust.Fingerprint) (trust.PeerInfo, error) {
	s.mu.Lock()
	p, ok := s.peers[fp]
	s.mu.Unlock()
	if !ok {
		return trust.PeerInfo{}, ErrUnknownPeer
	}
	if p.Status != trust.StatusBlocked {
		return trust.PeerInfo{}, ErrInvalidTransition
	}
	return s.transition(fp, trust.StatusForgotten)
}

func (s *Store) Forget(fp trust.Fingerprint) error {
	_, err := s.transition(fp, trust.StatusForgotten)
	return err
}

func (s *Store) transition(fp trust.Fingerprint, to trust.Status) (trust.PeerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peers[fp]
	if !ok {
		switch to {
		case trust.StatusTrusted, trust.StatusBlocked, trust.StatusForgotten:
			// A peer can be trusted on first contact (pairing acceptance),
			// blocked or forgotten without a prior Upsert having run.
			p = trust.PeerInfo{Fingerprint: fp, FirstSeen: time.Now()}
		default:
			return trust.PeerInfo{}, ErrUnknownPeer
		}
	}
	p.Status = to
	p.LastSeen = time.Now()
	s.peers[fp] = p
	return p, s.saveKnownPeersLocked()
}

func (s *Store) Peers(status ...trust.Status) ([]trust.PeerInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[trust.Status]bool, len(status))
	for _, st := range status {
		want[st] = true
	}

	out := make([]trust.PeerInfo, 0, len(s.peers))
	for _, p := range s.peers {
		if len(want) == 0 || want[p.Status] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) SetPairingMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairingMode = enabled
}

func (s *Store) PairingMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pairingMode
}

func (s *Store) loadKnownPeers() error {
	path := filepath.Join(s.dir, knownPeersFileName)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("identity: read %s: %w", path, err)
	}

	var persisted map[string]persistedPeer
	if err := json.Unmarshal(raw, &persisted); err != nil {
		// Quarantine the corrupt file rather than lose future writes to
		// a file we can't trust, matching load_known_peers's rename of
		// an unparseable known_peers.json.
		quarantine := filepath.Join(s.dir, fmt.Sprintf("known_peers.corrupt.%d.json", time.Now().Unix()))
		_ = os.Rename(path, quarantine)
		return nil
	}

	for fp, p := range persisted {
		s.peers[trust.Fingerprint(fp)] = trust.PeerInfo{
			Fingerprint: trust.Fingerprint(fp),
			DeviceID:    p.DeviceID,
			Name:        p.Name,
			Status:      parseStatus(p.Status),
			FirstSeen:   p.FirstSeen,
			LastSeen:    p.LastSeen,
		}
	}
	return nil
}

func (s *Store) saveKnownPeersLocked() error {
	persisted := make(map[string]persistedPeer, len(s.peers))
	for fp, p := range s.peers {
		persisted[string(fp)] = persistedPeer{
			Fingerprint: string(p.Fingerprint),
			DeviceID:    p.DeviceID,
			Name:        p.Name,
			Status:      p.Status.String(),
			FirstSeen:   p.FirstSeen,
			LastSeen:    p.LastSeen,
		}
	}
	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return fmt.Errorf("identity: marshal known peers: %w", err)
	}
	return atomicWriteFile(filepath.Join(s.dir, knownPeersFileName), data, filePerm)
}

func parseStatus(s string) trust.Status {
	switch s {
	case "unpaired":
		return trust.StatusUnpaired
	case "trusted":
		return trust.StatusTrusted
	case "forgotten":
		return trust.StatusForgotten
	case "blocked":
		return trust.StatusBlocked
	default:
		return trust.StatusUnknown
	}
}

// deterministicDeviceID derives a stable device id from a certificate's DER
// bytes via UUIDv5 over the DNS namespace, matching
// security.rs::deterministic_device_id.
func deterministicDeviceID(certDER []byte) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, certDER).String()
}
