package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// certValidity mirrors transport.rs's self-signed identity lifetime: long
// enough that a LAN device doesn't need to regenerate its identity across
// routine restarts.
const certValidity = 10 * 365 * 24 * time.Hour

// generateSelfSigned creates a fresh ed25519 keypair and a self-signed leaf
// certificate, matching the SANs used by the original transport's
// self-signed identity ("connected.local", "localhost").
func generateSelfSigned() (certDER, keyDER []byte, cert tls.Certificate, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, tls.Certificate{}, fmt.Errorf("generate ed25519 key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, tls.Certificate{}, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "connected.local"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"connected.local", "localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}

	certDER, err = x509.CreateCertificate(rand.Reader, template, template, pub, priv)
	if err != nil {
		return nil, nil, tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err = x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, tls.Certificate{}, fmt.Errorf("marshal private key: %w", err)
	}

	cert, err = tls.X509KeyPair(pemEncodeCert(certDER), pemEncodeKey(keyDER))
	if err != nil {
		return nil, nil, tls.Certificate{}, fmt.Errorf("build tls certificate: %w", err)
	}
	return certDER, keyDER, cert, nil
}

func pemEncodeCert(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func pemEncodeKey(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}
