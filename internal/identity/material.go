package identity

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/wolfeidau/hostident/internal/codec"
	"github.com/wolfeidau/hostident/internal/pki"
)

// Material is a decoded identity: parsed keys and certificates plus their PEM text.
type Material struct {
	HostID string

	RootKey  *pki.KeyPair
	HostKey  *pki.KeyPair
	RootCert *pki.Certificate
	HostCert *pki.Certificate

	rootCertPEM []byte
	hostCertPEM []byte
	hostKeyPEM  []byte
}

// Decode reverses the base64 and PEM encoding of every blob.
// The caller must Destroy the returned material.
func (id *Identity) Decode() (*Material, error) {
	if err := id.Complete(); err != nil {
		return nil, err
	}

	m := &Material{HostID: id.HostID}

	var err error
	if m.rootCertPEM, err = decodeBlob("root certificate", id.RootCert); err != nil {
		return nil, err
	}
	if m.RootCert, err = pki.ParseCertificate(m.rootCertPEM); err != nil {
		return nil, fmt.Errorf("root certificate: %w", err)
	}

	if m.hostCertPEM, err = decodeBlob("host certificate", id.HostCert); err != nil {
		return nil, err
	}
	if m.HostCert, err = pki.ParseCertificate(m.hostCertPEM); err != nil {
		return nil, fmt.Errorf("host certificate: %w", err)
	}

	rootKeyPEM, err := decodeBlob("root key", id.RootKey)
	if err != nil {
		return nil, err
	}
	defer clear(rootKeyPEM)
	if m.RootKey, err = pki.ParsePrivateKey(rootKeyPEM); err != nil {
		return nil, fmt.Errorf("root key: %w", err)
	}

	if m.hostKeyPEM, err = decodeBlob("host key", id.HostKey); err != nil {
		m.Destroy()
		return nil, err
	}
	if m.HostKey, err = pki.ParsePrivateKey(m.hostKeyPEM); err != nil {
		m.Destroy()
		return nil, fmt.Errorf("host key: %w", err)
	}

	return m, nil
}

// Verify checks the chain at the given time, that each key belongs to its certificate,
// that the host pair loads as a TLS key pair and that the host id agrees with the
// host certificate extension.
func (m *Material) Verify(at time.Time) error {
	if err := pki.VerifyChain(m.RootCert, m.HostCert, at); err != nil {
		return err
	}
	if err := pki.KeyMatches(m.RootCert, m.RootKey); err != nil {
		return fmt.Errorf("root key: %w", err)
	}
	if err := pki.KeyMatches(m.HostCert, m.HostKey); err != nil {
		return fmt.Errorf("host key: %w", err)
	}

	if _, err := tls.X509KeyPair(m.hostCertPEM, m.hostKeyPEM); err != nil {
		return fmt.Errorf("invalid host certificate/key: %w", err)
	}

	certHostID, err := pki.ExtractHostID(m.HostCert.X509())
	switch {
	case errors.Is(err, pki.ErrExtensionNotFound):
		if m.HostID != "" {
			return fmt.Errorf("%w: certificate carries no host id, stored %q", ErrHostIDMismatch, m.HostID)
		}
	case err != nil:
		return err
	case certHostID != m.HostID:
		return fmt.Errorf("%w: certificate %q, stored %q", ErrHostIDMismatch, certHostID, m.HostID)
	}

	return nil
}

// TLSConfig creates a mutual TLS configuration presenting the host certificate and
// trusting the root CA for both peers.
func (m *Material) TLSConfig() (*tls.Config, error) {
	hostCert, err := tls.X509KeyPair(m.hostCertPEM, m.hostKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse host certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(m.rootCertPEM) {
		return nil, fmt.Errorf("failed to parse root certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{hostCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    caCertPool,
		RootCAs:      caCertPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Destroy scrubs the decoded private keys and PEM buffers.
func (m *Material) Destroy() {
	if m == nil {
		return
	}
	m.RootKey.Destroy()
	m.HostKey.Destroy()
	clear(m.hostKeyPEM)
	m.hostKeyPEM = nil
}

func decodeBlob(name string, b Blob) ([]byte, error) {
	data, err := codec.DecodeBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return data, nil
}
