package pki

import (
	"fmt"
)

// LocalSigner implements CASigner with a CA key held in process memory.
// The key stays owned by the caller; Destroy it once provisioning is complete.
type LocalSigner struct {
	caKey  *KeyPair
	caCert *Certificate
}

// NewLocalSigner pairs a signed CA certificate with its private key.
func NewLocalSigner(caCert *Certificate, caKey *KeyPair) (*LocalSigner, error) {
	if !caCert.Signed() {
		return nil, fmt.Errorf("%w: CA certificate is not signed", ErrSigning)
	}
	if !caCert.IsCA() {
		return nil, fmt.Errorf("%w: certificate is not a certificate authority", ErrSigning)
	}

	// Verify key and cert match
	if err := verifyCertKeyPair(caCert, caKey); err != nil {
		return nil, fmt.Errorf("%w: CA key and certificate do not match: %v", ErrSigning, err)
	}

	return &LocalSigner{
		caKey:  caKey,
		caCert: caCert,
	}, nil
}

// Issue signs subject with the CA key, naming the CA certificate as issuer.
func (s *LocalSigner) Issue(subject *Certificate) (*Certificate, error) {
	return Sign(subject, s.caCert, s.caKey)
}

// CACertificate returns the CA certificate.
func (s *LocalSigner) CACertificate() *Certificate {
	return s.caCert
}

// verifyCertKeyPair checks that a certificate's public key matches a private key
func verifyCertKeyPair(cert *Certificate, key *KeyPair) error {
	if key.Destroyed() {
		return ErrKeyDestroyed
	}

	if !publicKeysEqual(key.Public(), cert.PublicKey()) {
		return fmt.Errorf("public keys do not match")
	}

	return nil
}
