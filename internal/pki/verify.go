package pki

import (
	"crypto/x509"
	"fmt"
	"time"
)

// KeyMatches reports an error when key is not the private half of cert's public key.
func KeyMatches(cert *Certificate, key *KeyPair) error {
	if cert == nil {
		return fmt.Errorf("%w: missing certificate", ErrSigning)
	}
	if err := verifyCertKeyPair(cert, key); err != nil {
		return fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return nil
}

// VerifyChain checks that root is a valid self-signed CA and that host chains to it
// at the given time. A zero time means now.
func VerifyChain(root, host *Certificate, at time.Time) error {
	if !root.Signed() || !host.Signed() {
		return fmt.Errorf("%w: chain contains an unsigned certificate", ErrSigning)
	}

	rootCert := root.X509()
	if err := rootCert.CheckSignatureFrom(rootCert); err != nil {
		return fmt.Errorf("%w: root certificate is not self-signed: %v", ErrSigning, err)
	}

	roots := x509.NewCertPool()
	roots.AddCert(rootCert)

	_, err := host.X509().Verify(x509.VerifyOptions{
		Roots:       roots,
		CurrentTime: at,
		KeyUsages:   []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return fmt.Errorf("%w: host certificate does not chain to root: %v", ErrSigning, err)
	}

	return nil
}
