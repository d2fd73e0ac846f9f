package pki

import (
	"crypto"
	"crypto/x509"
	"math/big"
	"time"
)

// Certificate is an X.509 certificate moving through the build, sign and export
// stages. An unsigned certificate only carries its template; once signed it also
// carries the parsed DER. Certificates are never mutated after construction.
type Certificate struct {
	template *x509.Certificate
	cert     *x509.Certificate
}

// NewCertificate wraps an already signed and parsed certificate.
func NewCertificate(cert *x509.Certificate) *Certificate {
	return &Certificate{template: cert, cert: cert}
}

// Signed reports whether an issuer signature is attached.
func (c *Certificate) Signed() bool {
	return c != nil && c.cert != nil
}

// X509 returns the parsed signed certificate, or nil when unsigned.
func (c *Certificate) X509() *x509.Certificate {
	if c == nil {
		return nil
	}
	return c.cert
}

// Raw returns the DER encoding, or nil when unsigned.
func (c *Certificate) Raw() []byte {
	if !c.Signed() {
		return nil
	}
	return c.cert.Raw
}

// PublicKey returns the embedded subject public key.
func (c *Certificate) PublicKey() crypto.PublicKey {
	return c.fields().PublicKey
}

// SerialNumber returns a copy of the serial.
func (c *Certificate) SerialNumber() *big.Int {
	if c.fields().SerialNumber == nil {
		return nil
	}
	return new(big.Int).Set(c.fields().SerialNumber)
}

// NotBefore is the activation time.
func (c *Certificate) NotBefore() time.Time {
	return c.fields().NotBefore
}

// NotAfter is the expiration time.
func (c *Certificate) NotAfter() time.Time {
	return c.fields().NotAfter
}

// IsCA reports the basic constraints CA flag.
func (c *Certificate) IsCA() bool {
	return c.fields().IsCA
}

// fields returns the signed certificate when present, else the template.
func (c *Certificate) fields() *x509.Certificate {
	if c.cert != nil {
		return c.cert
	}
	return c.template
}
