package store

import (
	"crypto/sha256"
	"crypto/x509"
	"time"

	"github.com/mr-tron/base58"

	"github.com/wolfeidau/hostident/internal/pki"
)

// CertMetadata represents metadata about a provisioned certificate
type CertMetadata struct {
	SerialNumber string    `yaml:"serial_number" dynamodbav:"serial_number"`
	HostID       string    `yaml:"host_id,omitempty" dynamodbav:"host_id,omitempty"`
	Fingerprint  string    `yaml:"fingerprint" dynamodbav:"fingerprint"`
	SubjectDN    string    `yaml:"subject_dn" dynamodbav:"subject_dn"`
	IssuerDN     string    `yaml:"issuer_dn" dynamodbav:"issuer_dn"`
	IsCA         bool      `yaml:"is_ca" dynamodbav:"is_ca"`
	IssuedAt     time.Time `yaml:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt    time.Time `yaml:"expires_at" dynamodbav:"expires_at"`
}

// Expired reports whether the certificate has expired at the given time.
func (m *CertMetadata) Expired(at time.Time) bool {
	return at.After(m.ExpiresAt)
}

// NewCertMetadataFromX509 creates CertMetadata from an X.509 certificate
func NewCertMetadataFromX509(cert *x509.Certificate) *CertMetadata {
	// Base58-encoded SHA256 of the DER certificate
	fingerprint := sha256.Sum256(cert.Raw)

	// Host certificates without the extension have no host id
	hostID, _ := pki.ExtractHostID(cert)

	return &CertMetadata{
		SerialNumber: cert.SerialNumber.Text(16),
		HostID:       hostID,
		Fingerprint:  base58.Encode(fingerprint[:]),
		SubjectDN:    cert.Subject.String(),
		IssuerDN:     cert.Issuer.String(),
		IsCA:         cert.IsCA,
		IssuedAt:     cert.NotBefore,
		ExpiresAt:    cert.NotAfter,
	}
}
