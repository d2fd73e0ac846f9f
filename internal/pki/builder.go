package pki

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1" // #nosec G505 - RFC 5280 key identifier method 1, not used for signatures
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"
)

// DefaultValidity is ten years, matching the historical provisioning tool.
const DefaultValidity = 10 * 365 * 24 * time.Hour

// CertificateRequest describes the identity and capabilities of a certificate to build.
type CertificateRequest struct {
	Subject pkix.Name
	IsCA    bool

	// MaxPathLen applies to CA certificates only. 0 means no further CA below this one.
	MaxPathLen int

	// Serial overrides the builder's serial source when set.
	Serial *big.Int

	ExtraExtensions []pkix.Extension
}

// Builder populates unsigned certificates. Time and serial assignment are injected
// so that builds are deterministic under test.
type Builder struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// Validity defaults to DefaultValidity.
	Validity time.Duration
	// Serials defaults to RandomSerials.
	Serials SerialSource
}

// NewBuilder returns a builder using the wall clock, random serials and DefaultValidity.
func NewBuilder() *Builder {
	return &Builder{
		Now:      time.Now,
		Validity: DefaultValidity,
		Serials:  RandomSerials{},
	}
}

// Build creates an unsigned X.509 v3 certificate for subjectKey.
func (b *Builder) Build(subjectKey crypto.PublicKey, req CertificateRequest) (*Certificate, error) {
	if subjectKey == nil {
		return nil, fmt.Errorf("%w: missing subject public key", ErrSigning)
	}

	validity := b.Validity
	if validity == 0 {
		validity = DefaultValidity
	}
	if validity < 0 {
		return nil, fmt.Errorf("%w: negative validity period %s", ErrSigning, validity)
	}

	serial := req.Serial
	if serial == nil {
		serials := b.Serials
		if serials == nil {
			serials = RandomSerials{}
		}

		var err error
		serial, err = serials.NextSerial()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSigning, err)
		}
	}
	if serial.Sign() <= 0 {
		return nil, fmt.Errorf("%w: serial number must be positive", ErrSigning)
	}

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	// X.509 times carry whole seconds only
	notBefore := now().UTC().Truncate(time.Second)

	template := &x509.Certificate{
		SerialNumber:          new(big.Int).Set(serial),
		Subject:               req.Subject,
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(validity),
		PublicKey:             subjectKey,
		SubjectKeyId:          subjectKeyID(subjectKey),
		BasicConstraintsValid: true,
		IsCA:                  req.IsCA,
		ExtraExtensions:       req.ExtraExtensions,
	}

	if req.IsCA {
		template.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature
		template.MaxPathLen = req.MaxPathLen
		template.MaxPathLenZero = req.MaxPathLen == 0
	} else {
		template.KeyUsage = x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment
		template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
	}

	return &Certificate{template: template}, nil
}

// subjectKeyID derives the key identifier from the PKCS#1 public key (RFC 5280 4.2.1.2 method 1).
func subjectKeyID(pub crypto.PublicKey) []byte {
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil
	}
	sum := sha1.Sum(x509.MarshalPKCS1PublicKey(rsaPub)) // #nosec G401
	return sum[:]
}
