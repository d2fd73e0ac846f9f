package pki

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"fmt"
)

// CASigner issues certificates under a certificate authority.
// LocalSigner is the in-process implementation used during provisioning.
type CASigner interface {
	// Issue signs an unsigned certificate and returns the signed copy.
	Issue(subject *Certificate) (*Certificate, error)

	// CACertificate returns the signed CA certificate used as issuer.
	CACertificate() *Certificate
}

// Sign signs subject with issuerKey, presenting issuer as the issuing certificate.
//
// Pass the same certificate as subject and issuer to self-sign; issuerKey must then be
// the subject's own key. For chain signing the issuer must already be a signed CA
// certificate whose public key matches issuerKey. The inputs are left untouched and
// a new signed certificate is returned.
func Sign(subject, issuer *Certificate, issuerKey *KeyPair) (*Certificate, error) {
	if subject == nil || subject.template == nil {
		return nil, fmt.Errorf("%w: missing subject certificate", ErrSigning)
	}
	if subject.Signed() {
		return nil, fmt.Errorf("%w: subject certificate is already signed", ErrSigning)
	}
	if err := validateTemplate(subject.template); err != nil {
		return nil, err
	}

	signer, err := issuerKey.signer()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigning, err)
	}

	selfSigned := subject == issuer

	var parent *x509.Certificate
	if selfSigned {
		parent = subject.template
	} else {
		if !issuer.Signed() {
			return nil, fmt.Errorf("%w: issuer certificate is not signed", ErrSigning)
		}
		parent = issuer.cert
		if !parent.IsCA {
			return nil, fmt.Errorf("%w: issuer certificate is not a certificate authority", ErrSigning)
		}
	}

	if !publicKeysEqual(signer.Public(), parent.PublicKey) {
		return nil, fmt.Errorf("%w: issuer key does not match issuer certificate public key", ErrSigning)
	}

	der, err := x509.CreateCertificate(rand.Reader, subject.template, parent, subject.template.PublicKey, signer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse signed certificate: %v", ErrSigning, err)
	}

	verifier := parent
	if selfSigned {
		verifier = cert
	}
	if err := verifier.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return nil, fmt.Errorf("%w: signature does not verify: %v", ErrSigning, err)
	}

	return &Certificate{template: subject.template, cert: cert}, nil
}

// validateTemplate rejects certificates missing required fields.
func validateTemplate(t *x509.Certificate) error {
	switch {
	case t.SerialNumber == nil || t.SerialNumber.Sign() <= 0:
		return fmt.Errorf("%w: certificate has no valid serial number", ErrSigning)
	case t.PublicKey == nil:
		return fmt.Errorf("%w: certificate has no subject public key", ErrSigning)
	case t.NotBefore.IsZero() || t.NotAfter.IsZero():
		return fmt.Errorf("%w: certificate validity window is not set", ErrSigning)
	case t.NotAfter.Before(t.NotBefore):
		return fmt.Errorf("%w: certificate expires before it activates", ErrSigning)
	}
	return nil
}

func publicKeysEqual(a, b crypto.PublicKey) bool {
	if a == nil || b == nil {
		return false
	}
	eq, ok := a.(interface{ Equal(crypto.PublicKey) bool })
	return ok && eq.Equal(b)
}
