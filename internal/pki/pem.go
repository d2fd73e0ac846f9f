package pki

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
)

// PEM block types produced by the exporters.
const (
	TypeCertificate   = "CERTIFICATE"
	TypePrivateKey    = "PRIVATE KEY"
	TypeRSAPrivateKey = "RSA PRIVATE KEY"
)

// ExportPrivateKey encodes the key as a PKCS#8 PEM block.
//
// The returned buffer is owned by the caller and holds secret material; clear it
// once it has been consumed.
func ExportPrivateKey(key *KeyPair) ([]byte, error) {
	priv, err := key.privateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal private key: %v", ErrEncoding, err)
	}
	defer clear(der)

	keyOut := &bytes.Buffer{}
	if err := pem.Encode(keyOut, &pem.Block{Type: TypePrivateKey, Bytes: der}); err != nil {
		return nil, fmt.Errorf("%w: failed to encode private key: %v", ErrEncoding, err)
	}

	return keyOut.Bytes(), nil
}

// ExportCertificate encodes a signed certificate as a PEM block.
func ExportCertificate(cert *Certificate) ([]byte, error) {
	if !cert.Signed() {
		return nil, fmt.Errorf("%w: refusing to export an unsigned certificate", ErrEncoding)
	}

	certOut := &bytes.Buffer{}
	if err := pem.Encode(certOut, &pem.Block{Type: TypeCertificate, Bytes: cert.Raw()}); err != nil {
		return nil, fmt.Errorf("%w: failed to encode certificate: %v", ErrEncoding, err)
	}

	return certOut.Bytes(), nil
}

// ParseCertificate decodes the first CERTIFICATE block in certPEM.
func ParseCertificate(certPEM []byte) (*Certificate, error) {
	for len(certPEM) > 0 {
		var block *pem.Block
		block, certPEM = pem.Decode(certPEM)
		if block == nil {
			break
		}
		if block.Type != TypeCertificate {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse certificate: %v", ErrEncoding, err)
		}
		return NewCertificate(cert), nil
	}

	return nil, fmt.Errorf("%w: no certificate in PEM", ErrEncoding)
}

// ParsePrivateKey decodes an RSA private key in PKCS#8 or PKCS#1 PEM form.
func ParsePrivateKey(keyPEM []byte) (*KeyPair, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("%w: no private key in PEM", ErrEncoding)
	}
	// the parsed key holds its own copies of the values
	defer clear(block.Bytes)

	var key *rsa.PrivateKey
	switch block.Type {
	case TypePrivateKey:
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse private key: %v", ErrEncoding, err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: private key is not RSA (got %T)", ErrEncoding, parsed)
		}
		key = rsaKey
	case TypeRSAPrivateKey:
		parsed, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse private key: %v", ErrEncoding, err)
		}
		key = parsed
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block type %q", ErrEncoding, block.Type)
	}

	return NewKeyPair(key)
}
